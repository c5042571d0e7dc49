package agents

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dshills/langgraph-go/graph"

	"github.com/CAICAIIs/Auto-Scholar/llm"
	"github.com/CAICAIIs/Auto-Scholar/router"
	"github.com/CAICAIIs/Auto-Scholar/session"
)

// FallbackTokensPerPaper estimates a paper's context cost when its textual
// fields are too sparse to measure directly.
const FallbackTokensPerPaper = 180

type draftOutlineResponse struct {
	Title         string   `json:"title"`
	SectionTitles []string `json:"section_titles"`
}

type sectionContentResponse struct {
	Content string `json:"content"`
}

type fullDraftResponse struct {
	Title    string `json:"title"`
	Sections []struct {
		Heading string `json:"heading"`
		Content string `json:"content"`
	} `json:"sections"`
}

// Writer drafts the multi-section review. The spec's open-question
// resolution governs precedence when more than one mode's trigger is
// true: a pending QA retry always wins as a single-call generation;
// continuation mode only applies when there is no pending retry.
func Writer(d *Deps) graph.NodeFunc[session.State] {
	return func(ctx context.Context, s session.State) graph.NodeResult[session.State] {
		delta := CopyState(s)

		if len(s.SelectedPapers) == 0 {
			delta.FinalDraft = &session.Draft{Title: "No draft: no papers available", Sections: nil}
			delta.DraftOutline = nil
			delta.Logs = appendLog(nil, "writer", "no selected papers; skipping draft generation")
			delta.AgentHandoffs = appendHandoff(s, "writer")
			return graph.NodeResult[session.State]{Delta: delta, Route: graph.Goto("critic")}
		}

		papers := buildPaperContext(s.SelectedPapers, s.ResearchPlan)
		model, modelID, ok := d.modelFor(router.TaskWriting)
		if !ok {
			return graph.NodeResult[session.State]{Err: fmt.Errorf("writer: no model available for task %q", router.TaskWriting)}
		}
		rc := requestContext{d: d, model: model, modelID: modelID, papers: papers, language: s.OutputLanguage}

		var draft *session.Draft
		var outline *session.DraftOutline
		var logs []string
		var err error

		if len(s.SelectedPapers) > ContextOverflowWarnThreshold {
			logs = append(logs, fmt.Sprintf("selected_papers has %d entries, exceeding the %d context-overflow warning threshold", len(s.SelectedPapers), ContextOverflowWarnThreshold))
		}

		var modeLogs []string
		switch {
		case s.RetryCount > 0 && len(s.QAErrors) > 0:
			draft, modeLogs, err = writeRetryDraft(ctx, rc, s)
		case s.IsContinuation:
			draft, modeLogs, err = writeContinuationDraft(ctx, rc, s)
		default:
			draft, outline, modeLogs, err = writeOutlineDraft(ctx, rc)
		}
		if err != nil {
			return graph.NodeResult[session.State]{Err: fmt.Errorf("writer: %w", err)}
		}
		logs = append(logs, modeLogs...)

		for i, sec := range draft.Sections {
			if bad := citationIndicesOutOfBounds(sec.Content, s.SelectedPapers); len(bad) > 0 {
				logs = append(logs, fmt.Sprintf("section %d (%q) has out-of-range citation indices: %v", i, sec.Heading, bad))
			}
		}

		delta.FinalDraft = draft
		delta.DraftOutline = outline
		delta.Logs = appendLog(nil, "writer", fmt.Sprintf("drafted %q with %d sections", draft.Title, len(draft.Sections)))
		delta.Logs = append(delta.Logs, logs...)
		delta.AgentHandoffs = appendHandoff(s, "writer")

		return graph.NodeResult[session.State]{Delta: delta, Route: graph.Goto("critic")}
	}
}

// requestContext bundles everything a mode-specific generator needs so
// each mode function stays focused on its own prompt shape.
type requestContext struct {
	d        *Deps
	model    llm.ChatModel
	modelID  string
	papers   []contextPaper
	language string
}

type contextPaper struct {
	index int // 1-based, matches {cite:N}
	paper session.PaperMetadata
	block string
}

// buildPaperContext reorders selected papers by sub-question priority (if a
// plan exists), then fills them into the context in order until
// CONTEXT_TOKEN_BUDGET is spent, always keeping at least one paper.
func buildPaperContext(papers []session.PaperMetadata, plan *session.ResearchPlan) []contextPaper {
	ordered := papers
	if len(ordered) > ContextMaxPapers {
		ordered = ordered[:ContextMaxPapers]
	}
	ordered = PrioritizeBySubQuestions(ordered, plan)

	out := make([]contextPaper, 0, len(ordered))
	budget := ContextTokenBudget
	for i, p := range ordered {
		block := formatPaperBlock(i+1, p)
		cost := estimatePaperTokens(p)
		if len(out) > 0 && cost > budget {
			break
		}
		out = append(out, contextPaper{index: i + 1, paper: p, block: block})
		budget -= cost
	}
	return out
}

func estimatePaperTokens(p session.PaperMetadata) int {
	text := p.Title + " " + p.Abstract + " " + p.CoreContribution
	if p.StructuredContribution != nil {
		sc := p.StructuredContribution
		text += " " + sc.Problem + " " + sc.Method + " " + sc.Novelty + " " + sc.Dataset +
			" " + sc.Baseline + " " + sc.Results + " " + sc.Limitations + " " + sc.FutureWork
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return FallbackTokensPerPaper
	}
	return len(strings.Fields(text)) * 4 / 3 // rough words->tokens estimate
}

func formatPaperBlock(index int, p session.PaperMetadata) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] %s\n", index, p.Title)
	if len(p.Authors) > 0 {
		fmt.Fprintf(&b, "    Authors: %s\n", strings.Join(p.Authors, ", "))
	}
	if p.CoreContribution != "" {
		fmt.Fprintf(&b, "    Contribution: %s\n", p.CoreContribution)
	}
	if sc := p.StructuredContribution; sc != nil && !sc.IsEmpty() {
		writeFieldLine(&b, "Problem", sc.Problem)
		writeFieldLine(&b, "Method", sc.Method)
		writeFieldLine(&b, "Novelty", sc.Novelty)
		writeFieldLine(&b, "Dataset", sc.Dataset)
		writeFieldLine(&b, "Baseline", sc.Baseline)
		writeFieldLine(&b, "Results", sc.Results)
		writeFieldLine(&b, "Limitations", sc.Limitations)
		writeFieldLine(&b, "Future Work", sc.FutureWork)
	} else if p.Abstract != "" {
		preview := p.Abstract
		if r := []rune(preview); len(r) > 300 {
			preview = string(r[:300]) + "..."
		}
		fmt.Fprintf(&b, "    Abstract: %s\n", preview)
	}
	return b.String()
}

func writeFieldLine(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "    %s: %s\n", label, value)
}

func paperContextText(papers []contextPaper) string {
	var b strings.Builder
	for _, p := range papers {
		b.WriteString(p.block)
	}
	return b.String()
}

// draftTokenCeiling and sectionTokenCeiling implement the spec's
// min(max, base + per_paper*N) token-budget formula.
func draftTokenCeiling(n int) int {
	return minInt(WriterDraftMaxTokens, WriterDraftBaseTokens+WriterDraftPerPaper*n)
}

func sectionTokenCeiling(n int) int {
	return minInt(WriterSectionMaxTokens, WriterSectionBaseTokens+WriterSectionPerPaper*n)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// writeOutlineDraft is the default, fresh-turn mode: request a DraftOutline,
// then write each section in parallel (one LM call per title).
func writeOutlineDraft(ctx context.Context, rc requestContext) (*session.Draft, *session.DraftOutline, []string, error) {
	var logs []string
	var outlineResp draftOutlineResponse
	prompt := fmt.Sprintf(
		"Plan a literature review outline (title + section titles) in language %q, covering the following papers:\n\n%s",
		rc.language, paperContextText(rc.papers),
	)
	err := llm.StructuredCompletion(ctx, llm.CompletionRequest{
		Model:    rc.model,
		ModelID:  rc.modelID,
		NodeID:   "writer.outline",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Schema:   llm.DraftOutlineSchema,
		Tracker:  rc.d.Tracker,
		Tokens:   rc.d.Tokens,
	}, &outlineResp)
	if err != nil {
		return nil, nil, nil, err
	}

	outline := &session.DraftOutline{Title: outlineResp.Title, SectionTitles: outlineResp.SectionTitles}
	sections := make([]session.Section, len(outline.SectionTitles))

	var wg sync.WaitGroup
	wg.Add(len(outline.SectionTitles))
	var mu sync.Mutex
	for i, title := range outline.SectionTitles {
		i, title := i, title
		go func() {
			defer wg.Done()
			content, err := writeSection(ctx, rc, outline.Title, title)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logs = append(logs, fmt.Sprintf("section %q generation failed: %v", title, err))
				sections[i] = session.Section{Heading: title, Content: fmt.Sprintf("[Generation failed: %v]", err)}
				return
			}
			sections[i] = session.Section{Heading: title, Content: content}
		}()
	}
	wg.Wait()

	return &session.Draft{Title: outline.Title, Sections: sections}, outline, logs, nil
}

func writeSection(ctx context.Context, rc requestContext, draftTitle, sectionTitle string) (string, error) {
	var resp sectionContentResponse
	prompt := fmt.Sprintf(
		"Write the %q section of a literature review titled %q, in language %q, in at most "+
			"roughly %d tokens. Cite papers using {cite:N} markers matching the paper list below.\n\n%s",
		sectionTitle, draftTitle, rc.language, sectionTokenCeiling(len(rc.papers)), paperContextText(rc.papers),
	)
	err := llm.StructuredCompletion(ctx, llm.CompletionRequest{
		Model:    rc.model,
		ModelID:  rc.modelID,
		NodeID:   "writer.section",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Schema:   llm.SectionContentSchema,
		Tracker:  rc.d.Tracker,
		Tokens:   rc.d.Tokens,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// writeRetryDraft is the QA-failure retry mode: one LM call for the whole
// draft, with correction guidance appended to the prompt — a structured
// per-error instruction list when reflection ran, else the first three raw
// qa_errors.
func writeRetryDraft(ctx context.Context, rc requestContext, s session.State) (*session.Draft, []string, error) {
	var guidance strings.Builder
	if s.Reflection != nil && len(s.Reflection.Entries) > 0 {
		guidance.WriteString("Fix the following issues:\n")
		for _, e := range s.Reflection.Entries {
			fmt.Fprintf(&guidance, "- [%s] %s\n", e.ErrorCategory, e.FixStrategy)
		}
	} else {
		guidance.WriteString("Fix the following issues:\n")
		n := len(s.QAErrors)
		if n > 3 {
			n = 3
		}
		for _, e := range s.QAErrors[:n] {
			fmt.Fprintf(&guidance, "- %s\n", e)
		}
	}

	prompt := fmt.Sprintf(
		"Rewrite the full literature review draft in language %q, in at most roughly %d tokens, "+
			"covering the papers below, addressing the following corrections.\n\n%s\n\nPapers:\n%s",
		rc.language, draftTokenCeiling(len(rc.papers)), guidance.String(), paperContextText(rc.papers),
	)
	return writeFullDraft(ctx, rc, prompt)
}

// writeContinuationDraft is the follow-up-turn mode: one LM call, with an
// addendum summarizing the existing draft and recent conversation context.
func writeContinuationDraft(ctx context.Context, rc requestContext, s session.State) (*session.Draft, []string, error) {
	var addendum strings.Builder
	if s.FinalDraft != nil {
		fmt.Fprintf(&addendum, "The existing draft is titled %q with sections:\n", s.FinalDraft.Title)
		for _, sec := range s.FinalDraft.Sections {
			fmt.Fprintf(&addendum, "- %s\n", sec.Heading)
		}
	}
	if len(s.Messages) > 0 {
		addendum.WriteString("\nRecent conversation:\n")
		for _, m := range recentMessages(s.Messages, MaxConversationTurns) {
			fmt.Fprintf(&addendum, "%s: %s\n", m.Role, m.Content)
		}
	}

	prompt := fmt.Sprintf(
		"Continue the literature review in language %q, in at most roughly %d tokens, per the new "+
			"request: %q.\n\n%s\n\nPapers:\n%s",
		rc.language, draftTokenCeiling(len(rc.papers)), s.UserQuery, addendum.String(), paperContextText(rc.papers),
	)
	return writeFullDraft(ctx, rc, prompt)
}

func writeFullDraft(ctx context.Context, rc requestContext, prompt string) (*session.Draft, []string, error) {
	var resp fullDraftResponse
	err := llm.StructuredCompletion(ctx, llm.CompletionRequest{
		Model:    rc.model,
		ModelID:  rc.modelID,
		NodeID:   "writer.full_draft",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Schema:   llm.FullDraftSchema,
		Tracker:  rc.d.Tracker,
		Tokens:   rc.d.Tokens,
	}, &resp)
	if err != nil {
		return nil, nil, err
	}
	sections := make([]session.Section, len(resp.Sections))
	for i, s := range resp.Sections {
		sections[i] = session.Section{Heading: s.Heading, Content: s.Content}
	}
	return &session.Draft{Title: resp.Title, Sections: sections}, nil, nil
}

// recentMessages returns the last 2*maxTurns messages, preserving order.
func recentMessages(messages []session.Message, maxTurns int) []session.Message {
	limit := 2 * maxTurns
	if len(messages) <= limit {
		return messages
	}
	return messages[len(messages)-limit:]
}
