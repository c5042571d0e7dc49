package agents

import (
	"context"
	"fmt"
	"sync"

	"github.com/dshills/langgraph-go/graph"

	"github.com/CAICAIIs/Auto-Scholar/llm"
	"github.com/CAICAIIs/Auto-Scholar/router"
	"github.com/CAICAIIs/Auto-Scholar/session"
)

type coreContributionResponse struct {
	CoreContribution string `json:"core_contribution"`
}

type structuredContributionResponse struct {
	Problem     string `json:"problem"`
	Method      string `json:"method"`
	Novelty     string `json:"novelty"`
	Dataset     string `json:"dataset"`
	Baseline    string `json:"baseline"`
	Results     string `json:"results"`
	Limitations string `json:"limitations"`
	FutureWork  string `json:"future_work"`
}

// Extractor runs after the human-approval pause. It prioritizes the
// approved papers by sub-question keyword match, selects the first
// CONTEXT_MAX_PAPERS of them, extracts a core contribution and a
// structured contribution per paper under the global LM semaphore (fail-any
// per paper, skip-and-continue across papers), and opportunistically
// enriches any still-missing pdf_url via the full-text adapter.
func Extractor(d *Deps) graph.NodeFunc[session.State] {
	return func(ctx context.Context, s session.State) graph.NodeResult[session.State] {
		delta := CopyState(s)
		var logs []string

		var approved []session.PaperMetadata
		for _, p := range s.CandidatePapers {
			if p.IsApproved {
				approved = append(approved, p)
			}
		}
		delta.ApprovedPapers = approved

		if len(approved) == 0 {
			delta.SelectedPapers = nil
			delta.Logs = appendLog(nil, "extractor", "no approved papers; nothing to extract")
			delta.AgentHandoffs = appendHandoff(s, "extractor")
			return graph.NodeResult[session.State]{Delta: delta, Route: graph.Goto("writer")}
		}

		prioritized := PrioritizeBySubQuestions(approved, s.ResearchPlan)
		if len(prioritized) > ContextMaxPapers {
			logs = append(logs, fmt.Sprintf("approved set has %d papers, truncating to CONTEXT_MAX_PAPERS=%d", len(prioritized), ContextMaxPapers))
			prioritized = prioritized[:ContextMaxPapers]
		}

		model, modelID, ok := d.modelFor(router.TaskExtraction)
		if !ok {
			return graph.NodeResult[session.State]{Err: fmt.Errorf("extractor: no model available for task %q", router.TaskExtraction)}
		}

		sem := make(chan struct{}, d.llmConcurrency())
		extracted := make([]session.PaperMetadata, len(prioritized))
		errs := make([]error, len(prioritized))

		var wg sync.WaitGroup
		wg.Add(len(prioritized))
		for i, p := range prioritized {
			i, p := i, p
			go func() {
				defer wg.Done()
				extracted[i], errs[i] = extractPaper(ctx, d, model, modelID, p, sem)
			}()
		}
		wg.Wait()

		selected := make([]session.PaperMetadata, 0, len(prioritized))
		for i, p := range prioritized {
			if errs[i] != nil {
				logs = append(logs, fmt.Sprintf("extraction failed for %q (%s): %v", p.Title, p.PaperID, errs[i]))
				continue
			}
			selected = append(selected, extracted[i])
		}

		if d.FullText != nil {
			selected = enrichMissingPDFs(ctx, d, selected, &logs)
		}

		delta.SelectedPapers = selected
		delta.Logs = appendLog(nil, "extractor", fmt.Sprintf("extracted %d of %d approved papers", len(selected), len(prioritized)))
		delta.Logs = append(delta.Logs, logs...)
		delta.AgentHandoffs = appendHandoff(s, "extractor")

		return graph.NodeResult[session.State]{Delta: delta, Route: graph.Goto("writer")}
	}
}

// extractPaper issues the two concurrent LM calls for one paper, each
// acquiring a permit from the shared global LM semaphore. Both must
// succeed (fail-any); on either failure the paper is dropped by the caller.
func extractPaper(ctx context.Context, d *Deps, model llm.ChatModel, modelID string, p session.PaperMetadata, sem chan struct{}) (session.PaperMetadata, error) {
	var wg sync.WaitGroup
	var coreErr, structErr error
	var core coreContributionResponse
	var structured structuredContributionResponse

	wg.Add(2)
	go func() {
		defer wg.Done()
		sem <- struct{}{}
		defer func() { <-sem }()
		coreErr = llm.StructuredCompletion(ctx, llm.CompletionRequest{
			Model:   model,
			ModelID: modelID,
			NodeID:  "extractor.core_contribution",
			Messages: []llm.Message{{Role: llm.RoleUser, Content: fmt.Sprintf(
				"Summarize the core contribution of this paper in 2-3 sentences.\n\nTitle: %s\nAbstract: %s",
				p.Title, p.Abstract,
			)}},
			Schema:  llm.CoreContributionSchema,
			Tracker: d.Tracker,
			Tokens:  d.Tokens,
		}, &core)
	}()
	go func() {
		defer wg.Done()
		sem <- struct{}{}
		defer func() { <-sem }()
		structErr = llm.StructuredCompletion(ctx, llm.CompletionRequest{
			Model:   model,
			ModelID: modelID,
			NodeID:  "extractor.structured_contribution",
			Messages: []llm.Message{{Role: llm.RoleUser, Content: fmt.Sprintf(
				"Extract a structured summary of this paper's problem, method, novelty, dataset, "+
					"baseline, results, limitations, and future work. Leave a field empty if the "+
					"paper doesn't address it.\n\nTitle: %s\nAbstract: %s",
				p.Title, p.Abstract,
			)}},
			Schema:  llm.StructuredContributionSchema,
			Tracker: d.Tracker,
			Tokens:  d.Tokens,
		}, &structured)
	}()
	wg.Wait()

	if coreErr != nil {
		return p, coreErr
	}
	if structErr != nil {
		return p, structErr
	}

	p.CoreContribution = core.CoreContribution
	p.StructuredContribution = &session.StructuredContribution{
		Problem:     structured.Problem,
		Method:      structured.Method,
		Novelty:     structured.Novelty,
		Dataset:     structured.Dataset,
		Baseline:    structured.Baseline,
		Results:     structured.Results,
		Limitations: structured.Limitations,
		FutureWork:  structured.FutureWork,
	}
	return p, nil
}

// enrichMissingPDFs calls the full-text adapter for papers lacking a
// pdf_url and merges the result back in by paper_id, never overwriting an
// already-populated pdf_url.
func enrichMissingPDFs(ctx context.Context, d *Deps, papers []session.PaperMetadata, logs *[]string) []session.PaperMetadata {
	var missing []session.PaperMetadata
	for _, p := range papers {
		if p.PDFURL == "" {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return papers
	}

	enriched, err := d.FullText.Enrich(ctx, missing, d.fullTextConcurrency())
	if err != nil {
		*logs = append(*logs, fmt.Sprintf("full-text enrichment failed: %v", err))
		return papers
	}

	byID := make(map[string]string, len(enriched))
	for _, p := range enriched {
		if p.PDFURL != "" {
			byID[p.PaperID] = p.PDFURL
		}
	}
	for i, p := range papers {
		if p.PDFURL == "" {
			if url, ok := byID[p.PaperID]; ok {
				papers[i].PDFURL = url
			}
		}
	}
	return papers
}
