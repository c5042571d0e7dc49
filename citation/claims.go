// Package citation implements claim extraction and entailment verification
// (C7): pulling atomic, citation-tagged claims out of drafted sections and
// checking each cited paper actually supports its claim.
package citation

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/CAICAIIs/Auto-Scholar/llm"
	"github.com/CAICAIIs/Auto-Scholar/session"
)

// ClaimBatchSize groups this many sections per claim-extraction LM call.
const ClaimBatchSize = 3

var citeMarker = regexp.MustCompile(`\{cite:(\d+)\}`)

// Claim is one atomic, citation-tagged assertion pulled from a section.
type Claim struct {
	ID              string
	SectionIndex    int
	Text            string
	CitationIndices []int
}

// citationIndices returns every {cite:N} index appearing in text, in
// first-occurrence order (duplicates kept — a claim may cite the same
// paper twice on purpose).
func citationIndices(text string) []int {
	var out []int
	for _, m := range citeMarker.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			out = append(out, n)
		}
	}
	return out
}

// ExtractClaims extracts atomic claims from every section that contains at
// least one {cite:N} marker, batching ClaimBatchSize sections per LM call
// to amortize cost; a batch failure falls back to one call per section in
// the batch.
func ExtractClaims(ctx context.Context, sections []session.Section, model llm.ChatModel, modelID string, tracker *llm.CostTracker, tokens *llm.TokenCounter) ([]Claim, []string) {
	var logs []string

	var citable []indexedSectionAlias
	for i, s := range sections {
		if citeMarker.MatchString(s.Content) {
			citable = append(citable, indexedSectionAlias{index: i, section: s})
		}
	}

	var claims []Claim
	for start := 0; start < len(citable); start += ClaimBatchSize {
		end := start + ClaimBatchSize
		if end > len(citable) {
			end = len(citable)
		}
		batch := citable[start:end]

		batchClaims, err := extractBatch(ctx, batch, model, modelID, tracker, tokens)
		if err != nil {
			logs = append(logs, fmt.Sprintf("claim extraction batch failed, falling back per-section: %v", err))
			for _, is := range batch {
				one, err := extractBatch(ctx, []indexedSectionAlias{is}, model, modelID, tracker, tokens)
				if err != nil {
					logs = append(logs, fmt.Sprintf("claim extraction failed for section %d: %v", is.index, err))
					continue
				}
				claims = append(claims, one...)
			}
			continue
		}
		claims = append(claims, batchClaims...)
	}

	return claims, logs
}

type indexedSectionAlias = struct {
	index   int
	section session.Section
}

type extractionResponse struct {
	Claims []struct {
		Text            string `json:"text"`
		CitationIndices []int  `json:"citation_indices"`
	} `json:"claims"`
}

func extractBatch(ctx context.Context, batch []indexedSectionAlias, model llm.ChatModel, modelID string, tracker *llm.CostTracker, tokens *llm.TokenCounter) ([]Claim, error) {
	var b strings.Builder
	b.WriteString("Extract atomic claims from the following sections. Each claim must retain its {cite:N} markers verbatim.\n\n")
	for _, is := range batch {
		fmt.Fprintf(&b, "[section %d] %s\n%s\n\n", is.index, is.section.Heading, is.section.Content)
	}

	var resp extractionResponse
	err := llm.StructuredCompletion(ctx, llm.CompletionRequest{
		Model:    model,
		ModelID:  modelID,
		NodeID:   "claim_extraction",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: b.String()}},
		Schema:   llm.ClaimExtractionSchema,
		Tracker:  tracker,
		Tokens:   tokens,
	}, &resp)
	if err != nil {
		return nil, err
	}

	claims := make([]Claim, 0, len(resp.Claims))
	perSectionCounter := map[int]int{}
	targetSection := batch[0].index
	for _, c := range resp.Claims {
		idx := citationIndices(c.Text)
		if len(idx) == 0 {
			idx = c.CitationIndices
		}
		sec := targetSection
		if len(batch) > 1 {
			sec = nearestSection(batch, c.Text)
		}
		perSectionCounter[sec]++
		claims = append(claims, Claim{
			ID:              fmt.Sprintf("s%d_c%d", sec, perSectionCounter[sec]),
			SectionIndex:    sec,
			Text:            c.Text,
			CitationIndices: idx,
		})
	}
	return claims, nil
}

// nearestSection picks the batch section whose content shares the most
// citation indices with claimText, defaulting to the batch's first
// section. This is a heuristic stand-in for the LM not being asked to tag
// its own claims with a section index.
func nearestSection(batch []indexedSectionAlias, claimText string) int {
	claimIdx := citationIndices(claimText)
	best := batch[0].index
	bestScore := -1
	for _, is := range batch {
		secIdx := citationIndices(is.section.Content)
		score := overlap(claimIdx, secIdx)
		if score > bestScore {
			bestScore = score
			best = is.index
		}
	}
	return best
}

func overlap(a, b []int) int {
	set := make(map[int]bool, len(b))
	for _, v := range b {
		set[v] = true
	}
	n := 0
	for _, v := range a {
		if set[v] {
			n++
		}
	}
	return n
}
