package agents

import (
	"context"
	"fmt"

	"github.com/dshills/langgraph-go/graph"

	"github.com/CAICAIIs/Auto-Scholar/session"
)

// DefaultSourceSearchLimit bounds a per-keyword, per-source search when no
// research plan supplies an estimated paper count.
const DefaultSourceSearchLimit = 10

// Retriever dispatches search_keywords (or, when a research plan exists,
// each sub-question) against the configured source adapters, skipping
// sources the FailureTracker has temporarily benched, and deduplicates the
// combined results by paper_id. It is the last node before the
// human-approval pause: it always routes via Stop(), whether or not any
// candidates were found, since the pause boundary sits structurally
// between retriever and extractor regardless of the retrieval outcome.
func Retriever(d *Deps) graph.NodeFunc[session.State] {
	return func(ctx context.Context, s session.State) graph.NodeResult[session.State] {
		delta := CopyState(s)

		hasPlan := s.ResearchPlan != nil && len(s.ResearchPlan.SubQuestions) > 0
		if !hasPlan && len(s.SearchKeywords) == 0 {
			delta.CandidatePapers = nil
			delta.Logs = appendLog(nil, "retriever", "no research plan or search keywords; nothing to retrieve")
			delta.AgentHandoffs = appendHandoff(s, "retriever")
			return graph.NodeResult[session.State]{Delta: delta, Route: graph.Stop()}
		}

		byID := map[string]session.PaperMetadata{}
		var order []string
		var logs []string

		record := func(papers []session.PaperMetadata) {
			for _, p := range papers {
				if _, exists := byID[p.PaperID]; !exists {
					order = append(order, p.PaperID)
				}
				byID[p.PaperID] = p
			}
		}

		dispatch := func(source, question string, keywords []string, limit int) {
			adapter, ok := d.Sources[source]
			if !ok {
				logs = append(logs, fmt.Sprintf("no adapter configured for source %q, skipping", source))
				return
			}
			if d.FailureTracker != nil && d.FailureTracker.ShouldSkip(source) {
				logs = append(logs, fmt.Sprintf("source %q temporarily skipped after repeated failures", source))
				return
			}
			papers, err := adapter.SearchByKeywords(ctx, keywords, limit)
			if err != nil {
				if d.FailureTracker != nil {
					d.FailureTracker.RecordFailure(source)
				}
				logs = append(logs, fmt.Sprintf("search failed for %q (%q): %v", question, source, err))
				return
			}
			record(papers)
		}

		if hasPlan {
			for _, sq := range s.ResearchPlan.SubQuestions {
				limit := sq.EstimatedPapers
				if limit <= 0 {
					limit = DefaultSourceSearchLimit
				}
				dispatch(sq.PreferredSource, sq.Question, sq.Keywords, limit)
			}
		} else {
			for _, keyword := range s.SearchKeywords {
				for _, source := range s.SearchSources {
					dispatch(source, keyword, []string{keyword}, DefaultSourceSearchLimit)
				}
			}
		}

		candidates := make([]session.PaperMetadata, 0, len(order))
		for _, id := range order {
			candidates = append(candidates, byID[id])
		}
		if len(candidates) > ContextMaxPapers {
			logs = append(logs, fmt.Sprintf("retrieved %d candidates, truncating to CONTEXT_MAX_PAPERS=%d", len(candidates), ContextMaxPapers))
			candidates = candidates[:ContextMaxPapers]
		}

		delta.CandidatePapers = candidates
		delta.Logs = appendLog(nil, "retriever", fmt.Sprintf("retrieved %d unique candidates", len(candidates)))
		delta.Logs = append(delta.Logs, logs...)
		delta.AgentHandoffs = appendHandoff(s, "retriever")

		// Pause for human approval of the candidate set before extraction.
		return graph.NodeResult[session.State]{Delta: delta, Route: graph.Stop()}
	}
}
