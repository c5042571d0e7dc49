package agents

import (
	"context"
	"fmt"

	"github.com/dshills/langgraph-go/graph"

	"github.com/CAICAIIs/Auto-Scholar/citation"
	"github.com/CAICAIIs/Auto-Scholar/session"
)

// Critic runs rule-based QA over the final draft, then — only if every
// rule passes and semantic verification is configured — the citation
// verification pipeline (§4.7). Rule failures and low-entailment failures
// both increment retry_count and populate qa_errors; a clean pass clears
// qa_errors and records the claim_verification summary.
//
// Per spec §9's resolution of the "approved_papers vs selected_papers"
// open question, the critic indexes citations into selected_papers — the
// same set the writer actually saw — not approved_papers.
func Critic(d *Deps) graph.NodeFunc[session.State] {
	return func(ctx context.Context, s session.State) graph.NodeResult[session.State] {
		delta := CopyState(s)

		if s.FinalDraft == nil || len(s.FinalDraft.Sections) == 0 {
			delta.QAErrors = nil
			delta.Logs = appendLog(nil, "critic", "no draft to review")
			delta.AgentHandoffs = appendHandoff(s, "critic")
			return graph.NodeResult[session.State]{Delta: delta, Route: graph.Stop()}
		}

		papers := s.SelectedPapers
		ruleErrors := ruleCheck(s.FinalDraft, papers)
		if len(ruleErrors) > 0 {
			delta.QAErrors = ruleErrors
			delta.RetryCount = s.RetryCount + 1
			delta.Logs = appendLog(nil, "critic", fmt.Sprintf("rule QA failed with %d error(s)", len(ruleErrors)))
			delta.AgentHandoffs = appendHandoff(s, "critic")
			return graph.NodeResult[session.State]{Delta: delta, Route: routeAfterCritic(delta)}
		}

		if d.Verifier == nil || len(papers) == 0 {
			delta.QAErrors = nil
			delta.Logs = appendLog(nil, "critic", "rule QA passed; semantic verification not configured")
			delta.AgentHandoffs = appendHandoff(s, "critic")
			return graph.NodeResult[session.State]{Delta: delta, Route: routeAfterCritic(delta)}
		}

		claims, claimLogs := citation.ExtractClaims(ctx, s.FinalDraft.Sections, d.Verifier.Model, d.Verifier.ModelID, d.Tracker, d.Tokens)
		papersByIndex := make(map[int]session.PaperMetadata, len(papers))
		for i, p := range papers {
			papersByIndex[i+1] = p
		}
		results := d.Verifier.VerifyAll(ctx, claims, papersByIndex)
		summary := citation.Summarize(len(claims), results)

		ratio := citation.EntailmentRatio(summary)
		delta.Logs = appendLog(nil, "critic", fmt.Sprintf("semantic verification: %d/%d entail (ratio %.2f)", summary.Entails, summary.TotalVerifications, ratio))
		delta.Logs = append(delta.Logs, claimLogs...)

		if summary.TotalVerifications > 0 && ratio < citation.MinEntailmentRatio {
			failed := summary.Failed
			if len(failed) > 3 {
				failed = failed[:3]
			}
			var qaErrors []string
			for _, f := range failed {
				qaErrors = append(qaErrors, fmt.Sprintf("low entailment: %s", f))
			}
			if len(qaErrors) == 0 {
				qaErrors = append(qaErrors, fmt.Sprintf("entailment ratio %.2f below minimum %.2f", ratio, citation.MinEntailmentRatio))
			}
			delta.QAErrors = qaErrors
			delta.RetryCount = s.RetryCount + 1
			delta.ClaimVerification = summary
			delta.AgentHandoffs = appendHandoff(s, "critic")
			return graph.NodeResult[session.State]{Delta: delta, Route: routeAfterCritic(delta)}
		}

		delta.QAErrors = nil
		delta.ClaimVerification = summary
		delta.AgentHandoffs = appendHandoff(s, "critic")
		return graph.NodeResult[session.State]{Delta: delta, Route: routeAfterCritic(delta)}
	}
}

// routeAfterCritic implements the critic router (spec §4.6): terminal on a
// clean pass, otherwise on to reflection.
func routeAfterCritic(delta session.State) graph.Next {
	if len(delta.QAErrors) == 0 {
		return graph.Stop()
	}
	return graph.Goto("reflection")
}

// ruleCheck runs the three rule-based checks against validRange =
// 1..len(papers):
//  1. every {cite:N} index is in range,
//  2. every section has at least one citation placeholder,
//  3. every index in 1..N appears in at least one section.
func ruleCheck(draft *session.Draft, papers []session.PaperMetadata) []string {
	var errs []string
	cited := make(map[int]bool)

	for _, sec := range draft.Sections {
		indices := citationIndicesInRange(sec.Content, len(papers))
		if bad := citationIndicesOutOfBounds(sec.Content, papers); len(bad) > 0 {
			errs = append(errs, fmt.Sprintf("section %q cites out-of-range index(es) %v (valid range 1..%d)", sec.Heading, bad, len(papers)))
		}
		if len(indices) == 0 {
			errs = append(errs, fmt.Sprintf("section %q has no citations", sec.Heading))
		}
		for _, idx := range indices {
			cited[idx] = true
		}
	}

	for i := 1; i <= len(papers); i++ {
		if !cited[i] {
			errs = append(errs, fmt.Sprintf("missing citation: paper [%d] (%s)", i, papers[i-1].PaperID))
		}
	}

	return errs
}

// citationIndicesInRange returns the distinct {cite:N} indices in content
// that fall within 1..max.
func citationIndicesInRange(content string, max int) []int {
	seen := map[int]bool{}
	var out []int
	for _, m := range citeMarkerRe.FindAllStringSubmatch(content, -1) {
		n := 0
		fmt.Sscanf(m[1], "%d", &n)
		if n >= 1 && n <= max && !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
