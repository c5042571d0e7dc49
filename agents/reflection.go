package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/dshills/langgraph-go/graph"

	"github.com/CAICAIIs/Auto-Scholar/llm"
	"github.com/CAICAIIs/Auto-Scholar/router"
	"github.com/CAICAIIs/Auto-Scholar/session"
)

type reflectionResponse struct {
	Entries []struct {
		ErrorCategory   string `json:"error_category"`
		ErrorDetail     string `json:"error_detail"`
		FixStrategy     string `json:"fix_strategy"`
		FixableByWriter bool   `json:"fixable_by_writer"`
	} `json:"entries"`
	ShouldRetry bool   `json:"should_retry"`
	RetryTarget string `json:"retry_target"`
	Summary     string `json:"summary"`
}

// Reflection diagnoses the critic's qa_errors and decides whether (and
// where) to retry. It is skipped entirely when qa_errors is empty — the
// critic only routes here when it isn't.
func Reflection(d *Deps) graph.NodeFunc[session.State] {
	return func(ctx context.Context, s session.State) graph.NodeResult[session.State] {
		delta := CopyState(s)

		if len(s.QAErrors) == 0 {
			delta.Logs = appendLog(nil, "reflection", "no qa_errors; skipping")
			delta.AgentHandoffs = appendHandoff(s, "reflection")
			return graph.NodeResult[session.State]{Delta: delta, Route: graph.Stop()}
		}

		model, modelID, ok := d.modelFor(router.TaskReflection)
		if !ok {
			return graph.NodeResult[session.State]{Err: fmt.Errorf("reflection: no model available for task %q", router.TaskReflection)}
		}

		prompt := fmt.Sprintf(
			"The following QA errors were found in a literature review draft. For each, classify it as one of "+
				"citation_out_of_bounds, missing_citation, uncited_paper, low_entailment, or structural, explain the "+
				"error, propose a fix_strategy, and say whether it is fixable_by_writer. Then decide should_retry and "+
				"retry_target (\"writer\" or \"retriever\").\n\nQA errors:\n- %s",
			strings.Join(s.QAErrors, "\n- "),
		)

		var resp reflectionResponse
		err := llm.StructuredCompletion(ctx, llm.CompletionRequest{
			Model:    model,
			ModelID:  modelID,
			NodeID:   "reflection",
			Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
			Schema:   llm.ReflectionSchema,
			Tracker:  d.Tracker,
			Tokens:   d.Tokens,
		}, &resp)
		if err != nil {
			return graph.NodeResult[session.State]{Err: fmt.Errorf("reflection: %w", err)}
		}

		reflection := &session.Reflection{
			ShouldRetry: resp.ShouldRetry,
			RetryTarget: resp.RetryTarget,
			Summary:     resp.Summary,
		}
		if reflection.RetryTarget == "" {
			reflection.RetryTarget = session.RetryTargetWriter
		}
		for _, e := range resp.Entries {
			reflection.Entries = append(reflection.Entries, session.ReflectionEntry{
				ErrorCategory:   e.ErrorCategory,
				ErrorDetail:     e.ErrorDetail,
				FixStrategy:     e.FixStrategy,
				FixableByWriter: e.FixableByWriter,
			})
		}

		delta.Reflection = reflection
		delta.Logs = appendLog(nil, "reflection", fmt.Sprintf("produced %d entries, should_retry=%v, target=%s", len(reflection.Entries), reflection.ShouldRetry, reflection.RetryTarget))
		delta.AgentHandoffs = appendHandoff(s, "reflection")

		return graph.NodeResult[session.State]{Delta: delta, Route: routeAfterReflection(delta)}
	}
}

// routeAfterReflection implements the reflection router (spec §4.6):
// terminal when there is no reflection, should_retry is false, or
// retry_count has reached MAX_QA_RETRIES; otherwise route to retry_target.
func routeAfterReflection(s session.State) graph.Next {
	if s.Reflection == nil || !s.Reflection.ShouldRetry || s.RetryCount >= MaxQARetries {
		return graph.Stop()
	}
	target := s.Reflection.RetryTarget
	if target == "" {
		target = session.RetryTargetWriter
	}
	return graph.Goto(target)
}
