package agents

import (
	"context"
	"fmt"

	"github.com/dshills/langgraph-go/graph"

	"github.com/CAICAIIs/Auto-Scholar/llm"
	"github.com/CAICAIIs/Auto-Scholar/router"
	"github.com/CAICAIIs/Auto-Scholar/session"
)

type planResponse struct {
	Reasoning    string `json:"reasoning"`
	SubQuestions []struct {
		Question        string   `json:"question"`
		Keywords         []string `json:"keywords"`
		PreferredSource  string   `json:"preferred_source"`
		Priority         int      `json:"priority"`
		EstimatedPapers  int      `json:"estimated_papers"`
	} `json:"sub_questions"`
}

// Planner decomposes the user's query into a ResearchPlan of prioritized
// sub-questions, each tagged with the source it should be searched against.
func Planner(d *Deps) graph.NodeFunc[session.State] {
	return func(ctx context.Context, s session.State) graph.NodeResult[session.State] {
		model, modelID, ok := d.modelFor(router.TaskPlanning)
		if !ok {
			return graph.NodeResult[session.State]{Err: fmt.Errorf("planner: no model available for task %q", router.TaskPlanning)}
		}

		prompt := fmt.Sprintf(
			"Decompose this literature review request into 3-6 prioritized sub-questions, "+
				"each with search keywords and a preferred source (%s, %s, or %s).\n\nRequest: %s",
			session.SourceSemanticScholar, session.SourceArxiv, session.SourcePubMed, s.UserQuery,
		)

		var resp planResponse
		err := llm.StructuredCompletion(ctx, llm.CompletionRequest{
			Model:    model,
			ModelID:  modelID,
			NodeID:   "planner",
			Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
			Schema:   llm.ResearchPlanSchema,
			Tracker:  d.Tracker,
			Tokens:   d.Tokens,
		}, &resp)
		if err != nil {
			return graph.NodeResult[session.State]{Err: fmt.Errorf("planner: %w", err)}
		}

		plan := &session.ResearchPlan{Reasoning: resp.Reasoning}
		for _, sq := range resp.SubQuestions {
			plan.SubQuestions = append(plan.SubQuestions, session.SubQuestion{
				Question:        sq.Question,
				Keywords:        sq.Keywords,
				PreferredSource: sq.PreferredSource,
				Priority:        sq.Priority,
				EstimatedPapers: sq.EstimatedPapers,
			})
		}

		delta := CopyState(s)
		delta.ResearchPlan = plan
		delta.ModelID = modelID
		delta.Logs = appendLog(nil, "planner", fmt.Sprintf("produced %d sub-questions", len(plan.SubQuestions)))
		delta.AgentHandoffs = appendHandoff(s, "planner")

		return graph.NodeResult[session.State]{Delta: delta, Route: graph.Goto("retriever")}
	}
}
