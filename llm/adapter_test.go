package llm

import (
	"context"
	"errors"
	"testing"
)

type coreContribution struct {
	CoreContribution string `json:"core_contribution"`
}

func TestStructuredCompletion_StrictParse(t *testing.T) {
	mock := &MockChatModel{Responses: []ChatOut{{Text: `{"core_contribution": "reduces inference latency"}`}}}

	var out coreContribution
	err := StructuredCompletion(context.Background(), CompletionRequest{
		Model:    mock,
		ModelID:  "gpt-4o-mini",
		NodeID:   "extractor",
		Messages: []Message{{Role: RoleUser, Content: "summarize"}},
		Schema:   CoreContributionSchema,
	}, &out)
	if err != nil {
		t.Fatalf("StructuredCompletion: %v", err)
	}
	if out.CoreContribution != "reduces inference latency" {
		t.Fatalf("CoreContribution = %q", out.CoreContribution)
	}
	if mock.CallCount() != 1 {
		t.Fatalf("CallCount = %d, want 1", mock.CallCount())
	}
}

func TestStructuredCompletion_RepairsFencedResponse(t *testing.T) {
	mock := &MockChatModel{Responses: []ChatOut{{Text: "```json\n{\"core_contribution\": \"novel attention variant\"}\n```"}}}

	var out coreContribution
	err := StructuredCompletion(context.Background(), CompletionRequest{
		Model:    mock,
		Messages: []Message{{Role: RoleSystem, Content: "you are an extractor"}},
		Schema:   CoreContributionSchema,
	}, &out)
	if err != nil {
		t.Fatalf("StructuredCompletion: %v", err)
	}
	if out.CoreContribution != "novel attention variant" {
		t.Fatalf("CoreContribution = %q", out.CoreContribution)
	}
}

func TestStructuredCompletion_RejectsEchoedSchema(t *testing.T) {
	mock := &MockChatModel{Responses: []ChatOut{
		{Text: `{"properties": {"core_contribution": {"type": "string"}}, "type": "object"}`},
	}}

	var out coreContribution
	err := StructuredCompletion(context.Background(), CompletionRequest{
		Model:    mock,
		Messages: []Message{{Role: RoleUser, Content: "summarize"}},
		Schema:   CoreContributionSchema,
		Backoff:  BackoffPolicy{MaxAttempts: 1},
	}, &out)

	var schemaErr *LmReturnedSchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected LmReturnedSchemaError, got %v", err)
	}
}

func TestStructuredCompletion_RetriesTransientUntilExhausted(t *testing.T) {
	mock := &MockChatModel{Err: errors.New("connection reset")}

	var out coreContribution
	err := StructuredCompletion(context.Background(), CompletionRequest{
		Model:    mock,
		Messages: []Message{{Role: RoleUser, Content: "summarize"}},
		Schema:   CoreContributionSchema,
		Backoff:  BackoffPolicy{MaxAttempts: 2, BaseDelay: 0, MaxDelay: 0},
	}, &out)

	var transient *TransientLmError
	if !errors.As(err, &transient) {
		t.Fatalf("expected TransientLmError after exhausting retries, got %v", err)
	}
	if mock.CallCount() != 2 {
		t.Fatalf("CallCount = %d, want 2 (initial + 1 retry)", mock.CallCount())
	}
}

func TestStructuredCompletion_Streams(t *testing.T) {
	mock := &MockStreamingChatModel{MockChatModel: MockChatModel{
		Responses: []ChatOut{{Text: `{"core_contribution": "streamed answer"}`}},
	}}

	var chunks []string
	ctx := WithTokenCallback(context.Background(), func(s string) { chunks = append(chunks, s) })

	var out coreContribution
	err := StructuredCompletion(ctx, CompletionRequest{
		Model:    mock,
		Messages: []Message{{Role: RoleUser, Content: "summarize"}},
		Schema:   CoreContributionSchema,
	}, &out)
	if err != nil {
		t.Fatalf("StructuredCompletion: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected at least one streamed chunk")
	}
	if out.CoreContribution != "streamed answer" {
		t.Fatalf("CoreContribution = %q", out.CoreContribution)
	}
}

func TestStructuredCompletion_RecordsCost(t *testing.T) {
	mock := &MockChatModel{Responses: []ChatOut{{Text: `{"core_contribution": "x"}`}}}
	tracker := NewCostTracker("run-1", "USD", nil)
	counter, err := NewTokenCounter()
	if err != nil {
		t.Fatalf("NewTokenCounter: %v", err)
	}

	var out coreContribution
	err = StructuredCompletion(context.Background(), CompletionRequest{
		Model:    mock,
		ModelID:  "some-unlisted-model",
		NodeID:   "extractor",
		Messages: []Message{{Role: RoleUser, Content: "summarize this paper"}},
		Schema:   CoreContributionSchema,
		Tracker:  tracker,
		Tokens:   counter,
	}, &out)
	if err != nil {
		t.Fatalf("StructuredCompletion: %v", err)
	}

	calls := tracker.Calls()
	if len(calls) != 1 {
		t.Fatalf("Calls = %d, want 1", len(calls))
	}
	if !calls[0].Estimated {
		t.Fatal("expected unlisted model to be flagged Estimated")
	}
	if calls[0].CostUSD <= 0 {
		t.Fatalf("CostUSD = %v, want > 0 under conservative default pricing", calls[0].CostUSD)
	}
}
