package citation

import (
	"context"
	"testing"

	"github.com/dshills/langgraph-go/graph/model"

	"github.com/CAICAIIs/Auto-Scholar/llm"
	"github.com/CAICAIIs/Auto-Scholar/session"
)

func TestVerifyAll_UsesAbstractFallbackWhenNoVectorStore(t *testing.T) {
	mock := &llm.MockChatModel{
		Responses: []model.ChatOut{
			{Text: `{"label": "entails", "confidence": 0.9, "evidence_snippet": "x"}`},
		},
	}
	v := &Verifier{Model: mock, ModelID: "gpt-4o", Concurrency: 2}

	claims := []Claim{{ID: "c1", CitationIndices: []int{1}}}
	papers := map[int]session.PaperMetadata{1: {PaperID: "p1", Title: "Paper One", Abstract: "Attention is all you need."}}

	results := v.VerifyAll(context.Background(), claims, papers)
	if len(results) != 1 {
		t.Fatalf("results = %+v, want len 1", results)
	}
	if results[0].Label != session.EntailmentEntails {
		t.Fatalf("Label = %q, want entails", results[0].Label)
	}
}

func TestVerifyAll_SkipsClaimsWithUnknownCitationIndex(t *testing.T) {
	mock := &llm.MockChatModel{}
	v := &Verifier{Model: mock, ModelID: "gpt-4o"}

	claims := []Claim{{ID: "c1", CitationIndices: []int{99}}}
	results := v.VerifyAll(context.Background(), claims, map[int]session.PaperMetadata{})
	if len(results) != 0 {
		t.Fatalf("results = %+v, want empty", results)
	}
	if mock.CallCount() != 0 {
		t.Fatalf("CallCount = %d, want 0", mock.CallCount())
	}
}

func TestVerifyAll_EmptyAbstractIsInsufficientWithoutCallingModel(t *testing.T) {
	mock := &llm.MockChatModel{}
	v := &Verifier{Model: mock, ModelID: "gpt-4o"}

	claims := []Claim{{ID: "c1", CitationIndices: []int{1}}}
	papers := map[int]session.PaperMetadata{1: {PaperID: "p1"}}

	results := v.VerifyAll(context.Background(), claims, papers)
	if len(results) != 1 || results[0].Label != session.EntailmentInsufficient {
		t.Fatalf("results = %+v", results)
	}
	if mock.CallCount() != 0 {
		t.Fatalf("CallCount = %d, want 0 (no LM call for empty evidence)", mock.CallCount())
	}
}

func TestSummarize(t *testing.T) {
	results := []Verification{
		{Label: session.EntailmentEntails},
		{Label: session.EntailmentEntails},
		{Label: session.EntailmentInsufficient},
		{Label: session.EntailmentContradicts},
		{Err: errTest{}},
	}
	summary := Summarize(10, results)
	if summary.TotalClaims != 10 || summary.Entails != 2 || summary.Insufficient != 1 ||
		summary.Contradicts != 1 || len(summary.Failed) != 1 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestEntailmentRatio(t *testing.T) {
	s := &session.ClaimVerificationSummary{Entails: 8, Insufficient: 1, Contradicts: 1}
	if got := EntailmentRatio(s); got != 0.8 {
		t.Fatalf("ratio = %v, want 0.8", got)
	}
	if got := EntailmentRatio(nil); got != 1.0 {
		t.Fatalf("nil ratio = %v, want 1.0", got)
	}
	if got := EntailmentRatio(&session.ClaimVerificationSummary{}); got != 1.0 {
		t.Fatalf("no-judged ratio = %v, want 1.0", got)
	}
}
