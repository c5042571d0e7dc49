package citation

import (
	"context"
	"testing"

	"github.com/dshills/langgraph-go/graph/model"

	"github.com/CAICAIIs/Auto-Scholar/llm"
	"github.com/CAICAIIs/Auto-Scholar/session"
)

func TestCitationIndices(t *testing.T) {
	idx := citationIndices("Transformers scale well {cite:1} but need data {cite:2} {cite:1}")
	if len(idx) != 3 || idx[0] != 1 || idx[1] != 2 || idx[2] != 1 {
		t.Fatalf("idx = %v", idx)
	}
}

func TestExtractClaims_SkipsSectionsWithoutCitations(t *testing.T) {
	mock := &llm.MockChatModel{
		Responses: []model.ChatOut{
			{Text: `{"claims": [{"text": "Attention scales well {cite:1}", "citation_indices": [1]}]}`},
		},
	}
	sections := []session.Section{
		{Heading: "Intro", Content: "No citations here."},
		{Heading: "Related Work", Content: "Attention scales well {cite:1}."},
	}

	claims, logs := ExtractClaims(context.Background(), sections, mock, "gpt-4o", nil, nil)
	if len(logs) != 0 {
		t.Fatalf("unexpected logs: %v", logs)
	}
	if len(claims) != 1 {
		t.Fatalf("claims = %+v, want 1", claims)
	}
	if claims[0].SectionIndex != 1 {
		t.Fatalf("SectionIndex = %d, want 1", claims[0].SectionIndex)
	}
	if mock.CallCount() != 1 {
		t.Fatalf("CallCount = %d, want 1", mock.CallCount())
	}
}

func TestExtractClaims_FallsBackPerSectionOnBatchFailure(t *testing.T) {
	mock := &llm.MockChatModel{Err: errTest{}}
	sections := []session.Section{
		{Heading: "A", Content: "Claim one {cite:1}."},
	}

	claims, logs := ExtractClaims(context.Background(), sections, mock, "gpt-4o", nil, nil)
	if len(claims) != 0 {
		t.Fatalf("expected no claims recovered, got %+v", claims)
	}
	if len(logs) == 0 {
		t.Fatal("expected failure logs")
	}
}

type errTest struct{}

func (errTest) Error() string { return "boom" }
