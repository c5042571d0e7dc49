package agents

import (
	"testing"

	"github.com/CAICAIIs/Auto-Scholar/session"
)

func TestNormalizeCitations(t *testing.T) {
	papers := []session.PaperMetadata{
		{PaperID: "p1"},
		{PaperID: "p2"},
		{PaperID: "p3"},
	}

	content := "Transformers scale well {cite:1}, though {cite:2} disputes this, and {cite:1} agrees again. {cite:9} is out of range."
	out, cited := NormalizeCitations(content, papers)

	want := "Transformers scale well [1], though [2] disputes this, and [1] agrees again. {cite:9} is out of range."
	if out != want {
		t.Fatalf("NormalizeCitations content = %q, want %q", out, want)
	}
	if len(cited) != 2 || cited[0] != "p1" || cited[1] != "p2" {
		t.Fatalf("NormalizeCitations cited = %v, want [p1 p2] (first-seen order, deduplicated)", cited)
	}
}

func TestNormalizeCitationsNoMarkers(t *testing.T) {
	out, cited := NormalizeCitations("no markers here", nil)
	if out != "no markers here" {
		t.Fatalf("expected content unchanged, got %q", out)
	}
	if len(cited) != 0 {
		t.Fatalf("expected no cited ids, got %v", cited)
	}
}

func TestCitationIndicesOutOfBounds(t *testing.T) {
	papers := []session.PaperMetadata{{PaperID: "p1"}, {PaperID: "p2"}}
	bad := citationIndicesOutOfBounds("{cite:1} {cite:3} {cite:0} {cite:2}", papers)
	if len(bad) != 2 || bad[0] != 3 || bad[1] != 0 {
		t.Fatalf("citationIndicesOutOfBounds = %v, want [3 0]", bad)
	}
}

func TestKeywordScore(t *testing.T) {
	cases := []struct {
		title    string
		keywords []string
		want     int
	}{
		{"Attention Is All You Need", []string{"attention", "transformer"}, 1},
		{"A Survey of Transformer Attention Mechanisms", []string{"attention", "transformer"}, 2},
		{"Unrelated Paper", []string{"attention"}, 0},
		{"Repeated Repeated Keyword", []string{"repeated", "REPEATED"}, 1},
	}
	for _, tc := range cases {
		if got := keywordScore(tc.title, tc.keywords); got != tc.want {
			t.Errorf("keywordScore(%q, %v) = %d, want %d", tc.title, tc.keywords, got, tc.want)
		}
	}
}

func TestPrioritizeBySubQuestionsNoPlan(t *testing.T) {
	papers := []session.PaperMetadata{{PaperID: "p1"}, {PaperID: "p2"}}
	got := PrioritizeBySubQuestions(papers, nil)
	if len(got) != 2 || got[0].PaperID != "p1" || got[1].PaperID != "p2" {
		t.Fatalf("expected unchanged order with nil plan, got %+v", got)
	}
}

func TestPrioritizeBySubQuestionsReordersByBestMatch(t *testing.T) {
	papers := []session.PaperMetadata{
		{PaperID: "generic", Title: "A General Survey"},
		{PaperID: "rag", Title: "Retrieval Augmented Generation for QA"},
		{PaperID: "transformer", Title: "Transformer Architectures at Scale"},
	}
	plan := &session.ResearchPlan{
		SubQuestions: []session.SubQuestion{
			{Question: "transformers", Keywords: []string{"transformer"}, Priority: 1},
			{Question: "retrieval", Keywords: []string{"retrieval", "augmented"}, Priority: 2},
		},
	}

	got := PrioritizeBySubQuestions(papers, plan)
	if len(got) != 3 {
		t.Fatalf("expected 3 papers back, got %d", len(got))
	}
	if got[0].PaperID != "transformer" {
		t.Errorf("first slot should be the highest-priority sub-question's best match, got %q", got[0].PaperID)
	}
	if got[1].PaperID != "rag" {
		t.Errorf("second slot should be the second sub-question's best match, got %q", got[1].PaperID)
	}
	if got[2].PaperID != "generic" {
		t.Errorf("leftover paper should be appended last in original order, got %q", got[2].PaperID)
	}
}

func TestAppendHandoffChainsFromPreviousNode(t *testing.T) {
	s := session.State{}
	first := appendHandoff(s, "planner")
	if len(first) != 1 || first[0] != "start→planner" {
		t.Fatalf("first hop = %v, want [start→planner]", first)
	}

	s.AgentHandoffs = first
	second := appendHandoff(s, "retriever")
	if len(second) != 1 || second[0] != "planner→retriever" {
		t.Fatalf("second hop = %v, want [planner→retriever]", second)
	}
}
