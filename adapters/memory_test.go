package adapters

import (
	"context"
	"testing"
	"time"

	"github.com/CAICAIIs/Auto-Scholar/session"
)

func TestMemorySourceAdapter_SearchByKeywords(t *testing.T) {
	src := &MemorySourceAdapter{Corpus: []session.PaperMetadata{
		{PaperID: "p1", Title: "Attention Is All You Need"},
		{PaperID: "p2", Title: "Deep Residual Learning"},
	}}

	out, err := src.SearchByKeywords(context.Background(), []string{"attention"}, 10)
	if err != nil {
		t.Fatalf("SearchByKeywords: %v", err)
	}
	if len(out) != 1 || out[0].PaperID != "p1" {
		t.Fatalf("out = %+v, want [p1]", out)
	}
}

func TestFailureTracker_SkipsAfterThreshold(t *testing.T) {
	base := time.Unix(0, 0)
	clock := base
	ft := NewFailureTracker(3, 120*time.Second)
	ft.now = func() time.Time { return clock }

	for i := 0; i < 2; i++ {
		ft.RecordFailure("arxiv")
	}
	if ft.ShouldSkip("arxiv") {
		t.Fatal("should not skip before reaching threshold")
	}

	ft.RecordFailure("arxiv")
	if !ft.ShouldSkip("arxiv") {
		t.Fatal("should skip once threshold is reached")
	}
}

func TestFailureTracker_WindowExpires(t *testing.T) {
	clock := time.Unix(0, 0)
	ft := NewFailureTracker(3, 120*time.Second)
	ft.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		ft.RecordFailure("pubmed")
	}
	if !ft.ShouldSkip("pubmed") {
		t.Fatal("expected skip immediately after reaching threshold")
	}

	clock = clock.Add(121 * time.Second)
	if ft.ShouldSkip("pubmed") {
		t.Fatal("expected failures to expire once outside the window")
	}
}
