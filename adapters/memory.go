package adapters

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/CAICAIIs/Auto-Scholar/session"
)

// MemorySourceAdapter is a simple in-process SourceAdapter over a fixed
// corpus, useful for tests and for a caller that has no live network
// collaborator wired in yet. Matching is a case-insensitive substring test
// against title+abstract.
type MemorySourceAdapter struct {
	Name    string
	Corpus  []session.PaperMetadata
	FailErr error // when set, every call returns this error (for failure-tracker tests)
}

func (m *MemorySourceAdapter) SearchByKeywords(_ context.Context, keywords []string, limit int) ([]session.PaperMetadata, error) {
	if m.FailErr != nil {
		return nil, m.FailErr
	}
	var out []session.PaperMetadata
	for _, p := range m.Corpus {
		if matchesAnyKeyword(p, keywords) {
			out = append(out, p)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MemorySourceAdapter) SearchByPlan(ctx context.Context, plan *session.ResearchPlan, defaultLimit int, allowedSources []string) ([]session.PaperMetadata, error) {
	if plan == nil {
		return nil, nil
	}
	var out []session.PaperMetadata
	for _, sq := range plan.SubQuestions {
		if !sourceAllowed(sq.PreferredSource, allowedSources) {
			continue
		}
		limit := sq.EstimatedPapers
		if limit <= 0 {
			limit = defaultLimit
		}
		res, err := m.SearchByKeywords(ctx, sq.Keywords, limit)
		if err != nil {
			continue // per-sub-question failures are swallowed by the retriever's contract
		}
		out = append(out, res...)
	}
	return out, nil
}

func sourceAllowed(source string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == source {
			return true
		}
	}
	return false
}

func matchesAnyKeyword(p session.PaperMetadata, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	haystack := strings.ToLower(p.Title + " " + p.Abstract)
	for _, k := range keywords {
		if strings.Contains(haystack, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// NoopFullTextAdapter returns papers unchanged; a caller without a real
// enrichment backend can use this so the extractor's enrichment step
// becomes a harmless no-op rather than requiring a nil check everywhere.
type NoopFullTextAdapter struct{}

func (NoopFullTextAdapter) Enrich(_ context.Context, papers []session.PaperMetadata, _ int) ([]session.PaperMetadata, error) {
	return papers, nil
}

// FailureTracker records per-source failures in a sliding window and
// reports whether a source should be temporarily skipped, per
// SOURCE_SKIP_THRESHOLD/SOURCE_SKIP_WINDOW_SECONDS.
type FailureTracker struct {
	Threshold int
	Window    time.Duration

	mu        sync.Mutex
	failures  map[string][]time.Time
	now       func() time.Time
}

// NewFailureTracker creates a tracker with the given threshold and window
// (the CLI passes 3 and 120s). now is set to time.Now, but can be
// overridden in tests for deterministic windows.
func NewFailureTracker(threshold int, window time.Duration) *FailureTracker {
	return &FailureTracker{
		Threshold: threshold,
		Window:    window,
		failures:  make(map[string][]time.Time),
		now:       time.Now,
	}
}

// RecordFailure logs one failure for source at the current time.
func (f *FailureTracker) RecordFailure(source string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[source] = append(f.prune(source), f.now())
}

// ShouldSkip reports whether source has reached the failure threshold
// within the current sliding window.
func (f *FailureTracker) ShouldSkip(source string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prune(source)) >= f.Threshold
}

// prune must be called with f.mu held; it drops failures older than Window
// and returns the surviving slice (also written back into the map).
func (f *FailureTracker) prune(source string) []time.Time {
	cutoff := f.now().Add(-f.Window)
	existing := f.failures[source]
	kept := existing[:0:0]
	for _, t := range existing {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	f.failures[source] = kept
	return kept
}
