// Package adapters defines the external collaborator contracts the engine
// depends on but does not implement end-to-end: scholarly source search,
// full-text enrichment, and vector-store-backed retrieval. Source search and
// full-text enrichment come with simple implementations (MemorySourceAdapter,
// NoopFullTextAdapter) suitable for tests; the vector-store interface has no
// implementation in this package.
package adapters

import (
	"context"

	"github.com/CAICAIIs/Auto-Scholar/session"
)

// SourceAdapter is a pluggable scholarly search backend (e.g. Semantic
// Scholar, arXiv, PubMed). Dedup by paper_id within one source is the
// adapter's own responsibility; the retriever dedups across sources.
type SourceAdapter interface {
	// SearchByKeywords runs a flat keyword search, capped at limit results.
	SearchByKeywords(ctx context.Context, keywords []string, limit int) ([]session.PaperMetadata, error)
	// SearchByPlan runs a plan-aware search when a ResearchPlan is present.
	SearchByPlan(ctx context.Context, plan *session.ResearchPlan, defaultLimit int, allowedSources []string) ([]session.PaperMetadata, error)
}

// FullTextAdapter opportunistically discovers pdf_url for papers that lack
// one. concurrency bounds in-flight lookups.
type FullTextAdapter interface {
	Enrich(ctx context.Context, papers []session.PaperMetadata, concurrency int) ([]session.PaperMetadata, error)
}

// VectorChunk is one retrieved full-text passage.
type VectorChunk struct {
	ID      string
	Score   float64
	Payload string
}

// VectorStoreAdapter is the optional full-text retrieval collaborator used
// by claim verification when configured.
type VectorStoreAdapter interface {
	EnsureCollection(ctx context.Context, name string) error
	Upsert(ctx context.Context, chunks []string, embeddings [][]float32) ([]string, error)
	Search(ctx context.Context, vector []float32, limit int, scoreThreshold float64, paperID string) ([]VectorChunk, error)
	DeleteByPaperID(ctx context.Context, paperID string) (int, error)
}
