package citation

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/CAICAIIs/Auto-Scholar/adapters"
	"github.com/CAICAIIs/Auto-Scholar/llm"
	"github.com/CAICAIIs/Auto-Scholar/session"
)

// AbstractTruncationLength is the fallback evidence length (in runes) used
// when no vector store is configured for full-text retrieval.
const AbstractTruncationLength = 1000

// VectorSearchLimit caps retrieved chunks per claim; up to this many are
// concatenated (subject to VectorConcatLimit) to form the evidence passage.
const VectorSearchLimit = 5

// VectorConcatLimit is the max number of retrieved chunks actually
// concatenated into the evidence passage handed to the entailment model.
const VectorConcatLimit = 3

// VectorScoreThreshold is the minimum similarity score a retrieved chunk
// must meet to be used as evidence.
const VectorScoreThreshold = 0.7

// DefaultVerificationConcurrency is CLAIM_VERIFICATION_CONCURRENCY's default.
const DefaultVerificationConcurrency = 2

// MinEntailmentRatio is the critic's QA gate threshold: a draft passes only
// if entailed claims make up at least this fraction of judged claims.
const MinEntailmentRatio = 0.80

// Embedder produces a vector embedding for a piece of text; verification
// only needs this when a VectorStoreAdapter is configured.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Verification is the outcome of checking one claim against its cited paper.
type Verification struct {
	ClaimID  string
	PaperID  string
	Label    string // session.Entailment{Entails,Insufficient,Contradicts}
	Evidence string
	Err      error
}

// Verifier checks claims against their cited papers' evidence, optionally
// backed by a vector store for full-text retrieval.
type Verifier struct {
	Model       llm.ChatModel
	ModelID     string
	Tracker     *llm.CostTracker
	Tokens      *llm.TokenCounter
	VectorStore adapters.VectorStoreAdapter // nil => abstract-truncation fallback
	Embedder    Embedder
	Concurrency int
}

// VerifyAll checks every claim against each of its cited papers, fanning
// out with errgroup.SetLimit(Concurrency) the way flow.Batch bounds segment
// concurrency. Results follow claim order, and within a claim its citation
// order; a citation index absent from papersByIndex yields no result.
// Summarize folds them into the aggregate the critic reads.
func (v *Verifier) VerifyAll(ctx context.Context, claims []Claim, papersByIndex map[int]session.PaperMetadata) []Verification {
	concurrency := v.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultVerificationConcurrency
	}

	type job struct {
		claim Claim
		paper session.PaperMetadata
	}
	var jobs []job
	for _, c := range claims {
		for _, idx := range c.CitationIndices {
			p, ok := papersByIndex[idx]
			if !ok {
				continue
			}
			jobs = append(jobs, job{claim: c, paper: p})
		}
	}

	results := make([]Verification, len(jobs))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)
	for i, j := range jobs {
		i, j := i, j
		group.Go(func() error {
			results[i] = v.verifyOne(groupCtx, j.claim, j.paper)
			return nil // per-claim failures are recorded, not propagated
		})
	}
	_ = group.Wait()
	return results
}

func (v *Verifier) verifyOne(ctx context.Context, claim Claim, paper session.PaperMetadata) Verification {
	evidence, err := v.gatherEvidence(ctx, claim, paper)
	if err != nil {
		return Verification{ClaimID: claim.ID, PaperID: paper.PaperID, Err: err}
	}
	if strings.TrimSpace(evidence) == "" {
		return Verification{ClaimID: claim.ID, PaperID: paper.PaperID, Label: session.EntailmentInsufficient}
	}

	var resp struct {
		Label           string  `json:"label"`
		Confidence      float64 `json:"confidence"`
		EvidenceSnippet string  `json:"evidence_snippet"`
		Rationale       string  `json:"rationale"`
	}
	prompt := fmt.Sprintf(
		"Claim: %s\n\nEvidence from the cited paper (%s):\n%s\n\nLabel the claim as \"entails\", \"insufficient\", or \"contradicts\" relative to the evidence.",
		claim.Text, paper.Title, evidence,
	)
	err = llm.StructuredCompletion(ctx, llm.CompletionRequest{
		Model:    v.Model,
		ModelID:  v.ModelID,
		NodeID:   "claim_verification",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Schema:   llm.EntailmentSchema,
		Tracker:  v.Tracker,
		Tokens:   v.Tokens,
	}, &resp)
	if err != nil {
		return Verification{ClaimID: claim.ID, PaperID: paper.PaperID, Err: err}
	}

	label := resp.Label
	if label != session.EntailmentEntails && label != session.EntailmentInsufficient && label != session.EntailmentContradicts {
		label = session.EntailmentInsufficient
	}
	return Verification{ClaimID: claim.ID, PaperID: paper.PaperID, Label: label, Evidence: resp.EvidenceSnippet}
}

// gatherEvidence retrieves supporting text for claim from paper: via the
// vector store when configured, falling back to a truncated abstract.
func (v *Verifier) gatherEvidence(ctx context.Context, claim Claim, paper session.PaperMetadata) (string, error) {
	if v.VectorStore == nil || v.Embedder == nil {
		return truncateAbstract(paper.Abstract), nil
	}

	vec, err := v.Embedder.Embed(ctx, claim.Text)
	if err != nil {
		return "", fmt.Errorf("embed claim: %w", err)
	}
	chunks, err := v.VectorStore.Search(ctx, vec, VectorSearchLimit, VectorScoreThreshold, paper.PaperID)
	if err != nil {
		return "", fmt.Errorf("search vector store: %w", err)
	}
	if len(chunks) == 0 {
		return truncateAbstract(paper.Abstract), nil
	}
	n := len(chunks)
	if n > VectorConcatLimit {
		n = VectorConcatLimit
	}
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		b.WriteString(chunks[i].Payload)
	}
	return b.String(), nil
}

func truncateAbstract(abstract string) string {
	r := []rune(abstract)
	if len(r) <= AbstractTruncationLength {
		return abstract
	}
	return string(r[:AbstractTruncationLength])
}

// Summarize folds a batch of per-claim verifications into the aggregate
// summary carried on session.State.
func Summarize(totalClaims int, results []Verification) *session.ClaimVerificationSummary {
	summary := &session.ClaimVerificationSummary{TotalClaims: totalClaims}
	for _, r := range results {
		summary.TotalVerifications++
		if r.Err != nil {
			summary.Failed = append(summary.Failed, fmt.Sprintf("%s/%s: %v", r.ClaimID, r.PaperID, r.Err))
			continue
		}
		switch r.Label {
		case session.EntailmentEntails:
			summary.Entails++
		case session.EntailmentContradicts:
			summary.Contradicts++
		default:
			summary.Insufficient++
		}
	}
	return summary
}

// EntailmentRatio returns entails / (entails+insufficient+contradicts),
// or 1.0 when there were no verifications to judge (nothing to fail on).
func EntailmentRatio(s *session.ClaimVerificationSummary) float64 {
	if s == nil {
		return 1.0
	}
	judged := s.Entails + s.Insufficient + s.Contradicts
	if judged == 0 {
		return 1.0
	}
	return float64(s.Entails) / float64(judged)
}
