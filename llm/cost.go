package llm

import (
	"sync"
	"time"
)

// conservativeUnknownModelPricing is charged to any model absent from
// Pricing. The graph package's CostTracker zero-costs unknown models; this
// adapter instead assumes the most expensive tier on record so an unrecorded
// or newly-added model never silently reports as free. Priced at $15 input
// and $75 output per 1M tokens.
var conservativeUnknownModelPricing = ModelPricing{InputPer1M: 15.00, OutputPer1M: 75.00}

// ModelPricing mirrors graph.ModelPricing: USD cost per 1M tokens.
type ModelPricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

// Call records one priced LM invocation.
type Call struct {
	Model        string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	Timestamp    time.Time
	NodeID       string
	Estimated    bool // true when Model was absent from Pricing
}

// CostTracker accumulates a per-run LLM cost ledger, grounded on
// graph.CostTracker but defaulting unknown models to a conservative
// high-tier price instead of zero, per the task's cost-tracking
// requirement.
type CostTracker struct {
	RunID    string
	Currency string
	Pricing  map[string]ModelPricing

	mu           sync.RWMutex
	calls        []Call
	totalCost    float64
	modelCosts   map[string]float64
	inputTokens  int64
	outputTokens int64
}

// NewCostTracker creates a tracker seeded with pricing. A nil pricing map
// falls back to an empty table, so every model is priced conservatively
// until the caller supplies real tiers.
func NewCostTracker(runID, currency string, pricing map[string]ModelPricing) *CostTracker {
	if pricing == nil {
		pricing = map[string]ModelPricing{}
	}
	return &CostTracker{
		RunID:      runID,
		Currency:   currency,
		Pricing:    pricing,
		calls:      make([]Call, 0, 16),
		modelCosts: make(map[string]float64),
	}
}

// RecordCall prices and records one LM invocation. Unlike
// graph.CostTracker.RecordLLMCall, an unpriced model is never free: it is
// charged at conservativeUnknownModelPricing and flagged Estimated so the
// ledger can be audited later.
func (ct *CostTracker) RecordCall(model string, inputTokens, outputTokens int, nodeID string) Call {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	pricing, known := ct.Pricing[model]
	estimated := !known
	if !known {
		pricing = conservativeUnknownModelPricing
	}

	inputCost := (float64(inputTokens) / 1_000_000.0) * pricing.InputPer1M
	outputCost := (float64(outputTokens) / 1_000_000.0) * pricing.OutputPer1M
	totalCost := inputCost + outputCost

	call := Call{
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      totalCost,
		Timestamp:    time.Now(),
		NodeID:       nodeID,
		Estimated:    estimated,
	}
	ct.calls = append(ct.calls, call)
	ct.totalCost += totalCost
	ct.modelCosts[model] += totalCost
	ct.inputTokens += int64(inputTokens)
	ct.outputTokens += int64(outputTokens)

	return call
}

// TotalCost returns the cumulative cost across all recorded calls.
func (ct *CostTracker) TotalCost() float64 {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.totalCost
}

// CostByModel returns a copy of the per-model cost breakdown.
func (ct *CostTracker) CostByModel() map[string]float64 {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	out := make(map[string]float64, len(ct.modelCosts))
	for k, v := range ct.modelCosts {
		out[k] = v
	}
	return out
}

// Calls returns a copy of the recorded call history.
func (ct *CostTracker) Calls() []Call {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	out := make([]Call, len(ct.calls))
	copy(out, ct.calls)
	return out
}

// TokenTotals returns cumulative input/output token counts.
func (ct *CostTracker) TokenTotals() (input, output int64) {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.inputTokens, ct.outputTokens
}
