package router

import "testing"

func profile(id string, reasoning, creativity, latency float64, tier string, structured, longCtx bool) ModelProfile {
	return ModelProfile{
		ID: id, Enabled: true, SupportsStructuredOutput: structured, SupportsLongContext: longCtx,
		CostTierName: tier, ReasoningScore: reasoning, CreativityScore: creativity, LatencyScore: latency,
	}
}

func TestSelectModel_PicksHighestScoringCandidate(t *testing.T) {
	reg := NewRegistry()
	reg.Merge([]ModelProfile{
		profile("cheap:fast", 3, 3, 9, "low", true, false),
		profile("strong:reasoner", 9, 6, 4, "high", true, true),
	})

	winner, chain, ok := SelectModel(reg, TaskPlanning, DefaultRequirements[TaskPlanning])
	if !ok {
		t.Fatal("SelectModel returned ok=false")
	}
	if winner.ID != "strong:reasoner" {
		t.Fatalf("winner = %s, want strong:reasoner (needs_reasoning weights it higher)", winner.ID)
	}
	if len(chain) != 2 || chain[0].ID != winner.ID {
		t.Fatalf("fallback chain head = %v, want winner at head", chain)
	}
}

func TestSelectModel_FiltersOnCapabilityAndCostTier(t *testing.T) {
	reg := NewRegistry()
	reg.Merge([]ModelProfile{
		profile("no-structured", 10, 10, 10, "low", false, true),
		profile("too-expensive", 10, 10, 10, "high", true, true),
		profile("fits", 5, 5, 5, "medium", true, true),
	})

	req := TaskRequirement{NeedsStructuredOutput: true, MaxCostTier: CostMedium}
	winner, _, ok := SelectModel(reg, TaskExtraction, req)
	if !ok {
		t.Fatal("SelectModel returned ok=false")
	}
	if winner.ID != "fits" {
		t.Fatalf("winner = %s, want fits (only candidate meeting both filters)", winner.ID)
	}
}

func TestSelectModel_OverrideWinsUnconditionally(t *testing.T) {
	reg := NewRegistry()
	reg.Merge([]ModelProfile{
		profile("strong:reasoner", 9, 9, 9, "high", true, true),
		profile("weak:cheap", 1, 1, 1, "low", true, true),
	})
	reg.Overrides[TaskWriting] = "weak:cheap"

	winner, chain, ok := SelectModel(reg, TaskWriting, DefaultRequirements[TaskWriting])
	if !ok {
		t.Fatal("SelectModel returned ok=false")
	}
	if winner.ID != "weak:cheap" {
		t.Fatalf("winner = %s, want weak:cheap (explicit override)", winner.ID)
	}
	if chain[0].ID != "weak:cheap" {
		t.Fatalf("fallback chain head = %s, want overridden model at head", chain[0].ID)
	}
}

func TestSelectModel_NoCandidates(t *testing.T) {
	reg := NewRegistry()
	_, _, ok := SelectModel(reg, TaskPlanning, DefaultRequirements[TaskPlanning])
	if ok {
		t.Fatal("expected ok=false with an empty registry")
	}
}

func TestExpandEnvVars_DefaultFallback(t *testing.T) {
	t.Setenv("ROUTER_TEST_UNSET", "")
	got := expandEnvVars("key: ${ROUTER_TEST_UNSET:-fallback-value}")
	want := "key: fallback-value"
	if got != want {
		t.Fatalf("expandEnvVars = %q, want %q", got, want)
	}
}

func TestExpandEnvVars_PrefersSetValue(t *testing.T) {
	t.Setenv("ROUTER_TEST_SET", "actual-value")
	got := expandEnvVars("key: ${ROUTER_TEST_SET:-fallback-value}")
	want := "key: actual-value"
	if got != want {
		t.Fatalf("expandEnvVars = %q, want %q", got, want)
	}
}
