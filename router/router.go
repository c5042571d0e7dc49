package router

import "sort"

// TaskType is one of the five task categories the router scores models for.
type TaskType string

const (
	TaskPlanning   TaskType = "planning"
	TaskExtraction TaskType = "extraction"
	TaskWriting    TaskType = "writing"
	TaskQA         TaskType = "qa"
	TaskReflection TaskType = "reflection"
)

// TaskRequirement is the per-task-type selection requirement.
type TaskRequirement struct {
	NeedsReasoning         bool
	NeedsStructuredOutput  bool
	NeedsLongContext       bool
	PrefersCreativity      bool
	MaxCostTier            CostTier
	LatencySensitive       bool
}

// DefaultRequirements mirrors the task profiles a literature-review run
// exercises: planning and reflection need reasoning; writing prefers
// creativity; qa is latency-sensitive (it runs once per retry loop and
// gates the whole pipeline).
var DefaultRequirements = map[TaskType]TaskRequirement{
	TaskPlanning: {
		NeedsReasoning: true, NeedsStructuredOutput: true, MaxCostTier: CostHigh,
	},
	TaskExtraction: {
		NeedsStructuredOutput: true, MaxCostTier: CostMedium, LatencySensitive: true,
	},
	TaskWriting: {
		NeedsReasoning: true, PrefersCreativity: true, NeedsLongContext: true, MaxCostTier: CostHigh,
	},
	TaskQA: {
		NeedsReasoning: true, NeedsStructuredOutput: true, MaxCostTier: CostMedium, LatencySensitive: true,
	},
	TaskReflection: {
		NeedsReasoning: true, NeedsStructuredOutput: true, MaxCostTier: CostMedium,
	},
}

// Ranked is one scored candidate in selection order (highest score first).
type Ranked struct {
	Model ModelProfile
	Score float64
}

// SelectModel filters the registry's enabled models by req's capability
// flags and cost ceiling, scores the survivors, and returns the winner plus
// its fallback chain (the full ranked list with the winner moved to the
// head). An explicit override in reg.Overrides wins unconditionally and is
// placed at the head of its own singleton-then-ranked chain.
//
// Scoring formula (reasoning·2 + creativity·1.5 + latency·1.5 +
// cost_rank-bonus·0.8) is reproduced exactly from the router's Python
// predecessor; it is not reinterpreted here.
func SelectModel(reg *Registry, taskType TaskType, req TaskRequirement) (winner ModelProfile, fallbackChain []ModelProfile, ok bool) {
	enabled := reg.Enabled()
	sort.Slice(enabled, func(i, j int) bool { return enabled[i].ID < enabled[j].ID })
	candidates := filterCandidates(enabled, req)
	if len(candidates) == 0 {
		return ModelProfile{}, nil, false
	}

	ranked := rankCandidates(candidates, req)
	chain := make([]ModelProfile, len(ranked))
	for i, r := range ranked {
		chain[i] = r.Model
	}

	if overrideID, has := reg.Overrides[taskType]; has {
		if m, exists := reg.Models[overrideID]; exists {
			chain = moveToHead(chain, m)
			return m, chain, true
		}
	}

	winner = chain[0]
	return winner, chain, true
}

func filterCandidates(models []ModelProfile, req TaskRequirement) []ModelProfile {
	var out []ModelProfile
	for _, m := range models {
		if req.NeedsStructuredOutput && !m.SupportsStructuredOutput {
			continue
		}
		if req.NeedsLongContext && !m.SupportsLongContext {
			continue
		}
		if m.CostTier() > req.MaxCostTier {
			continue
		}
		out = append(out, m)
	}
	return out
}

// costRank maps a cost tier to the 1..3 rank the scoring formula expects
// (low=1 cheapest, high=3 most expensive), per the Python predecessor's
// cost_rank convention.
func costRank(tier CostTier) float64 {
	switch tier {
	case CostLow:
		return 1
	case CostMedium:
		return 2
	default:
		return 3
	}
}

func score(m ModelProfile, req TaskRequirement) float64 {
	var s float64
	if req.NeedsReasoning {
		s += 2 * m.ReasoningScore
	}
	if req.PrefersCreativity {
		s += 1.5 * m.CreativityScore
	}
	if req.LatencySensitive {
		s += 1.5 * m.LatencyScore
	}
	s += 0.8 * (4 - costRank(m.CostTier()))
	return s
}

func rankCandidates(candidates []ModelProfile, req TaskRequirement) []Ranked {
	ranked := make([]Ranked, len(candidates))
	for i, m := range candidates {
		ranked[i] = Ranked{Model: m, Score: score(m, req)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// moveToHead returns chain with head moved to index 0 (removed and
// re-inserted if already present; inserted fresh at the head otherwise),
// mirroring the Python predecessor's remove-then-insert(0) fallback-chain
// construction.
func moveToHead(chain []ModelProfile, head ModelProfile) []ModelProfile {
	out := make([]ModelProfile, 0, len(chain)+1)
	out = append(out, head)
	for i := range chain {
		if chain[i].ID == head.ID {
			continue
		}
		out = append(out, chain[i])
	}
	return out
}
