// Package router implements per-task model selection and fallback chains
// (C2): a registry of available backends, populated from YAML config, a
// JSON environment value, or provider env-var auto-detection, scored
// against each task type's requirements.
package router

// CostTier orders model pricing coarsely for the max_cost_tier filter.
type CostTier int

const (
	CostLow CostTier = iota
	CostMedium
	CostHigh
)

// ParseCostTier maps a registry string ("low"/"medium"/"high") to a CostTier,
// defaulting to CostHigh (the most permissive filter bound) on an unrecognized
// value so a typo in config never silently excludes every model.
func ParseCostTier(s string) CostTier {
	switch s {
	case "low":
		return CostLow
	case "medium":
		return CostMedium
	case "high":
		return CostHigh
	default:
		return CostHigh
	}
}

// ModelProfile is one registry entry: a backend's identity, capabilities,
// and the scores used for task-type selection.
type ModelProfile struct {
	ID       string `yaml:"id" json:"id"`
	Provider string `yaml:"provider" json:"provider"`
	ModelName string `yaml:"model_name" json:"model_name"`
	APIBase   string `yaml:"api_base" json:"api_base"`
	APIKeyEnv string `yaml:"api_key_env" json:"api_key_env"`

	SupportsJSONMode         bool `yaml:"supports_json_mode" json:"supports_json_mode"`
	SupportsStructuredOutput bool `yaml:"supports_structured_output" json:"supports_structured_output"`
	SupportsLongContext      bool `yaml:"supports_long_context" json:"supports_long_context"`
	MaxOutputTokens          int  `yaml:"max_output_tokens" json:"max_output_tokens"`
	IsLocal                  bool `yaml:"is_local" json:"is_local"`

	CostTierName    string  `yaml:"cost_tier" json:"cost_tier"`
	ReasoningScore  float64 `yaml:"reasoning_score" json:"reasoning_score"`
	CreativityScore float64 `yaml:"creativity_score" json:"creativity_score"`
	LatencyScore    float64 `yaml:"latency_score" json:"latency_score"`

	Enabled bool `yaml:"enabled" json:"enabled"`
}

// CostTier parses CostTierName, defaulting to CostHigh when unset/unknown.
func (p ModelProfile) CostTier() CostTier { return ParseCostTier(p.CostTierName) }

// Registry holds the populated set of model profiles plus any task-type
// overrides that win selection unconditionally.
type Registry struct {
	Models    map[string]ModelProfile
	Overrides map[TaskType]string // task type -> override_model_id
}

// NewRegistry returns an empty registry, ready to be populated by Merge.
func NewRegistry() *Registry {
	return &Registry{
		Models:    make(map[string]ModelProfile),
		Overrides: make(map[TaskType]string),
	}
}

// Merge adds profiles from a lower-priority source without overwriting ids
// already present — callers apply sources in priority order (YAML file,
// then JSON env value, then auto-detection) so the first writer per id wins.
func (r *Registry) Merge(profiles []ModelProfile) {
	for _, p := range profiles {
		if _, exists := r.Models[p.ID]; exists {
			continue
		}
		r.Models[p.ID] = p
	}
}

// Enabled returns every enabled profile in the registry, in map iteration
// order, which Go randomizes; callers that need determinism should sort the
// result, which SelectModel does (by ID) before scoring.
func (r *Registry) Enabled() []ModelProfile {
	out := make([]ModelProfile, 0, len(r.Models))
	for _, p := range r.Models {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}
