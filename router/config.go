package router

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	yaml "go.yaml.in/yaml/v2"
)

// yamlConfig mirrors the registry YAML file's top-level shape.
type yamlConfig struct {
	Models []ModelProfile `yaml:"models"`
}

// LoadYAMLFile reads a registry YAML file, expanding ${VAR} and
// ${VAR:-default} references in every string field before parsing. Grounded
// on multi-llm-review/main.go's loadConfig/expandEnvVars, extended with
// default-value fallback since the spec requires it (the teacher's version
// only supports bare ${VAR}).
func LoadYAMLFile(path string) ([]ModelProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry config: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg yamlConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse registry YAML: %w", err)
	}
	return cfg.Models, nil
}

// envVarPattern matches ${VAR_NAME} and ${VAR_NAME:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandEnvVars expands ${VAR} to its environment value (empty string if
// unset) and ${VAR:-default} to the environment value, or default if the
// variable is unset or empty.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name, hasDefault, def := groups[1], groups[2] != "", groups[3]
		if v := os.Getenv(name); v != "" {
			return v
		}
		if hasDefault {
			return def
		}
		return ""
	})
}

// LoadJSONEnv parses a JSON array of ModelProfile from the named
// environment variable. Returns (nil, nil) if the variable is unset, since
// this is the middle of three priority-ordered sources and an absent one
// is not an error.
func LoadJSONEnv(envVar string) ([]ModelProfile, error) {
	raw := os.Getenv(envVar)
	if raw == "" {
		return nil, nil
	}
	var profiles []ModelProfile
	if err := json.Unmarshal([]byte(raw), &profiles); err != nil {
		return nil, fmt.Errorf("parse %s as JSON model profiles: %w", envVar, err)
	}
	return profiles, nil
}

// providerEnvDetectors maps a well-known provider API-key env var to the
// auto-detected profile produced when it is set. This is the third and
// lowest-priority registry source.
var providerEnvDetectors = []struct {
	envVar  string
	profile func(apiKey string) ModelProfile
}{
	{"OPENAI_API_KEY", func(string) ModelProfile {
		return ModelProfile{
			ID: "openai:gpt-4o", Provider: "openai", ModelName: "gpt-4o",
			APIKeyEnv: "OPENAI_API_KEY", SupportsJSONMode: true, SupportsStructuredOutput: true,
			SupportsLongContext: true, MaxOutputTokens: 16384,
			CostTierName: "high", ReasoningScore: 8, CreativityScore: 7, LatencyScore: 6, Enabled: true,
		}
	}},
	{"ANTHROPIC_API_KEY", func(string) ModelProfile {
		return ModelProfile{
			ID: "anthropic:claude-3-5-sonnet-20241022", Provider: "anthropic", ModelName: "claude-3-5-sonnet-20241022",
			APIKeyEnv: "ANTHROPIC_API_KEY", SupportsJSONMode: true, SupportsStructuredOutput: true,
			SupportsLongContext: true, MaxOutputTokens: 8192,
			CostTierName: "medium", ReasoningScore: 9, CreativityScore: 8, LatencyScore: 6, Enabled: true,
		}
	}},
	{"GEMINI_API_KEY", func(string) ModelProfile {
		return ModelProfile{
			ID: "google:gemini-1.5-pro", Provider: "google", ModelName: "gemini-1.5-pro",
			APIKeyEnv: "GEMINI_API_KEY", SupportsJSONMode: true, SupportsStructuredOutput: true,
			SupportsLongContext: true, MaxOutputTokens: 8192,
			CostTierName: "medium", ReasoningScore: 7, CreativityScore: 7, LatencyScore: 7, Enabled: true,
		}
	}},
}

// AutoDetect builds profiles from whichever well-known provider API-key
// env vars are present in the environment.
func AutoDetect() []ModelProfile {
	var out []ModelProfile
	for _, d := range providerEnvDetectors {
		if key := os.Getenv(d.envVar); key != "" {
			out = append(out, d.profile(key))
		}
	}
	return out
}

// LoadRegistry populates a Registry from the three sources in priority
// order: YAML file (if yamlPath is non-empty and exists), JSON env value,
// then provider auto-detection. Earlier sources win on id conflicts.
func LoadRegistry(yamlPath, jsonEnvVar string) (*Registry, error) {
	reg := NewRegistry()

	if yamlPath != "" {
		if _, err := os.Stat(yamlPath); err == nil {
			profiles, err := LoadYAMLFile(yamlPath)
			if err != nil {
				return nil, err
			}
			reg.Merge(profiles)
		}
	}

	if jsonEnvVar != "" {
		profiles, err := LoadJSONEnv(jsonEnvVar)
		if err != nil {
			return nil, err
		}
		reg.Merge(profiles)
	}

	reg.Merge(AutoDetect())

	return reg, nil
}
