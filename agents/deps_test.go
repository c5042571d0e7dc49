package agents

import "testing"

func TestEnvIntDefaultsWhenUnset(t *testing.T) {
	if got := EnvInt("AGENTS_TEST_ENV_INT_DOES_NOT_EXIST", 7); got != 7 {
		t.Fatalf("EnvInt() = %d, want default 7", got)
	}
}

func TestEnvIntParsesAndClamps(t *testing.T) {
	cases := []struct {
		name string
		val  string
		want int
	}{
		{"within range", "5", 5},
		{"clamped low", "0", 1},
		{"clamped negative", "-3", 1},
		{"clamped high", "100", 20},
		{"unparsable falls back to default", "not-a-number", 9},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("AGENTS_TEST_ENV_INT", tc.val)
			if got := EnvInt("AGENTS_TEST_ENV_INT", 9); got != tc.want {
				t.Errorf("EnvInt(%q) = %d, want %d", tc.val, got, tc.want)
			}
		})
	}
}

func TestDepsConcurrencyDefaults(t *testing.T) {
	d := &Deps{}
	if got := d.llmConcurrency(); got != DefaultLLMConcurrency {
		t.Errorf("llmConcurrency() = %d, want default %d", got, DefaultLLMConcurrency)
	}
	if got := d.fullTextConcurrency(); got != DefaultFullTextConcurrency {
		t.Errorf("fullTextConcurrency() = %d, want default %d", got, DefaultFullTextConcurrency)
	}

	d.LLMConcurrency = 4
	d.FullTextConcurrency = 6
	if got := d.llmConcurrency(); got != 4 {
		t.Errorf("llmConcurrency() override = %d, want 4", got)
	}
	if got := d.fullTextConcurrency(); got != 6 {
		t.Errorf("fullTextConcurrency() override = %d, want 6", got)
	}
}
