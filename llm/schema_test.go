package llm

import (
	"strings"
	"testing"
)

func TestSchemaHintListsRequiredFields(t *testing.T) {
	hint := DraftOutlineSchema.Hint()
	if hint == "" {
		t.Fatal("Hint() returned empty string")
	}
	for _, want := range []string{"title", "section_titles", "Required top-level fields"} {
		if !strings.Contains(hint, want) {
			t.Errorf("Hint() missing %q:\n%s", want, hint)
		}
	}
}

func TestContainsOnlySchemaKeys(t *testing.T) {
	cases := []struct {
		name string
		obj  map[string]interface{}
		want bool
	}{
		{"empty", map[string]interface{}{}, false},
		{"real content", map[string]interface{}{"core_contribution": "x"}, false},
		{"schema echo", map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}, true},
		{"mixed", map[string]interface{}{"type": "object", "core_contribution": "x"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ContainsOnlySchemaKeys(tc.obj); got != tc.want {
				t.Errorf("ContainsOnlySchemaKeys(%v) = %v, want %v", tc.obj, got, tc.want)
			}
		})
	}
}
