package llm

import "testing"

func TestParseLoose(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		ok   bool
	}{
		{"plain object", `{"a": 1}`, true},
		{"fenced", "```json\n{\"a\": 1}\n```", true},
		{"prose wrapped", "Sure, here you go:\n{\"a\": 1}\nHope that helps!", true},
		{"not json", "no json here at all", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := ParseLoose(tc.raw)
			if ok != tc.ok {
				t.Errorf("ParseLoose(%q) ok = %v, want %v", tc.raw, ok, tc.ok)
			}
		})
	}
}

func TestRepairJSON_RecoversFieldsAroundMalformedNeighbor(t *testing.T) {
	// The "limitations" value contains an unescaped quote, which breaks
	// strict parsing of the whole object; "core_contribution" should still
	// be recoverable via schema-guided field extraction.
	raw := `{"core_contribution": "reduces latency", "limitations": "only "tested" on small models"}`

	var out coreContribution
	err := RepairJSON(raw, CoreContributionSchema, &out)
	if err != nil {
		t.Fatalf("RepairJSON: %v", err)
	}
	if out.CoreContribution != "reduces latency" {
		t.Fatalf("CoreContribution = %q", out.CoreContribution)
	}
}

func TestRepairJSON_NoRecoverableFields(t *testing.T) {
	var out coreContribution
	err := RepairJSON("this is not json in any form", CoreContributionSchema, &out)
	if err == nil {
		t.Fatal("expected error when no schema fields are recoverable")
	}
}

func TestMissingRequiredFields(t *testing.T) {
	obj := map[string]interface{}{"title": "A Survey"}
	missing := MissingRequiredFields(obj, DraftOutlineSchema)
	if len(missing) != 1 || missing[0] != "section_titles" {
		t.Fatalf("MissingRequiredFields = %v, want [section_titles]", missing)
	}
}
