package llm

import "strings"

// FieldHint describes one field of an expected JSON response, used to build
// the schema-shape hint appended to the system prompt. The mapping from a
// response contract to its FieldHint tree is a compile-time declarative
// literal (see the Schema vars below) — this package never reflects over
// response struct types at runtime.
type FieldHint struct {
	Name     string
	Type     string // "string" | "array" | "object" | "number" | "boolean"
	Required bool
	Nested   []FieldHint // element/object shape for "array"/"object"
}

// Schema is a named response contract.
type Schema struct {
	Name   string
	Fields []FieldHint
}

// RequiredFieldNames returns the flattened, top-level required field names.
func (s Schema) RequiredFieldNames() []string {
	var out []string
	for _, f := range s.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// Hint renders the JSON-shape hint text appended to the system message, per
// spec §4.3: required field names, flattened nested object hints, and an
// explicit instruction not to echo the schema definition itself.
func (s Schema) Hint() string {
	var b strings.Builder
	b.WriteString("You must respond with a single JSON object named \"")
	b.WriteString(s.Name)
	b.WriteString("\" shaped exactly as follows:\n")
	writeFields(&b, s.Fields, 0)
	b.WriteString("Required top-level fields: ")
	b.WriteString(strings.Join(s.RequiredFieldNames(), ", "))
	b.WriteString(".\nReturn actual content, not the schema definition. Do not include keys named")
	b.WriteString(" \"properties\", \"type\", or \"required\" — those describe this instruction, they are not the answer.")
	return b.String()
}

func writeFields(b *strings.Builder, fields []FieldHint, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, f := range fields {
		b.WriteString(indent)
		b.WriteString("- ")
		b.WriteString(f.Name)
		b.WriteString(" (")
		b.WriteString(f.Type)
		if f.Required {
			b.WriteString(", required")
		}
		b.WriteString(")\n")
		if len(f.Nested) > 0 {
			writeFields(b, f.Nested, depth+1)
		}
	}
}

// ContainsOnlySchemaKeys reports whether a parsed JSON object looks like the
// LM echoed the schema definition instead of producing content (spec §4.3,
// LmReturnedSchemaError).
func ContainsOnlySchemaKeys(obj map[string]interface{}) bool {
	if len(obj) == 0 {
		return false
	}
	schemaKeys := map[string]bool{"properties": true, "type": true, "required": true, "$schema": true, "definitions": true}
	for k := range obj {
		if !schemaKeys[k] {
			return false
		}
	}
	return true
}

// Declarative response contracts used across the agents. Field shapes
// mirror the session.* types exactly; keeping them declared here (rather
// than derived from those types by reflection) is the "compile-time
// mapping" the design notes call for.

var ResearchPlanSchema = Schema{
	Name: "ResearchPlan",
	Fields: []FieldHint{
		{Name: "reasoning", Type: "string", Required: true},
		{Name: "sub_questions", Type: "array", Required: true, Nested: []FieldHint{
			{Name: "question", Type: "string", Required: true},
			{Name: "keywords", Type: "array", Required: true},
			{Name: "preferred_source", Type: "string", Required: true},
			{Name: "priority", Type: "number", Required: true},
			{Name: "estimated_papers", Type: "number", Required: true},
		}},
	},
}

var FlatKeywordsSchema = Schema{
	Name: "Keywords",
	Fields: []FieldHint{
		{Name: "keywords", Type: "array", Required: true},
	},
}

var CoreContributionSchema = Schema{
	Name: "CoreContribution",
	Fields: []FieldHint{
		{Name: "core_contribution", Type: "string", Required: true},
	},
}

var StructuredContributionSchema = Schema{
	Name: "StructuredContribution",
	Fields: []FieldHint{
		{Name: "problem", Type: "string"},
		{Name: "method", Type: "string"},
		{Name: "novelty", Type: "string"},
		{Name: "dataset", Type: "string"},
		{Name: "baseline", Type: "string"},
		{Name: "results", Type: "string"},
		{Name: "limitations", Type: "string"},
		{Name: "future_work", Type: "string"},
	},
}

var DraftOutlineSchema = Schema{
	Name: "DraftOutline",
	Fields: []FieldHint{
		{Name: "title", Type: "string", Required: true},
		{Name: "section_titles", Type: "array", Required: true},
	},
}

var SectionContentSchema = Schema{
	Name: "SectionContent",
	Fields: []FieldHint{
		{Name: "content", Type: "string", Required: true},
	},
}

var FullDraftSchema = Schema{
	Name: "Draft",
	Fields: []FieldHint{
		{Name: "title", Type: "string", Required: true},
		{Name: "sections", Type: "array", Required: true, Nested: []FieldHint{
			{Name: "heading", Type: "string", Required: true},
			{Name: "content", Type: "string", Required: true},
		}},
	},
}

var ReflectionSchema = Schema{
	Name: "Reflection",
	Fields: []FieldHint{
		{Name: "entries", Type: "array", Required: true, Nested: []FieldHint{
			{Name: "error_category", Type: "string", Required: true},
			{Name: "error_detail", Type: "string", Required: true},
			{Name: "fix_strategy", Type: "string", Required: true},
			{Name: "fixable_by_writer", Type: "boolean", Required: true},
		}},
		{Name: "should_retry", Type: "boolean", Required: true},
		{Name: "retry_target", Type: "string", Required: true},
		{Name: "summary", Type: "string"},
	},
}

var ClaimExtractionSchema = Schema{
	Name: "ClaimExtraction",
	Fields: []FieldHint{
		{Name: "claims", Type: "array", Required: true, Nested: []FieldHint{
			{Name: "text", Type: "string", Required: true},
			{Name: "citation_indices", Type: "array", Required: true},
		}},
	},
}

var EntailmentSchema = Schema{
	Name: "EntailmentLabel",
	Fields: []FieldHint{
		{Name: "label", Type: "string", Required: true},
		{Name: "confidence", Type: "number", Required: true},
		{Name: "evidence_snippet", Type: "string"},
		{Name: "rationale", Type: "string"},
	},
}
