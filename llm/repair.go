package llm

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// stripCodeFence removes a surrounding ```json ... ``` or ``` ... ``` block,
// grounded on the corpus's own markdown-fence stripping idiom for raw LM
// output before JSON parsing.
func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) < 6 || !strings.HasPrefix(trimmed, "```") || !strings.HasSuffix(trimmed, "```") {
		return trimmed
	}
	nl := strings.Index(trimmed, "\n")
	if nl == -1 {
		return strings.TrimSpace(trimmed[3 : len(trimmed)-3])
	}
	return strings.TrimSpace(trimmed[nl+1 : len(trimmed)-3])
}

// ParseLoose parses raw as a JSON object, tolerating a surrounding markdown
// fence or leading/trailing commentary text around the object. It reports
// ok=false only when no JSON object can be located at all.
func ParseLoose(raw string) (map[string]interface{}, bool) {
	clean := stripCodeFence(raw)
	res := gjson.Parse(clean)
	if res.IsObject() {
		m, ok := res.Value().(map[string]interface{})
		return m, ok
	}
	// Fall back to the first balanced {...} span in case of surrounding prose.
	start := strings.IndexByte(clean, '{')
	end := strings.LastIndexByte(clean, '}')
	if start < 0 || end <= start {
		return nil, false
	}
	res = gjson.Parse(clean[start : end+1])
	if !res.IsObject() {
		return nil, false
	}
	m, ok := res.Value().(map[string]interface{})
	return m, ok
}

// RepairJSON parses raw into out. It tries a strict encoding/json.Unmarshal
// of the fence-stripped text first; only on failure does it fall back to
// tolerant, schema-guided field recovery via gjson — pulling each declared
// field out by path so one malformed neighbor (an unescaped quote, a
// trailing comma) doesn't sink the fields that parsed fine.
func RepairJSON(raw string, schema Schema, out interface{}) error {
	clean := stripCodeFence(raw)

	if err := json.Unmarshal([]byte(clean), out); err == nil {
		return nil
	}

	recovered := map[string]interface{}{}
	for _, f := range schema.Fields {
		res := gjson.Get(clean, f.Name)
		if res.Exists() {
			recovered[f.Name] = res.Value()
		}
	}
	if len(recovered) == 0 {
		return &LmProtocolError{Reason: "response was not valid JSON and no schema fields could be recovered", Raw: raw}
	}

	repairedBytes, err := json.Marshal(recovered)
	if err != nil {
		return &LmProtocolError{Reason: "recovered fields could not be re-marshaled: " + err.Error(), Raw: raw}
	}
	if err := json.Unmarshal(repairedBytes, out); err != nil {
		return &LmProtocolError{Reason: "recovered fields did not match the expected shape: " + err.Error(), Raw: raw}
	}
	return nil
}

// MissingRequiredFields returns the schema's required field names absent
// from (or explicitly null in) a parsed object.
func MissingRequiredFields(obj map[string]interface{}, schema Schema) []string {
	var missing []string
	for _, name := range schema.RequiredFieldNames() {
		v, ok := obj[name]
		if !ok || v == nil {
			missing = append(missing, name)
		}
	}
	return missing
}
