package session

// Policy names the merge strategy for one State field.
type Policy int

const (
	// Replace: the delta's value wins outright (last writer wins). Nodes
	// that do not intend to touch a Replace field must copy the current
	// value forward into their delta — see Base.
	Replace Policy = iota
	// Append: the delta's slice is treated as "new items only" and is
	// concatenated onto the accumulated value, preserving order.
	Append
)

// FieldPolicies declares, in one place, the merge policy for every State
// field that carries cross-node semantics. It exists for documentation and
// introspection: Merge is written out explicitly rather than driven by this
// table at runtime, so the two must be kept in step by hand.
var FieldPolicies = map[string]Policy{
	"TaskID":            Replace,
	"UserQuery":         Replace,
	"OutputLanguage":    Replace,
	"SearchSources":     Replace,
	"SearchKeywords":    Replace,
	"ResearchPlan":      Replace,
	"CandidatePapers":   Replace,
	"SelectedPapers":    Replace,
	"ApprovedPapers":    Replace,
	"FinalDraft":        Replace,
	"DraftOutline":      Replace,
	"QAErrors":          Replace,
	"RetryCount":        Replace, // incremented by the producing node (critic), not the store
	"Reflection":        Replace,
	"ClaimVerification": Replace,
	"Messages":          Append,
	"Logs":              Append,
	"AgentHandoffs":     Append,
	"IsContinuation":    Replace,
	"ModelID":           Replace,
}

// Base returns a copy of state suitable as the starting point for a node's
// delta: Replace-policy fields carry the current value forward untouched,
// Append-policy fields start empty so the node can set them to "new items
// only" without re-emitting history.
func Base(state State) State {
	delta := state
	delta.Messages = nil
	delta.Logs = nil
	delta.AgentHandoffs = nil
	return delta
}

// Merge folds a node's partial delta into the accumulated session state,
// per the policies in FieldPolicies. It is the Reducer[session.State]
// passed to graph.New.
func Merge(prev, delta State) State {
	next := delta // Replace-policy fields: delta wins outright.

	next.Logs = append(append([]string{}, prev.Logs...), delta.Logs...)
	next.Messages = append(append([]Message{}, prev.Messages...), delta.Messages...)
	next.AgentHandoffs = append(append([]string{}, prev.AgentHandoffs...), delta.AgentHandoffs...)

	return next
}
