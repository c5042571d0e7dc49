package session

// State is the full session object carried through the graph. Every agent
// node receives the current State and returns a partial State (a "delta")
// that the Merge function folds back in according to each field's policy
// (see reducer.go). Fields a node does not intend to change are simply
// copied forward unchanged into its delta — see agents.CopyState.
type State struct {
	TaskID         string   `json:"task_id"`
	UserQuery      string   `json:"user_query"`
	OutputLanguage string   `json:"output_language"`
	SearchSources  []string `json:"search_sources"`
	SearchKeywords []string `json:"search_keywords"`

	ResearchPlan *ResearchPlan `json:"research_plan,omitempty"`

	CandidatePapers []PaperMetadata `json:"candidate_papers"`
	SelectedPapers  []PaperMetadata `json:"selected_papers"`
	ApprovedPapers  []PaperMetadata `json:"approved_papers"`

	FinalDraft   *Draft        `json:"final_draft,omitempty"`
	DraftOutline *DraftOutline `json:"draft_outline,omitempty"`

	QAErrors   []string `json:"qa_errors"`
	RetryCount int      `json:"retry_count"`

	Reflection        *Reflection               `json:"reflection,omitempty"`
	ClaimVerification *ClaimVerificationSummary `json:"claim_verification,omitempty"`

	Messages []Message `json:"messages"`
	Logs     []string  `json:"logs"`

	// AgentHandoffs is an append-only trail of "from→to" (or "start→node"
	// for the first hop) markers, one per node execution, used for debugging and by
	// tests asserting graph traversal order.
	AgentHandoffs []string `json:"agent_handoffs"`

	IsContinuation bool   `json:"is_continuation"`
	ModelID        string `json:"model_id,omitempty"`
}
