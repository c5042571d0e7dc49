// Package agents implements the six graph nodes that carry a literature
// review from a raw query to a cited, QA-passed draft: planner, retriever,
// extractor, writer, critic, and reflection. Each node is a plain function
// adapted via graph.NodeFunc[session.State], following the node-per-file
// layout the teacher's own examples use.
package agents

import (
	"math/rand"
	"os"
	"strconv"

	"github.com/CAICAIIs/Auto-Scholar/adapters"
	"github.com/CAICAIIs/Auto-Scholar/citation"
	"github.com/CAICAIIs/Auto-Scholar/llm"
	"github.com/CAICAIIs/Auto-Scholar/router"
)

// Concurrency and budget defaults from the spec's constant table.
const (
	TopK                         = 5
	ContextMaxPapers             = 200
	DefaultLLMConcurrency        = 2
	DefaultFullTextConcurrency   = 3
	ContextOverflowWarnThreshold = 100
	ContextTokenBudget           = 40000
	MaxConversationTurns         = 10

	WriterDraftBaseTokens   = 2000
	WriterDraftPerPaper     = 300
	WriterDraftMaxTokens    = 8000
	WriterSectionBaseTokens = 1500
	WriterSectionPerPaper   = 100
	WriterSectionMaxTokens  = 4000
)

// MaxQARetries is the default MAX_QA_RETRIES (spec §6 env var); unlike the
// other budget constants it is a var, not a const, since the runtime package
// overrides it at startup from the environment before building the graph.
var MaxQARetries = 3

// Deps bundles every collaborator a node needs. One Deps is built per run by
// the caller (see cmd/auto-scholar) and shared by all six nodes, mirroring
// how graph/examples/ai_research_assistant threads a single config struct
// through its node constructors instead of each node owning its own client.
type Deps struct {
	Registry *router.Registry
	Models   map[string]llm.ChatModel // modelID -> resolved backend, keyed by router.ModelProfile.ID

	Tracker *llm.CostTracker
	Tokens  *llm.TokenCounter

	Sources         map[string]adapters.SourceAdapter // keyed by session.Source* constants
	FullText        adapters.FullTextAdapter
	FailureTracker  *adapters.FailureTracker
	Verifier        *citation.Verifier

	// LLMConcurrency and FullTextConcurrency override the spec defaults
	// (LLM_CONCURRENCY=2, FULLTEXT_CONCURRENCY=3) when positive; zero means
	// "use the default". Callers wire these from env vars (see EnvInt),
	// clamped to [1, 20] as the spec requires.
	LLMConcurrency     int
	FullTextConcurrency int

	RNG *rand.Rand
}

// llmConcurrency returns the effective LLM semaphore size.
func (d *Deps) llmConcurrency() int {
	if d.LLMConcurrency > 0 {
		return d.LLMConcurrency
	}
	return DefaultLLMConcurrency
}

// fullTextConcurrency returns the effective full-text enrichment semaphore
// size.
func (d *Deps) fullTextConcurrency() int {
	if d.FullTextConcurrency > 0 {
		return d.FullTextConcurrency
	}
	return DefaultFullTextConcurrency
}

// EnvInt reads name from the environment as an integer, clamped to
// [1, 20] per the spec's concurrency env-var contract, falling back to def
// when unset or unparsable.
func EnvInt(name string, def int) int {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	if n < 1 {
		return 1
	}
	if n > 20 {
		return 20
	}
	return n
}

// ModelForVerification resolves the backend the router picks for QA tasks,
// for callers wiring citation.Verifier (the claim-verification model uses
// the same task-type profile as the critic's semantic QA).
func (d *Deps) ModelForVerification() (llm.ChatModel, string, bool) {
	return d.modelFor(router.TaskQA)
}

// modelFor resolves the ChatModel backend the router picked for taskType,
// falling back through the fallback chain if the winner has no resolved
// backend wired in (e.g. an optional provider the caller didn't configure).
func (d *Deps) modelFor(taskType router.TaskType) (llm.ChatModel, string, bool) {
	req, ok := router.DefaultRequirements[taskType]
	if !ok {
		req = router.TaskRequirement{MaxCostTier: router.CostHigh}
	}
	winner, chain, ok := router.SelectModel(d.Registry, taskType, req)
	if !ok {
		return nil, "", false
	}
	candidates := append([]router.ModelProfile{winner}, chain...)
	seen := map[string]bool{}
	for _, m := range candidates {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		if backend, ok := d.Models[m.ID]; ok {
			return backend, m.ID, true
		}
	}
	return nil, "", false
}
