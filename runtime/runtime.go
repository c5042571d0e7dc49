// Package runtime is the spec §4.6 scheduler/graph runtime's caller-facing
// layer. The scheduler, checkpointed execution, and state-merge loop
// themselves are NOT implemented here: they are
// github.com/dshills/langgraph-go/graph's Engine, Store, and Reducer
// contract, imported as an external dependency rather than copied into this
// tree. This package's own job is everything on top of that engine that is
// specific to this domain: registering the six agent nodes onto an
// Engine[session.State], implementing the control surface (start, approve,
// stream, continue, status, models), and owning the pause-before-extractor
// human-in-the-loop boundary and the whole-run timeout by driving the
// engine's checkpoint/resume primitives from the outside. It follows the
// same single-config-struct wiring the teacher's examples/ai_research_assistant
// uses, adapted from one main() into a reusable package other callers (see
// cmd/auto-scholar) can embed.
package runtime

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dshills/langgraph-go/graph"
	"github.com/dshills/langgraph-go/graph/store"
	"github.com/google/uuid"

	"github.com/CAICAIIs/Auto-Scholar/agents"
	"github.com/CAICAIIs/Auto-Scholar/router"
	"github.com/CAICAIIs/Auto-Scholar/session"
)

// DefaultWorkflowTimeout is WORKFLOW_TIMEOUT_SECONDS's default (spec §4.6).
const DefaultWorkflowTimeout = 300 * time.Second

// Options configures the Scheduler. Zero values fall back to spec defaults.
type Options struct {
	// WorkflowTimeout is the whole-run deadline (WORKFLOW_TIMEOUT_SECONDS).
	WorkflowTimeout time.Duration

	// MaxQARetries overrides agents.MaxQARetries (MAX_QA_RETRIES env var).
	MaxQARetries int

	// Store is the checkpoint/step persistence backend. Defaults to an
	// in-memory store.NewMemStore, matching the teacher's own examples.
	Store store.Store[session.State]
}

// EnvOptions builds Options from the process environment, per spec §6's env
// var table.
func EnvOptions() Options {
	opts := Options{WorkflowTimeout: DefaultWorkflowTimeout}
	if v, ok := os.LookupEnv("WORKFLOW_TIMEOUT_SECONDS"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.WorkflowTimeout = time.Duration(n) * time.Second
		}
	}
	if v, ok := os.LookupEnv("MAX_QA_RETRIES"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.MaxQARetries = n
		}
	}
	return opts
}

// threadRecord tracks one caller-visible conversation: its current physical
// run, whether it sits paused at the extractor boundary, and the event
// stream accumulated so far.
type threadRecord struct {
	mu sync.Mutex

	threadID     string
	runSeq       int
	runID        string
	checkpointID string

	pausedAtExtractor bool
	state             session.State
	runErr            error
	completed         bool

	queue *eventQueue
}

// Scheduler is the spec §4.6 scheduler/graph runtime: one Engine shared
// across every thread, plus the thread bookkeeping the control surface
// (start/approve/stream/continue/status/models) needs to turn a thread_id
// into a physical runID/checkpoint pair.
type Scheduler struct {
	engine *graph.Engine[session.State]
	store  store.Store[session.State]
	deps   *agents.Deps

	mu       sync.Mutex
	threads  map[string]*threadRecord
	runIndex map[string]*threadRecord
}

// New builds the Scheduler: registers all six nodes onto a fresh
// graph.Engine[session.State] keyed by session.Merge, and applies opts
// (falling back to defaults for anything left zero).
func New(deps *agents.Deps, opts Options) (*Scheduler, error) {
	if opts.WorkflowTimeout <= 0 {
		opts.WorkflowTimeout = DefaultWorkflowTimeout
	}
	if opts.MaxQARetries > 0 {
		agents.MaxQARetries = opts.MaxQARetries
	}
	st := opts.Store
	if st == nil {
		st = store.NewMemStore[session.State]()
	}

	sched := &Scheduler{
		store:    st,
		deps:     deps,
		threads:  make(map[string]*threadRecord),
		runIndex: make(map[string]*threadRecord),
	}

	engine := graph.New[session.State](session.Merge, st, &runEmitter{sched: sched}, graph.Options{
		RunWallClockBudget: opts.WorkflowTimeout,
		DefaultNodeTimeout: 120 * time.Second,
	})

	nodes := map[string]graph.NodeFunc[session.State]{
		"planner":    agents.Planner(deps),
		"retriever":  agents.Retriever(deps),
		"extractor":  agents.Extractor(deps),
		"writer":     agents.Writer(deps),
		"critic":     agents.Critic(deps),
		"reflection": agents.Reflection(deps),
	}
	for id, fn := range nodes {
		if err := engine.Add(id, fn); err != nil {
			return nil, fmt.Errorf("runtime: registering node %q: %w", id, err)
		}
	}
	if err := engine.StartAt("planner"); err != nil {
		return nil, fmt.Errorf("runtime: start node: %w", err)
	}

	sched.engine = engine
	return sched, nil
}

// newRunID derives the physical run id for a thread's Nth execution as
// "<threadID>#<seq>"; it is a pure function of its inputs. Thread ids
// themselves come from google/uuid (newThreadID).
func newRunID(threadID string, seq int) string {
	return fmt.Sprintf("%s#%d", threadID, seq)
}

func newThreadID() string {
	return uuid.NewString()
}

// Models returns the enabled model profiles, for the models() control
// surface call (spec §6).
func (s *Scheduler) Models() []router.ModelProfile {
	if s.deps.Registry == nil {
		return nil
	}
	return s.deps.Registry.Enabled()
}

// lastNode returns the node that produced the state's most recent
// agent-handoff entry ("from→node"), used to tell whether a terminal run
// paused at retriever (awaiting approval) or actually finished at critic.
func lastNode(s session.State) string {
	if len(s.AgentHandoffs) == 0 {
		return ""
	}
	last := s.AgentHandoffs[len(s.AgentHandoffs)-1]
	idx := strings.LastIndex(last, "→")
	if idx < 0 {
		return last
	}
	return last[idx+len("→"):]
}
