package runtime

import (
	"context"
	"sync"

	"github.com/dshills/langgraph-go/graph/emit"

	"github.com/CAICAIIs/Auto-Scholar/session"
)

// Event is one item of a thread's stream(thread_id) sequence (spec §6): a
// per-node log line, a research_plan/reflection/cost_update notification, or
// the terminal completed event.
type Event struct {
	Node string `json:"node,omitempty"`
	Log  string `json:"log,omitempty"`

	Kind string `json:"event,omitempty"` // "research_plan" | "reflection" | "cost_update" | "completed" | "error"

	ResearchPlan *session.ResearchPlan `json:"research_plan,omitempty"`
	Reflection   *session.Reflection   `json:"reflection,omitempty"`
	CostUSD      float64               `json:"cost_usd,omitempty"`

	FinalDraft      *session.Draft          `json:"final_draft,omitempty"`
	CandidatePapers []session.PaperMetadata `json:"candidate_papers,omitempty"`
}

// eventQueue is an unbounded, single-producer/multi-consumer FIFO of Events
// for one thread, closed once the thread reaches a terminal node. Its
// push/consume/close shape follows eventbus.Stream (graph/.. C4), generalized
// from debounced string tokens to structured per-node Events since the
// control surface streams node-level updates, not LM token chunks.
type eventQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []Event
	closed bool
}

func newEventQueue() *eventQueue {
	q := &eventQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *eventQueue) push(e Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, e)
	q.cond.Broadcast()
}

func (q *eventQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// consume blocks until the item at index is available, the queue is closed
// with no more items beyond index, or ctx is cancelled.
func (q *eventQueue) consume(ctx context.Context, index int) (Event, bool, error) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			q.mu.Lock()
			q.cond.Broadcast()
			q.mu.Unlock()
		case <-done:
		}
	}()

	q.mu.Lock()
	defer q.mu.Unlock()
	for index >= len(q.items) && !q.closed {
		if ctx.Err() != nil {
			return Event{}, false, ctx.Err()
		}
		q.cond.Wait()
	}
	if ctx.Err() != nil {
		return Event{}, false, ctx.Err()
	}
	if index >= len(q.items) {
		return Event{}, false, nil // closed, drained
	}
	return q.items[index], true, nil
}

// runEmitter bridges graph.Engine's node_end events (which carry the node's
// raw state delta in Meta["delta"], see Engine.emitNodeEnd) into one
// thread's Event stream: each delta's log lines, research_plan, and
// reflection become stream items, followed by a cost_update snapshot from
// the shared cost tracker.
type runEmitter struct {
	sched *Scheduler
}

func (e *runEmitter) Emit(ev emit.Event) {
	if ev.Msg != "node_end" {
		return
	}
	delta, ok := ev.Meta["delta"].(session.State)
	if !ok {
		return
	}

	e.sched.mu.Lock()
	rec := e.sched.runIndex[ev.RunID]
	e.sched.mu.Unlock()
	if rec == nil {
		return
	}

	for _, line := range delta.Logs {
		rec.queue.push(Event{Node: ev.NodeID, Log: line})
	}
	if delta.ResearchPlan != nil {
		rec.queue.push(Event{Kind: "research_plan", ResearchPlan: delta.ResearchPlan})
	}
	if delta.Reflection != nil {
		rec.queue.push(Event{Kind: "reflection", Reflection: delta.Reflection})
	}
	if e.sched.deps.Tracker != nil {
		rec.queue.push(Event{Kind: "cost_update", CostUSD: e.sched.deps.Tracker.TotalCost()})
	}
}

func (e *runEmitter) EmitBatch(_ context.Context, events []emit.Event) error {
	for _, ev := range events {
		e.Emit(ev)
	}
	return nil
}

func (e *runEmitter) Flush(_ context.Context) error { return nil }
