package runtime

import (
	"context"
	"errors"

	"github.com/CAICAIIs/Auto-Scholar/agents"
	"github.com/CAICAIIs/Auto-Scholar/session"
)

// StartResult is the start() control-surface response (spec §6).
type StartResult struct {
	ThreadID        string
	CandidatePapers []session.PaperMetadata
	Logs            []string
}

// Start runs a fresh thread through planner and retriever, then pauses at
// the extractor boundary (spec §4.6). The retriever always routes via
// Stop(), so a clean run reaches that pause unless the run errors or times
// out first.
func (s *Scheduler) Start(ctx context.Context, query, language string, sources []string, modelID string) (StartResult, error) {
	threadID := newThreadID()
	rec := &threadRecord{threadID: threadID, queue: newEventQueue()}
	rec.runID = newRunID(threadID, 0)

	s.mu.Lock()
	s.threads[threadID] = rec
	s.runIndex[rec.runID] = rec
	s.mu.Unlock()

	initial := session.State{
		TaskID:         threadID,
		UserQuery:      query,
		OutputLanguage: language,
		SearchSources:  sources,
		ModelID:        modelID,
	}

	final, err := s.engine.Run(ctx, rec.runID, initial)
	return s.settle(ctx, rec, final, err)
}

// ApproveResult is the approve() control-surface response (spec §6).
type ApproveResult struct {
	ThreadID      string
	ApprovedCount int
}

// Approve patches is_approved=true on every candidate whose paper_id is in
// paperIDs, then resumes the paused run at extractor. It refuses (a
// PausedNotExtractorError or NoMatchingApprovalError) if the thread isn't
// paused at extractor or none of paperIDs match a candidate.
func (s *Scheduler) Approve(ctx context.Context, threadID string, paperIDs []string) (ApproveResult, error) {
	rec, err := s.lookup(threadID)
	if err != nil {
		return ApproveResult{}, err
	}

	rec.mu.Lock()
	if !rec.pausedAtExtractor {
		rec.mu.Unlock()
		return ApproveResult{}, &PausedNotExtractorError{ThreadID: threadID}
	}

	wanted := make(map[string]bool, len(paperIDs))
	for _, id := range paperIDs {
		wanted[id] = true
	}
	candidates := append([]session.PaperMetadata(nil), rec.state.CandidatePapers...)
	matched := 0
	for i, p := range candidates {
		if wanted[p.PaperID] {
			candidates[i].IsApproved = true
			matched++
		}
	}
	if matched == 0 {
		rec.mu.Unlock()
		return ApproveResult{}, &NoMatchingApprovalError{ThreadID: threadID}
	}

	patched := rec.state
	patched.CandidatePapers = candidates
	cpID := rec.checkpointID
	rec.mu.Unlock()

	if _, step, loadErr := s.store.LoadCheckpoint(ctx, cpID); loadErr == nil {
		if saveErr := s.store.SaveCheckpoint(ctx, cpID, patched, step); saveErr != nil {
			return ApproveResult{}, saveErr
		}
	} else {
		return ApproveResult{}, loadErr
	}

	rec.mu.Lock()
	rec.runSeq++
	newRun := newRunID(threadID, rec.runSeq)
	rec.runID = newRun
	rec.mu.Unlock()

	s.mu.Lock()
	s.runIndex[newRun] = rec
	s.mu.Unlock()

	final, runErr := s.engine.ResumeFromCheckpoint(ctx, cpID, newRun, "extractor")
	_, settleErr := s.settle(ctx, rec, final, runErr)
	var exhausted *QAExhaustedError
	if settleErr != nil && !errors.As(settleErr, &exhausted) {
		return ApproveResult{}, settleErr
	}
	return ApproveResult{ThreadID: threadID, ApprovedCount: matched}, settleErr
}

// ContinueResult is the continue() control-surface response (spec §6).
type ContinueResult struct {
	ThreadID string
}

// Continue patches user_query/messages/is_continuation, resets qa_errors
// and retry_count, optionally overrides model_id, and re-enters the graph
// at planner (spec's "start"). Writer then takes the continuation branch.
func (s *Scheduler) Continue(ctx context.Context, threadID, message, modelID string) (ContinueResult, error) {
	rec, err := s.lookup(threadID)
	if err != nil {
		return ContinueResult{}, err
	}

	rec.mu.Lock()
	if rec.pausedAtExtractor {
		rec.mu.Unlock()
		return ContinueResult{}, &PausedNotExtractorError{ThreadID: threadID}
	}
	patched := rec.state
	patched.UserQuery = message
	patched.Messages = append(append([]session.Message(nil), patched.Messages...), session.Message{
		Role:    "user",
		Content: message,
	})
	patched.IsContinuation = true
	patched.QAErrors = nil
	patched.RetryCount = 0
	if modelID != "" {
		patched.ModelID = modelID
	}
	rec.runSeq++
	newRun := newRunID(threadID, rec.runSeq)
	rec.runID = newRun
	rec.queue = newEventQueue()
	rec.completed = false
	rec.mu.Unlock()

	s.mu.Lock()
	s.runIndex[newRun] = rec
	s.mu.Unlock()

	final, runErr := s.engine.Run(ctx, newRun, patched)
	_, settleErr := s.settle(ctx, rec, final, runErr)
	var exhausted *QAExhaustedError
	if settleErr != nil && !errors.As(settleErr, &exhausted) {
		return ContinueResult{}, settleErr
	}
	return ContinueResult{ThreadID: threadID}, settleErr
}

// StatusResult is the status() control-surface response (spec §6).
type StatusResult struct {
	NextNodes      []string
	Logs           []string
	HasDraft       bool
	CandidateCount int
	ApprovedCount  int
}

// Status reports the thread's pending next nodes and a few cheap summary
// counts without touching the store.
func (s *Scheduler) Status(threadID string) (StatusResult, error) {
	rec, err := s.lookup(threadID)
	if err != nil {
		return StatusResult{}, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	var next []string
	if rec.pausedAtExtractor {
		next = []string{"extractor"}
	}
	approved := 0
	for _, p := range rec.state.CandidatePapers {
		if p.IsApproved {
			approved++
		}
	}
	return StatusResult{
		NextNodes:      next,
		Logs:           rec.state.Logs,
		HasDraft:       rec.state.FinalDraft != nil,
		CandidateCount: len(rec.state.CandidatePapers),
		ApprovedCount:  approved,
	}, nil
}

// Stream returns a channel of Events for threadID, starting from whatever
// has already been buffered and forwarding new events as the thread's runs
// progress. The channel closes when the thread reaches a terminal node or
// ctx is cancelled.
func (s *Scheduler) Stream(ctx context.Context, threadID string) (<-chan Event, error) {
	rec, err := s.lookup(threadID)
	if err != nil {
		return nil, err
	}

	out := make(chan Event)
	go func() {
		defer close(out)
		for idx := 0; ; idx++ {
			ev, ok, err := rec.queue.consume(ctx, idx)
			if err != nil || !ok {
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *Scheduler) lookup(threadID string) (*threadRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.threads[threadID]
	if !ok {
		return nil, &UnknownThreadError{ThreadID: threadID}
	}
	return rec, nil
}

// settle records a run's outcome on rec: on timeout it wraps the error, on
// a pause at retriever it commits a checkpoint and marks the thread paused,
// and on a genuine terminal it normalizes citations, emits the completed
// event, and closes the event queue.
func (s *Scheduler) settle(ctx context.Context, rec *threadRecord, final session.State, runErr error) (StartResult, error) {
	rec.mu.Lock()
	rec.state = final
	rec.runErr = runErr
	rec.mu.Unlock()

	if runErr != nil {
		rec.mu.Lock()
		rec.completed = true
		rec.mu.Unlock()
		if errors.Is(runErr, context.DeadlineExceeded) {
			rec.queue.push(Event{Kind: "error", Log: "workflow timed out"})
			rec.queue.close()
			return StartResult{ThreadID: rec.threadID, CandidatePapers: final.CandidatePapers, Logs: final.Logs},
				&WorkflowTimeoutError{ThreadID: rec.threadID}
		}
		rec.queue.push(Event{Kind: "error", Log: runErr.Error()})
		rec.queue.close()
		return StartResult{}, runErr
	}

	if lastNode(final) == "retriever" {
		rec.mu.Lock()
		rec.pausedAtExtractor = true
		rec.checkpointID = rec.runID + "@pause"
		cpID := rec.checkpointID
		rec.mu.Unlock()
		if err := s.engine.SaveCheckpoint(ctx, rec.runID, cpID); err != nil {
			return StartResult{}, err
		}
		return StartResult{ThreadID: rec.threadID, CandidatePapers: final.CandidatePapers, Logs: final.Logs}, nil
	}

	// Genuine terminal: clean critic pass, or reflection giving up.
	rec.mu.Lock()
	rec.pausedAtExtractor = false
	rec.completed = true
	if final.FinalDraft != nil {
		for i, sec := range final.FinalDraft.Sections {
			content, cited := agents.NormalizeCitations(sec.Content, final.SelectedPapers)
			final.FinalDraft.Sections[i].Content = content
			final.FinalDraft.Sections[i].CitedPaperIDs = cited
		}
	}
	rec.state = final
	rec.mu.Unlock()

	rec.queue.push(Event{
		Kind:            "completed",
		FinalDraft:      final.FinalDraft,
		CandidatePapers: final.CandidatePapers,
		ResearchPlan:    final.ResearchPlan,
		Reflection:      final.Reflection,
	})
	rec.queue.close()

	var outErr error
	if len(final.QAErrors) > 0 {
		outErr = &QAExhaustedError{ThreadID: rec.threadID, RetryCount: final.RetryCount}
	}
	return StartResult{ThreadID: rec.threadID, CandidatePapers: final.CandidatePapers, Logs: final.Logs}, outErr
}
