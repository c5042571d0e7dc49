package runtime

import (
	"testing"

	"github.com/CAICAIIs/Auto-Scholar/session"
)

func TestLastNode(t *testing.T) {
	cases := []struct {
		name string
		s    session.State
		want string
	}{
		{"empty", session.State{}, ""},
		{"first hop", session.State{AgentHandoffs: []string{"start→planner"}}, "planner"},
		{"several hops", session.State{AgentHandoffs: []string{
			"start→planner", "planner→retriever", "retriever→extractor",
		}}, "extractor"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := lastNode(tc.s); got != tc.want {
				t.Errorf("lastNode() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNewRunIDIsStableAndDistinctPerSeq(t *testing.T) {
	a := newRunID("thread-1", 0)
	b := newRunID("thread-1", 1)
	if a == b {
		t.Fatalf("expected distinct run ids for different sequence numbers, got %q twice", a)
	}
	if newRunID("thread-1", 0) != a {
		t.Fatalf("newRunID should be a pure function of (threadID, seq)")
	}
}

func TestErrorMessages(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&PausedNotExtractorError{ThreadID: "t1"}, "thread t1 is not paused at extractor"},
		{&NoMatchingApprovalError{ThreadID: "t1"}, "thread t1: no supplied paper id matches a candidate"},
		{&WorkflowTimeoutError{ThreadID: "t1"}, "thread t1: workflow timed out"},
		{&QAExhaustedError{ThreadID: "t1", RetryCount: 3}, "thread t1: qa exhausted after 3 retries"},
		{&UnknownThreadError{ThreadID: "t1"}, "unknown thread t1"},
	}
	for _, tc := range cases {
		if got := tc.err.Error(); got != tc.want {
			t.Errorf("Error() = %q, want %q", got, tc.want)
		}
	}
}
