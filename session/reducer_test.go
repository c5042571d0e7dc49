package session

import (
	"reflect"
	"testing"
)

func TestMergeAppendFieldsAccumulate(t *testing.T) {
	prev := State{Logs: []string{"a"}, Messages: []Message{{Role: "user", Content: "hi"}}}
	delta := Base(prev)
	delta.Logs = []string{"b"}
	delta.Messages = []Message{{Role: "assistant", Content: "hello"}}

	got := Merge(prev, delta)

	want := []string{"a", "b"}
	if !reflect.DeepEqual(got.Logs, want) {
		t.Fatalf("Logs = %v, want %v", got.Logs, want)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("Messages len = %d, want 2", len(got.Messages))
	}
}

func TestMergeReplaceFieldsOverwrite(t *testing.T) {
	prev := State{CandidatePapers: []PaperMetadata{{PaperID: "p1"}}, RetryCount: 1}
	delta := Base(prev)
	delta.CandidatePapers = []PaperMetadata{{PaperID: "p2"}, {PaperID: "p3"}}
	delta.RetryCount = 2

	got := Merge(prev, delta)

	if len(got.CandidatePapers) != 2 || got.CandidatePapers[0].PaperID != "p2" {
		t.Fatalf("CandidatePapers = %+v, want replaced with p2,p3", got.CandidatePapers)
	}
	if got.RetryCount != 2 {
		t.Fatalf("RetryCount = %d, want 2", got.RetryCount)
	}
}

func TestMergeReplaceEmptySliceIsHonored(t *testing.T) {
	// A node that legitimately produces zero candidates (e.g. retrieval
	// found nothing) must be able to clear the prior value.
	prev := State{CandidatePapers: []PaperMetadata{{PaperID: "p1"}}}
	delta := Base(prev)
	delta.CandidatePapers = []PaperMetadata{}

	got := Merge(prev, delta)

	if len(got.CandidatePapers) != 0 {
		t.Fatalf("CandidatePapers = %+v, want empty", got.CandidatePapers)
	}
}

func TestBaseClearsAppendFields(t *testing.T) {
	prev := State{Logs: []string{"a", "b"}, UserQuery: "q"}
	delta := Base(prev)

	if len(delta.Logs) != 0 {
		t.Fatalf("Base should clear Logs, got %v", delta.Logs)
	}
	if delta.UserQuery != "q" {
		t.Fatalf("Base should carry forward Replace fields, got UserQuery=%q", delta.UserQuery)
	}
}
