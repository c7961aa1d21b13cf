package pipeline

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/haivivi/loopscribe/pkg/analysis"
)

func TestContextWindow_Eviction(t *testing.T) {
	w := NewContextWindow(3)
	for i := range 5 {
		w.Push(fmt.Sprintf("t%d", i))
		if n := w.Len(); n > 3 {
			t.Fatalf("Len = %d after push %d", n, i)
		}
	}
	if got, want := w.Entries(), []string{"t2", "t3", "t4"}; !slices.Equal(got, want) {
		t.Errorf("Entries = %q, want %q", got, want)
	}
}

func TestContextWindow_Default(t *testing.T) {
	if c := NewContextWindow(0).Cap(); c != DefaultWindowSize {
		t.Errorf("Cap = %d, want %d", c, DefaultWindowSize)
	}
}

func TestContextWindow_PushAndBuild(t *testing.T) {
	w := NewContextWindow(3)
	tests := []struct {
		text    string
		want    string
		entries []string
	}{
		{"a", "a", []string{"a"}},
		{"b", "a b", []string{"a", "b"}},
		{"  ", "a b", []string{"a", "b"}},
		{"c", "a b c", []string{"a", "b", "c"}},
		{"d", "a b c d", []string{"b", "c", "d"}},
		{"e", "b c d e", []string{"c", "d", "e"}},
	}
	for _, tt := range tests {
		if got := w.PushAndBuild(tt.text); got != tt.want {
			t.Errorf("PushAndBuild(%q) = %q, want %q", tt.text, got, tt.want)
		}
		if got := w.Entries(); !slices.Equal(got, tt.entries) {
			t.Errorf("after %q Entries = %q, want %q", tt.text, got, tt.entries)
		}
	}
}

func TestContextWindow_BlankPush(t *testing.T) {
	w := NewContextWindow(3)
	w.Push("")
	w.Push(" \n")
	if n := w.Len(); n != 0 {
		t.Errorf("Len = %d, want 0", n)
	}
}

func TestContextWindow_ShouldEmit(t *testing.T) {
	w := NewContextWindow(3)
	if !w.ShouldEmit("What is ownership in Rust?") {
		t.Fatal("first ShouldEmit = false")
	}
	for range 3 {
		if w.ShouldEmit("What is ownership in Rust?") {
			t.Fatal("repeat ShouldEmit = true")
		}
	}
	// Exact match only.
	if !w.ShouldEmit("What is ownership in Rust ?") {
		t.Error("reworded question treated as seen")
	}
	if n := w.Seen(); n != 2 {
		t.Errorf("Seen = %d, want 2", n)
	}
}

func TestContextWindow_ShouldEmitConcurrent(t *testing.T) {
	w := NewContextWindow(3)
	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if w.ShouldEmit("q") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if n := wins.Load(); n != 1 {
		t.Errorf("ShouldEmit won %d times, want 1", n)
	}
}

func TestContextWindow_Filter(t *testing.T) {
	w := NewContextWindow(3)
	w.ShouldEmit("old")
	pairs := []analysis.Pair{
		{Question: "old", Answer: "updated answer"},
		{Question: "new", Answer: "a1"},
		{Question: "new", Answer: "a2"},
		{Question: "other", Answer: "a3"},
	}
	emit, dup := w.Filter(pairs)
	if dup != 2 {
		t.Errorf("duplicates = %d, want 2", dup)
	}
	if len(emit) != 2 || emit[0].Question != "new" || emit[0].Answer != "a1" || emit[1].Question != "other" {
		t.Errorf("emit = %+v", emit)
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		Received:     "received",
		Transcribing: "transcribing",
		Translating:  "translating",
		Analyzing:    "analyzing",
		Merging:      "merging",
		Done:         "done",
		State(42):    "State(42)",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}

func TestSequencer(t *testing.T) {
	s := newSequencer()
	for range 4 {
		s.take()
	}
	var got []int64
	rec := func(t int64) func() { return func() { got = append(got, t) } }

	s.release(2, rec(2))
	s.release(1, nil)
	if len(got) != 0 {
		t.Fatalf("released early: %v", got)
	}
	s.release(0, rec(0))
	if !slices.Equal(got, []int64{0, 2}) {
		t.Fatalf("released %v, want [0 2]", got)
	}
	s.release(3, rec(3))
	if !slices.Equal(got, []int64{0, 2, 3}) {
		t.Errorf("released %v, want [0 2 3]", got)
	}
}
