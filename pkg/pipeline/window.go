package pipeline

import (
	"strings"
	"sync"

	"github.com/haivivi/loopscribe/pkg/analysis"
	"github.com/haivivi/loopscribe/pkg/buffer"
)

// DefaultWindowSize is the number of transcripts kept for analysis context.
const DefaultWindowSize = 3

// ContextWindow keeps the most recent transcripts of a session and the set
// of questions already shown. One mutex covers both, so building a context
// together with its push, and checking a question together with recording
// it, are each atomic.
//
// Questions are compared by exact text. A reworded question is new.
type ContextWindow struct {
	mu   sync.Mutex
	ring *buffer.Ring[string]
	seen map[string]struct{}
}

// NewContextWindow creates a window of n transcripts. n <= 0 uses
// DefaultWindowSize.
func NewContextWindow(n int) *ContextWindow {
	if n <= 0 {
		n = DefaultWindowSize
	}
	return &ContextWindow{
		ring: buffer.RingN[string](n),
		seen: make(map[string]struct{}),
	}
}

// Push appends text, evicting the oldest transcript when the window is
// full. Blank text is ignored.
func (w *ContextWindow) Push(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ring.Add(text)
}

// PushAndBuild returns the window entries followed by text, joined by
// spaces, and pushes text. Blank text is not pushed.
func (w *ContextWindow) PushAndBuild(text string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	parts := w.ring.Items()
	if strings.TrimSpace(text) != "" {
		parts = append(parts, text)
		w.ring.Add(text)
	}
	return strings.Join(parts, " ")
}

// Entries returns the window contents, oldest first.
func (w *ContextWindow) Entries() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ring.Items()
}

// Len returns the number of transcripts in the window.
func (w *ContextWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ring.Len()
}

// Cap returns the window size.
func (w *ContextWindow) Cap() int {
	return w.ring.Cap()
}

// ShouldEmit reports whether q has not been seen before and records it.
func (w *ContextWindow) ShouldEmit(q string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.markLocked(q)
}

func (w *ContextWindow) markLocked(q string) bool {
	if _, ok := w.seen[q]; ok {
		return false
	}
	w.seen[q] = struct{}{}
	return true
}

// Filter keeps the pairs whose question has not been seen, records them,
// and counts the rest. The answer of a repeated question is dropped even
// if it changed.
func (w *ContextWindow) Filter(pairs []analysis.Pair) (emit []analysis.Pair, duplicates int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range pairs {
		if w.markLocked(p.Question) {
			emit = append(emit, p)
		} else {
			duplicates++
		}
	}
	return emit, duplicates
}

// Seen returns the number of distinct questions shown so far.
func (w *ContextWindow) Seen() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.seen)
}
