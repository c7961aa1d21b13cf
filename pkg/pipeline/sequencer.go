package pipeline

import "sync"

// sequencer releases per-chunk callbacks in ticket order regardless of the
// order in which chunks finish.
type sequencer struct {
	mu      sync.Mutex
	next    int64
	head    int64
	pending map[int64]func()
}

func newSequencer() *sequencer {
	return &sequencer{pending: make(map[int64]func())}
}

// take assigns the next ticket. Tickets must be taken in arrival order.
func (s *sequencer) take() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.next
	s.next++
	return t
}

// release marks ticket t finished. fn, if not nil, runs once every earlier
// ticket has been released. Callbacks run with the sequencer locked, one
// at a time.
func (s *sequencer) release(t int64, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		fn = func() {}
	}
	s.pending[t] = fn
	for {
		f, ok := s.pending[s.head]
		if !ok {
			return
		}
		delete(s.pending, s.head)
		s.head++
		f()
	}
}
