package buffer

import "sync"

// Ring is a thread-safe fixed-capacity buffer that evicts the oldest item
// when a new one is added to a full ring.
type Ring[T any] struct {
	mu   sync.Mutex
	buf  []T
	head int // index of the oldest item
	size int
}

// RingN creates a Ring holding at most n items. n must be positive.
func RingN[T any](n int) *Ring[T] {
	if n <= 0 {
		panic("buffer: ring size must be positive")
	}
	return &Ring[T]{buf: make([]T, n)}
}

// Add appends t. If the ring is full the oldest item is evicted and
// returned with ok set.
func (r *Ring[T]) Add(t T) (evicted T, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.size < len(r.buf) {
		r.buf[(r.head+r.size)%len(r.buf)] = t
		r.size++
		return
	}
	evicted, ok = r.buf[r.head], true
	r.buf[r.head] = t
	r.head = (r.head + 1) % len(r.buf)
	return
}

// Items returns a copy of the ring contents, oldest first.
func (r *Ring[T]) Items() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, r.size)
	for i := range r.size {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

// Len returns the number of items in the ring.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// Reset empties the ring.
func (r *Ring[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.buf)
	r.head, r.size = 0, 0
}
