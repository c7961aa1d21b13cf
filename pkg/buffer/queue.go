package buffer

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrIteratorDone is returned by Pop once the queue is closed for writing
// and drained.
var ErrIteratorDone = errors.New("iterator done")

// Queue is an unbounded thread-safe FIFO queue.
//
// Push never blocks, so producers on latency-sensitive goroutines can hand
// items off without waiting for the consumer. Pop blocks until an item is
// available or the queue is closed.
//
// CloseWrite stops further pushes while letting the consumer drain what is
// already queued; CloseWithError drops queued items and unblocks everyone.
type Queue[T any] struct {
	writeNotify chan struct{}

	mu         sync.Mutex
	closeWrite bool
	closeErr   error
	items      []T
}

// NewQueue creates a Queue with room for n items before it grows.
func NewQueue[T any](n int) *Queue[T] {
	return &Queue[T]{
		writeNotify: make(chan struct{}, 1),
		items:       make([]T, 0, n),
	}
}

// Push appends t to the tail of the queue.
//
// Returns an error wrapping io.ErrClosedPipe once the queue is closed for
// writing.
func (q *Queue[T]) Push(t T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closeErr != nil {
		return fmt.Errorf("buffer: push to closed queue: %w", q.closeErr)
	}
	if q.closeWrite {
		return fmt.Errorf("buffer: push to closed queue: %w", io.ErrClosedPipe)
	}
	q.items = append(q.items, t)
	select {
	case q.writeNotify <- struct{}{}:
	default:
	}
	return nil
}

// Pop removes and returns the head of the queue, blocking while the queue
// is empty. It returns ErrIteratorDone once the queue is closed for writing
// and empty.
func (q *Queue[T]) Pop() (t T, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closeErr != nil {
		err = fmt.Errorf("buffer: pop from closed queue: %w", q.closeErr)
		return
	}
	for len(q.items) == 0 {
		if q.closeWrite {
			err = ErrIteratorDone
			return
		}
		q.mu.Unlock()
		<-q.writeNotify
		q.mu.Lock()
		if q.closeErr != nil {
			err = fmt.Errorf("buffer: pop from closed queue: %w", q.closeErr)
			return
		}
	}
	t = q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	return
}

// CloseWrite prevents further pushes. Queued items can still be popped.
func (q *Queue[T]) CloseWrite() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closeWrite {
		return nil
	}
	q.closeWrite = true
	close(q.writeNotify)
	return nil
}

// CloseWithError closes both ends and drops queued items. If err is nil,
// io.ErrClosedPipe is used.
func (q *Queue[T]) CloseWithError(err error) error {
	if err == nil {
		err = io.ErrClosedPipe
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closeErr != nil {
		return nil
	}
	q.closeErr = err
	q.items = nil
	if !q.closeWrite {
		q.closeWrite = true
		close(q.writeNotify)
	}
	return nil
}

// Close is CloseWithError(io.ErrClosedPipe).
func (q *Queue[T]) Close() error {
	return q.CloseWithError(io.ErrClosedPipe)
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
