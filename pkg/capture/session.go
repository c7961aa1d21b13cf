package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/haivivi/loopscribe/pkg/audio/pcm"
)

// ErrCapture wraps failures of the audio source. It ends the session.
var ErrCapture = errors.New("capture: source failure")

const (
	// DefaultPeriod is the default chunk rotation period.
	DefaultPeriod = 30 * time.Second

	// DefaultFrameBuffer is the default number of frames that may be queued
	// between the source and the chunk writer.
	DefaultFrameBuffer = 256
)

// Source produces raw PCM frames.
//
// Start begins delivering frames to emit from a goroutine owned by the
// source. emit may block; the source must tolerate that. end is called at
// most once if the source stops on its own: with nil at end of stream, or
// with the failure. After Stop returns, emit and end are not called again.
type Source interface {
	Format() pcm.Format
	Start(ctx context.Context, emit func(frame []byte), end func(err error)) error
	Stop() error
}

// ChunkHandler receives finalized chunks in rotation order. It is called on
// the session goroutine and should return quickly.
type ChunkHandler interface {
	HandleChunk(c *Chunk)
}

// ChunkHandlerFunc adapts a function to ChunkHandler.
type ChunkHandlerFunc func(c *Chunk)

// HandleChunk calls f(c).
func (f ChunkHandlerFunc) HandleChunk(c *Chunk) { f(c) }

// Ticker abstracts time.Ticker for tests.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// Options configures a Session.
type Options struct {
	// Period is the chunk rotation period. Default 30s.
	Period time.Duration

	// FrameBuffer bounds the frame channel. Default 256.
	FrameBuffer int

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// NewTicker overrides the rotation ticker.
	NewTicker func(d time.Duration) Ticker
}

// Stats counts what a session has moved so far.
type Stats struct {
	Frames int64 `json:"frames" yaml:"frames"`
	Bytes  int64 `json:"bytes" yaml:"bytes"`
	Chunks int64 `json:"chunks" yaml:"chunks"`
}

// Session captures audio from a Source and cuts it into chunks on a timer.
//
// Frames travel from the source goroutine to a single session goroutine over
// a bounded channel with blocking sends: a slow consumer briefly stalls the
// source rather than losing audio. The session goroutine owns all appends
// and rotations and hands each non-empty chunk to the handler exactly once.
type Session struct {
	src     Source
	handler ChunkHandler
	opts    Options
	log     *slog.Logger

	frames, bytes, chunks atomic.Int64

	mu      sync.Mutex
	running bool
	run     *run
}

type run struct {
	writer *ChunkWriter
	ticker Ticker
	halt   chan struct{}
	done   chan struct{}

	sendMu sync.RWMutex
	closed bool
	frames chan []byte

	stopOnce sync.Once
	stopErr  error

	errMu sync.Mutex
	err   error
}

// NewSession creates a session that reads from src and hands chunks to h.
func NewSession(src Source, h ChunkHandler, opts Options) *Session {
	if opts.Period <= 0 {
		opts.Period = DefaultPeriod
	}
	if opts.FrameBuffer <= 0 {
		opts.FrameBuffer = DefaultFrameBuffer
	}
	if opts.NewTicker == nil {
		opts.NewTicker = func(d time.Duration) Ticker { return timeTicker{time.NewTicker(d)} }
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Session{src: src, handler: h, opts: opts, log: log}
}

// Start begins capturing. Calling Start on a running session does nothing.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	f := s.src.Format()
	w := NewChunkWriter(s.opts.Period)
	if _, err := w.Open(f); err != nil {
		return err
	}
	r := &run{
		writer: w,
		halt:   make(chan struct{}),
		done:   make(chan struct{}),
		frames: make(chan []byte, s.opts.FrameBuffer),
	}
	r.ticker = s.opts.NewTicker(s.opts.Period)

	if err := s.src.Start(ctx, func(p []byte) { s.emit(r, p) }, func(err error) { s.end(r, err) }); err != nil {
		r.ticker.Stop()
		return fmt.Errorf("%w: %w", ErrCapture, err)
	}

	s.run = r
	s.running = true
	go s.loop(r)
	s.log.Info("capture started", "format", f.String(), "period", s.opts.Period)
	return nil
}

// Stop ends the session: it stops rotation, stops the source, writes out
// every buffered frame and hands off the final partial chunk if it holds
// any audio. Stop on a session that was never started does nothing;
// repeated calls return the first result.
//
// The returned error wraps ErrCapture if the source failed.
func (s *Session) Stop() error {
	s.mu.Lock()
	r := s.run
	s.running = false
	s.mu.Unlock()
	if r == nil {
		return nil
	}
	return s.stop(r)
}

func (s *Session) stop(r *run) error {
	r.stopOnce.Do(func() {
		close(r.halt)

		srcErr := s.src.Stop()

		r.sendMu.Lock()
		r.closed = true
		close(r.frames)
		r.sendMu.Unlock()

		<-r.done

		err := r.failure()
		if err == nil && srcErr != nil {
			err = fmt.Errorf("%w: %w", ErrCapture, srcErr)
		}
		r.stopErr = err
		st := s.Stats()
		s.log.Info("capture stopped", "chunks", st.Chunks, "bytes", st.Bytes)
	})
	<-r.done
	return r.stopErr
}

// Done returns a channel closed once the session goroutine has exited,
// either through Stop or because the source ended.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.run.done
}

// Err returns the source failure that ended the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	r := s.run
	s.mu.Unlock()
	if r == nil {
		return nil
	}
	return r.failure()
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	return Stats{
		Frames: s.frames.Load(),
		Bytes:  s.bytes.Load(),
		Chunks: s.chunks.Load(),
	}
}

// emit runs on the source goroutine.
func (s *Session) emit(r *run, p []byte) {
	if len(p) == 0 {
		return
	}
	frame := make([]byte, len(p))
	copy(frame, p)

	r.sendMu.RLock()
	defer r.sendMu.RUnlock()
	if r.closed {
		return
	}
	r.frames <- frame
}

// end runs on the source goroutine.
func (s *Session) end(r *run, err error) {
	if err != nil {
		r.errMu.Lock()
		if r.err == nil {
			r.err = fmt.Errorf("%w: %w", ErrCapture, err)
		}
		r.errMu.Unlock()
		s.log.Error("capture source failed", "error", err)
	} else {
		s.log.Info("capture source ended")
	}
	s.mu.Lock()
	if s.run == r {
		s.running = false
	}
	s.mu.Unlock()
	go s.stop(r)
}

func (r *run) failure() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.err
}

func (s *Session) loop(r *run) {
	defer close(r.done)
	tick, halt := r.ticker.C(), r.halt
	for {
		select {
		case p, ok := <-r.frames:
			if !ok {
				r.ticker.Stop()
				s.flush(r)
				return
			}
			if err := r.writer.Append(p); err != nil {
				s.log.Error("append frame", "error", err)
				continue
			}
			s.frames.Add(1)
			s.bytes.Add(int64(len(p)))
		case <-tick:
			c, err := r.writer.Rotate()
			if err != nil {
				s.log.Error("rotate chunk", "error", err)
				continue
			}
			if c != nil {
				s.handoff(c)
			}
		case <-halt:
			r.ticker.Stop()
			tick, halt = nil, nil
		}
	}
}

func (s *Session) flush(r *run) {
	c, first := r.writer.Finalize()
	if !first || c == nil || len(c.Data) == 0 {
		return
	}
	s.handoff(c)
}

func (s *Session) handoff(c *Chunk) {
	s.chunks.Add(1)
	s.log.Debug("chunk ready", "seq", c.Seq, "bytes", len(c.Data), "duration", c.Duration())
	if s.handler != nil {
		s.handler.HandleChunk(c)
	}
}
