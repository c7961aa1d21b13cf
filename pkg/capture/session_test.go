package capture

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/haivivi/loopscribe/pkg/audio/pcm"
)

// manualSource lets a test push frames and end the stream by hand.
type manualSource struct {
	format   pcm.Format
	startErr error
	stopErr  error

	mu     sync.Mutex
	starts int
	emit   func([]byte)
	end    func(error)
}

func (m *manualSource) Format() pcm.Format { return m.format }

func (m *manualSource) Start(_ context.Context, emit func([]byte), end func(error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	if m.startErr != nil {
		return m.startErr
	}
	m.emit, m.end = emit, end
	return nil
}

func (m *manualSource) Stop() error { return m.stopErr }

func (m *manualSource) push(p []byte) {
	m.mu.Lock()
	emit := m.emit
	m.mu.Unlock()
	emit(p)
}

// manualTicker fires only when the test says so.
type manualTicker struct {
	ch chan time.Time
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop()               {}

// collector records handed-off chunks.
type collector struct {
	mu     sync.Mutex
	chunks []*Chunk
}

func (c *collector) HandleChunk(ch *Chunk) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chunks = append(c.chunks, ch)
}

func (c *collector) snapshot() []*Chunk {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Chunk(nil), c.chunks...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func newTestSession(src Source, h ChunkHandler) (*Session, *manualTicker) {
	tk := &manualTicker{ch: make(chan time.Time)}
	s := NewSession(src, h, Options{
		Period:      time.Second,
		FrameBuffer: 4,
		NewTicker:   func(time.Duration) Ticker { return tk },
	})
	return s, tk
}

func frame(b byte, n int) []byte {
	return bytes.Repeat([]byte{b}, n)
}

func TestSession_RotationAndReconstruction(t *testing.T) {
	src := &manualSource{format: pcm.L16Mono16K}
	col := &collector{}
	s, tk := newTestSession(src, col)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	var want []byte
	batches := []int{10, 7, 3}
	var frames int64
	for i, n := range batches {
		for j := range n {
			p := frame(byte(i*16+j), 4)
			want = append(want, p...)
			src.push(p)
		}
		frames += int64(n)
		waitFor(t, "frames appended", func() bool { return s.Stats().Frames == frames })
		if i < len(batches)-1 {
			tk.ch <- time.Now()
			// An idle tick must not produce an empty chunk.
			tk.ch <- time.Now()
			waitFor(t, "rotation", func() bool { return len(col.snapshot()) == i+1 })
		}
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop error: %v", err)
	}

	chunks := col.snapshot()
	if len(chunks) != len(batches) {
		t.Fatalf("got %d chunks, want %d", len(chunks), len(batches))
	}
	var got []byte
	for i, c := range chunks {
		if c.Seq != int64(i) {
			t.Errorf("chunk %d has Seq %d", i, c.Seq)
		}
		if len(c.Data) != batches[i]*4 {
			t.Errorf("chunk %d has %d bytes, want %d", i, len(c.Data), batches[i]*4)
		}
		got = append(got, c.Data...)
	}
	if !bytes.Equal(got, want) {
		t.Fatal("concatenated chunks differ from captured stream")
	}
	if st := s.Stats(); st.Chunks != 3 || st.Bytes != int64(len(want)) {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestSession_StopFlushesPartialChunk(t *testing.T) {
	src := &manualSource{format: pcm.L16Mono16K}
	col := &collector{}
	s, _ := newTestSession(src, col)
	s.Start(context.Background())

	for i := range 5 {
		src.push(frame(byte(i), 2))
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop error: %v", err)
	}

	chunks := col.snapshot()
	if len(chunks) != 1 || len(chunks[0].Data) != 10 {
		t.Fatalf("chunks = %d, want one 10-byte chunk", len(chunks))
	}
	select {
	case <-s.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}

	// A second Stop must not hand off the chunk again.
	if err := s.Stop(); err != nil {
		t.Fatalf("second Stop error: %v", err)
	}
	if len(col.snapshot()) != 1 {
		t.Fatal("second Stop produced another chunk")
	}
}

func TestSession_StopWithoutAudio(t *testing.T) {
	src := &manualSource{format: pcm.L16Mono16K}
	col := &collector{}
	s, _ := newTestSession(src, col)
	s.Start(context.Background())
	s.Stop()
	if n := len(col.snapshot()); n != 0 {
		t.Fatalf("got %d chunks from a silent session, want 0", n)
	}
}

func TestSession_StartStopIdempotent(t *testing.T) {
	src := &manualSource{format: pcm.L16Mono16K}
	s, _ := newTestSession(src, nil)

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop before Start: %v", err)
	}
	s.Start(context.Background())
	s.Start(context.Background())
	if src.starts != 1 {
		t.Fatalf("source started %d times, want 1", src.starts)
	}
	s.Stop()
}

func TestSession_SourceStartFailure(t *testing.T) {
	boom := errors.New("device busy")
	src := &manualSource{format: pcm.L16Mono16K, startErr: boom}
	s, _ := newTestSession(src, nil)

	err := s.Start(context.Background())
	if !errors.Is(err, ErrCapture) || !errors.Is(err, boom) {
		t.Fatalf("Start error = %v, want ErrCapture wrapping boom", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop after failed Start: %v", err)
	}
}

func TestSession_SourceFailureEndsSession(t *testing.T) {
	src := &manualSource{format: pcm.L16Mono16K}
	col := &collector{}
	s, _ := newTestSession(src, col)
	s.Start(context.Background())

	src.push(frame(1, 8))
	waitFor(t, "frame appended", func() bool { return s.Stats().Frames == 1 })
	src.end(errors.New("device unplugged"))

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end after source failure")
	}
	if err := s.Err(); !errors.Is(err, ErrCapture) {
		t.Fatalf("Err() = %v, want ErrCapture", err)
	}
	if err := s.Stop(); !errors.Is(err, ErrCapture) {
		t.Fatalf("Stop() = %v, want ErrCapture", err)
	}
	if chunks := col.snapshot(); len(chunks) != 1 || len(chunks[0].Data) != 8 {
		t.Fatalf("partial chunk not flushed: %d chunks", len(chunks))
	}
}

func TestSession_Backpressure(t *testing.T) {
	src := &manualSource{format: pcm.L16Mono16K}
	release := make(chan struct{})
	var (
		mu    sync.Mutex
		total int
	)
	h := ChunkHandlerFunc(func(c *Chunk) {
		<-release
		mu.Lock()
		total += len(c.Data)
		mu.Unlock()
	})
	s, tk := newTestSession(src, h)
	s.Start(context.Background())

	src.push(frame(1, 2))
	waitFor(t, "first frame", func() bool { return s.Stats().Frames == 1 })
	tk.ch <- time.Now() // handler now blocks the session goroutine

	pushed := make(chan struct{})
	go func() {
		defer close(pushed)
		for range 100 {
			src.push(frame(2, 2))
		}
	}()

	select {
	case <-pushed:
		t.Fatal("source was not held back by a full frame buffer")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-pushed
	s.Stop()

	mu.Lock()
	defer mu.Unlock()
	if total != 202 {
		t.Fatalf("handled %d bytes, want 202", total)
	}
}

func TestSession_FileSourceEndsOnItsOwn(t *testing.T) {
	data := make([]byte, pcm.L16Mono16K.BytesInDuration(200*time.Millisecond))
	for i := range data {
		data[i] = byte(i)
	}
	src := NewFileSource(pcm.L16Mono16K, data, 0)
	col := &collector{}
	s := NewSession(src, col, Options{Period: time.Hour})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end at end of file")
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
	chunks := col.snapshot()
	if len(chunks) != 1 || !bytes.Equal(chunks[0].Data, data) {
		t.Fatalf("got %d chunks, want the whole recording in one", len(chunks))
	}
	if st := s.Stats(); st.Frames != 10 {
		t.Errorf("Frames = %d, want 10 frames of 20ms", st.Frames)
	}
}
