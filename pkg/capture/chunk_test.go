package capture

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/haivivi/loopscribe/pkg/audio/pcm"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestChunkWriter_AppendFinalize(t *testing.T) {
	w := NewChunkWriter(time.Second)
	if err := w.Append([]byte{1}); !errors.Is(err, ErrWriteAfterClose) {
		t.Fatalf("Append before Open: err = %v, want ErrWriteAfterClose", err)
	}

	if _, err := w.Open(pcm.L16Mono16K); err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if _, err := w.Open(pcm.L16Mono16K); !errors.Is(err, ErrChunkOpen) {
		t.Fatalf("second Open: err = %v, want ErrChunkOpen", err)
	}
	w.Append([]byte{1, 2})
	w.Append([]byte{3, 4})

	c, first := w.Finalize()
	if !first {
		t.Fatal("first Finalize reported first = false")
	}
	if !bytes.Equal(c.Data, []byte{1, 2, 3, 4}) {
		t.Fatalf("Data = %v", c.Data)
	}

	again, first := w.Finalize()
	if first || again != c {
		t.Fatalf("second Finalize = %p, %v; want same chunk, false", again, first)
	}
	if err := w.Append([]byte{5}); !errors.Is(err, ErrWriteAfterClose) {
		t.Fatalf("Append after Finalize: err = %v, want ErrWriteAfterClose", err)
	}
	if !bytes.Equal(c.Data, []byte{1, 2, 3, 4}) {
		t.Fatalf("finalized chunk changed: %v", c.Data)
	}
}

func TestChunkWriter_Rotate(t *testing.T) {
	w := NewChunkWriter(time.Second)
	if _, err := w.Rotate(); !errors.Is(err, ErrWriteAfterClose) {
		t.Fatalf("Rotate before Open: err = %v", err)
	}
	w.Open(pcm.L16Mono16K)

	c, err := w.Rotate()
	if err != nil || c != nil {
		t.Fatalf("Rotate of empty chunk = %v, %v; want nil, nil", c, err)
	}

	w.Append([]byte{1, 2})
	c0, err := w.Rotate()
	if err != nil {
		t.Fatalf("Rotate error: %v", err)
	}
	if c0.Seq != 0 || !bytes.Equal(c0.Data, []byte{1, 2}) {
		t.Fatalf("first chunk = seq %d data %v", c0.Seq, c0.Data)
	}

	w.Append([]byte{3, 4})
	if w.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", w.Len())
	}
	c1, _ := w.Rotate()
	if c1.Seq != 1 || !bytes.Equal(c1.Data, []byte{3, 4}) {
		t.Fatalf("second chunk = seq %d data %v", c1.Seq, c1.Data)
	}
	if !bytes.Equal(c0.Data, []byte{1, 2}) {
		t.Fatalf("rotated chunk changed: %v", c0.Data)
	}

	w.Append([]byte{5, 6})
	c2, first := w.Finalize()
	if !first || c2.Seq != 2 {
		t.Fatalf("final chunk seq = %d, first = %v", c2.Seq, first)
	}
	if _, err := w.Rotate(); !errors.Is(err, ErrWriteAfterClose) {
		t.Fatalf("Rotate after Finalize: err = %v", err)
	}

	c3, err := w.Open(pcm.L16Mono16K)
	if err != nil || c3.Seq != 3 {
		t.Fatalf("Open after Finalize = seq %v, err %v", c3, err)
	}
}

func TestChunk_NameAndDuration(t *testing.T) {
	start := time.Date(2025, 3, 9, 14, 5, 7, 42_000_000, time.UTC)
	w := NewChunkWriter(30 * time.Second)
	w.now = fixedClock(start)
	c, _ := w.Open(pcm.L16Mono16K)
	w.Append(make([]byte, 32000))
	w.Finalize()

	if got, want := c.Name(), "chunk_20250309_140507_042.wav"; got != want {
		t.Errorf("Name() = %q, want %q", got, want)
	}
	if got := c.Duration(); got != time.Second {
		t.Errorf("Duration() = %v, want 1s", got)
	}
	if c.Target != 30*time.Second {
		t.Errorf("Target = %v", c.Target)
	}
}
