package capture

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/haivivi/loopscribe/pkg/audio/pcm"
)

var (
	// ErrWriteAfterClose is returned by ChunkWriter.Append when no chunk is
	// open or the open chunk has been finalized.
	ErrWriteAfterClose = errors.New("capture: write after close")

	// ErrChunkOpen is returned by ChunkWriter.Open while a chunk is still
	// open.
	ErrChunkOpen = errors.New("capture: chunk already open")
)

// maxPrealloc bounds the up-front allocation for a chunk buffer.
const maxPrealloc = 32 << 20

// Chunk is a contiguous segment of captured audio.
//
// A chunk belongs to its ChunkWriter until it is finalized and to the
// ChunkHandler it is handed to afterwards. Its data is never modified after
// finalization.
type Chunk struct {
	// Seq is the 0-based position of the chunk in its session.
	Seq int64

	// Data is interleaved PCM in Format.
	Data []byte

	// Format describes Data.
	Format pcm.Format

	// Start is the wall-clock time the chunk was opened.
	Start time.Time

	// Target is the rotation period the chunk was cut at.
	Target time.Duration
}

// Duration returns the length of the audio held by the chunk.
func (c *Chunk) Duration() time.Duration {
	return c.Format.Duration(int64(len(c.Data)))
}

// Name returns the archive file name, chunk_YYYYMMDD_HHMMSS_fff.wav.
func (c *Chunk) Name() string {
	return fmt.Sprintf("chunk_%s_%03d.wav",
		c.Start.Format("20060102_150405"), c.Start.Nanosecond()/int(time.Millisecond))
}

// ChunkWriter accumulates frames into the active chunk and cuts it on
// rotation. Append, Finalize and Rotate are mutually exclusive, so a
// rotation never lands between the bytes of one append.
type ChunkWriter struct {
	target time.Duration
	now    func() time.Time

	mu        sync.Mutex
	seq       int64
	cur       *Chunk
	finalized bool
}

// NewChunkWriter creates a writer whose chunks target the given duration.
func NewChunkWriter(target time.Duration) *ChunkWriter {
	return &ChunkWriter{target: target, now: time.Now}
}

// Open starts a new empty chunk in format f.
func (w *ChunkWriter) Open(f pcm.Format) (*Chunk, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cur != nil && !w.finalized {
		return nil, ErrChunkOpen
	}
	if w.cur != nil {
		w.seq++
	}
	w.openLocked(f)
	return w.cur, nil
}

func (w *ChunkWriter) openLocked(f pcm.Format) {
	size := min(f.BytesInDuration(w.target), maxPrealloc)
	w.cur = &Chunk{
		Seq:    w.seq,
		Data:   make([]byte, 0, max(size, 0)),
		Format: f,
		Start:  w.now(),
		Target: w.target,
	}
	w.finalized = false
}

// Append copies p onto the open chunk.
func (w *ChunkWriter) Append(p []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cur == nil || w.finalized {
		return ErrWriteAfterClose
	}
	w.cur.Data = append(w.cur.Data, p...)
	return nil
}

// Finalize closes the open chunk and returns it. first reports whether this
// call performed the finalization; repeated calls return the same chunk with
// first == false. It returns nil if no chunk was ever opened.
func (w *ChunkWriter) Finalize() (c *Chunk, first bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cur == nil {
		return nil, false
	}
	if w.finalized {
		return w.cur, false
	}
	w.finalized = true
	return w.cur, true
}

// Rotate finalizes the open chunk and opens the next one in the same
// format, atomically. It returns the finalized chunk, or nil if the chunk
// was empty; an empty chunk is restarted in place and keeps its Seq.
func (w *ChunkWriter) Rotate() (*Chunk, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cur == nil || w.finalized {
		return nil, ErrWriteAfterClose
	}
	if len(w.cur.Data) == 0 {
		w.cur.Start = w.now()
		return nil, nil
	}
	done := w.cur
	w.seq++
	w.openLocked(done.Format)
	return done, nil
}

// Len returns the number of bytes in the open chunk.
func (w *ChunkWriter) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cur == nil || w.finalized {
		return 0
	}
	return len(w.cur.Data)
}
