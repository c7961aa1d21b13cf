package capture

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/haivivi/loopscribe/pkg/audio/pcm"
	"github.com/haivivi/loopscribe/pkg/audio/wav"
)

// DefaultFrameDuration is the amount of audio FileSource emits per frame.
const DefaultFrameDuration = 20 * time.Millisecond

// FileSource replays PCM as if it were being captured live. It is used to
// run the pipeline against recordings.
type FileSource struct {
	format pcm.Format
	data   []byte

	// FrameDuration is the audio per emitted frame. Default 20ms.
	FrameDuration time.Duration

	// Speed scales playback: 1 is real time, 2 twice as fast. Zero or
	// negative emits as fast as the consumer accepts.
	Speed float64

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewFileSource replays data in format f.
func NewFileSource(f pcm.Format, data []byte, speed float64) *FileSource {
	return &FileSource{format: f, data: data, Speed: speed}
}

// OpenWAV loads a WAVE file for replay.
func OpenWAV(path string, speed float64) (*FileSource, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fd.Close()
	f, data, err := wav.Read(fd)
	if err != nil {
		return nil, fmt.Errorf("capture: open %s: %w", path, err)
	}
	return NewFileSource(f, data, speed), nil
}

// Format returns the format of the replayed audio.
func (s *FileSource) Format() pcm.Format {
	return s.format
}

// Start begins replay on a new goroutine. end(nil) is called once the whole
// recording has been emitted.
func (s *FileSource) Start(ctx context.Context, emit func([]byte), end func(error)) error {
	if err := s.format.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return fmt.Errorf("capture: file source already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	fd := s.FrameDuration
	if fd <= 0 {
		fd = DefaultFrameDuration
	}
	step := int(s.format.BytesInDuration(fd))
	if step <= 0 {
		step = s.format.FrameBytes()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		var tick <-chan time.Time
		if s.Speed > 0 {
			t := time.NewTicker(time.Duration(float64(fd) / s.Speed))
			defer t.Stop()
			tick = t.C
		}
		for off := 0; off < len(s.data); off += step {
			if tick != nil {
				select {
				case <-ctx.Done():
					return
				case <-tick:
				}
			} else if ctx.Err() != nil {
				return
			}
			emit(s.data[off:min(off+step, len(s.data))])
		}
		if ctx.Err() == nil {
			end(nil)
		}
	}()
	return nil
}

// Stop halts replay and waits for the replay goroutine to exit.
func (s *FileSource) Stop() error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	s.wg.Wait()
	return nil
}
