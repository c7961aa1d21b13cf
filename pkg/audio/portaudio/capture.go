//go:build portaudio

package portaudio

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/haivivi/loopscribe/pkg/audio/pcm"
)

// Capture records from one input device. It satisfies capture.Source.
type Capture struct {
	device DeviceInfo
	format pcm.Format
	frames int

	mu     sync.Mutex
	stream *stream
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Open prepares a capture from the device selected by name (see Select) in
// format f, reading bufferDuration of audio per frame. A zero SampleRate in
// f uses the device default rate.
func Open(name string, f pcm.Format, bufferDuration time.Duration) (*Capture, error) {
	devices, err := Devices()
	if err != nil {
		return nil, err
	}
	dev, err := Select(devices, name)
	if err != nil {
		return nil, err
	}
	if f.SampleRate == 0 {
		f.SampleRate = int(dev.DefaultSampleRate)
	}
	if f.Channels == 0 {
		f.Channels = min(dev.MaxInputChannels, 2)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &Capture{
		device: dev,
		format: f,
		frames: int(f.SamplesInDuration(bufferDuration)),
	}, nil
}

// Device returns the selected device.
func (c *Capture) Device() DeviceInfo {
	return c.device
}

// Format returns the capture format.
func (c *Capture) Format() pcm.Format {
	return c.format
}

// Start opens the device and reads from it on a new goroutine until Stop
// or a read error. A read error is reported through end.
func (c *Capture) Start(ctx context.Context, emit func([]byte), end func(error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		return errors.New("portaudio: capture already started")
	}
	s, err := openInput(c.device, c.format, c.frames)
	if err != nil {
		return err
	}
	if err := s.start(); err != nil {
		s.close()
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	c.stream, c.cancel = s, cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for ctx.Err() == nil {
			p, err := s.read()
			if err != nil {
				if ctx.Err() == nil {
					end(err)
				}
				return
			}
			emit(p)
		}
	}()
	return nil
}

// Stop ends the read loop and closes the device.
func (c *Capture) Stop() error {
	c.mu.Lock()
	s, cancel := c.stream, c.cancel
	c.stream, c.cancel = nil, nil
	c.mu.Unlock()
	if s == nil {
		return nil
	}
	cancel()
	c.wg.Wait()
	return s.close()
}
