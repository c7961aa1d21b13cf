//go:build !portaudio

package portaudio

import (
	"context"
	"time"

	"github.com/haivivi/loopscribe/pkg/audio/pcm"
)

// Devices returns ErrUnavailable.
func Devices() ([]DeviceInfo, error) {
	return nil, ErrUnavailable
}

// Capture is unavailable without the portaudio build tag.
type Capture struct{}

// Open returns ErrUnavailable.
func Open(string, pcm.Format, time.Duration) (*Capture, error) {
	return nil, ErrUnavailable
}

func (*Capture) Device() DeviceInfo { return DeviceInfo{} }
func (*Capture) Format() pcm.Format { return pcm.Format{} }
func (*Capture) Start(context.Context, func([]byte), func(error)) error { return ErrUnavailable }
func (*Capture) Stop() error { return nil }
