package pcm

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidFormat is returned by Format.Validate for zero or negative
// rates, channel counts or depths.
var ErrInvalidFormat = errors.New("pcm: invalid format")

var (
	// L16Mono16K represents audio/L16; rate=16000; channels=1
	L16Mono16K = Format{SampleRate: 16000, Channels: 1, Depth: 16}
	// L16Stereo44K represents audio/L16; rate=44100; channels=2
	L16Stereo44K = Format{SampleRate: 44100, Channels: 2, Depth: 16}
	// L16Stereo48K represents audio/L16; rate=48000; channels=2
	L16Stereo48K = Format{SampleRate: 48000, Channels: 2, Depth: 16}
	// F32Stereo48K is the usual shared-mode loopback mix format.
	F32Stereo48K = Format{SampleRate: 48000, Channels: 2, Depth: 32, Float: true}
)

// Format describes interleaved little-endian PCM.
type Format struct {
	// SampleRate is the sample rate in Hz.
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// Channels is the number of interleaved channels.
	Channels int `yaml:"channels" json:"channels"`

	// Depth is the bit depth of a single sample.
	Depth int `yaml:"depth" json:"depth"`

	// Float marks IEEE float samples. Only meaningful with Depth 32.
	Float bool `yaml:"float,omitempty" json:"float,omitempty"`
}

// Validate reports whether the format describes a usable stream.
func (f Format) Validate() error {
	if f.SampleRate <= 0 || f.Channels <= 0 || f.Depth <= 0 || f.Depth%8 != 0 {
		return fmt.Errorf("%w: %s", ErrInvalidFormat, f)
	}
	return nil
}

// SampleBytes returns the size in bytes of one sample of one channel.
func (f Format) SampleBytes() int {
	return f.Depth / 8
}

// FrameBytes returns the size in bytes of one frame (one sample for every
// channel).
func (f Format) FrameBytes() int {
	return f.SampleBytes() * f.Channels
}

// Samples returns the number of frames in the given number of bytes.
// Trailing bytes that do not make a whole frame are not counted.
func (f Format) Samples(bytes int64) int64 {
	fb := int64(f.FrameBytes())
	if fb == 0 {
		return 0
	}
	return bytes / fb
}

// SamplesInDuration returns the number of frames in the given duration.
func (f Format) SamplesInDuration(d time.Duration) int64 {
	return int64(time.Duration(f.SampleRate) * d / time.Second)
}

// BytesInDuration returns the number of bytes in the given duration.
func (f Format) BytesInDuration(d time.Duration) int64 {
	return f.SamplesInDuration(d) * int64(f.FrameBytes())
}

// Duration returns the duration of the given number of bytes.
func (f Format) Duration(bytes int64) time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	return time.Duration(f.Samples(bytes)) * time.Second / time.Duration(f.SampleRate)
}

// BitsRate returns the bit rate of the audio data.
func (f Format) BitsRate() int {
	return f.SampleRate * f.Channels * f.Depth
}

// BytesRate returns the byte rate of the audio data.
func (f Format) BytesRate() int {
	return f.BitsRate() / 8
}

// String returns a media-type style description of the format.
func (f Format) String() string {
	kind := "L"
	if f.Float {
		kind = "F"
	}
	return fmt.Sprintf("audio/%s%d; rate=%d; channels=%d", kind, f.Depth, f.SampleRate, f.Channels)
}

// EncodeInt16 converts normalized float samples to 16-bit little-endian
// PCM, clamping to [-1, 1].
func EncodeInt16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int16(math.Round(float64(clamp(s)) * 32767))
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// EncodeFloat32 converts normalized float samples to 32-bit little-endian
// IEEE float PCM.
func EncodeFloat32(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		b := math.Float32bits(s)
		out[i*4] = byte(b)
		out[i*4+1] = byte(b >> 8)
		out[i*4+2] = byte(b >> 16)
		out[i*4+3] = byte(b >> 24)
	}
	return out
}

func clamp(s float32) float32 {
	switch {
	case s > 1:
		return 1
	case s < -1:
		return -1
	}
	return s
}
