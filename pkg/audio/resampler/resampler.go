package resampler

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/haivivi/loopscribe/pkg/audio/pcm"
)

// TargetRate is the sample rate speech models expect.
const TargetRate = 16000

// ErrUnsupportedFormat is returned for sample encodings other than 16-bit
// signed integer and 32-bit float.
var ErrUnsupportedFormat = errors.New("resampler: unsupported format")

// Resample converts interleaved little-endian PCM in src format to mono
// float32 samples at 16 kHz in [-1, 1].
//
// Channels are averaged into one. Trailing bytes that do not form a whole
// frame are ignored. Empty input yields an empty, non-nil slice. The result
// depends only on data and src and holds exactly OutputLen(frames, rate)
// samples, so a chunk keeps its duration across the conversion.
func Resample(data []byte, src pcm.Format) ([]float32, error) {
	if err := check(src); err != nil {
		return nil, err
	}

	mono := downmix(data, src)
	if len(mono) == 0 {
		return []float32{}, nil
	}

	if src.SampleRate != TargetRate {
		r, err := resampling.New(&resampling.Config{
			InputRate:  float64(src.SampleRate),
			OutputRate: TargetRate,
			Channels:   1,
			Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
		})
		if err != nil {
			return nil, fmt.Errorf("resampler: create: %w", err)
		}
		want := OutputLen(len(mono), src.SampleRate)
		out, err := r.Process(mono)
		if err != nil {
			return nil, fmt.Errorf("resampler: process: %w", err)
		}
		// Each call uses a fresh resampler: drain the filter delay line or
		// the end of the chunk is lost.
		tail, err := r.Flush()
		if err != nil {
			return nil, fmt.Errorf("resampler: flush: %w", err)
		}
		mono = fitLength(append(out, tail...), want)
	}

	out := make([]float32, len(mono))
	for i, s := range mono {
		switch {
		case s > 1:
			s = 1
		case s < -1:
			s = -1
		}
		out[i] = float32(s)
	}
	return out, nil
}

// OutputLen returns the number of 16 kHz samples produced from frames
// input frames at rate, rounded to the nearest sample.
func OutputLen(frames, rate int) int {
	if frames <= 0 || rate <= 0 {
		return 0
	}
	return int((int64(frames)*TargetRate + int64(rate)/2) / int64(rate))
}

// fitLength trims the flushed filter tail past n, or pads with silence
// when the filter returned fewer samples.
func fitLength(s []float64, n int) []float64 {
	if len(s) >= n {
		return s[:n]
	}
	return append(s, make([]float64, n-len(s))...)
}

// Peak returns the largest absolute sample value.
func Peak(samples []float32) float32 {
	var peak float32
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}

func check(f pcm.Format) error {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
	switch {
	case f.Depth == 16 && !f.Float:
	case f.Depth == 32 && f.Float:
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
	return nil
}

// downmix decodes whole frames and averages their channels.
func downmix(data []byte, f pcm.Format) []float64 {
	frames := int(f.Samples(int64(len(data))))
	if frames == 0 {
		return nil
	}
	sb := f.SampleBytes()
	fb := f.FrameBytes()
	out := make([]float64, frames)
	for i := range frames {
		frame := data[i*fb : (i+1)*fb]
		var sum float64
		for c := range f.Channels {
			sum += decode(frame[c*sb:(c+1)*sb], f)
		}
		out[i] = sum / float64(f.Channels)
	}
	return out
}

func decode(b []byte, f pcm.Format) float64 {
	if f.Float {
		v := float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return v
	}
	return float64(int16(binary.LittleEndian.Uint16(b))) / 32768
}
