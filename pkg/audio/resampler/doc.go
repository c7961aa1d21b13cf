// Package resampler turns captured PCM into the mono 16 kHz float buffers
// speech models consume.
//
// It supports:
//   - 16-bit signed integer and 32-bit float input
//   - Any channel count, downmixed by averaging
//   - Sample rate conversion to 16 kHz with a pure Go resampler
//
// Example usage:
//
//	samples, err := resampler.Resample(chunk.Data, pcm.F32Stereo48K)
//	if err != nil {
//	    return err
//	}
package resampler
