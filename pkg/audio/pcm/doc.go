// Package pcm describes interleaved PCM audio streams.
//
// A Format carries the sample rate, channel count, bit depth and whether
// samples are IEEE floats. Capture devices typically deliver 32-bit float
// stereo at 48 kHz; speech models want 16-bit or float mono at 16 kHz.
//
// Example usage:
//
//	format := pcm.F32Stereo48K
//
//	// Bytes captured in 30 seconds
//	n := format.BytesInDuration(30 * time.Second)
//
//	// Duration of a captured buffer
//	d := format.Duration(int64(len(data)))
package pcm
