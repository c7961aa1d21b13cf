// Package audio groups the audio sub-packages used for capture:
//
//   - pcm: sample formats and conversion to float32 mono
//   - wav: RIFF/WAVE encoding of PCM chunks
//   - resampler: sample rate conversion to the 16 kHz transcription rate
//   - portaudio: input device enumeration and loopback capture
package audio
