//go:build portaudio

package portaudio

/*
#cgo pkg-config: portaudio-2.0

#include <portaudio.h>
#include <stdlib.h>
#include <string.h>

// Wrapper functions using void* to avoid CGO type issues with PaStream
static PaError pa_open_input(void **stream,
                             const PaStreamParameters *inputParams,
                             double sampleRate,
                             unsigned long framesPerBuffer) {
    return Pa_OpenStream((PaStream**)stream, inputParams, NULL, sampleRate,
                         framesPerBuffer, paClipOff, NULL, NULL);
}

static PaError pa_start_stream(void *stream) {
    return Pa_StartStream((PaStream*)stream);
}

static PaError pa_stop_stream(void *stream) {
    return Pa_StopStream((PaStream*)stream);
}

static PaError pa_close_stream(void *stream) {
    return Pa_CloseStream((PaStream*)stream);
}

static PaError pa_read_stream(void *stream, void *buffer, unsigned long frames) {
    return Pa_ReadStream((PaStream*)stream, buffer, frames);
}
*/
import "C"

import (
	"errors"
	"sync"
	"unsafe"

	"github.com/haivivi/loopscribe/pkg/audio/pcm"
)

var (
	initOnce sync.Once
	initErr  error
)

// paError converts a PortAudio error code to a Go error.
func paError(code C.PaError) error {
	if code == C.paNoError {
		return nil
	}
	return errors.New(C.GoString(C.Pa_GetErrorText(code)))
}

// Initialize initializes the PortAudio library.
// It is safe to call multiple times.
func Initialize() error {
	initOnce.Do(func() {
		initErr = paError(C.Pa_Initialize())
	})
	return initErr
}

// Devices returns a list of available audio devices.
func Devices() ([]DeviceInfo, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}

	count := int(C.Pa_GetDeviceCount())
	if count < 0 {
		return nil, paError(C.PaError(count))
	}

	defaultInput := int(C.Pa_GetDefaultInputDevice())
	defaultOutput := int(C.Pa_GetDefaultOutputDevice())

	devices := make([]DeviceInfo, 0, count)
	for i := 0; i < count; i++ {
		info := C.Pa_GetDeviceInfo(C.PaDeviceIndex(i))
		if info == nil {
			continue
		}
		var hostAPI string
		if api := C.Pa_GetHostApiInfo(info.hostApi); api != nil {
			hostAPI = C.GoString(api.name)
		}
		devices = append(devices, DeviceInfo{
			Index:             i,
			Name:              C.GoString(info.name),
			HostAPI:           hostAPI,
			MaxInputChannels:  int(info.maxInputChannels),
			MaxOutputChannels: int(info.maxOutputChannels),
			DefaultSampleRate: float64(info.defaultSampleRate),
			IsDefaultInput:    i == defaultInput,
			IsDefaultOutput:   i == defaultOutput,
		})
	}
	return devices, nil
}

// stream is an open blocking-read input stream.
type stream struct {
	mu         sync.Mutex
	ptr        unsafe.Pointer
	buffer     unsafe.Pointer
	frames     int
	frameBytes int
	closed     bool
}

func openInput(dev DeviceInfo, f pcm.Format, framesPerBuffer int) (*stream, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	info := C.Pa_GetDeviceInfo(C.PaDeviceIndex(dev.Index))
	if info == nil {
		return nil, errors.New("portaudio: failed to get device info")
	}

	sampleFormat := C.PaSampleFormat(C.paInt16)
	if f.Float {
		sampleFormat = C.paFloat32
	}
	params := &C.PaStreamParameters{
		device:                    C.PaDeviceIndex(dev.Index),
		channelCount:              C.int(f.Channels),
		sampleFormat:              sampleFormat,
		suggestedLatency:          info.defaultHighInputLatency,
		hostApiSpecificStreamInfo: nil,
	}

	var ptr unsafe.Pointer
	if err := paError(C.pa_open_input(&ptr, params, C.double(f.SampleRate), C.ulong(framesPerBuffer))); err != nil {
		return nil, err
	}
	size := framesPerBuffer * f.FrameBytes()
	return &stream{
		ptr:        ptr,
		buffer:     C.malloc(C.size_t(size)),
		frames:     framesPerBuffer,
		frameBytes: f.FrameBytes(),
	}, nil
}

func (s *stream) start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStreamClosed
	}
	return paError(C.pa_start_stream(s.ptr))
}

// read blocks until one buffer of frames is available and returns a copy.
func (s *stream) read() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errStreamClosed
	}
	// Overflow means the host dropped samples before this read; the
	// buffer itself is still valid.
	code := C.pa_read_stream(s.ptr, s.buffer, C.ulong(s.frames))
	if code != C.paNoError && code != C.paInputOverflowed {
		return nil, paError(code)
	}
	return C.GoBytes(s.buffer, C.int(s.frames*s.frameBytes)), nil
}

func (s *stream) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	C.pa_stop_stream(s.ptr)
	err := paError(C.pa_close_stream(s.ptr))
	C.free(s.buffer)
	return err
}
