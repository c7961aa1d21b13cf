// Package portaudio captures audio from local devices through the PortAudio
// library.
//
// System audio is recorded by opening the loopback or monitor input the
// host exposes for an output device (for example "Monitor of Built-in Audio"
// on PulseAudio and PipeWire, or a BlackHole device on macOS).
//
// The cgo binding is compiled with the portaudio build tag and needs the
// library installed via pkg-config (brew install portaudio, apt install
// portaudio19-dev). Without the tag every entry point returns ErrUnavailable.
package portaudio

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnavailable is returned when the binary was built without PortAudio.
	ErrUnavailable = errors.New("portaudio: not available in this build (rebuild with -tags portaudio)")

	// ErrNoDevice is returned when no input device matches a selection.
	ErrNoDevice = errors.New("portaudio: no matching input device")

	errStreamClosed = errors.New("portaudio: stream closed")
)

// DeviceInfo contains information about an audio device.
type DeviceInfo struct {
	Index             int     `json:"index" yaml:"index"`
	Name              string  `json:"name" yaml:"name"`
	HostAPI           string  `json:"host_api,omitempty" yaml:"host_api,omitempty"`
	MaxInputChannels  int     `json:"max_input_channels" yaml:"max_input_channels"`
	MaxOutputChannels int     `json:"max_output_channels" yaml:"max_output_channels"`
	DefaultSampleRate float64 `json:"default_sample_rate" yaml:"default_sample_rate"`
	IsDefaultInput    bool    `json:"default_input,omitempty" yaml:"default_input,omitempty"`
	IsDefaultOutput   bool    `json:"default_output,omitempty" yaml:"default_output,omitempty"`
}

// IsLoopback reports whether the device looks like a capture of system
// output rather than a microphone.
func (d DeviceInfo) IsLoopback() bool {
	name := strings.ToLower(d.Name)
	for _, hint := range []string{"monitor", "loopback", "stereo mix", "blackhole", "soundflower"} {
		if strings.Contains(name, hint) {
			return true
		}
	}
	return false
}

// Select picks an input device. An empty name selects the first loopback
// input, falling back to the default input. Otherwise name is matched
// case-insensitively as a substring of the device name.
func Select(devices []DeviceInfo, name string) (DeviceInfo, error) {
	var inputs []DeviceInfo
	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			inputs = append(inputs, d)
		}
	}
	if name != "" {
		want := strings.ToLower(name)
		for _, d := range inputs {
			if strings.Contains(strings.ToLower(d.Name), want) {
				return d, nil
			}
		}
		return DeviceInfo{}, fmt.Errorf("%w: %q", ErrNoDevice, name)
	}
	for _, d := range inputs {
		if d.IsLoopback() {
			return d, nil
		}
	}
	for _, d := range inputs {
		if d.IsDefaultInput {
			return d, nil
		}
	}
	return DeviceInfo{}, ErrNoDevice
}
