//go:build cgo

package audioio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// Initialize sets up the PortAudio library. Every successful call must be
// paired with Terminate.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio initialize: %w", err)
	}
	return nil
}

// Terminate releases PortAudio. Open streams are closed.
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("portaudio terminate: %w", err)
	}
	return nil
}

// VersionText returns the PortAudio version string.
func VersionText() string {
	return portaudio.VersionText()
}

// Devices lists all PortAudio devices. Initialize must have been called.
func Devices() ([]DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	// Either default may be missing on headless hosts.
	defIn, _ := portaudio.DefaultInputDevice()
	defOut, _ := portaudio.DefaultOutputDevice()

	out := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		info := DeviceInfo{
			Index:                    d.Index,
			Name:                     d.Name,
			MaxInputChannels:         d.MaxInputChannels,
			MaxOutputChannels:        d.MaxOutputChannels,
			DefaultSampleRate:        d.DefaultSampleRate,
			DefaultLowInputLatency:   d.DefaultLowInputLatency,
			DefaultHighInputLatency:  d.DefaultHighInputLatency,
			DefaultLowOutputLatency:  d.DefaultLowOutputLatency,
			DefaultHighOutputLatency: d.DefaultHighOutputLatency,
			IsDefaultInput:           defIn != nil && d.Index == defIn.Index,
			IsDefaultOutput:          defOut != nil && d.Index == defOut.Index,
		}
		if d.HostApi != nil {
			info.HostAPI = d.HostApi.Name
		}
		out = append(out, info)
	}
	return out, nil
}
