package audioio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrNoPortAudio is returned by host functions in binaries built without cgo.
var ErrNoPortAudio = errors.New("portaudio support not compiled in (build with CGO_ENABLED=1)")

// DeviceInfo describes one audio device known to the host.
type DeviceInfo struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	HostAPI string `json:"host_api"`

	MaxInputChannels  int     `json:"max_input_channels"`
	MaxOutputChannels int     `json:"max_output_channels"`
	DefaultSampleRate float64 `json:"default_sample_rate"`

	DefaultLowInputLatency   time.Duration `json:"default_low_input_latency"`
	DefaultHighInputLatency  time.Duration `json:"default_high_input_latency"`
	DefaultLowOutputLatency  time.Duration `json:"default_low_output_latency"`
	DefaultHighOutputLatency time.Duration `json:"default_high_output_latency"`

	IsDefaultInput  bool `json:"is_default_input"`
	IsDefaultOutput bool `json:"is_default_output"`
}

// IsInput reports whether the device can capture audio.
func (d DeviceInfo) IsInput() bool {
	return d.MaxInputChannels > 0
}

// DefaultInput returns the default input device from devices.
func DefaultInput(devices []DeviceInfo) (DeviceInfo, bool) {
	for _, d := range devices {
		if d.IsDefaultInput {
			return d, true
		}
	}
	return DeviceInfo{}, false
}

// WriteDeviceList prints devices one per line. The default input and
// output devices are expanded with their channel counts, sample rate and
// latencies.
func WriteDeviceList(w io.Writer, devices []DeviceInfo) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "%d devices found:\n", len(devices))
	for _, d := range devices {
		fmt.Fprintf(bw, "Device %d: %s\n", d.Index, d.Name)
		if !d.IsDefaultInput && !d.IsDefaultOutput {
			continue
		}

		fmt.Fprintf(bw, "    Channels: %d in, %d out\n", d.MaxInputChannels, d.MaxOutputChannels)
		fmt.Fprintf(bw, "    Sample rate: %.0f Hz\n", d.DefaultSampleRate)

		if d.IsDefaultInput {
			fmt.Fprintf(bw, "    Non-interactive input latency:  %f s\n", d.DefaultHighInputLatency.Seconds())
			fmt.Fprintf(bw, "        Interactive input latency:  %f s\n", d.DefaultLowInputLatency.Seconds())
		}
		if d.IsDefaultOutput {
			fmt.Fprintf(bw, "    Non-interactive output latency: %f s\n", d.DefaultHighOutputLatency.Seconds())
			fmt.Fprintf(bw, "        Interactive output latency: %f s\n", d.DefaultLowOutputLatency.Seconds())
		}
	}
	return bw.Flush()
}
