// Package audioio provides callback-driven audio capture.
//
// This package supports multiple backends:
//   - PortAudio (cgo) - Any host with a PortAudio installation
//   - Mock - CI/Testing without hardware
//
// The backend is selected automatically based on build tags,
// or can be explicitly specified via configuration.
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto automatically selects the best available backend.
	BackendAuto Backend = "auto"
	// BackendPortAudio uses PortAudio for cross-platform audio I/O.
	BackendPortAudio Backend = "portaudio"
	// BackendMock uses a mock implementation for testing.
	BackendMock Backend = "mock"
)

// Latency selects which of the device's suggested input latencies is used.
type Latency string

const (
	// LatencyLow requests the device's interactive input latency.
	LatencyLow Latency = "low"
	// LatencyHigh requests the device's non-interactive input latency.
	LatencyHigh Latency = "high"
)

// Mock defaults, used when the configuration leaves them unset.
const (
	mockSampleRate      = 48000
	mockFramesPerBuffer = 480
)

// Config holds audio configuration.
type Config struct {
	// Backend specifies which audio backend to use.
	// Default: "auto" (selects best available for the build)
	Backend Backend `yaml:"backend" json:"backend" mapstructure:"backend"`

	// SampleRate is the audio sample rate in Hz.
	// Default: 0 (use the input device's default rate)
	SampleRate float64 `yaml:"sample_rate" json:"sample_rate" mapstructure:"sample_rate"`

	// Channels is the number of audio channels.
	// Only mono (1) capture is supported.
	Channels int `yaml:"channels" json:"channels" mapstructure:"channels"`

	// FramesPerBuffer is the number of frames handed to each callback.
	// Default: 0 (let the backend choose, possibly varying per callback)
	FramesPerBuffer int `yaml:"frames_per_buffer" json:"frames_per_buffer" mapstructure:"frames_per_buffer"`

	// Latency selects the device's low or high suggested input latency.
	// Default: "low"
	Latency Latency `yaml:"latency" json:"latency" mapstructure:"latency"`

	// Device is the input device name, or empty for the default input.
	Device string `yaml:"device" json:"device" mapstructure:"device"`

	// MockTone is the sine frequency generated by the mock backend.
	// 0 produces silence. Ignored by other backends.
	MockTone float64 `yaml:"mock_tone" json:"mock_tone" mapstructure:"mock_tone"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:         BackendAuto,
		SampleRate:      0, // Device default
		Channels:        1, // Mono
		FramesPerBuffer: 0, // Backend chooses
		Latency:         LatencyLow,
		Device:          "", // Use system default
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendAuto, BackendPortAudio, BackendMock:
	default:
		return fmt.Errorf("unsupported backend: %q", c.Backend)
	}
	if c.SampleRate < 0 {
		return fmt.Errorf("sample_rate must not be negative, got %v", c.SampleRate)
	}
	if c.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono capture), got %d", c.Channels)
	}
	if c.FramesPerBuffer < 0 {
		return fmt.Errorf("frames_per_buffer must not be negative, got %d", c.FramesPerBuffer)
	}
	if c.Latency != LatencyLow && c.Latency != LatencyHigh {
		return fmt.Errorf("latency must be 'low' or 'high', got '%s'", c.Latency)
	}
	if c.MockTone < 0 {
		return fmt.Errorf("mock_tone must not be negative, got %v", c.MockTone)
	}
	return nil
}

// BufferDuration returns the duration of one buffer, or 0 when either the
// sample rate or the buffer size is left to the backend.
func (c *Config) BufferDuration() time.Duration {
	if c.SampleRate <= 0 || c.FramesPerBuffer <= 0 {
		return 0
	}
	return time.Duration(float64(c.FramesPerBuffer) / c.SampleRate * float64(time.Second))
}
