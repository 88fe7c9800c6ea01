//go:build !cgo

package audioio

import (
	"context"
	"log/slog"
)

const portaudioAvailable = false

// Initialize always fails without cgo.
func Initialize() error {
	return ErrNoPortAudio
}

// Terminate is a no-op without cgo.
func Terminate() error {
	return nil
}

// VersionText reports that PortAudio is unavailable.
func VersionText() string {
	return "PortAudio unavailable (built without cgo)"
}

// Devices always fails without cgo.
func Devices() ([]DeviceInfo, error) {
	return nil, ErrNoPortAudio
}

// PortAudioSource is unavailable without cgo.
type PortAudioSource struct{}

func newPortAudioSource(_ Config, _ *slog.Logger, _ options) (*PortAudioSource, error) {
	return nil, ErrNoPortAudio
}

func (s *PortAudioSource) Start(context.Context, Callback) error { return ErrNoPortAudio }
func (s *PortAudioSource) Stop() error                           { return nil }
func (s *PortAudioSource) Done() <-chan struct{}                 { return nil }
func (s *PortAudioSource) Config() Config                        { return Config{} }
func (s *PortAudioSource) Name() string                          { return "portaudio" }
func (s *PortAudioSource) Stats() SourceStats                    { return SourceStats{Backend: "portaudio"} }
func (s *PortAudioSource) Close() error                          { return nil }

var _ Source = (*PortAudioSource)(nil)
