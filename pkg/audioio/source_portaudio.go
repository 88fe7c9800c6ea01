//go:build cgo

package audioio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const portaudioAvailable = true

// PortAudioSource captures mono float32 audio through PortAudio's
// callback interface.
type PortAudioSource struct {
	cfg    Config
	logger *slog.Logger
	drv    *driver

	mu      sync.Mutex
	started bool
	running bool
	closed  bool
	stream  *portaudio.Stream
	stopCh  chan struct{}

	// Resolved when the stream is opened
	sampleRate float64
}

// newPortAudioSource creates a PortAudio source. Initialize must have been
// called.
func newPortAudioSource(cfg Config, logger *slog.Logger, o options) (*PortAudioSource, error) {
	s := &PortAudioSource{
		cfg:    cfg,
		logger: logger,
		drv:    newDriver(o.finished),
		stopCh: make(chan struct{}),
	}

	logger.Info("PortAudio source created",
		"device", deviceName(cfg.Device),
		"sample_rate", cfg.SampleRate,
		"frames_per_buffer", cfg.FramesPerBuffer,
	)

	return s, nil
}

// Start opens the input stream and begins capture.
func (s *PortAudioSource) Start(ctx context.Context, cb Callback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.started {
		return ErrAlreadyStarted
	}

	device, err := findInputDevice(s.cfg.Device)
	if err != nil {
		return err
	}

	latency := device.DefaultLowInputLatency
	if s.cfg.Latency == LatencyHigh {
		latency = device.DefaultHighInputLatency
	}

	sampleRate := s.cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = device.DefaultSampleRate
	}

	framesPerBuffer := s.cfg.FramesPerBuffer
	if framesPerBuffer <= 0 {
		framesPerBuffer = portaudio.FramesPerBufferUnspecified
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: 1,
			Latency:  latency,
		},
		SampleRate:      sampleRate,
		FramesPerBuffer: framesPerBuffer,
		Flags:           portaudio.ClipOff,
	}

	s.drv.setCallback(cb)
	s.sampleRate = sampleRate

	stream, err := portaudio.OpenStream(params, s.process)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start stream: %w", err)
	}

	s.stream = stream
	s.started = true
	s.running = true

	go s.supervise(ctx)

	s.logger.Info("PortAudio source started",
		"device", device.Name,
		"sample_rate", sampleRate,
		"latency", latency,
	)

	return nil
}

// process is the PortAudio stream callback.
func (s *PortAudioSource) process(in []float32, timeInfo portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
	s.drv.deliver(in, BufferInfo{
		Frames:       len(in),
		SampleRate:   s.sampleRate,
		CurrentTime:  timeInfo.CurrentTime,
		InputADCTime: timeInfo.InputBufferAdcTime,
		Overflow:     flags&portaudio.InputOverflow != 0,
		Underflow:    flags&portaudio.InputUnderflow != 0,
	})
}

// supervise stops the stream off the audio thread once the callback
// completes or ctx ends.
func (s *PortAudioSource) supervise(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-s.drv.completeCh:
	case <-s.stopCh:
		return
	}
	if err := s.Stop(); err != nil {
		s.logger.Warn("PortAudio source stop failed", "error", err)
	}
}

// Stop halts capture. PortAudio returns from Pa_StopStream only after the
// last callback has finished.
func (s *PortAudioSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)

	stopErr := s.stream.Stop()
	closeErr := s.stream.Close()
	s.mu.Unlock()

	s.drv.finish()

	s.logger.Info("PortAudio source stopped",
		"callbacks", s.drv.callbacks.Load(),
		"completed", s.drv.completed.Load(),
	)

	if err := errors.Join(stopErr, closeErr); err != nil {
		return fmt.Errorf("failed to stop stream: %w", err)
	}
	return nil
}

// Done is closed once the stream has stopped.
func (s *PortAudioSource) Done() <-chan struct{} {
	return s.drv.doneCh
}

// Config returns the audio configuration.
func (s *PortAudioSource) Config() Config {
	return s.cfg
}

// Name returns "portaudio".
func (s *PortAudioSource) Name() string {
	return "portaudio"
}

// Close releases resources.
func (s *PortAudioSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	started := s.started
	s.mu.Unlock()

	if !started {
		s.drv.finish()
		return nil
	}
	return s.Stop()
}

// Stats returns source statistics.
func (s *PortAudioSource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	sampleRate := s.sampleRate
	s.mu.Unlock()

	return s.drv.stats("portaudio", running, sampleRate)
}

var _ Source = (*PortAudioSource)(nil)

// findInputDevice returns the named input device, or the default input when
// name is empty.
func findInputDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("no default input device: %w", err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	for _, d := range devices {
		if d.Name == name && d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("input device %q not found", name)
}
