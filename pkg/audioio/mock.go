package audioio

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"
)

// ErrAlreadyStarted is returned by Start on a source that was started before.
var ErrAlreadyStarted = errors.New("audio source already started")

// MockSource is a mock audio source for testing.
// It generates synthetic audio (silence or sine wave) on a ticker and
// delivers it through the same callback contract as a hardware backend.
type MockSource struct {
	cfg    Config
	logger *slog.Logger
	drv    *driver

	mu      sync.Mutex
	started bool
	running bool
	closed  bool
	stopCh  chan struct{}
	loopWG  sync.WaitGroup

	// Synthetic audio generation
	buf       []float32
	phase     float64
	frequency float64 // Hz, 0 = silence
	amplitude float64 // 0.0 to 1.0
}

// NewMockSource creates a new mock audio source. Unset sample rate and
// buffer size fall back to 48 kHz and 480 frames.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...Option) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = mockSampleRate
	}
	if cfg.FramesPerBuffer <= 0 {
		cfg.FramesPerBuffer = mockFramesPerBuffer
	}

	o := buildOptions(opts)
	m := &MockSource{
		cfg:       cfg,
		logger:    logger,
		drv:       newDriver(o.finished),
		stopCh:    make(chan struct{}),
		buf:       make([]float32, cfg.FramesPerBuffer),
		frequency: cfg.MockTone,
		amplitude: 0.5,
	}
	if o.sine {
		m.frequency = o.frequency
		m.amplitude = o.amplitude
	}

	return m
}

// Start begins generating audio.
func (m *MockSource) Start(ctx context.Context, cb Callback) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if m.started {
		return ErrAlreadyStarted
	}

	m.started = true
	m.running = true
	m.drv.setCallback(cb)

	m.loopWG.Add(1)
	go m.generateLoop()
	go m.supervise(ctx)

	m.logger.Info("mock audio source started",
		"sample_rate", m.cfg.SampleRate,
		"frames_per_buffer", m.cfg.FramesPerBuffer,
		"frequency", m.frequency,
	)

	return nil
}

func (m *MockSource) generateLoop() {
	defer m.loopWG.Done()

	ticker := time.NewTicker(m.cfg.BufferDuration())
	defer ticker.Stop()

	var elapsed time.Duration
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.generateBuffer()
			m.drv.deliver(m.buf, BufferInfo{
				Frames:       len(m.buf),
				SampleRate:   m.cfg.SampleRate,
				CurrentTime:  elapsed + m.cfg.BufferDuration(),
				InputADCTime: elapsed,
			})
			elapsed += m.cfg.BufferDuration()
		}
	}
}

// supervise stops the source when the callback completes or ctx ends.
func (m *MockSource) supervise(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-m.drv.completeCh:
	case <-m.stopCh:
		return
	}
	if err := m.Stop(); err != nil {
		m.logger.Warn("mock audio source stop failed", "error", err)
	}
}

func (m *MockSource) generateBuffer() {
	if m.frequency <= 0 {
		clear(m.buf)
		return
	}
	for i := range m.buf {
		m.buf[i] = float32(m.amplitude * math.Sin(2*math.Pi*m.frequency*m.phase/m.cfg.SampleRate))
		m.phase++
		if m.phase >= m.cfg.SampleRate {
			m.phase = 0
		}
	}
}

// Stop halts audio generation and waits for the generator to exit.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	close(m.stopCh)
	m.mu.Unlock()

	m.loopWG.Wait()
	m.drv.finish()

	m.logger.Info("mock audio source stopped",
		"callbacks", m.drv.callbacks.Load(),
		"completed", m.drv.completed.Load(),
	)

	return nil
}

// Done is closed once the source has stopped.
func (m *MockSource) Done() <-chan struct{} {
	return m.drv.doneCh
}

// Config returns the audio configuration.
func (m *MockSource) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockSource) Name() string {
	return "mock"
}

// Close releases resources.
func (m *MockSource) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	started := m.started
	m.mu.Unlock()

	if !started {
		m.drv.finish()
		return nil
	}
	return m.Stop()
}

// Stats returns source statistics.
func (m *MockSource) Stats() SourceStats {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()

	return m.drv.stats("mock", running, m.cfg.SampleRate)
}

// Ensure MockSource implements Source.
var _ Source = (*MockSource)(nil)
