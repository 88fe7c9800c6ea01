package audioio

import (
	"context"
	"io"
	"time"
)

// Result is returned by a Callback to tell the source whether to keep
// delivering buffers.
type Result int

const (
	// Continue keeps the stream running.
	Continue Result = iota
	// Complete stops the stream after the current buffer.
	Complete
)

// BufferInfo describes one buffer handed to a Callback.
type BufferInfo struct {
	// Frames is the number of frames in the buffer.
	Frames int

	// SampleRate is the stream's sample rate in Hz.
	SampleRate float64

	// CurrentTime is the stream time at which the callback was invoked.
	CurrentTime time.Duration

	// InputADCTime is the stream time at which the first sample of the
	// buffer was captured.
	InputADCTime time.Duration

	// Overflow is set when input data was discarded before this buffer.
	Overflow bool

	// Underflow is set when the buffer contains padding instead of input.
	Underflow bool
}

// Callback receives one buffer of mono float32 samples.
//
// It runs on the backend's real-time thread: it must not block, and in is
// only valid until it returns. Returning Complete stops the stream.
type Callback func(in []float32, info BufferInfo) Result

// Source captures audio from a microphone or other input device.
type Source interface {
	// Start opens the stream and begins delivering buffers to cb.
	// A source can be started once.
	Start(ctx context.Context, cb Callback) error

	// Stop halts audio capture and waits until no callback is running.
	// It is safe to call Stop multiple times.
	Stop() error

	// Done is closed once the stream has stopped for any reason:
	// the callback returned Complete, Stop was called or ctx ended.
	Done() <-chan struct{}

	// Config returns the current audio configuration.
	Config() Config

	// Name returns the backend name (e.g., "portaudio", "mock").
	Name() string

	// Stats returns capture statistics.
	Stats() SourceStats

	// Close releases all resources.
	// After Close, the source cannot be restarted.
	io.Closer
}

// SourceStats contains statistics about the audio source.
type SourceStats struct {
	// Callbacks is the total number of buffers delivered.
	Callbacks int64 `json:"callbacks"`

	// Frames is the total number of frames delivered.
	Frames int64 `json:"frames"`

	// Overflows is the number of buffers flagged with input overflow.
	Overflows int64 `json:"overflows"`

	// Running indicates if the source is currently capturing.
	Running bool `json:"running"`

	// Completed indicates the callback ended the stream.
	Completed bool `json:"completed"`

	// Backend is the name of the audio backend.
	Backend string `json:"backend"`

	// SampleRate is the rate the stream was opened with.
	SampleRate float64 `json:"sample_rate"`
}

// Option configures a Source.
type Option func(*options)

type options struct {
	finished func()

	// Mock only
	sine      bool
	frequency float64
	amplitude float64
}

// WithFinished registers fn to run once after the stream has stopped and
// the last callback has returned.
func WithFinished(fn func()) Option {
	return func(o *options) {
		o.finished = fn
	}
}

// WithSineWave configures the mock backend to generate a sine wave.
// Other backends ignore it.
func WithSineWave(frequency, amplitude float64) Option {
	return func(o *options) {
		o.sine = true
		o.frequency = frequency
		o.amplitude = amplitude
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
