// Package level computes RMS loudness of mono audio buffers and decides
// when a bounded monitoring run is complete.
//
// A Monitor is driven from an audio callback: each call to Process takes one
// buffer of float32 samples, returns its RMS level in dBFS and either
// Continue or Complete. Process never allocates, locks or blocks, so it is
// safe to call from a real-time audio thread.
//
// Misuse (an empty buffer, Process after Complete or after Close, a second
// Close) is a programming error and panics with one of the sentinel errors
// below rather than producing a wrong reading.
package level

import (
	"errors"
	"math"
	"sync/atomic"
)

// FloorDB is the lowest level a Monitor reports. Readings below it,
// including digital silence, are clamped to it.
const FloorDB = -120.0

// SilenceDB is the level reported for an all-zero buffer and for any
// buffer containing a NaN sample.
const SilenceDB = FloorDB

// CeilingDB is the level reported for a buffer containing an infinite
// sample. It lies above any finite float32 buffer (about +770.6 dBFS).
const CeilingDB = 800.0

var (
	// ErrEmptyBuffer is the panic value for Process with a zero-length buffer.
	ErrEmptyBuffer = errors.New("level: empty sample buffer")

	// ErrDone is the panic value for Process after the monitor completed.
	ErrDone = errors.New("level: process called after completion")

	// ErrClosed is the panic value for Process or Close on a closed monitor.
	ErrClosed = errors.New("level: monitor closed")
)

// Action tells the audio driver whether to keep delivering buffers.
type Action int

const (
	// Continue asks for the next buffer.
	Continue Action = iota
	// Complete asks the driver to stop the stream.
	Complete
)

// String returns "continue" or "complete".
func (a Action) String() string {
	switch a {
	case Continue:
		return "continue"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithFirstBuffer registers fn to be called once, with the frame count of
// the first buffer the monitor sees. fn runs on the audio thread.
func WithFirstBuffer(fn func(frames int)) Option {
	return func(m *Monitor) {
		m.onFirst = fn
	}
}

// Monitor turns sample buffers into level readings and stops after a fixed
// number of readings.
type Monitor struct {
	max     uint64
	onFirst func(frames int)

	seen   atomic.Uint64
	done   atomic.Bool
	closed atomic.Bool
}

// New creates a monitor that returns Continue for the first maxInvocations
// buffers and Complete on the next one. With maxInvocations == 0 the first
// buffer already completes the run.
func New(maxInvocations uint64, opts ...Option) *Monitor {
	m := &Monitor{max: maxInvocations}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Process measures buf and decides whether monitoring continues.
//
// The counter is compared before it is incremented: when it already equals
// the configured maximum, Process returns Complete without counting the
// buffer and the monitor becomes done. buf is never modified.
func (m *Monitor) Process(buf []float32) (float64, Action) {
	if m.closed.Load() {
		panic(ErrClosed)
	}
	if m.done.Load() {
		panic(ErrDone)
	}
	if len(buf) == 0 {
		panic(ErrEmptyBuffer)
	}

	db := Level(buf)

	seen := m.seen.Load()
	if seen == 0 && m.onFirst != nil {
		m.onFirst(len(buf))
	}
	if seen >= m.max {
		m.done.Store(true)
		return db, Complete
	}
	m.seen.Store(seen + 1)
	return db, Continue
}

// Close releases the monitor. It must be called once, after the stream that
// feeds the monitor has stopped.
func (m *Monitor) Close() {
	if m.closed.Swap(true) {
		panic(ErrClosed)
	}
}

// Seen returns how many buffers were counted so far.
func (m *Monitor) Seen() uint64 {
	return m.seen.Load()
}

// Max returns the configured number of readings.
func (m *Monitor) Max() uint64 {
	return m.max
}

// Done reports whether Process has returned Complete.
func (m *Monitor) Done() bool {
	return m.done.Load()
}

// Level returns the RMS level of buf in dBFS, clamped to [FloorDB,
// CeilingDB]. A NaN sample yields SilenceDB and an infinite sample
// CeilingDB. buf must not be empty.
func Level(buf []float32) float64 {
	var accum float64
	for _, s := range buf {
		v := float64(s)
		accum += v * v
	}
	accum /= float64(len(buf))

	switch {
	case math.IsNaN(accum), accum == 0:
		return SilenceDB
	case math.IsInf(accum, 1):
		return CeilingDB
	}
	db := 20 * math.Log10(math.Sqrt(accum))
	if db < FloorDB {
		return FloorDB
	}
	return db
}
