// Package meter connects an audio source to a level monitor.
//
// A Meter provides the audio callback: every buffer is measured and
// reported as a Reading on a buffered channel, and every counted buffer is
// offered to the registered taps.
// Nothing on the callback path blocks.
package meter

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-micmon/pkg/audioio"
	"github.com/teslashibe/go-micmon/pkg/level"
)

// DefaultReadingsBuffer is the capacity of the readings channel.
const DefaultReadingsBuffer = 256

// Reading is the level of one captured buffer.
type Reading struct {
	Seq         uint64        `json:"seq"`
	LevelDB     float64       `json:"level_db"`
	Frames      int           `json:"frames"`
	CaptureTime time.Duration `json:"capture_time"`
	Time        time.Time     `json:"time"`
	Final       bool          `json:"final"`
}

// Tap receives a view of every captured buffer. Offer runs on the audio
// thread and must copy what it keeps. A tap that reports an error ends the
// stream.
type Tap interface {
	Offer(buf []float32) bool
	Err() error
}

// Observer is notified of every measured buffer on the audio thread.
type Observer interface {
	ObserveBuffer(frames int, db float64)
}

// Option configures a Meter.
type Option func(*Meter)

// WithTap adds a tap.
func WithTap(t Tap) Option {
	return func(m *Meter) {
		m.taps = append(m.taps, t)
	}
}

// WithObserver sets the buffer observer.
func WithObserver(o Observer) Option {
	return func(m *Meter) {
		m.observer = o
	}
}

// WithReadingsBuffer sets the capacity of the readings channel.
func WithReadingsBuffer(n int) Option {
	return func(m *Meter) {
		if n > 0 {
			m.bufSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Meter) {
		m.logger = logger
	}
}

// Meter measures buffers delivered by an audio source.
type Meter struct {
	id       string
	monitor  *level.Monitor
	taps     []Tap
	observer Observer
	logger   *slog.Logger
	bufSize  int

	readings  chan Reading
	closeOnce sync.Once

	errMu sync.Mutex
	err   error

	// Stats
	buffers   atomic.Uint64
	frames    atomic.Int64
	delivered atomic.Int64
	dropped   atomic.Int64
	empty     atomic.Int64
	lastDB    atomic.Uint64
}

// New creates a meter around monitor. The meter owns the monitor and
// closes it in Close.
func New(monitor *level.Monitor, opts ...Option) *Meter {
	m := &Meter{
		id:      uuid.NewString(),
		monitor: monitor,
		bufSize: DefaultReadingsBuffer,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.readings = make(chan Reading, m.bufSize)
	m.storeLast(level.SilenceDB)

	m.logger.Info("meter created",
		"session", m.id,
		"max_invocations", monitor.Max(),
		"taps", len(m.taps),
	)

	return m
}

// ID returns the session identifier.
func (m *Meter) ID() string {
	return m.id
}

// Callback returns the audio callback that drives the meter.
func (m *Meter) Callback() audioio.Callback {
	return m.process
}

func (m *Meter) process(in []float32, info audioio.BufferInfo) audioio.Result {
	if len(in) == 0 {
		m.empty.Add(1)
		return audioio.Continue
	}

	db, action := m.monitor.Process(in)

	seq := m.buffers.Add(1)
	m.frames.Add(int64(len(in)))
	m.storeLast(db)

	// Taps get only the buffers the monitor counted, so a run bounded at
	// max forwards exactly max buffers.
	if action == level.Continue {
		for _, t := range m.taps {
			t.Offer(in)
		}
	}
	if m.observer != nil {
		m.observer.ObserveBuffer(len(in), db)
	}

	r := Reading{
		Seq:         seq,
		LevelDB:     db,
		Frames:      len(in),
		CaptureTime: info.InputADCTime,
		Time:        time.Now(),
		Final:       action == level.Complete,
	}
	select {
	case m.readings <- r:
		m.delivered.Add(1)
	default:
		m.dropped.Add(1)
	}

	if action == level.Complete {
		return audioio.Complete
	}
	for _, t := range m.taps {
		if err := t.Err(); err != nil {
			m.setErr(err)
			return audioio.Complete
		}
	}
	return audioio.Continue
}

func (m *Meter) setErr(err error) {
	m.errMu.Lock()
	defer m.errMu.Unlock()
	if m.err == nil {
		m.err = err
	}
}

func (m *Meter) storeLast(db float64) {
	m.lastDB.Store(math.Float64bits(db))
}

// Err returns the tap error that ended the stream, if any.
func (m *Meter) Err() error {
	m.errMu.Lock()
	defer m.errMu.Unlock()
	return m.err
}

// Readings returns the channel of per-buffer readings. It is closed by
// Close.
func (m *Meter) Readings() <-chan Reading {
	return m.readings
}

// Close closes the readings channel and the monitor. It must only be
// called once the source has stopped. Empty buffers are skipped without
// reaching the monitor and reported here.
func (m *Meter) Close() {
	m.closeOnce.Do(func() {
		close(m.readings)
		m.monitor.Close()

		s := m.Stats()
		if s.EmptyBuffers > 0 {
			m.logger.Warn("audio source delivered empty buffers",
				"session", m.id,
				"empty_buffers", s.EmptyBuffers,
			)
		}
		m.logger.Info("meter closed",
			"session", m.id,
			"buffers", s.Buffers,
			"dropped_readings", s.DroppedReadings,
			"done", s.Done,
		)
	})
}

// Stats returns meter statistics.
func (m *Meter) Stats() Stats {
	return Stats{
		SessionID:         m.id,
		Buffers:           m.buffers.Load(),
		Frames:            m.frames.Load(),
		Seen:              m.monitor.Seen(),
		MaxInvocations:    m.monitor.Max(),
		Done:              m.monitor.Done(),
		LastLevelDB:       math.Float64frombits(m.lastDB.Load()),
		DeliveredReadings: m.delivered.Load(),
		DroppedReadings:   m.dropped.Load(),
		EmptyBuffers:      m.empty.Load(),
	}
}

// Stats contains meter statistics.
type Stats struct {
	SessionID         string  `json:"session_id"`
	Buffers           uint64  `json:"buffers"`
	Frames            int64   `json:"frames"`
	Seen              uint64  `json:"seen"`
	MaxInvocations    uint64  `json:"max_invocations"`
	Done              bool    `json:"done"`
	LastLevelDB       float64 `json:"last_level_db"`
	DeliveredReadings int64   `json:"delivered_readings"`
	DroppedReadings   int64   `json:"dropped_readings"`
	EmptyBuffers      int64   `json:"empty_buffers"`
}
