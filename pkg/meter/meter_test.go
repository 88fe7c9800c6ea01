package meter

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teslashibe/go-micmon/pkg/audioio"
	"github.com/teslashibe/go-micmon/pkg/level"
	"github.com/teslashibe/go-micmon/pkg/publish"
)

type fakeTap struct {
	offered atomic.Int64
	err     atomic.Pointer[error]
}

func (t *fakeTap) Offer([]float32) bool {
	t.offered.Add(1)
	return true
}

func (t *fakeTap) Err() error {
	if p := t.err.Load(); p != nil {
		return *p
	}
	return nil
}

func (t *fakeTap) fail(err error) {
	t.err.Store(&err)
}

type fakeObserver struct {
	calls  int
	lastDB float64
}

func (o *fakeObserver) ObserveBuffer(frames int, db float64) {
	o.calls++
	o.lastDB = db
}

func constant(n int, v float32) []float32 {
	buf := make([]float32, n)
	for i := range buf {
		buf[i] = v
	}
	return buf
}

func TestMeter_Sequence(t *testing.T) {
	m := New(level.New(2))
	cb := m.Callback()
	buf := constant(64, 1.0)

	want := []audioio.Result{audioio.Continue, audioio.Continue, audioio.Complete}
	for i, w := range want {
		if got := cb(buf, audioio.BufferInfo{Frames: len(buf)}); got != w {
			t.Errorf("Call %d: expected %v, got %v", i, w, got)
		}
	}
	m.Close()

	var readings []Reading
	for r := range m.Readings() {
		readings = append(readings, r)
	}
	if len(readings) != 3 {
		t.Fatalf("Expected 3 readings, got %d", len(readings))
	}
	for i, r := range readings {
		if r.Seq != uint64(i+1) {
			t.Errorf("Reading %d: expected seq %d, got %d", i, i+1, r.Seq)
		}
		if math.Abs(r.LevelDB) > 1e-9 {
			t.Errorf("Reading %d: expected 0 dB, got %v", i, r.LevelDB)
		}
		if r.Frames != 64 {
			t.Errorf("Reading %d: expected 64 frames, got %d", i, r.Frames)
		}
	}
	if !readings[2].Final {
		t.Error("Expected last reading to be final")
	}

	stats := m.Stats()
	if !stats.Done || stats.Seen != 2 || stats.Buffers != 3 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if stats.SessionID == "" || stats.SessionID != m.ID() {
		t.Errorf("Expected session id %q, got %q", m.ID(), stats.SessionID)
	}
}

func TestMeter_DropsReadingsWhenFull(t *testing.T) {
	m := New(level.New(100), WithReadingsBuffer(2))
	defer m.Close()

	cb := m.Callback()
	buf := constant(16, 0.5)
	for i := 0; i < 5; i++ {
		cb(buf, audioio.BufferInfo{})
	}

	stats := m.Stats()
	if stats.DeliveredReadings != 2 {
		t.Errorf("Expected 2 delivered readings, got %d", stats.DeliveredReadings)
	}
	if stats.DroppedReadings != 3 {
		t.Errorf("Expected 3 dropped readings, got %d", stats.DroppedReadings)
	}
}

func TestMeter_SkipsEmptyBuffers(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	m := New(level.New(1), WithLogger(logger))

	if got := m.Callback()(nil, audioio.BufferInfo{}); got != audioio.Continue {
		t.Errorf("Expected Continue, got %v", got)
	}
	stats := m.Stats()
	if stats.EmptyBuffers != 1 || stats.Seen != 0 {
		t.Errorf("Unexpected stats: %+v", stats)
	}

	m.Close()
	if !strings.Contains(logs.String(), `level=WARN msg="audio source delivered empty buffers"`) {
		t.Errorf("Expected empty buffer warning, got:\n%s", logs.String())
	}
	if !strings.Contains(logs.String(), "empty_buffers=1") {
		t.Errorf("Expected empty buffer count in warning, got:\n%s", logs.String())
	}
}

func TestMeter_NoWarningWithoutEmptyBuffers(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	m := New(level.New(1), WithLogger(logger))

	m.Callback()(constant(4, 0.5), audioio.BufferInfo{})
	m.Close()
	if strings.Contains(logs.String(), "level=WARN") {
		t.Errorf("Expected no warning, got:\n%s", logs.String())
	}
}

func TestMeter_TapsAndObserver(t *testing.T) {
	tap := &fakeTap{}
	obs := &fakeObserver{}
	m := New(level.New(10), WithTap(tap), WithObserver(obs))
	defer m.Close()

	cb := m.Callback()
	cb(constant(8, 0.1), audioio.BufferInfo{})
	cb(constant(8, 0.1), audioio.BufferInfo{})

	if n := tap.offered.Load(); n != 2 {
		t.Errorf("Expected 2 offers, got %d", n)
	}
	if obs.calls != 2 {
		t.Errorf("Expected 2 observations, got %d", obs.calls)
	}
	if math.Abs(obs.lastDB+20) > 1e-6 {
		t.Errorf("Expected -20 dB, got %v", obs.lastDB)
	}
	if math.Abs(m.Stats().LastLevelDB+20) > 1e-6 {
		t.Errorf("Expected last level -20 dB, got %v", m.Stats().LastLevelDB)
	}
}

func TestMeter_TapsReceiveCountedBuffersOnly(t *testing.T) {
	for _, limit := range []uint64{0, 1, 2, 5} {
		tap := &fakeTap{}
		m := New(level.New(limit), WithTap(tap))

		cb := m.Callback()
		buf := constant(8, 0.25)
		calls := 0
		for {
			calls++
			if cb(buf, audioio.BufferInfo{}) == audioio.Complete {
				break
			}
		}

		if n := tap.offered.Load(); n != int64(limit) {
			t.Errorf("limit=%d: expected %d buffers offered, got %d", limit, limit, n)
		}
		if calls != int(limit)+1 {
			t.Errorf("limit=%d: expected %d callbacks, got %d", limit, limit+1, calls)
		}
		if got := m.Stats().Seen; got != limit {
			t.Errorf("limit=%d: expected seen %d, got %d", limit, limit, got)
		}
		m.Close()
	}
}

type countingSink struct {
	frames atomic.Int64
}

func (s *countingSink) WriteFrames(frames []float32) error {
	s.frames.Add(int64(len(frames)))
	return nil
}

func TestMeter_ForwardsBoundedRun(t *testing.T) {
	sink := &countingSink{}
	fwd, err := publish.NewForwarder(sink, publish.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewForwarder failed: %v", err)
	}

	m := New(level.New(3), WithTap(fwd))
	cb := m.Callback()
	buf := constant(16, 0.5)
	for cb(buf, audioio.BufferInfo{}) != audioio.Complete {
	}
	m.Close()

	if err := fwd.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	stats := fwd.Stats()
	if stats.Forwarded != 3 {
		t.Errorf("Expected 3 buffers forwarded, got %d", stats.Forwarded)
	}
	if n := sink.frames.Load(); n != 3*16 {
		t.Errorf("Expected %d frames written, got %d", 3*16, n)
	}
}

func TestMeter_TapErrorCompletes(t *testing.T) {
	tap := &fakeTap{}
	m := New(level.New(10), WithTap(tap))
	defer m.Close()

	cb := m.Callback()
	buf := constant(8, 0.1)
	if got := cb(buf, audioio.BufferInfo{}); got != audioio.Continue {
		t.Fatalf("Expected Continue, got %v", got)
	}

	errPublish := errors.New("publish failed")
	tap.fail(errPublish)

	if got := cb(buf, audioio.BufferInfo{}); got != audioio.Complete {
		t.Errorf("Expected Complete after tap error, got %v", got)
	}
	if !errors.Is(m.Err(), errPublish) {
		t.Errorf("Expected tap error, got %v", m.Err())
	}
}

func TestMeter_WithMockSource(t *testing.T) {
	cfg := audioio.DefaultConfig()
	cfg.Backend = audioio.BackendMock
	cfg.SampleRate = 48000
	cfg.FramesPerBuffer = 240

	var firstFrames atomic.Int64
	mon := level.New(3, level.WithFirstBuffer(func(frames int) {
		firstFrames.Store(int64(frames))
	}))
	m := New(mon)

	src, err := audioio.NewSource(cfg, nil, audioio.WithSineWave(1000, 1.0))
	if err != nil {
		t.Fatalf("NewSource failed: %v", err)
	}
	defer src.Close()

	if err := src.Start(context.Background(), m.Callback()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case <-src.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for stream to complete")
	}
	m.Close()

	var count int
	for r := range m.Readings() {
		count++
		// Full-scale sine: RMS is -3.01 dBFS
		if math.Abs(r.LevelDB+3.01) > 0.1 {
			t.Errorf("Reading %d: expected about -3 dB, got %v", r.Seq, r.LevelDB)
		}
	}
	if count != 4 {
		t.Errorf("Expected 4 readings, got %d", count)
	}
	if n := firstFrames.Load(); n != 240 {
		t.Errorf("Expected first buffer of 240 frames, got %d", n)
	}
	if !m.Stats().Done {
		t.Error("Expected monitor to be done")
	}
}
