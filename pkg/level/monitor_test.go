package level

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

const tolerance = 1e-4

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < tolerance
}

// expectPanic runs fn and returns the recovered panic value.
func expectPanic(t *testing.T, fn func()) (recovered any) {
	t.Helper()
	defer func() {
		recovered = recover()
		if recovered == nil {
			t.Fatal("Expected panic, got none")
		}
	}()
	fn()
	return nil
}

func TestLevel_ConstantMagnitude(t *testing.T) {
	tests := []struct {
		name string
		amp  float32
		n    int
	}{
		{"unit", 1.0, 1},
		{"half", 0.5, 64},
		{"tenth", 0.1, 480},
		{"quiet", 0.001, 256},
		{"loud", 2.0, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]float32, tt.n)
			for i := range buf {
				if i%2 == 0 {
					buf[i] = tt.amp
				} else {
					buf[i] = -tt.amp
				}
			}

			want := 20 * math.Log10(float64(tt.amp))
			if got := Level(buf); !almostEqual(got, want) {
				t.Errorf("Level: expected %.4f dB, got %.4f dB", want, got)
			}
		})
	}
}

func TestLevel_Silence(t *testing.T) {
	got := Level(make([]float32, 512))
	if math.IsNaN(got) || math.IsInf(got, 0) {
		t.Fatalf("Expected a finite sentinel for silence, got %v", got)
	}
	if got != SilenceDB {
		t.Errorf("Expected %v dB for silence, got %v", SilenceDB, got)
	}
}

func TestLevel_ClampedToFloor(t *testing.T) {
	buf := []float32{1e-9, -1e-9}
	if got := Level(buf); got != FloorDB {
		t.Errorf("Expected sub-floor level to clamp to %v, got %v", FloorDB, got)
	}
}

func TestLevel_NonFiniteSamples(t *testing.T) {
	inf := float32(math.Inf(1))
	nan := float32(math.NaN())

	tests := []struct {
		name string
		buf  []float32
		want float64
	}{
		{"positive infinity", []float32{inf, 0.5}, CeilingDB},
		{"negative infinity", []float32{0.5, -inf}, CeilingDB},
		{"nan", []float32{nan, 0.5}, SilenceDB},
		{"nan and infinity", []float32{nan, inf}, SilenceDB},
		{"max float32", []float32{math.MaxFloat32, -math.MaxFloat32}, 20 * math.Log10(math.MaxFloat32)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Level(tt.buf)
			if math.IsNaN(got) || math.IsInf(got, 0) {
				t.Fatalf("Expected a finite level, got %v", got)
			}
			if !almostEqual(got, tt.want) {
				t.Errorf("Expected %v dB, got %v", tt.want, got)
			}
			if got > CeilingDB {
				t.Errorf("Expected level at most %v, got %v", CeilingDB, got)
			}
			if _, err := json.Marshal(got); err != nil {
				t.Errorf("Expected level to encode as JSON, got %v", err)
			}
		})
	}
}

func TestLevel_MixedSamples(t *testing.T) {
	got := Level([]float32{0.1, -0.1})
	if !almostEqual(got, -20.0) {
		t.Errorf("Expected -20 dB, got %.6f", got)
	}
}

func TestMonitor_ContinueThenComplete(t *testing.T) {
	m := New(2)
	defer m.Close()

	want := []Action{Continue, Continue, Complete}
	for i, expected := range want {
		db, action := m.Process([]float32{1.0})
		if action != expected {
			t.Errorf("Call %d: expected %v, got %v", i, expected, action)
		}
		if !almostEqual(db, 0.0) {
			t.Errorf("Call %d: expected 0 dB, got %.6f", i, db)
		}
	}

	if m.Seen() != 2 {
		t.Errorf("Expected counter to stop at 2, got %d", m.Seen())
	}
	if !m.Done() {
		t.Error("Expected monitor to be done")
	}
}

func TestMonitor_CompletesOnBoundaryCall(t *testing.T) {
	for _, max := range []uint64{1, 3, 10, 100} {
		m := New(max)
		buf := []float32{0.25, -0.25}

		for i := uint64(0); i < max; i++ {
			if _, action := m.Process(buf); action != Continue {
				t.Fatalf("max=%d call %d: expected continue, got %v", max, i, action)
			}
			if m.Done() {
				t.Fatalf("max=%d call %d: monitor done too early", max, i)
			}
		}

		if _, action := m.Process(buf); action != Complete {
			t.Errorf("max=%d: expected complete on call %d, got %v", max, max, action)
		}
		if m.Seen() != max {
			t.Errorf("max=%d: expected seen=%d, got %d", max, max, m.Seen())
		}
		m.Close()
	}
}

func TestMonitor_ZeroMaxCompletesImmediately(t *testing.T) {
	m := New(0)
	defer m.Close()

	_, action := m.Process([]float32{0.5})
	if action != Complete {
		t.Errorf("Expected complete on first call, got %v", action)
	}
	if m.Seen() != 0 {
		t.Errorf("Expected counter to stay at 0, got %d", m.Seen())
	}
}

func TestMonitor_FirstBufferObservedOnce(t *testing.T) {
	var calls, frames int
	m := New(5, WithFirstBuffer(func(n int) {
		calls++
		frames = n
	}))
	defer m.Close()

	m.Process(make([]float32, 480))
	m.Process(make([]float32, 256))
	m.Process(make([]float32, 128))

	if calls != 1 {
		t.Errorf("Expected first-buffer hook once, got %d", calls)
	}
	if frames != 480 {
		t.Errorf("Expected first buffer of 480 frames, got %d", frames)
	}
}

func TestMonitor_FirstBufferWithZeroMax(t *testing.T) {
	called := false
	m := New(0, WithFirstBuffer(func(int) { called = true }))
	defer m.Close()

	m.Process([]float32{1})
	if !called {
		t.Error("Expected first-buffer hook on the completing call")
	}
}

func TestMonitor_DoesNotMutateInput(t *testing.T) {
	buf := []float32{0.3, -0.7, 0.01, 0.9, -0.2}
	orig := append([]float32(nil), buf...)

	a := New(10)
	b := New(10)
	defer a.Close()
	defer b.Close()

	dbA, _ := a.Process(buf)
	dbB, _ := b.Process(buf)

	for i := range buf {
		if buf[i] != orig[i] {
			t.Fatalf("Sample %d modified: expected %v, got %v", i, orig[i], buf[i])
		}
	}
	if dbA != dbB {
		t.Errorf("Expected identical readings, got %v and %v", dbA, dbB)
	}
}

func TestMonitor_UsageViolations(t *testing.T) {
	tests := []struct {
		name string
		run  func()
		want error
	}{
		{
			name: "empty_buffer",
			run:  func() { New(1).Process(nil) },
			want: ErrEmptyBuffer,
		},
		{
			name: "process_after_complete",
			run: func() {
				m := New(0)
				m.Process([]float32{1})
				m.Process([]float32{1})
			},
			want: ErrDone,
		},
		{
			name: "process_after_close",
			run: func() {
				m := New(5)
				m.Close()
				m.Process([]float32{1})
			},
			want: ErrClosed,
		},
		{
			name: "double_close",
			run: func() {
				m := New(5)
				m.Close()
				m.Close()
			},
			want: ErrClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := expectPanic(t, tt.run)
			err, ok := got.(error)
			if !ok || !errors.Is(err, tt.want) {
				t.Errorf("Expected panic with %v, got %v", tt.want, got)
			}
		})
	}
}

func TestMonitor_ProcessDoesNotAllocate(t *testing.T) {
	m := New(math.MaxUint64)
	defer m.Close()
	buf := make([]float32, 512)
	for i := range buf {
		buf[i] = float32(i%7) / 7
	}

	allocs := testing.AllocsPerRun(100, func() {
		m.Process(buf)
	})
	if allocs != 0 {
		t.Errorf("Expected zero allocations per Process, got %v", allocs)
	}
}

func TestAction_String(t *testing.T) {
	if Continue.String() != "continue" || Complete.String() != "complete" {
		t.Errorf("Unexpected action names: %q, %q", Continue, Complete)
	}
}

func TestConfig_NewMonitor(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxInvocations != 100 {
		t.Errorf("Expected default of 100 invocations, got %d", cfg.MaxInvocations)
	}
	m := cfg.NewMonitor()
	defer m.Close()
	if m.Max() != 100 {
		t.Errorf("Expected monitor max 100, got %d", m.Max())
	}
}
