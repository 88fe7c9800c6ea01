package audioio

import (
	"sync"
	"sync/atomic"
)

// driver carries the callback contract shared by all backends: it counts
// buffers, swallows late buffers once the callback asked to complete, and
// signals completion to the goroutine that owns the stream.
type driver struct {
	cb       Callback
	finished func()

	// completeCh is signalled (never closed) from the audio thread.
	completeCh chan struct{}
	completed  atomic.Bool

	doneCh     chan struct{}
	finishOnce sync.Once

	callbacks atomic.Int64
	frames    atomic.Int64
	overflows atomic.Int64
}

func newDriver(finished func()) *driver {
	return &driver{
		finished:   finished,
		completeCh: make(chan struct{}, 1),
		doneCh:     make(chan struct{}),
	}
}

// setCallback must be called before the first deliver.
func (d *driver) setCallback(cb Callback) {
	d.cb = cb
}

// deliver hands one buffer to the callback. It runs on the audio thread.
func (d *driver) deliver(in []float32, info BufferInfo) {
	if d.completed.Load() {
		return
	}

	d.callbacks.Add(1)
	d.frames.Add(int64(info.Frames))
	if info.Overflow {
		d.overflows.Add(1)
	}

	if d.cb(in, info) == Complete {
		d.completed.Store(true)
		select {
		case d.completeCh <- struct{}{}:
		default:
		}
	}
}

// finish closes Done and runs the finished hook. Callers must guarantee no
// callback is still running.
func (d *driver) finish() {
	d.finishOnce.Do(func() {
		close(d.doneCh)
		if d.finished != nil {
			d.finished()
		}
	})
}

func (d *driver) stats(backend string, running bool, sampleRate float64) SourceStats {
	return SourceStats{
		Callbacks:  d.callbacks.Load(),
		Frames:     d.frames.Load(),
		Overflows:  d.overflows.Load(),
		Running:    running,
		Completed:  d.completed.Load(),
		Backend:    backend,
		SampleRate: sampleRate,
	}
}
