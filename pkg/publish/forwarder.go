package publish

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

type slotRef struct {
	idx int
	n   int
}

// Forwarder hands buffers from the audio callback to a FrameSink.
//
// Offer copies into a preallocated slot and never blocks or allocates.
// A single goroutine drains slots into the sink in order. The first sink
// error is kept and stops forwarding.
type Forwarder struct {
	sink   FrameSink
	logger *slog.Logger

	slots [][]float32
	free  chan int
	queue chan slotRef

	closed    atomic.Bool
	closeOnce sync.Once
	wg        sync.WaitGroup

	errMu sync.Mutex
	err   error
	fail  atomic.Bool

	// Stats
	offered   atomic.Int64
	forwarded atomic.Int64
	dropped   atomic.Int64
	truncated atomic.Int64
}

// NewForwarder starts a forwarder with cfg.QueueSize slots of cfg.MaxFrames
// samples each.
func NewForwarder(sink FrameSink, cfg Config, logger *slog.Logger) (*Forwarder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	f := &Forwarder{
		sink:   sink,
		logger: logger,
		slots:  make([][]float32, cfg.QueueSize),
		free:   make(chan int, cfg.QueueSize),
		queue:  make(chan slotRef, cfg.QueueSize),
	}
	for i := range f.slots {
		f.slots[i] = make([]float32, cfg.MaxFrames)
		f.free <- i
	}

	f.wg.Add(1)
	go f.drain()

	return f, nil
}

// Offer queues a copy of buf. It returns false when the buffer was dropped
// because every slot is in use or forwarding has failed or stopped.
func (f *Forwarder) Offer(buf []float32) bool {
	if f.fail.Load() || f.closed.Load() {
		return false
	}
	f.offered.Add(1)

	var idx int
	select {
	case idx = <-f.free:
	default:
		f.dropped.Add(1)
		return false
	}

	n := copy(f.slots[idx], buf)
	if n < len(buf) {
		f.truncated.Add(1)
	}

	// Never blocks: the queue holds as many entries as there are slots.
	f.queue <- slotRef{idx: idx, n: n}
	return true
}

func (f *Forwarder) drain() {
	defer f.wg.Done()

	for ref := range f.queue {
		if !f.fail.Load() {
			if err := f.sink.WriteFrames(f.slots[ref.idx][:ref.n]); err != nil {
				f.setErr(err)
			} else {
				f.forwarded.Add(1)
			}
		}
		f.free <- ref.idx
	}
}

func (f *Forwarder) setErr(err error) {
	f.errMu.Lock()
	if f.err == nil {
		f.err = err
		f.logger.Error("forwarding failed", "error", err)
	}
	f.errMu.Unlock()
	f.fail.Store(true)
}

// Err returns the first sink error, or nil.
func (f *Forwarder) Err() error {
	if !f.fail.Load() {
		return nil
	}
	f.errMu.Lock()
	defer f.errMu.Unlock()
	return f.err
}

// Close drains queued buffers and stops the forwarder. It must not be
// called while Offer may still run. It returns the first sink error.
func (f *Forwarder) Close() error {
	f.closeOnce.Do(func() {
		f.closed.Store(true)
		close(f.queue)
		f.wg.Wait()

		s := f.Stats()
		f.logger.Info("forwarder stopped",
			"forwarded", s.Forwarded,
			"dropped", s.Dropped,
			"truncated", s.Truncated,
		)
	})
	return f.Err()
}

// Stats returns forwarder statistics.
func (f *Forwarder) Stats() ForwarderStats {
	return ForwarderStats{
		Offered:   f.offered.Load(),
		Forwarded: f.forwarded.Load(),
		Dropped:   f.dropped.Load(),
		Truncated: f.truncated.Load(),
		Failed:    f.fail.Load(),
	}
}

// ForwarderStats contains forwarder statistics.
type ForwarderStats struct {
	Offered   int64 `json:"offered"`
	Forwarded int64 `json:"forwarded"`
	Dropped   int64 `json:"dropped"`
	Truncated int64 `json:"truncated"`
	Failed    bool  `json:"failed"`
}
