// Package metrics exposes level monitor activity as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/teslashibe/go-micmon/pkg/publish"
)

const namespace = "micmon"

// Metrics contains all Prometheus metrics for the level monitor.
type Metrics struct {
	reg prometheus.Registerer

	// Capture metrics
	BuffersProcessed prometheus.Counter
	FramesProcessed  prometheus.Counter
	Level            prometheus.Gauge
	LevelHistogram   prometheus.Histogram
}

// New creates the capture metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		BuffersProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buffers_processed_total",
			Help:      "Total number of audio buffers measured",
		}),
		FramesProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_processed_total",
			Help:      "Total number of audio frames measured",
		}),
		Level: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "level_dbfs",
			Help:      "RMS level of the most recent buffer in dBFS",
		}),
		LevelHistogram: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "level_dbfs_distribution",
			Help:      "Distribution of per-buffer RMS levels in dBFS",
			Buckets:   prometheus.LinearBuckets(-120, 10, 13), // -120 to 0 dBFS
		}),
	}
}

// ObserveBuffer records one measured buffer. It does not allocate and is
// safe to call from the audio thread.
func (m *Metrics) ObserveBuffer(frames int, db float64) {
	m.BuffersProcessed.Inc()
	m.FramesProcessed.Add(float64(frames))
	m.Level.Set(db)
	m.LevelHistogram.Observe(db)
}

// WatchReadings exports the meter's reading counters.
func (m *Metrics) WatchReadings(delivered, dropped func() int64) {
	f := promauto.With(m.reg)
	f.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "readings_delivered_total",
		Help:      "Total number of level readings handed to consumers",
	}, func() float64 { return float64(delivered()) })
	f.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "readings_dropped_total",
		Help:      "Total number of level readings dropped because consumers fell behind",
	}, func() float64 { return float64(dropped()) })
}

// WatchForwarder exports the statistics of a buffer forwarder under the
// given sink label ("publish", "record").
func (m *Metrics) WatchForwarder(sink string, stats func() publish.ForwarderStats) {
	f := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"sink": sink}, m.reg))
	f.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "buffers_forwarded_total",
		Help:      "Total number of buffers written to the sink",
	}, func() float64 { return float64(stats().Forwarded) })
	f.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "buffers_dropped_total",
		Help:      "Total number of buffers dropped because the queue was full",
	}, func() float64 { return float64(stats().Dropped) })
	f.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "buffers_truncated_total",
		Help:      "Total number of buffers truncated to the slot size",
	}, func() float64 { return float64(stats().Truncated) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sink_failed",
		Help:      "1 if the sink returned an error and forwarding stopped",
	}, func() float64 {
		if stats().Failed {
			return 1
		}
		return 0
	})
}

// WatchPublisher exports the message counters of a ZeroMQ publisher.
func (m *Metrics) WatchPublisher(stats func() publish.PublisherStats) {
	f := promauto.With(m.reg)
	f.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_published_total",
		Help:      "Total number of messages sent on the PUB socket",
	}, func() float64 { return float64(stats().MessagesSent) })
	f.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bytes_published_total",
		Help:      "Total number of payload bytes sent on the PUB socket",
	}, func() float64 { return float64(stats().BytesSent) })
}
