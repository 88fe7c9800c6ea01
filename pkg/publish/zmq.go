package publish

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/go-zeromq/zmq4"
)

// FrameSink consumes buffers of mono float32 samples.
type FrameSink interface {
	WriteFrames(frames []float32) error
}

// ZMQPublisher publishes buffers on a bound ZeroMQ PUB socket.
type ZMQPublisher struct {
	endpoint string
	logger   *slog.Logger

	mu     sync.Mutex
	sock   zmq4.Socket
	closed bool

	// Stats
	messagesSent atomic.Int64
	bytesSent    atomic.Int64
}

// NewZMQPublisher binds a PUB socket to cfg.Endpoint. The socket is closed
// when ctx ends.
func NewZMQPublisher(ctx context.Context, cfg Config, logger *slog.Logger) (*ZMQPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	sock := zmq4.NewPub(ctx)
	if err := sock.Listen(cfg.Endpoint); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to bind %s: %w", cfg.Endpoint, err)
	}

	logger.Info("publisher bound", "endpoint", cfg.Endpoint)

	return &ZMQPublisher{
		endpoint: cfg.Endpoint,
		logger:   logger,
		sock:     sock,
	}, nil
}

// Publish sends one message. Messages are dropped by the socket when no
// subscriber is connected.
func (p *ZMQPublisher) Publish(payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("publisher closed")
	}

	if err := p.sock.Send(zmq4.NewMsg(payload)); err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}

	p.messagesSent.Add(1)
	p.bytesSent.Add(int64(len(payload)))
	return nil
}

// WriteFrames encodes frames and publishes them as one message.
func (p *ZMQPublisher) WriteFrames(frames []float32) error {
	return p.Publish(EncodeFloat32(make([]byte, 0, len(frames)*SampleSize), frames))
}

// Endpoint returns the bound endpoint.
func (p *ZMQPublisher) Endpoint() string {
	return p.endpoint
}

// Close unbinds and closes the socket.
func (p *ZMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	p.logger.Info("publisher closed",
		"endpoint", p.endpoint,
		"messages_sent", p.messagesSent.Load(),
	)
	return p.sock.Close()
}

// Stats returns publisher statistics.
func (p *ZMQPublisher) Stats() PublisherStats {
	return PublisherStats{
		MessagesSent: p.messagesSent.Load(),
		BytesSent:    p.bytesSent.Load(),
	}
}

// PublisherStats contains publisher statistics.
type PublisherStats struct {
	MessagesSent int64 `json:"messages_sent"`
	BytesSent    int64 `json:"bytes_sent"`
}

var _ FrameSink = (*ZMQPublisher)(nil)
