package publish

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/go-zeromq/zmq4"
)

// Subscriber receives raw buffers from a ZeroMQ SUB socket subscribed to
// every message.
type Subscriber struct {
	endpoint string
	logger   *slog.Logger

	mu     sync.Mutex
	sock   zmq4.Socket
	closed bool

	// Stats
	messagesReceived atomic.Int64
	bytesReceived    atomic.Int64
}

// NewSubscriber connects to cfg.Connect. Recv fails once ctx ends.
func NewSubscriber(ctx context.Context, cfg Config, logger *slog.Logger) (*Subscriber, error) {
	if logger == nil {
		logger = slog.Default()
	}

	sock := zmq4.NewSub(ctx, zmq4.WithDialerRetry(cfg.DialRetry))
	if err := sock.Dial(cfg.Connect); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Connect, err)
	}
	if err := sock.SetOption(zmq4.OptionSubscribe, ""); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	logger.Info("subscriber connected", "endpoint", cfg.Connect)

	return &Subscriber{
		endpoint: cfg.Connect,
		logger:   logger,
		sock:     sock,
	}, nil
}

// Recv blocks until the next message arrives and returns its payload.
func (s *Subscriber) Recv() ([]byte, error) {
	msg, err := s.sock.Recv()
	if err != nil {
		return nil, fmt.Errorf("failed to receive: %w", err)
	}
	if len(msg.Frames) == 0 {
		return nil, nil
	}

	payload := msg.Frames[0]
	s.messagesReceived.Add(1)
	s.bytesReceived.Add(int64(len(payload)))
	return payload, nil
}

// RecvFrames receives one message and decodes it into dst.
func (s *Subscriber) RecvFrames(dst []float32) ([]float32, error) {
	payload, err := s.Recv()
	if err != nil {
		return dst, err
	}
	return DecodeFloat32(dst, payload)
}

// Close closes the socket.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.sock.Close()
}

// Stats returns subscriber statistics.
func (s *Subscriber) Stats() SubscriberStats {
	return SubscriberStats{
		MessagesReceived: s.messagesReceived.Load(),
		BytesReceived:    s.bytesReceived.Load(),
	}
}

// SubscriberStats contains subscriber statistics.
type SubscriberStats struct {
	MessagesReceived int64 `json:"messages_received"`
	BytesReceived    int64 `json:"bytes_received"`
}
