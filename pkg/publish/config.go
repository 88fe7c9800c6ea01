// Package publish republishes captured audio buffers over a ZeroMQ
// PUB/SUB link.
//
// The wire format is one message per buffer holding the raw little-endian
// float32 samples, with no topic frame and no header.
package publish

import (
	"fmt"
	"time"
)

const (
	// DefaultEndpoint is where the publisher binds.
	DefaultEndpoint = "tcp://*:5556"

	// DefaultConnect is where subscribers connect.
	DefaultConnect = "tcp://127.0.0.1:5556"
)

// Config holds publishing configuration.
type Config struct {
	// Endpoint is the ZeroMQ endpoint the publisher binds to.
	// Default: "tcp://*:5556"
	Endpoint string `yaml:"endpoint" json:"endpoint" mapstructure:"endpoint"`

	// Connect is the ZeroMQ endpoint subscribers dial.
	// Default: "tcp://127.0.0.1:5556"
	Connect string `yaml:"connect" json:"connect" mapstructure:"connect"`

	// QueueSize is the number of buffers the forwarder can hold between
	// the audio callback and the socket.
	// Default: 32
	QueueSize int `yaml:"queue_size" json:"queue_size" mapstructure:"queue_size"`

	// MaxFrames is the capacity of each queued buffer. Longer buffers are
	// truncated.
	// Default: 8192
	MaxFrames int `yaml:"max_frames" json:"max_frames" mapstructure:"max_frames"`

	// DialRetry is the interval between subscriber connection attempts.
	// Default: 1s
	DialRetry time.Duration `yaml:"dial_retry" json:"dial_retry" mapstructure:"dial_retry"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Endpoint:  DefaultEndpoint,
		Connect:   DefaultConnect,
		QueueSize: 32,
		MaxFrames: 8192,
		DialRetry: time.Second,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if c.Connect == "" {
		return fmt.Errorf("connect is required")
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue_size must be positive, got %d", c.QueueSize)
	}
	if c.MaxFrames < 1 {
		return fmt.Errorf("max_frames must be positive, got %d", c.MaxFrames)
	}
	if c.DialRetry <= 0 {
		return fmt.Errorf("dial_retry must be positive, got %v", c.DialRetry)
	}
	return nil
}
