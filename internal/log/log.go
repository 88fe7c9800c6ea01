// Package log provides structured logging for go-micmon.
// It wraps slog with sensible defaults for production use.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Options selects the global logger's level, format and destination.
type Options struct {
	// Level is one of "none", "debug", "info", "warn", "error".
	Level string `yaml:"level" json:"level" mapstructure:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format" json:"format" mapstructure:"format"`

	// File receives log output when set. It is truncated on open.
	File string `yaml:"file" json:"file" mapstructure:"file"`
}

// DefaultOptions returns info-level text logging.
func DefaultOptions() Options {
	return Options{
		Level:  "info",
		Format: "text",
	}
}

var (
	mu     sync.Mutex
	logger *slog.Logger
)

// Logs go to stderr unless a file is configured; stdout carries command
// output.
var defaultOutput io.Writer = os.Stderr

// ParseLevel maps a level name to a slog level. ok is false for "none".
func ParseLevel(level string) (lvl slog.Level, ok bool, err error) {
	switch level {
	case "none":
		return 0, false, nil
	case "debug":
		return slog.LevelDebug, true, nil
	case "info", "":
		return slog.LevelInfo, true, nil
	case "warn":
		return slog.LevelWarn, true, nil
	case "error":
		return slog.LevelError, true, nil
	default:
		return 0, false, fmt.Errorf("unexpected log level %q", level)
	}
}

// New builds a logger writing to w.
func New(opts Options, w io.Writer) (*slog.Logger, error) {
	lvl, enabled, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), nil
	}

	handlerOpts := &slog.HandlerOptions{Level: lvl}
	switch opts.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
	default:
		return nil, fmt.Errorf("unexpected log format %q", opts.Format)
	}
}

// Configure installs the global logger. The returned closer releases the
// log file, if any, and is never nil.
func Configure(opts Options) (io.Closer, error) {
	w := defaultOutput
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return closer, fmt.Errorf("failed to open log file: %w", err)
		}
		w, closer = f, f
	}

	l, err := New(opts, w)
	if err != nil {
		closer.Close()
		return nopCloser{}, err
	}

	mu.Lock()
	logger = l
	mu.Unlock()
	slog.SetDefault(l)
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Init initializes the global logger with the specified level.
// Valid levels: "none", "debug", "info", "warn", "error"
func Init(level string) {
	opts := DefaultOptions()
	opts.Level = level
	if _, err := Configure(opts); err != nil {
		opts.Level = "info"
		Configure(opts)
	}
}

// L returns the global logger instance.
func L() *slog.Logger {
	mu.Lock()
	l := logger
	mu.Unlock()
	if l == nil {
		Init("info")
		return L()
	}
	return l
}

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}
