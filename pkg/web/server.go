// Package web provides the live level dashboard API.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/go-micmon/pkg/audioio"
	"github.com/teslashibe/go-micmon/pkg/hub"
)

// Config holds web server configuration.
type Config struct {
	// Enabled starts the dashboard server.
	Enabled bool `yaml:"enabled" json:"enabled" mapstructure:"enabled"`

	// Address is the listen address.
	// Default: ":8080"
	Address string `yaml:"address" json:"address" mapstructure:"address"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Enabled: false,
		Address: ":8080",
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Address); err != nil {
		return fmt.Errorf("invalid address %q: %w", c.Address, err)
	}
	return nil
}

// Deps are the data sources behind the API.
type Deps struct {
	// Status reports the running pipeline.
	Status func() Status

	// Devices enumerates audio devices.
	Devices func() ([]audioio.DeviceInfo, error)

	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// Server is the web dashboard server
type Server struct {
	cfg     Config
	logger  *slog.Logger
	app     *fiber.App
	deps    Deps
	levels  *hub.Hub
	started time.Time
}

// NewServer creates a new web dashboard server
func NewServer(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		deps:    deps,
		levels:  hub.New("levels", logger),
		started: time.Now(),
	}

	app := fiber.New(fiber.Config{
		AppName:               "micmon",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/devices", s.handleDevices)

	if deps.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/levels", websocket.New(s.handleLevelsWS))

	s.app = app
	return s
}

// Levels returns the hub that feeds /ws/levels.
func (s *Server) Levels() *hub.Hub {
	return s.levels
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on the configured address and serves until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx ends.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.levels.Run(ctx)
	go func() {
		<-ctx.Done()
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
			s.logger.Warn("web server shutdown failed", "error", err)
		}
	}()

	s.logger.Info("web dashboard listening", "address", ln.Addr().String())
	return s.app.Listener(ln)
}

// StartAsync starts the web server in a goroutine
func (s *Server) StartAsync(ctx context.Context) {
	go func() {
		if err := s.Start(ctx); err != nil {
			s.logger.Error("web server error", "error", err)
		}
	}()
}
