// publish captures microphone audio and publishes every buffer as raw
// little-endian float32 samples on a ZeroMQ PUB socket.
//
// Usage:
//
//	go run ./cmd/publish
//	go run ./cmd/publish -endpoint tcp://*:5556 -max 1000
//	go run ./cmd/publish -http :8080
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/teslashibe/go-micmon/internal/config"
	"github.com/teslashibe/go-micmon/internal/log"
	"github.com/teslashibe/go-micmon/pkg/audioio"
	"github.com/teslashibe/go-micmon/pkg/level"
	"github.com/teslashibe/go-micmon/pkg/meter"
	"github.com/teslashibe/go-micmon/pkg/metrics"
	"github.com/teslashibe/go-micmon/pkg/publish"
	"github.com/teslashibe/go-micmon/pkg/web"
)

func main() {
	flags := config.RegisterFlags(flag.CommandLine)
	endpoint := flag.String("endpoint", "", "ZeroMQ bind endpoint (default from config)")
	maxBuffers := flag.Uint64("max", 0, "Stop after this many buffers (0 = run until interrupted)")
	statsEvery := flag.Duration("stats", 5*time.Second, "Interval between statistics log lines (0 disables)")
	httpAddr := flag.String("http", "", "Serve the level dashboard on this address")
	flag.Parse()

	app, err := flags.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *endpoint != "" {
		app.Publish.Endpoint = *endpoint
	}
	if *httpAddr != "" {
		app.Web.Enabled = true
		app.Web.Address = *httpAddr
	}
	if err := app.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	closer, err := log.Configure(app.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger := log.With("cmd", "publish")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, app, *maxBuffers, *statsEvery, logger)
	stop()
	closer.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "\nExiting due to an error.\n%v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, app config.App, maxBuffers uint64, statsEvery time.Duration, logger *slog.Logger) error {
	backend := audioio.ResolveBackend(app.Audio)
	if backend == audioio.BackendPortAudio {
		fmt.Println("Initializing PortAudio:")
	}
	release, err := audioio.InitializeBackend(backend)
	if err != nil {
		return err
	}
	defer release()

	if err := audioio.WriteHostInfo(os.Stdout, backend); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	pubCtx, cancelPub := context.WithCancel(ctx)
	defer cancelPub()

	pub, err := publish.NewZMQPublisher(pubCtx, app.Publish, logger)
	if err != nil {
		return err
	}
	defer pub.Close()
	m.WatchPublisher(pub.Stats)

	fwd, err := publish.NewForwarder(pub, app.Publish, logger)
	if err != nil {
		return err
	}
	m.WatchForwarder("publish", fwd.Stats)

	if maxBuffers == 0 {
		maxBuffers = math.MaxUint64
	}
	// Readings are not consumed here
	mtr := meter.New(level.New(maxBuffers),
		meter.WithTap(fwd),
		meter.WithObserver(m),
		meter.WithReadingsBuffer(1),
		meter.WithLogger(logger),
	)

	src, err := audioio.NewSource(app.Audio, logger)
	if err != nil {
		mtr.Close()
		fwd.Close()
		return err
	}
	defer src.Close()

	if app.Web.Enabled {
		server := web.NewServer(app.Web, web.Deps{
			Status: func() web.Status {
				s := fwd.Stats()
				return web.Status{
					Backend: string(backend),
					Source:  src.Stats(),
					Meter:   mtr.Stats(),
					Publish: &s,
				}
			},
			Devices: func() ([]audioio.DeviceInfo, error) {
				return audioio.ListDevices(backend)
			},
			Gatherer: reg,
		}, logger)
		server.StartAsync(ctx)
	}

	if err := src.Start(ctx, mtr.Callback()); err != nil {
		mtr.Close()
		fwd.Close()
		return err
	}

	fmt.Printf("Publishing on %s\n", pub.Endpoint())

	var tick <-chan time.Time
	if statsEvery > 0 {
		ticker := time.NewTicker(statsEvery)
		defer ticker.Stop()
		tick = ticker.C
	}

loop:
	for {
		select {
		case <-src.Done():
			break loop
		case <-tick:
			s := fwd.Stats()
			ps := pub.Stats()
			logger.Info("publishing",
				"buffers", s.Forwarded,
				"dropped", s.Dropped,
				"messages", ps.MessagesSent,
				"bytes", ps.BytesSent,
				"level_db", mtr.Stats().LastLevelDB,
			)
		}
	}

	mtr.Close()
	fwdErr := fwd.Close()

	s := fwd.Stats()
	fmt.Printf("Published %d buffers (%d dropped, %d truncated)\n", s.Forwarded, s.Dropped, s.Truncated)

	if err := mtr.Err(); err != nil {
		return fmt.Errorf("publishing failed: %w", err)
	}
	return fwdErr
}
