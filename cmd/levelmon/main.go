// levelmon prints the RMS level of the microphone input in dBFS, one line
// per captured buffer, until the configured number of readings is reached.
//
// Usage:
//
//	go run ./cmd/levelmon
//	go run ./cmd/levelmon -max 500 -record take.wav
//	go run ./cmd/levelmon -http :8080   # dashboard, /metrics and /ws/levels
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/teslashibe/go-micmon/internal/config"
	"github.com/teslashibe/go-micmon/internal/log"
	"github.com/teslashibe/go-micmon/pkg/audioio"
	"github.com/teslashibe/go-micmon/pkg/level"
	"github.com/teslashibe/go-micmon/pkg/meter"
	"github.com/teslashibe/go-micmon/pkg/metrics"
	"github.com/teslashibe/go-micmon/pkg/publish"
	"github.com/teslashibe/go-micmon/pkg/recorder"
	"github.com/teslashibe/go-micmon/pkg/web"
)

func main() {
	flags := config.RegisterFlags(flag.CommandLine)
	maxReadings := flag.Uint64("max", 0, "Number of readings before stopping (default from config)")
	recordPath := flag.String("record", "", "Also write the captured audio to this WAV file")
	httpAddr := flag.String("http", "", "Serve the level dashboard on this address")
	flag.Parse()

	maxSet := false
	flag.Visit(func(f *flag.Flag) { maxSet = maxSet || f.Name == "max" })

	app, err := flags.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if maxSet {
		app.Level.MaxInvocations = *maxReadings
	}
	if *recordPath != "" {
		app.Record.Path = *recordPath
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
	logger := log.With("cmd", "levelmon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, app, logger)
	stop()
	closer.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "\nExiting due to an error.\n%v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, app config.App, logger *slog.Logger) error {
	backend := audioio.ResolveBackend(app.Audio)
	release, err := audioio.InitializeBackend(backend)
	if err != nil {
		return err
	}
	defer release()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Frame count of the first buffer, reported from the audio thread
	first := make(chan int, 1)
	monitor := app.Level.NewMonitor(level.WithFirstBuffer(func(frames int) {
		select {
		case first <- frames:
		default:
		}
	}))

	meterOpts := []meter.Option{
		meter.WithObserver(m),
		meter.WithLogger(logger),
	}

	var (
		rec    *recorder.WAVRecorder
		recFwd *publish.Forwarder
	)
	if app.Record.Path != "" {
		rate, err := audioio.ResolveSampleRate(app.Audio)
		if err != nil {
			return err
		}
		app.Audio.SampleRate = rate

		rec, err = recorder.NewWAVRecorder(app.Record.Path, int(rate), logger)
		if err != nil {
			return err
		}
		defer rec.Close()

		recFwd, err = publish.NewForwarder(rec, app.RecordForwarder(), logger)
		if err != nil {
			return err
		}
		m.WatchForwarder("record", recFwd.Stats)
		meterOpts = append(meterOpts, meter.WithTap(recFwd))
	}

	mtr := meter.New(monitor, meterOpts...)
	m.WatchReadings(
		func() int64 { return mtr.Stats().DeliveredReadings },
		func() int64 { return mtr.Stats().DroppedReadings },
	)

	src, err := audioio.NewSource(app.Audio, logger)
	if err != nil {
		mtr.Close()
		return err
	}
	defer src.Close()

	var server *web.Server
	if app.Web.Enabled {
		server = web.NewServer(app.Web, web.Deps{
			Status: func() web.Status {
				status := web.Status{
					Backend: string(backend),
					Source:  src.Stats(),
					Meter:   mtr.Stats(),
				}
				if recFwd != nil {
					s := recFwd.Stats()
					status.Record = &s
				}
				return status
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
		return err
	}

	// The readings channel closes once no more callbacks can run
	go func() {
		<-src.Done()
		mtr.Close()
	}()

	printedFrames := false
	for r := range mtr.Readings() {
		if !printedFrames {
			select {
			case frames := <-first:
				fmt.Printf("Frames per buffer: %d\n", frames)
				printedFrames = true
			default:
			}
		}
		fmt.Printf("%.2f dB\n", r.LevelDB)

		if server != nil {
			if err := server.Levels().BroadcastJSON(r); err != nil {
				logger.Warn("failed to broadcast reading", "error", err)
			}
		}
	}

	if recFwd != nil {
		if err := recFwd.Close(); err != nil {
			return fmt.Errorf("recording failed: %w", err)
		}
		if err := rec.Close(); err != nil {
			return err
		}
		fmt.Printf("Recorded %v to %s\n", rec.Duration(), rec.Path())
	}

	if err := mtr.Err(); err != nil {
		return err
	}

	stats := mtr.Stats()
	logger.Info("monitoring finished",
		"session", stats.SessionID,
		"readings", stats.Buffers,
		"dropped", stats.DroppedReadings,
		"last_level_db", stats.LastLevelDB,
	)
	return nil
}
