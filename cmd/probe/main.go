// probe opens the input device, reports the timing of the first callback
// and stops.
//
// The callback completes the stream after one buffer. The stream is
// stopped after -wait regardless, as some hosts keep delivering until
// stopped.
//
// Usage:
//
//	go run ./cmd/probe
//	go run ./cmd/probe -backend mock -wait 1s
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-micmon/internal/config"
	"github.com/teslashibe/go-micmon/internal/log"
	"github.com/teslashibe/go-micmon/pkg/audioio"
)

func main() {
	flags := config.RegisterFlags(flag.CommandLine)
	wait := flag.Duration("wait", 500*time.Millisecond, "How long to keep the stream open")
	flag.Parse()

	app, err := flags.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	closer, err := log.Configure(app.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger := log.With("cmd", "probe")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, app, *wait, logger)
	stop()
	closer.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "\nExiting due to an error.\n%v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, app config.App, wait time.Duration, logger *slog.Logger) error {
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

	src, err := audioio.NewSource(app.Audio, logger)
	if err != nil {
		return err
	}
	defer src.Close()

	// The callback runs on the audio thread; printing happens here.
	first := make(chan audioio.BufferInfo, 1)
	cb := func(_ []float32, info audioio.BufferInfo) audioio.Result {
		select {
		case first <- info:
		default:
		}
		return audioio.Complete
	}

	if err := src.Start(ctx, cb); err != nil {
		return err
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
	if err := src.Stop(); err != nil {
		return err
	}

	select {
	case info := <-first:
		fmt.Println("\nCallback invoked")
		fmt.Printf("Frames per buffer: %d\n", info.Frames)
		fmt.Printf("Stream callback invoked at time: %f\n", info.CurrentTime.Seconds())
		fmt.Printf("First sample of input at time: %f\n", info.InputADCTime.Seconds())
	default:
		fmt.Printf("\nNo buffer delivered within %v\n", wait)
	}

	stats := src.Stats()
	logger.Info("probe finished",
		"backend", stats.Backend,
		"callbacks", stats.Callbacks,
		"sample_rate", stats.SampleRate,
	)
	return nil
}
