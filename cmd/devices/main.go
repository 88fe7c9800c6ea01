// devices prints the audio host version and the available devices.
//
// Usage:
//
//	go run ./cmd/devices
//	go run ./cmd/devices -json
//	go run ./cmd/devices -backend mock
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/teslashibe/go-micmon/internal/config"
	"github.com/teslashibe/go-micmon/internal/log"
	"github.com/teslashibe/go-micmon/pkg/audioio"
)

func main() {
	flags := config.RegisterFlags(flag.CommandLine)
	asJSON := flag.Bool("json", false, "Print devices as JSON")
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
	logger := log.With("cmd", "devices")

	err = run(app, *asJSON, logger)
	closer.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "\nExiting due to an error.\n%v\n", err)
		os.Exit(1)
	}
}

func run(app config.App, asJSON bool, logger *slog.Logger) error {
	backend := audioio.ResolveBackend(app.Audio)
	logger.Debug("listing devices", "backend", backend)

	if !asJSON && backend == audioio.BackendPortAudio {
		fmt.Println("Initializing PortAudio:")
	}
	release, err := audioio.InitializeBackend(backend)
	if err != nil {
		return err
	}
	defer release()

	if !asJSON {
		return audioio.WriteHostInfo(os.Stdout, backend)
	}

	devices, err := audioio.ListDevices(backend)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(devices)
}
