// subscribe connects to a running publisher and prints the index and size
// of each received message.
//
// With -ws it instead tails the level readings of a levelmon or publish
// dashboard.
//
// Usage:
//
//	go run ./cmd/subscribe -n 1000
//	go run ./cmd/subscribe -connect tcp://10.0.0.5:5556
//	go run ./cmd/subscribe -ws ws://localhost:8080/ws/levels
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-micmon/internal/config"
	"github.com/teslashibe/go-micmon/internal/log"
	"github.com/teslashibe/go-micmon/pkg/meter"
	"github.com/teslashibe/go-micmon/pkg/publish"
)

func main() {
	flags := config.RegisterFlags(flag.CommandLine)
	connect := flag.String("connect", "", "ZeroMQ endpoint to connect to (default from config)")
	count := flag.Int("n", 1000, "Number of messages to receive (0 = until interrupted)")
	wsURL := flag.String("ws", "", "Tail level readings from this websocket URL instead")
	flag.Parse()

	app, err := flags.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *connect != "" {
		app.Publish.Connect = *connect
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
	logger := log.With("cmd", "subscribe")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	if *wsURL != "" {
		err = tailLevels(ctx, *wsURL, *count, logger)
	} else {
		err = run(ctx, app, *count, logger)
	}
	stop()
	closer.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "\nExiting due to an error.\n%v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, app config.App, count int, logger *slog.Logger) error {
	sub, err := publish.NewSubscriber(ctx, app.Publish, logger)
	if err != nil {
		return err
	}
	defer sub.Close()

	for i := 0; count == 0 || i < count; i++ {
		payload, err := sub.Recv()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return err
		}
		fmt.Printf("%d %d\n", i, len(payload))
	}

	s := sub.Stats()
	logger.Info("subscriber finished",
		"messages", s.MessagesReceived,
		"bytes", s.BytesReceived,
	)
	return nil
}

// tailLevels prints level readings streamed by the web dashboard.
func tailLevels(ctx context.Context, url string, count int, logger *slog.Logger) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	logger.Info("tailing levels", "url", url)

	for i := 0; count == 0 || i < count; i++ {
		var r meter.Reading
		if err := conn.ReadJSON(&r); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("failed to read reading: %w", err)
		}
		fmt.Printf("%d %.2f dB\n", r.Seq, r.LevelDB)
		if r.Final {
			return nil
		}
	}
	return nil
}
