package publish

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func ipcConfig(t *testing.T) Config {
	t.Helper()
	endpoint := "ipc://" + filepath.Join(t.TempDir(), "levels.sock")
	cfg := DefaultConfig()
	cfg.Endpoint = endpoint
	cfg.Connect = endpoint
	cfg.DialRetry = 50 * time.Millisecond
	return cfg
}

func TestZMQ_PublishSubscribe(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := ipcConfig(t)

	pub, err := NewZMQPublisher(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("NewZMQPublisher failed: %v", err)
	}
	defer pub.Close()

	sub, err := NewSubscriber(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("NewSubscriber failed: %v", err)
	}
	defer sub.Close()

	frames := []float32{0.1, -0.2, 0.3}
	got := make(chan []float32, 1)
	errCh := make(chan error, 1)
	go func() {
		decoded, err := sub.RecvFrames(nil)
		if err != nil {
			errCh <- err
			return
		}
		got <- decoded
	}()

	// The subscription propagates asynchronously; publish until it lands.
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case decoded := <-got:
			if len(decoded) != len(frames) {
				t.Fatalf("Expected %d frames, got %d", len(frames), len(decoded))
			}
			for i := range frames {
				if decoded[i] != frames[i] {
					t.Errorf("Frame %d: expected %v, got %v", i, frames[i], decoded[i])
				}
			}
			if s := sub.Stats(); s.MessagesReceived != 1 || s.BytesReceived != int64(len(frames)*SampleSize) {
				t.Errorf("Unexpected subscriber stats: %+v", s)
			}
			if s := pub.Stats(); s.MessagesSent < 1 {
				t.Errorf("Expected at least 1 message sent, got %d", s.MessagesSent)
			}
			return
		case err := <-errCh:
			t.Fatalf("Recv failed: %v", err)
		case <-ticker.C:
			if err := pub.WriteFrames(frames); err != nil {
				t.Fatalf("WriteFrames failed: %v", err)
			}
		case <-ctx.Done():
			t.Fatal("Timeout waiting for message")
		}
	}
}

func TestZMQPublisher_Close(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub, err := NewZMQPublisher(ctx, ipcConfig(t), nil)
	if err != nil {
		t.Fatalf("NewZMQPublisher failed: %v", err)
	}

	if err := pub.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}
	if err := pub.Publish([]byte{1, 2, 3, 4}); err == nil {
		t.Error("Expected error publishing on closed publisher")
	}
}

func TestZMQPublisher_BadEndpoint(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Endpoint = "bogus://nowhere"

	if _, err := NewZMQPublisher(context.Background(), cfg, nil); err == nil {
		t.Error("Expected error for invalid endpoint")
	}
}
