package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/teslashibe/go-micmon/pkg/audioio"
	"github.com/teslashibe/go-micmon/pkg/meter"
)

func testDeps() Deps {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "micmon_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Add(3)

	return Deps{
		Status: func() Status {
			return Status{
				Backend: "mock",
				Meter:   meter.Stats{SessionID: "abc", Seen: 4, MaxInvocations: 100},
			}
		},
		Devices: func() ([]audioio.DeviceInfo, error) {
			return audioio.ListDevices(audioio.BackendMock)
		},
		Gatherer: reg,
	}
}

func TestServer_Status(t *testing.T) {
	s := NewServer(DefaultConfig(), testDeps(), nil)

	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/status", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var status Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if status.Backend != "mock" {
		t.Errorf("Expected backend 'mock', got '%s'", status.Backend)
	}
	if status.Meter.SessionID != "abc" || status.Meter.Seen != 4 {
		t.Errorf("Unexpected meter stats: %+v", status.Meter)
	}
	if status.Publish != nil {
		t.Error("Expected no publish stats")
	}
	if status.Uptime == "" {
		t.Error("Expected uptime")
	}
}

func TestServer_Devices(t *testing.T) {
	s := NewServer(DefaultConfig(), testDeps(), nil)

	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/devices", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	var devices []audioio.DeviceInfo
	if err := json.NewDecoder(resp.Body).Decode(&devices); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(devices) != 1 || devices[0].Name != "mock" {
		t.Errorf("Unexpected devices: %+v", devices)
	}
}

func TestServer_DevicesError(t *testing.T) {
	deps := testDeps()
	deps.Devices = func() ([]audioio.DeviceInfo, error) {
		return nil, errors.New("no audio")
	}
	s := NewServer(DefaultConfig(), deps, nil)

	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/devices", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != 500 {
		t.Errorf("Expected status 500, got %d", resp.StatusCode)
	}
}

func TestServer_Metrics(t *testing.T) {
	s := NewServer(DefaultConfig(), testDeps(), nil)

	resp, err := s.App().Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "micmon_test_total 3") {
		t.Errorf("Expected counter in metrics output, got:\n%s", body)
	}
}

func TestServer_MetricsDisabled(t *testing.T) {
	deps := testDeps()
	deps.Gatherer = nil
	s := NewServer(DefaultConfig(), deps, nil)

	resp, err := s.App().Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != 404 {
		t.Errorf("Expected status 404, got %d", resp.StatusCode)
	}
}

func TestServer_WebSocketRequiresUpgrade(t *testing.T) {
	s := NewServer(DefaultConfig(), testDeps(), nil)

	resp, err := s.App().Test(httptest.NewRequest("GET", "/ws/levels", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != 426 {
		t.Errorf("Expected status 426, got %d", resp.StatusCode)
	}
}

func TestServer_LevelsWebSocket(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	s := NewServer(DefaultConfig(), testDeps(), nil)
	go s.Serve(ctx, ln)

	url := "ws://" + ln.Addr().String() + "/ws/levels"
	var conn *websocket.Conn
	deadline := time.Now().Add(2 * time.Second)
	for {
		conn, _, err = websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Dial failed: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	defer conn.Close()

	// Wait for the hub to register the client before broadcasting
	for s.Levels().ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Timeout waiting for client registration")
		}
		time.Sleep(5 * time.Millisecond)
	}

	want := meter.Reading{Seq: 1, LevelDB: -12.5, Frames: 480}
	if err := s.Levels().BroadcastJSON(want); err != nil {
		t.Fatalf("BroadcastJSON failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got meter.Reading
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if got.Seq != want.Seq || got.LevelDB != want.LevelDB || got.Frames != want.Frames {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled", Config{Enabled: false, Address: "bogus"}, false},
		{"default port", Config{Enabled: true, Address: ":8080"}, false},
		{"host and port", Config{Enabled: true, Address: "127.0.0.1:9000"}, false},
		{"missing port", Config{Enabled: true, Address: "localhost"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
