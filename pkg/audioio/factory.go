package audioio

import (
	"fmt"
	"io"
	"log/slog"
	"time"
)

// NewSource creates a new audio source with the given configuration.
// If cfg.Backend is BackendAuto, the best available backend is selected.
// The PortAudio backend requires Initialize to have been called.
func NewSource(cfg Config, logger *slog.Logger, opts ...Option) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	backend := cfg.Backend
	if backend == BackendAuto {
		backend = detectBestBackend()
	}

	logger.Info("creating audio source",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"frames_per_buffer", cfg.FramesPerBuffer,
		"latency", cfg.Latency,
	)

	switch backend {
	case BackendMock:
		return NewMockSource(cfg, logger, opts...), nil
	case BackendPortAudio:
		src, err := newPortAudioSource(cfg, logger, buildOptions(opts))
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

// detectBestBackend returns PortAudio when the binary was built with cgo.
func detectBestBackend() Backend {
	if portaudioAvailable {
		return BackendPortAudio
	}
	return BackendMock
}

// ResolveBackend returns the backend NewSource would use for cfg.
func ResolveBackend(cfg Config) Backend {
	if cfg.Backend == BackendAuto {
		return detectBestBackend()
	}
	return cfg.Backend
}

// AvailableBackends returns the list of backends compiled into this binary.
func AvailableBackends() []Backend {
	backends := []Backend{BackendMock}
	if portaudioAvailable {
		backends = append(backends, BackendPortAudio)
	}
	return backends
}

// ListDevices enumerates the devices of the given backend. The mock backend
// reports a single synthetic input device.
func ListDevices(backend Backend) ([]DeviceInfo, error) {
	if backend == BackendAuto {
		backend = detectBestBackend()
	}
	switch backend {
	case BackendMock:
		return []DeviceInfo{mockDevice()}, nil
	case BackendPortAudio:
		return Devices()
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

// WriteHostInfo prints the PortAudio version text, when backend is
// PortAudio, followed by the device list. The backend must be initialized.
func WriteHostInfo(w io.Writer, backend Backend) error {
	if backend == BackendAuto {
		backend = detectBestBackend()
	}
	devices, err := ListDevices(backend)
	if err != nil {
		return err
	}
	if backend == BackendPortAudio {
		if _, err := fmt.Fprintln(w, VersionText()); err != nil {
			return err
		}
	}
	return WriteDeviceList(w, devices)
}

func mockDevice() DeviceInfo {
	return DeviceInfo{
		Index:                   0,
		Name:                    "mock",
		HostAPI:                 "mock",
		MaxInputChannels:        1,
		DefaultSampleRate:       mockSampleRate,
		DefaultLowInputLatency:  10 * time.Millisecond,
		DefaultHighInputLatency: 40 * time.Millisecond,
		IsDefaultInput:          true,
	}
}

// InitializeBackend prepares the host library the backend needs. The
// returned function releases it and is never nil.
func InitializeBackend(backend Backend) (release func() error, err error) {
	if backend == BackendAuto {
		backend = detectBestBackend()
	}
	if backend != BackendPortAudio {
		return func() error { return nil }, nil
	}
	if err := Initialize(); err != nil {
		return func() error { return nil }, err
	}
	return Terminate, nil
}

// ResolveSampleRate returns the rate a source built from cfg will run at.
// An unset rate resolves to the input device's default. The host library
// must be initialized for the PortAudio backend.
func ResolveSampleRate(cfg Config) (float64, error) {
	if cfg.SampleRate > 0 {
		return cfg.SampleRate, nil
	}

	devices, err := ListDevices(ResolveBackend(cfg))
	if err != nil {
		return 0, err
	}
	for _, d := range devices {
		if cfg.Device == "" && d.IsDefaultInput {
			return d.DefaultSampleRate, nil
		}
		if cfg.Device != "" && d.Name == cfg.Device && d.IsInput() {
			return d.DefaultSampleRate, nil
		}
	}
	return 0, fmt.Errorf("input device %q not found", deviceName(cfg.Device))
}

func deviceName(name string) string {
	if name == "" {
		return "default"
	}
	return name
}
