// Package config loads go-micmon command configuration from a YAML file
// and MICMON_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"

	"github.com/teslashibe/go-micmon/internal/log"
	"github.com/teslashibe/go-micmon/pkg/audioio"
	"github.com/teslashibe/go-micmon/pkg/level"
	"github.com/teslashibe/go-micmon/pkg/publish"
	"github.com/teslashibe/go-micmon/pkg/web"
)

// EnvPrefix prefixes environment overrides, e.g. MICMON_AUDIO_BACKEND.
const EnvPrefix = "MICMON"

// DefaultPath is read when no config file is named. It may be absent.
const DefaultPath = "micmon.yaml"

// Record configures WAV capture.
type Record struct {
	// Path is the output file. Empty disables recording.
	Path string `yaml:"path" json:"path" mapstructure:"path"`

	// QueueSize is the number of buffers held for the writer.
	QueueSize int `yaml:"queue_size" json:"queue_size" mapstructure:"queue_size"`
}

// App is the complete configuration shared by the commands.
type App struct {
	Log     log.Options    `yaml:"log" json:"log" mapstructure:"log"`
	Audio   audioio.Config `yaml:"audio" json:"audio" mapstructure:"audio"`
	Level   level.Config   `yaml:"level" json:"level" mapstructure:"level"`
	Publish publish.Config `yaml:"publish" json:"publish" mapstructure:"publish"`
	Record  Record         `yaml:"record" json:"record" mapstructure:"record"`
	Web     web.Config     `yaml:"web" json:"web" mapstructure:"web"`
}

// Default returns the built-in configuration.
func Default() App {
	return App{
		Log:     log.DefaultOptions(),
		Audio:   audioio.DefaultConfig(),
		Level:   level.DefaultConfig(),
		Publish: publish.DefaultConfig(),
		Record:  Record{QueueSize: 64},
		Web:     web.DefaultConfig(),
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)

	v.SetDefault("audio.backend", string(d.Audio.Backend))
	v.SetDefault("audio.sample_rate", d.Audio.SampleRate)
	v.SetDefault("audio.channels", d.Audio.Channels)
	v.SetDefault("audio.frames_per_buffer", d.Audio.FramesPerBuffer)
	v.SetDefault("audio.latency", string(d.Audio.Latency))
	v.SetDefault("audio.device", d.Audio.Device)
	v.SetDefault("audio.mock_tone", d.Audio.MockTone)

	v.SetDefault("level.max_invocations", d.Level.MaxInvocations)

	v.SetDefault("publish.endpoint", d.Publish.Endpoint)
	v.SetDefault("publish.connect", d.Publish.Connect)
	v.SetDefault("publish.queue_size", d.Publish.QueueSize)
	v.SetDefault("publish.max_frames", d.Publish.MaxFrames)
	v.SetDefault("publish.dial_retry", d.Publish.DialRetry)

	v.SetDefault("record.path", d.Record.Path)
	v.SetDefault("record.queue_size", d.Record.QueueSize)

	v.SetDefault("web.enabled", d.Web.Enabled)
	v.SetDefault("web.address", d.Web.Address)
}

// Load reads path, applies environment overrides and validates the result.
// An empty path reads DefaultPath if it exists and otherwise uses defaults
// and the environment; a named file must exist.
func Load(path string) (App, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
		if explicit || !missing {
			return App{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var app App
	if err := v.Unmarshal(&app); err != nil {
		return App{}, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := app.Validate(); err != nil {
		return App{}, err
	}
	return app, nil
}

// Validate checks every section.
func (a *App) Validate() error {
	if _, _, err := log.ParseLevel(a.Log.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := a.Audio.Validate(); err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	if err := a.Publish.Validate(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if a.Record.QueueSize < 1 {
		return fmt.Errorf("record: queue_size must be positive, got %d", a.Record.QueueSize)
	}
	if err := a.Web.Validate(); err != nil {
		return fmt.Errorf("web: %w", err)
	}
	return nil
}

// RecordForwarder returns the forwarder settings used for WAV capture.
func (a *App) RecordForwarder() publish.Config {
	cfg := a.Publish
	cfg.QueueSize = a.Record.QueueSize
	return cfg
}
