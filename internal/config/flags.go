package config

import (
	"flag"

	"github.com/teslashibe/go-micmon/pkg/audioio"
)

// Flags are the command-line options shared by every command. Empty
// values leave the loaded configuration untouched.
type Flags struct {
	Config   string
	Backend  string
	Device   string
	LogLevel string
}

// RegisterFlags adds the shared flags to fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.Config, "config", "", "Path to YAML config file (default: "+DefaultPath+" if present)")
	fs.StringVar(&f.Backend, "backend", "", "Audio backend: auto, portaudio, mock")
	fs.StringVar(&f.Device, "device", "", "Input device name (default: system default input)")
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level: none, debug, info, warn, error")
	return f
}

// Load loads the configuration file and applies the flag overrides.
func (f *Flags) Load() (App, error) {
	app, err := Load(f.Config)
	if err != nil {
		return App{}, err
	}

	if f.Backend != "" {
		app.Audio.Backend = audioio.Backend(f.Backend)
	}
	if f.Device != "" {
		app.Audio.Device = f.Device
	}
	if f.LogLevel != "" {
		app.Log.Level = f.LogLevel
	}

	if err := app.Validate(); err != nil {
		return App{}, err
	}
	return app, nil
}
