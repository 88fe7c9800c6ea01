package level

// Config holds level monitor settings.
type Config struct {
	// MaxInvocations is the number of readings taken before the monitor
	// completes. Default: 100
	MaxInvocations uint64 `yaml:"max_invocations" json:"max_invocations" mapstructure:"max_invocations"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxInvocations: 100,
	}
}

// NewMonitor creates a monitor from the configuration.
func (c Config) NewMonitor(opts ...Option) *Monitor {
	return New(c.MaxInvocations, opts...)
}
