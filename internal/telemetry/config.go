package telemetry

import "fmt"

// Config controls tracing and metrics export.
type Config struct {
	// Enabled turns on the SDK providers. When false every instrument
	// is a noop.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Endpoint is the OTLP/HTTP collector (host:port). Without one,
	// spans and metrics are recorded but never exported.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`

	// Insecure sends to Endpoint over plain HTTP.
	Insecure bool `yaml:"insecure,omitempty" json:"insecure,omitempty"`

	// SampleRate is the fraction of invocations traced (0.0 to 1.0).
	SampleRate float64 `yaml:"sample_rate" json:"sample_rate"`

	ServiceName    string `yaml:"-" json:"-"`
	ServiceVersion string `yaml:"-" json:"-"`
}

// DefaultConfig returns a sensible default configuration
// Tracing disabled by default for CLI tool
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		SampleRate:     1.0,
		ServiceName:    "pomgen",
		ServiceVersion: "dev",
	}
}

// Validate checks the sample rate.
func (c Config) Validate() error {
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("telemetry sample_rate must be between 0 and 1, got %v", c.SampleRate)
	}
	return nil
}
