package tracing

import (
	"errors"
)

// TracerConfig is the "tracing" configuration section.
type TracerConfig struct {
	// Enabled off replaces the tracer with a no-op one.
	Enabled bool `mapstructure:"enabled"`
	// Name is the instrumentation scope passed to the tracer provider.
	Name string `mapstructure:"name"`
}

// GetName ...
func (c *TracerConfig) GetName() string {
	return "tracing"
}

// Validate ...
func (c *TracerConfig) Validate() error {
	if c.Enabled && c.Name == "" {
		return errors.New("tracing: enabled without name")
	}
	return nil
}

// DefaultTracerConfig ...
func DefaultTracerConfig() TracerConfig {
	return TracerConfig{
		Enabled: true,
		Name:    "github.com/lcx/hearth",
	}
}
