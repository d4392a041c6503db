package metrics

import (
	"errors"
	"time"
)

// Cfg is the "metrics" configuration section.
type Cfg struct {
	Enabled bool `mapstructure:"enabled"`
	// Addr serves /metrics and /healthz.
	Addr string `mapstructure:"addr"`
	// ServiceName prefixes every metric name.
	ServiceName string `mapstructure:"serviceName"`
	// Expiration drops series not updated for this long. 0 keeps them forever.
	Expiration time.Duration `mapstructure:"expiration"`
}

// GetName ...
func (c *Cfg) GetName() string {
	return "metrics"
}

// Validate ...
func (c *Cfg) Validate() error {
	if c.Enabled && c.Addr == "" {
		return errors.New("metrics: enabled without addr")
	}
	if c.Expiration < 0 {
		return errors.New("metrics: negative expiration")
	}
	return nil
}

// DefaultCfg ...
func DefaultCfg() *Cfg {
	return &Cfg{
		Addr:        ":9467",
		ServiceName: "hearth",
	}
}
