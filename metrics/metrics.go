// Package metrics reports counters, gauges and samples through go-metrics
// into a prometheus registry.
package metrics

import (
	"sort"
	"sync/atomic"
	"time"

	gm "github.com/armon/go-metrics"
	gmprom "github.com/armon/go-metrics/prometheus"
	"github.com/prometheus/client_golang/prometheus"
)

type reporter struct {
	m   *gm.Metrics
	reg *prometheus.Registry
}

var _reporter atomic.Pointer[reporter]

func init() {
	conf := newConf("")
	m, _ := gm.New(conf, &gm.BlackholeSink{})
	_reporter.Store(&reporter{m: m, reg: prometheus.NewRegistry()})
}

func newConf(service string) *gm.Config {
	conf := gm.DefaultConfig(service)
	conf.EnableHostname = false
	conf.EnableHostnameLabel = false
	conf.EnableRuntimeMetrics = false
	conf.EnableTypePrefix = false
	return conf
}

// Init replaces the reporter with one backed by a fresh prometheus
// registry. Until Init is called every report is discarded.
func Init(cfg *Cfg) error {
	if cfg == nil {
		cfg = DefaultCfg()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	sink, err := gmprom.NewPrometheusSinkFrom(gmprom.PrometheusOpts{
		Registerer: reg,
		Expiration: cfg.Expiration,
		Name:       "hearth_sink",
	})
	if err != nil {
		return err
	}
	m, err := gm.New(newConf(cfg.ServiceName), sink)
	if err != nil {
		return err
	}
	_reporter.Store(&reporter{m: m, reg: reg})
	return nil
}

// Registry returns the registry metrics are currently exported to.
func Registry() *prometheus.Registry {
	return _reporter.Load().reg
}

func labels(dim Dimension) []gm.Label {
	if len(dim) == 0 {
		return nil
	}
	out := make([]gm.Label, 0, len(dim))
	for k, v := range dim {
		out = append(out, gm.Label{Name: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Report routes a value by policy.
func Report(group, name string, policy Policy, value Value, dim Dimension) {
	m := _reporter.Load().m
	key := []string{group, name}
	switch policy {
	case PolicySum:
		m.IncrCounterWithLabels(key, float32(value), labels(dim))
	case PolicySet:
		m.SetGaugeWithLabels(key, float32(value), labels(dim))
	case PolicyStopwatch, PolicyHistogram:
		m.AddSampleWithLabels(key, float32(value), labels(dim))
	}
}

// IncrCounterWithGroup ...
func IncrCounterWithGroup(group, name string, value Value) {
	Report(group, name, PolicySum, value, nil)
}

// IncrCounterWithDimGroup ...
func IncrCounterWithDimGroup(group, name string, value Value, dim Dimension) {
	Report(group, name, PolicySum, value, dim)
}

// UpdateGaugeWithGroup ...
func UpdateGaugeWithGroup(group, name string, value Value) {
	Report(group, name, PolicySet, value, nil)
}

// UpdateGaugeWithDimGroup ...
func UpdateGaugeWithDimGroup(group, name string, value Value, dim Dimension) {
	Report(group, name, PolicySet, value, dim)
}

// AddSampleWithGroup ...
func AddSampleWithGroup(group, name string, value Value) {
	Report(group, name, PolicyHistogram, value, nil)
}

// ObserveSince records the milliseconds elapsed since start.
func ObserveSince(group, name string, start time.Time) {
	Report(group, name, PolicyStopwatch, Value(time.Since(start).Seconds()*1000), nil)
}
