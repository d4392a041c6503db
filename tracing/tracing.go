// Package tracing opens spans through the OpenTelemetry API. Spans are
// recorded once the application installs an SDK provider with
// otel.SetTracerProvider; until then they are no-ops.
package tracing

import (
	"context"
	"sync"

	"github.com/lcx/hearth/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// 全局Tracer实例
var (
	globalTracer   trace.Tracer
	globalTracerMu sync.RWMutex
)

// InitTracing loads the "tracing" section from the singleton manager.
func InitTracing() error {
	return InitTracingWithConfigManager(config.GetInstance())
}

// InitTracingWithConfigManager loads the "tracing" section and follows its
// hot reloads. A missing section falls back to DefaultTracerConfig.
func InitTracingWithConfigManager(cm config.ConfigManager) error {
	cfg := DefaultTracerConfig()
	if cm != nil {
		if err := cm.LoadConfig(cfg.GetName(), &cfg); err != nil {
			if !config.IsNotFound(err) {
				return err
			}
			cfg = DefaultTracerConfig()
		}
		cm.AddChangeListener(&tracingConfigListener{})
	}
	Configure(&cfg)
	return nil
}

// Configure installs the tracer described by cfg.
func Configure(cfg *TracerConfig) {
	setGlobalTracer(buildTracer(cfg))
}

func buildTracer(cfg *TracerConfig) trace.Tracer {
	if cfg == nil || !cfg.Enabled {
		return noop.NewTracerProvider().Tracer("")
	}
	return otel.Tracer(cfg.Name)
}

func setGlobalTracer(t trace.Tracer) {
	globalTracerMu.Lock()
	defer globalTracerMu.Unlock()
	globalTracer = t
}

// Tracer returns the configured tracer, or the global provider's tracer
// when Configure was never called.
func Tracer() trace.Tracer {
	globalTracerMu.RLock()
	t := globalTracer
	globalTracerMu.RUnlock()
	if t == nil {
		return otel.Tracer(DefaultTracerConfig().Name)
	}
	return t
}

// Start opens a span named name as a child of any span in ctx.
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// 配置变更监听器
type tracingConfigListener struct{}

// OnConfigChanged 处理配置变更
func (l *tracingConfigListener) OnConfigChanged(configName string, newConfig, _ config.Config) error {
	if configName != "tracing" {
		return nil
	}
	newCfg, ok := newConfig.(*TracerConfig)
	if !ok {
		return nil
	}
	Configure(newCfg)
	return nil
}
