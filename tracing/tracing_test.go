package tracing

import (
	"context"
	"sync"
	"testing"

	"github.com/lcx/hearth/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// recordingProvider 记录被请求的 tracer 名称
type recordingProvider struct {
	noop.TracerProvider
	mu    sync.Mutex
	names []string
}

func (p *recordingProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	p.mu.Lock()
	p.names = append(p.names, name)
	p.mu.Unlock()
	return p.TracerProvider.Tracer(name, opts...)
}

func TestConfigureUsesGlobalProvider(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	p := &recordingProvider{}
	otel.SetTracerProvider(p)

	Configure(&TracerConfig{Enabled: true, Name: "hearth/test"})
	ctx, span := Start(context.Background(), "net.server.poll", attribute.Int("connections", 3))
	require.NotNil(t, ctx)
	span.End()

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Contains(t, p.names, "hearth/test")
}

func TestDisabledIsNoop(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	p := &recordingProvider{}
	otel.SetTracerProvider(p)

	Configure(&TracerConfig{Enabled: false})
	_, span := Start(context.Background(), "ignored")
	assert.False(t, span.IsRecording())
	span.End()

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Empty(t, p.names)
}

func TestConfigListener(t *testing.T) {
	l := &tracingConfigListener{}
	require.NoError(t, l.OnConfigChanged("server", &TracerConfig{}, nil))
	require.NoError(t, l.OnConfigChanged("tracing", &TracerConfig{Enabled: false}, nil))
	_, span := Start(context.Background(), "after reload")
	assert.False(t, span.IsRecording())
}

func TestInitWithMissingSection(t *testing.T) {
	cm := config.NewConfigManager()
	defer cm.Close()
	cm.SetBasePath(t.TempDir())
	require.NoError(t, InitTracingWithConfigManager(cm))
	assert.NotNil(t, Tracer())
}

func TestTracerConfigValidate(t *testing.T) {
	def := DefaultTracerConfig()
	assert.NoError(t, def.Validate())
	assert.Error(t, (&TracerConfig{Enabled: true}).Validate())
	assert.NoError(t, (&TracerConfig{}).Validate())
}
