package trace

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), &Config{}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	shutdown, err = InitTracing(context.Background(), nil, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitTracing_HTTP_NoopUsage(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	// Use HTTP protocol to avoid opening a gRPC connection in tests.
	cfg := &Config{
		Enabled:     true,
		ServiceName: "algoroom-test",
		Protocol:    "http",
		Insecure:    true,
		SamplerRate: 2.5,
		Environment: "dev",
		Headers:     map[string]string{"x-test": "1"},
	}

	shutdown, err := InitTracing(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	// No spans are created so shutdown has nothing to export.
	require.NoError(t, shutdown(context.Background()))
}

func TestEndpointFor(t *testing.T) {
	p, e := endpointFor(&Config{})
	assert.Equal(t, "grpc", p)
	assert.Equal(t, "localhost:4317", e)

	p, e = endpointFor(&Config{Protocol: "http"})
	assert.Equal(t, "http", p)
	assert.Equal(t, "localhost:4318", e)

	p, e = endpointFor(&Config{Protocol: "http", Endpoint: "collector:4318"})
	assert.Equal(t, "http", p)
	assert.Equal(t, "collector:4318", e)
}

func TestClampRate(t *testing.T) {
	assert.Equal(t, 0.0, clampRate(-1))
	assert.Equal(t, 0.5, clampRate(0.5))
	assert.Equal(t, 1.0, clampRate(3))
}

func TestBuilder_WithInMemoryProvider(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sr),
		sdktrace.WithResource(resource.Empty()),
	)
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	scope := Tracer("trace-test").Start(context.Background(), "op").
		WithAttrs(attribute.String("session.id", "s1"))
	scope.Fail(nil)
	scope.Fail(errors.New("boom"))
	scope.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "op", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("session.id", "s1"))
	assert.Len(t, spans[0].Events(), 1)
}

func TestSpanScope_NilSafe(t *testing.T) {
	var s *SpanScope
	assert.Nil(t, s.WithAttrs(attribute.String("k", "v")))
	s.Fail(errors.New("x"))
	s.End()
}
