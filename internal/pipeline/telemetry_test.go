package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/felixgeelhaar/pomgen/internal/artifact"
	"github.com/felixgeelhaar/pomgen/internal/capability"
	"github.com/felixgeelhaar/pomgen/internal/registry"
	"github.com/felixgeelhaar/pomgen/internal/stage"
	"github.com/felixgeelhaar/pomgen/internal/telemetry"
)

func TestInvocationTelemetry(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	tel, err := telemetry.NewFromProviders(tp, metricnoop.NewMeterProvider())
	require.NoError(t, err)

	store := &flakyStore{Store: registry.NewMemoryStore(), fail: 1}
	co := New(
		registry.New(store, registry.DefaultLayout()),
		stage.New(capability.MustDefault()),
		artifact.NewWriter(t.TempDir()),
		WithTelemetry(tel),
	)

	_, err = co.InvokeWithRetry(context.Background(), Request{
		Stage:       stage.StageStory,
		LogicalName: "Checkout",
		Payload:     Payload{Text: "As a shopper I want to pay so that I get a receipt"},
	}, 2, time.Millisecond)
	require.NoError(t, err)

	ended := spans.Ended()
	require.Len(t, ended, 2)
	for _, s := range ended {
		assert.Equal(t, "stage.story", s.Name())
		assert.Contains(t, s.Attributes(), attribute.String("pomgen.logical_name", "Checkout"))
	}
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, codes.Ok, ended[1].Status().Code)
	assert.Contains(t, ended[1].Attributes(), attribute.Int64("pomgen.registry_version", 1))
}
