// AngelaMos | 2026
// telemetry_test.go

package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/angelamos/tutoring-portal/internal/config"
)

func TestNewTelemetryDisabled(t *testing.T) {
	tel, err := NewTelemetry(context.Background(),
		config.OtelConfig{Enabled: false, Endpoint: "collector:4317"},
		config.AppConfig{Name: "portal"},
	)
	require.NoError(t, err)
	assert.False(t, tel.Enabled())
	assert.NoError(t, tel.Shutdown(context.Background()))

	var nilTel *Telemetry
	assert.NoError(t, nilTel.Shutdown(context.Background()))
}

func TestSampleRatio(t *testing.T) {
	assert.InDelta(t, defaultSampleRate, sampleRatio(0), 0)
	assert.InDelta(t, defaultSampleRate, sampleRatio(1.5), 0)
	assert.InDelta(t, 0.5, sampleRatio(0.5), 0)
	assert.InDelta(t, 1, sampleRatio(1), 0)
}

func recordSpans(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	return exporter
}

func TestStartSpan(t *testing.T) {
	exporter := recordSpans(t)

	assert.Empty(t, TraceIDFromContext(context.Background()))

	ctx, span := StartSpan(context.Background(), "auth.Login", attribute.String("user.id", "u-1"))
	traceID := TraceIDFromContext(ctx)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "auth.Login", spans[0].Name)
	assert.Equal(t, traceID, spans[0].SpanContext.TraceID().String())
	assert.Contains(t, spans[0].Attributes, attribute.String("user.id", "u-1"))
}

func TestRecordSpanError(t *testing.T) {
	exporter := recordSpans(t)

	assert.NotPanics(t, func() {
		RecordSpanError(context.Background(), errors.New("no span"))
	})

	ctx, span := StartSpan(context.Background(), "admin.stats")
	RecordSpanError(ctx, errors.New("connection reset"))
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "connection reset", spans[0].Status.Description)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "exception", spans[0].Events[0].Name)
}
