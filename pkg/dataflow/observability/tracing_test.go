package observability

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
)

// setupTracingTest installs a tracer provider that records into memory.
func setupTracingTest(t *testing.T) *tracetest.InMemoryExporter {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down tracer provider: %v", err)
		}
	})
	return exporter
}

func TestSpanManager_CascadeAndNode(t *testing.T) {
	exporter := setupTracingTest(t)
	sm := NewSpanManager()

	ctx, cascade := sm.StartCascadeSpan(context.Background(), "pipe-1", "data", "orders", 3)
	_, node := sm.StartNodeSpan(ctx, "split", "data")
	sm.EndSpanWithError(node, errors.New("boom"))
	sm.EndSpanWithError(cascade, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	nodeSpan, cascadeSpan := spans[0], spans[1]
	assert.Equal(t, "dataflow.node.split", nodeSpan.Name)
	assert.Equal(t, codes.Error, nodeSpan.Status.Code)
	assert.Equal(t, cascadeSpan.SpanContext.SpanID(), nodeSpan.Parent.SpanID())

	assert.Equal(t, "dataflow.cascade.data", cascadeSpan.Name)
	assert.Equal(t, codes.Ok, cascadeSpan.Status.Code)
	assert.Contains(t, cascadeSpan.Attributes, attribute.String("event.origin", "orders"))
	assert.Contains(t, cascadeSpan.Attributes, attribute.Int64("event.id", 3))
}

func TestSpanManager_AddSpanEvent(t *testing.T) {
	exporter := setupTracingTest(t)
	sm := NewSpanManager()

	ctx, span := sm.StartCascadeSpan(context.Background(), "pipe-1", "contraflow", "internal", 0)
	sm.AddSpanEvent(ctx, "pruned", attribute.String("node.id", "enrich"))
	sm.EndSpanWithError(span, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "pruned", spans[0].Events[0].Name)

	assert.NotPanics(t, func() {
		sm.AddSpanEvent(context.Background(), "no span")
		sm.EndSpanWithError(nil, nil)
	})
}

func TestNoopSpanManager(t *testing.T) {
	exporter := setupTracingTest(t)
	var sm SpanManager = NoopSpanManager{}

	ctx := context.Background()
	got, span := sm.StartCascadeSpan(ctx, "p", "data", "o", 1)
	assert.Equal(t, ctx, got)
	sm.EndSpanWithError(span, errors.New("ignored"))
	_, span = sm.StartNodeSpan(ctx, "n", "data")
	sm.EndSpanWithError(span, nil)

	assert.Empty(t, exporter.GetSpans())
}
