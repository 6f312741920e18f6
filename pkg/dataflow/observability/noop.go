package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a MetricsRecorder that does nothing.
type NoopMetrics struct{}

var _ MetricsRecorder = NoopMetrics{}

// RecordNodeEvent does nothing.
func (NoopMetrics) RecordNodeEvent(context.Context, string, string, time.Duration, error) {}

// RecordContraflow does nothing.
func (NoopMetrics) RecordContraflow(context.Context, string, string) {}

// RecordSinkOutcome does nothing.
func (NoopMetrics) RecordSinkOutcome(context.Context, string, string) {}

// RecordCascade does nothing.
func (NoopMetrics) RecordCascade(context.Context, string, time.Duration, bool) {}

// RecordRejected does nothing.
func (NoopMetrics) RecordRejected(context.Context, string, string) {}

// NoopSpanManager is a SpanManager that does nothing.
type NoopSpanManager struct{}

var _ SpanManager = NoopSpanManager{}

var noopSpan = noop.Span{}

// StartCascadeSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartCascadeSpan(ctx context.Context, _, _, _ string, _ uint64) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// StartNodeSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartNodeSpan(ctx context.Context, _, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// EndSpanWithError does nothing.
func (NoopSpanManager) EndSpanWithError(trace.Span, error) {}

// AddSpanEvent does nothing.
func (NoopSpanManager) AddSpanEvent(context.Context, string, ...attribute.KeyValue) {}
