package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records pipeline metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordNodeEvent records one operator invocation.
	RecordNodeEvent(ctx context.Context, nodeID, kind string, duration time.Duration, err error)

	// RecordContraflow records a contraflow signal handled by a node.
	RecordContraflow(ctx context.Context, nodeID, action string)

	// RecordSinkOutcome records a sink delivery result.
	RecordSinkOutcome(ctx context.Context, output, outcome string)

	// RecordCascade records a completed or abandoned cascade.
	RecordCascade(ctx context.Context, kind string, duration time.Duration, abandoned bool)

	// RecordRejected records a push refused at an input.
	RecordRejected(ctx context.Context, input, reason string)
}

type otelMetrics struct {
	nodeEvents     metric.Int64Counter
	nodeLatency    metric.Float64Histogram
	nodeErrors     metric.Int64Counter
	contraflow     metric.Int64Counter
	sinkOutcomes   metric.Int64Counter
	cascades       metric.Int64Counter
	cascadeLatency metric.Float64Histogram
	rejected       metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("dataflow")
	m := &otelMetrics{}
	var err error

	if m.nodeEvents, err = meter.Int64Counter("dataflow.node.events",
		metric.WithDescription("Number of events handled by operators"),
	); err != nil {
		return nil, err
	}
	if m.nodeLatency, err = meter.Float64Histogram("dataflow.node.latency_ms",
		metric.WithDescription("Operator latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.nodeErrors, err = meter.Int64Counter("dataflow.node.errors",
		metric.WithDescription("Number of operator failures"),
	); err != nil {
		return nil, err
	}
	if m.contraflow, err = meter.Int64Counter("dataflow.contraflow",
		metric.WithDescription("Contraflow signals handled per node and action"),
	); err != nil {
		return nil, err
	}
	if m.sinkOutcomes, err = meter.Int64Counter("dataflow.sink.outcomes",
		metric.WithDescription("Sink deliveries per outcome"),
	); err != nil {
		return nil, err
	}
	if m.cascades, err = meter.Int64Counter("dataflow.cascades",
		metric.WithDescription("Number of cascades"),
	); err != nil {
		return nil, err
	}
	if m.cascadeLatency, err = meter.Float64Histogram("dataflow.cascade.latency_ms",
		metric.WithDescription("Cascade latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.rejected, err = meter.Int64Counter("dataflow.push.rejected",
		metric.WithDescription("Pushes refused at an input"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordNodeEvent(ctx context.Context, nodeID, kind string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("node_id", nodeID),
		attribute.String("kind", kind),
	)
	m.nodeEvents.Add(ctx, 1, attrs)
	m.nodeLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	if err != nil {
		m.nodeErrors.Add(ctx, 1, attrs)
	}
}

func (m *otelMetrics) RecordContraflow(ctx context.Context, nodeID, action string) {
	m.contraflow.Add(ctx, 1, metric.WithAttributes(
		attribute.String("node_id", nodeID),
		attribute.String("action", action),
	))
}

func (m *otelMetrics) RecordSinkOutcome(ctx context.Context, output, outcome string) {
	m.sinkOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("output", output),
		attribute.String("outcome", outcome),
	))
}

func (m *otelMetrics) RecordCascade(ctx context.Context, kind string, duration time.Duration, abandoned bool) {
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("abandoned", abandoned),
	)
	m.cascades.Add(ctx, 1, attrs)
	m.cascadeLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}

func (m *otelMetrics) RecordRejected(ctx context.Context, input, reason string) {
	m.rejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("input", input),
		attribute.String("reason", reason),
	))
}
