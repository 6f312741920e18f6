package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupMetricsTest installs a meter provider backed by a manual reader.
func setupMetricsTest(t *testing.T) *sdkmetric.ManualReader {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	original := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)

	t.Cleanup(func() {
		otel.SetMeterProvider(original)
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down meter provider: %v", err)
		}
	})
	return reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumFor returns the counter value for the datapoint carrying key=val.
func sumFor(t *testing.T, m *metricdata.Metrics, key, val string) int64 {
	t.Helper()
	require.NotNil(t, m)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "Expected Sum type")

	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == val {
			total += dp.Value
		}
	}
	return total
}

func TestNewMetricsRecorder(t *testing.T) {
	setupMetricsTest(t)

	recorder := NewMetricsRecorder()
	require.NotNil(t, recorder)
	_, isNoop := recorder.(NoopMetrics)
	assert.False(t, isNoop, "Expected real metrics recorder, got noop")
}

func TestRecordNodeEvent(t *testing.T) {
	reader := setupMetricsTest(t)
	m, err := newOtelMetrics()
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordNodeEvent(ctx, "split", "data", 2*time.Millisecond, nil)
	m.RecordNodeEvent(ctx, "split", "data", time.Millisecond, nil)
	m.RecordNodeEvent(ctx, "parse", "data", time.Millisecond, errors.New("bad"))

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(2), sumFor(t, findMetric(rm, "dataflow.node.events"), "node_id", "split"))
	assert.Equal(t, int64(1), sumFor(t, findMetric(rm, "dataflow.node.errors"), "node_id", "parse"))
	assert.Equal(t, int64(0), sumFor(t, findMetric(rm, "dataflow.node.errors"), "node_id", "split"))

	hist := findMetric(rm, "dataflow.node.latency_ms")
	require.NotNil(t, hist)
	_, ok := hist.Data.(metricdata.Histogram[float64])
	assert.True(t, ok, "Expected Histogram type")
}

func TestRecordContraflowAndSinks(t *testing.T) {
	reader := setupMetricsTest(t)
	m, err := newOtelMetrics()
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordContraflow(ctx, "source", "backpressure")
	m.RecordContraflow(ctx, "source", "ack")
	m.RecordSinkOutcome(ctx, "out", "failed")
	m.RecordRejected(ctx, "in", "out_of_order")
	m.RecordCascade(ctx, "data", time.Millisecond, true)

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(1), sumFor(t, findMetric(rm, "dataflow.contraflow"), "action", "backpressure"))
	assert.Equal(t, int64(2), sumFor(t, findMetric(rm, "dataflow.contraflow"), "node_id", "source"))
	assert.Equal(t, int64(1), sumFor(t, findMetric(rm, "dataflow.sink.outcomes"), "outcome", "failed"))
	assert.Equal(t, int64(1), sumFor(t, findMetric(rm, "dataflow.push.rejected"), "reason", "out_of_order"))
	assert.Equal(t, int64(1), sumFor(t, findMetric(rm, "dataflow.cascades"), "kind", "data"))
}

func TestNoopMetrics(t *testing.T) {
	var m MetricsRecorder = NoopMetrics{}
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordNodeEvent(ctx, "n", "data", time.Second, errors.New("x"))
		m.RecordContraflow(ctx, "n", "ack")
		m.RecordSinkOutcome(ctx, "o", "accepted")
		m.RecordCascade(ctx, "signal", time.Second, false)
		m.RecordRejected(ctx, "in", "closed")
	})
}
