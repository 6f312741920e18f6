package dataflow

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/randalmurphal/dataflow/pkg/dataflow/observability"
)

// config holds pipeline configuration set at Compile time.
type config struct {
	pipelineID string
	logger     *slog.Logger
	metrics    observability.MetricsRecorder
	spans      observability.SpanManager
	tracing    bool
}

func defaultConfig() config {
	return config{
		logger:  slog.Default(),
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
}

// Option configures a Pipeline.
type Option func(*config)

// WithPipelineID sets the pipeline id used in logs, spans and operator
// contexts. Default: a random UUID.
func WithPipelineID(id string) Option {
	return func(c *config) {
		c.pipelineID = id
	}
}

// WithLogger sets the logger. Operators receive it enriched with
// pipeline_id and node_id. A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics enables metrics recording.
//
// Example:
//
//	p, err := g.Compile(dataflow.WithMetrics(observability.NewMetricsRecorder()))
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *config) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing enables spans per cascade and per operator call.
func WithTracing(sm observability.SpanManager) Option {
	return func(c *config) {
		if sm != nil {
			c.spans = sm
			c.tracing = true
		}
	}
}

func (c *config) finish() {
	if c.pipelineID == "" {
		c.pipelineID = uuid.New().String()
	}
}
