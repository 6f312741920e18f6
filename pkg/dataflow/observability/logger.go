// Package observability provides structured logging, metrics and tracing
// for dataflow pipelines.
//
// Features:
//   - Structured logging via slog
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
// Every Log helper accepts a nil logger and does nothing in that case.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds pipeline and node context to a logger.
//
// Example:
//
//	enriched := EnrichLogger(logger, "pipe-1", "window")
//	enriched.Info("flushing") // includes pipeline_id and node_id
func EnrichLogger(logger *slog.Logger, pipelineID, nodeID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("pipeline_id", pipelineID),
		slog.String("node_id", nodeID),
	)
}

// LogPipelineCompiled logs a successful construction.
func LogPipelineCompiled(logger *slog.Logger, pipelineID string, nodes, edges int) {
	if logger == nil {
		return
	}
	logger.Info("pipeline compiled",
		slog.String("pipeline_id", pipelineID),
		slog.Int("nodes", nodes),
		slog.Int("edges", edges),
	)
}

// LogUnreachable warns about a node no input can reach.
func LogUnreachable(logger *slog.Logger, nodeID string) {
	if logger == nil {
		return
	}
	logger.Warn("node unreachable from any input",
		slog.String("node_id", nodeID),
	)
}

// LogPipelineClosed logs teardown completion.
func LogPipelineClosed(logger *slog.Logger, pipelineID string, durationMs float64, abandoned bool) {
	if logger == nil {
		return
	}
	logger.Info("pipeline closed",
		slog.String("pipeline_id", pipelineID),
		slog.Float64("duration_ms", durationMs),
		slog.Bool("abandoned", abandoned),
	)
}

// LogNodeError logs an operator failure. The event continues on the err
// port when one is wired, otherwise it is dropped.
func LogNodeError(logger *slog.Logger, nodeID, origin string, id uint64, err error, routed bool) {
	if logger == nil {
		return
	}
	logger.Error("operator failed",
		slog.String("node_id", nodeID),
		slog.String("origin", origin),
		slog.Uint64("event_id", id),
		slog.String("error", err.Error()),
		slog.Bool("routed_to_err", routed),
	)
}

// LogContraflow logs a contraflow signal being handled by a node.
func LogContraflow(logger *slog.Logger, nodeID, action string, cursor uint64) {
	if logger == nil {
		return
	}
	logger.Debug("contraflow",
		slog.String("node_id", nodeID),
		slog.String("action", action),
		slog.Uint64("cursor", cursor),
	)
}

// LogSinkOutcome logs a non-accepted sink delivery.
func LogSinkOutcome(logger *slog.Logger, output, outcome string, id uint64) {
	if logger == nil {
		return
	}
	logger.Debug("sink outcome",
		slog.String("output", output),
		slog.String("outcome", outcome),
		slog.Uint64("event_id", id),
	)
}

// LogCascadeAbandoned logs a cascade stopped by context cancellation.
func LogCascadeAbandoned(logger *slog.Logger, origin string, id uint64, nodeID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("cascade abandoned",
		slog.String("origin", origin),
		slog.Uint64("event_id", id),
		slog.String("next_node", nodeID),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// The returned function reports the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
