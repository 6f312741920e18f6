package dataflow

import (
	"context"
	"log/slog"
)

// Context is passed to every operator call.
// It extends context.Context with the pipeline and node identity and a
// logger enriched with both.
type Context interface {
	context.Context

	// Logger returns a logger carrying pipeline_id and node_id.
	// Never returns nil.
	Logger() *slog.Logger

	// PipelineID returns the id of the running pipeline.
	PipelineID() string

	// NodeID returns the node being invoked.
	NodeID() string
}

type nodeContext struct {
	context.Context

	logger     *slog.Logger
	pipelineID string
	nodeID     string
}

func (c *nodeContext) Logger() *slog.Logger { return c.logger }
func (c *nodeContext) PipelineID() string   { return c.pipelineID }
func (c *nodeContext) NodeID() string       { return c.nodeID }

// NewContext builds a Context outside a pipeline, for calling operators
// directly in tests or adapters.
func NewContext(ctx context.Context, pipelineID, nodeID string, logger *slog.Logger) Context {
	if logger == nil {
		logger = slog.Default()
	}
	return &nodeContext{
		Context:    ctx,
		logger:     logger.With(slog.String("pipeline_id", pipelineID), slog.String("node_id", nodeID)),
		pipelineID: pipelineID,
		nodeID:     nodeID,
	}
}
