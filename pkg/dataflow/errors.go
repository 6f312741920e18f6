package dataflow

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for graph construction.
var (
	// ErrNoInputs indicates the graph declares no input nodes.
	ErrNoInputs = errors.New("no input nodes declared")

	// ErrNodeNotFound indicates a reference to a node that does not exist.
	ErrNodeNotFound = errors.New("node not found")

	// ErrInvalidNodeID indicates a node id that is empty or malformed.
	ErrInvalidNodeID = errors.New("invalid node id")

	// ErrInvalidPort indicates an edge uses a port the node does not declare.
	ErrInvalidPort = errors.New("invalid port")

	// ErrDuplicateEdge indicates the same edge was declared twice.
	ErrDuplicateEdge = errors.New("duplicate edge")

	// ErrCycle indicates the graph contains a cycle.
	ErrCycle = errors.New("cycle detected")

	// ErrInputHasIncoming indicates an input node is the target of an edge.
	ErrInputHasIncoming = errors.New("input node has incoming edges")

	// ErrOutputHasOutgoing indicates an output node is the source of an edge.
	ErrOutputHasOutgoing = errors.New("output node has outgoing edges")
)

// Sentinel errors for running pipelines.
var (
	// ErrNilContext indicates a nil context was passed.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrPipelineClosed indicates the pipeline has been torn down.
	ErrPipelineClosed = errors.New("pipeline closed")

	// ErrNotInput indicates a push to a node that is not an input.
	ErrNotInput = errors.New("node is not an input")

	// ErrNotOutput indicates a sink bound to a node that is not an output.
	ErrNotOutput = errors.New("node is not an output")

	// ErrInvalidKind indicates an event of the wrong kind for the operation.
	ErrInvalidKind = errors.New("invalid event kind")

	// ErrOutOfOrder indicates an event id lower than one already seen for its origin.
	ErrOutOfOrder = errors.New("event out of order")

	// ErrAbandoned indicates a cascade was abandoned during teardown.
	ErrAbandoned = errors.New("cascade abandoned")

	// ErrNodeReleased indicates an operator was invoked after teardown released it.
	ErrNodeReleased = errors.New("operator released")
)

// ConstructionError describes one reason a graph failed to compile.
// Exactly one of Node or Edge is set.
type ConstructionError struct {
	// Node is the node the problem concerns, if any.
	Node string
	// Edge is the edge the problem concerns, if any.
	Edge *Edge
	// Err is the underlying sentinel.
	Err error
}

// Error implements the error interface.
func (e *ConstructionError) Error() string {
	switch {
	case e.Edge != nil:
		return fmt.Sprintf("edge %s: %v", e.Edge, e.Err)
	case e.Node != "":
		return fmt.Sprintf("node %s: %v", e.Node, e.Err)
	default:
		return e.Err.Error()
	}
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ConstructionError) Unwrap() error {
	return e.Err
}

// CycleError reports a cycle found during construction.
type CycleError struct {
	// Path lists the nodes on the cycle. The first node is repeated at the end.
	Path []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected: %s", strings.Join(e.Path, " -> "))
}

// Unwrap returns ErrCycle for errors.Is support.
func (e *CycleError) Unwrap() error {
	return ErrCycle
}

// NodeError wraps an error with node context.
type NodeError struct {
	// NodeID is the node that failed.
	NodeID string
	// Op is the operator method that failed ("event", "signal", "terminate").
	Op string
	// Err is the underlying error from the operator.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %s: %v", e.NodeID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError captures a recovered operator panic with its stack trace.
type PanicError struct {
	// NodeID is the node that panicked.
	NodeID string
	// Value is the value passed to panic().
	Value any
	// Stack is the stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.Value)
}

// CancellationError reports a cascade stopped between node visits.
type CancellationError struct {
	// NodeID is the node that was about to run.
	NodeID string
	// Origin and ID identify the event being delivered.
	Origin string
	ID     uint64
	// Cause is context.Canceled, context.DeadlineExceeded or ErrAbandoned.
	Cause error
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	return fmt.Sprintf("cancelled before node %s (%s#%d): %v", e.NodeID, e.Origin, e.ID, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}

// OrderError reports an event that arrived behind its origin's stream.
type OrderError struct {
	Origin string
	// Last is the highest id already accepted for Origin.
	Last uint64
	// Got is the rejected id.
	Got uint64
}

// Error implements the error interface.
func (e *OrderError) Error() string {
	return fmt.Sprintf("origin %s: id %d after %d: %v", e.Origin, e.Got, e.Last, ErrOutOfOrder)
}

// Unwrap returns ErrOutOfOrder for errors.Is support.
func (e *OrderError) Unwrap() error {
	return ErrOutOfOrder
}
