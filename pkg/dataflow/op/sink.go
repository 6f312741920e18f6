package op

import (
	"context"
	"errors"
	"fmt"

	"github.com/randalmurphal/dataflow/pkg/dataflow"
	dferrors "github.com/randalmurphal/dataflow/pkg/dataflow/errors"
	"github.com/randalmurphal/dataflow/pkg/dataflow/event"
)

// SinkOp delivers events to a sink inside the graph. The outcome becomes
// contraflow emitted from the node: backpressure, fail, or ack for
// accepted transactional events.
type SinkOp struct {
	sink    dataflow.Sink
	forward bool
}

// SinkOption configures a SinkOp.
type SinkOption func(*SinkOp)

// WithForward also emits accepted events on out.
func WithForward() SinkOption {
	return func(s *SinkOp) {
		s.forward = true
	}
}

// Sink wraps s as an operator.
func Sink(s dataflow.Sink, opts ...SinkOption) (*SinkOp, error) {
	if s == nil {
		return nil, errors.New("sink: sink cannot be nil")
	}
	op := &SinkOp{sink: s}
	for _, opt := range opts {
		opt(op)
	}
	return op, nil
}

// RetrySink adapts fn into a sink that retries transient errors with cfg
// before reporting an outcome.
func RetrySink(fn func(ctx context.Context, ev *event.Event) error, cfg dferrors.RetryConfig) dataflow.Sink {
	return dataflow.SinkFunc(func(ctx context.Context, ev *event.Event) dataflow.Outcome {
		res := dferrors.WithRetryContext(ctx, cfg, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, fn(ctx, ev)
		})
		return dataflow.OutcomeOf(res.Err)
	})
}

// OnEvent implements dataflow.Operator.
func (s *SinkOp) OnEvent(ctx dataflow.Context, _ string, ev *event.Event) ([]dataflow.Output, error) {
	outcome := s.deliver(ctx, ev)

	var outs []dataflow.Output
	if cf := dataflow.OutcomeContraflow(ctx.NodeID(), ev, outcome); cf != nil {
		outs = append(outs, dataflow.Emit(dataflow.PortOut, cf))
	}
	if outcome == dataflow.Accepted && s.forward {
		outs = append(outs, dataflow.Emit(dataflow.PortOut, ev))
	}
	return outs, nil
}

func (s *SinkOp) deliver(ctx dataflow.Context, ev *event.Event) (outcome dataflow.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			ctx.Logger().Error("sink panicked", "panic", fmt.Sprint(r), "id", ev.ID())
			outcome = dataflow.Failed
		}
	}()
	return s.sink.Deliver(ctx, ev)
}

// Terminate implements dataflow.Terminator for sinks that hold resources.
func (s *SinkOp) Terminate(ctx context.Context) error {
	if t, ok := s.sink.(dataflow.Terminator); ok {
		return t.Terminate(ctx)
	}
	return nil
}
