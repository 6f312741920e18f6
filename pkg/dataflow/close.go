package dataflow

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/randalmurphal/dataflow/pkg/dataflow/event"
	"github.com/randalmurphal/dataflow/pkg/dataflow/observability"
)

// Close tears the pipeline down.
//
// Steps:
//  1. New pushes, signals and contraflow are rejected with ErrPipelineClosed
//  2. A drain signal is delivered to every input
//  3. In-flight cascades are awaited; if ctx ends first they are told to
//     abandon at their next node boundary
//  4. A shutdown signal is delivered to every input
//  5. Each operator's Terminate is called and the operator is released
//     under its node lock
//
// After Close returns no operator is invoked again. Calling Close twice
// returns ErrPipelineClosed.
func (p *Pipeline) Close(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	elapsed := observability.TimedOperation()

	p.lifecycle.Lock()
	if p.closed {
		p.lifecycle.Unlock()
		return ErrPipelineClosed
	}
	p.closed = true
	p.lifecycle.Unlock()

	var errs []error

	drain := event.NewSignal(event.SignalDrain)
	if err := p.signalAll(&cascade{ctx: ctx, stop: p.abandon}, p.inputs, drain); err != nil {
		errs = append(errs, fmt.Errorf("drain: %w", err))
	}

	abandoned := p.await(ctx)
	if abandoned {
		errs = append(errs, fmt.Errorf("%w: %w", ErrAbandoned, ctx.Err()))
	}

	shutdown := event.NewSignal(event.SignalShutdown)
	teardown := &cascade{ctx: context.WithoutCancel(ctx)}
	if err := p.signalAll(teardown, p.inputs, shutdown); err != nil {
		errs = append(errs, fmt.Errorf("shutdown: %w", err))
	}

	for _, n := range p.nodes {
		if err := p.release(teardown.ctx, n); err != nil {
			errs = append(errs, err)
		}
	}

	p.listenMu.Lock()
	clear(p.listeners)
	p.listening.Store(0)
	p.listenMu.Unlock()

	observability.LogPipelineClosed(p.cfg.logger, p.cfg.pipelineID, elapsed(), abandoned)
	return errors.Join(errs...)
}

// await waits for in-flight cascades. When ctx ends first the cascades are
// told to abandon and await keeps waiting for them to unwind. It reports
// whether abandonment happened.
func (p *Pipeline) await(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return false
	case <-ctx.Done():
		close(p.abandon)
		<-done
		return true
	}
}

// release terminates n's operator and detaches it from the node.
func (p *Pipeline) release(ctx context.Context, n *node) (err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	term := n.terminator
	n.op, n.signals, n.contra, n.terminator = nil, nil, nil, nil
	if term == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{NodeID: n.id, Value: r, Stack: string(debug.Stack())}
		}
	}()
	if terr := term.Terminate(p.contextFor(ctx, n)); terr != nil {
		return &NodeError{NodeID: n.id, Op: "terminate", Err: terr}
	}
	return nil
}
