package op

import (
	"time"

	"github.com/randalmurphal/dataflow/pkg/dataflow"
	"github.com/randalmurphal/dataflow/pkg/dataflow/event"
)

// PortOverflow receives events diverted by a BackpressureOp.
const PortOverflow = "overflow"

// BackpressureOp forwards events on out until backpressure or a failure
// comes back through out. It then diverts events to overflow until a
// restore arrives or the timeout passes. A zero timeout diverts until
// restore. Contraflow always passes through to upstream nodes.
type BackpressureOp struct {
	timeout  time.Duration
	now      func() time.Time
	diverted bool
	until    time.Time
}

// BackpressureOption configures a BackpressureOp.
type BackpressureOption func(*BackpressureOp)

// WithBackpressureClock replaces time.Now, for tests.
func WithBackpressureClock(now func() time.Time) BackpressureOption {
	return func(b *BackpressureOp) {
		b.now = now
	}
}

// Backpressure returns a diverting operator.
func Backpressure(timeout time.Duration, opts ...BackpressureOption) *BackpressureOp {
	b := &BackpressureOp{timeout: timeout, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// OnEvent implements dataflow.Operator.
func (b *BackpressureOp) OnEvent(_ dataflow.Context, _ string, ev *event.Event) ([]dataflow.Output, error) {
	if b.Diverting() {
		return []dataflow.Output{dataflow.Emit(PortOverflow, ev)}, nil
	}
	return []dataflow.Output{dataflow.Emit(dataflow.PortOut, ev)}, nil
}

// OnContraflow implements dataflow.ContraflowHandler.
func (b *BackpressureOp) OnContraflow(ctx dataflow.Context, port string, ev *event.Event) *event.Event {
	switch ev.Action() {
	case event.ActionBackpressure, event.ActionFail:
		if port == dataflow.PortOut || port == "" {
			if !b.Diverting() {
				ctx.Logger().Info("diverting to overflow",
					"action", ev.Action().String(),
					"cursor", ev.Cursor(),
				)
			}
			b.diverted = true
			if b.timeout > 0 {
				b.until = b.now().Add(b.timeout)
			}
		}
	case event.ActionRestore:
		if b.diverted {
			ctx.Logger().Info("restored", "cursor", ev.Cursor())
		}
		b.diverted = false
	}
	return ev
}

// Diverting reports whether events currently go to overflow.
func (b *BackpressureOp) Diverting() bool {
	if b.diverted && b.timeout > 0 && !b.now().Before(b.until) {
		b.diverted = false
	}
	return b.diverted
}

// InputPorts implements dataflow.PortDeclarer.
func (b *BackpressureOp) InputPorts() []string { return []string{dataflow.PortIn} }

// OutputPorts implements dataflow.PortDeclarer.
func (b *BackpressureOp) OutputPorts() []string {
	return []string{dataflow.PortOut, PortOverflow}
}
