package op

import (
	"log/slog"

	"github.com/randalmurphal/dataflow/pkg/dataflow"
	"github.com/randalmurphal/dataflow/pkg/dataflow/event"
	"github.com/randalmurphal/dataflow/pkg/dataflow/value"
)

// LogOp logs every event with the node's logger and forwards it.
type LogOp struct {
	level slog.Level
	msg   string
}

// Log returns a logging passthrough.
func Log(level slog.Level, msg string) *LogOp {
	if msg == "" {
		msg = "event"
	}
	return &LogOp{level: level, msg: msg}
}

// OnEvent implements dataflow.Operator.
func (l *LogOp) OnEvent(ctx dataflow.Context, port string, ev *event.Event) ([]dataflow.Output, error) {
	ctx.Logger().Log(ctx, l.level, l.msg,
		slog.String("port", port),
		slog.String("origin", ev.Origin()),
		slog.Uint64("id", ev.ID()),
		slog.String("payload", value.Format(ev.Payload())),
	)
	return []dataflow.Output{dataflow.Emit(dataflow.PortOut, ev)}, nil
}

// OnSignal implements dataflow.SignalHandler.
func (l *LogOp) OnSignal(ctx dataflow.Context, ev *event.Event) ([]dataflow.Output, error) {
	ctx.Logger().Log(ctx, l.level, "signal", slog.String("signal", string(ev.Signal())))
	return nil, nil
}
