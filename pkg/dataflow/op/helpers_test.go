package op_test

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/dataflow/pkg/dataflow"
	"github.com/randalmurphal/dataflow/pkg/dataflow/event"
	"github.com/randalmurphal/dataflow/pkg/dataflow/value"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func opContext() dataflow.Context {
	return dataflow.NewContext(context.Background(), "test", "node", quietLogger())
}

func data(origin string, id uint64, payload map[string]any) *event.Event {
	return event.NewData(origin, id, value.MustFromGo(payload))
}

func contra(action event.Action) *event.Event {
	return event.NewContraflow(action, "downstream", 1)
}

func ports(outs []dataflow.Output) []string {
	out := make([]string, len(outs))
	for i, o := range outs {
		out[i] = o.Port
	}
	return out
}

// recorder is a sink that records event ids and answers with a fixed outcome.
type recorder struct {
	mu      sync.Mutex
	outcome dataflow.Outcome
	got     []uint64
}

func (r *recorder) Deliver(_ context.Context, ev *event.Event) dataflow.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, ev.ID())
	return r.outcome
}

func (r *recorder) ids() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint64(nil), r.got...)
}

func compile(t *testing.T, g *dataflow.Graph) *dataflow.Pipeline {
	t.Helper()
	p, err := g.Compile(dataflow.WithPipelineID("test"), dataflow.WithLogger(quietLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p
}
