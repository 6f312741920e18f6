package op_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/dataflow/pkg/dataflow"
	"github.com/randalmurphal/dataflow/pkg/dataflow/config"
	"github.com/randalmurphal/dataflow/pkg/dataflow/deploy"
	"github.com/randalmurphal/dataflow/pkg/dataflow/event"
	"github.com/randalmurphal/dataflow/pkg/dataflow/op"
	"github.com/randalmurphal/dataflow/pkg/dataflow/registry"
	"github.com/randalmurphal/dataflow/pkg/dataflow/value"
)

const ordersYAML = `
name: orders
inputs: [src]
outputs: [big, small]
nodes:
  - id: src
    kind: log
    config: {level: debug}
  - id: route
    kind: filter
    config:
      when: "total > ${LIMIT}"
      reject: low
  - id: big
    kind: passthrough
  - id: small
    kind: passthrough
links:
  - {from: src, to: route}
  - {from: route, to: big}
  - {from: route/low, to: small}
`

func TestRegister_BuildsPipeline(t *testing.T) {
	spec, err := config.ParseYAML([]byte(ordersYAML), config.WithEnv(map[string]string{"LIMIT": "100"}))
	require.NoError(t, err)

	p, err := deploy.Build(spec, op.Kinds(), dataflow.WithLogger(quietLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(context.Background()) })

	big := &recorder{outcome: dataflow.Accepted}
	small := &recorder{outcome: dataflow.Accepted}
	require.NoError(t, p.Connect("big", big))
	require.NoError(t, p.Connect("small", small))

	ctx := context.Background()
	for i, total := range []int{50, 150, 100, 400} {
		require.NoError(t, p.Push(ctx, "src", data("orders", uint64(i+1), map[string]any{"total": total})))
	}

	assert.Equal(t, []uint64{2, 4}, big.ids())
	assert.Equal(t, []uint64{1, 3}, small.ids())
}

func TestRegister_Kinds(t *testing.T) {
	k := op.Kinds()
	assert.Equal(t, []string{"backpressure", "filter", "log", "passthrough", "roundrobin", "split", "window"}, k.Names())
	assert.ErrorIs(t, op.Register(k), registry.ErrDuplicate)
}

func TestRegister_FactoryErrors(t *testing.T) {
	k := op.Kinds()
	tests := []struct {
		kind   string
		params map[string]any
	}{
		{"filter", nil},
		{"filter", map[string]any{"when": "a =="}},
		{"split", nil},
		{"roundrobin", map[string]any{"ports": []any{"a", "a"}}},
		{"window", nil},
		{"log", map[string]any{"level": "loud"}},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			_, err := k.New(tt.kind, "n", config.New(tt.params))
			assert.Error(t, err)
		})
	}

	for _, kind := range []string{"passthrough", "backpressure"} {
		_, err := k.New(kind, "n", config.New(nil))
		assert.NoError(t, err, kind)
	}
	w, err := k.New("window", "n", config.New(map[string]any{"size": 3, "every": "1s"}))
	require.NoError(t, err)
	assert.IsType(t, &op.WindowOp{}, w)
}

func TestRegisterFunc(t *testing.T) {
	k := deploy.NewKinds()
	require.NoError(t, op.RegisterFunc(k, "tag", func(id string, cfg config.Config) (op.Funcs, error) {
		label := cfg.String("label", "")
		if label == "" {
			return op.Funcs{}, errors.New("label required")
		}
		return op.Funcs{Event: func(_ dataflow.Context, _ string, ev *event.Event) ([]dataflow.Output, error) {
			return []dataflow.Output{dataflow.Emit("out", ev.WithMeta("label", value.String(label)))}, nil
		}}, nil
	}))

	_, err := k.New("tag", "n", config.New(map[string]any{"label": "x"}))
	require.NoError(t, err)
	_, err = k.New("tag", "n", config.New(nil))
	assert.EqualError(t, err, "label required")
}

func TestRegisterSink(t *testing.T) {
	k := deploy.NewKinds()
	rec := &recorder{outcome: dataflow.Accepted}
	require.NoError(t, op.RegisterSink(k, "memory", func(string, config.Config) (dataflow.Sink, error) {
		return rec, nil
	}))

	o, err := k.New("memory", "n", config.New(map[string]any{"forward": true}))
	require.NoError(t, err)
	outs, err := o.OnEvent(opContext(), "in", data("s", 4, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"out"}, ports(outs))
	assert.Equal(t, []uint64{4}, rec.ids())
}
