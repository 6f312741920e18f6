package dataflow_test

import (
	"context"
	"fmt"

	"github.com/randalmurphal/dataflow/pkg/dataflow"
	"github.com/randalmurphal/dataflow/pkg/dataflow/event"
	"github.com/randalmurphal/dataflow/pkg/dataflow/op"
	"github.com/randalmurphal/dataflow/pkg/dataflow/value"
)

func ExampleGraph() {
	split, err := op.Split("a", "b")
	if err != nil {
		fmt.Println(err)
		return
	}
	g := dataflow.NewGraph().
		AddNode("src", op.Passthrough()).
		AddNode("split", split).
		AddNode("a", op.Passthrough()).
		AddNode("b", op.Passthrough()).
		Connect("src", "split").
		AddEdge("split", "a", "a", dataflow.PortIn).
		AddEdge("split", "b", "b", dataflow.PortIn).
		AddInput("src").
		AddOutput("a").
		AddOutput("b")

	p, err := g.Compile(dataflow.WithPipelineID("example"))
	if err != nil {
		fmt.Println(err)
		return
	}
	defer func() { _ = p.Close(context.Background()) }()

	for _, out := range p.Outputs() {
		_ = p.Connect(out, dataflow.SinkFunc(func(_ context.Context, ev *event.Event) dataflow.Outcome {
			fmt.Printf("%s got %d\n", out, ev.ID())
			return dataflow.Accepted
		}))
	}
	_ = p.Push(context.Background(), "src", event.NewData("orders", 7, value.String("x")))

	// Output:
	// a got 7
	// b got 7
}
