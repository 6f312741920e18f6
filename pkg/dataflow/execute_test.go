package dataflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/dataflow/pkg/dataflow/event"
	"github.com/randalmurphal/dataflow/pkg/dataflow/value"
)

func linear(t *testing.T, log *callLog) (*Pipeline, *collectSink) {
	t.Helper()
	p := mustCompile(t, NewGraph().
		AddNode("src", relay("src", log)).
		AddNode("mid", relay("mid", log)).
		AddNode("out", relay("out", log)).
		Connect("src", "mid").
		Connect("mid", "out").
		AddInput("src").
		AddOutput("out"))
	sink := &collectSink{}
	require.NoError(t, p.Connect("out", sink))
	return p, sink
}

func TestPush_Linear(t *testing.T) {
	log := &callLog{}
	p, sink := linear(t, log)

	require.NoError(t, p.Push(t.Context(), "src", data("orders", 1)))

	assert.Equal(t, []string{"src", "mid", "out"}, log.list())
	require.Len(t, sink.received(), 1)
	assert.Equal(t, value.Int(1), sink.received()[0].Payload())
}

func TestPush_Rejections(t *testing.T) {
	p, _ := linear(t, &callLog{})
	var nilCtx context.Context

	assert.ErrorIs(t, p.Push(nilCtx, "src", data("o", 1)), ErrNilContext)
	assert.ErrorIs(t, p.Push(t.Context(), "ghost", data("o", 1)), ErrNodeNotFound)
	assert.ErrorIs(t, p.Push(t.Context(), "mid", data("o", 1)), ErrNotInput)
	assert.ErrorIs(t, p.Push(t.Context(), "src", event.NewSignal(event.SignalTick)), ErrInvalidKind)
	assert.ErrorIs(t, p.Push(t.Context(), "src", nil), ErrInvalidKind)
}

func TestPush_OutOfOrder(t *testing.T) {
	p, sink := linear(t, &callLog{})
	ctx := t.Context()

	require.NoError(t, p.Push(ctx, "src", data("a", 5)))
	require.NoError(t, p.Push(ctx, "src", data("a", 5)), "equal ids are allowed")

	err := p.Push(ctx, "src", data("a", 3))
	var orderErr *OrderError
	require.True(t, errors.As(err, &orderErr))
	assert.Equal(t, uint64(5), orderErr.Last)
	assert.Equal(t, uint64(3), orderErr.Got)
	assert.ErrorIs(t, err, ErrOutOfOrder)

	// Other origins keep their own stream.
	require.NoError(t, p.Push(ctx, "src", data("b", 1)))
	assert.Equal(t, []uint64{5, 5, 1}, sink.ids())
}

// Deterministic fan-out: outputs go depth first along edges in declaration
// order, and the order is identical on every run.
func TestPush_FanOutOrder(t *testing.T) {
	build := func() (*callLog, *Pipeline) {
		log := &callLog{}
		split := &testOp{name: "split", log: log, out: []string{"a", "b"},
			onEvent: func(_ Context, _ string, ev *event.Event) ([]Output, error) {
				return []Output{Emit("a", ev), Emit("b", ev)}, nil
			}}
		p := mustCompile(t, NewGraph().
			AddNode("src", relay("src", log)).
			AddNode("split", split).
			AddNode("x", relay("x", log)).
			AddNode("x2", relay("x2", log)).
			AddNode("y", relay("y", log)).
			AddNode("z", relay("z", log)).
			Connect("src", "split").
			AddEdge("split", "a", "x", PortIn).
			AddEdge("split", "a", "y", PortIn).
			AddEdge("split", "b", "z", PortIn).
			Connect("x", "x2").
			AddInput("src").
			AddOutput("x2").
			AddOutput("y").
			AddOutput("z"))
		return log, p
	}

	want := []string{"src", "split", "x", "x2", "y", "z"}
	for range 5 {
		log, p := build()
		require.NoError(t, p.Push(t.Context(), "src", data("o", 1)))
		assert.Equal(t, want, log.list())
	}
}

// Per-origin ordering: a second event of the same origin waits for the
// first cascade to finish, even when it is pushed concurrently.
func TestPush_SameOriginSerialised(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	gate := &testOp{name: "gate", onEvent: func(_ Context, _ string, ev *event.Event) ([]Output, error) {
		if ev.ID() == 1 {
			close(entered)
			<-release
		}
		return []Output{Emit(PortOut, ev)}, nil
	}}
	p := mustCompile(t, NewGraph().
		AddNode("src", relay("src", nil)).
		AddNode("gate", gate).
		AddNode("out", relay("out", nil)).
		Connect("src", "gate").
		Connect("gate", "out").
		AddInput("src").
		AddOutput("out"))
	sink := &collectSink{}
	require.NoError(t, p.Connect("out", sink))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, p.Push(context.Background(), "src", data("a", 1)))
	}()
	<-entered

	second := make(chan struct{})
	go func() {
		defer wg.Done()
		assert.NoError(t, p.Push(context.Background(), "src", data("a", 2)))
		close(second)
	}()

	select {
	case <-second:
		t.Fatal("second event overtook the first")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	wg.Wait()

	assert.Equal(t, []uint64{1, 2}, sink.ids())
}

// Cross-origin independence: an origin blocked inside an operator does not
// hold up another origin on a disjoint path.
func TestPush_OriginsIndependent(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	slow := &testOp{name: "slow", onEvent: func(_ Context, _ string, ev *event.Event) ([]Output, error) {
		close(entered)
		<-release
		return []Output{Emit(PortOut, ev)}, nil
	}}
	p := mustCompile(t, NewGraph().
		AddNode("inA", relay("inA", nil)).
		AddNode("inB", relay("inB", nil)).
		AddNode("slow", slow).
		AddNode("fast", relay("fast", nil)).
		Connect("inA", "slow").
		Connect("inB", "fast").
		AddInput("inA").
		AddInput("inB").
		AddOutput("slow").
		AddOutput("fast"))
	fastSink := &collectSink{}
	require.NoError(t, p.Connect("fast", fastSink))

	done := make(chan error, 1)
	go func() { done <- p.Push(context.Background(), "inA", data("a", 1)) }()
	<-entered

	require.NoError(t, p.Push(t.Context(), "inB", data("b", 1)))
	assert.Equal(t, []uint64{1}, fastSink.ids())

	close(release)
	require.NoError(t, <-done)
}

func TestPush_ErrorRoutedToErrPort(t *testing.T) {
	failing := &testOp{name: "parse", onEvent: func(Context, string, *event.Event) ([]Output, error) {
		return nil, errors.New("bad input")
	}}
	p := mustCompile(t, NewGraph().
		AddNode("src", relay("src", nil)).
		AddNode("parse", failing).
		AddNode("ok", relay("ok", nil)).
		AddNode("errs", relay("errs", nil)).
		Connect("src", "parse").
		Connect("parse", "ok").
		AddEdge("parse", PortErr, "errs", PortIn).
		AddInput("src").
		AddOutput("ok").
		AddOutput("errs"))
	okSink, errSink := &collectSink{}, &collectSink{}
	require.NoError(t, p.Connect("ok", okSink))
	require.NoError(t, p.Connect("errs", errSink))

	require.NoError(t, p.Push(t.Context(), "src", data("o", 7)))

	assert.Empty(t, okSink.received())
	require.Len(t, errSink.received(), 1)
	ev := errSink.received()[0]
	assert.Equal(t, "o", ev.Origin())
	assert.Equal(t, uint64(7), ev.ID())

	rec, ok := ev.Payload().(*value.Record)
	require.True(t, ok)
	msg, _ := rec.Get("error")
	assert.Equal(t, value.String("node parse: event: bad input"), msg)
	node, _ := rec.Get("node")
	assert.Equal(t, value.String("parse"), node)
	port, _ := rec.Get("port")
	assert.Equal(t, value.String(PortIn), port)
}

func TestPush_ErrorWithoutRouteIsDropped(t *testing.T) {
	logger, entries := jsonLogger()
	failing := &testOp{name: "parse", onEvent: func(Context, string, *event.Event) ([]Output, error) {
		return nil, errors.New("bad input")
	}}
	p, err := NewGraph().
		AddNode("src", relay("src", nil)).
		AddNode("parse", failing).
		Connect("src", "parse").
		AddInput("src").
		AddOutput("parse").
		Compile(WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(context.Background()) })

	require.NoError(t, p.Push(t.Context(), "src", data("o", 1)))
	require.NoError(t, p.Push(t.Context(), "src", data("o", 2)), "the pipeline keeps running")

	var logged int
	for _, e := range entries() {
		if e["msg"] == "operator failed" {
			logged++
			assert.Equal(t, false, e["routed_to_err"])
		}
	}
	assert.Equal(t, 2, logged)
}

func TestPush_PanicRecovered(t *testing.T) {
	boom := &testOp{name: "boom", onEvent: func(Context, string, *event.Event) ([]Output, error) {
		panic("kaput")
	}}
	p := mustCompile(t, NewGraph().
		AddNode("boom", boom).
		AddNode("errs", relay("errs", nil)).
		AddEdge("boom", PortErr, "errs", PortIn).
		AddInput("boom").
		AddOutput("errs"))
	errSink := &collectSink{}
	require.NoError(t, p.Connect("errs", errSink))

	require.NoError(t, p.Push(t.Context(), "boom", data("o", 1)))

	require.Len(t, errSink.received(), 1)
	msg, ok := value.Lookup(errSink.received()[0].Payload(), "error")
	require.True(t, ok)
	assert.Equal(t, value.String("node boom panicked: kaput"), msg)
}

func TestPush_ErrSinkOnOutputNode(t *testing.T) {
	failing := &testOp{name: "out", onEvent: func(Context, string, *event.Event) ([]Output, error) {
		return nil, errors.New("nope")
	}}
	p := mustCompile(t, NewGraph().AddNode("out", failing).AddInput("out").AddOutput("out"))
	errSink := &collectSink{}
	require.NoError(t, p.ConnectPort("out", PortErr, errSink))

	require.NoError(t, p.Push(t.Context(), "out", data("o", 1)))
	assert.Len(t, errSink.received(), 1)
}

func TestPush_CancelledBetweenNodes(t *testing.T) {
	log := &callLog{}
	ctx, cancel := context.WithCancel(t.Context())
	cancelling := &testOp{name: "mid", log: log, onEvent: func(_ Context, _ string, ev *event.Event) ([]Output, error) {
		cancel()
		return []Output{Emit(PortOut, ev)}, nil
	}}
	p := mustCompile(t, NewGraph().
		AddNode("src", relay("src", log)).
		AddNode("mid", cancelling).
		AddNode("out", relay("out", log)).
		Connect("src", "mid").
		Connect("mid", "out").
		AddInput("src").
		AddOutput("out"))

	err := p.Push(ctx, "src", data("o", 3))

	var cancelled *CancellationError
	require.True(t, errors.As(err, &cancelled))
	assert.Equal(t, "out", cancelled.NodeID)
	assert.Equal(t, uint64(3), cancelled.ID)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"src", "mid"}, log.list())
}

func TestPush_OperatorContext(t *testing.T) {
	var gotPipeline, gotNode string
	op := &testOp{name: "a", onEvent: func(ctx Context, _ string, _ *event.Event) ([]Output, error) {
		gotPipeline, gotNode = ctx.PipelineID(), ctx.NodeID()
		assert.NotNil(t, ctx.Logger())
		return nil, nil
	}}
	p := mustCompile(t, NewGraph().AddNode("a", op).AddInput("a"))

	require.NoError(t, p.Push(t.Context(), "a", data("o", 1)))
	assert.Equal(t, "test", gotPipeline)
	assert.Equal(t, "a", gotNode)
}

func TestConnect_Validation(t *testing.T) {
	p, _ := linear(t, &callLog{})

	assert.ErrorIs(t, p.Connect("ghost", &collectSink{}), ErrNodeNotFound)
	assert.ErrorIs(t, p.Connect("mid", &collectSink{}), ErrNotOutput)
	assert.ErrorIs(t, p.ConnectPort("out", "side", &collectSink{}), ErrInvalidPort)
	assert.Error(t, p.Connect("out", nil))
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, Accepted, OutcomeOf(nil))
	assert.Equal(t, Backpressure, OutcomeOf(context.DeadlineExceeded))
	assert.Equal(t, Failed, OutcomeOf(errors.New("rejected")))
	assert.Equal(t, "backpressure", Backpressure.String())
}

func TestOutcomeContraflow(t *testing.T) {
	plain := data("o", 4)
	assert.Nil(t, OutcomeContraflow("out", plain, Accepted), "no ack without a transaction")

	cf := OutcomeContraflow("out", plain, Backpressure)
	require.NotNil(t, cf)
	assert.Equal(t, event.ActionBackpressure, cf.Action())
	assert.Equal(t, "out", cf.Node())
	assert.Equal(t, uint64(4), cf.Cursor())

	tx := event.NewData("o", 9, value.Null{}, event.WithTransactional(true))
	ack := OutcomeContraflow("out", tx, Accepted)
	require.NotNil(t, ack)
	assert.Equal(t, event.ActionAck, ack.Action())
	assert.True(t, ack.Transactional())
	cause, ok := ack.Cause()
	require.True(t, ok)
	assert.Equal(t, event.Cause{Origin: "o", ID: 9}, cause)

	assert.Equal(t, event.ActionFail, OutcomeContraflow("out", tx, Failed).Action())
}
