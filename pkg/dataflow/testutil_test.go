package dataflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/dataflow/pkg/dataflow/event"
	"github.com/randalmurphal/dataflow/pkg/dataflow/value"
)

// callLog records operator invocations across nodes in call order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// testOp is a configurable operator. By default it logs its name and
// forwards the event on out.
type testOp struct {
	name    string
	log     *callLog
	in, out []string
	onEvent func(ctx Context, port string, ev *event.Event) ([]Output, error)

	mu         sync.Mutex
	terminated int
	termErr    error
}

func (o *testOp) OnEvent(ctx Context, port string, ev *event.Event) ([]Output, error) {
	if o.log != nil {
		o.log.add("%s", o.name)
	}
	if o.onEvent != nil {
		return o.onEvent(ctx, port, ev)
	}
	return []Output{Emit(PortOut, ev)}, nil
}

func (o *testOp) InputPorts() []string {
	if o.in == nil {
		return []string{PortIn}
	}
	return o.in
}

func (o *testOp) OutputPorts() []string {
	if o.out == nil {
		return []string{PortOut}
	}
	return o.out
}

func (o *testOp) Terminate(context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.terminated++
	return o.termErr
}

func (o *testOp) terminations() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.terminated
}

// contraOp adds a contraflow handler to testOp. Handler calls are logged
// to log as "name^action:port".
type contraOp struct {
	*testOp
	log      *callLog
	onContra func(port string, ev *event.Event) *event.Event
}

func (o *contraOp) OnContraflow(_ Context, port string, ev *event.Event) *event.Event {
	o.log.add("%s^%s:%s", o.name, ev.Action(), port)
	if o.onContra != nil {
		return o.onContra(port, ev)
	}
	return ev
}

// signalOp adds a signal handler to testOp. Handler calls are logged to
// log as "name!kind".
type signalOp struct {
	*testOp
	log      *callLog
	onSignal func(ev *event.Event) ([]Output, error)
}

func (o *signalOp) OnSignal(_ Context, ev *event.Event) ([]Output, error) {
	o.log.add("%s!%s", o.name, ev.Signal())
	if o.onSignal != nil {
		return o.onSignal(ev)
	}
	return nil, nil
}

func relay(name string, log *callLog) *testOp {
	return &testOp{name: name, log: log}
}

func handler(name string, log *callLog) *contraOp {
	return &contraOp{testOp: relay(name, nil), log: log}
}

func signaller(name string, log *callLog) *signalOp {
	return &signalOp{testOp: relay(name, nil), log: log}
}

// collectSink records delivered events and answers with a fixed outcome.
type collectSink struct {
	mu      sync.Mutex
	events  []*event.Event
	outcome Outcome
}

func (s *collectSink) Deliver(_ context.Context, ev *event.Event) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.outcome
}

func (s *collectSink) received() []*event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*event.Event(nil), s.events...)
}

func (s *collectSink) ids() []uint64 {
	var ids []uint64
	for _, ev := range s.received() {
		ids = append(ids, ev.ID())
	}
	return ids
}

func data(origin string, id uint64) *event.Event {
	return event.NewData(origin, id, value.Int(int64(id)))
}

func mustCompile(t *testing.T, g *Graph, opts ...Option) *Pipeline {
	t.Helper()
	p, err := g.Compile(append([]Option{WithPipelineID("test"), WithLogger(discardLogger())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// jsonLogger returns a logger writing JSON lines and a function decoding them.
func jsonLogger() (*slog.Logger, func() []map[string]any) {
	var mu sync.Mutex
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&lockedWriter{mu: &mu, w: &buf}, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, func() []map[string]any {
		mu.Lock()
		defer mu.Unlock()
		var out []map[string]any
		dec := json.NewDecoder(bytes.NewReader(buf.Bytes()))
		for dec.More() {
			var m map[string]any
			if err := dec.Decode(&m); err != nil {
				break
			}
			out = append(out, m)
		}
		return out
	}
}

type lockedWriter struct {
	mu *sync.Mutex
	w  *bytes.Buffer
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}
