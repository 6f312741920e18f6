package op

import (
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/randalmurphal/dataflow/pkg/dataflow"
	"github.com/randalmurphal/dataflow/pkg/dataflow/event"
	"github.com/randalmurphal/dataflow/pkg/dataflow/value"
)

// SignalFlush asks windowing operators to emit whatever they hold.
const SignalFlush event.SignalKind = "flush"

// MetaWindowCount is the metadata key holding the number of events in a
// window batch.
const MetaWindowCount = "window_count"

// WindowOp collects payloads into tumbling windows, one per origin.
//
// A window closes when it holds size events, or on a tick signal once it
// is at least every old. Drain and flush signals close every open window.
// The batch is emitted as an array payload derived from the last event in
// the window, so it keeps that event's origin and id.
type WindowOp struct {
	size  int
	every time.Duration
	now   func() time.Time
	open  map[string]*window
}

type window struct {
	started time.Time
	items   value.Array
	last    *event.Event
}

// WindowOption configures a WindowOp.
type WindowOption func(*WindowOp)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) WindowOption {
	return func(w *WindowOp) {
		w.now = now
	}
}

// Window returns a windowing operator. size bounds the number of events
// per window and every bounds its age; at least one must be positive.
func Window(size int, every time.Duration, opts ...WindowOption) (*WindowOp, error) {
	if size < 0 || every < 0 {
		return nil, errors.New("window: size and every cannot be negative")
	}
	if size == 0 && every == 0 {
		return nil, errors.New("window: size or every is required")
	}
	w := &WindowOp{
		size:  size,
		every: every,
		now:   time.Now,
		open:  make(map[string]*window),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// OnEvent implements dataflow.Operator.
func (w *WindowOp) OnEvent(_ dataflow.Context, _ string, ev *event.Event) ([]dataflow.Output, error) {
	win, ok := w.open[ev.Origin()]
	if !ok {
		win = &window{started: w.now()}
		w.open[ev.Origin()] = win
	}
	win.items = append(win.items, ev.Payload())
	win.last = ev

	if w.size > 0 && len(win.items) >= w.size {
		return []dataflow.Output{w.close(ev.Origin())}, nil
	}
	return nil, nil
}

// OnSignal implements dataflow.SignalHandler.
func (w *WindowOp) OnSignal(_ dataflow.Context, ev *event.Event) ([]dataflow.Output, error) {
	switch ev.Signal() {
	case event.SignalTick:
		if w.every == 0 {
			return nil, nil
		}
		now := w.now()
		return w.flush(func(win *window) bool { return now.Sub(win.started) >= w.every }), nil
	case event.SignalDrain, SignalFlush:
		return w.flush(func(*window) bool { return true }), nil
	default:
		return nil, nil
	}
}

// Pending returns the number of events held in open windows.
func (w *WindowOp) Pending() int {
	n := 0
	for _, win := range w.open {
		n += len(win.items)
	}
	return n
}

// flush closes the windows selected by due, in origin order.
func (w *WindowOp) flush(due func(*window) bool) []dataflow.Output {
	var outs []dataflow.Output
	for _, origin := range slices.Sorted(maps.Keys(w.open)) {
		if due(w.open[origin]) {
			outs = append(outs, w.close(origin))
		}
	}
	return outs
}

func (w *WindowOp) close(origin string) dataflow.Output {
	win := w.open[origin]
	delete(w.open, origin)
	ev := win.last.Derive(win.items).WithMeta(MetaWindowCount, value.Int(int64(len(win.items))))
	return dataflow.Emit(dataflow.PortOut, ev)
}
