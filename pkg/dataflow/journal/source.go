package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/dataflow/pkg/dataflow"
	dferrors "github.com/randalmurphal/dataflow/pkg/dataflow/errors"
	"github.com/randalmurphal/dataflow/pkg/dataflow/event"
	"github.com/randalmurphal/dataflow/pkg/dataflow/value"
)

// Source feeds one origin into a pipeline input with guaranteed delivery.
//
// Every event is journalled before it is pushed and is marked
// transactional, so sinks acknowledge it and the ack travels back to the
// input. Acks retire entries from the journal; failures keep them for
// Redeliver. With several sinks one event can be acked by one sink and
// failed by another, so retired entries are only compacted once the push
// that carried them has returned, and a failure wins over an ack. Backpressure reaching the input is recorded and can be
// polled with Backpressured.
type Source struct {
	pipeline *dataflow.Pipeline
	input    string
	origin   string
	store    Store
	logger   *slog.Logger
	retry    dferrors.RetryConfig

	mu          sync.Mutex // serialises pushes so ids reach the pipeline in order
	nextID      uint64
	pressured   atomic.Bool
	unsubscribe func()
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) SourceOption {
	return func(s *Source) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRetry sets the retry policy for pushes that fail transiently.
// Default: dferrors.DefaultRetry.
func WithRetry(cfg dferrors.RetryConfig) SourceOption {
	return func(s *Source) {
		s.retry = cfg
	}
}

// NewSource attaches a journalled origin to the named input of p. Ids
// continue after the highest id the journal knows for origin.
func NewSource(p *dataflow.Pipeline, input, origin string, store Store, opts ...SourceOption) (*Source, error) {
	if p == nil || store == nil {
		return nil, errors.New("journal: pipeline and store are required")
	}
	if origin == "" {
		return nil, errors.New("journal: origin is required")
	}

	s := &Source{
		pipeline: p,
		input:    input,
		origin:   origin,
		store:    store,
		logger:   slog.Default(),
		retry:    dferrors.DefaultRetry,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("origin", origin), slog.String("input", input))

	last, err := store.Cursor(origin)
	if err != nil {
		return nil, fmt.Errorf("load cursor: %w", err)
	}
	pending, err := store.Pending(origin)
	if err != nil {
		return nil, fmt.Errorf("load pending: %w", err)
	}
	if n := len(pending); n > 0 && pending[n-1].ID > last {
		last = pending[n-1].ID
	}
	s.nextID = last + 1

	unsubscribe, err := p.Subscribe(input, s.HandleContraflow)
	if err != nil {
		return nil, err
	}
	s.unsubscribe = unsubscribe
	return s, nil
}

// Origin returns the origin name.
func (s *Source) Origin() string { return s.origin }

// Send journals payload as the next event of the origin and pushes it.
// The event stays in the journal until a sink acknowledges it. Returns the
// event id; on a push error the event remains journalled for Replay.
func (s *Source) Send(ctx context.Context, payload value.Value) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	ev := event.NewData(s.origin, id, payload,
		event.WithTransactional(true),
		event.WithIngestNs(uint64(time.Now().UnixNano())),
	)
	data, err := json.Marshal(ev)
	if err != nil {
		return 0, fmt.Errorf("encode event: %w", err)
	}
	if err := s.store.Append(s.origin, id, data); err != nil {
		return 0, fmt.Errorf("journal event %d: %w", id, err)
	}
	s.nextID++

	err = s.push(ctx, ev)
	s.compact(id)
	return id, err
}

// HandleContraflow applies contraflow reaching the input to the journal.
// It is registered with the pipeline by NewSource and runs inside the
// contraflow walk, so it never pushes.
func (s *Source) HandleContraflow(_ context.Context, _ string, ev *event.Event) {
	switch ev.Action() {
	case event.ActionBackpressure:
		if !s.pressured.Swap(true) {
			s.logger.Warn("backpressure", slog.Uint64("cursor", ev.Cursor()))
		}
		return
	case event.ActionRestore:
		if s.pressured.Swap(false) {
			s.logger.Info("restored", slog.Uint64("cursor", ev.Cursor()))
		}
		return
	}

	cause, ok := ev.Cause()
	if !ok || cause.Origin != s.origin {
		return
	}
	switch ev.Action() {
	case event.ActionAck:
		if _, err := s.store.Ack(s.origin, ev.Cursor()); err != nil {
			s.logger.Error("ack failed", slog.Uint64("cursor", ev.Cursor()), slog.Any("error", err))
		}
	case event.ActionFail:
		err := s.store.Fail(s.origin, ev.Cursor())
		switch {
		case errors.Is(err, ErrNotFound):
			s.logger.Warn("fail for compacted entry", slog.String("node", ev.Node()), slog.Uint64("cursor", ev.Cursor()))
		case err != nil:
			s.logger.Error("mark failed", slog.Uint64("cursor", ev.Cursor()), slog.Any("error", err))
		default:
			s.logger.Warn("delivery failed", slog.String("node", ev.Node()), slog.Uint64("cursor", ev.Cursor()))
		}
	}
}

// Backpressured reports whether backpressure reached the input and no
// restore has followed.
func (s *Source) Backpressured() bool {
	return s.pressured.Load()
}

// Replay pushes every journalled event of the origin again, with its
// original id, in id order. It is meant for recovery into a pipeline that
// has not yet seen the origin; ids below the last one pushed are rejected
// by the pipeline. Returns the number of events pushed.
func (s *Source) Replay(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, err := s.store.Pending(s.origin)
	if err != nil {
		return 0, err
	}
	for i, e := range pending {
		var ev event.Event
		if err := json.Unmarshal(e.Data, &ev); err != nil {
			return i, fmt.Errorf("decode entry %d: %w", e.ID, err)
		}
		if err := s.push(ctx, &ev); err != nil {
			return i, err
		}
		s.compact(e.ID)
	}
	return len(pending), nil
}

// Redeliver sends the payload of every failed entry again as a new event
// and drops the failed entry once the new one is journalled. Returns the
// number of events sent.
func (s *Source) Redeliver(ctx context.Context) (int, error) {
	pending, err := s.store.Pending(s.origin)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, e := range pending {
		if !e.Failed {
			continue
		}
		var ev event.Event
		if err := json.Unmarshal(e.Data, &ev); err != nil {
			return sent, fmt.Errorf("decode entry %d: %w", e.ID, err)
		}
		id, sendErr := s.Send(ctx, ev.Payload())
		if id != 0 {
			if err := s.store.Remove(s.origin, e.ID); err != nil {
				return sent, err
			}
			sent++
		}
		if sendErr != nil {
			return sent, sendErr
		}
	}
	return sent, nil
}

// Close detaches the source from the pipeline. The store is left open.
func (s *Source) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// compact drops the retired entries up to id. Every sink that saw those
// events inline has reported by now.
func (s *Source) compact(id uint64) {
	if _, err := s.store.Compact(s.origin, id); err != nil {
		s.logger.Error("compact journal", slog.Uint64("cursor", id), slog.Any("error", err))
	}
}

// push retries transient push failures such as deadline expiry.
func (s *Source) push(ctx context.Context, ev *event.Event) error {
	res := dferrors.WithRetryContext(ctx, s.retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.pipeline.Push(ctx, s.input, ev)
	})
	return res.Err
}
