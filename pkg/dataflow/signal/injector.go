package signal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/randalmurphal/dataflow/pkg/dataflow"
	"github.com/randalmurphal/dataflow/pkg/dataflow/event"
	"github.com/randalmurphal/dataflow/pkg/dataflow/registry"
)

// DefaultInterval is the tick period used when none is configured.
const DefaultInterval = time.Second

// Target receives signals. *dataflow.Pipeline satisfies it.
type Target interface {
	PipelineID() string
	Signal(ctx context.Context, ev *event.Event, inputs ...string) error
}

// Injector ticks attached targets and delivers queued requests to them.
type Injector struct {
	targets  *registry.Registry[string, Target]
	store    Store
	logger   *slog.Logger
	interval time.Duration
}

// Option configures an Injector.
type Option func(*Injector)

// WithStore sets the request store. The default is a MemoryStore.
func WithStore(s Store) Option {
	return func(i *Injector) { i.store = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(i *Injector) { i.logger = l }
}

// WithInterval sets the tick period used by Run. A zero interval
// disables ticking; queued requests are still processed on demand.
func WithInterval(d time.Duration) Option {
	return func(i *Injector) { i.interval = d }
}

// NewInjector creates an Injector with no targets.
func NewInjector(opts ...Option) *Injector {
	i := &Injector{
		targets:  registry.New[string, Target](),
		store:    NewMemoryStore(),
		logger:   slog.Default(),
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Attach adds t under its pipeline id.
func (i *Injector) Attach(t Target) error {
	if t == nil {
		return errors.New("signal: target is required")
	}
	id := t.PipelineID()
	if id == "" {
		return errors.New("signal: target has no pipeline id")
	}
	if err := i.targets.Add(id, t); err != nil {
		return fmt.Errorf("signal: attach %q: %w", id, err)
	}
	return nil
}

// Detach removes the target with the given id and reports whether it was
// attached. Its queued requests stay in the store.
func (i *Injector) Detach(id string) bool {
	if !i.targets.Has(id) {
		return false
	}
	i.targets.Delete(id)
	return true
}

// Targets returns the attached target ids in sorted order.
func (i *Injector) Targets() []string {
	return i.targets.Keys()
}

// Send queues req without waiting for delivery.
func (i *Injector) Send(ctx context.Context, req *Request) error {
	if req == nil {
		return errors.New("signal: request is required")
	}
	if req.Target == "" {
		return errors.New("signal: target is required")
	}
	if req.Kind == "" {
		return errors.New("signal: kind is required")
	}
	if err := i.store.Enqueue(ctx, req); err != nil {
		return fmt.Errorf("enqueue signal: %w", err)
	}

	i.logger.Debug("signal queued",
		"signal_id", req.ID,
		"signal_kind", req.Kind,
		"target", req.Target,
	)
	return nil
}

// Tick delivers one tick signal to every attached target. Targets that
// have been closed are detached. Other failures are joined.
func (i *Injector) Tick(ctx context.Context) error {
	var errs []error
	for _, id := range i.targets.Keys() {
		t, ok := i.targets.Get(id)
		if !ok {
			continue
		}
		err := t.Signal(ctx, event.NewSignal(event.SignalTick))
		switch {
		case err == nil:
		case errors.Is(err, dataflow.ErrPipelineClosed):
			i.logger.Info("detaching closed pipeline", "target", id)
			i.targets.Delete(id)
		default:
			errs = append(errs, fmt.Errorf("tick %q: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Process delivers the pending requests for target in send order. A
// request that cannot be delivered is marked failed and processing moves
// on; only a store failure is returned.
func (i *Injector) Process(ctx context.Context, target string) error {
	pending, err := i.store.Dequeue(ctx, target)
	if err != nil {
		return fmt.Errorf("dequeue signals: %w", err)
	}

	for _, req := range pending {
		if err := i.deliver(ctx, req); err != nil {
			i.logger.Error("signal delivery failed",
				"signal_id", req.ID,
				"signal_kind", req.Kind,
				"target", target,
				"error", err,
			)
			i.mark(ctx, req, err)
			continue
		}
		i.mark(ctx, req, nil)
		i.logger.Debug("signal delivered",
			"signal_id", req.ID,
			"signal_kind", req.Kind,
			"target", target,
		)
	}
	return nil
}

// ProcessAll runs Process for every attached target and for every target
// the store holds pending requests for. Requests for targets that are not
// attached are marked failed with ErrUnknownTarget.
func (i *Injector) ProcessAll(ctx context.Context) error {
	queued, err := i.store.PendingTargets(ctx)
	if err != nil {
		return fmt.Errorf("list signal targets: %w", err)
	}
	targets := append(i.targets.Keys(), queued...)
	slices.Sort(targets)

	var errs []error
	for _, id := range slices.Compact(targets) {
		errs = append(errs, i.Process(ctx, id))
	}
	return errors.Join(errs...)
}

// Run ticks every interval and processes queued requests after each tick
// until ctx is done. It returns ctx.Err().
func (i *Injector) Run(ctx context.Context) error {
	if i.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(i.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := i.Tick(ctx); err != nil {
				i.logger.Warn("tick failed", "error", err)
			}
			if err := i.ProcessAll(ctx); err != nil {
				i.logger.Error("processing signals failed", "error", err)
			}
		}
	}
}

func (i *Injector) deliver(ctx context.Context, req *Request) error {
	t, ok := i.targets.Get(req.Target)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTarget, req.Target)
	}
	ev, err := req.Event()
	if err != nil {
		return err
	}
	return t.Signal(ctx, ev, req.Inputs...)
}

func (i *Injector) mark(ctx context.Context, req *Request, cause error) {
	var err error
	if cause != nil {
		err = i.store.MarkFailed(ctx, req.ID, cause)
	} else {
		err = i.store.MarkProcessed(ctx, req.ID)
	}
	if err != nil {
		i.logger.Error("failed to mark signal", "signal_id", req.ID, "error", err)
	}
}
