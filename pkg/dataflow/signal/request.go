// Package signal injects control signals into running pipelines.
//
// An Injector owns two duties. It ticks: every interval it delivers a
// tick signal to each attached pipeline, which is what drives time based
// operators such as windows. And it queues: callers Send fire-and-forget
// Requests that are held in a Store until the next tick, or until Process
// is called, and are then delivered and marked processed or failed.
//
// Requests are useful when the sender must not block on the pipeline, for
// example an admin endpoint asking every pipeline to flush.
package signal

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/dataflow/pkg/dataflow/event"
	"github.com/randalmurphal/dataflow/pkg/dataflow/value"
)

// Status is the delivery state of a Request.
type Status string

// Request statuses.
const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusFailed    Status = "failed"
)

// Errors returned by stores and the injector.
var (
	ErrRequestNotFound = errors.New("signal request not found")
	ErrUnknownTarget   = errors.New("unknown signal target")
)

// Request is a queued signal addressed to one pipeline.
type Request struct {
	ID     string           `json:"id"`
	Kind   event.SignalKind `json:"kind"`
	Target string           `json:"target"`

	// Inputs restricts delivery to these pipeline inputs. Empty means all.
	Inputs []string `json:"inputs,omitempty"`

	// Payload is attached to the signal event as metadata.
	Payload map[string]any `json:"payload,omitempty"`

	Sender string `json:"sender,omitempty"`
	Status Status `json:"status"`

	SentAt      time.Time  `json:"sent_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// NewRequest creates a pending request for target.
func NewRequest(kind event.SignalKind, target string, payload map[string]any) *Request {
	return &Request{
		ID:      newID(),
		Kind:    kind,
		Target:  target,
		Payload: payload,
		Status:  StatusPending,
		SentAt:  time.Now(),
	}
}

func newID() string {
	return "sig-" + uuid.New().String()[:8]
}

// WithSender records who sent the request.
func (r *Request) WithSender(sender string) *Request {
	r.Sender = sender
	return r
}

// WithInputs restricts the request to the named inputs.
func (r *Request) WithInputs(inputs ...string) *Request {
	r.Inputs = inputs
	return r
}

// Clone returns a copy that shares nothing mutable with r.
func (r *Request) Clone() *Request {
	c := *r
	c.Inputs = slices.Clone(r.Inputs)
	c.Payload = maps.Clone(r.Payload)
	if r.ProcessedAt != nil {
		t := *r.ProcessedAt
		c.ProcessedAt = &t
	}
	return &c
}

// Event builds the signal event delivered for r. The payload becomes the
// event metadata together with the request id and sender.
func (r *Request) Event() (*event.Event, error) {
	meta := value.NewRecord(value.F("signal_id", value.String(r.ID)))
	if r.Sender != "" {
		meta.Set("sender", value.String(r.Sender))
	}
	for _, k := range slices.Sorted(maps.Keys(r.Payload)) {
		v, err := value.FromGo(r.Payload[k])
		if err != nil {
			return nil, fmt.Errorf("payload %q: %w", k, err)
		}
		meta.Set(k, v)
	}
	return event.NewSignal(r.Kind, event.WithMeta(meta)), nil
}

// Store persists requests between Send and delivery.
type Store interface {
	// Enqueue adds a request for delivery.
	Enqueue(ctx context.Context, req *Request) error

	// Dequeue returns the pending requests for target in send order.
	Dequeue(ctx context.Context, target string) ([]*Request, error)

	Get(ctx context.Context, id string) (*Request, error)
	MarkProcessed(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, err error) error

	// ListByTarget returns every request for target regardless of status.
	ListByTarget(ctx context.Context, target string) ([]*Request, error)

	// PendingTargets returns the targets with pending requests, sorted.
	PendingTargets(ctx context.Context) ([]string, error)

	Delete(ctx context.Context, id string) error
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu       sync.RWMutex
	requests map[string]*Request
	byTarget map[string][]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests: make(map[string]*Request),
		byTarget: make(map[string][]string),
	}
}

// Enqueue implements Store. Missing ids, timestamps and statuses are
// filled in on the caller's request.
func (s *MemoryStore) Enqueue(_ context.Context, req *Request) error {
	if req.ID == "" {
		req.ID = newID()
	}
	if req.SentAt.IsZero() {
		req.SentAt = time.Now()
	}
	if req.Status == "" {
		req.Status = StatusPending
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requests[req.ID]; !exists {
		s.byTarget[req.Target] = append(s.byTarget[req.Target], req.ID)
	}
	s.requests[req.ID] = req.Clone()
	return nil
}

// Dequeue implements Store.
func (s *MemoryStore) Dequeue(_ context.Context, target string) ([]*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []*Request
	for _, id := range s.byTarget[target] {
		if r := s.requests[id]; r != nil && r.Status == StatusPending {
			pending = append(pending, r.Clone())
		}
	}
	return pending, nil
}

// PendingTargets implements Store.
func (s *MemoryStore) PendingTargets(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var targets []string
	for target, ids := range s.byTarget {
		for _, id := range ids {
			if r := s.requests[id]; r != nil && r.Status == StatusPending {
				targets = append(targets, target)
				break
			}
		}
	}
	slices.Sort(targets)
	return targets, nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	return r.Clone(), nil
}

// MarkProcessed implements Store.
func (s *MemoryStore) MarkProcessed(_ context.Context, id string) error {
	return s.mark(id, StatusProcessed, nil)
}

// MarkFailed implements Store.
func (s *MemoryStore) MarkFailed(_ context.Context, id string, err error) error {
	return s.mark(id, StatusFailed, err)
}

func (s *MemoryStore) mark(id string, status Status, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return ErrRequestNotFound
	}
	now := time.Now()
	r.Status = status
	r.ProcessedAt = &now
	if err != nil {
		r.Error = err.Error()
	}
	return nil
}

// ListByTarget implements Store.
func (s *MemoryStore) ListByTarget(_ context.Context, target string) ([]*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byTarget[target]
	out := make([]*Request, 0, len(ids))
	for _, id := range ids {
		if r := s.requests[id]; r != nil {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return ErrRequestNotFound
	}
	s.byTarget[r.Target] = slices.DeleteFunc(s.byTarget[r.Target], func(x string) bool { return x == id })
	if len(s.byTarget[r.Target]) == 0 {
		delete(s.byTarget, r.Target)
	}
	delete(s.requests, id)
	return nil
}
