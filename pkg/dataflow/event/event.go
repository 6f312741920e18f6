// Package event defines the events that travel through a dataflow pipeline.
//
// There are three kinds of event:
//   - Data events carry a payload from an origin stream and flow forward
//   - Signal events carry control instructions (tick, drain, shutdown)
//     and flow forward to every node reachable from the inputs
//   - Contraflow events carry feedback (ack, fail, backpressure, restore)
//     and flow backward along the reverse graph
//
// Events are immutable once created - any modification creates a new event.
package event

import (
	"fmt"

	"github.com/randalmurphal/dataflow/pkg/dataflow/value"
)

// InternalOrigin is the origin assigned to engine generated events.
const InternalOrigin = "internal"

// Kind is the event variant.
type Kind uint8

// Event kinds.
const (
	KindData Kind = iota + 1
	KindSignal
	KindContraflow
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindSignal:
		return "signal"
	case KindContraflow:
		return "contraflow"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// SignalKind names a control instruction. Tick, drain and shutdown are
// understood by the engine; any other non-empty name is a custom signal
// that operators may interpret.
type SignalKind string

// Engine signal kinds.
const (
	SignalTick     SignalKind = "tick"
	SignalDrain    SignalKind = "drain"
	SignalShutdown SignalKind = "shutdown"
)

// IsBuiltin reports whether s is one of the engine signal kinds.
func (s SignalKind) IsBuiltin() bool {
	return s == SignalTick || s == SignalDrain || s == SignalShutdown
}

// Action is the instruction carried by a contraflow event.
type Action uint8

// Contraflow actions.
const (
	ActionAck Action = iota + 1
	ActionFail
	ActionBackpressure
	ActionRestore
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionAck:
		return "ack"
	case ActionFail:
		return "fail"
	case ActionBackpressure:
		return "backpressure"
	case ActionRestore:
		return "restore"
	default:
		return fmt.Sprintf("action(%d)", uint8(a))
	}
}

// ParseAction converts an action name back to an Action.
func ParseAction(s string) (Action, error) {
	switch s {
	case "ack":
		return ActionAck, nil
	case "fail":
		return ActionFail, nil
	case "backpressure":
		return ActionBackpressure, nil
	case "restore":
		return ActionRestore, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
}

// Cause identifies the Data event that triggered a derived event.
type Cause struct {
	Origin string `json:"origin"`
	ID     uint64 `json:"id"`
}

// String formats the cause as origin#id.
func (c Cause) String() string {
	return fmt.Sprintf("%s#%d", c.Origin, c.ID)
}

// Event is a single unit flowing through a pipeline.
type Event struct {
	id            uint64
	origin        string
	kind          Kind
	payload       value.Value
	meta          *value.Record
	ingestNs      uint64
	transactional bool
	cause         *Cause

	// Signal only.
	signal SignalKind

	// Contraflow only.
	action Action
	node   string
	cursor uint64
}

// ID returns the per-origin sequence number.
func (e *Event) ID() uint64 { return e.id }

// Origin returns the stream the event belongs to.
func (e *Event) Origin() string { return e.origin }

// Kind returns the event variant.
func (e *Event) Kind() Kind { return e.kind }

// Payload returns the event payload. It is never nil; absent payloads are Null.
func (e *Event) Payload() value.Value { return e.payload }

// Meta returns the metadata record. It is never nil.
func (e *Event) Meta() *value.Record { return e.meta }

// IngestNs returns the ingest timestamp in nanoseconds.
func (e *Event) IngestNs() uint64 { return e.ingestNs }

// Transactional reports whether the origin expects acknowledgements.
func (e *Event) Transactional() bool { return e.transactional }

// Cause returns the triggering Data event, if any.
func (e *Event) Cause() (Cause, bool) {
	if e.cause == nil {
		return Cause{}, false
	}
	return *e.cause, true
}

// Signal returns the signal kind of a Signal event.
func (e *Event) Signal() SignalKind { return e.signal }

// Action returns the action of a Contraflow event.
func (e *Event) Action() Action { return e.action }

// Node returns the node that produced a Contraflow event.
func (e *Event) Node() string { return e.node }

// Cursor returns the id a Contraflow action applies to
// ("ack up to N", "fail at N").
func (e *Event) Cursor() uint64 { return e.cursor }

// IsData reports whether e is a Data event.
func (e *Event) IsData() bool { return e.kind == KindData }

// IsSignal reports whether e is a Signal event.
func (e *Event) IsSignal() bool { return e.kind == KindSignal }

// IsContraflow reports whether e is a Contraflow event.
func (e *Event) IsContraflow() bool { return e.kind == KindContraflow }

// String returns a short description for logs.
func (e *Event) String() string {
	switch e.kind {
	case KindSignal:
		return fmt.Sprintf("signal(%s)", e.signal)
	case KindContraflow:
		return fmt.Sprintf("contraflow(%s@%d from %s)", e.action, e.cursor, e.node)
	default:
		return fmt.Sprintf("data(%s#%d)", e.origin, e.id)
	}
}

// Option configures event creation.
type Option func(*Event)

// WithID sets the event id.
func WithID(id uint64) Option {
	return func(e *Event) {
		e.id = id
	}
}

// WithIngestNs sets the ingest timestamp.
func WithIngestNs(ns uint64) Option {
	return func(e *Event) {
		e.ingestNs = ns
	}
}

// WithMeta sets the metadata record.
func WithMeta(meta *value.Record) Option {
	return func(e *Event) {
		if meta != nil {
			e.meta = meta
		}
	}
}

// WithTransactional marks the event as belonging to a guaranteed delivery origin.
func WithTransactional(tx bool) Option {
	return func(e *Event) {
		e.transactional = tx
	}
}

// WithCause records the Data event that triggered this one.
func WithCause(origin string, id uint64) Option {
	return func(e *Event) {
		e.cause = &Cause{Origin: origin, ID: id}
	}
}

// NewData creates a Data event for origin with the given id and payload.
func NewData(origin string, id uint64, payload value.Value, opts ...Option) *Event {
	e := &Event{
		id:     id,
		origin: origin,
		kind:   KindData,
	}
	return finish(e, payload, opts)
}

// NewSignal creates a Signal event with the internal origin.
func NewSignal(kind SignalKind, opts ...Option) *Event {
	e := &Event{
		origin: InternalOrigin,
		kind:   KindSignal,
		signal: kind,
	}
	return finish(e, nil, opts)
}

// NewContraflow creates a Contraflow event produced by node. cursor is the
// id the action applies to.
func NewContraflow(action Action, node string, cursor uint64, opts ...Option) *Event {
	e := &Event{
		origin: InternalOrigin,
		kind:   KindContraflow,
		action: action,
		node:   node,
		cursor: cursor,
	}
	return finish(e, nil, opts)
}

func finish(e *Event, payload value.Value, opts []Option) *Event {
	if payload == nil {
		payload = value.Null{}
	}
	e.payload = payload
	for _, opt := range opts {
		opt(e)
	}
	if e.meta == nil {
		e.meta = value.NewRecord()
	}
	return e
}

// clone copies e. Payload and metadata values are shared; they are immutable.
func (e *Event) clone() *Event {
	out := *e
	if e.cause != nil {
		c := *e.cause
		out.cause = &c
	}
	return &out
}

// WithPayload returns a copy of e carrying payload.
func (e *Event) WithPayload(payload value.Value) *Event {
	out := e.clone()
	if payload == nil {
		payload = value.Null{}
	}
	out.payload = payload
	return out
}

// WithMeta returns a copy of e with key set in its metadata.
func (e *Event) WithMeta(key string, v value.Value) *Event {
	out := e.clone()
	out.meta = e.meta.With(key, v)
	return out
}

// WithCursor returns a copy of a Contraflow event with a new cursor.
func (e *Event) WithCursor(cursor uint64) *Event {
	out := e.clone()
	out.cursor = cursor
	return out
}

// WithAction returns a copy of a Contraflow event with a new action.
func (e *Event) WithAction(action Action) *Event {
	out := e.clone()
	out.action = action
	return out
}

// Derive returns a Data event in the same origin and id as e, carrying a new
// payload. Operators use it to emit results that keep ordering identity.
func (e *Event) Derive(payload value.Value) *Event {
	out := e.WithPayload(payload)
	out.kind = KindData
	return out
}
