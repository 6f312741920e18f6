package event

import (
	"encoding/json"
	"fmt"

	"github.com/randalmurphal/dataflow/pkg/dataflow/value"
)

type wireEvent struct {
	Kind          string          `json:"kind"`
	Origin        string          `json:"origin"`
	ID            uint64          `json:"id"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Meta          *value.Record   `json:"meta,omitempty"`
	IngestNs      uint64          `json:"ingest_ns,omitempty"`
	Transactional bool            `json:"transactional,omitempty"`
	Cause         *Cause          `json:"cause,omitempty"`
	Signal        SignalKind      `json:"signal,omitempty"`
	Action        string          `json:"action,omitempty"`
	Node          string          `json:"node,omitempty"`
	Cursor        uint64          `json:"cursor,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (e *Event) MarshalJSON() ([]byte, error) {
	payload, err := value.Marshal(e.payload)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", e, err)
	}
	w := wireEvent{
		Kind:          e.kind.String(),
		Origin:        e.origin,
		ID:            e.id,
		Payload:       payload,
		IngestNs:      e.ingestNs,
		Transactional: e.transactional,
		Cause:         e.cause,
		Signal:        e.signal,
		Node:          e.node,
		Cursor:        e.cursor,
	}
	if e.meta.Len() > 0 {
		w.Meta = e.meta
	}
	if e.kind == KindContraflow {
		w.Action = e.action.String()
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	out := Event{
		id:            w.ID,
		origin:        w.Origin,
		meta:          w.Meta,
		ingestNs:      w.IngestNs,
		transactional: w.Transactional,
		cause:         w.Cause,
		signal:        w.Signal,
		node:          w.Node,
		cursor:        w.Cursor,
	}
	switch w.Kind {
	case "data":
		out.kind = KindData
	case "signal":
		out.kind = KindSignal
	case "contraflow":
		out.kind = KindContraflow
		action, err := ParseAction(w.Action)
		if err != nil {
			return err
		}
		out.action = action
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, w.Kind)
	}

	out.payload = value.Null{}
	if len(w.Payload) > 0 {
		p, err := value.Parse(w.Payload)
		if err != nil {
			return err
		}
		out.payload = p
	}
	if out.meta == nil {
		out.meta = value.NewRecord()
	}
	*e = out
	return nil
}
