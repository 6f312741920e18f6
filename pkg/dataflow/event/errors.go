package event

import "errors"

// Sentinel errors for event decoding.
var (
	// ErrUnknownAction is returned when a contraflow action name is not recognised.
	ErrUnknownAction = errors.New("unknown contraflow action")

	// ErrUnknownKind is returned when an encoded event has an unrecognised kind.
	ErrUnknownKind = errors.New("unknown event kind")
)
