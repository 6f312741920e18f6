// Package journal provides guaranteed delivery for pipeline sources.
//
// A Source journals every event before pushing it into a pipeline and
// listens for the contraflow that comes back to its input node: acks
// remove journalled events, failures mark them for redelivery. Events still
// in the journal after a crash are replayed into the next pipeline.
package journal

import (
	"errors"
	"time"
)

// Store persists the in-flight events of each origin.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append journals an event. Returns ErrExists if origin/id is present.
	Append(origin string, id uint64, data []byte) error

	// Ack marks every unfailed entry of origin with id <= upTo as
	// acknowledged and advances the origin's cursor to upTo. Acknowledged
	// entries leave Pending but are kept until Compact, so a failure
	// reported later for the same id still finds them. Failed entries stay
	// until they are redelivered. Returns the number of entries marked.
	Ack(origin string, upTo uint64) (int, error)

	// Fail marks an entry for redelivery and counts the attempt, also
	// when it was acknowledged and not yet compacted.
	// Returns ErrNotFound if the entry does not exist.
	Fail(origin string, id uint64) error

	// Compact deletes the acknowledged entries of origin with id <= upTo.
	// Returns the number of entries deleted.
	Compact(origin string, upTo uint64) (int, error)

	// Remove deletes one entry. Returns nil if it does not exist.
	Remove(origin string, id uint64) error

	// Pending returns the entries of origin ordered by id.
	// Returns an empty slice (not error) if there are none.
	Pending(origin string) ([]Entry, error)

	// Cursor returns the highest id acknowledged for origin, 0 if none.
	Cursor(origin string) (uint64, error)

	// Origins returns every origin with entries or a cursor, sorted.
	Origins() ([]string, error)

	// Close releases any resources (connections, files).
	Close() error
}

// Entry is one journalled event.
type Entry struct {
	Origin   string
	ID       uint64
	Data     []byte
	Failed   bool
	Attempts int
	Appended time.Time
}

// Sentinel errors for journal operations.
var (
	// ErrNotFound indicates a journal entry doesn't exist.
	ErrNotFound = errors.New("journal entry not found")

	// ErrExists indicates an entry with the same origin and id was already appended.
	ErrExists = errors.New("journal entry exists")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("journal store closed")
)
