package journal

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// MemoryStore is an in-memory journal for testing.
// Data is lost when the process exits.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]map[uint64]*record // origin -> id -> entry
	cursors map[string]uint64
	closed  bool
}

type record struct {
	Entry
	acked bool
}

// NewMemoryStore creates a new in-memory journal.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]map[uint64]*record),
		cursors: make(map[string]uint64),
	}
}

// Append implements Store.
func (m *MemoryStore) Append(origin string, id uint64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	if m.entries[origin] == nil {
		m.entries[origin] = make(map[uint64]*record)
	}
	if _, ok := m.entries[origin][id]; ok {
		return ErrExists
	}

	// Copy data to avoid retaining caller's slice
	m.entries[origin][id] = &record{Entry: Entry{
		Origin:   origin,
		ID:       id,
		Data:     slices.Clone(data),
		Appended: time.Now().UTC(),
	}}
	return nil
}

// Ack implements Store.
func (m *MemoryStore) Ack(origin string, upTo uint64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrStoreClosed
	}
	marked := 0
	for id, r := range m.entries[origin] {
		if id <= upTo && !r.Failed && !r.acked {
			r.acked = true
			marked++
		}
	}
	if upTo > m.cursors[origin] {
		m.cursors[origin] = upTo
	}
	return marked, nil
}

// Fail implements Store.
func (m *MemoryStore) Fail(origin string, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	r, ok := m.entries[origin][id]
	if !ok {
		return ErrNotFound
	}
	r.acked = false
	r.Failed = true
	r.Attempts++
	return nil
}

// Compact implements Store.
func (m *MemoryStore) Compact(origin string, upTo uint64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrStoreClosed
	}
	removed := 0
	for id, r := range m.entries[origin] {
		if id <= upTo && r.acked {
			delete(m.entries[origin], id)
			removed++
		}
	}
	return removed, nil
}

// Remove implements Store.
func (m *MemoryStore) Remove(origin string, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.entries[origin], id)
	return nil
}

// Pending implements Store.
func (m *MemoryStore) Pending(origin string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	byID := m.entries[origin]
	out := make([]Entry, 0, len(byID))
	for _, id := range slices.Sorted(maps.Keys(byID)) {
		r := byID[id]
		if r.acked {
			continue
		}
		e := r.Entry
		e.Data = slices.Clone(e.Data)
		out = append(out, e)
	}
	return out, nil
}

// Cursor implements Store.
func (m *MemoryStore) Cursor(origin string) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStoreClosed
	}
	return m.cursors[origin], nil
}

// Origins implements Store.
func (m *MemoryStore) Origins() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	seen := make(map[string]bool)
	for origin, byID := range m.entries {
		if len(byID) > 0 {
			seen[origin] = true
		}
	}
	for origin := range m.cursors {
		seen[origin] = true
	}
	return slices.Sorted(maps.Keys(seen)), nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.entries = nil
	m.cursors = nil
	return nil
}

// Len returns the number of unacknowledged entries across all origins.
// Useful for testing.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, byID := range m.entries {
		for _, r := range byID {
			if !r.acked {
				count++
			}
		}
	}
	return count
}
