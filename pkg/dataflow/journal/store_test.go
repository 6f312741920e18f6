package journal_test

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/dataflow/pkg/dataflow/journal"
)

// stores runs fn against every Store implementation.
func stores(t *testing.T, fn func(t *testing.T, s journal.Store)) {
	t.Run("memory", func(t *testing.T) {
		s := journal.NewMemoryStore()
		defer s.Close()
		fn(t, s)
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := journal.NewSQLiteStore(":memory:")
		require.NoError(t, err)
		defer s.Close()
		fn(t, s)
	})
}

func ids(entries []journal.Entry) []uint64 {
	out := make([]uint64, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestStore_AppendPending(t *testing.T) {
	stores(t, func(t *testing.T, s journal.Store) {
		require.NoError(t, s.Append("a", 3, []byte("three")))
		require.NoError(t, s.Append("a", 1, []byte("one")))
		require.NoError(t, s.Append("b", 1, []byte("other")))
		assert.ErrorIs(t, s.Append("a", 1, []byte("again")), journal.ErrExists)

		pending, err := s.Pending("a")
		require.NoError(t, err)
		assert.Equal(t, []uint64{1, 3}, ids(pending))
		assert.Equal(t, []byte("one"), pending[0].Data)
		assert.Equal(t, "a", pending[0].Origin)
		assert.False(t, pending[0].Failed)
		assert.False(t, pending[0].Appended.IsZero())

		empty, err := s.Pending("nobody")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}

func TestStore_AckKeepsFailed(t *testing.T) {
	stores(t, func(t *testing.T, s journal.Store) {
		for id := uint64(1); id <= 4; id++ {
			require.NoError(t, s.Append("a", id, []byte("x")))
		}
		require.NoError(t, s.Fail("a", 2))
		require.NoError(t, s.Fail("a", 2))
		assert.ErrorIs(t, s.Fail("a", 9), journal.ErrNotFound)

		removed, err := s.Ack("a", 3)
		require.NoError(t, err)
		assert.Equal(t, 2, removed)

		pending, err := s.Pending("a")
		require.NoError(t, err)
		assert.Equal(t, []uint64{2, 4}, ids(pending))
		assert.True(t, pending[0].Failed)
		assert.Equal(t, 2, pending[0].Attempts)

		cursor, err := s.Cursor("a")
		require.NoError(t, err)
		assert.Equal(t, uint64(3), cursor)

		// The cursor never moves backwards.
		_, err = s.Ack("a", 1)
		require.NoError(t, err)
		cursor, _ = s.Cursor("a")
		assert.Equal(t, uint64(3), cursor)

		require.NoError(t, s.Remove("a", 2))
		require.NoError(t, s.Remove("a", 2))
		pending, _ = s.Pending("a")
		assert.Equal(t, []uint64{4}, ids(pending))
	})
}

func TestStore_FailAfterAck(t *testing.T) {
	stores(t, func(t *testing.T, s journal.Store) {
		require.NoError(t, s.Append("a", 1, []byte("one")))
		require.NoError(t, s.Append("a", 2, []byte("two")))

		marked, err := s.Ack("a", 2)
		require.NoError(t, err)
		assert.Equal(t, 2, marked)
		pending, err := s.Pending("a")
		require.NoError(t, err)
		assert.Empty(t, pending)

		// A late failure reclaims the acknowledged entry.
		require.NoError(t, s.Fail("a", 1))
		pending, err = s.Pending("a")
		require.NoError(t, err)
		require.Equal(t, []uint64{1}, ids(pending))
		assert.True(t, pending[0].Failed)
		assert.Equal(t, []byte("one"), pending[0].Data)

		removed, err := s.Compact("a", 2)
		require.NoError(t, err)
		assert.Equal(t, 1, removed, "only the acknowledged entry goes")
		assert.ErrorIs(t, s.Fail("a", 2), journal.ErrNotFound)

		pending, err = s.Pending("a")
		require.NoError(t, err)
		assert.Equal(t, []uint64{1}, ids(pending))
	})
}

func TestStore_Origins(t *testing.T) {
	stores(t, func(t *testing.T, s journal.Store) {
		require.NoError(t, s.Append("b", 1, nil))
		_, err := s.Ack("a", 5)
		require.NoError(t, err)

		origins, err := s.Origins()
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, origins)

		cursor, err := s.Cursor("b")
		require.NoError(t, err)
		assert.Zero(t, cursor)
	})
}

func TestStore_Closed(t *testing.T) {
	stores(t, func(t *testing.T, s journal.Store) {
		require.NoError(t, s.Close())
		require.NoError(t, s.Close())

		assert.ErrorIs(t, s.Append("a", 1, nil), journal.ErrStoreClosed)
		_, err := s.Ack("a", 1)
		assert.ErrorIs(t, err, journal.ErrStoreClosed)
		assert.ErrorIs(t, s.Fail("a", 1), journal.ErrStoreClosed)
		assert.ErrorIs(t, s.Remove("a", 1), journal.ErrStoreClosed)
		_, err = s.Pending("a")
		assert.ErrorIs(t, err, journal.ErrStoreClosed)
		_, err = s.Cursor("a")
		assert.ErrorIs(t, err, journal.ErrStoreClosed)
		_, err = s.Origins()
		assert.ErrorIs(t, err, journal.ErrStoreClosed)
		_, err = s.Compact("a", 1)
		assert.ErrorIs(t, err, journal.ErrStoreClosed)
	})
}

func TestStore_Concurrent(t *testing.T) {
	stores(t, func(t *testing.T, s journal.Store) {
		const workers = 8
		const perWorker = 25

		var wg sync.WaitGroup
		wg.Add(workers)
		for w := 0; w < workers; w++ {
			go func(origin string) {
				defer wg.Done()
				for id := uint64(1); id <= perWorker; id++ {
					_ = s.Append(origin, id, []byte("x"))
					if id%5 == 0 {
						_, _ = s.Ack(origin, id)
					}
				}
			}(string(rune('a' + w)))
		}
		wg.Wait()

		origins, err := s.Origins()
		require.NoError(t, err)
		assert.Len(t, origins, workers)
		for _, origin := range origins {
			pending, err := s.Pending(origin)
			require.NoError(t, err)
			assert.Empty(t, pending, origin)
		}
	})
}

func TestSQLiteStore_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	s1, err := journal.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s1.Append("a", 1, []byte("kept")))
	require.NoError(t, s1.Append("a", 2, []byte("acked")))
	require.NoError(t, s1.Fail("a", 1))
	_, err = s1.Ack("a", 2)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := journal.NewSQLiteStore(path)
	require.NoError(t, err)
	defer s2.Close()

	pending, err := s2.Pending("a")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, []byte("kept"), pending[0].Data)
	assert.True(t, pending[0].Failed)

	cursor, err := s2.Cursor("a")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), cursor)
}

func TestSQLiteStore_InvalidPath(t *testing.T) {
	_, err := journal.NewSQLiteStore("/nonexistent/path/journal.db")
	assert.Error(t, err)
}

func TestMemoryStore_Len(t *testing.T) {
	s := journal.NewMemoryStore()
	require.NoError(t, s.Append("a", 1, nil))
	require.NoError(t, s.Append("b", 1, nil))
	assert.Equal(t, 2, s.Len())

	data := []byte("mutable")
	require.NoError(t, s.Append("c", 1, data))
	data[0] = 'X'
	pending, _ := s.Pending("c")
	assert.Equal(t, []byte("mutable"), pending[0].Data)
}
