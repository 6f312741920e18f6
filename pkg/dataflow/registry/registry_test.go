package registry

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndGet(t *testing.T) {
	r := New[string, int]()

	r.Register("one", 1)
	r.Register("one", 11)

	v, ok := r.Get("one")
	assert.True(t, ok)
	assert.Equal(t, 11, v)

	v, ok = r.Get("two")
	assert.False(t, ok)
	assert.Equal(t, 0, v)
}

func TestAddRejectsDuplicate(t *testing.T) {
	r := New[string, string]()

	require.NoError(t, r.Add("window", "a"))
	err := r.Add("window", "b")
	assert.ErrorIs(t, err, ErrDuplicate)

	v, _ := r.Get("window")
	assert.Equal(t, "a", v)
}

func TestKeysSorted(t *testing.T) {
	r := New[string, int]()
	for _, k := range []string{"split", "filter", "window", "backpressure"} {
		r.Register(k, 0)
	}

	assert.Equal(t, []string{"backpressure", "filter", "split", "window"}, r.Keys())
	assert.Equal(t, 4, r.Len())

	r.Delete("filter")
	r.Delete("missing")
	assert.False(t, r.Has("filter"))
	assert.Equal(t, 3, r.Len())
}

func TestRangeOrderAndMutation(t *testing.T) {
	r := New[int, string]()
	r.Register(3, "c")
	r.Register(1, "a")
	r.Register(2, "b")

	var seen []int
	r.Range(func(k int, _ string) bool {
		seen = append(seen, k)
		r.Delete(k)
		return true
	})
	assert.Equal(t, []int{1, 2, 3}, seen)
	assert.Equal(t, 0, r.Len())

	r.Register(1, "a")
	r.Register(2, "b")
	count := 0
	r.Range(func(int, string) bool {
		count++
		return false
	})
	assert.Equal(t, 1, count)
}

func TestGetOrCreateConcurrent(t *testing.T) {
	r := New[string, *int]()
	var calls atomic.Int32

	var wg sync.WaitGroup
	results := make([]*int, 50)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.GetOrCreate("origin", func() *int {
				calls.Add(1)
				n := 0
				return &n
			})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, p := range results {
		assert.Same(t, results[0], p)
	}
}
