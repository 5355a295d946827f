package cache

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_PutGet(t *testing.T) {
	c := New[string](10, time.Minute)

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Put("a", "alpha")
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "alpha", v)

	c.Put("a", "again")
	v, _ = c.Get("a")
	assert.Equal(t, "again", v)
	assert.Equal(t, 1, c.Stats().Entries)
}

func TestCache_LRUEviction(t *testing.T) {
	c := New[int](3, time.Minute)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)

	// Touch a so b becomes the oldest.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Put("d", 4)

	_, ok = c.Get("b")
	assert.False(t, ok)
	for _, k := range []string{"a", "c", "d"} {
		_, ok := c.Get(k)
		assert.True(t, ok, k)
	}
}

func TestCache_TTLExpiration(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New[int](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Put("k", 1)
	now = now.Add(59 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Zero(t, c.Stats().Entries)
}

func TestCache_NoTTL(t *testing.T) {
	now := time.Now()
	c := New[int](10, 0)
	c.now = func() time.Time { return now }

	c.Put("k", 1)
	now = now.Add(24 * time.Hour)
	_, ok := c.Get("k")
	assert.True(t, ok)
}

func TestCache_Invalidate(t *testing.T) {
	c := New[int](10, time.Minute)
	c.Put("view/1", 1)
	c.Put("view/2", 2)
	c.Put("noise/1", 3)

	c.Invalidate("view/")
	_, ok := c.Get("view/1")
	assert.False(t, ok)
	_, ok = c.Get("noise/1")
	assert.True(t, ok)

	c.Invalidate("")
	assert.Zero(t, c.Stats().Entries)
}

func TestCache_Stats(t *testing.T) {
	c := New[int](5, time.Minute)
	c.Put("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	s := c.Stats()
	assert.Equal(t, 1, s.Entries)
	assert.Equal(t, 5, s.MaxEntries)
	assert.Equal(t, int64(2), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.InDelta(t, 2.0/3.0, s.HitRate, 1e-9)
}

func TestCache_MinimumCapacity(t *testing.T) {
	c := New[int](0, time.Minute)
	c.Put("a", 1)
	c.Put("b", 2)
	assert.Equal(t, 1, c.Stats().Entries)
	_, ok := c.Get("b")
	assert.True(t, ok)
}

func TestCache_DoComputesOnce(t *testing.T) {
	c := New[int](10, time.Minute)
	var calls int

	v, cached, err := c.Do("k", func() (int, error) {
		calls++
		return 42, nil
	})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 42, v)

	v, cached, err = c.Do("k", func() (int, error) {
		calls++
		return 0, nil
	})
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)
}

func TestCache_DoErrorIsNotCached(t *testing.T) {
	c := New[int](10, time.Minute)
	boom := errors.New("boom")

	_, _, err := c.Do("k", func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)

	v, _, err := c.Do("k", func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestCache_DoCoalescesConcurrentCallers(t *testing.T) {
	c := New[string](10, time.Minute)
	var calls atomic.Int32
	release := make(chan struct{})

	const n = 16
	var wg sync.WaitGroup
	results := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _, err := c.Do("site", func() (string, error) {
				calls.Add(1)
				<-release
				return "result", nil
			})
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, "result", r)
	}
}

func TestCache_DoDistinctKeysRunSeparately(t *testing.T) {
	c := New[string](10, time.Minute)
	var calls atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i)
			v, _, err := c.Do(key, func() (string, error) {
				calls.Add(1)
				return key, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, key, v)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(4), calls.Load())
}
