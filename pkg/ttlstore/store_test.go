package ttlstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T, clock *fakeClock, opts ...Option) *Store[string] {
	t.Helper()
	opts = append([]Option{WithClock(clock.Now), WithSweepInterval(0)}, opts...)
	s := New[string](context.Background(), opts...)
	t.Cleanup(s.Close)
	return s
}

func TestStore_SetGet(t *testing.T) {
	s := newTestStore(t, newFakeClock())

	s.Set("a", "1", 0)
	v, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", v)

	_, ok = s.Get("missing")
	assert.False(t, ok)

	stats := s.Stats()
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
}

func TestStore_ExpiresAfterTTL(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, clock)

	s.Set("k", "v", time.Second)
	clock.Advance(999 * time.Millisecond)
	_, ok := s.Get("k")
	require.True(t, ok, "entry must be visible strictly before expiry")

	clock.Advance(time.Millisecond)
	_, ok = s.Get("k")
	assert.False(t, ok, "entry must be gone once expiresAt is reached")
	assert.Equal(t, 0, s.Len(), "expired entry is purged on access")
}

func TestStore_OverwriteRefreshesExpiry(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, clock)

	s.Set("k", "old", time.Second)
	clock.Advance(800 * time.Millisecond)
	s.Set("k", "new", time.Second)
	clock.Advance(800 * time.Millisecond)

	v, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, "new", v)
}

// Eviction picks the entry nearest to expiry, not the least recently used one.
// "hot" is read repeatedly but still goes first because it expires first.
func TestStore_CapacityEvictsNearestExpiry(t *testing.T) {
	clock := newFakeClock()
	var evicted []string
	s := newTestStore(t, clock, WithMaxEntries(3), WithOnEvict(func(key string, reason EvictReason) {
		if reason == ReasonCapacity {
			evicted = append(evicted, key)
		}
	}))

	s.Set("hot", "1", 10*time.Second)
	s.Set("b", "2", 30*time.Second)
	s.Set("c", "3", 20*time.Second)
	for i := 0; i < 5; i++ {
		_, ok := s.Get("hot")
		require.True(t, ok)
	}

	s.Set("d", "4", 40*time.Second)

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []string{"hot"}, evicted)
	_, ok := s.Get("hot")
	assert.False(t, ok)
	for _, k := range []string{"b", "c", "d"} {
		_, ok := s.Get(k)
		assert.True(t, ok, k)
	}
	assert.EqualValues(t, 1, s.Stats().Evictions)
}

func TestStore_CapacityPlusOneKeys(t *testing.T) {
	clock := newFakeClock()
	const capacity = 10
	s := newTestStore(t, clock, WithMaxEntries(capacity))

	for i := 0; i <= capacity; i++ {
		// key-0 gets the shortest TTL
		s.Set(fmt.Sprintf("key-%d", i), "v", time.Duration(i+1)*time.Second)
	}

	assert.Equal(t, capacity, s.Len())
	_, ok := s.Get("key-0")
	assert.False(t, ok)
	_, ok = s.Get(fmt.Sprintf("key-%d", capacity))
	assert.True(t, ok)
}

func TestStore_OverwriteAtCapacityDoesNotEvict(t *testing.T) {
	s := newTestStore(t, newFakeClock(), WithMaxEntries(2))
	s.Set("a", "1", time.Second)
	s.Set("b", "2", time.Minute)
	s.Set("a", "3", time.Second)

	assert.Equal(t, 2, s.Len())
	assert.EqualValues(t, 0, s.Stats().Evictions)
}

func TestStore_EqualExpiryEvictsOlderWrite(t *testing.T) {
	s := newTestStore(t, newFakeClock(), WithMaxEntries(2))
	s.Set("first", "1", time.Minute)
	s.Set("second", "2", time.Minute)
	s.Set("third", "3", time.Minute)

	_, ok := s.Get("first")
	assert.False(t, ok)
	_, ok = s.Get("second")
	assert.True(t, ok)
}

func TestStore_MGetMSet(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, clock)

	s.MSet([]Entry[string]{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}, time.Second)
	s.Set("c", "3", time.Hour)

	got := s.MGet([]string{"a", "b", "c", "missing"})
	assert.Equal(t, map[string]string{"a": "1", "b": "2", "c": "3"}, got)

	clock.Advance(2 * time.Second)
	got = s.MGet([]string{"a", "b", "c"})
	assert.Equal(t, map[string]string{"c": "3"}, got)
}

func TestStore_FlushAndDelete(t *testing.T) {
	s := newTestStore(t, newFakeClock())
	s.Set("a", "1", 0)
	s.Set("b", "2", 0)

	assert.True(t, s.Delete("a"))
	assert.False(t, s.Delete("a"))

	s.Flush()
	assert.Equal(t, 0, s.Len())
	_, ok := s.Get("b")
	assert.False(t, ok)

	// Store stays usable after a flush.
	s.Set("c", "3", 0)
	_, ok = s.Get("c")
	assert.True(t, ok)
}

func TestStore_SweepRemovesExpired(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, clock)
	s.Set("short", "1", time.Second)
	s.Set("long", "2", time.Hour)

	clock.Advance(time.Minute)
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 1, s.Len())
	assert.EqualValues(t, 1, s.Stats().Expirations)
}

func TestStore_BackgroundSweep(t *testing.T) {
	s := New[string](context.Background(), WithSweepInterval(10*time.Millisecond))
	defer s.Close()

	s.Set("k", "v", 5*time.Millisecond)
	assert.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := New[int](context.Background(), WithMaxEntries(50), WithSweepInterval(time.Millisecond))
	defer s.Close()

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("k-%d", (g*7+i)%120)
				s.Set(key, i, time.Duration(i%5+1)*time.Millisecond)
				s.Get(key)
				if i%50 == 0 {
					s.MGet([]string{key, "k-1", "k-2"})
				}
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, s.Len(), 50)
}

func TestStore_CloseIdempotent(t *testing.T) {
	s := New[string](context.Background())
	s.Close()
	s.Close()
}

func TestStore_RangeSkipsExpired(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, clock)
	s.Set("short", "1", time.Second)
	s.Set("long", "2", time.Hour)
	clock.Advance(time.Minute)

	seen := map[string]string{}
	s.Range(func(k, v string) bool {
		seen[k] = v
		return true
	})
	assert.Equal(t, map[string]string{"long": "2"}, seen)
}
