// Package ttlstore implements a bounded in-memory key/value store with per-entry
// expiration.
//
// Entries are purged lazily on access and by a periodic sweep. When the store
// is full, inserting a new key evicts the entry closest to expiring. Access
// recency is not tracked, so this is not an LRU: a key read a thousand times
// is evicted before a cold key that expires later.
package ttlstore

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

const (
	DefaultTTL           = 5 * time.Minute
	DefaultMaxEntries    = 1000
	DefaultSweepInterval = time.Minute
)

// EvictReason tells an OnEvict hook why an entry left the store.
type EvictReason string

const (
	ReasonExpired  EvictReason = "expired"
	ReasonCapacity EvictReason = "capacity"
	ReasonDeleted  EvictReason = "deleted"
	ReasonFlushed  EvictReason = "flushed"
)

// Stats is a point-in-time view of store counters.
type Stats struct {
	Entries       int           `json:"entries"`
	MaxEntries    int           `json:"max_entries"`
	DefaultTTL    time.Duration `json:"default_ttl"`
	SweepInterval time.Duration `json:"sweep_interval"`
	Hits          int64         `json:"hits"`
	Misses        int64         `json:"misses"`
	Evictions     int64         `json:"evictions"`
	Expirations   int64         `json:"expirations"`
}

// Entry is a key/value pair used by MSet.
type Entry[V any] struct {
	Key   string
	Value V
}

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
	seq       uint64
	index     int // position in the expiry heap
}

type config struct {
	defaultTTL    time.Duration
	maxEntries    int
	sweepInterval time.Duration
	now           func() time.Time
	onEvict       func(key string, reason EvictReason)
}

// Option configures a Store.
type Option func(*config)

// WithDefaultTTL sets the TTL used when Set is called with ttl <= 0.
func WithDefaultTTL(d time.Duration) Option {
	return func(c *config) { c.defaultTTL = d }
}

// WithMaxEntries bounds the number of live entries. Values <= 0 disable the bound.
func WithMaxEntries(n int) Option {
	return func(c *config) { c.maxEntries = n }
}

// WithSweepInterval sets how often expired entries are removed in the
// background. Values <= 0 disable the sweep.
func WithSweepInterval(d time.Duration) Option {
	return func(c *config) { c.sweepInterval = d }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// WithOnEvict registers a hook called, outside the store lock, for every
// entry removed by expiry, capacity, Delete or Flush.
func WithOnEvict(fn func(key string, reason EvictReason)) Option {
	return func(c *config) { c.onEvict = fn }
}

// Store is safe for concurrent use.
type Store[V any] struct {
	mu      sync.Mutex
	entries map[string]*entry[V]
	byExp   expiryHeap[V]
	seq     uint64
	cfg     config

	hits        int64
	misses      int64
	evictions   int64
	expirations int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

type removal struct {
	key    string
	reason EvictReason
}

// New creates a store and starts its sweep loop. The loop stops when ctx is
// cancelled or Close is called.
func New[V any](ctx context.Context, opts ...Option) *Store[V] {
	cfg := config{
		defaultTTL:    DefaultTTL,
		maxEntries:    DefaultMaxEntries,
		sweepInterval: DefaultSweepInterval,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.defaultTTL <= 0 {
		cfg.defaultTTL = DefaultTTL
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &Store[V]{
		entries: make(map[string]*entry[V]),
		cfg:     cfg,
		ctx:     sctx,
		cancel:  cancel,
	}
	if cfg.sweepInterval > 0 {
		s.wg.Add(1)
		go s.run()
	}
	return s
}

// Get returns the value for key. An expired entry is removed and reported absent.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.Lock()
	v, ok, gone := s.getLocked(key, s.cfg.now())
	s.mu.Unlock()
	s.notify(gone)
	return v, ok
}

func (s *Store[V]) getLocked(key string, now time.Time) (V, bool, []removal) {
	var zero V
	e, ok := s.entries[key]
	if !ok {
		s.misses++
		return zero, false, nil
	}
	if !now.Before(e.expiresAt) {
		s.removeLocked(e)
		s.expirations++
		s.misses++
		return zero, false, []removal{{key, ReasonExpired}}
	}
	s.hits++
	return e.value, true, nil
}

// Set inserts or overwrites key. ttl <= 0 uses the default TTL. When the
// store is full and key is new, the entry nearest to expiry is evicted first.
func (s *Store[V]) Set(key string, value V, ttl time.Duration) {
	s.mu.Lock()
	gone := s.setLocked(key, value, ttl, s.cfg.now())
	s.mu.Unlock()
	s.notify(gone)
}

func (s *Store[V]) setLocked(key string, value V, ttl time.Duration, now time.Time) []removal {
	if ttl <= 0 {
		ttl = s.cfg.defaultTTL
	}
	s.seq++

	if e, ok := s.entries[key]; ok {
		e.value = value
		e.expiresAt = now.Add(ttl)
		e.seq = s.seq
		heap.Fix(&s.byExp, e.index)
		return nil
	}

	var gone []removal
	for s.cfg.maxEntries > 0 && len(s.entries) >= s.cfg.maxEntries {
		victim := s.byExp[0]
		s.removeLocked(victim)
		if !now.Before(victim.expiresAt) {
			s.expirations++
			gone = append(gone, removal{victim.key, ReasonExpired})
		} else {
			s.evictions++
			gone = append(gone, removal{victim.key, ReasonCapacity})
		}
	}

	e := &entry[V]{key: key, value: value, expiresAt: now.Add(ttl), seq: s.seq}
	s.entries[key] = e
	heap.Push(&s.byExp, e)
	return gone
}

// MGet looks up several keys. Absent or expired keys are omitted from the result.
func (s *Store[V]) MGet(keys []string) map[string]V {
	out := make(map[string]V, len(keys))
	var gone []removal
	for _, k := range keys {
		s.mu.Lock()
		v, ok, g := s.getLocked(k, s.cfg.now())
		s.mu.Unlock()
		gone = append(gone, g...)
		if ok {
			out[k] = v
		}
	}
	s.notify(gone)
	return out
}

// MSet stores every entry with the same ttl. Each key is written atomically;
// the batch as a whole is not.
func (s *Store[V]) MSet(entries []Entry[V], ttl time.Duration) {
	var gone []removal
	for _, e := range entries {
		s.mu.Lock()
		gone = append(gone, s.setLocked(e.Key, e.Value, ttl, s.cfg.now())...)
		s.mu.Unlock()
	}
	s.notify(gone)
}

// Delete removes key and reports whether it was present.
func (s *Store[V]) Delete(key string) bool {
	s.mu.Lock()
	e, ok := s.entries[key]
	if ok {
		s.removeLocked(e)
	}
	s.mu.Unlock()
	if ok {
		s.notify([]removal{{key, ReasonDeleted}})
	}
	return ok
}

// Flush removes all entries unconditionally.
func (s *Store[V]) Flush() {
	s.mu.Lock()
	var gone []removal
	if s.cfg.onEvict != nil {
		gone = make([]removal, 0, len(s.entries))
		for k := range s.entries {
			gone = append(gone, removal{k, ReasonFlushed})
		}
	}
	s.entries = make(map[string]*entry[V])
	s.byExp = nil
	s.mu.Unlock()
	s.notify(gone)
}

// Len returns the number of stored entries, including expired ones not yet purged.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Range calls fn for every live entry until fn returns false. The store is
// locked meanwhile, so fn must not call back into it.
func (s *Store[V]) Range(fn func(key string, value V) bool) {
	now := s.cfg.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			continue
		}
		if !fn(k, e.value) {
			return
		}
	}
}

// Stats returns a snapshot of the store counters.
func (s *Store[V]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Entries:       len(s.entries),
		MaxEntries:    s.cfg.maxEntries,
		DefaultTTL:    s.cfg.defaultTTL,
		SweepInterval: s.cfg.sweepInterval,
		Hits:          s.hits,
		Misses:        s.misses,
		Evictions:     s.evictions,
		Expirations:   s.expirations,
	}
}

// Sweep removes every expired entry and returns how many were removed.
func (s *Store[V]) Sweep() int {
	now := s.cfg.now()
	s.mu.Lock()
	var gone []removal
	for len(s.byExp) > 0 && !now.Before(s.byExp[0].expiresAt) {
		e := s.byExp[0]
		s.removeLocked(e)
		s.expirations++
		gone = append(gone, removal{e.key, ReasonExpired})
	}
	s.mu.Unlock()
	s.notify(gone)
	return len(gone)
}

// Close stops the sweep loop. It is safe to call more than once.
func (s *Store[V]) Close() {
	s.once.Do(func() {
		s.cancel()
		s.wg.Wait()
	})
}

func (s *Store[V]) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *Store[V]) removeLocked(e *entry[V]) {
	delete(s.entries, e.key)
	if e.index >= 0 && e.index < len(s.byExp) && s.byExp[e.index] == e {
		heap.Remove(&s.byExp, e.index)
	}
}

func (s *Store[V]) notify(gone []removal) {
	if s.cfg.onEvict == nil {
		return
	}
	for _, r := range gone {
		s.cfg.onEvict(r.key, r.reason)
	}
}

// expiryHeap orders entries by expiresAt, oldest write first on ties.
type expiryHeap[V any] []*entry[V]

func (h expiryHeap[V]) Len() int { return len(h) }

func (h expiryHeap[V]) Less(i, j int) bool {
	if h[i].expiresAt.Equal(h[j].expiresAt) {
		return h[i].seq < h[j].seq
	}
	return h[i].expiresAt.Before(h[j].expiresAt)
}

func (h expiryHeap[V]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *expiryHeap[V]) Push(x any) {
	e := x.(*entry[V])
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *expiryHeap[V]) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
