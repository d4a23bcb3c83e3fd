package cachestore

import (
	"context"
	"encoding/json"
	"time"

	domainCache "github.com/AzielCF/az-infer/domains/cache"
	"github.com/AzielCF/az-infer/pkg/ttlstore"
	"github.com/sirupsen/logrus"
)

// MemoryStore keeps responses in process memory. It is lost on restart.
type MemoryStore struct {
	store *ttlstore.Store[json.RawMessage]
}

// Options shared by every backend.
type Options struct {
	DefaultTTL    time.Duration
	MaxEntries    int
	SweepInterval time.Duration
	Now           func() time.Time
}

func NewMemoryStore(ctx context.Context, opts Options) *MemoryStore {
	storeOpts := []ttlstore.Option{
		ttlstore.WithDefaultTTL(opts.DefaultTTL),
		ttlstore.WithMaxEntries(opts.MaxEntries),
		ttlstore.WithSweepInterval(opts.SweepInterval),
		ttlstore.WithOnEvict(func(key string, reason ttlstore.EvictReason) {
			if reason == ttlstore.ReasonCapacity {
				logrus.Debugf("[CACHE] Evicted %s (capacity)", key)
			}
		}),
	}
	if opts.Now != nil {
		storeOpts = append(storeOpts, ttlstore.WithClock(opts.Now))
	}
	return &MemoryStore{store: ttlstore.New[json.RawMessage](ctx, storeOpts...)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	v, ok := m.store.Get(key)
	return v, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value json.RawMessage, ttl time.Duration) error {
	m.store.Set(key, value, ttl)
	return nil
}

func (m *MemoryStore) MGet(_ context.Context, keys []string) (map[string]json.RawMessage, error) {
	return m.store.MGet(keys), nil
}

func (m *MemoryStore) MSet(_ context.Context, entries []domainCache.Entry, ttl time.Duration) error {
	batch := make([]ttlstore.Entry[json.RawMessage], len(entries))
	for i, e := range entries {
		batch[i] = ttlstore.Entry[json.RawMessage]{Key: e.Key, Value: e.Value}
	}
	m.store.MSet(batch, ttl)
	return nil
}

func (m *MemoryStore) Flush(_ context.Context) error {
	m.store.Flush()
	logrus.Info("[CACHE] Memory store flushed")
	return nil
}

func (m *MemoryStore) Stats(_ context.Context) (domainCache.StoreStats, error) {
	s := m.store.Stats()
	var size int64
	m.store.Range(func(key string, value json.RawMessage) bool {
		size += int64(len(key) + len(value))
		return true
	})
	return domainCache.StoreStats{
		Backend:     domainCache.BackendMemory,
		Entries:     s.Entries,
		MaxEntries:  s.MaxEntries,
		Hits:        s.Hits,
		Misses:      s.Misses,
		Evictions:   s.Evictions,
		Expirations: s.Expirations,
		Bytes:       size,
	}, nil
}

// Sweep removes expired entries now instead of waiting for the next tick.
func (m *MemoryStore) Sweep() int {
	return m.store.Sweep()
}

func (m *MemoryStore) Close() {
	m.store.Close()
}
