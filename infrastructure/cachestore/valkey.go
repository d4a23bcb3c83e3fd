package cachestore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	domainCache "github.com/AzielCF/az-infer/domains/cache"
	"github.com/AzielCF/az-infer/infrastructure/valkey"
	"github.com/AzielCF/az-infer/pkg/ttlstore"
	"github.com/sirupsen/logrus"
	valkeylib "github.com/valkey-io/valkey-go"
	"github.com/vmihailenco/msgpack/v5"
)

// envelope is what gets stored under each entry key.
type envelope struct {
	Body     []byte `msgpack:"b"`
	StoredAt int64  `msgpack:"t"`
}

// ValkeyStore keeps responses in Valkey so they survive restarts and can be
// shared by several gateways. Entries are plain keys with a PX expiry; a
// sorted set scored by expiry time indexes them so capacity eviction picks the
// entry closest to expiring, as the memory store does. Two gateways writing at
// the same time may both evict; the bound is best effort across processes.
//
// Hit/miss counters are per process.
type ValkeyStore struct {
	client     *valkey.Client
	prefix     string
	index      string
	defaultTTL time.Duration
	maxEntries int
	now        func() time.Time

	hits        int64
	misses      int64
	evictions   int64
	expirations int64
}

func NewValkeyStore(client *valkey.Client, opts Options) *ValkeyStore {
	ttl := opts.DefaultTTL
	if ttl <= 0 {
		ttl = ttlstore.DefaultTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &ValkeyStore{
		client:     client,
		prefix:     client.Key("cache", "e") + ":",
		index:      client.Key("cache", "index"),
		defaultTTL: ttl,
		maxEntries: opts.MaxEntries,
		now:        now,
	}
}

func (s *ValkeyStore) inner() valkeylib.Client {
	return s.client.Inner()
}

func (s *ValkeyStore) fullKey(key string) string {
	return s.prefix + key
}

func (s *ValkeyStore) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	cmd := s.inner().B().Get().Key(s.fullKey(key)).Build()
	data, err := s.inner().Do(ctx, cmd).AsBytes()
	if err != nil {
		if valkey.IsNil(err) {
			atomic.AddInt64(&s.misses, 1)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get cache entry: %w", err)
	}

	body, err := decodeEnvelope(data)
	if err != nil {
		// Unreadable entries are dropped and reported as a miss.
		logrus.Warnf("[CACHE] Dropping undecodable valkey entry %s: %v", key, err)
		s.remove(ctx, key)
		atomic.AddInt64(&s.misses, 1)
		return nil, false, nil
	}
	atomic.AddInt64(&s.hits, 1)
	return body, true, nil
}

func (s *ValkeyStore) Set(ctx context.Context, key string, value json.RawMessage, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	now := s.now()

	if s.maxEntries > 0 {
		if err := s.makeRoom(ctx, key, now); err != nil {
			return err
		}
	}

	data, err := msgpack.Marshal(envelope{Body: value, StoredAt: now.UnixMilli()})
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	score := float64(now.Add(ttl).UnixMilli())
	cmds := valkeylib.Commands{
		s.inner().B().Set().Key(s.fullKey(key)).Value(valkeylib.BinaryString(data)).Px(ttl).Build(),
		s.inner().B().Zadd().Key(s.index).ScoreMember().ScoreMember(score, key).Build(),
	}
	for _, res := range s.inner().DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return fmt.Errorf("failed to set cache entry: %w", err)
		}
	}
	return nil
}

// makeRoom evicts entries closest to expiry until a new key fits. Overwrites
// of an indexed key never evict.
func (s *ValkeyStore) makeRoom(ctx context.Context, key string, now time.Time) error {
	_, err := s.inner().Do(ctx, s.inner().B().Zscore().Key(s.index).Member(key).Build()).AsFloat64()
	if err == nil {
		return nil
	}
	if !valkey.IsNil(err) {
		return fmt.Errorf("failed to check cache index: %w", err)
	}

	if _, err := s.purgeExpired(ctx, now); err != nil {
		return err
	}

	count, err := s.inner().Do(ctx, s.inner().B().Zcard().Key(s.index).Build()).AsInt64()
	if err != nil {
		return fmt.Errorf("failed to count cache entries: %w", err)
	}
	for ; count >= int64(s.maxEntries); count-- {
		cmd := s.inner().B().Zrangebyscore().Key(s.index).Min("-inf").Max("+inf").Limit(0, 1).Build()
		victims, err := s.inner().Do(ctx, cmd).AsStrSlice()
		if err != nil {
			return fmt.Errorf("failed to find eviction candidate: %w", err)
		}
		if len(victims) == 0 {
			break
		}
		s.remove(ctx, victims[0])
		atomic.AddInt64(&s.evictions, 1)
		logrus.Debugf("[CACHE] Evicted %s from valkey (capacity)", victims[0])
	}
	return nil
}

// purgeExpired drops index members whose entry has already expired in Valkey.
func (s *ValkeyStore) purgeExpired(ctx context.Context, now time.Time) (int64, error) {
	max := strconv.FormatInt(now.UnixMilli(), 10)
	cmd := s.inner().B().Zremrangebyscore().Key(s.index).Min("-inf").Max(max).Build()
	n, err := s.inner().Do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache index: %w", err)
	}
	atomic.AddInt64(&s.expirations, n)
	return n, nil
}

func (s *ValkeyStore) remove(ctx context.Context, key string) {
	cmds := valkeylib.Commands{
		s.inner().B().Del().Key(s.fullKey(key)).Build(),
		s.inner().B().Zrem().Key(s.index).Member(key).Build(),
	}
	for _, res := range s.inner().DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			logrus.WithError(err).Warnf("[CACHE] Failed to remove valkey entry %s", key)
		}
	}
}

func (s *ValkeyStore) MGet(ctx context.Context, keys []string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	fullKeys := make([]string, len(keys))
	for i, k := range keys {
		fullKeys[i] = s.fullKey(k)
	}

	values, err := s.inner().Do(ctx, s.inner().B().Mget().Key(fullKeys...).Build()).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to mget cache entries: %w", err)
	}
	for i, val := range values {
		if val == "" {
			atomic.AddInt64(&s.misses, 1)
			continue
		}
		body, err := decodeEnvelope([]byte(val))
		if err != nil {
			logrus.Warnf("[CACHE] Skipping undecodable valkey entry %s: %v", keys[i], err)
			atomic.AddInt64(&s.misses, 1)
			continue
		}
		atomic.AddInt64(&s.hits, 1)
		out[keys[i]] = body
	}
	return out, nil
}

// MSet writes each entry in turn; a failure leaves earlier entries written.
func (s *ValkeyStore) MSet(ctx context.Context, entries []domainCache.Entry, ttl time.Duration) error {
	for _, e := range entries {
		if err := s.Set(ctx, e.Key, e.Value, ttl); err != nil {
			return err
		}
	}
	return nil
}

// Flush deletes every key under the cache prefix plus the index.
// Uses SCAN so it does not block the server.
func (s *ValkeyStore) Flush(ctx context.Context) error {
	var cursor uint64
	deleted := 0
	for {
		cmd := s.inner().B().Scan().Cursor(cursor).Match(s.prefix + "*").Count(100).Build()
		result, err := s.inner().Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return fmt.Errorf("failed to scan cache entries: %w", err)
		}
		if len(result.Elements) > 0 {
			if err := s.inner().Do(ctx, s.inner().B().Del().Key(result.Elements...).Build()).Error(); err != nil {
				return fmt.Errorf("failed to delete cache entries: %w", err)
			}
			deleted += len(result.Elements)
		}
		cursor = result.Cursor
		if cursor == 0 {
			break
		}
	}
	if err := s.inner().Do(ctx, s.inner().B().Del().Key(s.index).Build()).Error(); err != nil {
		return fmt.Errorf("failed to delete cache index: %w", err)
	}
	logrus.Infof("[CACHE] Valkey store flushed (%d entries)", deleted)
	return nil
}

func (s *ValkeyStore) Stats(ctx context.Context) (domainCache.StoreStats, error) {
	if _, err := s.purgeExpired(ctx, s.now()); err != nil {
		return domainCache.StoreStats{}, err
	}
	count, err := s.inner().Do(ctx, s.inner().B().Zcard().Key(s.index).Build()).AsInt64()
	if err != nil {
		return domainCache.StoreStats{}, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return domainCache.StoreStats{
		Backend:     domainCache.BackendValkey,
		Entries:     int(count),
		MaxEntries:  s.maxEntries,
		Hits:        atomic.LoadInt64(&s.hits),
		Misses:      atomic.LoadInt64(&s.misses),
		Evictions:   atomic.LoadInt64(&s.evictions),
		Expirations: atomic.LoadInt64(&s.expirations),
	}, nil
}

// Close is a no-op; the Valkey client is owned by the caller.
func (s *ValkeyStore) Close() {}

func decodeEnvelope(data []byte) (json.RawMessage, error) {
	var env envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return json.RawMessage(env.Body), nil
}
