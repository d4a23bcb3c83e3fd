package cache

import (
	"context"
	"encoding/json"
	"time"
)

const (
	BackendMemory = "memory"
	BackendValkey = "valkey"
)

// Entry is a key/value pair for batch writes.
type Entry struct {
	Key   string
	Value json.RawMessage
}

// StoreStats are the counters exposed by every backend. Counters a backend
// cannot track stay at zero.
type StoreStats struct {
	Backend     string `json:"backend"`
	Entries     int    `json:"entries"`
	MaxEntries  int    `json:"max_entries"`
	Hits        int64  `json:"hits"`
	Misses      int64  `json:"misses"`
	Evictions   int64  `json:"evictions"`
	Expirations int64  `json:"expirations"`
	Bytes       int64  `json:"bytes"`
}

// IStore holds cached response bodies keyed by request fingerprint.
// Absent or expired keys are reported with ok=false, never as an error.
type IStore interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	Set(ctx context.Context, key string, value json.RawMessage, ttl time.Duration) error
	MGet(ctx context.Context, keys []string) (map[string]json.RawMessage, error)
	MSet(ctx context.Context, entries []Entry, ttl time.Duration) error
	Flush(ctx context.Context) error
	Stats(ctx context.Context) (StoreStats, error)
	Close()
}

type CacheStats struct {
	StoreStats
	HitRatio  float64 `json:"hit_ratio"`
	HumanSize string  `json:"human_size"`
}

type CacheSettings struct {
	Enabled          bool     `json:"enabled"`
	Backend          string   `json:"backend"`
	DefaultTTL       string   `json:"default_ttl"`
	MaxEntries       int      `json:"max_entries"`
	SweepInterval    string   `json:"sweep_interval"`
	CacheableMethods []string `json:"cacheable_methods"`
}

type ICacheUsecase interface {
	GetStats(ctx context.Context) (CacheStats, error)
	Clear(ctx context.Context) error
	GetSettings(ctx context.Context) (CacheSettings, error)
}
