package cachestore

import (
	"context"

	domainCache "github.com/AzielCF/az-infer/domains/cache"
	"github.com/AzielCF/az-infer/infrastructure/valkey"
	"github.com/sirupsen/logrus"
)

// New returns the store for backend. A valkey backend without a connected
// client falls back to memory.
func New(ctx context.Context, backend string, client *valkey.Client, opts Options) domainCache.IStore {
	if backend == domainCache.BackendValkey {
		if client != nil {
			logrus.Infof("[CACHE] Using valkey backend (max %d entries)", opts.MaxEntries)
			return NewValkeyStore(client, opts)
		}
		logrus.Warn("[CACHE] Valkey backend requested but no connection is available, falling back to memory")
	}
	logrus.Infof("[CACHE] Using memory backend (max %d entries, ttl %s)", opts.MaxEntries, opts.DefaultTTL)
	return NewMemoryStore(ctx, opts)
}
