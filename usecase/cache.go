package usecase

import (
	"context"

	coreconfig "github.com/AzielCF/az-infer/core/config"
	domainCache "github.com/AzielCF/az-infer/domains/cache"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

type cacheService struct {
	store domainCache.IStore
	cfg   coreconfig.CacheConfig
}

func NewCacheService(store domainCache.IStore, cfg coreconfig.CacheConfig) domainCache.ICacheUsecase {
	return &cacheService{store: store, cfg: cfg}
}

func (s *cacheService) GetStats(ctx context.Context) (domainCache.CacheStats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return domainCache.CacheStats{}, err
	}
	stats := domainCache.CacheStats{StoreStats: st}
	if lookups := st.Hits + st.Misses; lookups > 0 {
		stats.HitRatio = float64(st.Hits) / float64(lookups)
	}
	stats.HumanSize = humanize.Bytes(uint64(st.Bytes))
	return stats, nil
}

func (s *cacheService) Clear(ctx context.Context) error {
	if err := s.store.Flush(ctx); err != nil {
		return err
	}
	logrus.Info("[CACHE] Cleared by request")
	return nil
}

func (s *cacheService) GetSettings(_ context.Context) (domainCache.CacheSettings, error) {
	return domainCache.CacheSettings{
		Enabled:          s.cfg.Enabled,
		Backend:          s.cfg.Backend,
		DefaultTTL:       s.cfg.DefaultTTL.String(),
		MaxEntries:       s.cfg.MaxEntries,
		SweepInterval:    s.cfg.SweepInterval.String(),
		CacheableMethods: s.cfg.CacheableMethods,
	}, nil
}
