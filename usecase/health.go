package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	domainCache "github.com/AzielCF/az-infer/domains/cache"
	"github.com/AzielCF/az-infer/domains/health"
	"github.com/AzielCF/az-infer/domains/pipeline"
	"github.com/AzielCF/az-infer/pkg/lazy"
	"github.com/dustin/go-humanize"
	"gorm.io/gorm"
)

const checkTimeout = 3 * time.Second

type healthService struct {
	serverID string
	version  string
	started  time.Time
	checkers map[health.Component]health.Checker
}

func NewHealthService(serverID, version string, checkers map[health.Component]health.Checker) health.IHealthUsecase {
	return &healthService{
		serverID: serverID,
		version:  version,
		started:  time.Now(),
		checkers: checkers,
	}
}

func (s *healthService) GetStatus(ctx context.Context) health.Report {
	names := make([]string, 0, len(s.checkers))
	for c := range s.checkers {
		names = append(names, string(c))
	}
	sort.Strings(names)

	report := health.Report{
		Status:   health.StatusOk,
		ServerID: s.serverID,
		Version:  s.version,
		Uptime:   strings.TrimSpace(humanize.RelTime(s.started, time.Now(), "", "")),
	}
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		status, msg := s.checkers[health.Component(name)](checkCtx)
		cancel()

		report.Components = append(report.Components, health.HealthRecord{
			Component:   health.Component(name),
			Status:      status,
			LastMessage: msg,
			LastChecked: time.Now(),
		})
		report.Status = worst(report.Status, status)
	}
	return report
}

func worst(a, b health.Status) health.Status {
	rank := map[health.Status]int{
		health.StatusOk:       0,
		health.StatusUnknown:  1,
		health.StatusDegraded: 2,
		health.StatusError:    3,
	}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// DatabaseChecker pings the gorm connection.
func DatabaseChecker(db *gorm.DB) health.Checker {
	return func(ctx context.Context) (health.Status, string) {
		if db == nil {
			return health.StatusUnknown, "usage ledger disabled"
		}
		sqlDB, err := db.DB()
		if err != nil {
			return health.StatusError, err.Error()
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return health.StatusError, err.Error()
		}
		return health.StatusOk, "Connection successful"
	}
}

// CacheChecker reads the store stats, which also exercises a remote backend.
func CacheChecker(store domainCache.IStore) health.Checker {
	return func(ctx context.Context) (health.Status, string) {
		st, err := store.Stats(ctx)
		if err != nil {
			return health.StatusError, err.Error()
		}
		return health.StatusOk, fmt.Sprintf("%s backend, %d entries", st.Backend, st.Entries)
	}
}

// PipelinesChecker is degraded when a configured pipeline failed its last
// construction. Pipelines not built yet are fine.
func PipelinesChecker(inference pipeline.IInferenceUsecase) health.Checker {
	return func(ctx context.Context) (health.Status, string) {
		var ready, failed, configured int
		for _, st := range inference.Status(ctx) {
			if !st.Available {
				continue
			}
			configured++
			switch {
			case st.State == lazy.StateReady:
				ready++
			case st.LastError != "":
				failed++
			}
		}
		msg := fmt.Sprintf("%d/%d ready, %d failed", ready, configured, failed)
		if failed > 0 {
			return health.StatusDegraded, msg
		}
		return health.StatusOk, msg
	}
}
