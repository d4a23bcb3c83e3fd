package usecase

import (
	"context"
	"time"

	domainUsage "github.com/AzielCF/az-infer/domains/usage"
	"github.com/AzielCF/az-infer/pkg/jobpool"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultRecentLimit = 50

type usageService struct {
	repo domainUsage.IUsageRepository
	pool *jobpool.Pool
}

// NewUsageService writes records through pool. With a nil pool records are
// written inline.
func NewUsageService(repo domainUsage.IUsageRepository, pool *jobpool.Pool) domainUsage.IUsageUsecase {
	return &usageService{repo: repo, pool: pool}
}

// Record nunca bloquea la petición: si la cola está llena el registro se pierde.
func (s *usageService) Record(r domainUsage.Record) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	write := func(ctx context.Context) error {
		return s.repo.Create(ctx, r)
	}
	if s.pool == nil {
		if err := write(context.Background()); err != nil {
			logrus.WithError(err).Error("[USAGE] Failed to store usage record")
		}
		return
	}
	if !s.pool.TryDispatch(jobpool.Job{Key: r.Task, Handler: write}) {
		logrus.Warnf("[USAGE] Usage record for %s dropped", r.Task)
	}
}

func (s *usageService) Summary(ctx context.Context, task string, limit int) (domainUsage.Summary, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	recent, err := s.repo.ListRecent(ctx, task, limit)
	if err != nil {
		return domainUsage.Summary{}, err
	}
	totals, err := s.repo.Totals(ctx, time.Time{})
	if err != nil {
		return domainUsage.Summary{}, err
	}
	return domainUsage.Summary{Recent: recent, Totals: totals}, nil
}
