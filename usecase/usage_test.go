package usecase

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	coreconfig "github.com/AzielCF/az-infer/core/config"
	"github.com/AzielCF/az-infer/core/database"
	domainUsage "github.com/AzielCF/az-infer/domains/usage"
	infraUsage "github.com/AzielCF/az-infer/infrastructure/usage"
	"github.com/AzielCF/az-infer/pkg/jobpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUsageRepo(t *testing.T) domainUsage.IUsageRepository {
	t.Helper()
	db, err := database.NewDatabase(&coreconfig.Config{
		Database: coreconfig.DatabaseConfig{Driver: "sqlite", Name: filepath.Join(t.TempDir(), "usage.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	repo := infraUsage.NewUsageGormRepository(db)
	require.NoError(t, repo.Init(context.Background()))
	return repo
}

func TestUsageService_AsyncRecordAndSummary(t *testing.T) {
	ctx := context.Background()
	repo := newTestUsageRepo(t)
	pool := jobpool.New("usage-test", 2, 10)
	pool.Start(ctx)

	svc := NewUsageService(repo, pool)
	svc.Record(domainUsage.Record{Task: "summarization", Provider: "gemini", Model: "m", LatencyMs: 100, Success: true})
	svc.Record(domainUsage.Record{Task: "summarization", Provider: "gemini", Model: "m", LatencyMs: 300, Success: false, Error: "boom"})
	svc.Record(domainUsage.Record{Task: "text-generation", Provider: "gemini", Model: "m", LatencyMs: 50, Success: true})

	// Stop drena las colas antes de volver
	pool.Stop()

	summary, err := svc.Summary(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, summary.Recent, 3)
	for _, r := range summary.Recent {
		assert.NotEmpty(t, r.ID)
		assert.False(t, r.CreatedAt.IsZero())
	}

	require.Len(t, summary.Totals, 2)
	assert.Equal(t, "summarization", summary.Totals[0].Task)
	assert.Equal(t, int64(2), summary.Totals[0].Calls)
	assert.Equal(t, int64(1), summary.Totals[0].Failures)
	assert.InDelta(t, 200, summary.Totals[0].AvgLatencyMs, 0.001)

	filtered, err := svc.Summary(ctx, "text-generation", 10)
	require.NoError(t, err)
	assert.Len(t, filtered.Recent, 1)
}

func TestUsageService_InlineWithoutPool(t *testing.T) {
	ctx := context.Background()
	repo := newTestUsageRepo(t)
	svc := NewUsageService(repo, nil)

	svc.Record(domainUsage.Record{ID: "fixed-id", Task: "text-to-image", CreatedAt: time.Now().UTC(), Success: true})

	rec, err := repo.GetByID(ctx, "fixed-id")
	require.NoError(t, err)
	assert.Equal(t, "text-to-image", rec.Task)
}
