package usage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/AzielCF/az-infer/core/config"
	"github.com/AzielCF/az-infer/core/database"
	domainUsage "github.com/AzielCF/az-infer/domains/usage"
	pkgError "github.com/AzielCF/az-infer/pkg/error"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *UsageGormRepository {
	t.Helper()
	cfg := &config.Config{Database: config.DatabaseConfig{
		Driver: "sqlite",
		Name:   filepath.Join(t.TempDir(), "usage.db"),
	}}
	db, err := database.NewDatabase(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	repo := NewUsageGormRepository(db)
	require.NoError(t, repo.Init(context.Background()))
	return repo
}

func TestUsageRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	rec := domainUsage.Record{
		ID:        uuid.NewString(),
		Task:      "summarization",
		Provider:  "gemini",
		Model:     "gemini-2.5-flash-lite",
		LatencyMs: 420,
		Success:   true,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, repo.Create(ctx, rec))

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Task, got.Task)
	assert.Equal(t, rec.LatencyMs, got.LatencyMs)
	assert.True(t, got.Success)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))

	_, err = repo.GetByID(ctx, "missing")
	var nf pkgError.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestUsageRepository_ListAndTotals(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	base := time.Now().UTC().Add(-time.Hour)

	add := func(task string, latency int64, ok bool, offset time.Duration) {
		require.NoError(t, repo.Create(ctx, domainUsage.Record{
			ID:        uuid.NewString(),
			Task:      task,
			Provider:  "gemini",
			LatencyMs: latency,
			Success:   ok,
			CreatedAt: base.Add(offset),
		}))
	}
	add("summarization", 100, true, time.Minute)
	add("summarization", 300, false, 2*time.Minute)
	add("text-generation", 50, true, 3*time.Minute)

	recent, err := repo.ListRecent(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "text-generation", recent[0].Task, "newest first")

	onlySum, err := repo.ListRecent(ctx, "summarization", 10)
	require.NoError(t, err)
	assert.Len(t, onlySum, 2)

	totals, err := repo.Totals(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.Equal(t, domainUsage.TaskTotals{Task: "summarization", Calls: 2, Failures: 1, AvgLatencyMs: 200}, totals[0])
	assert.Equal(t, "text-generation", totals[1].Task)

	later, err := repo.Totals(ctx, base.Add(150*time.Second))
	require.NoError(t, err)
	require.Len(t, later, 1)
	assert.Equal(t, "text-generation", later[0].Task)
}
