package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AzielCF/az-infer/pkg/jobpool"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsagePoolStats_Uninitialized(t *testing.T) {
	app := fiber.New()
	app.Get("/api/usage/pool/stats", UsagePoolStats(nil))

	req := httptest.NewRequest(http.MethodGet, "/api/usage/pool/stats", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestUsagePoolStats_Initialized(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := jobpool.New("usage", 2, 10)
	pool.Start(ctx)
	t.Cleanup(func() {
		cancel()
		pool.Stop()
	})

	app := fiber.New()
	app.Get("/api/usage/pool/stats", UsagePoolStats(pool))

	req := httptest.NewRequest(http.MethodGet, "/api/usage/pool/stats", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats jobpool.PoolStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 2, stats.NumWorkers)
	assert.Equal(t, 10, stats.QueueSize)
	assert.Len(t, stats.WorkerStats, 2)
}
