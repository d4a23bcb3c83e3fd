package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.App.Port)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Cache.DefaultTTL)
	assert.Equal(t, 1000, cfg.Cache.MaxEntries)
	assert.Equal(t, time.Minute, cfg.Cache.SweepInterval)
	assert.Equal(t, []string{"GET", "POST"}, cfg.Cache.CacheableMethods)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 100, cfg.RateLimit.Max)
	assert.Equal(t, "fixed", cfg.RateLimit.Algorithm)
	assert.Empty(t, cfg.Pipelines.Preload)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("CACHE_TTL", "90")
	t.Setenv("CACHE_SWEEP_INTERVAL", "1d")
	t.Setenv("CACHE_METHODS", "get, put")
	t.Setenv("CACHE_BACKEND", "Valkey")
	t.Setenv("RATE_LIMIT_WINDOW", "1h30m")
	t.Setenv("RATE_LIMIT_MAX", "3")
	t.Setenv("RATE_LIMIT_ENABLED", "off")
	t.Setenv("PIPELINES_PRELOAD", "summarization, text-generation")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.Cache.DefaultTTL)
	assert.Equal(t, 24*time.Hour, cfg.Cache.SweepInterval)
	assert.Equal(t, []string{"GET", "PUT"}, cfg.Cache.CacheableMethods)
	assert.Equal(t, "valkey", cfg.Cache.Backend)
	assert.Equal(t, 90*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 3, cfg.RateLimit.Max)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, []string{"summarization", "text-generation"}, cfg.Pipelines.Preload)
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	t.Setenv("CACHE_TTL", "soon")

	cfg, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CACHE_TTL")
	assert.Equal(t, 5*time.Minute, cfg.Cache.DefaultTTL, "fallback is kept")
}

func TestSettings(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	s := cfg.Settings()
	assert.Equal(t, "5m0s", s["cache_ttl"])
	assert.NotContains(t, s, "gemini_api_key")
}
