package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	str2duration "github.com/xhit/go-str2duration/v2"
)

// Settings returns the non-secret settings as a flat map for status endpoints.
func (c *Config) Settings() map[string]any {
	return map[string]any{
		"app_version":          c.App.Version,
		"app_debug":            c.App.Debug,
		"cache_enabled":        c.Cache.Enabled,
		"cache_backend":        c.Cache.Backend,
		"cache_ttl":            c.Cache.DefaultTTL.String(),
		"cache_max_entries":    c.Cache.MaxEntries,
		"cache_sweep_interval": c.Cache.SweepInterval.String(),
		"cache_methods":        c.Cache.CacheableMethods,
		"rate_limit_enabled":   c.RateLimit.Enabled,
		"rate_limit_algorithm": c.RateLimit.Algorithm,
		"rate_limit_window":    c.RateLimit.Window.String(),
		"rate_limit_max":       c.RateLimit.Max,
		"ai_text_provider":     c.AI.TextGenerationProvider,
		"ai_request_timeout":   c.AI.RequestTimeout.String(),
		"pipelines_preload":    c.Pipelines.Preload,
		"usage_enabled":        c.Usage.Enabled,
	}
}

// Helpers

// getEnv reads key through viper so cobra flags bound to the same key win
// over the environment.
func getEnv(key, fallback string) string {
	if v := viper.GetString(key); v != "" {
		return v
	}
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := getEnv(key, ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := getEnv(key, ""); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := getEnv(key, ""); v != "" {
		vLower := strings.ToLower(v)
		return vLower == "1" || vLower == "true" || vLower == "yes" || vLower == "on"
	}
	return fallback
}

// getEnvDuration accepts Go durations plus days and weeks ("1d", "2w").
// A bare number is read as seconds.
func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(getEnv(key, ""))
	if v == "" {
		return fallback, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := str2duration.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
