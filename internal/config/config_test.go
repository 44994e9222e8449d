package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, 2*time.Minute, cfg.JobTimeout)
	assert.Equal(t, 15*time.Minute, cfg.ReconcileInterval)
	assert.Equal(t, "EUR", cfg.DefaultCurrency)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "file:cards.db")
	t.Setenv("JOB_TIMEOUT", "45s")
	t.Setenv("RECONCILE_INTERVAL", "0")
	t.Setenv("WORKER_POOL_SIZE", "9")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "file:cards.db", cfg.DatabaseURL)
	assert.Equal(t, 45*time.Second, cfg.JobTimeout)
	assert.Zero(t, cfg.ReconcileInterval)
	assert.Equal(t, 9, cfg.WorkerPoolSize)
}

func TestLoad_EmptyRedisURLDisablesRedis(t *testing.T) {
	t.Setenv("REDIS_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, "EUR", cfg.DefaultCurrency)
}
