package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("SWEEP_INTERVAL", "")

	cfg := New()

	assert.Equal(t, "8089", cfg.Port)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 6*time.Hour, cfg.WorkerCfg.SweepInterval)
	assert.Equal(t, 3, cfg.WorkerCfg.ExpiryHorizonDays)
	assert.True(t, cfg.RedisCfg.Enabled)
}

func TestNew_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("WORKER_POOL_SIZE", "5")
	t.Setenv("SWEEP_INTERVAL", "15m")
	t.Setenv("MSP_CACHE_TTL", "not-a-duration")

	cfg := New()

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.False(t, cfg.RedisCfg.Enabled)
	assert.Equal(t, 5, cfg.WorkerCfg.PoolSize)
	assert.Equal(t, 15*time.Minute, cfg.WorkerCfg.SweepInterval)
	assert.Equal(t, 30*time.Minute, cfg.MSPCacheTTL, "invalid duration falls back to default")
}

func TestNew_SweepIntervalMustBePositive(t *testing.T) {
	for _, raw := range []string{"0s", "-5m"} {
		t.Setenv("SWEEP_INTERVAL", raw)
		assert.Equal(t, 6*time.Hour, New().WorkerCfg.SweepInterval, "SWEEP_INTERVAL=%s", raw)
	}
}
