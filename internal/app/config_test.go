package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 60*time.Minute, cfg.JWTAccessTTL)
	assert.Equal(t, 168*time.Hour, cfg.JWTRefreshTTL)
	assert.Equal(t, 5*time.Minute, cfg.LedgerCacheTTL)
	assert.Equal(t, int64(5<<20), cfg.UploadMaxBytes)
	assert.Equal(t, "/media", cfg.MediaURLPrefix)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("APP_ENV", "production")
	t.Setenv("LEDGER_CACHE_TTL", "0")
	t.Setenv("JWT_ACCESS_TTL", "15m")
	t.Setenv("WORKER_TIMEZONE", "Not/AZone")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Zero(t, cfg.LedgerCacheTTL)
	assert.Equal(t, 15*time.Minute, cfg.JWTAccessTTL)
	assert.Equal(t, time.UTC, cfg.WorkerLocation())
}

func TestLoadConfigRejectsWeakSettings(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")
	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("JWT_REFRESH_TTL", "10m")
	_, err = LoadConfig()
	assert.Error(t, err)
}
