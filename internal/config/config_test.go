package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 5*time.Second, cfg.LockWait)
	assert.Equal(t, 10*time.Second, cfg.DependencyTimeout)
	assert.Equal(t, 60*time.Second, cfg.LockLease)
	assert.Equal(t, 5*time.Minute, cfg.PaymentLinkRetryInterval)
	assert.Equal(t, SessionBackendMemory, cfg.SessionBackend)
	assert.Equal(t, "usd", cfg.Currency)
	assert.Equal(t, cfg.PublicBaseURL+"/payment/success", cfg.PaymentSuccessURL)

	h, m, err := cfg.BroadcastClock()
	require.NoError(t, err)
	assert.Equal(t, 10, h)
	assert.Equal(t, 0, m)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("SESSION_TTL", "45m")
	t.Setenv("SESSION_BACKEND", "REDIS")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("PUBLIC_BASE_URL", "https://eat.example.com/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 45*time.Minute, cfg.SessionTTL)
	assert.Equal(t, SessionBackendRedis, cfg.SessionBackend)
	assert.Equal(t, "cache:6380", cfg.RedisAddr)
	assert.Equal(t, "https://eat.example.com", cfg.PublicBaseURL)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("SESSION_TTL", "soon")
	t.Setenv("SESSION_BACKEND", "etcd")
	t.Setenv("BROADCAST_AT", "25:99")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_TTL")
	assert.Contains(t, err.Error(), "SESSION_BACKEND")
	assert.Contains(t, err.Error(), "BROADCAST_AT")
}

func TestLoadProductionRequiresSecrets(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("ADMIN_JWT_SECRET", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("DISABLE_WEBHOOK_VALIDATION", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ADMIN_JWT_SECRET")
	assert.Contains(t, err.Error(), "TWILIO_AUTH_TOKEN")
}

func TestLoadRejectsLeaseShorterThanConfirm(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("LOCK_LEASE", "30s")
	t.Setenv("DEPENDENCY_TIMEOUT", "10s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOCK_LEASE")

	t.Setenv("DEPENDENCY_TIMEOUT", "5s")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.LockLease)
}
