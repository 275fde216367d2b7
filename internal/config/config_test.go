package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "SmartATM", cfg.AppName)
	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, "http://127.0.0.1:5000", cfg.APIBaseURL)
	assert.Equal(t, "users.json", cfg.DataFile)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 4500*time.Millisecond, cfg.StatusTTL)
	assert.Equal(t, 5*time.Minute, cfg.OTPTTL)
	assert.Equal(t, 10*time.Second, cfg.ShutdownPeriod)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("API_BASE_URL", "http://bank.local:9000/")
	t.Setenv("HTTP_TIMEOUT_SECONDS", "30")
	t.Setenv("STATUS_TTL", "2s")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	// Trailing slashes are trimmed so path joins stay predictable.
	assert.Equal(t, "http://bank.local:9000", cfg.APIBaseURL)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 2*time.Second, cfg.StatusTTL)
	assert.Equal(t, 3*time.Second, cfg.ShutdownPeriod)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
}

func TestLoadRejectsMalformedDurations(t *testing.T) {
	t.Setenv("HTTP_TIMEOUT_SECONDS", "abc")
	_, err := Load()
	require.Error(t, err)
}

func TestSecondsVariantWins(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "7")
	t.Setenv("SHUTDOWN_TIMEOUT", "99s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7*time.Second, cfg.ShutdownPeriod)
}

func TestAddress(t *testing.T) {
	assert.Equal(t, ":5000", Config{Port: "5000"}.Address())
	assert.Equal(t, ":5000", Config{Port: ":5000"}.Address())
}
