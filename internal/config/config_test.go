package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("USER_SIGNING_KEYS", "k1:00ff")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("POSTGRES_HOST", "db")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.ServerAddr)
	assert.Equal(t, "postgres://bookswap:bookswap@db:5432/bookswap?sslmode=disable", cfg.DatabaseURL)
	assert.Equal(t, 24*time.Hour, cfg.InvitationTTL)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, 5*time.Second, cfg.OperationUpdateTimeout)
	assert.False(t, cfg.NotifyOnExpire)
	assert.Equal(t, 64, cfg.WS.SendBuffer)
	assert.Equal(t, int64(65536), cfg.WS.MaxMessageBytes)
	assert.Empty(t, cfg.WS.AllowedOrigins)
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ADMIN_SIGNING_KEYS", "a1:00ff")
	t.Setenv("DATABASE_URL", "postgres://x@y/z")
	t.Setenv("INVITATION_TTL", "90s")
	t.Setenv("NOTIFY_ON_EXPIRE", "true")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("WS_ALLOWED_ORIGINS", "https://a.example/, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://x@y/z", cfg.DatabaseURL)
	assert.Equal(t, 90*time.Second, cfg.InvitationTTL)
	assert.True(t, cfg.NotifyOnExpire)
	assert.Equal(t, zerolog.DebugLevel, cfg.Level())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.WS.AllowedOrigins)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("USER_SIGNING_KEYS", "")
	t.Setenv("ADMIN_SIGNING_KEYS", "")
	_, err := Load()
	assert.ErrorContains(t, err, "SIGNING_KEYS")

	t.Setenv("USER_SIGNING_KEYS", "k1:00ff")
	t.Setenv("SWEEP_INTERVAL", "0s")
	_, err = Load()
	assert.ErrorContains(t, err, "SWEEP_INTERVAL")

	t.Setenv("SWEEP_INTERVAL", "soon")
	_, err = Load()
	assert.Error(t, err)
}
