package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("IDENTITY_PROVIDER_URL", "")
	t.Setenv("BACKEND_API_URL", "")
	t.Setenv("BACKEND_ADVISORY_TIMEOUT_SECONDS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Identity.LocalProvider())
	assert.False(t, cfg.Backend.Configured())
	assert.Equal(t, 5*time.Second, cfg.Backend.AdvisoryTimeout())
	assert.Equal(t, "I am a new host on DineWithUs!", cfg.Backend.HostBio)
	assert.Equal(t, time.Hour, cfg.Identity.AccessTokenTTL())
}

func TestLoad_WithEnvironmentVariables(t *testing.T) {
	t.Setenv("IDENTITY_PROVIDER_URL", "https://idp.example.com/")
	t.Setenv("BACKEND_API_URL", "https://api.example.com/v1/")
	t.Setenv("BACKEND_ADVISORY_TIMEOUT_SECONDS", "2")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("POSTGRES_RUN_MIGRATIONS", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Identity.LocalProvider())
	assert.Equal(t, "https://idp.example.com", cfg.Identity.ProviderURL)
	assert.Equal(t, "https://api.example.com/v1", cfg.Backend.APIURL)
	assert.Equal(t, 2*time.Second, cfg.Backend.AdvisoryTimeout())
	assert.Equal(t, "0.0.0.0:9090", cfg.App.Addr())
	assert.False(t, cfg.Postgres.RunMigrations)
}

func TestLoad_InvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "zero")

	_, err := Load()
	assert.Error(t, err)
}
