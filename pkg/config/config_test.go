package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("TRADEGATE_POSTGRES_URL", "postgres://localhost/tradegate_test")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "info", cfg.Observability.LogLevel)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("TRADEGATE_POSTGRES_URL", "postgres://localhost/tradegate_test")
	t.Setenv("TRADEGATE_PORT", "3000")
	t.Setenv("TRADEGATE_SESSION_TTL", "2h")
	t.Setenv("TRADEGATE_RATE_LIMIT_ENABLED", "false")
	t.Setenv("TRADEGATE_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, 2*time.Hour, cfg.Auth.SessionTTL)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
}

func TestLoadConfig_FileThenEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "4000"
  health_port: "4001"
database:
  url: postgres://from-file/db
`), 0o644))

	t.Setenv("TRADEGATE_CONFIG_FILE", path)
	t.Setenv("TRADEGATE_PORT", "5000")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	// Environment beats file, file beats defaults
	assert.Equal(t, "5000", cfg.Server.Port)
	assert.Equal(t, "4001", cfg.Server.HealthPort)
	assert.Equal(t, "postgres://from-file/db", cfg.Database.URL)
}

func TestLoadConfig_MissingDatabaseURL(t *testing.T) {
	_, err := LoadConfig()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "TRADEGATE_POSTGRES_URL")
}

func TestLoadConfig_InvalidBcryptCost(t *testing.T) {
	t.Setenv("TRADEGATE_POSTGRES_URL", "postgres://localhost/tradegate_test")
	t.Setenv("TRADEGATE_BCRYPT_COST", "99")

	_, err := LoadConfig()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "bcrypt cost")
}

func TestLoadConfig_OTelRequiresEndpoint(t *testing.T) {
	t.Setenv("TRADEGATE_POSTGRES_URL", "postgres://localhost/tradegate_test")
	t.Setenv("TRADEGATE_OTEL_ENABLED", "true")

	_, err := LoadConfig()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "OTel endpoint")
}
