package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{
		Server:   loadServerConfig(),
		Database: DatabaseConfig{URL: "postgres://localhost/rentfold"},
		Auth:     loadAuthConfig(),
		Web:      loadWebConfig(),
	}
	return cfg
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("RENTFOLD_POSTGRES_URL", "postgres://localhost/rentfold")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.OpsPort)
	assert.Equal(t, 30*time.Minute, cfg.Auth.AdminSessionMaxAge)
	assert.Equal(t, "admin_session", cfg.Auth.AdminCookieName)
	assert.False(t, cfg.IsProduction())
}

func TestAdminSessionMaxAgeMilliseconds(t *testing.T) {
	t.Setenv("RENTFOLD_POSTGRES_URL", "postgres://localhost/rentfold")
	t.Setenv("ADMIN_SESSION_MAX_AGE", "60000")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.Auth.AdminSessionMaxAge)
}

func TestValidateRequiresPostgresURL(t *testing.T) {
	cfg := validConfig()
	cfg.Database.URL = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsSharedPorts(t *testing.T) {
	cfg := validConfig()
	cfg.Server.OpsPort = cfg.Server.Port
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownEnvironment(t *testing.T) {
	cfg := validConfig()
	cfg.Web.Environment = "staging"
	assert.Error(t, cfg.Validate())
}

func TestValidateProductionRequiresEncryptionKey(t *testing.T) {
	cfg := validConfig()
	cfg.Web.Environment = EnvProduction
	cfg.Auth.SessionEncryptionKey = ""
	assert.Error(t, cfg.Validate())

	cfg.Auth.SessionEncryptionKey = "00"
	assert.NoError(t, cfg.Validate())
}

func TestIsProduction(t *testing.T) {
	cfg := validConfig()
	assert.False(t, cfg.IsProduction())
	cfg.Web.Environment = EnvProduction
	cfg.Auth.SessionEncryptionKey = "00"
	assert.True(t, cfg.IsProduction())
}
