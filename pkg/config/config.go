package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rentfold/rentfold/pkg/observability"
)

// Environment names
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration (optional distributed caches)
	Redis RedisConfig

	// Auth configuration (sessions, OIDC)
	Auth AuthConfig

	// Web application settings (CORS origin, redirects)
	Web WebConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for probes)
	OpsPort string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL         string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
}

// RedisConfig holds Redis configuration. When Addr is empty the in-process
// cache implementations are used instead.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig holds session and SSO configuration
type AuthConfig struct {
	// AdminSessionMaxAge is read from ADMIN_SESSION_MAX_AGE (milliseconds)
	// for compatibility with existing deployments. Default 30 minutes.
	AdminSessionMaxAge time.Duration

	AdminCookieName string
	WebCookieName   string

	// SessionEncryptionKey is a 32-byte key (hex encoded) used to encrypt
	// OAuth tokens stored on admin sessions. Required in production.
	SessionEncryptionKey string

	// OIDC settings for the web session verifier and admin Google sign-in.
	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCRedirectURL  string

	// RouteTablePath optionally points at a YAML file overriding the
	// built-in route classification table.
	RouteTablePath string
}

// WebConfig holds settings tied to the browser-facing web application
type WebConfig struct {
	// AppURL is the web application origin; the only origin reflected by
	// the admin CORS layer in production (WEB_APP_URL).
	AppURL string

	// Environment is development or production (RENTFOLD_ENV). Development
	// relaxes CORS and enables verbose error output.
	Environment string

	// RegistrationPath is where page auth redirects users with a valid
	// session but no matching actor record.
	RegistrationPath string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Auth:          loadAuthConfig(),
		Web:           loadWebConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("RENTFOLD_HOST", "0.0.0.0"),
		Port:            getEnv("RENTFOLD_PORT", "8080"),
		ReadTimeout:     getEnvDuration("RENTFOLD_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("RENTFOLD_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("RENTFOLD_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("RENTFOLD_SHUTDOWN_TIMEOUT", 30*time.Second),
		OpsPort:         getEnv("RENTFOLD_OPS_PORT", "9090"),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:         getEnv("RENTFOLD_POSTGRES_URL", ""),
		MaxConns:    getEnvInt("RENTFOLD_POSTGRES_MAX_CONNS", 20),
		MinConns:    getEnvInt("RENTFOLD_POSTGRES_MIN_CONNS", 2),
		Timeout:     getEnvDuration("RENTFOLD_POSTGRES_TIMEOUT", 5*time.Second),
		MaxLifetime: getEnvDuration("RENTFOLD_POSTGRES_MAX_LIFETIME", 30*time.Minute),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:     getEnv("RENTFOLD_REDIS_ADDR", ""),
		Password: getEnv("RENTFOLD_REDIS_PASSWORD", ""),
		DB:       getEnvInt("RENTFOLD_REDIS_DB", 0),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		AdminSessionMaxAge:   time.Duration(getEnvInt64("ADMIN_SESSION_MAX_AGE", 1_800_000)) * time.Millisecond,
		AdminCookieName:      getEnv("RENTFOLD_ADMIN_COOKIE", "admin_session"),
		WebCookieName:        getEnv("RENTFOLD_WEB_COOKIE", "app_session"),
		SessionEncryptionKey: getEnv("RENTFOLD_SESSION_ENCRYPTION_KEY", ""),
		OIDCIssuer:           getEnv("RENTFOLD_OIDC_ISSUER", "https://accounts.google.com"),
		OIDCClientID:         getEnv("RENTFOLD_OIDC_CLIENT_ID", ""),
		OIDCClientSecret:     getEnv("RENTFOLD_OIDC_CLIENT_SECRET", ""),
		OIDCRedirectURL:      getEnv("RENTFOLD_OIDC_REDIRECT_URL", ""),
		RouteTablePath:       getEnv("RENTFOLD_ROUTE_TABLE", ""),
	}
}

func loadWebConfig() WebConfig {
	return WebConfig{
		AppURL:           getEnv("WEB_APP_URL", "http://localhost:3000"),
		Environment:      getEnv("RENTFOLD_ENV", EnvDevelopment),
		RegistrationPath: getEnv("RENTFOLD_REGISTRATION_PATH", "/auth/complete-registration"),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("RENTFOLD_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("RENTFOLD_METRICS_ENABLED", true),
	}
}

// IsProduction reports whether the configured environment is production
func (c *Config) IsProduction() bool {
	return c.Web.Environment == EnvProduction
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.OpsPort == "" {
		return fmt.Errorf("ops port is required")
	}
	if c.Server.Port == c.Server.OpsPort {
		return fmt.Errorf("server port and ops port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Auth.AdminSessionMaxAge <= 0 {
		return fmt.Errorf("admin session max age must be positive")
	}

	switch c.Web.Environment {
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("invalid environment: %s (must be development or production)", c.Web.Environment)
	}

	if c.Web.Environment == EnvProduction {
		if c.Web.AppURL == "" {
			return fmt.Errorf("WEB_APP_URL is required in production")
		}
		if c.Auth.SessionEncryptionKey == "" {
			return fmt.Errorf("session encryption key is required in production")
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
