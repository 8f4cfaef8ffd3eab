package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tradegate/tradegate/pkg/observability"
	"github.com/tradegate/tradegate/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Auth          AuthConfig          `yaml:"auth"`
	Storage       storage.Config      `yaml:"storage"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL          string        `yaml:"url"`
	ReplicaURLs  string        `yaml:"replica_urls"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	ConnLifetime time.Duration `yaml:"conn_lifetime"`
}

// RedisConfig holds Redis configuration. Redis is optional; rate limiting
// falls back to per-process buckets without it.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AuthConfig holds session and OIDC configuration
type AuthConfig struct {
	SessionTTL      time.Duration `yaml:"session_ttl"`
	BcryptCost      int           `yaml:"bcrypt_cost"`
	OIDCIssuer      string        `yaml:"oidc_issuer"`
	OIDCClientID    string        `yaml:"oidc_client_id"`
	OIDCClientKey   string        `yaml:"oidc_client_secret"`
	OIDCRedirectURL string        `yaml:"oidc_redirect_url"`
}

// RateLimitConfig holds request rate limiting settings
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled"`
	RequestsPerWindow int           `yaml:"requests_per_window"`
	Window            time.Duration `yaml:"window"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"`
}

// LoadConfig loads configuration. Environment variables are the primary
// source; a YAML file named by TRADEGATE_CONFIG_FILE supplies defaults that
// the environment overrides.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("TRADEGATE_CONFIG_FILE"); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}
	loadEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
		},
		Database: DatabaseConfig{
			MaxOpenConns: 25,
			MaxIdleConns: 5,
			ConnLifetime: 5 * time.Minute,
		},
		Auth: AuthConfig{
			SessionTTL: 24 * time.Hour,
			BcryptCost: 12,
		},
		Storage: storage.DefaultConfig(),
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerWindow: 300,
			Window:            time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelServiceName:    "tradegate",
			OTelServiceVersion: "dev",
			OTelInsecure:       true,
		},
	}
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func loadEnv(cfg *Config) {
	cfg.Server.Host = getEnv("TRADEGATE_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnv("TRADEGATE_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = getEnvDuration("TRADEGATE_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvDuration("TRADEGATE_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = getEnvDuration("TRADEGATE_IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.ShutdownTimeout = getEnvDuration("TRADEGATE_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.HealthPort = getEnv("TRADEGATE_HEALTH_PORT", cfg.Server.HealthPort)

	cfg.Database.URL = getEnv("TRADEGATE_POSTGRES_URL", cfg.Database.URL)
	cfg.Database.ReplicaURLs = getEnv("TRADEGATE_POSTGRES_REPLICA_URLS", cfg.Database.ReplicaURLs)
	cfg.Database.MaxOpenConns = getEnvInt("TRADEGATE_POSTGRES_MAX_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = getEnvInt("TRADEGATE_POSTGRES_IDLE_CONNS", cfg.Database.MaxIdleConns)
	cfg.Database.ConnLifetime = getEnvDuration("TRADEGATE_POSTGRES_CONN_LIFETIME", cfg.Database.ConnLifetime)

	cfg.Redis.Addr = getEnv("TRADEGATE_REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("TRADEGATE_REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvInt("TRADEGATE_REDIS_DB", cfg.Redis.DB)

	cfg.Auth.SessionTTL = getEnvDuration("TRADEGATE_SESSION_TTL", cfg.Auth.SessionTTL)
	cfg.Auth.BcryptCost = getEnvInt("TRADEGATE_BCRYPT_COST", cfg.Auth.BcryptCost)
	cfg.Auth.OIDCIssuer = getEnv("TRADEGATE_OIDC_ISSUER", cfg.Auth.OIDCIssuer)
	cfg.Auth.OIDCClientID = getEnv("TRADEGATE_OIDC_CLIENT_ID", cfg.Auth.OIDCClientID)
	cfg.Auth.OIDCClientKey = getEnv("TRADEGATE_OIDC_CLIENT_SECRET", cfg.Auth.OIDCClientKey)
	cfg.Auth.OIDCRedirectURL = getEnv("TRADEGATE_OIDC_REDIRECT_URL", cfg.Auth.OIDCRedirectURL)

	if t := getEnv("TRADEGATE_STORAGE_TYPE", ""); t != "" {
		cfg.Storage.Type = t
	}
	if root := getEnv("TRADEGATE_FILESYSTEM_ROOT", ""); root != "" {
		cfg.Storage.FilesystemRoot = root
	}
	cfg.Storage.S3Endpoint = getEnv("TRADEGATE_S3_ENDPOINT", cfg.Storage.S3Endpoint)
	cfg.Storage.S3Region = getEnv("TRADEGATE_S3_REGION", cfg.Storage.S3Region)
	cfg.Storage.S3Bucket = getEnv("TRADEGATE_S3_BUCKET", cfg.Storage.S3Bucket)
	cfg.Storage.S3AccessKey = getEnv("TRADEGATE_S3_ACCESS_KEY", cfg.Storage.S3AccessKey)
	cfg.Storage.S3SecretKey = getEnv("TRADEGATE_S3_SECRET_KEY", cfg.Storage.S3SecretKey)
	cfg.Storage.S3UsePathStyle = getEnvBool("TRADEGATE_S3_USE_PATH_STYLE", cfg.Storage.S3UsePathStyle)
	cfg.Storage.SignedURLTTL = getEnvDuration("TRADEGATE_SIGNED_URL_TTL", cfg.Storage.SignedURLTTL)

	cfg.RateLimit.Enabled = getEnvBool("TRADEGATE_RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.RequestsPerWindow = getEnvInt("TRADEGATE_RATE_LIMIT_REQUESTS", cfg.RateLimit.RequestsPerWindow)
	cfg.RateLimit.Window = getEnvDuration("TRADEGATE_RATE_LIMIT_WINDOW", cfg.RateLimit.Window)

	cfg.Observability.LogLevel = getEnv("TRADEGATE_LOG_LEVEL", cfg.Observability.LogLevel)
	cfg.Observability.MetricsEnabled = getEnvBool("TRADEGATE_METRICS_ENABLED", cfg.Observability.MetricsEnabled)
	cfg.Observability.OTelEnabled = getEnvBool("TRADEGATE_OTEL_ENABLED", cfg.Observability.OTelEnabled)
	cfg.Observability.OTelEndpoint = getEnv("TRADEGATE_OTEL_ENDPOINT", cfg.Observability.OTelEndpoint)
	cfg.Observability.OTelServiceName = getEnv("TRADEGATE_OTEL_SERVICE_NAME", cfg.Observability.OTelServiceName)
	cfg.Observability.OTelServiceVersion = getEnv("TRADEGATE_OTEL_SERVICE_VERSION", cfg.Observability.OTelServiceVersion)
	cfg.Observability.OTelInsecure = getEnvBool("TRADEGATE_OTEL_INSECURE", cfg.Observability.OTelInsecure)
}

// Validate checks configuration consistency
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("TRADEGATE_POSTGRES_URL is required")
	}
	if c.Server.Port == "" {
		return fmt.Errorf("server port must not be empty")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("bcrypt cost must be between 4 and 31")
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if c.Observability.OTelEnabled && c.Observability.OTelEndpoint == "" {
		return fmt.Errorf("OTel endpoint is required when OTel is enabled")
	}
	return nil
}

// LogLevel parses the configured log level
func (c *ObservabilityConfig) ParsedLogLevel() observability.LogLevel {
	return observability.ParseLogLevel(c.LogLevel)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
