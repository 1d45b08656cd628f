package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Storage  StorageConfig
	Sync     SyncConfig
	Logging  LoggingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string
	Environment     string
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds the realtime registry connection configuration
type RedisConfig struct {
	URL string
}

// AuthConfig holds token verification configuration
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// StorageConfig holds Azure Blob Storage configuration for reports
type StorageConfig struct {
	AccountName     string
	AccountKey      string
	ReportContainer string
}

// SyncConfig tunes the medication event flusher
type SyncConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string // json or console
}

// Load reads configuration from environment variables and defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)
	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.shutdowntimeout", 30*time.Second)

	v.SetDefault("database.maxopenconns", 25)
	v.SetDefault("database.connmaxlifetime", 5*time.Minute)

	v.SetDefault("auth.tokenttl", 24*time.Hour)

	v.SetDefault("storage.reportcontainer", "adherence-reports")

	v.SetDefault("sync.interval", 5*time.Second)
	v.SetDefault("sync.batchsize", 50)
	v.SetDefault("sync.maxattempts", 10)
	v.SetDefault("sync.backoffbase", 2*time.Second)
	v.SetDefault("sync.backoffcap", 60*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// bindEnvVars binds environment variables to config keys
func bindEnvVars(v *viper.Viper) {
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.environment", "ENV", "ENVIRONMENT")

	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("redis.url", "REDIS_URL")

	v.BindEnv("auth.jwtsecret", "JWT_SECRET")

	v.BindEnv("storage.accountname", "AZURE_STORAGE_ACCOUNT_NAME")
	v.BindEnv("storage.accountkey", "AZURE_STORAGE_ACCOUNT_KEY")
	v.BindEnv("storage.reportcontainer", "AZURE_STORAGE_REPORT_CONTAINER")

	v.BindEnv("logging.level", "LOG_LEVEL")
	v.BindEnv("logging.format", "LOG_FORMAT")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("redis.url is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwtsecret is required")
	}

	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("sync.batchsize must be positive")
	}

	if c.Sync.BackoffBase <= 0 || c.Sync.BackoffCap < c.Sync.BackoffBase {
		return fmt.Errorf("sync backoff bounds are invalid")
	}

	return nil
}
