package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the main structure mapping the entire application configuration.
// This struct uses mapstructure tags to map YAML keys to Go struct fields.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`     // HTTP server port (default: 8080)
	BaseURL         string        `mapstructure:"base_url"` // Base URL for printing short links
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig selects the Store backend.
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // "sqlite" or "postgres"
	Name         string `mapstructure:"name"`   // SQLite file name or Postgres DSN
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// LogConfig configures the zap logger. File is optional; when set, logs are
// also written there and rotated.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// CacheConfig configures the optional Redis lookup cache.
type CacheConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr"` // empty disables the cache
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	Prefix        string        `mapstructure:"prefix"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// AnalyticsConfig configures click accounting.
type AnalyticsConfig struct {
	// Timezone fixes the midnight boundary used for clicksToday.
	// "Local" follows the server wall clock.
	Timezone         string `mapstructure:"timezone"`
	RetryBufferSize  int    `mapstructure:"retry_buffer_size"`
	RetryWorkerCount int    `mapstructure:"retry_worker_count"`
	RetryMaxAttempts int    `mapstructure:"retry_max_attempts"`
}

// MonitorConfig configures the link target health monitor.
type MonitorConfig struct {
	IntervalMinutes int `mapstructure:"interval_minutes"` // 0 disables the monitor
}

// Enabled reports whether the Redis cache should be used.
func (c CacheConfig) Enabled() bool {
	return c.RedisAddr != ""
}

// Location resolves the configured analytics timezone.
func (c AnalyticsConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid analytics.timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Interval returns the monitor period, zero when disabled.
func (c MonitorConfig) Interval() time.Duration {
	if c.IntervalMinutes <= 0 {
		return 0
	}
	return time.Duration(c.IntervalMinutes) * time.Minute
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.name", "shortlinks.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_age_days", 7)
	v.SetDefault("log.max_backups", 7)

	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.prefix", "shortlinks:link:")
	v.SetDefault("cache.ttl", time.Hour)

	v.SetDefault("analytics.timezone", "Local")
	v.SetDefault("analytics.retry_buffer_size", 1000)
	v.SetDefault("analytics.retry_worker_count", 2)
	v.SetDefault("analytics.retry_max_attempts", 5)

	v.SetDefault("monitor.interval_minutes", 0)
}

// LoadConfig loads the application configuration using Viper.
// Precedence: environment (including a .env file), then the YAML file at path
// (or ./configs/config.yaml when path is empty), then defaults.
// A missing configuration file is not an error.
func LoadConfig(path string) (*Config, error) {
	// .env is optional, real environment variables win over it
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	// e.g., "server.port" becomes "SERVER_PORT"
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("./configs")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	if _, err := c.Analytics.Location(); err != nil {
		return err
	}
	if c.Analytics.RetryWorkerCount < 1 {
		return fmt.Errorf("analytics.retry_worker_count must be at least 1")
	}
	return nil
}
