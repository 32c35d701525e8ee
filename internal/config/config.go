// Package config loads server configuration from an optional file plus
// PAINTOPS_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Forecast ForecastConfig `mapstructure:"forecast"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// ServerConfig holds the HTTP listener configuration
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       float64       `mapstructure:"rate_limit"`
	RateBurst       int           `mapstructure:"rate_burst"`
}

// StoreConfig selects and configures the persistence backend
type StoreConfig struct {
	Backend      string `mapstructure:"backend"` // memory or postgres
	SnapshotPath string `mapstructure:"snapshot_path"`
	PostgresDSN  string `mapstructure:"postgres_dsn"`
}

// CacheConfig selects and configures the forecast cache backend
type CacheConfig struct {
	Backend       string `mapstructure:"backend"` // memory or redis
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// ForecastConfig bounds the baseline provider
type ForecastConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	DefaultHorizon int           `mapstructure:"default_horizon"`
	MaxChartPoints int           `mapstructure:"max_chart_points"`
}

// AuditConfig locates the audit trail
type AuditConfig struct {
	Dir string `mapstructure:"dir"`
}

// MetricsConfig guards the Prometheus endpoint
type MetricsConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// TracingConfig configures OTLP trace export
type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// Load reads configuration from an optional file and environment variables.
// An empty path loads defaults plus environment only.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("PAINTOPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.rate_limit", 50.0)
	v.SetDefault("server.rate_burst", 100)

	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.snapshot_path", "./data/paintops.json")
	v.SetDefault("store.postgres_dsn", "")

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_db", 0)

	v.SetDefault("forecast.timeout", "5s")
	v.SetDefault("forecast.default_horizon", 30)
	v.SetDefault("forecast.max_chart_points", 120)

	v.SetDefault("audit.dir", "./data/audit")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4317")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.RateLimit <= 0 {
		return fmt.Errorf("server.rate_limit must be positive")
	}
	if c.Server.RateBurst < 1 {
		return fmt.Errorf("server.rate_burst must be at least 1")
	}

	switch c.Store.Backend {
	case "memory":
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("store.postgres_dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("store.backend must be one of: memory, postgres")
	}

	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("cache.backend must be one of: memory, redis")
	}

	if c.Forecast.Timeout < time.Second {
		return fmt.Errorf("forecast.timeout must be at least 1 second")
	}
	if c.Forecast.DefaultHorizon < 7 || c.Forecast.DefaultHorizon > 120 {
		return fmt.Errorf("forecast.default_horizon must be between 7 and 120")
	}
	if c.Forecast.MaxChartPoints < 2 {
		return fmt.Errorf("forecast.max_chart_points must be at least 2")
	}

	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing.endpoint is required when tracing is enabled")
	}

	return nil
}
