package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Server.Addr != ":8000" {
		t.Errorf("addr = %q, want :8000", cfg.Server.Addr)
	}
	if cfg.Store.Backend != "memory" || cfg.Cache.Backend != "memory" {
		t.Errorf("backends = %q/%q, want memory/memory", cfg.Store.Backend, cfg.Cache.Backend)
	}
	if cfg.Forecast.DefaultHorizon != 30 {
		t.Errorf("default horizon = %d, want 30", cfg.Forecast.DefaultHorizon)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
server:
  addr: ":9000"
store:
  backend: postgres
  postgres_dsn: "postgres://localhost/paintops"
forecast:
  default_horizon: 60
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("addr = %q, want :9000", cfg.Server.Addr)
	}
	if cfg.Store.Backend != "postgres" {
		t.Errorf("backend = %q, want postgres", cfg.Store.Backend)
	}
	if cfg.Forecast.DefaultHorizon != 60 {
		t.Errorf("horizon = %d, want 60", cfg.Forecast.DefaultHorizon)
	}
	// Untouched sections keep their defaults.
	if cfg.Cache.Backend != "memory" {
		t.Errorf("cache backend = %q, want memory", cfg.Cache.Backend)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad store backend", func(c *Config) { c.Store.Backend = "sqlite" }},
		{"postgres without dsn", func(c *Config) { c.Store.Backend = "postgres" }},
		{"bad cache backend", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"redis without addr", func(c *Config) { c.Cache.Backend = "redis"; c.Cache.RedisAddr = "" }},
		{"horizon too large", func(c *Config) { c.Forecast.DefaultHorizon = 365 }},
		{"zero rate limit", func(c *Config) { c.Server.RateLimit = 0 }},
		{"tracing without endpoint", func(c *Config) { c.Tracing.Enabled = true; c.Tracing.Endpoint = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("Validate accepted invalid config")
			}
		})
	}
}
