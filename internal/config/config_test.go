package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "impress.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":8080" {
		t.Errorf("Listen = %q, want :8080", cfg.Listen)
	}
	if cfg.Render.PoolSize != 4 {
		t.Errorf("PoolSize = %d, want 4", cfg.Render.PoolSize)
	}
	if cfg.Render.AcquireTimeout.Std() != 15*time.Second {
		t.Errorf("AcquireTimeout = %s, want 15s", cfg.Render.AcquireTimeout.Std())
	}
	if cfg.Render.RenderTimeout.Std() != 10*time.Second {
		t.Errorf("RenderTimeout = %s, want 10s", cfg.Render.RenderTimeout.Std())
	}
	if cfg.Render.RecycleInterval.Std() != time.Minute {
		t.Errorf("RecycleInterval = %s, want 1m", cfg.Render.RecycleInterval.Std())
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
listen = ":9090"

[render]
pool_size = 8
acquire_timeout = "5s"

[assets]
trusted_hosts = ["assets.example.org"]

[cache]
backend = "redis"
redis_addr = "localhost:6379"

[storage]
path = "/var/lib/impress/catalog.db"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":9090" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.Render.PoolSize != 8 {
		t.Errorf("PoolSize = %d, want 8", cfg.Render.PoolSize)
	}
	if cfg.Render.AcquireTimeout.Std() != 5*time.Second {
		t.Errorf("AcquireTimeout = %s, want 5s", cfg.Render.AcquireTimeout.Std())
	}
	// Unset keys keep their defaults.
	if cfg.Render.RenderTimeout.Std() != 10*time.Second {
		t.Errorf("RenderTimeout = %s, want default 10s", cfg.Render.RenderTimeout.Std())
	}
	if len(cfg.Assets.TrustedHosts) != 1 || cfg.Assets.TrustedHosts[0] != "assets.example.org" {
		t.Errorf("TrustedHosts = %v", cfg.Assets.TrustedHosts)
	}
	if cfg.Cache.Backend != "redis" {
		t.Errorf("Backend = %q", cfg.Cache.Backend)
	}
	if cfg.Storage.Path != "/var/lib/impress/catalog.db" {
		t.Errorf("Storage.Path = %q", cfg.Storage.Path)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `listne = ":8080"`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unknown key") {
		t.Errorf("Load = %v, want unknown key error", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen", func(c *Config) { c.Listen = "" }},
		{"zero pool size", func(c *Config) { c.Render.PoolSize = 0 }},
		{"negative acquire timeout", func(c *Config) { c.Render.AcquireTimeout = duration(-time.Second) }},
		{"zero render timeout", func(c *Config) { c.Render.RenderTimeout = 0 }},
		{"unknown cache backend", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"redis without addr", func(c *Config) { c.Cache.Backend = "redis" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate should fail")
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() = %v, want nil", err)
	}
}
