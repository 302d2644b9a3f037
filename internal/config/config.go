// Package config loads the service configuration from a TOML file.
//
// Every operational constant — pool size, timeouts, recycle interval,
// trusted asset hosts, cache backend — is configuration. Defaults match
// the production values the service has run with, so an empty file is a
// valid configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration for the impress service.
type Config struct {
	// Listen is the HTTP listen address, e.g. ":8080".
	Listen string `toml:"listen"`

	Render  RenderConfig  `toml:"render"`
	Assets  AssetsConfig  `toml:"assets"`
	Cache   CacheConfig   `toml:"cache"`
	Storage StorageConfig `toml:"storage"`
}

// RenderConfig holds the render worker pool constants.
type RenderConfig struct {
	PoolSize        int      `toml:"pool_size"`
	AcquireTimeout  duration `toml:"acquire_timeout"`
	RenderTimeout   duration `toml:"render_timeout"`
	RecycleInterval duration `toml:"recycle_interval"`
}

// AssetsConfig holds the trusted upstream asset hosts. Manifest URLs,
// layer image URLs, and proxied URLs must all live on one of these hosts.
type AssetsConfig struct {
	TrustedHosts []string `toml:"trusted_hosts"`
}

// CacheConfig selects and configures the snapshot cache backend.
type CacheConfig struct {
	// Backend is one of "file", "memory", "redis", or "none".
	Backend string `toml:"backend"`

	// Dir is the cache directory for the file backend. Empty means
	// ~/.cache/impress/.
	Dir string `toml:"dir"`

	// Redis connection settings, used when Backend is "redis".
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

// StorageConfig locates the appearance catalog database.
type StorageConfig struct {
	Path string `toml:"path"`
}

// duration is a time.Duration that unmarshals from TOML strings like
// "15s" or "1m30s".
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(parsed)
	return nil
}

// Std returns the duration as a time.Duration.
func (d duration) Std() time.Duration { return time.Duration(d) }

// Default returns the configuration the service runs with when no file or
// key overrides it.
func Default() Config {
	return Config{
		Listen: ":8080",
		Render: RenderConfig{
			PoolSize:        4,
			AcquireTimeout:  duration(15 * time.Second),
			RenderTimeout:   duration(10 * time.Second),
			RecycleInterval: duration(time.Minute),
		},
		Cache: CacheConfig{
			Backend: "file",
		},
		Storage: StorageConfig{
			Path: "impress.db",
		},
	}
}

// Load reads the TOML file at path, applies it over the defaults, and
// validates the result. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		meta, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("load config %s: unknown key %q", path, undecoded[0].String())
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.Render.PoolSize <= 0 {
		return fmt.Errorf("render.pool_size must be positive, got %d", c.Render.PoolSize)
	}
	if c.Render.AcquireTimeout.Std() <= 0 {
		return fmt.Errorf("render.acquire_timeout must be positive")
	}
	if c.Render.RenderTimeout.Std() <= 0 {
		return fmt.Errorf("render.render_timeout must be positive")
	}
	switch c.Cache.Backend {
	case "file", "memory", "none":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	return nil
}

// CacheDir returns the file-cache directory, defaulting to the XDG cache
// home under "impress".
func (c Config) CacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return c.Cache.Dir, nil
	}
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, "impress"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", "impress"), nil
}
