// Package cli implements the impress command-line interface.
//
// The main commands are:
//   - serve: run the HTTP service (snapshots, asset proxy, appearance API)
//   - render: render one outfit snapshot to a file
//   - seed: import a JSON catalog document into the appearance database
//   - cache: manage the snapshot cache
//
// All commands support --verbose (-v) for debug-level logging and --config
// for a TOML configuration file.
package cli

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/outfitlab/impress/internal/config"
	"github.com/outfitlab/impress/pkg/buildinfo"
	"github.com/outfitlab/impress/pkg/cache"
	"github.com/outfitlab/impress/pkg/manifest"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "impress",
		Short:        "Impress renders virtual-pet outfit snapshots",
		Long:         `Impress composes layered virtual-pet outfit appearances and renders them as PNG snapshots, either as a long-running HTTP service or one image at a time.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to a TOML configuration file")

	root.AddCommand(c.serveCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.seedCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig reads the config file named by --config, or the defaults.
func (c *CLI) loadConfig() (config.Config, error) {
	return config.Load(c.configPath)
}

// manifestClient builds a manifest client for the configured trusted hosts,
// sharing the snapshot cache for manifest documents.
func manifestClient(cfg config.Config, cc cache.Cache) *manifest.Client {
	return manifest.NewClient(nil, cfg.Assets.TrustedHosts).WithCache(cc)
}

// newCache builds the snapshot cache backend the configuration selects.
// noCache forces the null backend regardless of configuration.
func (c *CLI) newCache(ctx context.Context, cfg config.Config, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	switch cfg.Cache.Backend {
	case "none":
		return cache.NewNullCache(), nil
	case "memory":
		return cache.NewMemoryCache(), nil
	case "redis":
		return cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
	default: // "file", enforced by config validation
		dir, err := cfg.CacheDir()
		if err != nil {
			return cache.NewNullCache(), nil
		}
		fc, err := cache.NewFileCache(dir)
		if err != nil {
			return nil, err
		}
		return fc, nil
	}
}
