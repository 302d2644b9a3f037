package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/outfitlab/impress/internal/server"
	"github.com/outfitlab/impress/internal/storage/sqlite"
	"github.com/outfitlab/impress/pkg/render"
)

// serveCommand creates the serve command, the long-running HTTP service.
func (c *CLI) serveCommand() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the outfit snapshot HTTP service",
		Long:  `Serve runs the HTTP API: outfit snapshot rendering backed by the render worker pool, the trusted asset proxy, and catalog appearance reads.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}
			if len(cfg.Assets.TrustedHosts) == 0 {
				printWarning("No trusted asset hosts configured; every snapshot and proxy request will be rejected")
			}

			store, err := sqlite.Open(cfg.Storage.Path)
			if err != nil {
				return fmt.Errorf("open catalog: %w", err)
			}
			defer store.Close()

			snapCache, err := c.newCache(cmd.Context(), cfg, false)
			if err != nil {
				return fmt.Errorf("open snapshot cache: %w", err)
			}
			defer snapCache.Close()

			manifests := manifestClient(cfg, snapCache)
			pools := render.NewManager(render.Config{
				Capacity:        cfg.Render.PoolSize,
				AcquireTimeout:  cfg.Render.AcquireTimeout.Std(),
				RenderTimeout:   cfg.Render.RenderTimeout.Std(),
				RecycleInterval: cfg.Render.RecycleInterval.Std(),
			}, manifests, c.Logger)
			pools.Start()
			defer pools.Close()

			srv := server.New(server.Options{
				Listen:       cfg.Listen,
				Snapshots:    render.NewSnapshotter(pools, snapCache, c.Logger),
				Store:        store,
				Assets:       manifests.HTTP(),
				TrustedHosts: cfg.Assets.TrustedHosts,
				Logger:       c.Logger,
			})

			c.Logger.Info("listening",
				"addr", cfg.Listen,
				"pool_size", cfg.Render.PoolSize,
				"cache", cfg.Cache.Backend,
			)
			return srv.ListenAndServe(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config)")

	return cmd
}
