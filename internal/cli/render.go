package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/outfitlab/impress/pkg/render"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output  string // output file path
	size    int    // snapshot size in pixels
	noCache bool   // bypass the snapshot cache
}

// renderCommand creates the render command for one-shot snapshots.
func (c *CLI) renderCommand() *cobra.Command {
	opts := renderOpts{
		output: "snapshot.png",
		size:   600,
	}

	cmd := &cobra.Command{
		Use:   "render [libraryUrl]",
		Short: "Render one outfit snapshot to a PNG file",
		Long:  `Render fetches the layer manifest at the given library URL, composites the layers at the requested size, and writes the PNG to a file.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(cmd, args[0], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", opts.output, "output file path")
	cmd.Flags().IntVar(&opts.size, "size", opts.size, fmt.Sprintf("snapshot size in pixels %v", render.AllowedSizes))
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "bypass the snapshot cache")

	return cmd
}

func (c *CLI) runRender(cmd *cobra.Command, libraryURL string, opts *renderOpts) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	snapCache, err := c.newCache(cmd.Context(), cfg, opts.noCache)
	if err != nil {
		return fmt.Errorf("open snapshot cache: %w", err)
	}
	defer snapCache.Close()

	// One-shot: a single pool context, no periodic recycling.
	pools := render.NewManager(render.Config{
		Capacity:        1,
		AcquireTimeout:  cfg.Render.AcquireTimeout.Std(),
		RenderTimeout:   cfg.Render.RenderTimeout.Std(),
		RecycleInterval: -1,
	}, manifestClient(cfg, snapCache), c.Logger)
	defer pools.Close()

	snapshots := render.NewSnapshotter(pools, snapCache, c.Logger)

	spinner := newSpinnerWithContext(cmd.Context(), "Rendering snapshot")
	spinner.Start()
	data, err := snapshots.Snapshot(cmd.Context(), libraryURL, opts.size)
	if err != nil {
		spinner.StopWithError("Render failed")
		return err
	}
	spinner.Stop()

	if err := os.WriteFile(opts.output, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", opts.output, err)
	}

	printSuccess("Rendered %dx%d snapshot", opts.size, opts.size)
	printFile(opts.output)
	printDetail("%d bytes", len(data))
	return nil
}
