package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/outfitlab/impress/internal/storage"
	"github.com/outfitlab/impress/internal/storage/sqlite"
)

// seedCommand creates the seed command, which imports a JSON catalog
// document into the appearance database.
func (c *CLI) seedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed [catalog.json]",
		Short: "Import a catalog document into the appearance database",
		Long:  `Seed reads a JSON catalog document (zones, pet appearances, items) and upserts it into the SQLite appearance database. Re-running with an updated document converges on its contents.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read catalog: %w", err)
			}
			var catalog storage.Catalog
			if err := json.Unmarshal(data, &catalog); err != nil {
				return fmt.Errorf("parse catalog: %w", err)
			}

			store, err := sqlite.Open(cfg.Storage.Path)
			if err != nil {
				return fmt.Errorf("open catalog database: %w", err)
			}
			defer store.Close()

			prog := newProgress(c.Logger)
			if err := store.ImportCatalog(cmd.Context(), catalog); err != nil {
				return err
			}
			prog.done(fmt.Sprintf("Imported %d zones, %d pet appearances, %d items",
				len(catalog.Zones), len(catalog.PetAppearances), len(catalog.Items)))

			printSuccess("Catalog imported")
			printDetail("Database: %s", cfg.Storage.Path)
			return nil
		},
	}
}
