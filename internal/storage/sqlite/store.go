// Package sqlite provides a SQLite-backed appearance catalog.
package sqlite

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/outfitlab/impress/internal/storage"
	"github.com/outfitlab/impress/pkg/compositor"
	"github.com/outfitlab/impress/pkg/errors"
)

// Store persists the appearance catalog in SQLite.
type Store struct {
	sqlDB *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS zones (
  id    INTEGER PRIMARY KEY,
  label TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pet_appearances (
  id         INTEGER PRIMARY KEY AUTOINCREMENT,
  species_id INTEGER NOT NULL,
  color_id   INTEGER NOT NULL,
  body_id    INTEGER NOT NULL,
  UNIQUE (species_id, color_id)
);

CREATE TABLE IF NOT EXISTS items (
  id            INTEGER PRIMARY KEY,
  name          TEXT NOT NULL,
  thumbnail_url TEXT NOT NULL DEFAULT ''
);

-- body_id 0 means the appearance fits every body.
CREATE TABLE IF NOT EXISTS item_appearances (
  id      INTEGER PRIMARY KEY AUTOINCREMENT,
  item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
  body_id INTEGER NOT NULL,
  UNIQUE (item_id, body_id)
);

-- Exactly one of pet_appearance_id / item_appearance_id is set.
CREATE TABLE IF NOT EXISTS appearance_layers (
  id                 INTEGER PRIMARY KEY AUTOINCREMENT,
  pet_appearance_id  INTEGER REFERENCES pet_appearances(id) ON DELETE CASCADE,
  item_appearance_id INTEGER REFERENCES item_appearances(id) ON DELETE CASCADE,
  swf_asset_id       INTEGER NOT NULL DEFAULT 0,
  zone_id            INTEGER NOT NULL,
  depth              INTEGER NOT NULL,
  image_url          TEXT NOT NULL DEFAULT '',
  renderable         INTEGER NOT NULL DEFAULT 1,
  CHECK ((pet_appearance_id IS NULL) <> (item_appearance_id IS NULL))
);

CREATE INDEX IF NOT EXISTS idx_layers_pet  ON appearance_layers(pet_appearance_id);
CREATE INDEX IF NOT EXISTS idx_layers_item ON appearance_layers(item_appearance_id);

CREATE TABLE IF NOT EXISTS item_zone_restrictions (
  item_appearance_id INTEGER NOT NULL REFERENCES item_appearances(id) ON DELETE CASCADE,
  zone_id            INTEGER NOT NULL,
  PRIMARY KEY (item_appearance_id, zone_id)
);
`

// Open opens a SQLite catalog store at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// PetAppearance returns the base appearance and body ID for a species/color
// pairing.
func (s *Store) PetAppearance(ctx context.Context, speciesID, colorID int64) (compositor.Appearance, int64, error) {
	if err := ctx.Err(); err != nil {
		return compositor.Appearance{}, 0, err
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, body_id FROM pet_appearances WHERE species_id = ? AND color_id = ?`,
		speciesID, colorID,
	)
	var appearanceID, bodyID int64
	if err := row.Scan(&appearanceID, &bodyID); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return compositor.Appearance{}, 0, errors.New(errors.ErrCodeNotFound,
				fmt.Sprintf("no appearance for species %d color %d", speciesID, colorID))
		}
		return compositor.Appearance{}, 0, fmt.Errorf("get pet appearance: %w", err)
	}

	layers, err := s.layers(ctx, "pet_appearance_id", appearanceID)
	if err != nil {
		return compositor.Appearance{}, 0, fmt.Errorf("get pet appearance: %w", err)
	}
	return compositor.Appearance{Layers: layers}, bodyID, nil
}

// ItemAppearances returns one appearance per requested item, preserving the
// caller's order. Appearances modeled for the exact body win over fits-all
// rows; items with neither yield an empty appearance.
func (s *Store) ItemAppearances(ctx context.Context, itemIDs []int64, bodyID int64) ([]compositor.Appearance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]compositor.Appearance, 0, len(itemIDs))
	for _, itemID := range itemIDs {
		row := s.sqlDB.QueryRowContext(
			ctx,
			`SELECT id FROM item_appearances
			  WHERE item_id = ? AND body_id IN (?, 0)
			  ORDER BY CASE body_id WHEN 0 THEN 1 ELSE 0 END
			  LIMIT 1`,
			itemID, bodyID,
		)
		var appearanceID int64
		if err := row.Scan(&appearanceID); err != nil {
			if stderrors.Is(err, sql.ErrNoRows) {
				out = append(out, compositor.Appearance{})
				continue
			}
			return nil, fmt.Errorf("get item %d appearance: %w", itemID, err)
		}

		layers, err := s.layers(ctx, "item_appearance_id", appearanceID)
		if err != nil {
			return nil, fmt.Errorf("get item %d appearance: %w", itemID, err)
		}
		restricted, err := s.restrictedZones(ctx, appearanceID)
		if err != nil {
			return nil, fmt.Errorf("get item %d appearance: %w", itemID, err)
		}
		out = append(out, compositor.Appearance{Layers: layers, RestrictedZones: restricted})
	}
	return out, nil
}

// Items returns metadata for the given item IDs, skipping unknown IDs.
func (s *Store) Items(ctx context.Context, ids []int64) ([]storage.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, name, thumbnail_url FROM items WHERE id IN (`+placeholders+`) ORDER BY id ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []storage.Item
	for rows.Next() {
		var item storage.Item
		if err := rows.Scan(&item.ID, &item.Name, &item.ThumbnailURL); err != nil {
			return nil, fmt.Errorf("list items: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// ImportCatalog upserts a catalog document in one transaction. Existing
// appearances for the same species/color or item/body are replaced whole,
// so re-importing an updated dump converges on its contents.
func (s *Store) ImportCatalog(ctx context.Context, c storage.Catalog) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("import catalog: %w", err)
	}
	defer tx.Rollback()

	for _, z := range c.Zones {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO zones (id, label) VALUES (?, ?)
			 ON CONFLICT(id) DO UPDATE SET label = excluded.label`,
			z.ID, z.Label,
		); err != nil {
			return fmt.Errorf("import zone %d: %w", z.ID, err)
		}
	}

	for _, pa := range c.PetAppearances {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM pet_appearances WHERE species_id = ? AND color_id = ?`,
			pa.SpeciesID, pa.ColorID,
		); err != nil {
			return fmt.Errorf("import pet appearance: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO pet_appearances (species_id, color_id, body_id) VALUES (?, ?, ?)`,
			pa.SpeciesID, pa.ColorID, pa.BodyID,
		)
		if err != nil {
			return fmt.Errorf("import pet appearance: %w", err)
		}
		appearanceID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("import pet appearance: %w", err)
		}
		for _, l := range pa.Layers {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO appearance_layers
				   (pet_appearance_id, swf_asset_id, zone_id, depth, image_url, renderable)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				appearanceID, l.SWFAssetID, l.ZoneID, l.Depth, l.ImageURL, boolToInt(l.Renderable),
			); err != nil {
				return fmt.Errorf("import pet layer: %w", err)
			}
		}
	}

	for _, item := range c.Items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO items (id, name, thumbnail_url) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET name = excluded.name, thumbnail_url = excluded.thumbnail_url`,
			item.ID, item.Name, item.ThumbnailURL,
		); err != nil {
			return fmt.Errorf("import item %d: %w", item.ID, err)
		}
		for _, ia := range item.Appearances {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM item_appearances WHERE item_id = ? AND body_id = ?`,
				item.ID, ia.BodyID,
			); err != nil {
				return fmt.Errorf("import item %d appearance: %w", item.ID, err)
			}
			res, err := tx.ExecContext(ctx,
				`INSERT INTO item_appearances (item_id, body_id) VALUES (?, ?)`,
				item.ID, ia.BodyID,
			)
			if err != nil {
				return fmt.Errorf("import item %d appearance: %w", item.ID, err)
			}
			appearanceID, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("import item %d appearance: %w", item.ID, err)
			}
			for _, l := range ia.Layers {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO appearance_layers
					   (item_appearance_id, swf_asset_id, zone_id, depth, image_url, renderable)
					 VALUES (?, ?, ?, ?, ?, ?)`,
					appearanceID, l.SWFAssetID, l.ZoneID, l.Depth, l.ImageURL, boolToInt(l.Renderable),
				); err != nil {
					return fmt.Errorf("import item %d layer: %w", item.ID, err)
				}
			}
			for _, zone := range ia.RestrictedZones {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO item_zone_restrictions (item_appearance_id, zone_id) VALUES (?, ?)`,
					appearanceID, zone,
				); err != nil {
					return fmt.Errorf("import item %d restriction: %w", item.ID, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("import catalog: %w", err)
	}
	return nil
}

func (s *Store) layers(ctx context.Context, column string, appearanceID int64) ([]compositor.Layer, error) {
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, swf_asset_id, zone_id, depth, image_url, renderable
		   FROM appearance_layers
		  WHERE `+column+` = ?
		  ORDER BY id ASC`,
		appearanceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var layers []compositor.Layer
	for rows.Next() {
		var l compositor.Layer
		var renderable int
		if err := rows.Scan(&l.ID, &l.SWFAssetID, &l.Zone, &l.Depth, &l.ImageURL, &renderable); err != nil {
			return nil, err
		}
		l.Renderable = renderable != 0
		layers = append(layers, l)
	}
	return layers, rows.Err()
}

func (s *Store) restrictedZones(ctx context.Context, appearanceID int64) ([]int, error) {
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT zone_id FROM item_zone_restrictions WHERE item_appearance_id = ? ORDER BY zone_id ASC`,
		appearanceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var zones []int
	for rows.Next() {
		var zone int
		if err := rows.Scan(&zone); err != nil {
			return nil, err
		}
		zones = append(zones, zone)
	}
	return zones, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ storage.Store = (*Store)(nil)
