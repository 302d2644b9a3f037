// Package storage defines the appearance catalog: the relational data the
// compositor reads when a client asks what a pet wearing a set of items
// looks like.
package storage

import (
	"context"

	"github.com/outfitlab/impress/pkg/compositor"
)

// Item is catalog metadata for a wearable item.
type Item struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// Store is the appearance catalog interface.
type Store interface {
	// PetAppearance returns the base biology appearance and the body ID
	// for a species/color pairing. Unmodeled pairings return a NOT_FOUND
	// error.
	PetAppearance(ctx context.Context, speciesID, colorID int64) (compositor.Appearance, int64, error)

	// ItemAppearances returns one appearance per requested item, in the
	// caller-supplied order. An item with no appearance for the body
	// yields an empty appearance: it contributes nothing, but keeps its
	// position so composition order matches the worn order. Rows modeled
	// for the exact body win over fits-all-bodies rows (body 0).
	ItemAppearances(ctx context.Context, itemIDs []int64, bodyID int64) ([]compositor.Appearance, error)

	// Items returns metadata for the given item IDs, in catalog order.
	// Unknown IDs are silently skipped.
	Items(ctx context.Context, ids []int64) ([]Item, error)

	// ImportCatalog upserts a catalog document. Used by the seed command.
	ImportCatalog(ctx context.Context, c Catalog) error

	// Close releases the underlying database handle.
	Close() error
}

// Catalog is the JSON document format consumed by the seed command.
type Catalog struct {
	Zones          []ZoneRecord          `json:"zones"`
	PetAppearances []PetAppearanceRecord `json:"petAppearances"`
	Items          []ItemRecord          `json:"items"`
}

// ZoneRecord names a region of the pet silhouette.
type ZoneRecord struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

// PetAppearanceRecord is one species/color base appearance.
type PetAppearanceRecord struct {
	SpeciesID int64         `json:"speciesId"`
	ColorID   int64         `json:"colorId"`
	BodyID    int64         `json:"bodyId"`
	Layers    []LayerRecord `json:"layers"`
}

// ItemRecord is a wearable item plus its per-body appearances.
type ItemRecord struct {
	ID           int64                  `json:"id"`
	Name         string                 `json:"name"`
	ThumbnailURL string                 `json:"thumbnailUrl,omitempty"`
	Appearances  []ItemAppearanceRecord `json:"appearances"`
}

// ItemAppearanceRecord is an item's appearance for one body.
// BodyID 0 means the appearance fits every body.
type ItemAppearanceRecord struct {
	BodyID          int64         `json:"bodyId"`
	Layers          []LayerRecord `json:"layers"`
	RestrictedZones []int         `json:"restrictedZones,omitempty"`
}

// LayerRecord is one stored visual layer.
type LayerRecord struct {
	SWFAssetID int64  `json:"swfAssetId,omitempty"`
	ZoneID     int    `json:"zoneId"`
	Depth      int    `json:"depth"`
	ImageURL   string `json:"imageUrl,omitempty"`
	Renderable bool   `json:"renderable"`
}
