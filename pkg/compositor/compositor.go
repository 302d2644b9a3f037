// Package compositor reduces a pet's base appearance plus worn-item
// appearances into the final visible, ordered layer list.
//
// Composition is a pure function over its inputs: concatenate layers in
// encounter order, keep the first layer seen per zone, drop layers whose
// zone is restricted by any worn item, and sort the survivors by depth.
// The result is recomputed on every change to the worn-item set or the
// pet's species/color; it is never persisted.
package compositor

import "sort"

// Layer is one visual stratum of a composed outfit. Layers are immutable
// once fetched from the catalog or a manifest.
type Layer struct {
	ID         int64  `json:"id"`
	Zone       int    `json:"zone"`
	Depth      int    `json:"depth"`
	ImageURL   string `json:"imageUrl,omitempty"`
	SWFAssetID int64  `json:"swfAssetId,omitempty"`
	Renderable bool   `json:"renderable"`
}

// Appearance is a layer set plus restricted-zone set for one (item or
// biology, body) pairing. The layer order within an Appearance carries no
// meaning; restricted zones only take effect when the appearance belongs
// to a worn item.
type Appearance struct {
	Layers          []Layer `json:"layers"`
	RestrictedZones []int   `json:"restrictedZones,omitempty"`
}

// Empty reports whether the appearance contributes neither layers nor
// zone restrictions.
func (a Appearance) Empty() bool {
	return len(a.Layers) == 0 && len(a.RestrictedZones) == 0
}

// Compose merges the base (biology) appearance with the worn items'
// appearances and returns the layers that remain visible, ordered
// ascending by depth. Depth ties keep encounter order (base first, then
// items in caller-supplied order).
//
// Rules:
//
//  1. At most one layer survives per zone; the first-encountered layer
//     wins. Two sources claiming the same zone is inconsistent source
//     data, and first-wins is the recovery behavior, not a product rule.
//  2. The restricted-zone union is computed from item appearances only.
//     Biology never restricts itself.
//  3. An item with zero layers still contributes its restricted zones:
//     it occupies the zone without drawing, so clashing biology is hidden.
//
// Absent or empty inputs yield an empty result; Compose never fails.
func Compose(base Appearance, items []Appearance) []Layer {
	restricted := make(map[int]bool)
	for _, item := range items {
		for _, zone := range item.RestrictedZones {
			restricted[zone] = true
		}
	}

	seen := make(map[int]bool)
	var visible []Layer

	keep := func(layers []Layer) {
		for _, l := range layers {
			if seen[l.Zone] {
				continue
			}
			seen[l.Zone] = true
			if restricted[l.Zone] {
				continue
			}
			visible = append(visible, l)
		}
	}

	keep(base.Layers)
	for _, item := range items {
		keep(item.Layers)
	}

	sort.SliceStable(visible, func(i, j int) bool {
		return visible[i].Depth < visible[j].Depth
	})
	return visible
}

// RestrictedZones returns the union of restricted zones across the given
// item appearances, sorted ascending. The base appearance must not be
// passed here; biology contributes no restrictions.
func RestrictedZones(items []Appearance) []int {
	set := make(map[int]bool)
	for _, item := range items {
		for _, zone := range item.RestrictedZones {
			set[zone] = true
		}
	}
	zones := make([]int, 0, len(set))
	for zone := range set {
		zones = append(zones, zone)
	}
	sort.Ints(zones)
	return zones
}
