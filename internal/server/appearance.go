package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/outfitlab/impress/internal/storage"
	"github.com/outfitlab/impress/pkg/compositor"
	"github.com/outfitlab/impress/pkg/errors"
)

type appearanceResponse struct {
	BodyID          int64              `json:"bodyId"`
	Layers          []compositor.Layer `json:"layers"`
	RestrictedZones []int              `json:"restrictedZones,omitempty"`
}

// handleOutfitAppearance serves GET /api/outfitAppearance?species=&color=&items=.
// Items compose in the order given, which decides zone conflicts.
func (s *Server) handleOutfitAppearance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	species, err := parseID(q.Get("species"), "species")
	if err != nil {
		writeError(w, err)
		return
	}
	color, err := parseID(q.Get("color"), "color")
	if err != nil {
		writeError(w, err)
		return
	}
	itemIDs, err := parseIDList(q.Get("items"), "items")
	if err != nil {
		writeError(w, err)
		return
	}

	base, bodyID, err := s.store.PetAppearance(r.Context(), species, color)
	if err != nil {
		writeError(w, err)
		return
	}
	items, err := s.store.ItemAppearances(r.Context(), itemIDs, bodyID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, appearanceResponse{
		BodyID:          bodyID,
		Layers:          compositor.Compose(base, items),
		RestrictedZones: compositor.RestrictedZones(items),
	})
}

type itemsResponse struct {
	Items []storage.Item `json:"items"`
}

// handleItems serves GET /api/items?ids=. Unknown IDs are skipped.
func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	ids, err := parseIDList(r.URL.Query().Get("ids"), "ids")
	if err != nil {
		writeError(w, err)
		return
	}

	items, err := s.store.Items(r.Context(), ids)
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []storage.Item{}
	}
	writeJSON(w, itemsResponse{Items: items})
}

func parseID(raw, name string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New(errors.ErrCodeInvalidInput, "%s %q is not a positive integer", name, raw)
	}
	return id, nil
}

// parseIDList parses a comma-separated ID list. Empty input means no IDs.
func parseIDList(raw, name string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := parseID(strings.TrimSpace(part), name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
