package server

import (
	"net/http"
	"strconv"

	"github.com/outfitlab/impress/pkg/errors"
	"github.com/outfitlab/impress/pkg/manifest"
)

// snapshotCacheControl marks snapshot responses as immutable. The manifest
// URL is the cache key, so a render change implies a new URL.
const snapshotCacheControl = "public, max-age=31536000, immutable"

// handleOutfitImage serves GET /api/outfitImage?libraryUrl=&size=.
// Both parameters are validated before any pool contact.
func (s *Server) handleOutfitImage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	libraryURL := q.Get("libraryUrl")
	if err := manifest.ValidateLibraryURL(libraryURL, s.trustedHosts); err != nil {
		writeError(w, err)
		return
	}

	size, err := strconv.Atoi(q.Get("size"))
	if err != nil {
		writeError(w, errors.New(errors.ErrCodeInvalidSize, "size %q is not an integer", q.Get("size")))
		return
	}

	data, err := s.snapshots.Snapshot(r.Context(), libraryURL, size)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", snapshotCacheControl)
	w.Write(data)
}
