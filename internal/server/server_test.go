package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/outfitlab/impress/internal/storage"
	"github.com/outfitlab/impress/internal/storage/sqlite"
	"github.com/outfitlab/impress/pkg/manifest"
	"github.com/outfitlab/impress/pkg/render"
)

func encodeSolidPNG(t *testing.T, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

// testStack is the full service wired against one TLS upstream: asset
// server, sqlite catalog, render manager, HTTP handler.
type testStack struct {
	handler  http.Handler
	upstream *httptest.Server
	requests *atomic.Int64
	store    storage.Store
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	red := encodeSolidPNG(t, color.RGBA{R: 255, A: 255})
	blue := encodeSolidPNG(t, color.RGBA{B: 255, A: 255})
	thumb := encodeSolidPNG(t, color.RGBA{G: 255, A: 255})

	var requests atomic.Int64
	var srv *httptest.Server
	srv = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		switch r.URL.Path {
		case "/movies/1/manifest.json":
			json.NewEncoder(w).Encode(manifest.Manifest{
				Canvas: 600,
				Layers: []manifest.Layer{
					{Zone: 1, Depth: 0, Image: srv.URL + "/movies/1/background.png"},
					{Zone: 2, Depth: 10, Image: srv.URL + "/movies/1/body.png"},
				},
			})
		case "/movies/1/background.png":
			w.Write(red)
		case "/movies/1/body.png":
			w.Write(blue)
		case "/items/37229/thumb.gif":
			w.Header().Set("Content-Type", "image/png")
			w.Header().Set("ETag", `"thumb-v1"`)
			w.Header().Set("Cache-Control", "max-age=604800")
			w.Write(thumb)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.ImportCatalog(context.Background(), testCatalog()); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	trusted := []string{"127.0.0.1"}
	mc := manifest.NewClient(srv.Client(), trusted)
	m := render.NewManager(render.Config{
		Capacity:        2,
		AcquireTimeout:  time.Second,
		RenderTimeout:   5 * time.Second,
		RecycleInterval: -1,
	}, mc, log.New(io.Discard))
	t.Cleanup(m.Close)

	s := New(Options{
		Listen:       ":0",
		Snapshots:    render.NewSnapshotter(m, nil, log.New(io.Discard)),
		Store:        store,
		Assets:       srv.Client(),
		TrustedHosts: trusted,
		Logger:       log.New(io.Discard),
	})

	return &testStack{handler: s.Handler(), upstream: srv, requests: &requests, store: store}
}

func testCatalog() storage.Catalog {
	return storage.Catalog{
		Zones: []storage.ZoneRecord{{ID: 15, Label: "Body"}, {ID: 21, Label: "Hat"}, {ID: 30, Label: "Wings"}},
		PetAppearances: []storage.PetAppearanceRecord{
			{
				SpeciesID: 1, ColorID: 8, BodyID: 93,
				Layers: []storage.LayerRecord{
					{SWFAssetID: 1001, ZoneID: 15, Depth: 18, ImageURL: "https://images.example.org/1001.png", Renderable: true},
					{SWFAssetID: 1002, ZoneID: 30, Depth: 28, ImageURL: "https://images.example.org/1002.png", Renderable: true},
				},
			},
		},
		Items: []storage.ItemRecord{
			{
				ID: 37229, Name: "Blue Hat", ThumbnailURL: "https://images.example.org/items/37229/thumb.gif",
				Appearances: []storage.ItemAppearanceRecord{{
					BodyID: 93,
					Layers: []storage.LayerRecord{
						{SWFAssetID: 2001, ZoneID: 21, Depth: 44, ImageURL: "https://images.example.org/2001.png", Renderable: true},
					},
				}},
			},
			{
				ID: 54012, Name: "Wing Binder",
				Appearances: []storage.ItemAppearanceRecord{{
					BodyID:          0,
					RestrictedZones: []int{30},
				}},
			},
		},
	}
}

func (ts *testStack) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func TestOutfitImage(t *testing.T) {
	ts := newTestStack(t)

	manifestURL := ts.upstream.URL + "/movies/1/manifest.json"
	rec := ts.get(t, "/api/outfitImage?libraryUrl="+url.QueryEscape(manifestURL)+"&size=300")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != snapshotCacheControl {
		t.Errorf("Cache-Control = %q", cc)
	}
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if img.Bounds().Dx() != 300 {
		t.Errorf("width = %d, want 300", img.Bounds().Dx())
	}
}

func TestOutfitImageRejectsBadParams(t *testing.T) {
	ts := newTestStack(t)

	tests := []struct {
		name string
		path string
	}{
		{"missing libraryUrl", "/api/outfitImage?size=300"},
		{"untrusted host", "/api/outfitImage?libraryUrl=" + url.QueryEscape("https://evil.example.com/m.json") + "&size=300"},
		{"plain http", "/api/outfitImage?libraryUrl=" + url.QueryEscape("http://127.0.0.1/m.json") + "&size=300"},
		{"garbage size", "/api/outfitImage?libraryUrl=" + url.QueryEscape("https://127.0.0.1/movies/1/manifest.json") + "&size=huge"},
		{"unsupported size", "/api/outfitImage?libraryUrl=" + url.QueryEscape("https://127.0.0.1/movies/1/manifest.json") + "&size=420"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := ts.requests.Load()
			rec := ts.get(t, tt.path)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if ts.requests.Load() != before {
				t.Error("invalid request reached upstream")
			}
		})
	}
}

func TestAssetProxy(t *testing.T) {
	ts := newTestStack(t)

	assetURL := ts.upstream.URL + "/items/37229/thumb.gif"
	rec := ts.get(t, "/api/assetProxy?url="+url.QueryEscape(assetURL))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
	}
	if et := rec.Header().Get("ETag"); et != `"thumb-v1"` {
		t.Errorf("ETag = %q, want upstream value passed through", et)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "max-age=604800" {
		t.Errorf("Cache-Control = %q", cc)
	}
	if _, err := png.Decode(rec.Body); err != nil {
		t.Errorf("body is not the upstream image: %v", err)
	}
}

func TestAssetProxyPropagatesUpstreamStatus(t *testing.T) {
	ts := newTestStack(t)

	// Allowed pattern, but the upstream has no such item.
	missing := ts.upstream.URL + "/items/99999/thumb.gif"
	rec := ts.get(t, "/api/assetProxy?url="+url.QueryEscape(missing))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want upstream 404 passed through", rec.Code)
	}
}

func TestAssetProxyRejectsBeforeUpstream(t *testing.T) {
	ts := newTestStack(t)

	tests := []struct {
		name string
		url  string
	}{
		{"missing url", ""},
		{"untrusted host", "https://evil.example.com/items/1/thumb.gif"},
		{"plain http", "http://127.0.0.1/items/1/thumb.gif"},
		{"disallowed path", ts.upstream.URL + "/etc/passwd"},
		{"traversal", ts.upstream.URL + "/items/1/../../secrets.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := ts.requests.Load()
			rec := ts.get(t, "/api/assetProxy?url="+url.QueryEscape(tt.url))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if ts.requests.Load() != before {
				t.Error("rejected URL reached upstream")
			}
		})
	}
}

func TestOutfitAppearance(t *testing.T) {
	ts := newTestStack(t)

	// Wing Binder restricts zone 30, hiding the pet's wing layer.
	rec := ts.get(t, "/api/outfitAppearance?species=1&color=8&items=54012,37229")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
	}
	var resp struct {
		BodyID int64 `json:"bodyId"`
		Layers []struct {
			Zone  int `json:"zone"`
			Depth int `json:"depth"`
		} `json:"layers"`
		RestrictedZones []int `json:"restrictedZones"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.BodyID != 93 {
		t.Errorf("bodyId = %d, want 93", resp.BodyID)
	}
	zones := make([]int, len(resp.Layers))
	for i, l := range resp.Layers {
		zones[i] = l.Zone
		if i > 0 && resp.Layers[i-1].Depth > l.Depth {
			t.Errorf("layers not sorted by depth: %v", resp.Layers)
		}
	}
	// Body (15) and hat (21) visible, wings (30) restricted away.
	if len(zones) != 2 || zones[0] != 15 || zones[1] != 21 {
		t.Errorf("visible zones = %v, want [15 21]", zones)
	}
	if len(resp.RestrictedZones) != 1 || resp.RestrictedZones[0] != 30 {
		t.Errorf("restrictedZones = %v, want [30]", resp.RestrictedZones)
	}
}

func TestOutfitAppearanceErrors(t *testing.T) {
	ts := newTestStack(t)

	if rec := ts.get(t, "/api/outfitAppearance?species=1&color=999"); rec.Code != http.StatusNotFound {
		t.Errorf("unmodeled pairing status = %d, want 404", rec.Code)
	}
	if rec := ts.get(t, "/api/outfitAppearance?species=1&color=8&items=1,nope"); rec.Code != http.StatusBadRequest {
		t.Errorf("garbage items status = %d, want 400", rec.Code)
	}
	if rec := ts.get(t, "/api/outfitAppearance?species=0&color=8"); rec.Code != http.StatusBadRequest {
		t.Errorf("non-positive species status = %d, want 400", rec.Code)
	}
}

func TestItems(t *testing.T) {
	ts := newTestStack(t)

	rec := ts.get(t, "/api/items?ids=37229,54012")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Items []storage.Item `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Items) != 2 || resp.Items[0].Name != "Blue Hat" {
		t.Errorf("items = %+v", resp.Items)
	}

	// No IDs is an empty list, not an error.
	rec = ts.get(t, "/api/items")
	if rec.Code != http.StatusOK || rec.Body.String() == "" {
		t.Errorf("empty ids: status = %d, body %q", rec.Code, rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestStack(t)
	rec := ts.get(t, "/healthz")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestRequestIDEchoed(t *testing.T) {
	ts := newTestStack(t)
	rec := ts.get(t, "/healthz")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}
