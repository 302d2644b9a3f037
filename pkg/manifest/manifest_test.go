package manifest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/outfitlab/impress/pkg/cache"
	"github.com/outfitlab/impress/pkg/errors"
)

var trusted = []string{"assets.example.org"}

func TestValidateLibraryURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		code errors.Code
	}{
		{"valid", "https://assets.example.org/movies/1/manifest.json", ""},
		{"valid mixed-case host", "https://Assets.Example.ORG/m.json", ""},
		{"empty", "", errors.ErrCodeInvalidInput},
		{"http scheme", "http://assets.example.org/m.json", errors.ErrCodeUntrustedURL},
		{"untrusted host", "https://evil.example.com/m.json", errors.ErrCodeUntrustedURL},
		{"trusted host as prefix", "https://assets.example.org.evil.com/m.json", errors.ErrCodeUntrustedURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLibraryURL(tt.url, trusted)
			if tt.code == "" {
				if err != nil {
					t.Errorf("ValidateLibraryURL(%q) = %v, want nil", tt.url, err)
				}
				return
			}
			if !errors.Is(err, tt.code) {
				t.Errorf("ValidateLibraryURL(%q) = %v, want code %s", tt.url, err, tt.code)
			}
		})
	}
}

func TestManifestValidate(t *testing.T) {
	m := &Manifest{Canvas: 600, Layers: []Layer{
		{Zone: 1, Depth: 0, Image: "https://assets.example.org/layers/1.png"},
	}}
	if err := m.Validate(trusted); err != nil {
		t.Errorf("Validate = %v, want nil", err)
	}

	bad := &Manifest{Canvas: 0}
	if err := bad.Validate(trusted); !errors.Is(err, errors.ErrCodeRenderFailed) {
		t.Errorf("Validate(zero canvas) = %v, want RENDER_FAILED", err)
	}

	sneaky := &Manifest{Canvas: 600, Layers: []Layer{
		{Zone: 1, Depth: 0, Image: "https://evil.example.com/1.png"},
	}}
	if err := sneaky.Validate(trusted); !errors.Is(err, errors.ErrCodeUntrustedURL) {
		t.Errorf("Validate(untrusted layer) = %v, want UNTRUSTED_URL", err)
	}
}

func TestClientFetchCachesDocument(t *testing.T) {
	requests := 0
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte(`{"canvas":600,"layers":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), []string{"127.0.0.1"}).WithCache(cache.NewMemoryCache())

	url := srv.URL + "/movies/1/manifest.json"
	for i := 0; i < 2; i++ {
		m, err := c.Fetch(context.Background(), url)
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if m.Canvas != 600 {
			t.Errorf("Canvas = %d, want 600", m.Canvas)
		}
	}
	if requests != 1 {
		t.Errorf("upstream requests = %d, want 1 (second fetch served from cache)", requests)
	}
}

func TestClientFetchRejectsUntrustedBeforeRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), trusted)
	// httptest URLs are http:// on 127.0.0.1, so this must fail validation
	// without the server ever seeing a request.
	if _, err := c.Fetch(context.Background(), srv.URL+"/manifest.json"); err == nil {
		t.Fatal("Fetch should reject an untrusted URL")
	}
	if called {
		t.Error("upstream was contacted for an untrusted URL")
	}
}
