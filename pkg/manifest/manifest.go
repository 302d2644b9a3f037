// Package manifest fetches and validates layer manifests.
//
// A manifest is a JSON document at a trusted URL describing the image
// assets and rendering metadata for one composed outfit: the logical
// canvas size and the ordered layer list. The manifest URL doubles as the
// snapshot cache key, so rendering changes require publishing a new
// manifest URL.
package manifest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/outfitlab/impress/pkg/cache"
	"github.com/outfitlab/impress/pkg/errors"
	"github.com/outfitlab/impress/pkg/httputil"
	"github.com/outfitlab/impress/pkg/observability"
)

// Layer is one drawable entry in a manifest.
type Layer struct {
	Zone  int    `json:"zone"`
	Depth int    `json:"depth"`
	Image string `json:"image"`
}

// Manifest describes the assets and metadata for a composed outfit.
type Manifest struct {
	// Canvas is the logical square size the layer artwork is drawn at.
	Canvas int `json:"canvas"`

	// Layers lists the drawable layers. Draw order is ascending depth.
	Layers []Layer `json:"layers"`
}

// Validate checks manifest invariants and that every layer asset lives on
// a trusted host.
func (m *Manifest) Validate(trustedHosts []string) error {
	if m.Canvas <= 0 {
		return errors.New(errors.ErrCodeRenderFailed, "manifest canvas size %d is not positive", m.Canvas)
	}
	for _, l := range m.Layers {
		if err := ValidateAssetURL(l.Image, trustedHosts); err != nil {
			return err
		}
	}
	return nil
}

// ValidateLibraryURL checks that a manifest URL is HTTPS and served from
// one of the trusted asset hosts. It runs before any resource is acquired.
func ValidateLibraryURL(raw string, trustedHosts []string) error {
	if raw == "" {
		return errors.New(errors.ErrCodeInvalidInput, "libraryUrl is required")
	}
	return ValidateAssetURL(raw, trustedHosts)
}

// ValidateAssetURL checks that an asset URL is HTTPS on a trusted host.
func ValidateAssetURL(raw string, trustedHosts []string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.New(errors.ErrCodeInvalidInput, "malformed URL %q", raw)
	}
	if u.Scheme != "https" {
		return errors.New(errors.ErrCodeUntrustedURL, "%q is not an HTTPS URL", raw)
	}
	host := strings.ToLower(u.Hostname())
	for _, trusted := range trustedHosts {
		if host == strings.ToLower(trusted) {
			return nil
		}
	}
	return errors.New(errors.ErrCodeUntrustedURL, "%q is not on a trusted asset host", raw)
}

// Client fetches manifests from trusted hosts, optionally caching the raw
// documents.
type Client struct {
	http    *http.Client
	trusted []string
	cache   cache.Cache
}

// NewClient creates a manifest client. If httpClient is nil, a default
// client with the standard upstream timeout is used.
func NewClient(httpClient *http.Client, trustedHosts []string) *Client {
	if httpClient == nil {
		httpClient = httputil.NewClient()
	}
	return &Client{http: httpClient, trusted: trustedHosts}
}

// WithCache enables manifest document caching and returns the client.
// Cached documents expire after an hour, so a republished manifest at the
// same URL is picked up without a restart.
func (c *Client) WithCache(cc cache.Cache) *Client {
	c.cache = cc
	return c
}

// TrustedHosts returns the allow-listed asset hosts.
func (c *Client) TrustedHosts() []string { return c.trusted }

// HTTP returns the underlying HTTP client, shared with asset fetches so
// a render context reuses one connection pool.
func (c *Client) HTTP() *http.Client { return c.http }

// Fetch retrieves and validates the manifest at url. With a cache attached,
// the raw document is served from and written back to the cache.
func (c *Client) Fetch(ctx context.Context, url string) (*Manifest, error) {
	if err := ValidateLibraryURL(url, c.trusted); err != nil {
		return nil, err
	}

	key := cache.ManifestKey(url)
	if c.cache != nil {
		if data, hit, err := c.cache.Get(ctx, key); err == nil && hit {
			var m Manifest
			if json.Unmarshal(data, &m) == nil && m.Validate(c.trusted) == nil {
				observability.Cache().OnCacheHit(ctx, "manifest")
				return &m, nil
			}
			// Stale or corrupt entry; fall through to a fresh fetch.
			_ = c.cache.Delete(ctx, key)
		}
		observability.Cache().OnCacheMiss(ctx, "manifest")
	}

	raw, err := httputil.GetBytes(ctx, c.http, url)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRenderFailed, err, "fetch manifest %s", url)
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errors.Wrap(errors.ErrCodeRenderFailed, err, "parse manifest %s", url)
	}
	if err := m.Validate(c.trusted); err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, raw, cache.TTLManifest); err == nil {
			observability.Cache().OnCacheSet(ctx, "manifest", len(raw))
		}
	}
	return &m, nil
}
