package server

import (
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/outfitlab/impress/pkg/errors"
	"github.com/outfitlab/impress/pkg/manifest"
	"github.com/outfitlab/impress/pkg/observability"
)

// Path shapes allowed through the asset proxy. A URL on a trusted host
// whose path matches none of these is still rejected.
var allowedProxyPaths = []*regexp.Regexp{
	// item thumbnail icons
	regexp.MustCompile(`^/items/\d+/(?:thumb|icon)\.(?:gif|png)$`),
	// body-specific asset images
	regexp.MustCompile(`^/assets/bodies/\d+/\d+\.(?:png|svg)$`),
	// vector movie assets and their manifests
	regexp.MustCompile(`^/movies/\d+(?:/[A-Za-z0-9_.-]+)*/manifest\.json$`),
	regexp.MustCompile(`^/movies/\d+(?:/[A-Za-z0-9_.-]+)*\.(?:png|svg|js)$`),
}

// Headers passed through from the upstream response unchanged.
var proxiedHeaders = []string{
	"Content-Length",
	"Content-Type",
	"Cache-Control",
	"ETag",
	"Last-Modified",
}

// handleAssetProxy serves GET /api/assetProxy?url=. The URL must be HTTPS
// on a trusted host and match an allowed path shape; the check runs before
// any upstream request.
func (s *Server) handleAssetProxy(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if err := validateProxyURL(raw, s.trustedHosts); err != nil {
		observability.Proxy().OnProxyRejected(r.Context(), raw)
		writeError(w, err)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, raw, nil)
	if err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "malformed URL %q", raw))
		return
	}

	start := time.Now()
	resp, err := s.assets.Do(req)
	if err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeUpstream, err, "fetch %s", raw))
		return
	}
	defer resp.Body.Close()

	for _, h := range proxiedHeaders {
		if v := resp.Header.Get(h); v != "" {
			w.Header().Set(h, v)
		}
	}
	// Non-OK upstream statuses propagate unchanged.
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		s.logger.Warn("proxy stream interrupted", "url", raw, "error", err)
	}

	observability.Proxy().OnProxy(r.Context(), raw, resp.StatusCode, time.Since(start))
	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("proxied upstream error", "url", raw, "status", resp.StatusCode)
	}
}

func validateProxyURL(raw string, trustedHosts []string) error {
	if raw == "" {
		return errors.New(errors.ErrCodeInvalidInput, "url is required")
	}
	if err := manifest.ValidateAssetURL(raw, trustedHosts); err != nil {
		return err
	}
	u, err := url.Parse(raw)
	if err != nil {
		return errors.New(errors.ErrCodeInvalidInput, "malformed URL %q", raw)
	}
	for _, re := range allowedProxyPaths {
		if re.MatchString(u.Path) {
			return nil
		}
	}
	return errors.New(errors.ErrCodeUntrustedURL, "%q does not match an allowed asset pattern", raw)
}
