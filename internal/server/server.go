// Package server exposes the HTTP API: outfit snapshot rendering, the
// trusted asset proxy, and catalog appearance reads.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/outfitlab/impress/internal/storage"
	"github.com/outfitlab/impress/pkg/errors"
	"github.com/outfitlab/impress/pkg/httputil"
	"github.com/outfitlab/impress/pkg/render"
)

const shutdownTimeout = 10 * time.Second

// Options configures a Server.
type Options struct {
	// Listen is the HTTP listen address.
	Listen string

	// Snapshots renders and caches outfit snapshot images.
	Snapshots *render.Snapshotter

	// Store is the appearance catalog.
	Store storage.Store

	// Assets is the upstream HTTP client used by the asset proxy.
	// Nil means a default client.
	Assets *http.Client

	// TrustedHosts is the asset-host allow-list shared with the render
	// pipeline.
	TrustedHosts []string

	Logger *log.Logger
}

// Server hosts the impress HTTP API.
type Server struct {
	httpServer   *http.Server
	logger       *log.Logger
	snapshots    *render.Snapshotter
	store        storage.Store
	assets       *http.Client
	trustedHosts []string
}

// New builds a Server with its routes mounted.
func New(opts Options) *Server {
	if opts.Assets == nil {
		opts.Assets = httputil.NewClient()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	s := &Server{
		logger:       opts.Logger,
		snapshots:    opts.Snapshots,
		store:        opts.Store,
		assets:       opts.Assets,
		trustedHosts: opts.TrustedHosts,
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger(opts.Logger))
	r.Use(recoverer(opts.Logger))

	r.Get("/api/outfitImage", s.handleOutfitImage)
	r.Get("/api/assetProxy", s.handleAssetProxy)
	r.Get("/api/outfitAppearance", s.handleOutfitAppearance)
	r.Get("/api/items", s.handleItems)
	r.Get("/healthz", handleHealthz)

	s.httpServer = &http.Server{
		Addr:              opts.Listen,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the mounted router.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// ListenAndServe serves until ctx is canceled, then shuts down gracefully,
// letting in-flight requests finish.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		errc <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", "timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

// writeError maps the failure taxonomy onto HTTP statuses with a
// plain-text body.
func writeError(w http.ResponseWriter, err error) {
	http.Error(w, errors.UserMessage(err), errors.HTTPStatus(err))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(v)
}
