package render

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/outfitlab/impress/pkg/cache"
	"github.com/outfitlab/impress/pkg/errors"
	"github.com/outfitlab/impress/pkg/observability"
)

// Snapshotter renders outfit snapshots with content-keyed caching.
//
// The Snapshotter is stateless apart from the cache and pool manager;
// multiple goroutines can use the same Snapshotter concurrently.
type Snapshotter struct {
	Pools  *Manager
	Cache  cache.Cache
	Logger *log.Logger
}

// NewSnapshotter creates a snapshotter.
// If c is nil, a NullCache is used (caching disabled).
func NewSnapshotter(pools *Manager, c cache.Cache, logger *log.Logger) *Snapshotter {
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Snapshotter{Pools: pools, Cache: c, Logger: logger}
}

// Snapshot returns the PNG for the composition described by the manifest
// at manifestURL, rendered at size×size pixels.
//
// The manifest URL plus the size form the full cache key: cached bytes
// are returned without touching the pool. On a miss, one context is
// acquired from the pool snapshot taken at the start of the operation and
// released on every exit path.
func (s *Snapshotter) Snapshot(ctx context.Context, manifestURL string, size int) ([]byte, error) {
	if !ValidSize(size) {
		return nil, errors.New(errors.ErrCodeInvalidSize, "size %d is not one of 150, 300, 600", size)
	}

	key := cache.SnapshotKey(manifestURL, size)
	if data, hit, err := s.Cache.Get(ctx, key); err == nil && hit {
		observability.Cache().OnCacheHit(ctx, "snapshot")
		s.Logger.Debug("snapshot cache hit", "url", manifestURL, "size", size)
		return data, nil
	}
	observability.Cache().OnCacheMiss(ctx, "snapshot")

	pool := s.Pools.Current()
	waitStart := time.Now()
	rc, err := pool.Acquire(ctx, s.Pools.Config().AcquireTimeout)
	if errors.Is(err, errors.ErrCodePoolClosed) {
		// The pool drained between snapshot and acquire; retry once on
		// the replacement.
		pool = s.Pools.Current()
		rc, err = pool.Acquire(ctx, s.Pools.Config().AcquireTimeout)
	}
	observability.Render().OnAcquire(ctx, time.Since(waitStart), err)
	if err != nil {
		return nil, err
	}

	renderStart := time.Now()
	png, renderErr := rc.Render(ctx, manifestURL, size, s.Pools.Config().RenderTimeout)
	pool.Release(rc)
	observability.Render().OnRender(ctx, manifestURL, size, time.Since(renderStart), renderErr)

	if !rc.Healthy() {
		// The fatal-failure analog of a crashed rendering process: if
		// this pool is still the active one, replace it immediately
		// instead of waiting for the recycle timer.
		s.Pools.ResetIf(pool)
	}

	if renderErr != nil {
		s.Logger.Error("snapshot render failed",
			"url", manifestURL,
			"size", size,
			"context", rc.ID(),
			"err", renderErr)
		return nil, renderErr
	}

	s.Logger.Info("rendered snapshot",
		"url", manifestURL,
		"size", size,
		"bytes", len(png),
		"duration", time.Since(renderStart).Round(time.Millisecond))

	if err := s.Cache.Set(ctx, key, png, cache.TTLSnapshot); err != nil {
		s.Logger.Warn("snapshot cache write failed", "err", err)
	} else {
		observability.Cache().OnCacheSet(ctx, "snapshot", len(png))
	}
	return png, nil
}
