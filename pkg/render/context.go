package render

import (
	"context"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/outfitlab/impress/pkg/errors"
	"github.com/outfitlab/impress/pkg/httputil"
	"github.com/outfitlab/impress/pkg/manifest"
)

// fatalFailureThreshold is how many consecutive render failures mark a
// context unhealthy. An unhealthy context is never lent again; the pool
// destroys and replaces it.
const fatalFailureThreshold = 3

// Context is one reusable rendering context. It owns the HTTP client used
// for manifest and asset fetches and tracks its own health.
//
// Lifecycle: Created → InPool(idle) → CheckedOut → (returned → InPool, or
// destroyed on health-check failure or during drain) → Destroyed.
type Context struct {
	id        string
	manifests *manifest.Client
	assets    *http.Client
	created   time.Time
	failures  atomic.Int32
	closed    atomic.Bool
}

func newContext(mc *manifest.Client) *Context {
	return &Context{
		id:        uuid.NewString(),
		manifests: mc,
		assets:    mc.HTTP(),
		created:   time.Now(),
	}
}

// ID returns the context's unique identifier, used in logs.
func (c *Context) ID() string { return c.id }

// Healthy reports whether the context may be lent to a caller.
func (c *Context) Healthy() bool {
	return !c.closed.Load() && c.failures.Load() < fatalFailureThreshold
}

// Close marks the context destroyed. Closed is terminal.
func (c *Context) Close() { c.closed.Store(true) }

// Render rasterizes the composition described by the manifest at
// manifestURL into a size×size PNG.
//
// The work races the render timeout with no fixed priority: whichever of
// render-complete, render-failed, or the deadline resolves first wins. A
// timed-out render's goroutine is cancelled via context; the Context
// itself is still usable and must be returned to the pool by the caller.
func (c *Context) Render(ctx context.Context, manifestURL string, size int, timeout time.Duration) ([]byte, error) {
	if c.closed.Load() {
		return nil, errors.New(errors.ErrCodePoolClosed, "render context is destroyed")
	}

	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		png []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		png, err := c.render(rctx, manifestURL, size)
		done <- result{png, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			c.failures.Add(1)
			return nil, res.err
		}
		c.failures.Store(0)
		return res.png, nil
	case <-rctx.Done():
		c.failures.Add(1)
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeRenderFailed, err, "render of %s cancelled", manifestURL)
		}
		return nil, errors.New(errors.ErrCodeRenderTimeout, "render of %s at size %d did not finish within %s", manifestURL, size, timeout)
	}
}

func (c *Context) render(ctx context.Context, manifestURL string, size int) ([]byte, error) {
	m, err := c.manifests.Fetch(ctx, manifestURL)
	if err != nil {
		return nil, err
	}

	layers := make([]manifest.Layer, len(m.Layers))
	copy(layers, m.Layers)
	sort.SliceStable(layers, func(i, j int) bool { return layers[i].Depth < layers[j].Depth })

	assets := make([][]byte, 0, len(layers))
	for _, l := range layers {
		data, err := httputil.GetBytes(ctx, c.assets, l.Image)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeRenderFailed, err, "fetch layer asset %s", l.Image)
		}
		assets = append(assets, data)
	}

	return rasterize(assets, size)
}
