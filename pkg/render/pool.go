package render

import (
	"context"
	"sync"
	"time"

	"github.com/outfitlab/impress/pkg/errors"
)

// Config holds the render pool's operational constants. These are
// empirically chosen, not derived from a model, so they are configuration
// rather than hardcoded values.
type Config struct {
	// Capacity is the number of render contexts per pool.
	Capacity int

	// AcquireTimeout bounds how long a caller waits for a free context
	// before the request fails as overloaded.
	AcquireTimeout time.Duration

	// RenderTimeout bounds a single render from manifest fetch through
	// PNG encode.
	RenderTimeout time.Duration

	// RecycleInterval is how often the manager swaps in a brand-new pool
	// and drains the old one. Zero disables periodic recycling.
	RecycleInterval time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:        4,
		AcquireTimeout:  15 * time.Second,
		RenderTimeout:   10 * time.Second,
		RecycleInterval: time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Capacity <= 0 {
		c.Capacity = d.Capacity
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = d.AcquireTimeout
	}
	if c.RenderTimeout <= 0 {
		c.RenderTimeout = d.RenderTimeout
	}
	return c
}

// Pool is a fixed-size pool of render contexts. Waiting callers are served
// roughly in arrival order; releases can happen in any order, so ordering
// is best-effort, not guaranteed.
type Pool struct {
	slots   chan *Context
	factory func() *Context

	mu       sync.Mutex
	draining bool
}

func newPool(capacity int, factory func() *Context) *Pool {
	p := &Pool{
		slots:   make(chan *Context, capacity),
		factory: factory,
	}
	for i := 0; i < capacity; i++ {
		p.slots <- factory()
	}
	return p
}

// Acquire lends a healthy context, blocking until one frees up or timeout
// elapses. Before lending, the context's health is verified; unhealthy
// contexts are destroyed and replaced with fresh ones rather than lent.
func (p *Pool) Acquire(ctx context.Context, timeout time.Duration) (*Context, error) {
	p.mu.Lock()
	draining := p.draining
	p.mu.Unlock()
	if draining {
		return nil, errors.New(errors.ErrCodePoolClosed, "render pool is draining")
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case rc := <-p.slots:
		if rc.Healthy() {
			return rc, nil
		}
		rc.Close()
		return p.factory(), nil
	case <-timer.C:
		return nil, errors.New(errors.ErrCodePoolSaturated, "no render context became free within %s", timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a context to the pool. Release is safe on every exit
// path of a render, including timeouts. Contexts returned to a draining
// pool, and unhealthy contexts, are destroyed instead of requeued.
func (p *Pool) Release(rc *Context) {
	if rc == nil {
		return
	}
	p.mu.Lock()
	draining := p.draining
	p.mu.Unlock()

	if draining || !rc.Healthy() {
		rc.Close()
		return
	}
	select {
	case p.slots <- rc:
	default:
		// More releases than capacity means replacement contexts were
		// minted while this one was out. Never block a caller here.
		rc.Close()
	}
}

// Drain stops lending and destroys idle contexts. Contexts checked out by
// in-flight renders finish normally and are destroyed as they return.
func (p *Pool) Drain() {
	p.mu.Lock()
	p.draining = true
	p.mu.Unlock()

	for {
		select {
		case rc := <-p.slots:
			rc.Close()
		default:
			return
		}
	}
}

// Idle reports how many contexts are parked in the pool right now.
func (p *Pool) Idle() int { return len(p.slots) }
