// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard
// dependencies on specific observability backends. Consumers can register
// hooks at startup to receive events about render-pool activity, snapshot
// cache operations, and asset proxying.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// This approach:
//   - Avoids import cycles (hooks are registered by main, not by libraries)
//   - Keeps the core library dependency-free from observability frameworks
//   - Allows different backends (OpenTelemetry, Prometheus, DataDog, etc.)
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetRenderHooks(&myRenderHooks{})
//	    observability.SetCacheHooks(&myCacheHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Render().OnAcquire(ctx, waited, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Render Hooks
// =============================================================================

// RenderHooks receives events from the render worker pool.
type RenderHooks interface {
	// OnAcquire records a pool acquisition attempt: how long the caller
	// waited and whether a context was lent.
	OnAcquire(ctx context.Context, waited time.Duration, err error)

	// OnRender records one snapshot render.
	OnRender(ctx context.Context, manifestURL string, size int, duration time.Duration, err error)

	// OnPoolRecycle records a pool swap. Reason is "interval" for the
	// periodic recycle or "unhealthy" for an out-of-band reset.
	OnPoolRecycle(ctx context.Context, reason string)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from snapshot cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// Proxy Hooks
// =============================================================================

// ProxyHooks receives events from the asset proxy.
type ProxyHooks interface {
	// OnProxy records one proxied asset request and the upstream status.
	OnProxy(ctx context.Context, url string, statusCode int, duration time.Duration)

	// OnProxyRejected records a request rejected by the allow-list.
	OnProxyRejected(ctx context.Context, url string)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopRenderHooks is a no-op implementation of RenderHooks.
type NoopRenderHooks struct{}

func (NoopRenderHooks) OnAcquire(context.Context, time.Duration, error)             {}
func (NoopRenderHooks) OnRender(context.Context, string, int, time.Duration, error) {}
func (NoopRenderHooks) OnPoolRecycle(context.Context, string)                       {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopProxyHooks is a no-op implementation of ProxyHooks.
type NoopProxyHooks struct{}

func (NoopProxyHooks) OnProxy(context.Context, string, int, time.Duration) {}
func (NoopProxyHooks) OnProxyRejected(context.Context, string)             {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	renderHooks RenderHooks = NoopRenderHooks{}
	cacheHooks  CacheHooks  = NoopCacheHooks{}
	proxyHooks  ProxyHooks  = NoopProxyHooks{}
	hooksMu     sync.RWMutex
)

// SetRenderHooks registers custom render-pool hooks.
// This should be called once at application startup before any renders.
func SetRenderHooks(h RenderHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		renderHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetProxyHooks registers custom proxy hooks.
// This should be called once at application startup before serving.
func SetProxyHooks(h ProxyHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		proxyHooks = h
	}
}

// Render returns the registered render-pool hooks.
func Render() RenderHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return renderHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Proxy returns the registered proxy hooks.
func Proxy() ProxyHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return proxyHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	renderHooks = NoopRenderHooks{}
	cacheHooks = NoopCacheHooks{}
	proxyHooks = NoopProxyHooks{}
}
