package render

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/outfitlab/impress/pkg/manifest"
	"github.com/outfitlab/impress/pkg/observability"
)

// Manager owns the current render pool behind an atomically swappable
// handle. Operations snapshot Current() once at their start and keep using
// that pool even if a recycle swaps the handle mid-flight.
type Manager struct {
	cfg     Config
	factory func() *Context
	logger  *log.Logger

	cur       atomic.Pointer[Pool]
	stop      chan struct{}
	stopOnce  sync.Once
	recycling sync.WaitGroup
}

// NewManager creates a manager with one freshly filled pool. Call Start to
// enable periodic recycling and Close on shutdown.
func NewManager(cfg Config, manifests *manifest.Client, logger *log.Logger) *Manager {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = log.Default()
	}
	m := &Manager{
		cfg:     cfg,
		factory: func() *Context { return newContext(manifests) },
		logger:  logger,
		stop:    make(chan struct{}),
	}
	m.cur.Store(newPool(cfg.Capacity, m.factory))
	return m
}

// Config returns the manager's operational constants.
func (m *Manager) Config() Config { return m.cfg }

// Current returns the active pool. Callers must hold on to the returned
// pool for the whole operation instead of re-reading it.
func (m *Manager) Current() *Pool { return m.cur.Load() }

// Start launches the periodic recycle loop. The loop swaps in a brand-new
// pool on every interval and drains the previous one, bounding long-run
// memory growth in the rendering stack.
func (m *Manager) Start() {
	if m.cfg.RecycleInterval <= 0 {
		return
	}
	m.recycling.Add(1)
	go func() {
		defer m.recycling.Done()
		ticker := time.NewTicker(m.cfg.RecycleInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Reset("interval")
			case <-m.stop:
				return
			}
		}
	}()
}

// Close stops the recycle loop and drains the active pool.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.recycling.Wait()
	m.Current().Drain()
}

// Reset swaps in a brand-new pool and drains the old one in the
// background. In-flight checkouts on the old pool finish normally.
func (m *Manager) Reset(reason string) {
	old := m.cur.Swap(newPool(m.cfg.Capacity, m.factory))
	go old.Drain()
	m.logger.Info("render pool recycled", "reason", reason, "capacity", m.cfg.Capacity)
	observability.Render().OnPoolRecycle(context.Background(), reason)
}

// ResetIf swaps in a new pool only if old is still the active pool. It is
// the out-of-band reset path used when a fatal context failure is
// observed, so a reset never clobbers a pool that already replaced the
// failed one. Reports whether a swap happened.
func (m *Manager) ResetIf(old *Pool) bool {
	fresh := newPool(m.cfg.Capacity, m.factory)
	if m.cur.CompareAndSwap(old, fresh) {
		go old.Drain()
		m.logger.Warn("render pool reset", "reason", "unhealthy context", "capacity", m.cfg.Capacity)
		observability.Render().OnPoolRecycle(context.Background(), "unhealthy")
		return true
	}
	// Lost the race with another reset; the speculative pool is unused.
	fresh.Drain()
	return false
}
