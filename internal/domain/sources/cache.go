package sources

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/forgeide/pkgsync/internal/infrastructure/logging"
)

// Fetch produces the current source list. Implementations are expected to
// switch onto the coordinating dispatcher before touching the host.
type Fetch func(ctx context.Context) ([]Source, error)

// Cache memoizes one Fetch result. TryRead never blocks: it starts the first
// computation on demand and serves the cached result once that computation
// has finished, an empty list until then. Invalidate discards whatever is
// cached or in flight and, if anyone has ever read, proactively starts a
// fresh computation.
type Cache struct {
	fetch Fetch
	log   *logging.Logger

	// ctx bounds every computation to the engine lifetime.
	ctx context.Context

	mu        sync.Mutex
	slot      *computation // nil means empty: nothing cached, nothing in flight
	onChanged func()
}

// computation is one in-flight or completed fetch. done is closed after
// result is set; result stays nil when the fetch failed or was cancelled.
type computation struct {
	done   chan struct{}
	result []Source
	cancel context.CancelFunc
}

// NewCache creates an empty cache. ctx scopes the lifetime of all
// computations the cache ever starts.
func NewCache(ctx context.Context, fetch Fetch, log *logging.Logger) *Cache {
	return &Cache{fetch: fetch, log: log, ctx: ctx}
}

// OnChanged registers the callback fired after every Invalidate call.
func (c *Cache) OnChanged(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChanged = fn
}

// TryRead returns the cached source list, starting the single shared
// computation if none exists. While the computation is still running, or
// after it failed, TryRead returns an empty list instead of blocking.
func (c *Cache) TryRead() []Source {
	c.mu.Lock()
	if c.slot == nil {
		c.slot = c.start()
	}
	slot := c.slot
	c.mu.Unlock()

	select {
	case <-slot.done:
		return slot.result
	default:
		return nil
	}
}

// Invalidate discards the current computation, if any, and starts a fresh one
// in its place. When nothing was ever read there is nothing to refresh and
// the work is deferred to the first read. The changed callback fires exactly
// once per call, on either branch.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	if c.slot != nil {
		c.slot.cancel()
		c.slot = c.start()
	}
	changed := c.onChanged
	c.mu.Unlock()

	if changed != nil {
		changed()
	}
}

// start launches one computation. Callers must hold c.mu.
func (c *Cache) start() *computation {
	ctx, cancel := context.WithCancel(c.ctx)
	slot := &computation{done: make(chan struct{}), cancel: cancel}

	go func() {
		defer close(slot.done)
		defer cancel()

		result, err := c.fetch(ctx)
		switch {
		case err == nil:
			slot.result = result
		case errors.Is(err, context.Canceled):
			// Superseded by Invalidate or engine shutdown; nothing to report.
		case errors.Is(err, ErrMalformedConfiguration):
			c.log.Warn("package source configuration is malformed, serving no sources",
				zap.Error(err))
		default:
			c.log.DPanic("package source fetch failed", zap.Error(err))
		}
	}()

	return slot
}
