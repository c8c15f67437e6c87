// Package cache provides the multi-tier geocode cache: an in-process memory
// tier in front of an optional shared edge store and an optional tertiary
// HTTP store.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/incident-geocode-service/internal/domain"
	"github.com/couchcryptid/incident-geocode-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Tier names used in logs and metric labels.
const (
	TierMemory = "memory"
	TierEdge   = "edge"
	TierRemote = "remote"
)

// keyPrefix namespaces entries in shared stores.
const keyPrefix = "geocode:"

// Store is an outer cache tier reachable over the network.
type Store interface {
	Get(ctx context.Context, key string) (domain.CachedGeocode, bool, error)
	Set(ctx context.Context, key string, v domain.CachedGeocode, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Options configures a Layered cache.
type Options struct {
	Clock        clockwork.Clock
	MemoryTTL    time.Duration
	MemorySize   int
	EdgeTTL      time.Duration // also used for the tertiary store
	WriteTimeout time.Duration
}

// Layered reads through memory, edge, then remote, and writes memory
// synchronously with outer tiers updated in the background. Outer-tier
// failures are logged and counted but never surface to callers.
type Layered struct {
	memory       *Memory[domain.CachedGeocode]
	edge         Store
	remote       Store
	edgeTTL      time.Duration
	writeTimeout time.Duration
	logger       *slog.Logger
	metrics      *observability.Metrics
	wg           sync.WaitGroup
}

// NewLayered builds the cache. Either outer store may be nil.
func NewLayered(opts Options, edge, remote Store, logger *slog.Logger, metrics *observability.Metrics) *Layered {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 3 * time.Second
	}
	return &Layered{
		memory:       NewMemory[domain.CachedGeocode](opts.Clock, opts.MemoryTTL, opts.MemorySize),
		edge:         edge,
		remote:       remote,
		edgeTTL:      opts.EdgeTTL,
		writeTimeout: opts.WriteTimeout,
		logger:       logger,
		metrics:      metrics,
	}
}

// Get looks key up tier by tier. A hit in an outer tier is copied into the
// tiers in front of it.
func (c *Layered) Get(ctx context.Context, key string) (domain.CachedGeocode, bool) {
	if v, ok := c.memory.Get(key); ok {
		c.lookup(TierMemory, "hit")
		return v, true
	}
	c.lookup(TierMemory, "miss")

	if v, ok := c.getOuter(ctx, TierEdge, c.edge, key); ok {
		c.memory.Set(key, v)
		return v, true
	}

	if v, ok := c.getOuter(ctx, TierRemote, c.remote, key); ok {
		c.memory.Set(key, v)
		if c.edge != nil {
			c.background(ctx, TierEdge, key, func(ctx context.Context) error {
				return c.edge.Set(ctx, keyPrefix+key, v, c.edgeTTL)
			})
		}
		return v, true
	}

	return domain.CachedGeocode{}, false
}

// Set stores v in memory immediately and schedules outer-tier writes.
func (c *Layered) Set(ctx context.Context, key string, v domain.CachedGeocode) {
	c.memory.Set(key, v)
	if c.edge != nil {
		c.background(ctx, TierEdge, key, func(ctx context.Context) error {
			return c.edge.Set(ctx, keyPrefix+key, v, c.edgeTTL)
		})
	}
	if c.remote != nil {
		c.background(ctx, TierRemote, key, func(ctx context.Context) error {
			return c.remote.Set(ctx, keyPrefix+key, v, c.edgeTTL)
		})
	}
}

// Invalidate drops key from memory now and from outer tiers in the background.
func (c *Layered) Invalidate(ctx context.Context, key string) {
	c.memory.Delete(key)
	if c.edge != nil {
		c.background(ctx, TierEdge, key, func(ctx context.Context) error {
			return c.edge.Delete(ctx, keyPrefix+key)
		})
	}
	if c.remote != nil {
		c.background(ctx, TierRemote, key, func(ctx context.Context) error {
			return c.remote.Delete(ctx, keyPrefix+key)
		})
	}
}

// Wait blocks until all background writes and deletes have finished.
func (c *Layered) Wait() {
	c.wg.Wait()
}

func (c *Layered) getOuter(ctx context.Context, tier string, s Store, key string) (domain.CachedGeocode, bool) {
	if s == nil {
		return domain.CachedGeocode{}, false
	}
	v, ok, err := s.Get(ctx, keyPrefix+key)
	switch {
	case err != nil:
		c.logger.Warn("cache tier read failed", "tier", tier, "key", key, "error", err)
		c.lookup(tier, "error")
		return domain.CachedGeocode{}, false
	case !ok:
		c.lookup(tier, "miss")
		return domain.CachedGeocode{}, false
	}
	c.logger.Debug("cache hit", "tier", tier, "key", key)
	c.lookup(tier, "hit")
	return v, true
}

// background runs op detached from the caller's cancellation, bounded by the
// write timeout.
func (c *Layered) background(parent context.Context, tier, key string, op func(ctx context.Context) error) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), c.writeTimeout)
		defer cancel()
		if err := op(ctx); err != nil {
			c.logger.Warn("cache tier write failed", "tier", tier, "key", key, "error", err)
			if c.metrics != nil {
				c.metrics.CacheWriteErrors.WithLabelValues(tier).Inc()
			}
		}
	}()
}

func (c *Layered) lookup(tier, result string) {
	if c.metrics != nil {
		c.metrics.CacheLookups.WithLabelValues(tier, result).Inc()
	}
}
