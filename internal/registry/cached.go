package registry

import (
	"context"

	"github.com/couchcryptid/radar-volume-etl/internal/cache"
	"github.com/couchcryptid/radar-volume-etl/internal/observability"
)

// Cached wraps a Registry with an in-memory LRU cache.
type Cached struct {
	inner   Registry
	cache   *cache.LRU[string, Station]
	metrics *observability.Metrics
}

// NewCached creates a cache decorator around a registry.
func NewCached(inner Registry, maxEntries int, metrics *observability.Metrics) *Cached {
	return &Cached{
		inner:   inner,
		cache:   cache.NewLRU[string, Station](maxEntries),
		metrics: metrics,
	}
}

func (c *Cached) Lookup(ctx context.Context, id string) (Station, error) {
	if st, ok := c.cache.Get(id); ok {
		c.metrics.RegistryCache.WithLabelValues("hit").Inc()
		return st, nil
	}
	c.metrics.RegistryCache.WithLabelValues("miss").Inc()
	st, err := c.inner.Lookup(ctx, id)
	if err != nil {
		// Errors, including unknown stations, are not cached.
		return Station{}, err
	}
	c.cache.Put(id, st)
	return st, nil
}
