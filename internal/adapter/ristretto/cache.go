// Package ristretto implements the cache port using dgraph-io/ristretto as
// the in-process L1 of the summary cache.
package ristretto

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// avgEntryBytes sizes the admission counters; a summary is about 1 KiB.
const avgEntryBytes = 1 << 10

// Cache is a size-bounded in-process cache. Entries cost their byte length.
type Cache struct {
	c *ristretto.Cache[string, []byte]
}

// New creates a cache holding at most maxSizeMB megabytes of values, with
// hit/miss metrics enabled.
func New(maxSizeMB int64) (*Cache, error) {
	maxCost := maxSizeMB << 20
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: max(maxCost/avgEntryBytes*10, 1000),
		MaxCost:     maxCost,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c}, nil
}

// Get implements cache.Cache.
func (c *Cache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	val, found := c.c.Get(key)
	return val, found, nil
}

// Set stores a value with the given TTL and waits until it is visible to
// Get. An entry the admission policy refuses is dropped silently, like an
// eviction.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !c.c.SetWithTTL(key, value, int64(len(value)), ttl) {
		slog.DebugContext(ctx, "l1 cache dropped entry", "key", key, "bytes", len(value))
		return nil
	}
	c.c.Wait()
	return nil
}

// Delete implements cache.Cache.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.c.Del(key)
	return nil
}

// HitRatio is the share of Get calls that hit, since creation.
func (c *Cache) HitRatio() float64 {
	return c.c.Metrics.Ratio()
}

// Close logs the final hit ratio and releases the cache.
func (c *Cache) Close() {
	m := c.c.Metrics
	slog.Info("l1 cache closed", "hits", m.Hits(), "misses", m.Misses(), "hit_ratio", m.Ratio())
	c.c.Close()
}
