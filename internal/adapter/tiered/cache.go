// Package tiered implements the two-level (L1 + L2) summary cache.
package tiered

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Strob0t/tubedigest/internal/port/cache"
)

// DefaultCooldown is how long L2 is bypassed after it fails.
const DefaultCooldown = 15 * time.Second

// Cache combines an L1 (in-process) and L2 (shared) cache.
// Get checks L1 first, then L2 (backfilling L1 on L2 hit).
// Set and Delete operate on both levels. An unreachable L2 degrades the
// cache to L1 only: its errors are logged, never returned, and L2 is
// skipped for the cooldown that follows a failure.
type Cache struct {
	l1       cache.Cache
	l2       cache.Cache
	l1Expire time.Duration
	cooldown time.Duration

	downUntil atomic.Int64 // unix nanos; L2 is skipped before this instant
}

// Option tunes a Cache.
type Option func(*Cache)

// WithCooldown sets how long L2 is bypassed after a failure. Zero disables
// the bypass.
func WithCooldown(d time.Duration) Option {
	return func(c *Cache) { c.cooldown = d }
}

// New creates a tiered cache with the given L1 and L2 backends.
// l1Expire controls how long L2 backfill entries live in L1.
func New(l1, l2 cache.Cache, l1Expire time.Duration, opts ...Option) *Cache {
	c := &Cache{l1: l1, l2: l2, l1Expire: l1Expire, cooldown: DefaultCooldown}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get checks L1, then L2. On L2 hit, backfills L1.
func (c *Cache) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	val, found, err := c.l1.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if found {
		return val, true, nil
	}
	if !c.l2Up() {
		return nil, false, nil
	}

	val, found, err = c.l2.Get(ctx, key)
	if err != nil {
		c.l2Failed(ctx, "get", key, err)
		return nil, false, nil
	}
	if found {
		_ = c.l1.Set(ctx, key, val, c.l1Expire)
		return val, true, nil
	}

	return nil, false, nil
}

// Set writes to both L1 and L2.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.l1.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	if c.l2Up() {
		if err := c.l2.Set(ctx, key, value, ttl); err != nil {
			c.l2Failed(ctx, "set", key, err)
		}
	}
	return nil
}

// Delete removes from both L1 and L2.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.l1.Delete(ctx, key); err != nil {
		return err
	}
	if c.l2Up() {
		if err := c.l2.Delete(ctx, key); err != nil {
			c.l2Failed(ctx, "delete", key, err)
		}
	}
	return nil
}

func (c *Cache) l2Up() bool {
	return time.Now().UnixNano() >= c.downUntil.Load()
}

func (c *Cache) l2Failed(ctx context.Context, op, key string, err error) {
	slog.WarnContext(ctx, "l2 cache "+op+" failed", "key", key, "error", err, "bypass", c.cooldown)
	if c.cooldown > 0 {
		c.downUntil.Store(time.Now().Add(c.cooldown).UnixNano())
	}
}
