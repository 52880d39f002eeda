// Package secrets provides the credential cache: lock-free reads of secret
// values resolved once from a backend, with forced refresh on auth failure.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Strob0t/tubedigest/internal/domain"
)

const redacted = "[REDACTED]"

// Value is a secret value. It never prints itself.
type Value string

// String implements fmt.Stringer with a redacted placeholder.
func (Value) String() string { return redacted }

// GoString keeps %#v redacted too.
func (Value) GoString() string { return redacted }

// LogValue implements slog.LogValuer.
func (Value) LogValue() slog.Value { return slog.StringValue(redacted) }

// Reveal returns the raw secret for handing to a client library.
func (v Value) Reveal() string { return string(v) }

// Entry is one cached secret.
type Entry struct {
	Name      string
	Value     Value
	FetchedAt time.Time
}

// Cache resolves secrets on first use and serves later reads from an
// immutable snapshot. Writers replace the whole snapshot under a mutex.
type Cache struct {
	resolver Resolver
	snapshot atomic.Pointer[map[string]Entry]
	mu       sync.Mutex
	group    singleflight.Group
	fetches  atomic.Int64
	now      func() time.Time
}

// NewCache creates an empty Cache backed by r.
func NewCache(r Resolver) *Cache {
	c := &Cache{resolver: r, now: time.Now}
	empty := map[string]Entry{}
	c.snapshot.Store(&empty)
	return c
}

// Get returns the cached value for name, fetching it on first use.
// Concurrent first uses share one fetch, which outlives the cancellation
// of the caller that started it.
func (c *Cache) Get(ctx context.Context, name string) (Value, error) {
	if e, ok := c.lookup(name); ok {
		return e.Value, nil
	}
	v, err, _ := c.group.Do("get:"+name, func() (any, error) {
		if e, ok := c.lookup(name); ok {
			return e.Value, nil
		}
		return c.fetch(context.WithoutCancel(ctx), name)
	})
	if err != nil {
		return "", err
	}
	return v.(Value), nil
}

// Refresh forces a fetch of name and replaces the cached entry. When the
// fetch fails and an entry already exists, the old value is kept and
// returned.
func (c *Cache) Refresh(ctx context.Context, name string) (Value, error) {
	v, err, _ := c.group.Do("refresh:"+name, func() (any, error) {
		return c.fetch(context.WithoutCancel(ctx), name)
	})
	if err == nil {
		return v.(Value), nil
	}
	if e, ok := c.lookup(name); ok {
		slog.WarnContext(ctx, "secret refresh failed, keeping previous value", "secret", name, "error", err)
		return e.Value, nil
	}
	return "", err
}

// Entries returns a copy of the current snapshot.
func (c *Cache) Entries() map[string]Entry {
	return maps.Clone(*c.snapshot.Load())
}

// Fetches returns how many backend fetches the cache has made.
func (c *Cache) Fetches() int64 {
	return c.fetches.Load()
}

func (c *Cache) lookup(name string) (Entry, bool) {
	e, ok := (*c.snapshot.Load())[name]
	return e, ok
}

func (c *Cache) fetch(ctx context.Context, name string) (Value, error) {
	c.fetches.Add(1)
	raw, err := c.resolver.Resolve(ctx, name)
	if err != nil {
		return "", fmt.Errorf("resolve secret %q: %w", name, err)
	}
	v := Value(raw)
	c.store(Entry{Name: name, Value: v, FetchedAt: c.now()})
	slog.DebugContext(ctx, "secret resolved", "secret", name)
	return v, nil
}

func (c *Cache) store(e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := maps.Clone(*c.snapshot.Load())
	next[e.Name] = e
	c.snapshot.Store(&next)
}

// WithAuthRetry runs fn with the secret called name. If fn fails with
// domain.ErrAuthFailure the secret is refreshed and fn is retried exactly
// once. A secret that cannot be resolved fails before fn runs, without a
// refresh. An empty name runs fn with an empty value and no retry.
func WithAuthRetry[T any](ctx context.Context, c *Cache, name string, fn func(context.Context, Value) (T, error)) (T, error) {
	if name == "" {
		return fn(ctx, "")
	}
	var zero T
	v, err := c.Get(ctx, name)
	if err != nil {
		return zero, err
	}
	out, err := fn(ctx, v)
	if err == nil || !errors.Is(err, domain.ErrAuthFailure) {
		return out, err
	}
	slog.InfoContext(ctx, "auth failure, refreshing secret", "secret", name)
	fresh, rerr := c.Refresh(ctx, name)
	if rerr != nil {
		return zero, err
	}
	return fn(ctx, fresh)
}
