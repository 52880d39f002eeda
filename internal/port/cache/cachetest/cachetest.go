// Package cachetest holds the compliance suite every cache.Cache adapter runs.
package cachetest

import (
	"context"
	"testing"
	"time"

	"github.com/Strob0t/tubedigest/internal/port/cache"
)

// Run runs the standard compliance test suite against c. Keys are prefixed
// so that suites sharing a remote bucket do not collide.
func Run(t *testing.T, c cache.Cache, prefix string) {
	t.Helper()
	ctx := context.Background()
	key := func(k string) string { return prefix + k }

	t.Run("SetAndGet", func(t *testing.T) {
		if err := c.Set(ctx, key("summary.abc"), []byte("a summary"), time.Minute); err != nil {
			t.Fatal(err)
		}
		val, found, err := c.Get(ctx, key("summary.abc"))
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatal("expected found after Set")
		}
		if string(val) != "a summary" {
			t.Fatalf("expected %q, got %q", "a summary", val)
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		_, found, err := c.Get(ctx, key("summary.missing"))
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss for nonexistent key")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = c.Set(ctx, key("summary.del"), []byte("gone soon"), time.Minute)
		if err := c.Delete(ctx, key("summary.del")); err != nil {
			t.Fatal(err)
		}
		_, found, err := c.Get(ctx, key("summary.del"))
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss after Delete")
		}
	})

	t.Run("DeleteNonexistent", func(t *testing.T) {
		if err := c.Delete(ctx, key("summary.never")); err != nil {
			t.Fatal("Delete of nonexistent key should not error")
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		_ = c.Set(ctx, key("summary.ow"), []byte("v1"), time.Minute)
		_ = c.Set(ctx, key("summary.ow"), []byte("v2"), time.Minute)
		val, found, err := c.Get(ctx, key("summary.ow"))
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatal("expected found after overwrite")
		}
		if string(val) != "v2" {
			t.Fatalf("expected v2 after overwrite, got %s", val)
		}
	})
}
