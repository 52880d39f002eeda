// Package fanout runs one operation per item with bounded concurrency and
// collects per-item outcomes aligned with the input order.
package fanout

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/Strob0t/tubedigest/internal/domain"
)

const (
	// DefaultLimit is the concurrency used when Options.Limit is unset.
	DefaultLimit = 8
	// MaxLimit caps Options.Limit.
	MaxLimit = 16
)

// Outcome is the result of one item. Exactly one of Value or Err is meaningful.
type Outcome[R any] struct {
	Index int
	Value R
	Err   error
}

// OK reports whether the item succeeded.
func (o Outcome[R]) OK() bool { return o.Err == nil }

// Report aggregates every outcome. Outcomes[i] belongs to items[i].
type Report[R any] struct {
	Outcomes  []Outcome[R]
	Succeeded int
	Failed    int
}

// Values returns successful values in item order.
func (r Report[R]) Values() []R {
	out := make([]R, 0, r.Succeeded)
	for _, o := range r.Outcomes {
		if o.OK() {
			out = append(out, o.Value)
		}
	}
	return out
}

// Options tunes a Run.
type Options[R any] struct {
	// Limit bounds concurrent operations. Zero means DefaultLimit; values
	// above MaxLimit are capped.
	Limit int
	// OnItem is called as each item completes, in completion order. Calls
	// are serialized.
	OnItem func(Outcome[R])
}

// Op processes one item.
type Op[T, R any] func(ctx context.Context, index int, item T) (R, error)

// Run applies op to every item and waits for all of them. A failing or
// panicking item never cancels the others. An item still waiting for a
// slot when ctx ends fails with the context error and op is not called.
// When every item fails, Run returns domain.ErrAllItemsFailed with the
// full report.
func Run[T, R any](ctx context.Context, items []T, op Op[T, R], opts Options[R]) (Report[R], error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	sem := semaphore.NewWeighted(int64(limit))
	outcomes := make([]Outcome[R], len(items))

	var (
		wg   sync.WaitGroup
		cbMu sync.Mutex
	)
	for i, item := range items {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var (
				val R
				err error
			)
			if aerr := sem.Acquire(ctx, 1); aerr != nil {
				err = fmt.Errorf("waiting for slot: %w", aerr)
			} else {
				val, err = safeCall(ctx, op, i, item)
				sem.Release(1)
			}
			outcomes[i] = Outcome[R]{Index: i, Value: val, Err: err}
			if opts.OnItem != nil {
				cbMu.Lock()
				opts.OnItem(outcomes[i])
				cbMu.Unlock()
			}
		}()
	}
	wg.Wait()

	rep := Report[R]{Outcomes: outcomes}
	for _, o := range outcomes {
		if o.OK() {
			rep.Succeeded++
		} else {
			rep.Failed++
		}
	}
	if len(items) > 0 && rep.Succeeded == 0 {
		return rep, domain.ErrAllItemsFailed
	}
	return rep, nil
}

func safeCall[T, R any](ctx context.Context, op Op[T, R], i int, item T) (val R, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "fan-out item panicked", "index", i, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("item %d panicked: %v", i, r)
		}
	}()
	return op(ctx, i, item)
}
