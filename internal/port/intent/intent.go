// Package intent defines the port that turns free text into a structured
// video-listing intent.
package intent

import (
	"context"

	"github.com/Strob0t/tubedigest/internal/domain/task"
)

// Resolver maps free text to a channel+date or playlist intent. Failures
// wrap domain.ErrIntentUnresolved.
type Resolver interface {
	Resolve(ctx context.Context, text string) (task.Intent, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, text string) (task.Intent, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, text string) (task.Intent, error) {
	return f(ctx, text)
}
