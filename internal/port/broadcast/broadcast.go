// Package broadcast defines the port for mirroring task events to live observers.
package broadcast

import "context"

// Broadcaster publishes task events to whoever is listening. Implementations
// must not block the caller; delivery is best effort.
type Broadcaster interface {
	// BroadcastEvent publishes payload under the given event type,
	// e.g. "orchestrator.item_complete".
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}

// Nop discards every event.
type Nop struct{}

// BroadcastEvent does nothing.
func (Nop) BroadcastEvent(context.Context, string, any) {}
