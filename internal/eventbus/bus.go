// Package eventbus implements the in-process event bus: priority-sorted
// handler dispatch over entity mutation events, with wildcard
// subscription. There is no distributed/persistent transport here — the
// teacher's NATS JetStream integration has no analogue in this project's
// dependency surface, so the bus is purely in-process pub/sub (see
// DESIGN.md).
package eventbus

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/scdev/scd/internal/types"
)

// Bus dispatches entity-mutation events to registered handlers.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

// New creates an empty event bus.
func New() *Bus {
	return &Bus{}
}

// Register adds a handler to the bus. Handlers are sorted by priority on
// each Publish call, so registration order does not matter.
func (b *Bus) Register(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Unregister removes a handler by ID. Returns true if a handler was
// removed.
func (b *Bus) Unregister(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, h := range b.handlers {
		if h.ID() == id {
			b.handlers = append(b.handlers[:i], b.handlers[i+1:]...)
			return true
		}
	}
	return false
}

// Handlers returns a snapshot of registered handlers, for status
// reporting.
func (b *Bus) Handlers() []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Handler, len(b.handlers))
	copy(out, b.handlers)
	return out
}

// Publish satisfies store.EventSink: it dispatches event to every
// matching handler, sequentially, in priority order (lowest first).
// Handler errors are logged but never stop the chain.
func (b *Bus) Publish(ctx context.Context, event types.Event) {
	b.mu.RLock()
	matching := b.matchingHandlers(event.Action)
	b.mu.RUnlock()

	for _, h := range matching {
		if err := ctx.Err(); err != nil {
			log.Printf("eventbus: context canceled mid-dispatch for %s: %v", event.Action, err)
			return
		}
		if err := h.Handle(ctx, event); err != nil {
			log.Printf("eventbus: handler %q error for %s on %s: %v", h.ID(), event.Action, event.EntityUUID, err)
		}
	}
}

// PublishAndCollect is Publish's synchronous-error-collecting cousin, for
// callers (tests, the CLI's foreground commands) that need to observe
// handler failures instead of relying on the resilient fire-and-forget
// path.
func (b *Bus) PublishAndCollect(ctx context.Context, event types.Event) []error {
	b.mu.RLock()
	matching := b.matchingHandlers(event.Action)
	b.mu.RUnlock()

	var errs []error
	for _, h := range matching {
		if err := ctx.Err(); err != nil {
			return append(errs, fmt.Errorf("eventbus: context canceled: %w", err))
		}
		if err := h.Handle(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("handler %s: %w", h.ID(), err))
		}
	}
	return errs
}

// matchingHandlers returns handlers subscribed to action (or to the
// wildcard), sorted by priority. Must be called with at least a read
// lock held.
func (b *Bus) matchingHandlers(action string) []Handler {
	var matched []Handler
	for _, h := range b.handlers {
		for _, a := range h.Handles() {
			if a == action || a == wildcardAction {
				matched = append(matched, h)
				break
			}
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Priority() < matched[j].Priority()
	})
	return matched
}
