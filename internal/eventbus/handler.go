package eventbus

import (
	"context"

	"github.com/scdev/scd/internal/types"
)

// wildcardAction subscribes a handler to every event action.
const wildcardAction = "*"

// Handler processes events on the bus. Handlers are called in priority
// order (lower priority value = called earlier) for matching event
// actions.
type Handler interface {
	// ID returns a unique identifier for this handler.
	ID() string

	// Handles returns the event actions this handler processes, or
	// []string{"*"} to receive every action.
	Handles() []string

	// Priority determines call order. Lower values are called first.
	Priority() int

	// Handle processes a single event. Returning an error logs a
	// warning but does not stop the handler chain — the bus is
	// resilient to a single misbehaving subscriber.
	Handle(ctx context.Context, event types.Event) error
}

// HandlerFunc adapts a plain function to Handler for a fixed list of
// actions (every action when the list is empty) at a fixed priority.
type HandlerFunc struct {
	id       string
	actions  []string
	priority int
	fn       func(ctx context.Context, event types.Event) error
}

// NewHandlerFunc builds a Handler from fn. actions may be empty to
// subscribe to everything.
func NewHandlerFunc(id string, priority int, actions []string, fn func(ctx context.Context, event types.Event) error) *HandlerFunc {
	if len(actions) == 0 {
		actions = []string{wildcardAction}
	}
	return &HandlerFunc{id: id, actions: actions, priority: priority, fn: fn}
}

func (h *HandlerFunc) ID() string         { return h.id }
func (h *HandlerFunc) Handles() []string  { return h.actions }
func (h *HandlerFunc) Priority() int      { return h.priority }
func (h *HandlerFunc) Handle(ctx context.Context, event types.Event) error {
	return h.fn(ctx, event)
}
