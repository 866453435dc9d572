// Package eventbus is a small in-process lifecycle notification bus:
// the runtime dispatches TwinCreated/TwinLoaded/TwinEvicted/... events
// to registered handlers (telemetry counters, diagnostics loggers),
// sequentially in priority order, tolerating handler failure.
package eventbus

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
)

// Bus dispatches lifecycle events to registered handlers.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

// New creates an empty bus.
func New() *Bus { return &Bus{} }

// Register adds a handler. Handlers are sorted by priority on each
// Dispatch call; registration order only decides between handlers of
// equal priority.
func (b *Bus) Register(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Unregister removes a handler by ID, reporting whether one was found.
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

func (b *Bus) matchingHandlers(t EventType) []Handler {
	var matched []Handler
	for _, h := range b.handlers {
		for _, handled := range h.Handles() {
			if handled == t {
				matched = append(matched, h)
				break
			}
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Priority() < matched[j].Priority() })
	return matched
}

// Dispatch sends event to every handler that declared interest, in
// priority order. A handler error is logged but never stops the chain —
// the runtime's lifecycle notifications are best-effort (§7: only the
// durable event log is failure-propagating).
func (b *Bus) Dispatch(ctx context.Context, event *Event) (*Result, error) {
	if event == nil {
		return nil, fmt.Errorf("eventbus: nil event")
	}

	b.mu.RLock()
	matching := b.matchingHandlers(event.Type)
	b.mu.RUnlock()

	result := &Result{}
	for _, h := range matching {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("eventbus: context canceled: %w", err)
		}
		if err := h.Handle(ctx, event, result); err != nil {
			log.Printf("eventbus: handler %q error for %s: %v", h.ID(), event.Type, err)
		}
	}
	return result, nil
}
