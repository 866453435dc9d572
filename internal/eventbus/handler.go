package eventbus

import "context"

// Handler processes lifecycle events on the bus. Handlers are called in
// priority order (lower value first) for the event types they declare.
type Handler interface {
	ID() string
	Handles() []EventType
	Priority() int
	Handle(ctx context.Context, event *Event, result *Result) error
}
