package eventbus

import "time"

// EventType discriminates the twin lifecycle notifications the bus
// carries. These are process-local observability hooks, not the
// durable TwinEvent log — losing one costs nothing but a metric tick.
type EventType string

const (
	EventTwinCreated     EventType = "TwinCreated"
	EventTwinLoaded      EventType = "TwinLoaded"
	EventTwinEvicted     EventType = "TwinEvicted"
	EventTwinSnapshotted EventType = "TwinSnapshotted"
	EventTwinDestroyed   EventType = "TwinDestroyed"
	EventTwinCloned      EventType = "TwinCloned"
)

// Event is a single lifecycle notification flowing through the bus.
type Event struct {
	Type      EventType
	TwinID    string
	ClassName string
	Timestamp time.Time

	// ChildID is set only for EventTwinCloned.
	ChildID string
}

// Result aggregates handler responses for an event. Lifecycle handlers
// are observational, so Result today only carries warnings a caller may
// choose to log.
type Result struct {
	Warnings []string
}
