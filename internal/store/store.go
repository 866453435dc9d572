// Package store defines the EventStore and SnapshotStore contracts
// (§4.4–4.5) shared by the in-memory and embedded-KV backends.
package store

import (
	"context"
	"time"

	"github.com/twinlab/twinrt/internal/twin"
)

// EventStore is the durable, append-only log of twin state changes.
// Every method may suspend on I/O; implementations must make an append
// visible to subsequent Get* calls on any goroutine before Append
// returns (§4.4 durability & ordering).
type EventStore interface {
	// Append atomically assigns the twin the next global version and
	// durably persists event, returning the assigned version. Versions
	// are strictly monotonic, start at 1, and are never reused.
	Append(ctx context.Context, event twin.Event) (uint64, error)

	// GetEvents returns events for twinID with version strictly greater
	// than afterVersion, in ascending version order.
	GetEvents(ctx context.Context, twinID twin.ID, afterVersion uint64) ([]VersionedEvent, error)

	// GetEventsInRange returns events across all twins whose timestamp
	// falls in [start, end], ordered by version.
	GetEventsInRange(ctx context.Context, start, end time.Time) ([]VersionedEvent, error)

	// GetLatestVersion returns the largest assigned version, or 0 if the
	// store is empty.
	GetLatestVersion(ctx context.Context) (uint64, error)
}

// VersionedEvent pairs a stored event with the version it was assigned.
type VersionedEvent struct {
	Version uint64
	Event   twin.Event
}

// SnapshotStore holds at most one snapshot per twin; the newest always
// wins (§4.5).
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap twin.Snapshot) error
	GetSnapshot(ctx context.Context, twinID twin.ID) (twin.Snapshot, bool, error)
	CleanupOldSnapshots(ctx context.Context, before time.Time) (uint64, error)
}

// Store is the combined EventStore + SnapshotStore contract a backend
// must satisfy to back the Registry (§4.4); events and snapshots are
// co-hosted behind a single backend rather than split across two.
type Store interface {
	EventStore
	SnapshotStore
	Close() error
}
