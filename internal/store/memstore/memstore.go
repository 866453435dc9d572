// Package memstore implements store.Store entirely in memory, for tests
// and ephemeral runs (§4.4 "In-memory" implementation).
package memstore

import (
	"context"
	"sort"
	"sync"

	"time"

	"github.com/twinlab/twinrt/internal/store"
	"github.com/twinlab/twinrt/internal/twin"
)

// Store is a global map version -> event (sorted by version on every
// read), a secondary index twin_id -> versions, and a single monotonic
// counter, the shape described in §4.4. counter is advanced under mu alongside the maps it
// indexes, not via a separate atomic, so it only ever reflects versions
// that are already visible to readers.
type Store struct {
	counter uint64

	mu        sync.RWMutex
	events    map[uint64]twin.Event
	byTwin    map[twin.ID][]uint64
	snapshots map[twin.ID]twin.Snapshot
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		events:    make(map[uint64]twin.Event),
		byTwin:    make(map[twin.ID][]uint64),
		snapshots: make(map[twin.ID]twin.Snapshot),
	}
}

var _ store.Store = (*Store)(nil)

// Append assigns the next version and records the event under both the
// global map and the per-twin index, all under the same lock — the
// counter only advances once the event is actually visible to readers,
// so GetLatestVersion can never report a version for an append that
// hasn't landed yet (§5: total_events is never larger than the true
// count).
func (s *Store) Append(_ context.Context, event twin.Event) (uint64, error) {
	s.mu.Lock()
	version := s.counter + 1
	s.counter = version
	s.events[version] = event
	s.byTwin[event.TwinID] = append(s.byTwin[event.TwinID], version)
	s.mu.Unlock()

	return version, nil
}

func (s *Store) GetEvents(_ context.Context, twinID twin.ID, afterVersion uint64) ([]store.VersionedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.byTwin[twinID]
	out := make([]store.VersionedEvent, 0, len(versions))
	for _, v := range versions {
		if v <= afterVersion {
			continue
		}
		out = append(out, store.VersionedEvent{Version: v, Event: s.events[v]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (s *Store) GetEventsInRange(_ context.Context, start, end time.Time) ([]store.VersionedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.VersionedEvent, 0)
	for v, e := range s.events {
		if e.Timestamp.Before(start) || e.Timestamp.After(end) {
			continue
		}
		out = append(out, store.VersionedEvent{Version: v, Event: e})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (s *Store) GetLatestVersion(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counter, nil
}

func (s *Store) SaveSnapshot(_ context.Context, snap twin.Snapshot) error {
	s.mu.Lock()
	s.snapshots[snap.TwinID] = snap
	s.mu.Unlock()
	return nil
}

func (s *Store) GetSnapshot(_ context.Context, twinID twin.ID) (twin.Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[twinID]
	return snap, ok, nil
}

func (s *Store) CleanupOldSnapshots(_ context.Context, before time.Time) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed uint64
	for id, snap := range s.snapshots {
		if snap.Timestamp.Before(before) {
			delete(s.snapshots, id)
			removed++
		}
	}
	return removed, nil
}

func (s *Store) Close() error { return nil }
