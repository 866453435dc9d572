// Package boltstore implements store.Store on top of go.etcd.io/bbolt,
// the embedded-KV backend described in §4.4/§6: three buckets (events,
// snapshots, twin_events), big-endian u64 version keys, and a version
// counter recovered at startup from the largest key already on disk.
package boltstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.etcd.io/bbolt"

	"github.com/twinlab/twinrt/internal/store"
	"github.com/twinlab/twinrt/internal/twin"
	"github.com/twinlab/twinrt/internal/wire"
)

var (
	bucketEvents     = []byte("events")
	bucketSnapshots  = []byte("snapshots")
	bucketTwinEvents = []byte("twin_events")
	retryMaxElapsed  = 5 * time.Second
)

// Store is the bbolt-backed EventStore/SnapshotStore. counter is guarded
// by counterMu rather than a bare atomic: the version must be visible to
// GetLatestVersion only once its event has actually committed, never
// while the write is still in flight or after it has failed, so
// assignment and commit are serialized under the same lock (§5:
// total_events is never larger than the true committed count).
type Store struct {
	db        *bbolt.DB
	counterMu sync.Mutex
	counter   uint64
}

// Open opens (creating if absent) a bbolt database at path, ensures the
// three required buckets exist, and recovers the version counter by
// scanning the largest key in the events bucket.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, twin.Wrap(twin.ErrorKindStorageFailure, err, "open bolt database %s", path)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketEvents, bucketSnapshots, bucketTwinEvents} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, twin.Wrap(twin.ErrorKindStorageFailure, err, "initialize buckets")
	}

	s := &Store{db: db}
	if err := s.recoverCounter(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) recoverCounter() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketEvents).Cursor()
		k, _ := c.Last()
		if k == nil {
			return nil
		}
		version, err := decodeVersionKey(k)
		if err != nil {
			return err
		}
		s.counterMu.Lock()
		s.counter = version
		s.counterMu.Unlock()
		return nil
	})
}

func encodeVersionKey(version uint64) []byte {
	var key [8]byte
	for i := 0; i < 8; i++ {
		key[7-i] = byte(version >> (8 * i))
	}
	return key[:]
}

func decodeVersionKey(key []byte) (uint64, error) {
	if len(key) != 8 {
		return 0, fmt.Errorf("boltstore: malformed version key (len %d)", len(key))
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(key[i])
	}
	return v, nil
}

// isRetryable reports whether err looks like a transient bbolt/filesystem
// failure worth retrying rather than surfacing immediately.
func isRetryable(err error) bool {
	switch err {
	case bbolt.ErrTimeout, bbolt.ErrDatabaseNotOpen:
		return true
	default:
		return false
	}
}

func (s *Store) retry(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = retryMaxElapsed
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if isRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(bo, ctx))
}

// Append writes event under the next version key, updates the per-twin
// index, and commits in a single bbolt transaction — bbolt fsyncs
// (or msyncs, platform-dependent) on every committed Update by default,
// satisfying §4.4's durability requirement.
func (s *Store) Append(ctx context.Context, event twin.Event) (uint64, error) {
	encoded, err := event.Encode()
	if err != nil {
		return 0, twin.Wrap(twin.ErrorKindStorageFailure, err, "encode event")
	}

	s.counterMu.Lock()
	defer s.counterMu.Unlock()

	version := s.counter + 1
	err = s.retry(ctx, func() error {
		return s.db.Update(func(tx *bbolt.Tx) error {
			if err := tx.Bucket(bucketEvents).Put(encodeVersionKey(version), encoded); err != nil {
				return err
			}
			return appendToTwinIndex(tx, event.TwinID, version)
		})
	})
	if err != nil {
		// The commit never landed, so the counter must not advance for
		// this version (§5: total_events is never larger than the true
		// committed count) — unlike the prior atomic-counter design,
		// holding counterMu across the whole attempt means no concurrent
		// Append could have raced ahead, so this is never a lossy rollback.
		return 0, twin.Wrap(twin.ErrorKindStorageFailure, err, "append event")
	}
	s.counter = version
	return version, nil
}

func appendToTwinIndex(tx *bbolt.Tx, twinID twin.ID, version uint64) error {
	b := tx.Bucket(bucketTwinEvents)
	key := twinID[:]
	existing := b.Get(key)

	versions, err := decodeVersionList(existing)
	if err != nil {
		return err
	}
	versions = append(versions, version)
	return b.Put(key, encodeVersionList(versions))
}

func encodeVersionList(versions []uint64) []byte {
	var buf []byte
	buf = wire.AppendUint32(buf, uint32(len(versions)))
	for _, v := range versions {
		var tmp [8]byte
		for i := 0; i < 8; i++ {
			tmp[7-i] = byte(v >> (8 * i))
		}
		buf = append(buf, tmp[:]...)
	}
	return buf
}

func decodeVersionList(buf []byte) ([]uint64, error) {
	if len(buf) == 0 {
		return nil, nil
	}
	n, rest, err := wire.ReadUint32(buf)
	if err != nil {
		return nil, twin.Wrap(twin.ErrorKindCorruptLog, err, "decode twin index count")
	}
	versions := make([]uint64, 0, n)
	for i := uint32(0); i < n; i++ {
		if len(rest) < 8 {
			return nil, twin.NewError(twin.ErrorKindCorruptLog, "decode twin index entry %d: truncated", i)
		}
		var v uint64
		for j := 0; j < 8; j++ {
			v = v<<8 | uint64(rest[j])
		}
		versions = append(versions, v)
		rest = rest[8:]
	}
	return versions, nil
}

func (s *Store) GetEvents(_ context.Context, twinID twin.ID, afterVersion uint64) ([]store.VersionedEvent, error) {
	var out []store.VersionedEvent
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketTwinEvents).Get(twinID[:])
		versions, err := decodeVersionList(raw)
		if err != nil {
			return err
		}

		events := tx.Bucket(bucketEvents)
		for _, v := range versions {
			if v <= afterVersion {
				continue
			}
			encoded := events.Get(encodeVersionKey(v))
			if encoded == nil {
				continue // index may lead writes only within the same append (§4.4)
			}
			ev, err := twin.DecodeEvent(encoded)
			if err != nil {
				return twin.Wrap(twin.ErrorKindCorruptLog, err, "decode event at version %d", v)
			}
			out = append(out, store.VersionedEvent{Version: v, Event: ev})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (s *Store) GetEventsInRange(_ context.Context, start, end time.Time) ([]store.VersionedEvent, error) {
	var out []store.VersionedEvent
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketEvents).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			version, err := decodeVersionKey(k)
			if err != nil {
				return err
			}
			ev, err := twin.DecodeEvent(v)
			if err != nil {
				return twin.Wrap(twin.ErrorKindCorruptLog, err, "decode event at version %d", version)
			}
			if ev.Timestamp.Before(start) || ev.Timestamp.After(end) {
				continue
			}
			out = append(out, store.VersionedEvent{Version: version, Event: ev})
		}
		return nil
	})
	return out, err
}

func (s *Store) GetLatestVersion(_ context.Context) (uint64, error) {
	s.counterMu.Lock()
	defer s.counterMu.Unlock()
	return s.counter, nil
}

func (s *Store) SaveSnapshot(ctx context.Context, snap twin.Snapshot) error {
	encoded := snap.Encode()
	err := s.retry(ctx, func() error {
		return s.db.Update(func(tx *bbolt.Tx) error {
			return tx.Bucket(bucketSnapshots).Put(snap.TwinID[:], encoded)
		})
	})
	if err != nil {
		return twin.Wrap(twin.ErrorKindStorageFailure, err, "save snapshot for %s", snap.TwinID)
	}
	return nil
}

func (s *Store) GetSnapshot(_ context.Context, twinID twin.ID) (twin.Snapshot, bool, error) {
	var snap twin.Snapshot
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketSnapshots).Get(twinID[:])
		if raw == nil {
			return nil
		}
		decoded, err := twin.DecodeSnapshot(raw)
		if err != nil {
			return twin.Wrap(twin.ErrorKindCorruptLog, err, "decode snapshot for %s", twinID)
		}
		snap, found = decoded, true
		return nil
	})
	return snap, found, err
}

func (s *Store) CleanupOldSnapshots(_ context.Context, before time.Time) (uint64, error) {
	var removed uint64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSnapshots)
		c := b.Cursor()
		var staleKeys [][]byte
		for k, v := c.First(); k != nil; k, v = c.Next() {
			snap, err := twin.DecodeSnapshot(v)
			if err != nil {
				return twin.Wrap(twin.ErrorKindCorruptLog, err, "decode snapshot during cleanup")
			}
			if snap.Timestamp.Before(before) {
				staleKeys = append(staleKeys, append([]byte(nil), k...))
			}
		}
		for _, k := range staleKeys {
			if err := b.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

// Close releases the underlying bbolt file handle.
func (s *Store) Close() error { return s.db.Close() }

var _ store.Store = (*Store)(nil)
