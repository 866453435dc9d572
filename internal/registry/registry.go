// Package registry implements the Runtime (§4.6): the live-twin table,
// lazy rehydration, telemetry ingest, snapshotting, and idle eviction.
package registry

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/twinlab/twinrt/internal/eventbus"
	"github.com/twinlab/twinrt/internal/message"
	"github.com/twinlab/twinrt/internal/store"
	"github.com/twinlab/twinrt/internal/twin"
	"github.com/twinlab/twinrt/internal/value"
)

// Config carries the runtime tunables named in §4.6.
type Config struct {
	EvictionTimeout    time.Duration
	EvictionInterval   time.Duration
	SnapshotOnEviction bool
	MaxActiveTwins     int // carried from config; Runtime does not enforce any bound on resident twins
}

// resident wraps one live Twin with the per-twin lock and last-access
// clock the concurrency model requires (§5): property reads take a read
// lock, Send takes a write lock, and last-access lives behind its own
// atomic so it can be refreshed without contending the twin lock.
type resident struct {
	mu         sync.RWMutex
	twin       *twin.Twin
	lastAccess atomic.Int64
}

func (r *resident) touch() { r.lastAccess.Store(time.Now().UTC().UnixNano()) }

// Runtime is the process-wide twin host. It is passed explicitly to
// every caller; there is no ambient singleton (§9 design notes).
type Runtime struct {
	cfg   Config
	store store.Store
	bus   *eventbus.Bus

	mu    sync.RWMutex
	twins map[twin.ID]*resident

	loadGroup singleflight.Group

	stopEviction context.CancelFunc
	evictionDone chan struct{}
}

// New builds a Runtime over backend, applying defaults for zero-valued
// Config fields. Lifecycle notifications (twin created/loaded/evicted/
// snapshotted/destroyed/cloned) are dispatched on bus; pass eventbus.New()
// to get metrics or diagnostics wired up, or nil for a no-op bus.
func New(backend store.Store, cfg Config, bus *eventbus.Bus) *Runtime {
	if cfg.EvictionTimeout <= 0 {
		cfg.EvictionTimeout = 5 * time.Minute
	}
	if cfg.EvictionInterval <= 0 {
		cfg.EvictionInterval = time.Minute
	}
	if bus == nil {
		bus = eventbus.New()
	}
	return &Runtime{
		cfg:   cfg,
		store: backend,
		bus:   bus,
		twins: make(map[twin.ID]*resident),
	}
}

// Bus returns the Runtime's lifecycle notification bus so callers can
// register additional handlers (metrics, diagnostics) after construction.
func (rt *Runtime) Bus() *eventbus.Bus { return rt.bus }

func (rt *Runtime) notify(ctx context.Context, ev *eventbus.Event) {
	if _, err := rt.bus.Dispatch(ctx, ev); err != nil {
		log.Printf("registry: lifecycle dispatch failed: %v", err)
	}
}

// CreateTwin builds a new Twin, appends Created, and inserts it into the
// registry with access-time = now (§4.6 create_twin).
func (rt *Runtime) CreateTwin(ctx context.Context, className string) (twin.ID, error) {
	id := twin.NewID()
	now := time.Now().UTC()
	t := twin.NewTwin(id, className, now)

	_, err := rt.store.Append(ctx, twin.Event{Kind: twin.EventCreated, TwinID: id, Timestamp: now, ClassName: className})
	if err != nil {
		return twin.ID{}, err
	}

	r := &resident{twin: t}
	r.touch()
	rt.mu.Lock()
	rt.twins[id] = r
	rt.mu.Unlock()

	rt.notify(ctx, &eventbus.Event{Type: eventbus.EventTwinCreated, TwinID: id.String(), ClassName: className, Timestamp: now})

	return id, nil
}

// CreateHypotheticalTwin constructs an in-memory-only twin and inserts it
// into the registry without appending any event (§4.6). Hypothetical
// twins are pinned — EvictInactive never considers them.
func (rt *Runtime) CreateHypotheticalTwin(className string) twin.ID {
	id := twin.NewID()
	now := time.Now().UTC()
	t := twin.NewHypotheticalTwin(id, className, now)

	r := &resident{twin: t}
	r.touch()
	rt.mu.Lock()
	rt.twins[id] = r
	rt.mu.Unlock()

	rt.notify(context.Background(), &eventbus.Event{Type: eventbus.EventTwinCreated, TwinID: id.String(), ClassName: className, Timestamp: now})

	return id
}

// CloneHypothetical implements the aggregator ADT contract's "create
// hypothetical clones of resident twins" operation (§4.7): it loads id
// (if necessary), produces an in-memory-only hypothetical sibling with
// copied properties and simulation_time = now, and adopts it into the
// registry without appending any event — hypothetical twins never touch
// the durable log (invariant 4).
func (rt *Runtime) CloneHypothetical(ctx context.Context, id twin.ID) (twin.ID, error) {
	h, err := rt.GetTwin(ctx, id)
	if err != nil {
		return twin.ID{}, err
	}

	newID := twin.NewID()
	now := time.Now().UTC()

	h.r.mu.RLock()
	className := h.r.twin.State.ClassName
	props := h.r.twin.State.CloneProperties()
	h.r.mu.RUnlock()

	child := twin.NewHypotheticalTwin(newID, className, now)
	for k, v := range props {
		child.State.Properties[k] = v
	}

	r := &resident{twin: child}
	r.touch()
	rt.mu.Lock()
	rt.twins[newID] = r
	rt.mu.Unlock()

	rt.notify(ctx, &eventbus.Event{Type: eventbus.EventTwinCloned, TwinID: id.String(), ClassName: className, Timestamp: now, ChildID: newID.String()})

	return newID, nil
}

// GetTwin returns a resident handle for id, running the lazy load
// protocol (§4.6) if it is not already resident.
func (rt *Runtime) GetTwin(ctx context.Context, id twin.ID) (*Handle, error) {
	rt.mu.RLock()
	r, ok := rt.twins[id]
	rt.mu.RUnlock()
	if ok {
		r.touch()
		return &Handle{r: r}, nil
	}

	// singleflight.Group coalesces concurrent loads of the same id onto
	// one call (§5 "at most one reload per id"); losers of the race
	// share the winner's result.
	v, err, _ := rt.loadGroup.Do(id.String(), func() (interface{}, error) {
		rt.mu.RLock()
		if existing, ok := rt.twins[id]; ok {
			rt.mu.RUnlock()
			existing.touch()
			return existing, nil
		}
		rt.mu.RUnlock()

		loaded, err := rt.load(ctx, id)
		if err != nil {
			return nil, err
		}
		r := &resident{twin: loaded}
		r.touch()

		rt.mu.Lock()
		if existing, ok := rt.twins[id]; ok {
			rt.mu.Unlock()
			existing.touch()
			return existing, nil
		}
		rt.twins[id] = r
		rt.mu.Unlock()
		rt.notify(ctx, &eventbus.Event{Type: eventbus.EventTwinLoaded, TwinID: id.String(), ClassName: loaded.State.ClassName, Timestamp: time.Now().UTC()})
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	return &Handle{r: v.(*resident)}, nil
}

// load runs the load protocol (§4.6): snapshot, then tail events, then
// deterministic replay via the same Apply path a live write uses.
func (rt *Runtime) load(ctx context.Context, id twin.ID) (*twin.Twin, error) {
	var startVersion uint64
	var t *twin.Twin

	snap, hadSnapshot, err := rt.store.GetSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	if hadSnapshot {
		t = twin.FromState(twin.State{
			ID:         snap.TwinID,
			ClassName:  snap.ClassName,
			Properties: cloneProps(snap.Properties),
			ParentID:   snap.ParentID,
			CreatedAt:  snap.Timestamp,
			UpdatedAt:  snap.Timestamp,
		})
		startVersion = snap.EventVersion
	}

	events, err := rt.store.GetEvents(ctx, id, startVersion)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 && !hadSnapshot {
		return nil, twin.ErrNotFound
	}

	if !hadSnapshot {
		first := events[0].Event
		if first.Kind != twin.EventCreated {
			return nil, twin.NewError(twin.ErrorKindCorruptLog, "first event for twin %s is %v, not Created", id, first.Kind)
		}
		t = twin.NewTwin(id, first.ClassName, first.Timestamp)
		events = events[1:]
	}

	for _, ve := range events {
		t.Apply(ve.Event)
	}
	if t.State.Destroyed {
		// §3 lifecycle: "subsequent loads fail" once Destroyed has been
		// appended — a destroyed twin must not resurface as a usable handle.
		return nil, twin.ErrNotFound
	}
	return t, nil
}

func cloneProps(m map[string]value.Value) map[string]value.Value {
	cp := make(map[string]value.Value, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// SendMessage dispatches msg to the twin identified by id (loading it if
// necessary), persists any resulting events, and adopts a spawned clone
// into the registry.
func (rt *Runtime) SendMessage(ctx context.Context, id twin.ID, msg *message.Message) (value.Value, error) {
	h, err := rt.GetTwin(ctx, id)
	if err != nil {
		return value.Value{}, err
	}

	h.r.mu.Lock()
	res, err := h.r.twin.Send(msg)
	h.r.mu.Unlock()
	if err != nil {
		return value.Value{}, err
	}

	for _, ev := range res.Events {
		if _, err := rt.store.Append(ctx, ev); err != nil {
			return value.Value{}, err
		}
	}

	if res.Spawned != nil {
		r := &resident{twin: res.Spawned}
		r.touch()
		rt.mu.Lock()
		rt.twins[res.Spawned.State.ID] = r
		rt.mu.Unlock()
		rt.notify(ctx, &eventbus.Event{Type: eventbus.EventTwinCloned, TwinID: id.String(), Timestamp: time.Now().UTC(), ChildID: res.Spawned.State.ID.String()})
	}

	if msg.Kind == message.KindDestroy {
		rt.notify(ctx, &eventbus.Event{Type: eventbus.EventTwinDestroyed, TwinID: id.String(), Timestamp: time.Now().UTC()})
	}

	return res.Value, nil
}

// UpdateTelemetry appends a TelemetryReceived event — unless the twin is
// resident and hypothetical, in which case persistence is skipped — and,
// only if the twin happens to be resident right now, also applies it to
// the in-memory state — the true lazy path described in §4.6: telemetry
// for a non-resident twin is durably recorded without loading it, and
// telemetry for a resident hypothetical twin updates its simulated state
// without ever touching the durable log.
func (rt *Runtime) UpdateTelemetry(ctx context.Context, id twin.ID, readings map[string]float64) error {
	rt.mu.RLock()
	r, resident := rt.twins[id]
	rt.mu.RUnlock()

	hypothetical := resident && r.twin.State.IsHypothetical

	now := time.Now().UTC()
	if !hypothetical {
		if _, err := rt.store.Append(ctx, twin.Event{
			Kind: twin.EventTelemetryReceived, TwinID: id, Timestamp: now, Telemetry: readings,
		}); err != nil {
			return err
		}
	}

	if resident {
		r.mu.Lock()
		if r.twin.State.Destroyed {
			r.mu.Unlock()
			return twin.NewError(twin.ErrorKindInvalidOperation, "update_telemetry for destroyed twin %s", id)
		}
		r.twin.Apply(twin.Event{Kind: twin.EventTelemetryReceived, TwinID: id, Timestamp: now, Telemetry: readings})
		r.mu.Unlock()
		r.touch()
	}
	return nil
}

// SnapshotTwin loads (or reuses) the twin, captures its projection, and
// saves it keyed by the latest assigned version (§4.6 snapshot_twin).
// A resident twin's last-access time is left as it is, so a snapshot
// taken just before eviction does not make the twin look recently used.
func (rt *Runtime) SnapshotTwin(ctx context.Context, id twin.ID) error {
	rt.mu.RLock()
	r, ok := rt.twins[id]
	rt.mu.RUnlock()
	h := &Handle{r: r}
	if !ok {
		var err error
		if h, err = rt.GetTwin(ctx, id); err != nil {
			return err
		}
	}

	h.r.mu.RLock()
	snap := twin.Snapshot{
		TwinID:     id,
		ClassName:  h.r.twin.State.ClassName,
		Properties: h.r.twin.State.CloneProperties(),
		ParentID:   h.r.twin.State.ParentID,
		Timestamp:  time.Now().UTC(),
	}
	h.r.mu.RUnlock()

	version, err := rt.store.GetLatestVersion(ctx)
	if err != nil {
		return err
	}
	snap.EventVersion = version

	if err := rt.store.SaveSnapshot(ctx, snap); err != nil {
		return err
	}
	rt.notify(ctx, &eventbus.Event{Type: eventbus.EventTwinSnapshotted, TwinID: id.String(), ClassName: snap.ClassName, Timestamp: snap.Timestamp})
	return nil
}

// EvictInactive scans resident twins and drops any whose last-access age
// exceeds the configured timeout, optionally snapshotting first. The
// sweep fans out with a bounded errgroup instead of a hand-rolled
// semaphore + WaitGroup — the ecosystem equivalent of the same pattern
// (§2.2). Hypothetical twins are never eligible: they are pinned (§5).
func (rt *Runtime) EvictInactive(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	rt.mu.RLock()
	var candidates []twin.ID
	for id, r := range rt.twins {
		if r.twin.State.IsHypothetical {
			continue
		}
		age := now.Sub(time.Unix(0, r.lastAccess.Load()))
		if age >= rt.cfg.EvictionTimeout {
			candidates = append(candidates, id)
		}
	}
	rt.mu.RUnlock()

	if len(candidates) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	var mu sync.Mutex
	var evicted []twin.ID

	for _, id := range candidates {
		id := id
		g.Go(func() error {
			if rt.cfg.SnapshotOnEviction {
				if err := rt.SnapshotTwin(gctx, id); err != nil {
					// A failed snapshot must not stop eviction of other
					// twins (§7 propagation rule for the background task).
					log.Printf("registry: snapshot before evict %s: %v", id, err)
					return nil
				}
			}
			mu.Lock()
			evicted = append(evicted, id)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	rt.mu.Lock()
	var count int
	for _, id := range evicted {
		r, ok := rt.twins[id]
		if !ok {
			continue
		}
		age := now.Sub(time.Unix(0, r.lastAccess.Load()))
		if age < rt.cfg.EvictionTimeout {
			continue // refreshed by a concurrent access since the scan
		}
		delete(rt.twins, id)
		count++
		rt.notify(ctx, &eventbus.Event{Type: eventbus.EventTwinEvicted, TwinID: id.String(), Timestamp: now})
	}
	rt.mu.Unlock()

	return count, nil
}

// StartEvictionTask spawns a periodic goroutine ticking at
// EvictionInterval that calls EvictInactive, logging and continuing on
// failure (§4.6, §7). Call the returned context.CancelFunc to stop it.
func (rt *Runtime) StartEvictionTask(ctx context.Context) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	rt.stopEviction = cancel
	rt.evictionDone = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(rt.cfg.EvictionInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := rt.EvictInactive(ctx); err != nil {
					log.Printf("registry: eviction sweep failed: %v", err)
				}
			}
		}
	}()
	return cancel
}

// Stats is the result of Stats() (§4.6 stats()). TotalEvents is a
// snapshot read and may lag the most recent append by one operation,
// but is never larger than the true count (§5 ordering guarantees).
type Stats struct {
	ActiveTwins int
	TotalEvents uint64
}

func (rt *Runtime) Stats(ctx context.Context) (Stats, error) {
	rt.mu.RLock()
	active := len(rt.twins)
	rt.mu.RUnlock()

	total, err := rt.store.GetLatestVersion(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{ActiveTwins: active, TotalEvents: total}, nil
}

// Handle is a read/write handle onto a resident twin, the "handle"
// get_twin returns in §4.6. It exists so callers (including the
// aggregator contract in §4.7) never touch a *twin.Twin without going
// through its lock.
type Handle struct {
	r *resident
}

func (h *Handle) ID() twin.ID { return h.r.twin.State.ID }

func (h *Handle) ClassName() string {
	h.r.mu.RLock()
	defer h.r.mu.RUnlock()
	return h.r.twin.State.ClassName
}

func (h *Handle) Property(name string) value.Value {
	h.r.mu.RLock()
	defer h.r.mu.RUnlock()
	v, ok := h.r.twin.State.Properties[name]
	if !ok {
		return value.Nil()
	}
	return v
}

func (h *Handle) AllProperties() map[string]value.Value {
	h.r.mu.RLock()
	defer h.r.mu.RUnlock()
	return h.r.twin.State.CloneProperties()
}

func (h *Handle) IsHypothetical() bool {
	h.r.mu.RLock()
	defer h.r.mu.RUnlock()
	return h.r.twin.State.IsHypothetical
}

// SortedPropertyKeys exposes the deterministic iteration order backing
// state rendering and aggregation (§3).
func (h *Handle) SortedPropertyKeys() []string {
	h.r.mu.RLock()
	defer h.r.mu.RUnlock()
	return h.r.twin.State.SortedKeys()
}

// SetSimulationTime advances a hypothetical twin's clock (§4.7 aggregator
// contract: "advance their simulation_time").
func (h *Handle) SetSimulationTime(ts time.Time) error {
	h.r.mu.Lock()
	defer h.r.mu.Unlock()
	return h.r.twin.SetSimulationTime(ts)
}
