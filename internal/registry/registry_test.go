package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twinlab/twinrt/internal/eventbus"
	"github.com/twinlab/twinrt/internal/message"
	"github.com/twinlab/twinrt/internal/store/memstore"
	"github.com/twinlab/twinrt/internal/twin"
	"github.com/twinlab/twinrt/internal/value"
)

func newTestRuntime() *Runtime {
	return New(memstore.New(), Config{EvictionTimeout: time.Millisecond, EvictionInterval: time.Hour}, nil)
}

func TestBasicSensorScenario(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime()

	id, err := rt.CreateTwin(ctx, "TemperatureSensor")
	require.NoError(t, err)

	require.NoError(t, rt.UpdateTelemetry(ctx, id, map[string]float64{"temperature": 22.5, "humidity": 45, "threshold": 30}))

	h, err := rt.GetTwin(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, value.Float(22.5), h.Property("temperature"))
	assert.Equal(t, value.Float(45), h.Property("humidity"))

	result, err := rt.SendMessage(ctx, id, &message.Message{Kind: message.KindSend, Selector: "checkAlert"})
	require.NoError(t, err)
	assert.Equal(t, value.Bool(false), result)

	require.NoError(t, rt.UpdateTelemetry(ctx, id, map[string]float64{"temperature": 35}))

	result, err = rt.SendMessage(ctx, id, &message.Message{Kind: message.KindSend, Selector: "checkAlert"})
	require.NoError(t, err)
	assert.Equal(t, value.Bool(true), result)

	h, err = rt.GetTwin(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, value.Bool(true), h.Property("alert"))
}

func TestLazyLoadScenario(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime()

	id, err := rt.CreateTwin(ctx, "Sensor")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, rt.UpdateTelemetry(ctx, id, map[string]float64{"value": float64(i)}))
	}

	stats, err := rt.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ActiveTwins)
	assert.Equal(t, uint64(6), stats.TotalEvents)

	time.Sleep(2 * time.Millisecond) // let the 1ms eviction timeout elapse
	n, err := rt.EvictInactive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stats, err = rt.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.ActiveTwins)

	h, err := rt.GetTwin(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, value.Float(4), h.Property("value"))

	stats, err = rt.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ActiveTwins)
	assert.Equal(t, uint64(6), stats.TotalEvents)
}

func TestLazyNoLoadOnTelemetryScenario(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime()

	id, err := rt.CreateTwin(ctx, "Sensor")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond) // let the 1ms eviction timeout elapse
	_, err = rt.EvictInactive(ctx)
	require.NoError(t, err)

	require.NoError(t, rt.UpdateTelemetry(ctx, id, map[string]float64{"value": 1}))

	stats, err := rt.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.ActiveTwins)
	assert.Equal(t, uint64(2), stats.TotalEvents)

	h, err := rt.GetTwin(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, value.Float(1), h.Property("value"))
}

func TestSnapshotPlusTailReplayScenario(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime()

	id, err := rt.CreateTwin(ctx, "Sensor")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, rt.UpdateTelemetry(ctx, id, map[string]float64{"value": float64(i)}))
	}

	require.NoError(t, rt.SnapshotTwin(ctx, id))
	versionAtSnapshot, err := rt.store.GetLatestVersion(ctx)
	require.NoError(t, err)

	require.NoError(t, rt.UpdateTelemetry(ctx, id, map[string]float64{"value": 99}))
	time.Sleep(2 * time.Millisecond) // let the 1ms eviction timeout elapse
	_, err = rt.EvictInactive(ctx)
	require.NoError(t, err)

	h, err := rt.GetTwin(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, value.Float(99), h.Property("value"))

	snap, ok, err := rt.store.GetSnapshot(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, versionAtSnapshot, snap.EventVersion)
}

func TestConcurrentWritersScenario(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime()

	id, err := rt.CreateTwin(ctx, "Sensor")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := "value_" + string(rune('0'+i))
			err := rt.UpdateTelemetry(ctx, id, map[string]float64{key: float64(i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	h, err := rt.GetTwin(ctx, id)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		key := "value_" + string(rune('0'+i))
		assert.Equal(t, value.Float(float64(i)), h.Property(key))
	}

	stats, err := rt.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), stats.TotalEvents)
}

func TestHypotheticalIsolationScenario(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime()

	id, err := rt.CreateTwin(ctx, "Sensor")
	require.NoError(t, err)
	require.NoError(t, rt.UpdateTelemetry(ctx, id, map[string]float64{"temperature": 20}))

	versionBefore, err := rt.store.GetLatestVersion(ctx)
	require.NoError(t, err)

	hypoID := rt.CreateHypotheticalTwin("Sensor")
	_, err = rt.SendMessage(ctx, hypoID, &message.Message{Kind: message.KindSetProperty, Property: "temperature", Value: value.Float(99)})
	require.NoError(t, err)

	versionAfter, err := rt.store.GetLatestVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, versionBefore, versionAfter)

	hypoHandle, err := rt.GetTwin(ctx, hypoID)
	require.NoError(t, err)
	assert.True(t, hypoHandle.IsHypothetical())
	assert.Equal(t, value.Float(99), hypoHandle.Property("temperature"))

	origHandle, err := rt.GetTwin(ctx, id)
	require.NoError(t, err)
	assert.False(t, origHandle.IsHypothetical())
	assert.Equal(t, value.Float(20), origHandle.Property("temperature"))
}

func TestGetTwinUnknownIDIsNotFound(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime()
	_, err := rt.GetTwin(ctx, twin.NewID())
	require.Error(t, err)
}

func TestCloneHypotheticalCopiesPropertiesWithoutAppending(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime()

	id, err := rt.CreateTwin(ctx, "Sensor")
	require.NoError(t, err)
	require.NoError(t, rt.UpdateTelemetry(ctx, id, map[string]float64{"temperature": 42}))

	versionBefore, err := rt.store.GetLatestVersion(ctx)
	require.NoError(t, err)

	childID, err := rt.CloneHypothetical(ctx, id)
	require.NoError(t, err)

	versionAfter, err := rt.store.GetLatestVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, versionBefore, versionAfter)

	child, err := rt.GetTwin(ctx, childID)
	require.NoError(t, err)
	assert.True(t, child.IsHypothetical())
	assert.Equal(t, value.Float(42), child.Property("temperature"))

	require.NoError(t, child.SetSimulationTime(time.Now().UTC()))
}

func TestLifecycleBusReceivesTwinCreated(t *testing.T) {
	ctx := context.Background()
	bus := eventbus.New()
	var seen []eventbus.EventType
	bus.Register(&collectingHandler{kinds: []eventbus.EventType{eventbus.EventTwinCreated, eventbus.EventTwinEvicted}, seen: &seen})

	rt := New(memstore.New(), Config{EvictionTimeout: time.Millisecond, EvictionInterval: time.Hour}, bus)
	_, err := rt.CreateTwin(ctx, "Sensor")
	require.NoError(t, err)

	require.Contains(t, seen, eventbus.EventTwinCreated)
}

type collectingHandler struct {
	kinds []eventbus.EventType
	seen  *[]eventbus.EventType
}

func (h *collectingHandler) ID() string                   { return "collector" }
func (h *collectingHandler) Handles() []eventbus.EventType { return h.kinds }
func (h *collectingHandler) Priority() int                { return 0 }
func (h *collectingHandler) Handle(_ context.Context, ev *eventbus.Event, _ *eventbus.Result) error {
	*h.seen = append(*h.seen, ev.Type)
	return nil
}

func TestDestroyedTwinFailsToLoadAfterEviction(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime()

	id, err := rt.CreateTwin(ctx, "Sensor")
	require.NoError(t, err)

	destroy := message.Destroy()
	_, err = rt.SendMessage(ctx, id, &destroy)
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond) // let the 1ms eviction timeout elapse
	n, err := rt.EvictInactive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = rt.GetTwin(ctx, id)
	require.ErrorIs(t, err, twin.ErrNotFound)
}

func TestUpdateTelemetryOnResidentHypotheticalUpdatesInMemoryWithoutAppending(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime()

	hypoID := rt.CreateHypotheticalTwin("Sensor")

	versionBefore, err := rt.store.GetLatestVersion(ctx)
	require.NoError(t, err)

	require.NoError(t, rt.UpdateTelemetry(ctx, hypoID, map[string]float64{"temperature": 71}))

	versionAfter, err := rt.store.GetLatestVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, versionBefore, versionAfter)

	h, err := rt.GetTwin(ctx, hypoID)
	require.NoError(t, err)
	assert.Equal(t, value.Float(71), h.Property("temperature"))
}

func TestEvictInactiveNeverRemovesFreshTwin(t *testing.T) {
	ctx := context.Background()
	rt := New(memstore.New(), Config{EvictionTimeout: time.Hour, EvictionInterval: time.Hour}, nil)

	id, err := rt.CreateTwin(ctx, "Sensor")
	require.NoError(t, err)

	n, err := rt.EvictInactive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	h, err := rt.GetTwin(ctx, id)
	require.NoError(t, err)
	assert.NotNil(t, h)
}
