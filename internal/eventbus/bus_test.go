package eventbus

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	id       string
	priority int
	handles  []EventType
	calls    *[]string
	fail     bool
}

func (h *recordingHandler) ID() string          { return h.id }
func (h *recordingHandler) Handles() []EventType { return h.handles }
func (h *recordingHandler) Priority() int        { return h.priority }
func (h *recordingHandler) Handle(_ context.Context, event *Event, _ *Result) error {
	*h.calls = append(*h.calls, h.id)
	if h.fail {
		return fmt.Errorf("boom")
	}
	return nil
}

func TestDispatchCallsHandlersInPriorityOrder(t *testing.T) {
	var calls []string
	bus := New()
	bus.Register(&recordingHandler{id: "second", priority: 2, handles: []EventType{EventTwinCreated}, calls: &calls})
	bus.Register(&recordingHandler{id: "first", priority: 1, handles: []EventType{EventTwinCreated}, calls: &calls})

	_, err := bus.Dispatch(context.Background(), &Event{Type: EventTwinCreated, Timestamp: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestDispatchSkipsNonMatchingHandlers(t *testing.T) {
	var calls []string
	bus := New()
	bus.Register(&recordingHandler{id: "evict-only", priority: 1, handles: []EventType{EventTwinEvicted}, calls: &calls})

	_, err := bus.Dispatch(context.Background(), &Event{Type: EventTwinCreated})
	require.NoError(t, err)
	assert.Empty(t, calls)
}

func TestDispatchContinuesAfterHandlerError(t *testing.T) {
	var calls []string
	bus := New()
	bus.Register(&recordingHandler{id: "failing", priority: 1, handles: []EventType{EventTwinCreated}, calls: &calls, fail: true})
	bus.Register(&recordingHandler{id: "ok", priority: 2, handles: []EventType{EventTwinCreated}, calls: &calls})

	_, err := bus.Dispatch(context.Background(), &Event{Type: EventTwinCreated})
	require.NoError(t, err)
	assert.Equal(t, []string{"failing", "ok"}, calls)
}

func TestUnregisterRemovesHandler(t *testing.T) {
	var calls []string
	bus := New()
	bus.Register(&recordingHandler{id: "h1", priority: 1, handles: []EventType{EventTwinCreated}, calls: &calls})

	assert.True(t, bus.Unregister("h1"))
	assert.False(t, bus.Unregister("h1"))

	_, err := bus.Dispatch(context.Background(), &Event{Type: EventTwinCreated})
	require.NoError(t, err)
	assert.Empty(t, calls)
}
