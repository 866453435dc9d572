package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/twinlab/twinrt/internal/eventbus"
)

func TestMeterHandlesLifecycleEventsWithoutError(t *testing.T) {
	m := NewMeter("github.com/twinlab/twinrt/test")
	bus := eventbus.New()
	bus.Register(m)

	for _, et := range m.Handles() {
		_, err := bus.Dispatch(context.Background(), &eventbus.Event{Type: et, TwinID: "t1"})
		require.NoError(t, err)
	}
}
