package twin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twinlab/twinrt/internal/message"
	"github.com/twinlab/twinrt/internal/value"
)

func TestGetPropertyAbsentIsNilNotError(t *testing.T) {
	tw := NewTwin(NewID(), "TemperatureSensor", time.Now().UTC())
	res, err := tw.Send(&message.Message{Kind: message.KindGetProperty, Property: "temperature"})
	require.NoError(t, err)
	assert.Equal(t, value.Nil(), res.Value)
	assert.Empty(t, res.Events)
}

func TestSetPropertyEmitsOnePropertyChangedEvent(t *testing.T) {
	tw := NewTwin(NewID(), "TemperatureSensor", time.Now().UTC())
	res, err := tw.Send(&message.Message{Kind: message.KindSetProperty, Property: "temperature", Value: value.Float(22.5)})
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.Equal(t, EventPropertyChanged, res.Events[0].Kind)
	assert.Equal(t, "temperature", res.Events[0].Property)
	assert.Equal(t, value.Float(22.5), tw.State.Properties["temperature"])
}

func TestUpdatePropertiesDuplicateKeysApplyInListOrder(t *testing.T) {
	tw := NewTwin(NewID(), "Sensor", time.Now().UTC())
	updates := []message.Update{
		{Name: "x", Value: value.Int(1)},
		{Name: "x", Value: value.Int(2)},
	}
	res, err := tw.Send(&message.Message{Kind: message.KindUpdateProperties, Updates: updates})
	require.NoError(t, err)
	assert.Equal(t, value.Int(2), tw.State.Properties["x"])
	require.Len(t, res.Events, 2)
}

func TestCheckAlertBasicSensorScenario(t *testing.T) {
	tw := NewTwin(NewID(), "TemperatureSensor", time.Now().UTC())

	_, err := tw.Send(&message.Message{Kind: message.KindUpdateProperties, Updates: []message.Update{
		{Name: "temperature", Value: value.Float(22.5)},
		{Name: "humidity", Value: value.Float(45)},
		{Name: "threshold", Value: value.Float(30)},
	}})
	require.NoError(t, err)

	res, err := tw.Send(&message.Message{Kind: message.KindGetProperty, Property: "temperature"})
	require.NoError(t, err)
	assert.Equal(t, value.Float(22.5), res.Value)

	res, err = tw.Send(&message.Message{Kind: message.KindGetProperty, Property: "humidity"})
	require.NoError(t, err)
	assert.Equal(t, value.Float(45), res.Value)

	res, err = tw.Send(&message.Message{Kind: message.KindSend, Selector: "checkAlert"})
	require.NoError(t, err)
	assert.Equal(t, value.Bool(false), res.Value)

	_, err = tw.Send(&message.Message{Kind: message.KindSetProperty, Property: "temperature", Value: value.Float(35)})
	require.NoError(t, err)

	res, err = tw.Send(&message.Message{Kind: message.KindSend, Selector: "checkAlert"})
	require.NoError(t, err)
	assert.Equal(t, value.Bool(true), res.Value)
	assert.Equal(t, value.Bool(true), tw.State.Properties["alert"])
}

func TestCheckAlertDefaultsThresholdTo30(t *testing.T) {
	tw := NewTwin(NewID(), "Sensor", time.Now().UTC())
	_, err := tw.Send(&message.Message{Kind: message.KindSetProperty, Property: "temperature", Value: value.Float(31)})
	require.NoError(t, err)

	res, err := tw.Send(&message.Message{Kind: message.KindSend, Selector: "checkAlert"})
	require.NoError(t, err)
	assert.Equal(t, value.Bool(true), res.Value)
}

func TestUnknownSelectorDoesNotUnderstand(t *testing.T) {
	tw := NewTwin(NewID(), "Sensor", time.Now().UTC())
	_, err := tw.Send(&message.Message{Kind: message.KindSend, Selector: "frobnicate"})
	require.Error(t, err)
	var twinErr *Error
	require.ErrorAs(t, err, &twinErr)
	assert.Equal(t, ErrorKindDoesNotUnderstand, twinErr.Kind)
}

func TestRespondsTo(t *testing.T) {
	tw := NewTwin(NewID(), "Sensor", time.Now().UTC())
	res, err := tw.Send(&message.Message{Kind: message.KindRespondsTo, Query: "checkAlert"})
	require.NoError(t, err)
	assert.Equal(t, value.Bool(true), res.Value)

	res, err = tw.Send(&message.Message{Kind: message.KindRespondsTo, Query: "nope"})
	require.NoError(t, err)
	assert.Equal(t, value.Bool(false), res.Value)

	res, err = tw.Send(&message.Message{Kind: message.KindRespondsTo, Query: "clone"})
	require.NoError(t, err)
	assert.Equal(t, value.Bool(true), res.Value)
}

func TestCloneOrdinaryRule(t *testing.T) {
	tw := NewTwin(NewID(), "Sensor", time.Now().UTC())
	_, err := tw.Send(&message.Message{Kind: message.KindSetProperty, Property: "x", Value: value.Int(5)})
	require.NoError(t, err)

	res, err := tw.Send(&message.Message{Kind: message.KindClone})
	require.NoError(t, err)
	require.NotNil(t, res.Spawned)
	assert.NotEqual(t, tw.State.ID, res.Spawned.State.ID)
	assert.Equal(t, tw.State.ID, *res.Spawned.State.ParentID)
	assert.Equal(t, value.Int(5), res.Spawned.State.Properties["x"])
	assert.False(t, res.Spawned.State.IsHypothetical)
	assert.Nil(t, res.Spawned.State.SimulationTime)
	require.Len(t, res.Events, 1)
	assert.Equal(t, EventCloned, res.Events[0].Kind)
	assert.Equal(t, res.Spawned.State.ID, res.Events[0].ChildID)
}

func TestHypotheticalTwinNeverEmitsEvents(t *testing.T) {
	tw := NewHypotheticalTwin(NewID(), "Sensor", time.Now().UTC())
	assert.True(t, tw.State.IsHypothetical)
	require.NotNil(t, tw.State.SimulationTime)

	res, err := tw.Send(&message.Message{Kind: message.KindSetProperty, Property: "x", Value: value.Int(1)})
	require.NoError(t, err)
	assert.Empty(t, res.Events)
}

func TestSetSimulationTimeOnlyValidOnHypothetical(t *testing.T) {
	hypo := NewHypotheticalTwin(NewID(), "Sensor", time.Now().UTC())
	require.NoError(t, hypo.SetSimulationTime(time.Now().UTC().Add(time.Hour)))

	regular := NewTwin(NewID(), "Sensor", time.Now().UTC())
	err := regular.SetSimulationTime(time.Now().UTC())
	require.Error(t, err)
	var twinErr *Error
	require.ErrorAs(t, err, &twinErr)
	assert.Equal(t, ErrorKindInvalidOperation, twinErr.Kind)
}

func TestDestroyedTwinRejectsFurtherSends(t *testing.T) {
	tw := NewTwin(NewID(), "Sensor", time.Now().UTC())
	res, err := tw.Send(&message.Message{Kind: message.KindDestroy})
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.Equal(t, EventDestroyed, res.Events[0].Kind)

	_, err = tw.Send(&message.Message{Kind: message.KindGetProperty, Property: "x"})
	require.Error(t, err)
	var twinErr *Error
	require.ErrorAs(t, err, &twinErr)
	assert.Equal(t, ErrorKindInvalidOperation, twinErr.Kind)
}
