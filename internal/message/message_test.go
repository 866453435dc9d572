package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/twinlab/twinrt/internal/value"
)

func TestConstructorsSetKind(t *testing.T) {
	assert.Equal(t, KindGetProperty, GetProperty("temperature").Kind)
	assert.Equal(t, KindSetProperty, SetProperty("temperature", value.Int(5)).Kind)
	assert.Equal(t, KindClone, Clone().Kind)
	assert.Equal(t, KindInitialize, Initialize().Kind)
	assert.Equal(t, KindDestroy, Destroy().Kind)
	assert.Equal(t, KindGetClass, GetClass().Kind)
	assert.Equal(t, KindGetAllProperties, GetAllProperties().Kind)
	assert.Equal(t, KindRespondsTo, RespondsTo("open").Kind)
}

func TestSelectorPerVariant(t *testing.T) {
	assert.Equal(t, "temperature", GetProperty("temperature").Selector())
	assert.Equal(t, "temperature", SetProperty("temperature", value.Int(5)).Selector())
	assert.Equal(t, "open", Send("open", nil).Selector())
	assert.Equal(t, "respondsTo:", RespondsTo("open").Selector())
	assert.Equal(t, "clone", Clone().Selector())
	assert.Equal(t, "class", GetClass().Selector())
	assert.Equal(t, "allProperties", GetAllProperties().Selector())
}

func TestArgCount(t *testing.T) {
	assert.Equal(t, 0, GetProperty("x").ArgCount())
	assert.Equal(t, 1, SetProperty("x", value.Int(1)).ArgCount())
	assert.Equal(t, 2, Send("foo", []value.Value{value.Int(1), value.Int(2)}).ArgCount())
	updates := []Update{{Name: "a", Value: value.Int(1)}, {Name: "b", Value: value.Int(2)}}
	assert.Equal(t, 2, UpdateProperties(updates).ArgCount())
}

func TestUpdatePropertiesKeepsDuplicateNamesInListOrder(t *testing.T) {
	updates := []Update{
		{Name: "x", Value: value.Int(1)},
		{Name: "x", Value: value.Int(2)},
	}
	m := UpdateProperties(updates)
	assert.Len(t, m.Updates, 2)
	assert.Equal(t, value.Int(2), m.Updates[1].Value)
}
