package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twinlab/twinrt/internal/value"
)

func TestParseBareIdentIsGetProperty(t *testing.T) {
	m, err := Parse("temperature")
	require.NoError(t, err)
	assert.Equal(t, KindGetProperty, m.Kind)
	assert.Equal(t, "temperature", m.Property)
}

func TestParseReservedBareWords(t *testing.T) {
	m, err := Parse("clone")
	require.NoError(t, err)
	assert.Equal(t, KindClone, m.Kind)

	m, err = Parse("class")
	require.NoError(t, err)
	assert.Equal(t, KindGetClass, m.Kind)

	m, err = Parse("allProperties")
	require.NoError(t, err)
	assert.Equal(t, KindGetAllProperties, m.Kind)
}

func TestParseRespondsTo(t *testing.T) {
	m, err := Parse("respondsTo: open")
	require.NoError(t, err)
	assert.Equal(t, KindRespondsTo, m.Kind)
	assert.Equal(t, "open", m.Query)
}

func TestParseRespondsToRequiresOneArg(t *testing.T) {
	_, err := Parse("respondsTo:")
	assert.Error(t, err)
}

func TestParseSetPropertyInt(t *testing.T) {
	m, err := Parse("temperature: 42")
	require.NoError(t, err)
	assert.Equal(t, KindSetProperty, m.Kind)
	assert.Equal(t, "temperature", m.Property)
	assert.Equal(t, value.Int(42), m.Value)
}

func TestParseSetPropertyFloat(t *testing.T) {
	m, err := Parse("temperature: 98.6")
	require.NoError(t, err)
	assert.Equal(t, value.Float(98.6), m.Value)
}

func TestParseSetPropertyBoolAndNil(t *testing.T) {
	m, err := Parse("active: true")
	require.NoError(t, err)
	assert.Equal(t, value.Bool(true), m.Value)

	m, err = Parse("active: false")
	require.NoError(t, err)
	assert.Equal(t, value.Bool(false), m.Value)

	m, err = Parse("owner: nil")
	require.NoError(t, err)
	assert.Equal(t, value.Nil(), m.Value)
}

func TestParseSetPropertySymbol(t *testing.T) {
	m, err := Parse("status: #open")
	require.NoError(t, err)
	assert.Equal(t, value.Symbol("open"), m.Value)
}

func TestParseSetPropertyQuotedString(t *testing.T) {
	m, err := Parse(`label: "hello world"`)
	require.NoError(t, err)
	assert.Equal(t, value.String("hello world"), m.Value)
}

func TestParseSetPropertyRawStringFallback(t *testing.T) {
	m, err := Parse("name: sensorA")
	require.NoError(t, err)
	assert.Equal(t, value.String("sensorA"), m.Value)
}

func TestParseSendWithMultipleArgs(t *testing.T) {
	m, err := Parse("checkAlert: 30 true")
	require.NoError(t, err)
	assert.Equal(t, KindSend, m.Kind)
	assert.Equal(t, "checkAlert", m.Selector)
	require.Len(t, m.Args, 2)
	assert.Equal(t, value.Int(30), m.Args[0])
	assert.Equal(t, value.Bool(true), m.Args[1])
}

func TestParseSendWithZeroArgs(t *testing.T) {
	m, err := Parse("checkAlert:")
	require.NoError(t, err)
	assert.Equal(t, KindSend, m.Kind)
	assert.Equal(t, "checkAlert", m.Selector)
	assert.Empty(t, m.Args)
}

func TestParseEmptyInputIsError(t *testing.T) {
	_, err := Parse("   ")
	assert.Error(t, err)
}

func TestParseUnterminatedStringIsError(t *testing.T) {
	_, err := Parse(`label: "hello`)
	assert.Error(t, err)
}
