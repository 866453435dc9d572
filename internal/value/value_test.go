package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTruthy(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want bool
	}{
		{"nil", Nil(), false},
		{"false", Bool(false), false},
		{"true", Bool(true), true},
		{"zero int", Int(0), true},
		{"empty string", String(""), true},
		{"zero float", Float(0), true},
		{"empty array", Array(nil), true},
		{"empty map", Map(nil), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.v.IsTruthy())
		})
	}
}

func TestCoercionRoundTrip(t *testing.T) {
	require.Equal(t, int64(42), Int(42).AsInt())
	require.Equal(t, 42.0, Int(42).AsFloat())
	require.Equal(t, int64(3), Float(3.9).AsInt())
	require.Equal(t, "true", Bool(true).AsString())
	require.Equal(t, "hello", String("hello").AsString())
}

func TestFloatEqualityIsBitwise(t *testing.T) {
	a := Float(math.NaN())
	b := Float(math.NaN())
	require.True(t, a.Equal(b), "canonicalized NaN values must compare equal")

	require.True(t, Float(1.5).Equal(Float(1.5)))
	require.False(t, Float(1.5).Equal(Float(1.6)))
}

func TestMapEqualityIgnoresInsertionOrder(t *testing.T) {
	a := Map(map[string]Value{"a": Int(1), "b": Int(2)})
	b := Map(map[string]Value{"b": Int(2), "a": Int(1)})
	require.True(t, a.Equal(b))
	require.Equal(t, []string{"a", "b"}, a.Keys())
}

func TestHashKeyStability(t *testing.T) {
	a := Map(map[string]Value{"x": Int(1), "y": String("z")})
	b := Map(map[string]Value{"y": String("z"), "x": Int(1)})
	require.Equal(t, a.HashKey(), b.HashKey())

	set := map[string]bool{}
	set[Int(1).HashKey()] = true
	set[String("1").HashKey()] = true
	require.Len(t, set, 2, "distinct kinds holding similar text must hash differently")
}

func TestSymbolDistinctFromString(t *testing.T) {
	require.False(t, Symbol("alert").Equal(String("alert")))
	require.Equal(t, "symbol", Symbol("alert").TypeName())
}

func TestRenderIsDeterministic(t *testing.T) {
	v := Map(map[string]Value{"b": Int(2), "a": Array([]Value{Int(1), Bool(true)})})
	require.Equal(t, v.Render(), v.Render())
	require.Contains(t, v.Render(), `"a"`)
}

func TestBytesValue(t *testing.T) {
	b := Bytes([]byte{1, 2, 3})
	require.Equal(t, "bytes", b.TypeName())
	require.True(t, b.Equal(Bytes([]byte{1, 2, 3})))
}
