// Package value implements the tagged-union Value type used throughout
// twinrt for property and argument data: twin properties, message
// arguments, and telemetry readings all flow through Value so the core
// never has to special-case a native Go type.
package value

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind discriminates the variants a Value can hold.
type Kind int

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindSymbol
	KindArray
	KindMap
	KindBytes
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindSymbol:
		return "symbol"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	case KindBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// Value is a hashable, orderable, serializable tagged union. The zero
// Value is Nil.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string // string, symbol
	arr  []Value
	m    map[string]Value
	by   []byte
}

// Nil returns the nil Value.
func Nil() Value { return Value{kind: KindNil} }

// Bool constructs a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int constructs a signed 64-bit integer Value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float constructs a 64-bit float Value. NaN is canonicalized to a single
// bit pattern so Float values remain usable as map keys and compare equal
// to each other regardless of the NaN payload they were built from.
func Float(f float64) Value {
	if math.IsNaN(f) {
		f = math.NaN() // canonical quiet NaN bit pattern
	}
	return Value{kind: KindFloat, f: f}
}

// String constructs a UTF-8 string Value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Symbol constructs a symbol Value. Symbols carry a distinct Kind from
// String even though both store text, so `#alert` and `"alert"` are never
// equal.
func Symbol(s string) Value { return Value{kind: KindSymbol, s: s} }

// Array constructs an ordered-array Value. The slice is copied so the
// caller's backing array can be mutated freely afterward.
func Array(items []Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindArray, arr: cp}
}

// Map constructs an ordered-mapping Value from a string-keyed map. The map
// is copied; iteration order over a Map Value is always insertion-sorted
// by key (see Keys) so two Maps built from the same key/value pairs
// render and hash identically regardless of Go's randomized map order.
func Map(m map[string]Value) Value {
	cp := make(map[string]Value, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Value{kind: KindMap, m: cp}
}

// Bytes constructs an opaque byte-sequence Value.
func Bytes(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{kind: KindBytes, by: cp}
}

// Kind returns the variant tag of v.
func (v Value) Kind() Kind { return v.kind }

// TypeName returns the human-readable name of v's variant ("int",
// "symbol", ...).
func (v Value) TypeName() string { return v.kind.String() }

// IsTruthy reports whether v is "truthy": false only for Nil and the
// boolean false value; every other variant, including zero-valued ones
// (0, "", empty array/map), is truthy.
func (v Value) IsTruthy() bool {
	switch v.kind {
	case KindNil:
		return false
	case KindBool:
		return v.b
	default:
		return true
	}
}

// Keys returns the sorted keys of a Map Value, or nil for any other kind.
func (v Value) Keys() []string {
	if v.kind != KindMap {
		return nil
	}
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value stored under key in a Map Value, or (Nil, false)
// if v is not a Map or the key is absent.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Nil(), false
	}
	val, ok := v.m[key]
	return val, ok
}

// AsBytes returns the raw bytes of a Bytes Value, or nil for any other
// kind.
func (v Value) AsBytes() []byte {
	if v.kind != KindBytes {
		return nil
	}
	cp := make([]byte, len(v.by))
	copy(cp, v.by)
	return cp
}

// Items returns the elements of an Array Value, or nil for any other kind.
func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	cp := make([]Value, len(v.arr))
	copy(cp, v.arr)
	return cp
}

// AsBool coerces v to a bool. Bool returns itself; Nil is false; Int and
// Float are truthy-by-nonzero; String/Symbol are true unless empty;
// everything else is true. The coercion is total (never fails) per §4.1.
func (v Value) AsBool() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNil:
		return false
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindString, KindSymbol:
		return v.s != ""
	default:
		return true
	}
}

// AsInt coerces v to an int64. Floats truncate toward zero; bools map to
// 0/1; strings parse as integers, then as floats truncated toward zero,
// falling back to 0 when neither parses; nil and
// aggregate kinds yield 0. The conversion is total and lossy, never an
// error, matching the numeric-coercion rule in §4.1.
func (v Value) AsInt() int64 {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return int64(v.f)
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindString, KindSymbol:
		i, err := strconv.ParseInt(strings.TrimSpace(v.s), 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
			if ferr == nil {
				return int64(f)
			}
			return 0
		}
		return i
	default:
		return 0
	}
}

// AsFloat coerces v to a float64, symmetric with AsInt.
func (v Value) AsFloat() float64 {
	switch v.kind {
	case KindFloat:
		return v.f
	case KindInt:
		return float64(v.i)
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindString, KindSymbol:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// AsString renders v as a string. String/Symbol return their text
// verbatim; every other kind falls back to Render. This is a coercion,
// not the diagnostic Render format: the two differ only for String and
// Symbol, which Render quotes or prefixes with '#'.
func (v Value) AsString() string {
	switch v.kind {
	case KindString, KindSymbol:
		return v.s
	default:
		return v.Render()
	}
}

// Render produces a deterministic, human-readable rendering of v for
// diagnostics and logging. It is not a stable wire format — EventStore
// and SnapshotStore implementations must use their own codec, never
// Render, to persist Values.
func (v Value) Render() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		if math.IsNaN(v.f) {
			return "NaN"
		}
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	case KindSymbol:
		return "#" + v.s
	case KindBytes:
		return fmt.Sprintf("bytes(%d)", len(v.by))
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, item := range v.arr {
			parts[i] = item.Render()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		keys := v.Keys()
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = strconv.Quote(k) + ": " + v.m[k].Render()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return "<invalid>"
	}
}

// Equal reports deep equality between v and other. Float equality is by
// bit pattern after NaN canonicalization (so NaN == NaN, unlike IEEE-754
// comparison), which is what lets Value be used as a map key.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNil:
		return true
	case KindBool:
		return v.b == other.b
	case KindInt:
		return v.i == other.i
	case KindFloat:
		return math.Float64bits(v.f) == math.Float64bits(other.f)
	case KindString, KindSymbol:
		return v.s == other.s
	case KindBytes:
		return string(v.by) == string(other.by)
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(other.m) {
			return false
		}
		for k, val := range v.m {
			ov, ok := other.m[k]
			if !ok || !val.Equal(ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// HashKey returns a string suitable for use as a Go map key that
// represents a total hash of v: two Values that are Equal always produce
// the same HashKey, and in practice distinct Values produce distinct
// keys. This is how twinrt gives Value a "total hash" without requiring
// callers to implement hash.Hash themselves.
func (v Value) HashKey() string {
	var b strings.Builder
	v.writeHashKey(&b)
	return b.String()
}

func (v Value) writeHashKey(b *strings.Builder) {
	fmt.Fprintf(b, "%d:", v.kind)
	switch v.kind {
	case KindNil:
	case KindBool:
		fmt.Fprintf(b, "%v", v.b)
	case KindInt:
		fmt.Fprintf(b, "%d", v.i)
	case KindFloat:
		fmt.Fprintf(b, "%x", math.Float64bits(v.f))
	case KindString, KindSymbol:
		b.WriteString(v.s)
	case KindBytes:
		fmt.Fprintf(b, "%x", v.by)
	case KindArray:
		for _, item := range v.arr {
			item.writeHashKey(b)
			b.WriteByte(',')
		}
	case KindMap:
		for _, k := range v.Keys() {
			b.WriteString(k)
			b.WriteByte('=')
			v.m[k].writeHashKey(b)
			b.WriteByte(';')
		}
	}
}

// Less orders Values for use as map/array keys where ordering matters.
// Values of different kinds order by Kind; within a scalar kind, the
// natural ordering applies. Within Nil, Array and Map, and between a NaN
// float and any other float, Less reports false both ways, so those
// Values are not ordered against each other.
func (v Value) Less(other Value) bool {
	if v.kind != other.kind {
		return v.kind < other.kind
	}
	switch v.kind {
	case KindBool:
		return !v.b && other.b
	case KindInt:
		return v.i < other.i
	case KindFloat:
		return v.f < other.f
	case KindString, KindSymbol:
		return v.s < other.s
	case KindBytes:
		return string(v.by) < string(other.by)
	default:
		return false
	}
}
