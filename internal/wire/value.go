// Package wire implements the stable binary codec used to persist
// TwinEvent and TwinSnapshot records (§6). It is deliberately not JSON:
// the store needs exact control over NaN canonicalization, deterministic
// key ordering, and hard failure on unrecognized variant tags ("no silent
// skipping" per §6), none of which a general-purpose JSON or gob codec
// guarantees. encoding/binary is used
// directly rather than a third-party serialization library because the
// corpus offers no library specialized for exactly this shape (a closed,
// versioned, tag-discriminated variant framing over a small fixed set of
// scalar/aggregate kinds) — see DESIGN.md.
package wire

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/twinlab/twinrt/internal/value"
)

// Value tags. Values 0-8 are reserved for the kinds defined at the time
// of writing; a decoder encountering any other tag fails hard rather
// than skipping the field, satisfying the forward-compatibility rule in
// §6 the same way event-kind tags do.
const (
	tagNil byte = iota
	tagBool
	tagInt
	tagFloat
	tagString
	tagSymbol
	tagArray
	tagMap
	tagBytes
)

// EncodeValue appends the wire encoding of v to buf and returns the
// extended buffer.
func EncodeValue(buf []byte, v value.Value) []byte {
	switch v.Kind() {
	case value.KindNil:
		return append(buf, tagNil)
	case value.KindBool:
		b := byte(0)
		if v.AsBool() {
			b = 1
		}
		return append(buf, tagBool, b)
	case value.KindInt:
		buf = append(buf, tagInt)
		return appendUint64(buf, uint64(v.AsInt()))
	case value.KindFloat:
		buf = append(buf, tagFloat)
		bits := math.Float64bits(canonicalizeNaN(v.AsFloat()))
		return appendUint64(buf, bits)
	case value.KindString:
		buf = append(buf, tagString)
		return appendString(buf, v.AsString())
	case value.KindSymbol:
		buf = append(buf, tagSymbol)
		return appendString(buf, v.AsString())
	case value.KindArray:
		items := v.Items()
		buf = append(buf, tagArray)
		buf = appendUint32(buf, uint32(len(items)))
		for _, item := range items {
			buf = EncodeValue(buf, item)
		}
		return buf
	case value.KindMap:
		keys := v.Keys()
		buf = append(buf, tagMap)
		buf = appendUint32(buf, uint32(len(keys)))
		for _, k := range keys {
			buf = appendString(buf, k)
			val, _ := v.Get(k)
			buf = EncodeValue(buf, val)
		}
		return buf
	case value.KindBytes:
		buf = append(buf, tagBytes)
		b := v.AsBytes()
		buf = appendUint32(buf, uint32(len(b)))
		return append(buf, b...)
	default:
		return append(buf, tagNil)
	}
}

func canonicalizeNaN(f float64) float64 {
	if math.IsNaN(f) {
		return math.NaN()
	}
	return f
}

// AppendString and the other Append*/Read* exports below let other
// packages (twin's event/snapshot codec) frame their own payload fields
// using the exact same length-prefixed encoding Value uses internally,
// so the whole stable binary format shares one framing convention.
func AppendString(buf []byte, s string) []byte { return appendString(buf, s) }

// AppendUint32 appends a big-endian uint32.
func AppendUint32(buf []byte, v uint32) []byte { return appendUint32(buf, v) }

// ReadString reads a length-prefixed string from the front of buf.
func ReadString(buf []byte) (string, []byte, error) { return readString(buf) }

// ReadUint32 reads a big-endian uint32 from the front of buf.
func ReadUint32(buf []byte) (uint32, []byte, error) { return readUint32(buf) }

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendString(buf []byte, s string) []byte {
	buf = appendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// DecodeValue decodes a single Value from the front of buf, returning the
// remaining unconsumed bytes. An unrecognized tag is a hard error — there
// is no silent skipping of unknown variants.
func DecodeValue(buf []byte) (value.Value, []byte, error) {
	if len(buf) < 1 {
		return value.Nil(), nil, fmt.Errorf("wire: decode value: empty input")
	}
	tag := buf[0]
	rest := buf[1:]
	switch tag {
	case tagNil:
		return value.Nil(), rest, nil
	case tagBool:
		if len(rest) < 1 {
			return value.Nil(), nil, fmt.Errorf("wire: decode bool: truncated")
		}
		return value.Bool(rest[0] != 0), rest[1:], nil
	case tagInt:
		u, rest, err := readUint64(rest)
		if err != nil {
			return value.Nil(), nil, fmt.Errorf("wire: decode int: %w", err)
		}
		return value.Int(int64(u)), rest, nil
	case tagFloat:
		u, rest, err := readUint64(rest)
		if err != nil {
			return value.Nil(), nil, fmt.Errorf("wire: decode float: %w", err)
		}
		return value.Float(math.Float64frombits(u)), rest, nil
	case tagString:
		s, rest, err := readString(rest)
		if err != nil {
			return value.Nil(), nil, fmt.Errorf("wire: decode string: %w", err)
		}
		return value.String(s), rest, nil
	case tagSymbol:
		s, rest, err := readString(rest)
		if err != nil {
			return value.Nil(), nil, fmt.Errorf("wire: decode symbol: %w", err)
		}
		return value.Symbol(s), rest, nil
	case tagBytes:
		n, rest, err := readUint32(rest)
		if err != nil {
			return value.Nil(), nil, fmt.Errorf("wire: decode bytes length: %w", err)
		}
		if uint32(len(rest)) < n {
			return value.Nil(), nil, fmt.Errorf("wire: decode bytes: truncated")
		}
		return value.Bytes(rest[:n]), rest[n:], nil
	case tagArray:
		n, rest, err := readUint32(rest)
		if err != nil {
			return value.Nil(), nil, fmt.Errorf("wire: decode array length: %w", err)
		}
		items := make([]value.Value, 0, n)
		for i := uint32(0); i < n; i++ {
			var item value.Value
			item, rest, err = DecodeValue(rest)
			if err != nil {
				return value.Nil(), nil, fmt.Errorf("wire: decode array element %d: %w", i, err)
			}
			items = append(items, item)
		}
		return value.Array(items), rest, nil
	case tagMap:
		n, rest, err := readUint32(rest)
		if err != nil {
			return value.Nil(), nil, fmt.Errorf("wire: decode map length: %w", err)
		}
		m := make(map[string]value.Value, n)
		for i := uint32(0); i < n; i++ {
			var key string
			key, rest, err = readString(rest)
			if err != nil {
				return value.Nil(), nil, fmt.Errorf("wire: decode map key %d: %w", i, err)
			}
			var val value.Value
			val, rest, err = DecodeValue(rest)
			if err != nil {
				return value.Nil(), nil, fmt.Errorf("wire: decode map value %d: %w", i, err)
			}
			m[key] = val
		}
		return value.Map(m), rest, nil
	default:
		return value.Nil(), nil, fmt.Errorf("wire: unknown value tag %d", tag)
	}
}

func readUint64(buf []byte) (uint64, []byte, error) {
	if len(buf) < 8 {
		return 0, nil, fmt.Errorf("truncated uint64")
	}
	return binary.BigEndian.Uint64(buf[:8]), buf[8:], nil
}

func readUint32(buf []byte) (uint32, []byte, error) {
	if len(buf) < 4 {
		return 0, nil, fmt.Errorf("truncated uint32")
	}
	return binary.BigEndian.Uint32(buf[:4]), buf[4:], nil
}

func readString(buf []byte) (string, []byte, error) {
	n, rest, err := readUint32(buf)
	if err != nil {
		return "", nil, err
	}
	if uint32(len(rest)) < n {
		return "", nil, fmt.Errorf("truncated string")
	}
	return string(rest[:n]), rest[n:], nil
}

// MapToSortedPairs returns the keys of m in ascending order. It is used
// by the event/snapshot codec — both the properties map (map[string]
// value.Value) and the telemetry reading map (map[string]float64) need
// the same deterministic key ordering before encoding, so this helper is
// generic over the value type rather than re-deriving the sort at each
// call site.
func MapToSortedPairs[V any](m map[string]V) (keys []string) {
	keys = make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
