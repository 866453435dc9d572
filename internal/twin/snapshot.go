package twin

import (
	"fmt"
	"time"

	"github.com/twinlab/twinrt/internal/value"
	"github.com/twinlab/twinrt/internal/wire"
)

// Snapshot is a point-in-time projection of a twin's state plus the
// event-log version it corresponds to (§3). EventVersion is the
// monotonic append version after which replay must continue (invariant
// 2): it is either 0 (freshly created twin, no further events) or a real,
// previously-issued version for some event of this twin.
type Snapshot struct {
	TwinID       ID
	ClassName    string
	Properties   map[string]value.Value
	ParentID     *ID
	EventVersion uint64
	Timestamp    time.Time
}

// Encode serializes s into the stable binary snapshot record format (§6),
// with properties rendered in sorted-key order so two snapshots built
// from the same properties always produce byte-identical output.
func (s Snapshot) Encode() []byte {
	var payload []byte
	payload = wire.AppendString(payload, s.ClassName)

	keys := wire.MapToSortedPairs(s.Properties)
	payload = wire.AppendUint32(payload, uint32(len(keys)))
	for _, k := range keys {
		payload = wire.AppendString(payload, k)
		payload = wire.EncodeValue(payload, s.Properties[k])
	}

	if s.ParentID != nil {
		payload = append(payload, 1)
		payload = append(payload, s.ParentID[:]...)
	} else {
		payload = append(payload, 0)
	}

	payload = appendUint64BE(payload, s.EventVersion)
	payload = appendUint64BE(payload, uint64(s.Timestamp.UTC().UnixNano()))

	enc := wire.EncodedSnapshot{TwinID: [16]byte(s.TwinID), Payload: payload}
	return enc.Encode()
}

// DecodeSnapshot parses a binary snapshot record produced by Encode.
func DecodeSnapshot(buf []byte) (Snapshot, error) {
	enc, err := wire.DecodeSnapshot(buf)
	if err != nil {
		return Snapshot{}, err
	}

	rest := enc.Payload
	className, rest, err := wire.ReadString(rest)
	if err != nil {
		return Snapshot{}, fmt.Errorf("twin: decode snapshot class name: %w", err)
	}

	n, rest, err := wire.ReadUint32(rest)
	if err != nil {
		return Snapshot{}, fmt.Errorf("twin: decode snapshot property count: %w", err)
	}
	props := make(map[string]value.Value, n)
	for i := uint32(0); i < n; i++ {
		var k string
		k, rest, err = wire.ReadString(rest)
		if err != nil {
			return Snapshot{}, fmt.Errorf("twin: decode snapshot property key %d: %w", i, err)
		}
		var v value.Value
		v, rest, err = wire.DecodeValue(rest)
		if err != nil {
			return Snapshot{}, fmt.Errorf("twin: decode snapshot property value %d: %w", i, err)
		}
		props[k] = v
	}

	if len(rest) < 1 {
		return Snapshot{}, fmt.Errorf("twin: decode snapshot: truncated parent flag")
	}
	hasParent := rest[0] != 0
	rest = rest[1:]

	var parentID *ID
	if hasParent {
		if len(rest) < 16 {
			return Snapshot{}, fmt.Errorf("twin: decode snapshot: truncated parent id")
		}
		var pid ID
		copy(pid[:], rest[:16])
		parentID = &pid
		rest = rest[16:]
	}

	version, rest, err := readUint64BE(rest)
	if err != nil {
		return Snapshot{}, fmt.Errorf("twin: decode snapshot event version: %w", err)
	}
	tsNanos, _, err := readUint64BE(rest)
	if err != nil {
		return Snapshot{}, fmt.Errorf("twin: decode snapshot timestamp: %w", err)
	}

	return Snapshot{
		TwinID:       ID(enc.TwinID),
		ClassName:    className,
		Properties:   props,
		ParentID:     parentID,
		EventVersion: version,
		Timestamp:    time.Unix(0, int64(tsNanos)).UTC(),
	}, nil
}

func appendUint64BE(buf []byte, v uint64) []byte {
	var tmp [8]byte
	for i := 0; i < 8; i++ {
		tmp[7-i] = byte(v >> (8 * i))
	}
	return append(buf, tmp[:]...)
}

func readUint64BE(buf []byte) (uint64, []byte, error) {
	if len(buf) < 8 {
		return 0, nil, fmt.Errorf("truncated uint64")
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(buf[i])
	}
	return v, buf[8:], nil
}
