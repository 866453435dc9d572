package wire

import (
	"fmt"
)

// Event kind tags, persisted as the first byte of every encoded event
// record. Adding a new twin event variant means adding a new tag here;
// decoding an unrecognized tag is a hard error (§6 — no silent skipping).
const (
	EventTagCreated           byte = 1
	EventTagPropertyChanged   byte = 2
	EventTagTelemetryReceived byte = 3
	EventTagMessageSent       byte = 4
	EventTagCloned            byte = 5
	EventTagDestroyed         byte = 6
)

// EncodedEvent is the raw, already-framed wire form of a TwinEvent. The
// twin package builds this from its own TwinEvent type and the store
// packages persist it opaquely — neither store implementation needs to
// understand event semantics, only the codec.
type EncodedEvent struct {
	Kind      byte
	TwinID    [16]byte
	TimestampNanos int64
	Payload   []byte
}

// Encode serializes e into the stable byte sequence written to a
// persistent EventStore.
func (e EncodedEvent) Encode() []byte {
	buf := make([]byte, 0, 1+16+8+len(e.Payload))
	buf = append(buf, e.Kind)
	buf = append(buf, e.TwinID[:]...)
	buf = appendUint64(buf, uint64(e.TimestampNanos))
	buf = append(buf, e.Payload...)
	return buf
}

// DecodeEvent parses the stable byte sequence produced by Encode.
func DecodeEvent(buf []byte) (EncodedEvent, error) {
	if len(buf) < 1+16+8 {
		return EncodedEvent{}, fmt.Errorf("wire: decode event: truncated header")
	}
	kind := buf[0]
	switch kind {
	case EventTagCreated, EventTagPropertyChanged, EventTagTelemetryReceived,
		EventTagMessageSent, EventTagCloned, EventTagDestroyed:
		// recognized
	default:
		return EncodedEvent{}, fmt.Errorf("wire: unknown event tag %d", kind)
	}
	var id [16]byte
	copy(id[:], buf[1:17])
	ts, _, err := readUint64(buf[17:25])
	if err != nil {
		return EncodedEvent{}, fmt.Errorf("wire: decode event timestamp: %w", err)
	}
	return EncodedEvent{
		Kind:           kind,
		TwinID:         id,
		TimestampNanos: int64(ts),
		Payload:        buf[25:],
	}, nil
}

// EncodedSnapshot is the raw wire form of a TwinSnapshot.
type EncodedSnapshot struct {
	TwinID        [16]byte
	Payload       []byte // class name + properties + parent id + event version + timestamp
}

// Encode serializes s.
func (s EncodedSnapshot) Encode() []byte {
	buf := make([]byte, 0, 16+len(s.Payload))
	buf = append(buf, s.TwinID[:]...)
	buf = append(buf, s.Payload...)
	return buf
}

// DecodeSnapshot parses the stable byte sequence produced by Encode.
func DecodeSnapshot(buf []byte) (EncodedSnapshot, error) {
	if len(buf) < 16 {
		return EncodedSnapshot{}, fmt.Errorf("wire: decode snapshot: truncated header")
	}
	var id [16]byte
	copy(id[:], buf[:16])
	return EncodedSnapshot{TwinID: id, Payload: buf[16:]}, nil
}
