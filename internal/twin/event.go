package twin

import (
	"fmt"
	"time"

	"github.com/twinlab/twinrt/internal/value"
	"github.com/twinlab/twinrt/internal/wire"
)

// EventKind discriminates the TwinEvent variants (§3).
type EventKind int

const (
	EventCreated EventKind = iota
	EventPropertyChanged
	EventTelemetryReceived
	EventMessageSent
	EventCloned
	EventDestroyed
)

func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "Created"
	case EventPropertyChanged:
		return "PropertyChanged"
	case EventTelemetryReceived:
		return "TelemetryReceived"
	case EventMessageSent:
		return "MessageSent"
	case EventCloned:
		return "Cloned"
	case EventDestroyed:
		return "Destroyed"
	default:
		return "Unknown"
	}
}

// Event is the discriminated union of state changes a twin can emit.
// Every variant carries TwinID and Timestamp; the remaining fields are
// populated according to Kind. Events are ground truth: twin state is a
// fold over them (§3 invariant 1).
type Event struct {
	Kind      EventKind
	TwinID    ID
	Timestamp time.Time

	// EventCreated
	ClassName string

	// EventPropertyChanged
	Property string
	Value    value.Value

	// EventTelemetryReceived
	Telemetry map[string]float64

	// EventMessageSent
	Selector string
	Args     []value.Value

	// EventCloned
	ChildID ID
}

var kindToTag = map[EventKind]byte{
	EventCreated:           wire.EventTagCreated,
	EventPropertyChanged:   wire.EventTagPropertyChanged,
	EventTelemetryReceived: wire.EventTagTelemetryReceived,
	EventMessageSent:       wire.EventTagMessageSent,
	EventCloned:            wire.EventTagCloned,
	EventDestroyed:         wire.EventTagDestroyed,
}

var tagToKind = map[byte]EventKind{
	wire.EventTagCreated:           EventCreated,
	wire.EventTagPropertyChanged:   EventPropertyChanged,
	wire.EventTagTelemetryReceived: EventTelemetryReceived,
	wire.EventTagMessageSent:       EventMessageSent,
	wire.EventTagCloned:            EventCloned,
	wire.EventTagDestroyed:         EventDestroyed,
}

// Encode serializes e into the stable binary event record format (§6).
func (e Event) Encode() ([]byte, error) {
	tag, ok := kindToTag[e.Kind]
	if !ok {
		return nil, fmt.Errorf("twin: encode event: unknown kind %v", e.Kind)
	}

	var payload []byte
	switch e.Kind {
	case EventCreated:
		payload = wire.AppendString(payload, e.ClassName)
	case EventPropertyChanged:
		payload = wire.AppendString(payload, e.Property)
		payload = wire.EncodeValue(payload, e.Value)
	case EventTelemetryReceived:
		keys := wire.MapToSortedPairs(e.Telemetry)
		payload = wire.AppendUint32(payload, uint32(len(keys)))
		for _, k := range keys {
			payload = wire.AppendString(payload, k)
			payload = wire.EncodeValue(payload, value.Float(e.Telemetry[k]))
		}
	case EventMessageSent:
		payload = wire.AppendString(payload, e.Selector)
		payload = wire.AppendUint32(payload, uint32(len(e.Args)))
		for _, arg := range e.Args {
			payload = wire.EncodeValue(payload, arg)
		}
	case EventCloned:
		payload = append(payload, e.ChildID[:]...)
	case EventDestroyed:
		// no payload
	}

	enc := wire.EncodedEvent{
		Kind:           tag,
		TwinID:         [16]byte(e.TwinID),
		TimestampNanos: e.Timestamp.UTC().UnixNano(),
		Payload:        payload,
	}
	return enc.Encode(), nil
}

// DecodeEvent parses a binary event record produced by Event.Encode. An
// unrecognized kind tag is a hard StorageFailure/CorruptLog-worthy error;
// callers decide which kind applies based on context (replay vs. raw
// decode).
func DecodeEvent(buf []byte) (Event, error) {
	enc, err := wire.DecodeEvent(buf)
	if err != nil {
		return Event{}, err
	}
	kind, ok := tagToKind[enc.Kind]
	if !ok {
		return Event{}, fmt.Errorf("twin: decode event: unrecognized kind tag %d", enc.Kind)
	}

	ev := Event{
		Kind:      kind,
		TwinID:    ID(enc.TwinID),
		Timestamp: time.Unix(0, enc.TimestampNanos).UTC(),
	}

	rest := enc.Payload
	switch kind {
	case EventCreated:
		className, _, err := wire.ReadString(rest)
		if err != nil {
			return Event{}, fmt.Errorf("twin: decode Created payload: %w", err)
		}
		ev.ClassName = className
	case EventPropertyChanged:
		prop, rest2, err := wire.ReadString(rest)
		if err != nil {
			return Event{}, fmt.Errorf("twin: decode PropertyChanged payload: %w", err)
		}
		val, _, err := wire.DecodeValue(rest2)
		if err != nil {
			return Event{}, fmt.Errorf("twin: decode PropertyChanged value: %w", err)
		}
		ev.Property = prop
		ev.Value = val
	case EventTelemetryReceived:
		n, rest2, err := wire.ReadUint32(rest)
		if err != nil {
			return Event{}, fmt.Errorf("twin: decode TelemetryReceived count: %w", err)
		}
		telemetry := make(map[string]float64, n)
		for i := uint32(0); i < n; i++ {
			var k string
			k, rest2, err = wire.ReadString(rest2)
			if err != nil {
				return Event{}, fmt.Errorf("twin: decode TelemetryReceived key %d: %w", i, err)
			}
			var val value.Value
			val, rest2, err = wire.DecodeValue(rest2)
			if err != nil {
				return Event{}, fmt.Errorf("twin: decode TelemetryReceived value %d: %w", i, err)
			}
			telemetry[k] = val.AsFloat()
		}
		ev.Telemetry = telemetry
	case EventMessageSent:
		selector, rest2, err := wire.ReadString(rest)
		if err != nil {
			return Event{}, fmt.Errorf("twin: decode MessageSent selector: %w", err)
		}
		n, rest2b, err := wire.ReadUint32(rest2)
		if err != nil {
			return Event{}, fmt.Errorf("twin: decode MessageSent arg count: %w", err)
		}
		args := make([]value.Value, 0, n)
		for i := uint32(0); i < n; i++ {
			var val value.Value
			val, rest2b, err = wire.DecodeValue(rest2b)
			if err != nil {
				return Event{}, fmt.Errorf("twin: decode MessageSent arg %d: %w", i, err)
			}
			args = append(args, val)
		}
		ev.Selector = selector
		ev.Args = args
	case EventCloned:
		if len(rest) < 16 {
			return Event{}, fmt.Errorf("twin: decode Cloned payload: truncated")
		}
		var child ID
		copy(child[:], rest[:16])
		ev.ChildID = child
	case EventDestroyed:
		// no payload
	}

	return ev, nil
}
