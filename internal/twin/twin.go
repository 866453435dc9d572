package twin

import (
	"time"

	"github.com/twinlab/twinrt/internal/message"
	"github.com/twinlab/twinrt/internal/value"
)

// Twin is the only object allowed to mutate a State: writes go through
// Send, or through Apply when an event is replayed or ingested (§4.3).
// The registry reads State directly under its own per-twin lock. A
// Twin is exclusively owned by the Registry while resident — nothing in
// this package takes a lock, that's the caller's job (§5).
type Twin struct {
	State State
}

// NewTwin constructs a fresh, persisted twin. The caller is responsible
// for appending the Created event this implies.
func NewTwin(id ID, className string, now time.Time) *Twin {
	return &Twin{State: State{
		ID:         id,
		ClassName:  className,
		Properties: map[string]value.Value{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}}
}

// NewHypotheticalTwin constructs a fresh, in-memory-only twin (§4.6
// create_hypothetical_twin). It is never backed by an event log and
// Send on it never returns events to persist.
func NewHypotheticalTwin(id ID, className string, now time.Time) *Twin {
	t := now
	return &Twin{State: State{
		ID:             id,
		ClassName:      className,
		Properties:     map[string]value.Value{},
		CreatedAt:      now,
		UpdatedAt:      now,
		IsHypothetical: true,
		SimulationTime: &t,
	}}
}

// FromState reconstructs a Twin around an already-materialized State,
// used by the registry's load protocol after replay.
func FromState(s State) *Twin { return &Twin{State: s} }

// SendResult is the outcome of dispatching a Message to a twin: the
// result Value, the Events the caller must durably append (empty for
// hypothetical twins and for pure reads), and, for Clone, the freshly
// spawned sibling Twin the caller may choose to adopt into the registry.
type SendResult struct {
	Value   value.Value
	Events  []Event
	Spawned *Twin
}

// builtin is a Send{selector} handler. It receives the twin (for reads
// and in-place mutation) and returns the result value plus any property
// name it wrote, so Send can emit the matching PropertyChanged event.
type builtin func(t *Twin, args []value.Value) (result value.Value, wroteProperty string, wroteValue value.Value, err error)

var builtins = map[string]builtin{
	"checkAlert": checkAlert,
}

// checkAlert is the reference built-in (§4.3): read temperature
// (default 0) and threshold (default 30), persist alert = temperature >
// threshold as a boolean property, and return it.
func checkAlert(t *Twin, _ []value.Value) (value.Value, string, value.Value, error) {
	temperature := 0.0
	if v, ok := t.State.Properties["temperature"]; ok {
		temperature = v.AsFloat()
	}
	threshold := 30.0
	if v, ok := t.State.Properties["threshold"]; ok {
		threshold = v.AsFloat()
	}
	alert := value.Bool(temperature > threshold)
	return alert, "alert", alert, nil
}

// Send dispatches msg against t, mutating t.State in place and returning
// the events the caller must durably append. Send never reads the clock
// or generates ids itself for anything that affects replay-visible state
// (Clone is the one exception: Send generates the child's id and creation
// time itself, and neither is part of this twin's replayed state) so the
// replay path and the live path are identical (§4.6 event-application
// rule).
func (t *Twin) Send(msg *message.Message) (SendResult, error) {
	if t.State.Destroyed {
		return SendResult{}, NewError(ErrorKindInvalidOperation, "twin %s is destroyed", t.State.ID)
	}

	switch msg.Kind {
	case message.KindGetProperty:
		v, ok := t.State.Properties[msg.Property]
		if !ok {
			return SendResult{Value: value.Nil()}, nil
		}
		return SendResult{Value: v}, nil

	case message.KindSetProperty:
		return t.sendSetProperty(msg.Property, msg.Value)

	case message.KindUpdateProperties:
		return t.sendUpdateProperties(msg.Updates)

	case message.KindGetClass:
		return SendResult{Value: value.String(t.State.ClassName)}, nil

	case message.KindGetAllProperties:
		return SendResult{Value: value.Map(t.State.Properties)}, nil

	case message.KindRespondsTo:
		return SendResult{Value: value.Bool(t.respondsTo(msg.Query))}, nil

	case message.KindClone:
		child := t.cloneOrdinary(NewID(), time.Now().UTC())
		return SendResult{
			Value:   value.String(child.State.ID.String()),
			Events:  t.emitEvent(Event{Kind: EventCloned, ChildID: child.State.ID}),
			Spawned: child,
		}, nil

	case message.KindInitialize:
		return SendResult{Value: value.Nil()}, nil

	case message.KindDestroy:
		events := t.emitEvent(Event{Kind: EventDestroyed})
		t.applyLocal(events, Event{Kind: EventDestroyed})
		return SendResult{Value: value.Nil(), Events: events}, nil

	case message.KindSend:
		return t.sendBuiltin(msg.Selector, msg.Args)

	default:
		return SendResult{}, NewError(ErrorKindDoesNotUnderstand, "unrecognized message kind %v", msg.Kind)
	}
}

func (t *Twin) sendSetProperty(name string, v value.Value) (SendResult, error) {
	events := t.emitEvent(Event{Kind: EventPropertyChanged, Property: name, Value: v})
	t.applyLocal(events, Event{Kind: EventPropertyChanged, Property: name, Value: v})
	return SendResult{Value: value.Nil(), Events: events}, nil
}

// sendUpdateProperties applies updates in list order — later entries
// with the same name win — but emits one PropertyChanged event per
// entry so replay reproduces the same final state (§8 boundary
// behavior: duplicate keys apply in list order).
func (t *Twin) sendUpdateProperties(updates []message.Update) (SendResult, error) {
	events := make([]Event, 0, len(updates))
	for _, u := range updates {
		ev := Event{Kind: EventPropertyChanged, Property: u.Name, Value: u.Value}
		stamped := t.emitEvent(ev)
		events = append(events, stamped...)
		t.applyLocal(stamped, ev)
	}
	return SendResult{Value: value.Nil(), Events: events}, nil
}

func (t *Twin) sendBuiltin(selector string, args []value.Value) (SendResult, error) {
	fn, ok := builtins[selector]
	if !ok {
		return SendResult{}, NewError(ErrorKindDoesNotUnderstand, "no handler for selector %q", selector)
	}
	result, propName, propValue, err := fn(t, args)
	if err != nil {
		return SendResult{}, err
	}

	events := t.emitEvent(Event{Kind: EventMessageSent, Selector: selector, Args: args})
	if propName != "" {
		propEv := Event{Kind: EventPropertyChanged, Property: propName, Value: propValue}
		stamped := t.emitEvent(propEv)
		events = append(events, stamped...)
		t.applyLocal(stamped, propEv)
	} else if len(events) > 0 {
		t.State.UpdatedAt = events[0].Timestamp
	} else {
		t.State.UpdatedAt = time.Now().UTC()
	}
	return SendResult{Value: result, Events: events}, nil
}

// applyLocal runs Apply using the timestamp just stamped onto a live
// event, falling back to the current time for hypothetical twins (which
// emitEvent returns no stamped event for). This keeps the mutation logic
// for a live write and for replay identical — both go through Apply.
func (t *Twin) applyLocal(stamped []Event, fallback Event) {
	if len(stamped) > 0 {
		t.Apply(stamped[0])
		return
	}
	fallback.Timestamp = time.Now().UTC()
	t.Apply(fallback)
}

// Apply applies the state-changing effect of a single already-persisted
// event to t.State (§4.6 load protocol step 4). It is the same mutation
// logic the live write path drives, so replay and live writes can never
// diverge: PropertyChanged sets one property, TelemetryReceived sets
// many (each boxed as a float), Destroyed marks the twin gone, and every
// other variant leaves properties untouched on replay.
func (t *Twin) Apply(e Event) {
	switch e.Kind {
	case EventPropertyChanged:
		t.State.Properties[e.Property] = e.Value
		t.State.UpdatedAt = e.Timestamp
	case EventTelemetryReceived:
		for k, v := range e.Telemetry {
			t.State.Properties[k] = value.Float(v)
		}
		t.State.UpdatedAt = e.Timestamp
	case EventDestroyed:
		t.State.Destroyed = true
		t.State.UpdatedAt = e.Timestamp
	}
}

// respondsTo reports whether selector names a built-in fixed message
// variant or an entry in the dynamic dispatch table (§4.3).
func (t *Twin) respondsTo(selector string) bool {
	switch selector {
	case "class", "allProperties", "clone", "respondsTo:":
		return true
	}
	_, ok := builtins[selector]
	return ok
}

// cloneOrdinary implements the clone rule (§4.3): fresh id, parent_id =
// self.id, copy class_name and properties, reset timestamps,
// is_hypothetical = false.
func (t *Twin) cloneOrdinary(newID ID, now time.Time) *Twin {
	parent := t.State.ID
	return &Twin{State: State{
		ID:         newID,
		ClassName:  t.State.ClassName,
		Properties: t.State.CloneProperties(),
		ParentID:   &parent,
		CreatedAt:  now,
		UpdatedAt:  now,
	}}
}

// SetSimulationTime advances a hypothetical twin's simulation clock
// (§4.7). It fails with InvalidOperation on a non-hypothetical twin.
func (t *Twin) SetSimulationTime(ts time.Time) error {
	if !t.State.IsHypothetical {
		return NewError(ErrorKindInvalidOperation, "set_simulation_time on non-hypothetical twin %s", t.State.ID)
	}
	t.State.SimulationTime = &ts
	return nil
}

// emitEvent stamps e with t's id and the current time and returns it as
// a single-element slice for persisted twins to append. Hypothetical
// twins never produce events (invariant 4), so this returns nil for them.
func (t *Twin) emitEvent(e Event) []Event {
	if t.State.IsHypothetical {
		return nil
	}
	return []Event{t.makeEvent(e)}
}

func (t *Twin) makeEvent(e Event) Event {
	e.TwinID = t.State.ID
	e.Timestamp = time.Now().UTC()
	return e
}
