// Package message implements the closed, hashable Message descriptor
// that mediates every read and write against a twin (§4.2), plus a small
// diagnostic-only parser for a whitespace-tokenized surface syntax.
package message

import "github.com/twinlab/twinrt/internal/value"

// Kind discriminates the Message variants.
type Kind int

const (
	KindGetProperty Kind = iota
	KindSetProperty
	KindUpdateProperties
	KindSend
	KindClone
	KindInitialize
	KindDestroy
	KindGetClass
	KindGetAllProperties
	KindRespondsTo
)

func (k Kind) String() string {
	switch k {
	case KindGetProperty:
		return "GetProperty"
	case KindSetProperty:
		return "SetProperty"
	case KindUpdateProperties:
		return "UpdateProperties"
	case KindSend:
		return "Send"
	case KindClone:
		return "Clone"
	case KindInitialize:
		return "Initialize"
	case KindDestroy:
		return "Destroy"
	case KindGetClass:
		return "GetClass"
	case KindGetAllProperties:
		return "GetAllProperties"
	case KindRespondsTo:
		return "RespondsTo"
	default:
		return "Unknown"
	}
}

// Update is a single (name, value) pair in a bulk UpdateProperties
// message; later entries with the same name overwrite earlier ones when
// applied, per §8's boundary-behavior rule.
type Update struct {
	Name  string
	Value value.Value
}

// Message is a closed, hashable request descriptor. Exactly the fields
// relevant to Kind are populated; the zero value of every other field is
// ignored by the dispatcher.
type Message struct {
	Kind Kind

	// GetProperty, SetProperty
	Property string
	Value    value.Value

	// UpdateProperties
	Updates []Update

	// Send
	Selector string
	Args     []value.Value

	// RespondsTo
	Query string
}

// GetProperty builds a GetProperty message.
func GetProperty(name string) Message { return Message{Kind: KindGetProperty, Property: name} }

// SetProperty builds a SetProperty message.
func SetProperty(name string, v value.Value) Message {
	return Message{Kind: KindSetProperty, Property: name, Value: v}
}

// UpdateProperties builds a bulk UpdateProperties message.
func UpdateProperties(updates []Update) Message {
	return Message{Kind: KindUpdateProperties, Updates: updates}
}

// Send builds a Send message invoking selector with args.
func Send(selector string, args []value.Value) Message {
	return Message{Kind: KindSend, Selector: selector, Args: args}
}

// Clone builds a Clone message.
func Clone() Message { return Message{Kind: KindClone} }

// Initialize builds an Initialize message.
func Initialize() Message { return Message{Kind: KindInitialize} }

// Destroy builds a Destroy message.
func Destroy() Message { return Message{Kind: KindDestroy} }

// GetClass builds a GetClass message.
func GetClass() Message { return Message{Kind: KindGetClass} }

// GetAllProperties builds a GetAllProperties message.
func GetAllProperties() Message { return Message{Kind: KindGetAllProperties} }

// RespondsTo builds a RespondsTo message asking whether selector is
// understood.
func RespondsTo(selector string) Message { return Message{Kind: KindRespondsTo, Query: selector} }

// Selector returns a short canonical name for m: the property name for
// property messages, the invoked selector for Send/RespondsTo, and a
// fixed string for the remaining lifecycle/introspection variants.
func (m Message) Selector() string {
	switch m.Kind {
	case KindGetProperty, KindSetProperty:
		return m.Property
	case KindSend:
		return m.Selector
	case KindRespondsTo:
		return "respondsTo:"
	case KindUpdateProperties:
		return "updateProperties"
	case KindClone:
		return "clone"
	case KindInitialize:
		return "initialize"
	case KindDestroy:
		return "destroy"
	case KindGetClass:
		return "class"
	case KindGetAllProperties:
		return "allProperties"
	default:
		return "unknown"
	}
}

// ArgCount returns the number of dynamic arguments m carries.
func (m Message) ArgCount() int {
	switch m.Kind {
	case KindSetProperty:
		return 1
	case KindUpdateProperties:
		return len(m.Updates)
	case KindSend:
		return len(m.Args)
	default:
		return 0
	}
}
