package twin

import "fmt"

// ErrorKind is the stable discriminator for every failure the core can
// produce (§7). Callers should switch on Kind rather than parse messages.
type ErrorKind int

const (
	// ErrorKindNone is the zero value; never present on a real Error.
	ErrorKindNone ErrorKind = iota
	// ErrorKindNotFound: get_twin for an id with no snapshot and no events.
	ErrorKindNotFound
	// ErrorKindCorruptLog: first stored event for a loaded twin is not
	// Created, or event decoding failed.
	ErrorKindCorruptLog
	// ErrorKindDoesNotUnderstand: Send{selector} on a twin whose dispatcher
	// has no handler for selector.
	ErrorKindDoesNotUnderstand
	// ErrorKindInvalidOperation: set_simulation_time on a non-hypothetical
	// twin, or update_telemetry for a destroyed twin.
	ErrorKindInvalidOperation
	// ErrorKindStorageFailure: underlying store I/O or codec failure.
	ErrorKindStorageFailure
	// ErrorKindParseError: Message parse failures. message.Parse itself
	// returns plain errors, so no code in the core produces this kind.
	ErrorKindParseError
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindNotFound:
		return "NotFound"
	case ErrorKindCorruptLog:
		return "CorruptLog"
	case ErrorKindDoesNotUnderstand:
		return "DoesNotUnderstand"
	case ErrorKindInvalidOperation:
		return "InvalidOperation"
	case ErrorKindStorageFailure:
		return "StorageFailure"
	case ErrorKindParseError:
		return "ParseError"
	default:
		return "None"
	}
}

// Error is the single error type returned by the core. It carries a
// stable Kind plus a human-readable message, and wraps an underlying
// cause when one exists (e.g. StorageFailure wrapping an I/O error).
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is supports errors.Is against another *Error by comparing Kind only,
// so callers can write errors.Is(err, twin.ErrNotFound) against a
// sentinel built with any message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewError builds an *Error of the given kind with no cause; use Wrap to
// attach one.
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind that wraps cause.
func Wrap(kind ErrorKind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Sentinels usable with errors.Is(err, twin.ErrNotFound) etc. — only the
// Kind is compared, so the Message on these is irrelevant.
var (
	ErrNotFound          = &Error{Kind: ErrorKindNotFound}
	ErrCorruptLog        = &Error{Kind: ErrorKindCorruptLog}
	ErrDoesNotUnderstand = &Error{Kind: ErrorKindDoesNotUnderstand}
	ErrInvalidOperation  = &Error{Kind: ErrorKindInvalidOperation}
	ErrStorageFailure    = &Error{Kind: ErrorKindStorageFailure}
	ErrParseError        = &Error{Kind: ErrorKindParseError}
)
