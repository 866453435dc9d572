package message

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/twinlab/twinrt/internal/value"
)

// reservedBare are identifiers that map to a fixed Message variant when
// they appear alone on the line (§4.2); followed by a colon they parse
// like any other name.
var reservedBare = map[string]Message{
	"clone":         Clone(),
	"class":         GetClass(),
	"allProperties": GetAllProperties(),
}

// Parse accepts the minimal whitespace-tokenized surface syntax described
// in §4.2:
//
//	bareIdent              -> GetProperty(bareIdent)
//	clone / class / allProperties (bare) -> their fixed variant
//	respondsTo: selector    -> RespondsTo(selector)
//	name: singleValue       -> SetProperty(name, singleValue)
//	name: (zero or many args) -> Send{selector: name, args}
//
// Parse never mutates twin state; failures return a plain error without
// side effects. That error is not a twin.Error, so it does not match
// twin.ErrParseError under errors.Is.
func Parse(line string) (Message, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Message{}, fmt.Errorf("message: empty input")
	}

	lx := newLexer(trimmed)
	first, err := lx.next()
	if err != nil {
		return Message{}, fmt.Errorf("message: %w", err)
	}
	if first.typ != tokIdent {
		return Message{}, fmt.Errorf("message: expected identifier, got %q", first.val)
	}
	name := first.val

	second, err := lx.next()
	if err != nil {
		return Message{}, fmt.Errorf("message: %w", err)
	}

	if second.typ == tokEOF {
		if m, ok := reservedBare[name]; ok {
			return m, nil
		}
		return GetProperty(name), nil
	}

	if second.typ != tokColon {
		return Message{}, fmt.Errorf("message: unexpected token %q after %q", second.val, name)
	}

	args, err := parseArgs(lx)
	if err != nil {
		return Message{}, fmt.Errorf("message: %w", err)
	}

	switch {
	case name == "respondsTo":
		if len(args) != 1 {
			return Message{}, fmt.Errorf("message: respondsTo: requires exactly one selector argument")
		}
		return RespondsTo(args[0].AsString()), nil
	case len(args) == 1:
		return SetProperty(name, args[0]), nil
	default:
		return Send(name, args), nil
	}
}

func parseArgs(lx *lexer) ([]value.Value, error) {
	var args []value.Value
	for {
		lx.skipSpace()
		r, ok := lx.peekRune()
		if !ok {
			break
		}
		if r == ',' {
			lx.pos++
			continue
		}
		v, err := parseOneValue(lx)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return args, nil
}

// parseOneValue parses a single value token using the coercion order from
// §4.2: integer, then float, then the literals true/false/nil, then #sym,
// then quoted string, then a raw-string fallback that takes the single
// token verbatim.
func parseOneValue(lx *lexer) (value.Value, error) {
	r, _ := lx.peekRune()
	if r == '"' {
		tok, err := lx.next()
		if err != nil {
			return value.Value{}, err
		}
		return value.String(tok.val), nil
	}
	if r == '#' {
		tok, err := lx.next()
		if err != nil {
			return value.Value{}, err
		}
		return value.Symbol(tok.val), nil
	}

	tok, err := lx.next()
	if err != nil {
		return value.Value{}, err
	}
	if tok.typ != tokIdent {
		return value.Value{}, fmt.Errorf("unexpected token %q in argument list", tok.val)
	}
	text := tok.val

	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return value.Int(i), nil
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return value.Float(f), nil
	}
	switch text {
	case "true":
		return value.Bool(true), nil
	case "false":
		return value.Bool(false), nil
	case "nil":
		return value.Nil(), nil
	}
	// Raw-string fallback: the token itself, taken verbatim. This also
	// covers identifiers that merely look like words ("open", "sensorA").
	return value.String(text), nil
}
