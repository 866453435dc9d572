package main

import "github.com/twinlab/twinrt/internal/value"

// toJSON converts a Value into a plain interface{} tree encoding/json can
// marshal. Value's fields are unexported (§4.1: it is not itself a wire
// format), so the CLI's JSON output goes through this explicit
// conversion rather than attempting to marshal Value directly.
func toJSON(v value.Value) interface{} {
	switch v.Kind() {
	case value.KindNil:
		return nil
	case value.KindBool:
		return v.AsBool()
	case value.KindInt:
		return v.AsInt()
	case value.KindFloat:
		return v.AsFloat()
	case value.KindString:
		return v.AsString()
	case value.KindSymbol:
		return "#" + v.AsString()
	case value.KindBytes:
		return v.AsBytes()
	case value.KindArray:
		items := v.Items()
		out := make([]interface{}, len(items))
		for i, item := range items {
			out[i] = toJSON(item)
		}
		return out
	case value.KindMap:
		out := make(map[string]interface{}, len(v.Keys()))
		for _, k := range v.Keys() {
			val, _ := v.Get(k)
			out[k] = toJSON(val)
		}
		return out
	default:
		return v.Render()
	}
}

// propertiesToJSON converts a property map to a JSON-friendly map. The
// printed output is still deterministic (§3) because encoding/json
// writes map keys in sorted order.
func propertiesToJSON(props map[string]value.Value) map[string]interface{} {
	out := make(map[string]interface{}, len(props))
	for k, v := range props {
		out[k] = toJSON(v)
	}
	return out
}
