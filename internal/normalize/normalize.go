// Package normalize reconciles the different shapes a tool result can
// arrive in (a bare value, a single-key wrapper, a structured payload,
// free text) into one canonical Go value.
//
// Tool backends hand results to the dispatcher as an [Envelope]. The
// envelope is a closed set of optional variants filled at the transport
// boundary, so [Normalize] never has to check for attributes at runtime.
// Canonical values are the ones encoding/json produces when decoding into
// an interface: float64, string, bool, nil, []any and map[string]any.
package normalize

import (
	"encoding/json"
	"strings"
)

// Envelope is a raw tool-call result as produced by a backend. At most
// one variant is expected to be set, but when several are, they are
// considered in field order.
type Envelope struct {
	// Structured is a structured payload (a decoded JSON object).
	Structured map[string]any

	// Data is a generic data field of any decoded shape.
	Data any

	// Text is free text that may or may not hold JSON.
	Text *string

	// Value is a single scalar result. HasValue distinguishes an
	// explicit zero from an unset field.
	Value    any
	HasValue bool
}

// TextEnvelope wraps free text.
func TextEnvelope(s string) Envelope {
	return Envelope{Text: &s}
}

// ValueEnvelope wraps a single scalar.
func ValueEnvelope(v any) Envelope {
	return Envelope{Value: v, HasValue: true}
}

// StructuredEnvelope wraps a structured payload.
func StructuredEnvelope(m map[string]any) Envelope {
	return Envelope{Structured: m}
}

// unwrapKeys are the only map keys collapsed to their numeric value.
// Anything else, such as {latitude, longitude}, is a real structure.
var unwrapKeys = map[string]bool{
	"value":  true,
	"result": true,
	"data":   true,
}

// Normalize converts raw into its canonical value. It never fails: input
// it does not recognize is returned unchanged. Normalize is idempotent.
func Normalize(raw any) any {
	switch v := raw.(type) {
	case Envelope:
		return normalizeEnvelope(v)
	case *Envelope:
		if v == nil {
			return nil
		}
		return normalizeEnvelope(*v)
	case []any:
		if len(v) == 1 {
			return Normalize(v[0])
		}
		return v
	case map[string]any:
		if len(v) == 1 {
			for k, inner := range v {
				if unwrapKeys[k] {
					if n, ok := Number(inner); ok {
						return n
					}
				}
			}
		}
		return v
	default:
		if n, ok := Number(raw); ok {
			return n
		}
		return raw
	}
}

func normalizeEnvelope(e Envelope) any {
	if len(e.Structured) > 0 {
		return Normalize(e.Structured)
	}
	if !isEmpty(e.Data) {
		return Normalize(e.Data)
	}
	if e.Text != nil {
		var decoded any
		dec := json.NewDecoder(strings.NewReader(*e.Text))
		if err := dec.Decode(&decoded); err == nil && !dec.More() {
			// The decoded value is already canonical; Normalize it so a
			// text body of {"value": 3} behaves like a structured one.
			return Normalize(decoded)
		}
		return *e.Text
	}
	if e.HasValue {
		return Normalize(e.Value)
	}
	return nil
}

// isEmpty reports whether v counts as an empty data field: nil, an empty
// string, an empty slice or an empty map.
func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	}
	return false
}

// Number reports whether v is numeric and returns it as float64. Booleans
// are not numbers.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
