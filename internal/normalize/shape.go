package normalize

import "fmt"

// Kind is the closed set of canonical value shapes.
type Kind int

const (
	KindNull Kind = iota
	KindScalar
	KindText
	KindMapping
	KindList
)

// String returns the kind name used in log lines and error messages.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindScalar:
		return "scalar"
	case KindText:
		return "text"
	case KindMapping:
		return "mapping"
	case KindList:
		return "list"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Shape reports the shape of a canonical value. Numbers and booleans are
// scalars; values Normalize would not produce are reported as scalars.
func Shape(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case string:
		return KindText
	case map[string]any:
		return KindMapping
	case []any:
		return KindList
	}
	return KindScalar
}

// Mapping returns v as a mapping, or an error naming the shape received.
// Callers use it when a tool must return a structure, such as a weather
// report that would be useless collapsed to a single number.
func Mapping(v any) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected mapping, got %s", Shape(v))
	}
	return m, nil
}

// Float reads a numeric field from a mapping.
func Float(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	return Number(v)
}

// String reads a string field from a mapping.
func String(m map[string]any, key string) (string, bool) {
	s, ok := m[key].(string)
	return s, ok
}
