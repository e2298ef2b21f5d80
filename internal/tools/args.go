package tools

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nugget/tao-agent/internal/normalize"
)

// argError is a bad argument, reported to the model as KindInvalidArgs.
type argError struct {
	msg string
}

func (e *argError) Error() string { return e.msg }

func missingArg(keys ...string) error {
	return &argError{msg: fmt.Sprintf("missing required argument %q", keys[0])}
}

// lookupArg returns the first of keys present in args. Models sometimes
// spell an argument out ("latitude" for "lat"), so callers pass aliases.
func lookupArg(args map[string]any, keys ...string) (any, string, bool) {
	for _, k := range keys {
		if v, ok := args[k]; ok && v != nil {
			return v, k, true
		}
	}
	return nil, "", false
}

// floatArg reads a required number. Numeric strings are accepted.
func floatArg(args map[string]any, keys ...string) (float64, error) {
	v, key, ok := lookupArg(args, keys...)
	if !ok {
		return 0, missingArg(keys...)
	}
	if n, ok := normalize.Number(v); ok {
		return n, nil
	}
	if s, ok := v.(string); ok {
		if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return n, nil
		}
	}
	return 0, &argError{msg: fmt.Sprintf("argument %q must be a number, got %v", key, v)}
}

// stringArg reads a required non-empty string.
func stringArg(args map[string]any, keys ...string) (string, error) {
	v, key, ok := lookupArg(args, keys...)
	if !ok {
		return "", missingArg(keys...)
	}
	s, ok := v.(string)
	if !ok {
		return "", &argError{msg: fmt.Sprintf("argument %q must be a string", key)}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", &argError{msg: fmt.Sprintf("argument %q must not be empty", key)}
	}
	return s, nil
}

// intArg reads an optional positive integer, returning def when absent.
func intArg(args map[string]any, def int, keys ...string) (int, error) {
	if _, _, ok := lookupArg(args, keys...); !ok {
		return def, nil
	}
	f, err := floatArg(args, keys...)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) || f < 1 {
		return 0, &argError{msg: fmt.Sprintf("argument %q must be a positive integer", keys[0])}
	}
	return int(f), nil
}

// mapArg reads an optional object.
func mapArg(args map[string]any, key string) (map[string]any, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, &argError{msg: fmt.Sprintf("argument %q must be an object", key)}
	}
	return m, nil
}

// stringsArg reads an optional list of strings. A single string is
// treated as a one-element list.
func stringsArg(args map[string]any, key string) ([]string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch x := v.(type) {
	case string:
		return []string{x}, nil
	case []string:
		return x, nil
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return nil, &argError{msg: fmt.Sprintf("argument %q must be a list of strings", key)}
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, &argError{msg: fmt.Sprintf("argument %q must be a list of strings", key)}
}

func invalidArgs(err error) Result {
	return Failure(KindInvalidArgs, "%s", err.Error())
}
