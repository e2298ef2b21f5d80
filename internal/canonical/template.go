package canonical

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/template"
)

// DataPlaceholder is the template key the dataset is rendered into.
const DataPlaceholder = "data"

func parseTemplate(op Operation) (*template.Template, error) {
	return template.New(op.Name).Option("missingkey=error").Parse(op.Template)
}

// Render fills the operation's prompt template with params and the
// serialized data rows. A parameter the template references but params
// lacks is an error.
func (op Operation) Render(params map[string]any, data string) (string, error) {
	tmpl, err := parseTemplate(op)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", op.Name, err)
	}

	values := make(map[string]any, len(params)+1)
	for k, v := range params {
		values[k] = v
	}
	values[DataPlaceholder] = data

	var b strings.Builder
	if err := tmpl.Execute(&b, values); err != nil {
		return "", fmt.Errorf("render %s: %w", op.Name, err)
	}
	return b.String(), nil
}

// ValidationError reports missing or malformed operation parameters.
type ValidationError struct {
	Operation   string
	Missing     []string
	Invalid     []string
	Suggestions []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "Missing required parameters: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "Invalid parameters: "+strings.Join(e.Invalid, ", "))
	}
	return strings.Join(parts, "; ")
}

// Validate checks params against the operation's declared parameters
// and returns them coerced to their declared types. Unknown keys pass
// through unchanged. Failures are reported as a *ValidationError.
func (op Operation) Validate(params map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}

	verr := &ValidationError{Operation: op.Name}
	for _, p := range op.Parameters {
		v, ok := params[p.Name]
		if !ok || v == nil {
			if p.Required {
				verr.Missing = append(verr.Missing, p.Name)
				verr.Suggestions = append(verr.Suggestions, fmt.Sprintf("Add %s: %s", p.Name, p.Description))
			}
			continue
		}
		coerced, ok := coerce(p.Type, v)
		if !ok {
			verr.Invalid = append(verr.Invalid, invalidMessage(p))
			continue
		}
		out[p.Name] = coerced
	}

	if len(verr.Missing) > 0 || len(verr.Invalid) > 0 {
		return nil, verr
	}
	return out, nil
}

func invalidMessage(p Parameter) string {
	switch p.Type {
	case TypeInt:
		return p.Name + " must be an integer"
	case TypeString:
		return p.Name + " must be a non-empty string"
	}
	return p.Name + " has an unsupported type"
}

func coerce(typ string, v any) (any, bool) {
	switch typ {
	case TypeInt:
		switch n := v.(type) {
		case int:
			return n, true
		case int64:
			return int(n), true
		case float64:
			if n != math.Trunc(n) {
				return nil, false
			}
			return int(n), true
		case string:
			i, err := strconv.Atoi(strings.TrimSpace(n))
			if err != nil {
				return nil, false
			}
			return i, true
		}
		return nil, false
	case TypeString:
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, false
		}
		return strings.TrimSpace(s), true
	}
	return v, true
}
