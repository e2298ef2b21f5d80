package offices

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nugget/tao-agent/internal/normalize"
)

// Filter operators.
const (
	OpGreater = "gt"
	OpLess    = "lt"
	OpEqual   = "eq"
)

// FilterError reports a filter that cannot be applied.
type FilterError struct {
	Column string
	Reason string
}

// Error implements the error interface.
func (e *FilterError) Error() string {
	return fmt.Sprintf("filter on %s: %s", e.Column, e.Reason)
}

// Result is the outcome of Query.
type Result struct {
	Count          int
	Data           []map[string]any
	Columns        []string
	FiltersApplied map[string]any
}

// Map returns the result as a structured tool payload.
func (r Result) Map() map[string]any {
	data := make([]any, len(r.Data))
	for i, row := range r.Data {
		data[i] = row
	}
	cols := make([]any, len(r.Columns))
	for i, c := range r.Columns {
		cols[i] = c
	}
	return map[string]any{
		"count":           float64(r.Count),
		"data":            data,
		"columns":         cols,
		"filters_applied": r.FiltersApplied,
	}
}

// Query filters and projects the dataset. filters maps a column to
// either a bare value (equality) or a mapping of operators gt, lt and eq;
// several operators on one column must all hold. A filter on an unknown
// column is a FilterError. columns selects and orders the returned columns;
// unknown names are dropped and an empty selection returns every column.
// An empty filter set returns the whole dataset.
func (d *Dataset) Query(filters map[string]any, columns []string) (Result, error) {
	type cond struct {
		column string
		op     string
		value  any
	}

	var conds []cond
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, col := range keys {
		if !knownColumn(col) {
			return Result{}, &FilterError{Column: col, Reason: "unknown column"}
		}
		switch c := filters[col].(type) {
		case map[string]any:
			for _, op := range []string{OpGreater, OpLess, OpEqual} {
				if v, ok := c[op]; ok {
					conds = append(conds, cond{col, op, v})
				}
			}
			for op := range c {
				if op != OpGreater && op != OpLess && op != OpEqual {
					return Result{}, &FilterError{Column: col, Reason: fmt.Sprintf("unknown operator %q", op)}
				}
			}
		default:
			conds = append(conds, cond{col, OpEqual, c})
		}
	}

	var selected []string
	for _, c := range columns {
		if knownColumn(c) {
			selected = append(selected, c)
		}
	}
	if len(selected) == 0 {
		selected = Columns
	}

	data := []map[string]any{}
	for _, o := range d.rows {
		rec := o.Record()
		keep := true
		for _, c := range conds {
			ok, err := match(rec[c.column], c.op, c.value)
			if err != nil {
				return Result{}, &FilterError{Column: c.column, Reason: err.Error()}
			}
			if !ok {
				keep = false
				break
			}
		}
		if !keep {
			continue
		}
		row := make(map[string]any, len(selected))
		for _, c := range selected {
			row[c] = rec[c]
		}
		data = append(data, row)
	}

	applied := filters
	if applied == nil {
		applied = map[string]any{}
	}
	return Result{
		Count:          len(data),
		Data:           data,
		Columns:        append([]string(nil), selected...),
		FiltersApplied: applied,
	}, nil
}

func knownColumn(c string) bool {
	for _, k := range Columns {
		if k == c {
			return true
		}
	}
	return false
}

func match(field any, op string, want any) (bool, error) {
	if s, ok := field.(string); ok {
		ws, ok := want.(string)
		if !ok {
			return false, fmt.Errorf("expected text, got %T", want)
		}
		if op != OpEqual {
			return false, fmt.Errorf("operator %s needs a numeric column", op)
		}
		return strings.EqualFold(s, ws), nil
	}

	f, _ := normalize.Number(field)
	w, ok := normalize.Number(want)
	if !ok {
		return false, fmt.Errorf("expected number, got %T", want)
	}
	switch op {
	case OpGreater:
		return f > w, nil
	case OpLess:
		return f < w, nil
	default:
		return f == w, nil
	}
}
