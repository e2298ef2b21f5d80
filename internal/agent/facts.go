package agent

import (
	"fmt"
	"strings"

	"github.com/nugget/tao-agent/internal/normalize"
)

// maxSnippets bounds how many search snippets are kept for the answer.
const maxSnippets = 3

// Facts accumulates what the episode has learned, keyed by meaning
// rather than by the action that produced it. Pointer fields are nil
// until observed.
type Facts struct {
	Location     string
	Latitude     *float64
	Longitude    *float64
	TemperatureC *float64
	TemperatureF *float64
	Conditions   string
	Snippets     []string
	OfficeRows   *int
}

// Empty reports whether nothing has been observed.
func (f Facts) Empty() bool {
	return f.Location == "" && f.Latitude == nil && f.TemperatureC == nil &&
		f.TemperatureF == nil && f.Conditions == "" && len(f.Snippets) == 0 && f.OfficeRows == nil
}

// Merge folds a successful observation of action into f.
func (f *Facts) Merge(action string, value any) {
	switch action {
	case "geocode_location":
		m, ok := value.(map[string]any)
		if !ok {
			return
		}
		if lat, ok := normalize.Float(m, "latitude"); ok {
			f.Latitude = &lat
		}
		if lon, ok := normalize.Float(m, "longitude"); ok {
			f.Longitude = &lon
		}
		if name, ok := normalize.String(m, "name"); ok && name != "" {
			f.Location = name
		}

	case "get_weather":
		m, ok := value.(map[string]any)
		if !ok {
			return
		}
		if t, ok := normalize.Float(m, "temperature"); ok {
			f.TemperatureC = &t
			// A new Celsius reading invalidates an older conversion.
			f.TemperatureF = nil
		}
		if c, ok := normalize.String(m, "conditions"); ok && c != "" {
			f.Conditions = c
		}

	case "convert_c_to_f":
		if t, ok := fahrenheit(value); ok {
			f.TemperatureF = &t
		}

	case "search_offices":
		var hits []any
		switch v := value.(type) {
		case []any:
			hits = v
		case map[string]any:
			hits = []any{v}
		}
		for _, h := range hits {
			if len(f.Snippets) >= maxSnippets {
				break
			}
			if m, ok := h.(map[string]any); ok {
				if doc, ok := normalize.String(m, "document"); ok && doc != "" {
					f.Snippets = append(f.Snippets, doc)
				}
			}
		}

	case "query_offices":
		if m, ok := value.(map[string]any); ok {
			if n, ok := normalize.Float(m, "count"); ok {
				rows := int(n)
				f.OfficeRows = &rows
			}
		}
	}
}

// fahrenheit reads a conversion result, which is normally a bare number
// after normalization.
func fahrenheit(v any) (float64, bool) {
	if n, ok := normalize.Number(v); ok {
		return n, true
	}
	if m, ok := v.(map[string]any); ok {
		for _, k := range []string{"fahrenheit", "temperature_f", "result"} {
			if n, ok := normalize.Float(m, k); ok {
				return n, true
			}
		}
	}
	return 0, false
}

// Temperature formats the best known temperature, preferring Fahrenheit.
func (f Facts) Temperature() string {
	switch {
	case f.TemperatureF != nil:
		return fmt.Sprintf("%.1f°F", *f.TemperatureF)
	case f.TemperatureC != nil:
		return fmt.Sprintf("%.1f°C", *f.TemperatureC)
	}
	return "Unknown"
}

// Summary renders the facts as the final answer. Weather fields that
// were never observed read "Unknown".
func (f Facts) Summary() string {
	location := f.Location
	if location == "" {
		location = "Unknown"
	}
	conditions := f.Conditions
	if conditions == "" {
		conditions = "Unknown"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Location: %s\nConditions: %s\nTemperature: %s", location, conditions, f.Temperature())
	if f.Latitude != nil && f.Longitude != nil {
		fmt.Fprintf(&b, "\nCoordinates: %.4f, %.4f", *f.Latitude, *f.Longitude)
	}
	if f.OfficeRows != nil {
		fmt.Fprintf(&b, "\nMatching offices: %d", *f.OfficeRows)
	}
	if len(f.Snippets) > 0 {
		b.WriteString("\nFrom the office documents:")
		for _, s := range f.Snippets {
			b.WriteString("\n- " + s)
		}
	}
	return b.String()
}
