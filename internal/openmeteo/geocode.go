package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/nugget/tao-agent/internal/remote"
)

// Location is a geocoded place.
type Location struct {
	Latitude  float64
	Longitude float64
	Name      string
}

// Map returns the location as a structured tool payload.
func (l Location) Map() map[string]any {
	return map[string]any{
		"latitude":  l.Latitude,
		"longitude": l.Longitude,
		"name":      l.Name,
	}
}

// Geocoder resolves place names with the geocoding API.
type Geocoder struct {
	baseURL string
	caller  *remote.Caller
}

// NewGeocoder creates a geocoder for the API at baseURL (e.g.
// https://geocoding-api.open-meteo.com).
func NewGeocoder(baseURL string, caller *remote.Caller) *Geocoder {
	return &Geocoder{
		baseURL: strings.TrimRight(baseURL, "/"),
		caller:  caller,
	}
}

// Search returns the best match for name. The geocoding API does not
// understand "City, Region" strings, so when such a query finds nothing
// Search retries with the part before the first comma. No match at all
// is a *remote.NotFoundError.
func (g *Geocoder) Search(ctx context.Context, name string) (Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Location{}, &remote.NotFoundError{
			Service: g.caller.Service(),
			Message: "No location name given.",
		}
	}

	loc, err := g.lookup(ctx, name)
	var nf *remote.NotFoundError
	if errors.As(err, &nf) {
		if city, _, ok := strings.Cut(name, ","); ok && strings.TrimSpace(city) != "" {
			loc, err = g.lookup(ctx, strings.TrimSpace(city))
			if errors.As(err, &nf) {
				// Report the name the caller asked for.
				err = notFound(g.caller.Service(), name)
			}
		}
	}
	return loc, err
}

func (g *Geocoder) lookup(ctx context.Context, name string) (Location, error) {
	q := url.Values{}
	q.Set("name", name)
	q.Set("count", "1")
	u := g.baseURL + "/v1/search?" + q.Encode()

	var loc Location
	var found bool
	err := g.caller.Fetch(ctx, u, func(body []byte) error {
		var payload struct {
			Results []map[string]any `json:"results"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return fmt.Errorf("decode search: %w", err)
		}
		if len(payload.Results) == 0 {
			return nil
		}
		first := payload.Results[0]
		lat, err := numberField(first, "latitude")
		if err != nil {
			return err
		}
		lon, err := numberField(first, "longitude")
		if err != nil {
			return err
		}
		resolved, _ := first["name"].(string)
		if resolved == "" {
			resolved = name
		}
		loc = Location{Latitude: lat, Longitude: lon, Name: resolved}
		found = true
		return nil
	})
	if err != nil {
		return Location{}, err
	}
	if !found {
		return Location{}, notFound(g.caller.Service(), name)
	}
	return loc, nil
}

func notFound(service, name string) error {
	return &remote.NotFoundError{
		Service: service,
		Query:   name,
		Message: fmt.Sprintf("No location found for '%s'. Try a different search term.", name),
	}
}
