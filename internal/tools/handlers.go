package tools

import (
	"context"

	"github.com/nugget/tao-agent/internal/normalize"
	"github.com/nugget/tao-agent/internal/openmeteo"
)

func (r *Registry) handleSearchOffices(ctx context.Context, args map[string]any) (Result, error) {
	if r.b.Search == nil {
		return Failure(KindUnavailable, "document search is not configured"), nil
	}
	query, err := stringArg(args, "query", "q")
	if err != nil {
		return invalidArgs(err), nil
	}
	topK, err := intArg(args, r.b.TopK, "top_k", "k")
	if err != nil {
		return invalidArgs(err), nil
	}

	hits, err := r.b.Search.Search(ctx, query, topK)
	if err != nil {
		if res, ferr := fromError(err); ferr == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return Result{}, err
		}
		return Failure(KindServiceUnavailable, "document search failed: %v", err), nil
	}
	if len(hits) == 0 {
		return Failure(KindNotFound, "no documents matched %q", query), nil
	}

	data := make([]any, len(hits))
	for i, h := range hits {
		data[i] = map[string]any{
			"document": h.Document,
			"metadata": h.Metadata,
			"distance": h.Distance,
		}
	}
	return Success(normalize.Normalize(normalize.Envelope{Data: data})), nil
}

func (r *Registry) handleGeocode(ctx context.Context, args map[string]any) (Result, error) {
	if r.b.Geocoder == nil {
		return Failure(KindUnavailable, "geocoding is not configured"), nil
	}
	name, err := stringArg(args, "name", "location", "city")
	if err != nil {
		return invalidArgs(err), nil
	}

	loc, err := r.b.Geocoder.Search(ctx, name)
	if err != nil {
		return fromError(err)
	}
	return structured("geocoding", loc.Map())
}

func (r *Registry) handleGetWeather(ctx context.Context, args map[string]any) (Result, error) {
	if r.b.Weather == nil {
		return Failure(KindUnavailable, "weather is not configured"), nil
	}
	lat, err := floatArg(args, "lat", "latitude")
	if err != nil {
		return invalidArgs(err), nil
	}
	lon, err := floatArg(args, "lon", "longitude", "lng")
	if err != nil {
		return invalidArgs(err), nil
	}
	if lat < -90 || lat > 90 {
		return Failure(KindInvalidArgs, "latitude %g out of range [-90, 90]", lat), nil
	}
	if lon < -180 || lon > 180 {
		return Failure(KindInvalidArgs, "longitude %g out of range [-180, 180]", lon), nil
	}

	w, err := r.b.Weather.Current(ctx, lat, lon)
	if err != nil {
		return fromError(err)
	}
	return structured("weather", w.Map())
}

func handleConvert(_ context.Context, args map[string]any) (Result, error) {
	c, err := floatArg(args, "c", "celsius", "temperature")
	if err != nil {
		return invalidArgs(err), nil
	}
	f := openmeteo.CelsiusToFahrenheit(c)
	return Success(normalize.Normalize(normalize.StructuredEnvelope(map[string]any{"result": f}))), nil
}

func (r *Registry) handleQueryOffices(_ context.Context, args map[string]any) (Result, error) {
	if r.b.Offices == nil {
		return Failure(KindUnavailable, "office data is not loaded"), nil
	}
	filters, err := mapArg(args, "filters")
	if err != nil {
		return invalidArgs(err), nil
	}
	columns, err := stringsArg(args, "columns")
	if err != nil {
		return invalidArgs(err), nil
	}

	res, err := r.b.Offices.Query(filters, columns)
	if err != nil {
		return fromError(err)
	}
	return structured("offices", res.Map())
}

// structured normalizes a mapping payload and insists it stays a
// mapping; a report collapsed to a bare value is useless to the agent.
func structured(service string, payload map[string]any) (Result, error) {
	v := normalize.Normalize(normalize.StructuredEnvelope(payload))
	m, err := normalize.Mapping(v)
	if err != nil {
		return Failure(KindInvalidData, "%s payload: %v", service, err), nil
	}
	return Success(m), nil
}
