// Package openmeteo is a client for the Open-Meteo forecast and
// geocoding APIs, built on the retrying [remote.Caller].
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/nugget/tao-agent/internal/remote"
)

// Weather is the current weather at a point.
type Weather struct {
	TemperatureC float64
	Code         int
	Conditions   string
}

// Map returns the weather as a structured tool payload.
func (w Weather) Map() map[string]any {
	return map[string]any{
		"temperature": w.TemperatureC,
		"code":        float64(w.Code),
		"conditions":  w.Conditions,
	}
}

// WeatherClient fetches current conditions from the forecast API.
type WeatherClient struct {
	baseURL string
	caller  *remote.Caller
}

// NewWeatherClient creates a client for the forecast API at baseURL
// (e.g. https://api.open-meteo.com).
func NewWeatherClient(baseURL string, caller *remote.Caller) *WeatherClient {
	return &WeatherClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		caller:  caller,
	}
}

// Current returns the current weather at lat, lon. A response without
// a numeric current_weather.temperature and weathercode is reported as
// a *remote.DataError naming the field.
func (c *WeatherClient) Current(ctx context.Context, lat, lon float64) (Weather, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("current_weather", "true")
	u := c.baseURL + "/v1/forecast?" + q.Encode()

	var w Weather
	err := c.caller.Fetch(ctx, u, func(body []byte) error {
		var payload struct {
			Current map[string]any `json:"current_weather"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return fmt.Errorf("decode forecast: %w", err)
		}
		if payload.Current == nil {
			return &remote.DataError{Field: "current_weather", Reason: "missing field"}
		}
		temp, err := numberField(payload.Current, "temperature")
		if err != nil {
			return err
		}
		code, err := numberField(payload.Current, "weathercode")
		if err != nil {
			return err
		}
		if code != math.Trunc(code) {
			return &remote.DataError{Field: "weathercode", Reason: "not an integer"}
		}
		w = Weather{
			TemperatureC: temp,
			Code:         int(code),
			Conditions:   Conditions(int(code)),
		}
		return nil
	})
	if err != nil {
		return Weather{}, err
	}
	return w, nil
}

// numberField reads a required numeric field.
func numberField(m map[string]any, key string) (float64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, &remote.DataError{Field: key, Reason: "missing field"}
	}
	f, ok := v.(float64)
	if !ok {
		return 0, &remote.DataError{Field: key, Reason: fmt.Sprintf("expected number, got %T", v)}
	}
	return f, nil
}
