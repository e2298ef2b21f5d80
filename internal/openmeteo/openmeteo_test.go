package openmeteo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nugget/tao-agent/internal/remote"
)

func testCaller(service string) *remote.Caller {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return remote.New(service, remote.DefaultConfig(), logger,
		remote.WithSleep(func(ctx context.Context, d time.Duration) error { return nil }))
}

func TestConditions(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{0, "Clear sky"},
		{1, "Mainly clear"},
		{48, "Depositing rime fog"},
		{57, "Dense freezing drizzle"},
		{82, "Violent rain showers"},
		{99, "Thunderstorm with heavy hail"},
		{4, "Unknown"},
		{100, "Unknown"},
		{-1, "Unknown"},
	}
	for _, tc := range tests {
		if got := Conditions(tc.code); got != tc.want {
			t.Errorf("Conditions(%d) = %q, want %q", tc.code, got, tc.want)
		}
	}
}

func TestCelsiusToFahrenheit(t *testing.T) {
	tests := map[float64]float64{0: 32, 100: 212, 20: 68, -40: -40}
	for c, want := range tests {
		if got := CelsiusToFahrenheit(c); got != want {
			t.Errorf("CelsiusToFahrenheit(%v) = %v, want %v", c, got, want)
		}
	}
}

func TestWeatherCurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/forecast" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("latitude") != "48.85" || q.Get("longitude") != "2.35" || q.Get("current_weather") != "true" {
			t.Errorf("query = %v", q)
		}
		w.Write([]byte(`{"current_weather": {"temperature": 20, "weathercode": 1, "windspeed": 7.2}}`))
	}))
	defer srv.Close()

	c := NewWeatherClient(srv.URL+"/", testCaller("weather"))
	got, err := c.Current(context.Background(), 48.85, 2.35)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	want := Weather{TemperatureC: 20, Code: 1, Conditions: "Mainly clear"}
	if got != want {
		t.Errorf("Current = %+v, want %+v", got, want)
	}
	if m := got.Map(); m["conditions"] != "Mainly clear" || m["temperature"] != 20.0 {
		t.Errorf("Map = %v", m)
	}
}

func TestWeatherCurrent_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"no current_weather", `{"hourly": {}}`, "current_weather"},
		{"no temperature", `{"current_weather": {"weathercode": 3}}`, "temperature"},
		{"string temperature", `{"current_weather": {"temperature": "hot", "weathercode": 3}}`, "temperature"},
		{"no code", `{"current_weather": {"temperature": 5}}`, "weathercode"},
		{"fractional code", `{"current_weather": {"temperature": 5, "weathercode": 1.5}}`, "weathercode"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := NewWeatherClient(srv.URL, testCaller("weather"))
			_, err := c.Current(context.Background(), 1, 2)
			var de *remote.DataError
			if !errors.As(err, &de) {
				t.Fatalf("err = %v, want *remote.DataError", err)
			}
			if de.Field != tc.field {
				t.Errorf("Field = %q, want %q", de.Field, tc.field)
			}
		})
	}
}

func TestWeatherCurrent_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewWeatherClient(srv.URL, testCaller("weather"))
	_, err := c.Current(context.Background(), 1, 2)
	var ex *remote.ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("err = %v, want *remote.ExhaustedError", err)
	}
	if !strings.HasPrefix(err.Error(), "Weather service failed after 3 attempts") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestGeocoderSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("count") != "1" {
			t.Errorf("count = %q", r.URL.Query().Get("count"))
		}
		w.Write([]byte(`{"results": [{"name": "Paris", "latitude": 48.85, "longitude": 2.35, "country": "France"}]}`))
	}))
	defer srv.Close()

	g := NewGeocoder(srv.URL, testCaller("geocoding"))
	got, err := g.Search(context.Background(), "Paris")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := Location{Latitude: 48.85, Longitude: 2.35, Name: "Paris"}
	if got != want {
		t.Errorf("Search = %+v, want %+v", got, want)
	}
}

func TestGeocoderSearch_CommaFallback(t *testing.T) {
	var names []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		names = append(names, name)
		if name == "Austin" {
			w.Write([]byte(`{"results": [{"name": "Austin", "latitude": 30.27, "longitude": -97.74}]}`))
			return
		}
		w.Write([]byte(`{"generationtime_ms": 0.5}`))
	}))
	defer srv.Close()

	g := NewGeocoder(srv.URL, testCaller("geocoding"))
	got, err := g.Search(context.Background(), "Austin, TX")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got.Name != "Austin" || got.Latitude != 30.27 {
		t.Errorf("Search = %+v", got)
	}
	if len(names) != 2 || names[0] != "Austin, TX" || names[1] != "Austin" {
		t.Errorf("lookups = %q", names)
	}
}

func TestGeocoderSearch_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": []}`))
	}))
	defer srv.Close()

	g := NewGeocoder(srv.URL, testCaller("geocoding"))
	for _, name := range []string{"Atlantis", "Atlantis, Ocean"} {
		_, err := g.Search(context.Background(), name)
		var nf *remote.NotFoundError
		if !errors.As(err, &nf) {
			t.Fatalf("Search(%q) err = %v, want *remote.NotFoundError", name, err)
		}
		want := "No location found for '" + name + "'. Try a different search term."
		if err.Error() != want {
			t.Errorf("message = %q, want %q", err.Error(), want)
		}
	}
}

func TestGeocoderSearch_MissingCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": [{"name": "Nowhere", "latitude": 1}]}`))
	}))
	defer srv.Close()

	g := NewGeocoder(srv.URL, testCaller("geocoding"))
	_, err := g.Search(context.Background(), "Nowhere")
	var de *remote.DataError
	if !errors.As(err, &de) || de.Field != "longitude" {
		t.Fatalf("err = %v, want DataError on longitude", err)
	}
	if de.Service != "geocoding" {
		t.Errorf("Service = %q", de.Service)
	}
}
