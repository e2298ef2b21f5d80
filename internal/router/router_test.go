package router

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newTestRouter(weather, analytics Handler) *Router {
	return NewRouter(slog.Default(), Config{
		Weather:     weather,
		Analytics:   analytics,
		MaxAuditLog: 3,
	})
}

func TestDecide(t *testing.T) {
	r := newTestRouter(nil, nil)

	tests := []struct {
		name      string
		query     string
		route     Route
		location  string
		reasoning string
	}{
		{name: "weather city", query: "What is the weather in Paris?", route: RouteWeather, location: "Paris"},
		{name: "temperature city state", query: "Current temperature in Austin, TX", route: RouteWeather, location: "Austin, TX"},
		{name: "forecast coords", query: "forecast for 48.85, 2.35", route: RouteWeather, location: "coordinates"},
		{name: "conditions no place", query: "what are the conditions today", route: RouteWeather},
		{name: "climate known city", query: "how is the climate for chicago", route: RouteWeather, location: "Chicago"},
		{name: "rain city", query: "Is it raining in Paris?", route: RouteWeather, location: "Paris"},
		{name: "windy known city", query: "Is it windy in Chicago today?", route: RouteWeather, location: "Chicago"},
		{name: "weather word inside another word", query: "What is the training budget for the Boston office?", route: RouteAnalytics, reasoning: "Data keywords"},
		{name: "revenue", query: "Which office has the highest revenue?", route: RouteAnalytics, reasoning: "Data keywords"},
		{name: "profile", query: "Tell me about the Chicago office", route: RouteAnalytics, reasoning: "Data keywords"},
		{name: "ambiguous", query: "Purple elephants dance quietly", route: RouteAnalytics, reasoning: "Ambiguous"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := r.Decide(tt.query)
			if d.Route != tt.route {
				t.Errorf("Route = %q, want %q (rules %v)", d.Route, tt.route, d.RulesMatched)
			}
			if d.Location != tt.location {
				t.Errorf("Location = %q, want %q", d.Location, tt.location)
			}
			if tt.reasoning != "" && !strings.HasPrefix(d.Reasoning, tt.reasoning) {
				t.Errorf("Reasoning = %q", d.Reasoning)
			}
			if d.RequestID == "" {
				t.Error("missing request id")
			}
		})
	}
}

func TestHandle_RunsMatchingHandler(t *testing.T) {
	var got []string
	weather := func(_ context.Context, q string) (string, error) {
		got = append(got, "weather:"+q)
		return "sunny", nil
	}
	analytics := func(_ context.Context, q string) (string, error) {
		got = append(got, "analytics:"+q)
		return "lots of revenue", nil
	}
	r := newTestRouter(weather, analytics)

	text, d, err := r.Handle(context.Background(), "weather in Boston?")
	if err != nil || text != "sunny" || d.Route != RouteWeather {
		t.Errorf("Handle = %q, %+v, %v", text, d, err)
	}
	if d.Success == nil || !*d.Success {
		t.Errorf("Success = %v, want recorded true", d.Success)
	}

	text, _, _ = r.Handle(context.Background(), "total revenue")
	if text != "lots of revenue" {
		t.Errorf("text = %q", text)
	}
	if len(got) != 2 || got[0] != "weather:weather in Boston?" || got[1] != "analytics:total revenue" {
		t.Errorf("calls = %v", got)
	}

	stats := r.GetStats()
	if stats.TotalRequests != 2 || stats.RouteCounts[RouteWeather] != 1 || stats.RouteCounts[RouteAnalytics] != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestHandle_Error(t *testing.T) {
	boom := errors.New("boom")
	r := newTestRouter(nil, func(context.Context, string) (string, error) { return "", boom })

	text, d, err := r.Handle(context.Background(), "revenue")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if text != "Sorry, something went wrong: boom" {
		t.Errorf("text = %q", text)
	}
	if d.Success == nil || *d.Success {
		t.Errorf("Success = %v, want false", d.Success)
	}
	if r.GetStats().Failures[RouteAnalytics] != 1 {
		t.Errorf("failures = %v", r.GetStats().Failures)
	}
}

func TestHandle_NoHandler(t *testing.T) {
	r := newTestRouter(nil, nil)
	text, _, err := r.Handle(context.Background(), "weather in Miami")
	if err != nil || !strings.Contains(text, "No handler") {
		t.Errorf("Handle = %q, %v", text, err)
	}
}

func TestAuditLog_Trims(t *testing.T) {
	ok := func(context.Context, string) (string, error) { return "ok", nil }
	r := newTestRouter(ok, ok)
	for _, q := range []string{"a", "b", "c", "d"} {
		r.Handle(context.Background(), q)
	}
	log := r.GetAuditLog(0)
	if len(log) != 3 || log[0].Query != "b" || log[2].Query != "d" {
		t.Errorf("audit log = %+v", log)
	}
	if recent := r.GetAuditLog(1); len(recent) != 1 || recent[0].Query != "d" {
		t.Errorf("GetAuditLog(1) = %+v", recent)
	}
	if r.Explain("nope") != nil {
		t.Error("Explain of unknown id should be nil")
	}
}
