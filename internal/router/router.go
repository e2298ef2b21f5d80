// Package router sends each question to the workflow that can answer
// it: weather questions to the tool-calling agent, everything else to
// the office analytics workflow.
package router

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/nugget/tao-agent/internal/extract"
)

// Route names a workflow.
type Route string

const (
	RouteWeather   Route = "weather"
	RouteAnalytics Route = "analytics"
)

// weatherKeywords send a question to the agent.
var weatherKeywords = []string{"weather", "temperature", "forecast", "conditions", "climate"}

// weatherWords also send a question to the agent but must match a whole
// word: "rain" is weather, "training" is not.
var weatherWords = map[string]bool{
	"rain": true, "raining": true, "rainy": true,
	"snow": true, "snowing": true, "snowy": true,
	"sunny": true, "cloudy": true, "storm": true, "stormy": true,
	"wind": true, "windy": true, "humid": true, "humidity": true,
}

// dataKeywords mark a question as analytics. They only change the
// recorded reasoning: ambiguous questions go to analytics too.
var dataKeywords = []string{
	"revenue", "employee", "headcount", "staff", "office", "growth", "opened",
	"efficien", "profile", "average", "total", "highest", "most",
}

// Decision records why a question was routed where it was.
type Decision struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Query     string    `json:"query"`

	RulesMatched []string `json:"rules_matched"`
	Route        Route    `json:"route"`
	Reasoning    string   `json:"reasoning"`

	// Location is the place the extractor found, for weather routes.
	Location string `json:"location,omitempty"`

	// Post-execution (filled in later)
	LatencyMs int64 `json:"latency_ms,omitempty"`
	Success   *bool `json:"success,omitempty"`
}

// Handler answers a routed question with user-facing text.
type Handler func(ctx context.Context, query string) (string, error)

// Config holds router configuration.
type Config struct {
	Weather     Handler
	Analytics   Handler
	MaxAuditLog int // How many decisions to keep in memory
}

// Router classifies questions and runs the matching handler.
type Router struct {
	logger *slog.Logger
	config Config

	mu       sync.RWMutex
	auditLog []Decision
	stats    Stats
}

// Stats tracks routing statistics.
type Stats struct {
	TotalRequests int64           `json:"total_requests"`
	RouteCounts   map[Route]int64 `json:"route_counts"`
	Failures      map[Route]int64 `json:"failures"`
}

// NewRouter creates a router with the given configuration.
func NewRouter(logger *slog.Logger, config Config) *Router {
	if config.MaxAuditLog <= 0 {
		config.MaxAuditLog = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		logger:   logger,
		config:   config,
		auditLog: make([]Decision, 0, config.MaxAuditLog),
		stats: Stats{
			RouteCounts: make(map[Route]int64),
			Failures:    make(map[Route]int64),
		},
	}
}

// Decide picks a route for query without running anything.
func (r *Router) Decide(query string) Decision {
	d := Decision{
		RequestID: uuid.NewString(),
		Timestamp: time.Now(),
		Query:     query,
	}
	q := strings.ToLower(query)

	for _, kw := range weatherKeywords {
		if strings.Contains(q, kw) {
			d.RulesMatched = append(d.RulesMatched, "weather_keyword:"+kw)
		}
	}
	for _, w := range words(q) {
		if weatherWords[w] {
			d.RulesMatched = append(d.RulesMatched, "weather_word:"+w)
		}
	}
	if len(d.RulesMatched) > 0 {
		d.Route = RouteWeather
		if loc := extract.FindLocation(query); loc.Found() {
			d.Location = loc.Name
			if loc.HasCoordinates() {
				d.Location = "coordinates"
			}
			d.RulesMatched = append(d.RulesMatched, "location:"+loc.Source.String())
		}
		d.Reasoning = "Weather keywords present; using the tool-calling agent."
		return d
	}

	d.Route = RouteAnalytics
	for _, kw := range dataKeywords {
		if strings.Contains(q, kw) {
			d.RulesMatched = append(d.RulesMatched, "data_keyword:"+kw)
		}
	}
	if len(d.RulesMatched) > 0 {
		d.Reasoning = "Data keywords present; using the analytics workflow."
	} else {
		d.Reasoning = "Ambiguous query; trying the analytics workflow."
	}
	return d
}

// words splits s into runs of letters.
func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
}

// Handle routes query, runs the handler and records the outcome. The
// returned text is always suitable for the user, even on error.
func (r *Router) Handle(ctx context.Context, query string) (string, Decision, error) {
	d := r.Decide(query)
	r.recordDecision(d)
	r.logger.Info("query routed",
		"request_id", d.RequestID,
		"route", d.Route,
		"reasoning", d.Reasoning,
	)

	h := r.config.Analytics
	if d.Route == RouteWeather {
		h = r.config.Weather
	}
	if h == nil {
		text := "No handler is configured for " + string(d.Route) + " questions."
		r.RecordOutcome(d.RequestID, 0, false)
		return text, d, nil
	}

	start := time.Now()
	text, err := h(ctx, query)
	latency := time.Since(start).Milliseconds()
	r.RecordOutcome(d.RequestID, latency, err == nil)
	if err != nil {
		r.logger.Warn("handler failed", "request_id", d.RequestID, "route", d.Route, "error", err)
		if text == "" {
			text = "Sorry, something went wrong: " + err.Error()
		}
	}

	if e := r.Explain(d.RequestID); e != nil {
		d = *e
	}
	return text, d, err
}

// RecordOutcome updates a decision with execution results.
func (r *Router) RecordOutcome(requestID string, latencyMs int64, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.auditLog) - 1; i >= 0; i-- {
		if r.auditLog[i].RequestID == requestID {
			r.auditLog[i].LatencyMs = latencyMs
			r.auditLog[i].Success = &success
			if !success {
				r.stats.Failures[r.auditLog[i].Route]++
			}
			break
		}
	}
}

// recordDecision adds a decision to the audit log.
func (r *Router) recordDecision(d Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Trim if over capacity
	if len(r.auditLog) >= r.config.MaxAuditLog {
		r.auditLog = r.auditLog[1:]
	}

	r.auditLog = append(r.auditLog, d)

	r.stats.TotalRequests++
	r.stats.RouteCounts[d.Route]++
}

// GetAuditLog returns recent routing decisions.
func (r *Router) GetAuditLog(limit int) []Decision {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 || limit > len(r.auditLog) {
		limit = len(r.auditLog)
	}

	// Return most recent
	start := len(r.auditLog) - limit
	result := make([]Decision, limit)
	copy(result, r.auditLog[start:])
	return result
}

// GetStats returns a copy of the routing statistics.
func (r *Router) GetStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{
		TotalRequests: r.stats.TotalRequests,
		RouteCounts:   make(map[Route]int64, len(r.stats.RouteCounts)),
		Failures:      make(map[Route]int64, len(r.stats.Failures)),
	}
	for k, v := range r.stats.RouteCounts {
		s.RouteCounts[k] = v
	}
	for k, v := range r.stats.Failures {
		s.Failures[k] = v
	}
	return s
}

// Explain returns details about why a specific decision was made.
func (r *Router) Explain(requestID string) *Decision {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.auditLog) - 1; i >= 0; i-- {
		if r.auditLog[i].RequestID == requestID {
			d := r.auditLog[i]
			return &d
		}
	}
	return nil
}
