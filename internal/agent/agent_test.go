package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nugget/tao-agent/internal/docsearch"
	"github.com/nugget/tao-agent/internal/llm"
	"github.com/nugget/tao-agent/internal/offices"
	"github.com/nugget/tao-agent/internal/openmeteo"
	"github.com/nugget/tao-agent/internal/remote"
	"github.com/nugget/tao-agent/internal/tools"
)

// scriptedModel replays fixed replies, repeating the last one once the
// script runs out.
type scriptedModel struct {
	mu      sync.Mutex
	replies []string
	calls   int
	seen    [][]llm.Message
	err     error
}

func (m *scriptedModel) Complete(_ context.Context, msgs []llm.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen = append(m.seen, append([]llm.Message(nil), msgs...))
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	i := m.calls - 1
	if i >= len(m.replies) {
		i = len(m.replies) - 1
	}
	return m.replies[i], nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAgent(model llm.Completer, d Dispatcher, maxSteps int) *Agent {
	return New(model, d, Config{MaxSteps: maxSteps, Logger: quietLogger()})
}

func localRegistry() *tools.Registry {
	return tools.NewRegistry(tools.Backends{Offices: offices.Sample(), Logger: quietLogger()})
}

func TestRun_StopsOnDone(t *testing.T) {
	model := &scriptedModel{replies: []string{"Thought: nothing to do\nAction: done\nArgs: {}"}}
	out := newTestAgent(model, localRegistry(), 6).Run(context.Background(), "hello")

	if out.State != StateDone {
		t.Fatalf("State = %v, want done (err %v)", out.State, out.Err)
	}
	if model.calls != 1 || len(out.Steps) != 1 {
		t.Errorf("calls = %d, steps = %d, want 1", model.calls, len(out.Steps))
	}
	if !strings.Contains(out.Answer, "Location: Unknown") || !strings.Contains(out.Answer, "Temperature: Unknown") {
		t.Errorf("Answer = %q", out.Answer)
	}
	if out.ID == "" {
		t.Error("episode has no id")
	}
}

func TestRun_StepBudget(t *testing.T) {
	for _, maxSteps := range []int{1, 3, 6} {
		t.Run(fmt.Sprint(maxSteps), func(t *testing.T) {
			model := &scriptedModel{replies: []string{"Thought: again\nAction: convert_c_to_f\nArgs: {\"c\": 20}"}}
			out := newTestAgent(model, localRegistry(), maxSteps).Run(context.Background(), "loop forever")

			if out.State != StateExhausted {
				t.Fatalf("State = %v, want exhausted", out.State)
			}
			if model.calls != maxSteps || len(out.Steps) != maxSteps {
				t.Errorf("calls = %d, steps = %d, want %d", model.calls, len(out.Steps), maxSteps)
			}
			if out.Err != nil {
				t.Errorf("Err = %v, exhaustion is not an error", out.Err)
			}
			if !strings.Contains(out.Answer, "Partial results") || !strings.Contains(out.Answer, "68.0°F") {
				t.Errorf("Answer = %q", out.Answer)
			}
		})
	}
}

func TestRun_DefaultBudget(t *testing.T) {
	a := New(&scriptedModel{}, localRegistry(), Config{Logger: quietLogger()})
	if a.MaxSteps() != DefaultMaxSteps {
		t.Errorf("MaxSteps() = %d", a.MaxSteps())
	}
}

func TestRun_ParseFailureIsFatal(t *testing.T) {
	model := &scriptedModel{replies: []string{
		"Thought: ok\nAction: convert_c_to_f\nArgs: {\"c\": 1}",
		"I think the answer is sunny.",
		"Action: done",
	}}
	out := newTestAgent(model, localRegistry(), 6).Run(context.Background(), "q")

	if out.State != StateFailed {
		t.Fatalf("State = %v, want failed", out.State)
	}
	var pe *ParseError
	if !errors.As(out.Err, &pe) {
		t.Fatalf("Err = %v, want *ParseError", out.Err)
	}
	if model.calls != 2 {
		t.Errorf("calls = %d, loop should stop at the bad reply", model.calls)
	}
	if !strings.Contains(out.Answer, "missing Action line") {
		t.Errorf("Answer = %q", out.Answer)
	}
}

func TestRun_ToolFailureIsRecoverable(t *testing.T) {
	model := &scriptedModel{replies: []string{
		"Thought: try\nAction: teleport\nArgs: {}",
		"Thought: fix\nAction: convert_c_to_f\nArgs: {\"c\": \"warm\"}",
		"Thought: fix again\nAction: convert_c_to_f\nArgs: {\"c\": 25}",
		"Thought: finished\nAction: done\nArgs: {}",
	}}
	out := newTestAgent(model, localRegistry(), 6).Run(context.Background(), "q")

	if out.State != StateDone {
		t.Fatalf("State = %v (err %v), want done", out.State, out.Err)
	}
	if out.Steps[0].Result.Kind != tools.KindUnknownAction || out.Steps[1].Result.Kind != tools.KindInvalidArgs {
		t.Errorf("step kinds = %v, %v", out.Steps[0].Result.Kind, out.Steps[1].Result.Kind)
	}
	// The model saw the error as an observation.
	second := model.seen[1]
	last := second[len(second)-1]
	if last.Role != llm.RoleUser || !strings.HasPrefix(last.Content, "Observation: Error (unknown_action)") {
		t.Errorf("observation message = %+v", last)
	}
	if !strings.Contains(out.Answer, "77.0°F") {
		t.Errorf("Answer = %q", out.Answer)
	}
}

type faultyDispatcher struct{}

func (faultyDispatcher) Dispatch(context.Context, string, map[string]any) (tools.Result, error) {
	return tools.Result{}, &tools.ErrToolFault{ToolName: "get_weather", Err: errors.New("misconfigured")}
}

func (faultyDispatcher) Describe() string { return "- get_weather" }

func TestRun_InternalFaultIsFatal(t *testing.T) {
	model := &scriptedModel{replies: []string{
		"Action: get_weather\nArgs: {\"lat\": 1, \"lon\": 2}",
		"Action: done",
	}}
	out := newTestAgent(model, faultyDispatcher{}, 6).Run(context.Background(), "q")

	if out.State != StateFailed {
		t.Fatalf("State = %v, want failed", out.State)
	}
	var fault *tools.ErrToolFault
	if !errors.As(out.Err, &fault) {
		t.Errorf("Err = %v, want *tools.ErrToolFault", out.Err)
	}
	if model.calls != 1 {
		t.Errorf("calls = %d, want 1", model.calls)
	}
}

func TestRun_ModelErrorIsFatal(t *testing.T) {
	model := &scriptedModel{err: &llm.APIError{StatusCode: 500, Body: "oom"}}
	out := newTestAgent(model, localRegistry(), 6).Run(context.Background(), "q")
	if out.State != StateFailed {
		t.Fatalf("State = %v", out.State)
	}
	var apiErr *llm.APIError
	if !errors.As(out.Err, &apiErr) {
		t.Errorf("Err = %v", out.Err)
	}
	if out.Answer == "" {
		t.Error("failed episode should still carry a message")
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	model := &scriptedModel{replies: []string{"Action: done"}}
	out := newTestAgent(model, localRegistry(), 6).Run(ctx, "q")
	if out.State != StateFailed || !errors.Is(out.Err, context.Canceled) {
		t.Errorf("State = %v, Err = %v", out.State, out.Err)
	}
	if model.calls != 0 {
		t.Errorf("calls = %d, want 0", model.calls)
	}
}

func TestRun_SeedsTranscript(t *testing.T) {
	model := &scriptedModel{replies: []string{"Action: done"}}
	newTestAgent(model, localRegistry(), 6).Run(context.Background(), "What is the weather in Paris?")

	first := model.seen[0]
	if len(first) != 2 || first[0].Role != llm.RoleSystem || first[1].Role != llm.RoleUser {
		t.Fatalf("seed messages = %+v", first)
	}
	for _, want := range []string{"Thought:", "Action:", "Args:", "- geocode_location:", "- done:"} {
		if !strings.Contains(first[0].Content, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
	if !strings.Contains(first[1].Content, "(Detected location: Paris)") {
		t.Errorf("user message = %q", first[1].Content)
	}
}

// stubSearcher returns fixed hits and records the queries it saw.
type stubSearcher struct {
	hits    []docsearch.Hit
	err     error
	queries []string
}

func (s *stubSearcher) Search(_ context.Context, query string, topK int) ([]docsearch.Hit, error) {
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	if topK < len(s.hits) {
		return s.hits[:topK], nil
	}
	return s.hits, nil
}

func TestRun_LocationFromDocuments(t *testing.T) {
	search := &stubSearcher{hits: []docsearch.Hit{
		{Document: "Headquarters: New York, NY. The executive team works here."},
		{Document: "Miami, FL is the newest office."},
	}}
	model := &scriptedModel{replies: []string{"Action: done"}}
	a := New(model, localRegistry(), Config{Logger: quietLogger(), Search: search})

	a.Run(context.Background(), "What's the weather at our headquarters?")

	if len(search.queries) != 1 {
		t.Fatalf("search calls = %d, want 1", len(search.queries))
	}
	if got := model.seen[0][1].Content; !strings.Contains(got, "(Detected location: New York, NY)") {
		t.Errorf("user message = %q", got)
	}
}

func TestRun_LocationInQuestionSkipsSearch(t *testing.T) {
	search := &stubSearcher{hits: []docsearch.Hit{{Document: "Miami, FL"}}}
	model := &scriptedModel{replies: []string{"Action: done"}}
	a := New(model, localRegistry(), Config{Logger: quietLogger(), Search: search})

	a.Run(context.Background(), "What is the weather in Paris?")

	if len(search.queries) != 0 {
		t.Errorf("search called for a question that names a place: %v", search.queries)
	}
	if got := model.seen[0][1].Content; !strings.Contains(got, "(Detected location: Paris)") {
		t.Errorf("user message = %q", got)
	}
}

func TestRun_LocationSearchFailure(t *testing.T) {
	search := &stubSearcher{err: errors.New("index offline")}
	model := &scriptedModel{replies: []string{"Action: done"}}
	a := New(model, localRegistry(), Config{Logger: quietLogger(), Search: search})

	out := a.Run(context.Background(), "What's the weather at our headquarters?")

	if out.State != StateDone {
		t.Fatalf("State = %v, want done", out.State)
	}
	if got := model.seen[0][1].Content; got != "What's the weather at our headquarters?" {
		t.Errorf("user message = %q, want the bare question", got)
	}
}

func TestRun_DoneAnswerArg(t *testing.T) {
	model := &scriptedModel{replies: []string{"Action: done\nArgs: {\"answer\": \"Nothing observed yet.\"}"}}
	out := newTestAgent(model, localRegistry(), 6).Run(context.Background(), "q")
	if !strings.HasPrefix(out.Answer, "Nothing observed yet.\n\nLocation: Unknown") {
		t.Errorf("Answer = %q", out.Answer)
	}
}

// TestRun_ParisEndToEnd drives the full pipeline: extractor, real
// Open-Meteo clients against stub servers, the remote caller, the
// normalizer and the conversion action.
func TestRun_ParisEndToEnd(t *testing.T) {
	geoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("name") != "Paris" {
			t.Errorf("geocode name = %q", r.URL.Query().Get("name"))
		}
		fmt.Fprint(w, `{"results": [{"latitude": 48.85, "longitude": 2.35, "name": "Paris"}]}`)
	}))
	defer geoSrv.Close()
	weatherSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"current_weather": {"temperature": 20, "weathercode": 1}}`)
	}))
	defer weatherSrv.Close()

	noSleep := remote.WithSleep(func(context.Context, time.Duration) error { return nil })
	reg := tools.NewRegistry(tools.Backends{
		Geocoder: openmeteo.NewGeocoder(geoSrv.URL, remote.New("geocoding", remote.DefaultConfig(), quietLogger(), noSleep)),
		Weather:  openmeteo.NewWeatherClient(weatherSrv.URL, remote.New("weather", remote.DefaultConfig(), quietLogger(), noSleep)),
		Offices:  offices.Sample(),
		Logger:   quietLogger(),
	})

	model := &scriptedModel{replies: []string{
		"Thought: I need coordinates for Paris.\nAction: geocode_location\nArgs: {\"name\": \"Paris\"}",
		"Thought: Now the weather.\nAction: get_weather\nArgs: {\"lat\": 48.85, \"lon\": 2.35}",
		"Thought: Convert to Fahrenheit.\nAction: convert_c_to_f\nArgs: {\"c\": 20}",
		"Thought: Done.\nAction: done\nArgs: {}",
	}}
	out := newTestAgent(model, reg, 6).Run(context.Background(), "What is the weather in Paris?")

	if out.State != StateDone {
		t.Fatalf("State = %v (err %v)", out.State, out.Err)
	}
	for _, want := range []string{"Paris", "Mainly clear", "68.0"} {
		if !strings.Contains(out.Answer, want) {
			t.Errorf("Answer %q missing %q", out.Answer, want)
		}
	}
	if len(out.Steps) != 4 {
		t.Errorf("steps = %d, want 4", len(out.Steps))
	}
	if out.Facts.TemperatureC == nil || *out.Facts.TemperatureC != 20 {
		t.Errorf("TemperatureC = %v", out.Facts.TemperatureC)
	}
}
