package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nugget/tao-agent/internal/docsearch"
	"github.com/nugget/tao-agent/internal/offices"
	"github.com/nugget/tao-agent/internal/openmeteo"
	"github.com/nugget/tao-agent/internal/remote"
)

// Done is the stop sentinel. The agent treats it as "finish now" and
// never needs its result.
const Done = "done"

// DefaultTopK is the search_offices result count when top_k is omitted.
const DefaultTopK = 3

// Result is the normalized outcome of one dispatched action.
type Result struct {
	OK      bool      `json:"ok"`
	Value   any       `json:"value,omitempty"`
	Kind    ErrorKind `json:"error_kind,omitempty"`
	Message string    `json:"message,omitempty"`
}

// Success returns a successful result.
func Success(v any) Result {
	return Result{OK: true, Value: v}
}

// Failure returns a failed result of the given kind.
func Failure(kind ErrorKind, format string, a ...any) Result {
	return Result{Kind: kind, Message: fmt.Sprintf(format, a...)}
}

// Observation renders the result as the text fed back to the model.
func (r Result) Observation() string {
	if !r.OK {
		return fmt.Sprintf("Error (%s): %s", r.Kind, r.Message)
	}
	if s, ok := r.Value.(string); ok {
		return s
	}
	b, err := json.Marshal(r.Value)
	if err != nil {
		return fmt.Sprintf("%v", r.Value)
	}
	return string(b)
}

// Handler executes an action. A failed call the model can react to is
// reported in the Result; the error return is for faults that should
// end the episode.
type Handler func(ctx context.Context, args map[string]any) (Result, error)

// Tool is one registered action.
type Tool struct {
	Name        string
	Description string
	// Args is an example argument object shown to the model.
	Args    string
	Handler Handler
}

// Geocoder resolves place names.
type Geocoder interface {
	Search(ctx context.Context, name string) (openmeteo.Location, error)
}

// WeatherSource reports current conditions at a coordinate.
type WeatherSource interface {
	Current(ctx context.Context, lat, lon float64) (openmeteo.Weather, error)
}

// Backends are the services the built-in actions call. A nil backend
// leaves its action registered but reporting KindUnavailable.
type Backends struct {
	Geocoder Geocoder
	Weather  WeatherSource
	Search   docsearch.Searcher
	Offices  *offices.Dataset
	TopK     int
	Logger   *slog.Logger
}

// Registry holds available actions in registration order.
type Registry struct {
	tools  map[string]*Tool
	order  []string
	b      Backends
	logger *slog.Logger
}

// NewRegistry creates a registry with the built-in actions.
func NewRegistry(b Backends) *Registry {
	if b.TopK <= 0 {
		b.TopK = DefaultTopK
	}
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		tools:  make(map[string]*Tool),
		b:      b,
		logger: logger,
	}
	r.registerBuiltins()
	return r
}

func (r *Registry) registerBuiltins() {
	r.Register(&Tool{
		Name:        "search_offices",
		Description: "Semantic search over office documents. Returns the closest text snippets.",
		Args:        `{"query": "<text>", "top_k": 3}`,
		Handler:     r.handleSearchOffices,
	})
	r.Register(&Tool{
		Name:        "geocode_location",
		Description: "Look up latitude and longitude for a place name.",
		Args:        `{"name": "<place>"}`,
		Handler:     r.handleGeocode,
	})
	r.Register(&Tool{
		Name:        "get_weather",
		Description: "Current temperature (Celsius) and conditions at a coordinate.",
		Args:        `{"lat": <latitude>, "lon": <longitude>}`,
		Handler:     r.handleGetWeather,
	})
	r.Register(&Tool{
		Name:        "convert_c_to_f",
		Description: "Convert a Celsius temperature to Fahrenheit.",
		Args:        `{"c": <celsius>}`,
		Handler:     handleConvert,
	})
	r.Register(&Tool{
		Name:        "query_offices",
		Description: "Filter and project the office table. Filter columns with a value or {\"gt\"|\"lt\"|\"eq\": value}.",
		Args:        `{"filters": {"employees": {"gt": 100}}, "columns": ["city", "employees"]}`,
		Handler:     r.handleQueryOffices,
	})
	r.Register(&Tool{
		Name:        Done,
		Description: "Finish and give the final answer from what you have observed.",
		Args:        `{}`,
		Handler: func(context.Context, map[string]any) (Result, error) {
			return Success(Done), nil
		},
	})
}

// Register adds a tool to the registry, replacing any tool of the same
// name.
func (r *Registry) Register(t *Tool) {
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// Names returns the registered action names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Describe renders the action list for the system prompt.
func (r *Registry) Describe() string {
	var b strings.Builder
	for _, name := range r.order {
		t := r.tools[name]
		fmt.Fprintf(&b, "- %s: %s Args: %s\n", t.Name, t.Description, t.Args)
	}
	return b.String()
}

// Dispatch runs the named action. Unknown actions and tool-level
// failures come back as a failed Result; the error is non-nil only for
// an *ErrToolFault.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) (Result, error) {
	tool := r.Get(name)
	if tool == nil {
		r.logger.Warn("unknown action requested", "action", name)
		return Failure(KindUnknownAction, "unknown action %q; available: %s", name, strings.Join(r.Names(), ", ")), nil
	}
	if args == nil {
		args = map[string]any{}
	}

	r.logger.Debug("dispatching action", "action", name, "args", args)
	res, err := tool.Handler(ctx, args)
	if err != nil {
		return Result{}, &ErrToolFault{ToolName: name, Err: err}
	}
	if !res.OK {
		r.logger.Warn("action failed", "action", name, "error_kind", res.Kind, "message", res.Message)
	}
	return res, nil
}

// fromError maps a backend error onto a failed Result. Errors that say
// nothing about the call itself are returned for Dispatch to treat as
// faults.
func fromError(err error) (Result, error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Result{}, err
	}

	var (
		exhausted *remote.ExhaustedError
		data      *remote.DataError
		notFound  *remote.NotFoundError
		status    *remote.StatusError
		filter    *offices.FilterError
	)
	switch {
	case errors.As(err, &exhausted):
		return Failure(KindServiceUnavailable, "%s", exhausted.Error()), nil
	case errors.As(err, &data):
		return Failure(KindInvalidData, "%s", data.Error()), nil
	case errors.As(err, &notFound):
		return Failure(KindNotFound, "%s", notFound.Error()), nil
	case errors.As(err, &status):
		return Failure(KindServiceUnavailable, "upstream rejected the request: %s", status.Error()), nil
	case errors.As(err, &filter):
		return Failure(KindInvalidArgs, "%s", filter.Error()), nil
	case errors.Is(err, docsearch.ErrNoEmbedder):
		return Failure(KindUnavailable, "%s", err.Error()), nil
	}
	return Result{}, err
}
