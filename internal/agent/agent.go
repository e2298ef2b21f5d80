// Package agent runs Thought-Action-Observation episodes: the model
// picks one action per turn, the registry executes it, and the
// observation is fed back until the model stops, the reply cannot be
// parsed, or the step budget runs out.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/nugget/tao-agent/internal/docsearch"
	"github.com/nugget/tao-agent/internal/extract"
	"github.com/nugget/tao-agent/internal/llm"
	"github.com/nugget/tao-agent/internal/tools"
)

// DefaultMaxSteps bounds an episode when Config.MaxSteps is zero.
const DefaultMaxSteps = 6

// Dispatcher executes actions. *tools.Registry implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, args map[string]any) (tools.Result, error)
	Describe() string
}

// Config configures an Agent.
type Config struct {
	MaxSteps int
	Logger   *slog.Logger

	// Search, when set, is consulted for a location hint when the
	// question names no place ("our headquarters").
	Search docsearch.Searcher
}

// Agent runs episodes against a model and a dispatcher. It holds no
// per-episode state and is safe for concurrent use when its model and
// dispatcher are.
type Agent struct {
	model      llm.Completer
	dispatcher Dispatcher
	search     docsearch.Searcher
	maxSteps   int
	logger     *slog.Logger
}

// New creates an Agent.
func New(model llm.Completer, dispatcher Dispatcher, cfg Config) *Agent {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Agent{
		model:      model,
		dispatcher: dispatcher,
		search:     cfg.Search,
		maxSteps:   cfg.MaxSteps,
		logger:     cfg.Logger,
	}
}

// MaxSteps returns the step budget.
func (a *Agent) MaxSteps() int {
	return a.maxSteps
}

// Step records one model turn and what came of it.
type Step struct {
	N           int          `json:"n"`
	Reply       string       `json:"reply"`
	Turn        Turn         `json:"turn"`
	Result      tools.Result `json:"result"`
	Observation string       `json:"observation,omitempty"`
}

// Outcome is the result of an episode. Answer is always set and is
// safe to show to a user; Err holds the cause of a failed episode.
type Outcome struct {
	ID     string `json:"id"`
	State  State  `json:"state"`
	Answer string `json:"answer"`
	Steps  []Step `json:"steps"`
	Facts  Facts  `json:"facts"`
	Err    error  `json:"-"`
}

// Transcript is the conversation of one episode.
type Transcript struct {
	Messages []llm.Message
	Facts    Facts
	Steps    int
	MaxSteps int
}

// episode is the state machine for a single question.
type episode struct {
	id     string
	state  State
	tr     Transcript
	turn   Turn
	reply  string
	result tools.Result
	steps  []Step
	answer string
	err    error
	logger *slog.Logger
}

// Run answers question in a new episode.
func (a *Agent) Run(ctx context.Context, question string) Outcome {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	e := &episode{
		id:    id.String(),
		state: StatePlanning,
		tr: Transcript{
			Messages: []llm.Message{
				llm.System(SystemPrompt(a.dispatcher.Describe())),
				llm.User(userPrompt(question, a.locate(ctx, question))),
			},
			MaxSteps: a.maxSteps,
		},
		logger: a.logger.With("episode", id.String()),
	}

	e.logger.Info("episode started", "question", question, "max_steps", a.maxSteps)
	for !e.state.Terminal() {
		a.advance(ctx, e)
	}
	e.logger.Info("episode finished", "state", e.state, "steps", e.tr.Steps)

	return Outcome{
		ID:     e.id,
		State:  e.state,
		Answer: e.answer,
		Steps:  e.steps,
		Facts:  e.tr.Facts,
		Err:    e.err,
	}
}

// advance performs one state transition.
func (a *Agent) advance(ctx context.Context, e *episode) {
	switch e.state {
	case StatePlanning:
		a.plan(ctx, e)
	case StateActing:
		a.act(ctx, e)
	case StateObserving:
		a.observe(e)
	}
}

func (a *Agent) plan(ctx context.Context, e *episode) {
	if e.tr.Steps >= e.tr.MaxSteps {
		e.state = StateExhausted
		e.answer = fmt.Sprintf("Stopped after %d steps without finishing. Partial results:\n%s",
			e.tr.MaxSteps, e.tr.Facts.Summary())
		e.logger.Warn("step budget exhausted", "max_steps", e.tr.MaxSteps)
		return
	}
	if err := ctx.Err(); err != nil {
		e.fail(err)
		return
	}

	e.tr.Steps++
	reply, err := a.model.Complete(ctx, e.tr.Messages)
	if err != nil {
		e.fail(fmt.Errorf("model completion: %w", err))
		return
	}
	e.reply = reply
	e.tr.Messages = append(e.tr.Messages, llm.Assistant(reply))

	turn, err := ParseTurn(reply)
	if err != nil {
		e.steps = append(e.steps, Step{N: e.tr.Steps, Reply: reply})
		e.fail(err)
		return
	}
	e.turn = turn
	e.logger.Debug("model turn", "step", e.tr.Steps, "thought", turn.Thought, "action", turn.Action, "args", turn.Args)
	e.state = StateActing
}

func (a *Agent) act(ctx context.Context, e *episode) {
	if e.turn.Action == tools.Done {
		e.steps = append(e.steps, Step{N: e.tr.Steps, Reply: e.reply, Turn: e.turn, Result: tools.Success(tools.Done)})
		e.answer = finalAnswer(e.turn, e.tr.Facts)
		e.state = StateDone
		return
	}

	res, err := a.dispatcher.Dispatch(ctx, e.turn.Action, e.turn.Args)
	if err != nil {
		e.steps = append(e.steps, Step{N: e.tr.Steps, Reply: e.reply, Turn: e.turn})
		e.fail(err)
		return
	}
	e.result = res
	e.state = StateObserving
}

func (a *Agent) observe(e *episode) {
	if e.result.OK {
		e.tr.Facts.Merge(e.turn.Action, e.result.Value)
	}
	obs := e.result.Observation()
	e.tr.Messages = append(e.tr.Messages, llm.User("Observation: "+obs))
	e.steps = append(e.steps, Step{
		N:           e.tr.Steps,
		Reply:       e.reply,
		Turn:        e.turn,
		Result:      e.result,
		Observation: obs,
	})
	e.logger.Debug("observation", "step", e.tr.Steps, "action", e.turn.Action, "ok", e.result.OK)
	e.state = StatePlanning
}

// fail ends the episode with err.
func (e *episode) fail(err error) {
	e.state = StateFailed
	e.err = err

	var pe *ParseError
	switch {
	case errors.As(err, &pe):
		e.answer = "Sorry, I could not follow the model's reply (" + pe.Reason + ")."
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		e.answer = "The request was cancelled before an answer was found."
	default:
		e.answer = "Sorry, something went wrong: " + err.Error()
	}
	e.logger.Warn("episode failed", "step", e.tr.Steps, "error", err)
}

// finalAnswer combines the model's closing remark, if any, with the
// observed facts.
func finalAnswer(t Turn, f Facts) string {
	summary := f.Summary()
	if s, ok := t.Args["answer"].(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s) + "\n\n" + summary
	}
	return summary
}

// locate finds the place a question is about. A question that names
// none is matched against the office documents and the location cascade
// runs over the best hit and the question.
func (a *Agent) locate(ctx context.Context, question string) extract.Location {
	loc := extract.FindLocation(question)
	if loc.Found() || a.search == nil {
		return loc
	}
	hits, err := a.search.Search(ctx, question, 1)
	if err != nil {
		a.logger.Debug("document lookup for location failed", "error", err)
		return loc
	}
	if len(hits) == 0 {
		return loc
	}
	loc = extract.FindLocation(hits[0].Document, question)
	if loc.Found() {
		a.logger.Debug("location from documents", "location", loc.Name, "source", loc.Source.String())
	}
	return loc
}

// userPrompt adds the detected location, which saves the model a guess
// on short questions.
func userPrompt(question string, loc extract.Location) string {
	switch {
	case loc.HasCoordinates():
		return fmt.Sprintf("%s\n\n(Detected coordinates: %g, %g)", question, loc.Latitude, loc.Longitude)
	case loc.Found():
		return fmt.Sprintf("%s\n\n(Detected location: %s)", question, loc.Name)
	}
	return question
}
