// Package analyst answers office-analytics questions through the
// canonical operations: classify the question, extract and validate the
// operation's parameters, render its prompt over the office data and
// ask the model. When the model is unreachable the answer is computed
// directly from the data instead.
package analyst

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nugget/tao-agent/internal/canonical"
	"github.com/nugget/tao-agent/internal/classify"
	"github.com/nugget/tao-agent/internal/extract"
	"github.com/nugget/tao-agent/internal/llm"
	"github.com/nugget/tao-agent/internal/offices"
)

const systemPrompt = "You are a concise business analyst. Answer only from the office data you are given."

// Answer is the outcome of one analytics question.
type Answer struct {
	Operation  string         `json:"operation,omitempty"`
	Confidence float64        `json:"confidence"`
	Params     map[string]any `json:"params,omitempty"`
	Rows       int            `json:"rows"`
	Prompt     string         `json:"-"`
	Text       string         `json:"text"`
	// Calculated is set when Text was computed locally because the
	// model failed.
	Calculated bool `json:"calculated"`
}

// Analyst runs the canonical-operation workflow.
type Analyst struct {
	classifier *classify.Classifier
	data       *offices.Dataset
	model      llm.Completer
	logger     *slog.Logger
}

// New creates an Analyst. model may be nil, in which case every answer
// is calculated.
func New(classifier *classify.Classifier, data *offices.Dataset, model llm.Completer, logger *slog.Logger) *Analyst {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyst{
		classifier: classifier,
		data:       data,
		model:      model,
		logger:     logger,
	}
}

// Answer responds to query. Failures the user can act on (no matching
// operation, a missing office name) come back as an Answer whose Text
// says so; the error is reserved for faults such as a broken template.
func (a *Analyst) Answer(ctx context.Context, query string) (Answer, error) {
	cls := a.classifier.Classify(query)
	if !cls.Matched() {
		a.logger.Debug("no canonical operation matched", "query", query)
		return Answer{Text: fmt.Sprintf("Sorry, I couldn't determine how to analyze: '%s'", query)}, nil
	}
	op, ok := a.classifier.Catalog().Lookup(cls.Suggested)
	if !ok {
		return Answer{}, fmt.Errorf("classifier suggested unknown operation %q", cls.Suggested)
	}
	a.logger.Info("classified query", "operation", op.Name, "confidence", cls.Confidence)

	ans := Answer{Operation: op.Name, Confidence: cls.Confidence}

	params, err := op.Validate(extract.Params(op.Name, query))
	if err != nil {
		var verr *canonical.ValidationError
		if !errors.As(err, &verr) {
			return Answer{}, err
		}
		ans.Text = validationMessage(op, verr)
		return ans, nil
	}
	ans.Params = params

	rows, err := a.selectRows(op, params)
	if err != nil {
		return Answer{}, err
	}
	ans.Rows = len(rows)
	if op.Name == canonical.OfficeProfile && len(rows) == 0 {
		ans.Text = fmt.Sprintf("I couldn't find an office in %s. Known offices: %s.", params["city"], strings.Join(a.cities(), ", "))
		return ans, nil
	}

	data, err := serialize(rows, op.DataRequirements)
	if err != nil {
		return Answer{}, err
	}
	prompt, err := op.Render(params, data)
	if err != nil {
		return Answer{}, err
	}
	ans.Prompt = prompt

	if a.model != nil {
		a.logger.Debug("rendered prompt", "operation", op.Name, "rows", len(rows), "prompt_chars", len(prompt))
		text, err := a.model.Complete(ctx, []llm.Message{llm.System(systemPrompt), llm.User(prompt)})
		if err == nil && strings.TrimSpace(text) != "" {
			ans.Text = strings.TrimSpace(text)
			return ans, nil
		}
		if ctx.Err() != nil {
			return Answer{}, ctx.Err()
		}
		a.logger.Warn("model failed, using calculated answer", "operation", op.Name, "error", err)
	}

	ans.Text = Calculate(op.Name, params, rows)
	ans.Calculated = true
	return ans, nil
}

// selectRows narrows the dataset to the rows an operation looks at.
func (a *Analyst) selectRows(op canonical.Operation, params map[string]any) ([]offices.Office, error) {
	all := a.data.Offices()
	switch op.Name {
	case canonical.GrowthAnalysis:
		year, _ := params["year_threshold"].(int)
		var out []offices.Office
		for _, o := range all {
			if o.OpenedYear > year {
				out = append(out, o)
			}
		}
		return out, nil
	case canonical.OfficeProfile:
		city, _ := params["city"].(string)
		if o, ok := a.data.Find(city); ok {
			return []offices.Office{o}, nil
		}
		return nil, nil
	}
	return all, nil
}

func (a *Analyst) cities() []string {
	var out []string
	for _, o := range a.data.Offices() {
		out = append(out, o.City)
	}
	return out
}

// serialize renders rows as one JSON object per line, keeping only the
// columns the operation needs.
func serialize(rows []offices.Office, columns []string) (string, error) {
	var b strings.Builder
	for _, o := range rows {
		rec := o.Record()
		row := make(map[string]any, len(columns))
		for _, c := range columns {
			row[c] = rec[c]
		}
		line, err := json.Marshal(row)
		if err != nil {
			return "", fmt.Errorf("serialize office %s: %w", o.City, err)
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func validationMessage(op canonical.Operation, verr *canonical.ValidationError) string {
	if op.Name == canonical.OfficeProfile {
		for _, m := range verr.Missing {
			if m == "city" {
				return "Please specify which office you'd like to know about (e.g., 'Tell me about the Chicago office')."
			}
		}
	}
	return verr.Error()
}
