package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Turn is one parsed model reply.
type Turn struct {
	Thought string
	Action  string
	Args    map[string]any
}

// ParseError reports a model reply that does not follow the
// Thought/Action/Args contract. It ends the episode.
type ParseError struct {
	Reason string
	Text   string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return "unparseable model reply: " + e.Reason
}

// markerRE matches a marker line. Markdown bold around the marker is
// tolerated since small models like to add it.
var markerRE = regexp.MustCompile(`(?i)^\s*\**\s*(thought|action|args)\s*\**\s*:\s*\**\s*(.*)$`)

// inlineArgsRE finds Args written on the Action line itself.
var inlineArgsRE = regexp.MustCompile(`(?i)\bargs\s*:\s*`)

// stopAction may omit Args.
const stopAction = "done"

// ParseTurn extracts the thought, the first action and its JSON object
// arguments from a model reply. Markers are matched case-insensitively
// at the start of a line. Args may span several lines; decoding stops at
// the end of the first JSON value, so trailing chatter is ignored.
func ParseTurn(text string) (Turn, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var (
		turn       Turn
		thought    []string
		inThought  bool
		haveAction bool
		argsAt     = -1
		argsFirst  string
	)
	for i, line := range lines {
		m := markerRE.FindStringSubmatch(line)
		if m == nil {
			if inThought {
				thought = append(thought, line)
			}
			continue
		}
		inThought = false
		switch strings.ToLower(m[1]) {
		case "thought":
			if thought == nil {
				thought = []string{m[2]}
				inThought = true
			}
		case "action":
			if !haveAction {
				action := m[2]
				if loc := inlineArgsRE.FindStringIndex(action); loc != nil {
					argsAt, argsFirst = i, action[loc[1]:]
					action = action[:loc[0]]
				}
				turn.Action = cleanAction(action)
				haveAction = true
			}
		case "args":
			if haveAction && argsAt < 0 {
				argsAt, argsFirst = i, m[2]
			}
		}
	}
	turn.Thought = strings.TrimSpace(strings.Join(thought, "\n"))

	if !haveAction {
		return Turn{}, &ParseError{Reason: "missing Action line", Text: text}
	}
	if turn.Action == "" {
		return Turn{}, &ParseError{Reason: "empty Action", Text: text}
	}

	rest := ""
	if argsAt >= 0 {
		rest = strings.TrimSpace(strings.Join(append([]string{argsFirst}, lines[argsAt+1:]...), "\n"))
	}
	if rest == "" {
		if turn.Action == stopAction {
			turn.Args = map[string]any{}
			return turn, nil
		}
		return Turn{}, &ParseError{Reason: fmt.Sprintf("missing Args for action %q", turn.Action), Text: text}
	}

	args, err := decodeArgs(rest)
	if err != nil {
		return Turn{}, &ParseError{Reason: err.Error(), Text: text}
	}
	turn.Args = args
	return turn, nil
}

// cleanAction strips the decoration models put around action names.
func cleanAction(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "`\"'*")
	if i := strings.IndexAny(s, " \t("); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimRight(s, ".,;:`\"'*")
	return strings.ToLower(s)
}

// decodeArgs decodes the first JSON value in s, which must be an object
// or null. A leading code fence is skipped.
func decodeArgs(s string) (map[string]any, error) {
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSpace(s)

	dec := json.NewDecoder(strings.NewReader(s))
	var v any
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, errors.New("Args is truncated JSON")
		}
		return nil, fmt.Errorf("Args is not valid JSON: %v", err)
	}
	if v == nil {
		return map[string]any{}, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("Args must be a JSON object, got %T", v)
	}
	return m, nil
}
