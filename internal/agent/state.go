package agent

import "fmt"

// State is a step of the episode state machine.
type State int

const (
	StatePlanning State = iota
	StateActing
	StateObserving
	StateDone
	StateFailed
	StateExhausted
)

// String returns the state name used in logs and output.
func (s State) String() string {
	switch s {
	case StatePlanning:
		return "planning"
	case StateActing:
		return "acting"
	case StateObserving:
		return "observing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateExhausted:
		return "exhausted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether the episode has ended.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateExhausted
}

// MarshalText lets states appear by name in JSON output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
