// Package session holds the super-resolution screen state and the actions
// that move it between states.
package session

import "fmt"

// State is the screen state of a super-resolution session.
type State int

const (
	NoInputSelected State = iota
	InputSelected
	OutputPreviewed
)

func (s State) String() string {
	switch s {
	case NoInputSelected:
		return "no_input_selected"
	case InputSelected:
		return "input_selected"
	case OutputPreviewed:
		return "output_previewed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Event is a user action that may change the state.
type Event int

const (
	EventSelect Event = iota
	EventPreviewOK
	EventPreviewFailed
	EventSave
)

func (e Event) String() string {
	switch e {
	case EventSelect:
		return "select"
	case EventPreviewOK:
		return "preview_ok"
	case EventPreviewFailed:
		return "preview_failed"
	case EventSave:
		return "save"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// transitions lists every allowed move. Pairs missing from the table are
// rejected by Next.
var transitions = map[State]map[Event]State{
	NoInputSelected: {
		EventSelect: InputSelected,
	},
	InputSelected: {
		EventSelect:        InputSelected,
		EventPreviewOK:     OutputPreviewed,
		EventPreviewFailed: InputSelected,
		EventSave:          InputSelected,
	},
	OutputPreviewed: {
		EventSelect:        InputSelected,
		EventPreviewOK:     OutputPreviewed,
		EventPreviewFailed: OutputPreviewed,
		EventSave:          OutputPreviewed,
	},
}

// Next returns the state reached from s on e.
func Next(s State, e Event) (State, error) {
	to, ok := transitions[s][e]
	if !ok {
		return s, fmt.Errorf("invalid transition: %s on %s", s, e)
	}
	return to, nil
}
