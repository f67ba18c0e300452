package pco

import "sync"

// StateType enumerates the camera's lifecycle states, per spec.md
// §3. The lifecycle starts in Disconnected; there is no terminal
// state, since the machine survives the life of the process.
type StateType int

const (
	Disconnected StateType = iota
	Connected
	Armed
	Recording
	Error
)

func (s StateType) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Armed:
		return "armed"
	case Recording:
		return "recording"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// transition describes one legal (command, from-state) pair and the
// controller operation it invokes, per the table in spec.md §4.2.
type transition struct {
	to StateType
	op func(c *Controller) error
}

// transitionTable maps a command name to the set of states from which
// it is legal, and what it does from each.
var transitionTable = map[string]map[StateType]transition{
	"connect": {
		Disconnected: {to: Connected, op: (*Controller).connect},
	},
	"disconnect": {
		Connected: {to: Disconnected, op: func(c *Controller) error { return c.disconnect(false) }},
	},
	"arm": {
		Connected: {to: Armed, op: (*Controller).arm},
	},
	"disarm": {
		Armed: {to: Connected, op: (*Controller).disarm},
	},
	"start": {
		Armed: {to: Recording, op: (*Controller).startRecording},
	},
	"stop": {
		Recording: {to: Armed, op: (*Controller).stopRecording},
	},
	"reset": {
		Error: {to: Disconnected, op: func(c *Controller) error { return c.disconnect(true) }},
	},
}

// State is the camera's finite state machine. It holds a non-owning
// handle back to the Controller that owns it, per the cyclic-ownership
// design note in spec.md §9: the controller owns the state machine,
// and the state machine reaches back through this handle to invoke
// device operations.
type State struct {
	mu      sync.Mutex
	current StateType
	ctrl    *Controller
}

// newState returns a State in Disconnected, bound to ctrl.
func newState(ctrl *Controller) *State {
	return &State{current: Disconnected, ctrl: ctrl}
}

// Current returns the machine's current state.
func (s *State) Current() StateType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Execute dispatches command through the transition table, taking the
// transition mutex for the duration so that two calls never
// interleave, per spec.md §4.2. An unknown command name yields
// *UnknownCommandError; a command not legal from the current state
// yields *IllegalTransitionError. If the controller operation fails,
// the machine lands in Error rather than the table's target state —
// the last-revision error-aware policy spec.md §4.2 calls for.
func (s *State) Execute(command string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byState, known := transitionTable[command]
	if !known {
		return &UnknownCommandError{Command: command}
	}
	t, legal := byState[s.current]
	if !legal {
		return &IllegalTransitionError{Command: command, From: s.current}
	}

	if err := t.op(s.ctrl); err != nil {
		s.current = Error
		return err
	}
	s.current = t.to
	return nil
}

// forceState overrides the current state without running a
// transition operation. Used by the controller's init sequence, which
// drives several transitions internally before the state machine is
// exposed to callers, and by paths that must record Error without a
// table-driven op (e.g. the bring-up sequence failing).
func (s *State) forceState(t StateType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = t
}
