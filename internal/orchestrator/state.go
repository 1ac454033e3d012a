package orchestrator

import "errors"

var ErrInvalidTransition = errors.New("orchestrator: invalid lifecycle transition")

// State tracks one order lifecycle.
type State uint8

const (
	StateIdle State = iota
	StateQuoting
	StatePlacing
	StateMonitoring
	StateSettling
	StateHalted
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateQuoting:
		return "quoting"
	case StatePlacing:
		return "placing"
	case StateMonitoring:
		return "monitoring"
	case StateSettling:
		return "settling"
	case StateHalted:
		return "halted"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// validTransitions makes illegal lifecycle moves unrepresentable instead
// of relying on boolean guards scattered across exit paths.
var validTransitions = map[State][]State{
	StateIdle:       {StateQuoting},
	StateQuoting:    {StatePlacing, StateError},
	StatePlacing:    {StateMonitoring, StateError},
	StateMonitoring: {StateSettling, StateError},
	StateSettling:   {StateIdle, StateHalted},
	StateError:      {StateIdle},
	StateHalted:     {},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// machine is the per-execution lifecycle tracker.
type machine struct {
	state State
}

func (m *machine) to(next State) error {
	if !CanTransition(m.state, next) {
		return ErrInvalidTransition
	}
	m.state = next
	return nil
}
