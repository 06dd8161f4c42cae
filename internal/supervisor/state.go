package supervisor

// State is a node of the supervisor lifecycle.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
	StateConflict State = "conflict"
	StateFailed   State = "failed"
)

// AllStates lists every state, for metrics labelling.
var AllStates = []string{
	string(StateIdle), string(StateStarting), string(StateRunning), string(StateStopping),
	string(StateStopped), string(StateConflict), string(StateFailed),
}

var transitions = map[State][]State{
	StateIdle:     {StateStarting, StateStopping, StateFailed},
	StateStarting: {StateRunning, StateConflict, StateFailed},
	StateRunning:  {StateStopping, StateStopped, StateFailed},
	StateStopping: {StateStopped, StateFailed},
	StateStopped:  {StateStarting, StateStopping},
	StateConflict: {StateStarting, StateStopping},
	StateFailed:   {StateStarting, StateStopping},
}

// CanTransition reports whether from → to is an edge of the lifecycle.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s State) String() string { return string(s) }
