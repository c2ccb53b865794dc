package tasks

// State is the lifecycle of a deferred task.
//
//	Scheduled -> Running -> Fired | Failed
//	Scheduled -> Cancelled
//	Scheduled -> Abandoned (coordinator shut down first)
type State string

const (
	StateScheduled State = "SCHEDULED"
	StateRunning   State = "RUNNING"
	StateFired     State = "FIRED"
	StateFailed    State = "FAILED"
	StateCancelled State = "CANCELLED"
	StateAbandoned State = "ABANDONED"
)

var transitions = map[State][]State{
	StateScheduled: {StateRunning, StateCancelled, StateAbandoned},
	StateRunning:   {StateFired, StateFailed},
}

// CanTransition reports whether s may move to next.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the task will never run (again).
func (s State) IsTerminal() bool {
	return len(transitions[s]) == 0
}
