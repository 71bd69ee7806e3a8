package domain

// State represents the lifecycle state of an election
type State string

const (
	StateOpen   State = "OPEN"   // Accepting ballots
	StateClosed State = "CLOSED" // Final, results revealed
)

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// CanTransitionTo checks if a transition from the current state to target is valid
func (s State) CanTransitionTo(target State) bool {
	validTransitions := map[State][]State{
		StateOpen: {StateClosed},
	}

	allowed, ok := validTransitions[s]
	if !ok {
		return false
	}

	for _, state := range allowed {
		if state == target {
			return true
		}
	}
	return false
}
