package jobs

import "strings"

// State is a job's position in the conversion lifecycle.
type State string

const (
	StateValidating State = "validating"
	StateStaged     State = "staged"
	StateConverting State = "converting"
	StateReady      State = "ready"
	StateDelivered  State = "delivered"
	StateFailed     State = "failed"
)

var allStates = []State{
	StateValidating,
	StateStaged,
	StateConverting,
	StateReady,
	StateDelivered,
	StateFailed,
}

// AllStates returns every state in lifecycle order.
func AllStates() []State {
	out := make([]State, len(allStates))
	copy(out, allStates)
	return out
}

// ParseState normalizes a user-supplied state name.
func ParseState(value string) (State, bool) {
	candidate := State(strings.ToLower(strings.TrimSpace(value)))
	for _, state := range allStates {
		if state == candidate {
			return state, true
		}
	}
	return "", false
}

// Terminal reports whether no further transition can leave s.
func (s State) Terminal() bool {
	return s == StateDelivered || s == StateFailed
}

// Settled reports whether a waiter can stop waiting: the conversion either
// produced output or ended.
func (s State) Settled() bool {
	return s == StateReady || s.Terminal()
}

var transitions = map[State][]State{
	StateValidating: {StateStaged, StateFailed},
	StateStaged:     {StateConverting, StateFailed},
	StateConverting: {StateReady, StateFailed},
	// An undelivered output can still expire or be discarded.
	StateReady: {StateDelivered, StateFailed},
}

func canTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
