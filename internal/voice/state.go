package voice

import "fmt"

// StateKind enumerates the dispatcher's control states.
type StateKind int

const (
	StateIdle StateKind = iota
	StateAwaitingMerge
	StateExecuting
	StateError
)

func (k StateKind) String() string {
	switch k {
	case StateIdle:
		return "idle"
	case StateAwaitingMerge:
		return "awaiting-merge"
	case StateExecuting:
		return "executing"
	case StateError:
		return "error"
	}
	return "unknown"
}

// State is the dispatcher's tagged state. Context is set only for
// StateAwaitingMerge, Command only for StateExecuting, Reason only for
// StateError.
type State struct {
	Kind    StateKind
	Context *IncompleteContext
	Command *Command
	Reason  string
}

func Idle() State {
	return State{Kind: StateIdle}
}

func AwaitingMerge(ic *IncompleteContext) State {
	return State{Kind: StateAwaitingMerge, Context: ic}
}

func Executing(cmd *Command) State {
	return State{Kind: StateExecuting, Command: cmd}
}

func Errored(reason string) State {
	return State{Kind: StateError, Reason: reason}
}

// Transition validates a state change against the dispatcher's legal moves
// and returns the new state. The dispatcher is a continuously cycling loop;
// there is no terminal state.
func Transition(from, to State) (State, error) {
	if legalTransition(from.Kind, to.Kind) {
		return to, nil
	}
	return from, fmt.Errorf("illegal transition from %s to %s", from.Kind, to.Kind)
}

func legalTransition(from, to StateKind) bool {
	switch from {
	case StateIdle:
		return to == StateIdle || to == StateAwaitingMerge || to == StateExecuting
	case StateAwaitingMerge:
		// A newer incomplete command overwrites the pending one (last wins).
		return to == StateIdle || to == StateAwaitingMerge || to == StateExecuting
	case StateExecuting:
		return to == StateIdle || to == StateError
	case StateError:
		return to == StateIdle
	}
	return false
}
