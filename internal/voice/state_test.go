package voice

import "testing"

func TestTransitionLegality(t *testing.T) {
	tests := []struct {
		name    string
		from    StateKind
		to      StateKind
		allowed bool
	}{
		{name: "idleToExecuting", from: StateIdle, to: StateExecuting, allowed: true},
		{name: "idleToAwaitingMerge", from: StateIdle, to: StateAwaitingMerge, allowed: true},
		{name: "idleToIdle", from: StateIdle, to: StateIdle, allowed: true},
		{name: "idleToError", from: StateIdle, to: StateError, allowed: false},
		{name: "awaitingMergeToExecuting", from: StateAwaitingMerge, to: StateExecuting, allowed: true},
		{name: "awaitingMergeOverwrite", from: StateAwaitingMerge, to: StateAwaitingMerge, allowed: true},
		{name: "awaitingMergeDismiss", from: StateAwaitingMerge, to: StateIdle, allowed: true},
		{name: "awaitingMergeToError", from: StateAwaitingMerge, to: StateError, allowed: false},
		{name: "executingToIdle", from: StateExecuting, to: StateIdle, allowed: true},
		{name: "executingToError", from: StateExecuting, to: StateError, allowed: true},
		{name: "executingToAwaitingMerge", from: StateExecuting, to: StateAwaitingMerge, allowed: false},
		{name: "errorToIdle", from: StateError, to: StateIdle, allowed: true},
		{name: "errorToExecuting", from: StateError, to: StateExecuting, allowed: false},
		{name: "errorToError", from: StateError, to: StateError, allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := Transition(State{Kind: tt.from}, State{Kind: tt.to})
			if tt.allowed {
				if err != nil {
					t.Fatalf("Transition() unexpected error: %v", err)
				}
				if next.Kind != tt.to {
					t.Errorf("Transition() kind = %s, want %s", next.Kind, tt.to)
				}
				return
			}
			if err == nil {
				t.Fatal("Transition() should reject illegal move")
			}
			if next.Kind != tt.from {
				t.Errorf("Transition() should keep the current state on rejection, got %s", next.Kind)
			}
		})
	}
}

func TestStateKindString(t *testing.T) {
	tests := []struct {
		kind StateKind
		want string
	}{
		{StateIdle, "idle"},
		{StateAwaitingMerge, "awaiting-merge"},
		{StateExecuting, "executing"},
		{StateError, "error"},
		{StateKind(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestStateConstructors(t *testing.T) {
	ic := &IncompleteContext{MissingFields: "table number is required"}
	if s := AwaitingMerge(ic); s.Kind != StateAwaitingMerge || s.Context != ic {
		t.Error("AwaitingMerge() should carry the context")
	}

	cmd := &Command{Kind: "order"}
	if s := Executing(cmd); s.Kind != StateExecuting || s.Command != cmd {
		t.Error("Executing() should carry the command")
	}

	if s := Errored("boom"); s.Kind != StateError || s.Reason != "boom" {
		t.Error("Errored() should carry the reason")
	}

	if s := Idle(); s.Kind != StateIdle || s.Context != nil || s.Command != nil {
		t.Error("Idle() should carry nothing")
	}
}
