package task

import "testing"

func TestFinderMachineHappyPath(t *testing.T) {
	m := NewMachine(FinderTransitions)
	for _, s := range []State{StateResolving, StateReplying, StateDone} {
		if err := m.To(s); err != nil {
			t.Fatalf("To(%s): %v", s, err)
		}
	}
	if !m.Terminal() {
		t.Fatal("done must be terminal")
	}
}

func TestFinderMachineRejectsSkips(t *testing.T) {
	m := NewMachine(FinderTransitions)
	if err := m.To(StateReplying); err == nil {
		t.Fatal("expected received -> replying to be rejected")
	}
	if m.State() != StateReceived {
		t.Fatalf("state changed on rejected transition: %s", m.State())
	}
}

func TestOrchestratorMachineFailedStates(t *testing.T) {
	tests := []struct {
		name string
		path []State
	}{
		{"intent", []State{StateFailed}},
		{"delegating", []State{StateIntentResolved, StateDelegating, StateFailed}},
		{"fanout", []State{StateIntentResolved, StateDelegating, StateDelegated, StateFanningOut, StateFailed}},
		{"combining", []State{StateIntentResolved, StateDelegating, StateDelegated, StateFanningOut, StateCombining, StateFailed}},
		{"finished", []State{StateIntentResolved, StateDelegating, StateDelegated, StateFanningOut, StateCombining, StateFinished}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine(OrchestratorTransitions)
			for _, s := range tt.path {
				if err := m.To(s); err != nil {
					t.Fatalf("To(%s): %v", s, err)
				}
			}
			if !m.Terminal() {
				t.Fatalf("expected terminal after %v", tt.path)
			}
		})
	}
}

func TestOrchestratorMachineNoFailFromDelegated(t *testing.T) {
	m := NewMachine(OrchestratorTransitions)
	for _, s := range []State{StateIntentResolved, StateDelegating, StateDelegated} {
		_ = m.To(s)
	}
	if err := m.To(StateFailed); err == nil {
		t.Fatal("delegated has no failure edge")
	}
}
