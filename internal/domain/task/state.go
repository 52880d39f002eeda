package task

import (
	"fmt"
	"sync"
)

// State is a step of an agent's per-request state machine.
type State string

const (
	StateReceived       State = "received"
	StateResolving      State = "resolving"
	StateReplying       State = "replying"
	StateDone           State = "done"
	StateIntentResolved State = "intent_resolved"
	StateDelegating     State = "delegating"
	StateDelegated      State = "delegated"
	StateFanningOut     State = "fanning_out"
	StateCombining      State = "combining"
	StateFinished       State = "finished"
	StateFailed         State = "failed"
)

// Transitions maps each state to the states it may move to.
type Transitions map[State][]State

// FinderTransitions: Received → Resolving → Replying → Done, Failed from
// Received (client error) and Resolving (tool failure).
var FinderTransitions = Transitions{
	StateReceived:  {StateResolving, StateFailed},
	StateResolving: {StateReplying, StateFailed},
	StateReplying:  {StateDone},
}

// OrchestratorTransitions: Received → IntentResolved → Delegating → Delegated
// → FanningOut → Combining → Finished, Failed from Received (intent),
// Delegating, FanningOut and Combining.
var OrchestratorTransitions = Transitions{
	StateReceived:       {StateIntentResolved, StateFailed},
	StateIntentResolved: {StateDelegating},
	StateDelegating:     {StateDelegated, StateFailed},
	StateDelegated:      {StateFanningOut},
	StateFanningOut:     {StateCombining, StateFailed},
	StateCombining:      {StateFinished, StateFailed},
}

// Machine tracks the state of one request. It is safe for concurrent reads.
type Machine struct {
	mu    sync.RWMutex
	state State
	rules Transitions
}

// NewMachine returns a machine in StateReceived.
func NewMachine(rules Transitions) *Machine {
	return &Machine{state: StateReceived, rules: rules}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Terminal reports whether the machine reached a state with no way out.
func (m *Machine) Terminal() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rules[m.state]) == 0
}

// To moves the machine to next, rejecting transitions the rules do not allow.
func (m *Machine) To(next State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.rules[m.state] {
		if s == next {
			m.state = next
			return nil
		}
	}
	return fmt.Errorf("invalid transition %s -> %s", m.state, next)
}
