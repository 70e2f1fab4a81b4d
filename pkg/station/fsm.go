package station

import (
	"fmt"
	"sync"
	"time"
)

// State is a phase of the operating cycle.
type State string

const (
	StateStartup    State = "startup"
	StateListen     State = "listen"
	StateTranscribe State = "transcribe"
	StateDecide     State = "decide"
	StateRespond    State = "respond"
	StateShutdown   State = "shutdown"
)

// StateChange represents a state transition event.
type StateChange struct {
	FromState State
	ToState   State
	Timestamp time.Time
	Reason    string
}

// StateListener observes operating-state changes.
type StateListener interface {
	OnStateChange(event StateChange)
}

// InvalidTransitionError is returned for a transition the cycle does not
// allow.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s", e.From, e.To)
}

// stateMachine sequences the operating cycle. Shutdown is reachable from
// every state and is terminal.
type stateMachine struct {
	mu        sync.RWMutex
	current   State
	listeners []StateListener
}

func newStateMachine() *stateMachine {
	return &stateMachine{current: StateStartup}
}

func (m *stateMachine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *stateMachine) AddListener(l StateListener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()
}

// transitionValid checks if a state transition is allowed (must be called
// with lock held).
func (m *stateMachine) transitionValid(from, to State) bool {
	if to == StateShutdown {
		return true
	}
	validTransitions := map[State][]State{
		StateStartup:    {StateListen},
		StateListen:     {StateListen, StateTranscribe},
		StateTranscribe: {StateListen, StateDecide},
		StateDecide:     {StateListen, StateRespond},
		StateRespond:    {StateListen},
	}
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition moves to a new state with validation.
func (m *stateMachine) Transition(state State, reason string) error {
	m.mu.Lock()
	if !m.transitionValid(m.current, state) {
		from := m.current
		m.mu.Unlock()
		return &InvalidTransitionError{From: from, To: state}
	}
	event := StateChange{
		FromState: m.current,
		ToState:   state,
		Timestamp: time.Now(),
		Reason:    reason,
	}
	m.current = state
	listeners := make([]StateListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, l := range listeners {
		l.OnStateChange(event)
	}
	return nil
}
