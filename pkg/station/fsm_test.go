package station

import (
	"errors"
	"testing"
)

type captureListener struct {
	changes []StateChange
}

func (c *captureListener) OnStateChange(e StateChange) { c.changes = append(c.changes, e) }

func TestOperatingCycleTransitions(t *testing.T) {
	m := newStateMachine()
	if m.State() != StateStartup {
		t.Fatalf("initial state %s", m.State())
	}

	for _, to := range []State{StateListen, StateTranscribe, StateDecide, StateRespond, StateListen} {
		if err := m.Transition(to, "test"); err != nil {
			t.Fatalf("transition to %s: %v", to, err)
		}
	}
}

func TestInvalidTransitionRejected(t *testing.T) {
	m := newStateMachine()
	err := m.Transition(StateRespond, "skip ahead")
	if err == nil {
		t.Fatalf("startup to respond must be rejected")
	}
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("unexpected error type: %v", err)
	}
	if m.State() != StateStartup {
		t.Fatalf("failed transition changed state to %s", m.State())
	}
}

func TestShutdownReachableFromEveryState(t *testing.T) {
	for _, from := range []State{StateStartup, StateListen, StateTranscribe, StateDecide, StateRespond} {
		m := newStateMachine()
		m.current = from
		if err := m.Transition(StateShutdown, "test"); err != nil {
			t.Fatalf("%s to shutdown: %v", from, err)
		}
	}
}

func TestShutdownTerminal(t *testing.T) {
	m := newStateMachine()
	m.Transition(StateShutdown, "test")
	if err := m.Transition(StateListen, "resurrect"); err == nil {
		t.Fatalf("shutdown must be terminal")
	}
}

func TestListenersObserveTransitions(t *testing.T) {
	m := newStateMachine()
	l := &captureListener{}
	m.AddListener(l)

	m.Transition(StateListen, "startup complete")
	m.Transition(StateTranscribe, "utterance recorded")

	if len(l.changes) != 2 {
		t.Fatalf("expected 2 events, got %d", len(l.changes))
	}
	if l.changes[0].FromState != StateStartup || l.changes[0].ToState != StateListen {
		t.Fatalf("first event %+v", l.changes[0])
	}
	if l.changes[1].Reason != "utterance recorded" {
		t.Fatalf("reason lost: %+v", l.changes[1])
	}
}
