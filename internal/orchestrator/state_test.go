package orchestrator

import "testing"

func TestLifecycleTransitions(t *testing.T) {
	cases := []struct {
		from, to State
		ok       bool
	}{
		{StateIdle, StateQuoting, true},
		{StateQuoting, StatePlacing, true},
		{StateQuoting, StateError, true},
		{StatePlacing, StateMonitoring, true},
		{StateMonitoring, StateSettling, true},
		{StateSettling, StateIdle, true},
		{StateSettling, StateHalted, true},
		{StateError, StateIdle, true},

		{StateIdle, StatePlacing, false},
		{StateQuoting, StateSettling, false},
		{StateMonitoring, StateIdle, false},
		{StateHalted, StateQuoting, false},
		{StateHalted, StateIdle, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.ok {
			t.Fatalf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestMachineRejectsIllegalMove(t *testing.T) {
	m := &machine{state: StateIdle}
	if err := m.to(StateQuoting); err != nil {
		t.Fatalf("idle -> quoting: %v", err)
	}
	if err := m.to(StateSettling); err != ErrInvalidTransition {
		t.Fatalf("quoting -> settling = %v, want ErrInvalidTransition", err)
	}
	if m.state != StateQuoting {
		t.Fatalf("failed move changed state to %s", m.state)
	}
}
