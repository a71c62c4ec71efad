package core

import (
	"errors"
	"testing"
)

var allStates = []State{StateHandshaking, StateActive, StateClosing, StateClosed}

func TestTransitionTableIsExhaustive(t *testing.T) {
	allowed := map[[2]State]bool{
		{StateHandshaking, StateActive}:  true,
		{StateHandshaking, StateClosing}: true,
		{StateActive, StateClosing}:      true,
		{StateClosing, StateClosed}:      true,
	}

	for _, from := range allStates {
		for _, to := range allStates {
			want := allowed[[2]State{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}

			s := newSession("s", newFakeConn("x"), nil)
			s.state = from
			err := s.transition(to)
			if want && err != nil {
				t.Errorf("transition %s -> %s: %v", from, to, err)
			}
			if !want && !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("transition %s -> %s: expected ErrInvalidTransition, got %v", from, to, err)
			}
			if !want && s.State() != from {
				t.Errorf("rejected transition changed state to %s", s.State())
			}
		}
	}
}

func TestBeginCloseKeepsFirstReason(t *testing.T) {
	s := newSession("s", newFakeConn("x"), nil)

	if !s.beginClose(ReasonClientQuit) {
		t.Fatal("beginClose from handshaking refused")
	}
	if s.beginClose(ReasonIOError) {
		t.Fatal("second beginClose accepted")
	}
	if s.Reason() != ReasonClientQuit || s.State() != StateClosing {
		t.Fatalf("reason=%s state=%s", s.Reason(), s.State())
	}

	if err := s.transition(StateClosed); err != nil {
		t.Fatalf("closing -> closed: %v", err)
	}
	if s.beginClose(ReasonShutdown) {
		t.Fatal("beginClose accepted after closed")
	}
}

func TestStateString(t *testing.T) {
	if StateActive.String() != "active" || State(42).String() != "state(42)" {
		t.Fatalf("unexpected names %q %q", StateActive, State(42))
	}
}
