package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

// State is a step of the session state machine.
type State int

const (
	StateHandshaking State = iota
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var transitions = map[State][]State{
	StateHandshaking: {StateActive, StateClosing},
	StateActive:      {StateClosing},
	StateClosing:     {StateClosed},
	StateClosed:      nil,
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Session is one connected peer. The owning goroutine drives its state;
// other goroutines only read the snapshot accessors.
type Session struct {
	ID       string
	conn     Conn
	ticket   *Ticket
	openedAt time.Time

	mu       sync.Mutex
	state    State
	slot     int
	nickname string
	roomID   int
	reason   CloseReason
}

func newSession(id string, conn Conn, ticket *Ticket) *Session {
	return &Session{
		ID:       id,
		conn:     conn,
		ticket:   ticket,
		openedAt: time.Now(),
		state:    StateHandshaking,
		slot:     -1,
		nickname: proto.Placeholder,
		roomID:   DefaultRoomID,
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Nickname returns the accepted nickname, or the placeholder during the handshake.
func (s *Session) Nickname() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nickname
}

// Slot returns the registry slot, -1 before allocation.
func (s *Session) Slot() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slot
}

// RoomID returns the room the session belongs to.
func (s *Session) RoomID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// Reason returns why the session is closing, once known.
func (s *Session) Reason() CloseReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// OpenedAt is when the connection was handed to the hub.
func (s *Session) OpenedAt() time.Time { return s.openedAt }

// RemoteAddr returns the peer address.
func (s *Session) RemoteAddr() string {
	return s.conn.RemoteAddr()
}

func (s *Session) transition(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !CanTransition(s.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, to)
	}
	s.state = to
	return nil
}

// beginClose moves the session to Closing and records the first reason given.
// It reports false if the session was already closing or closed.
func (s *Session) beginClose(reason CloseReason) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !CanTransition(s.state, StateClosing) {
		return false
	}
	s.state = StateClosing
	if s.reason == ReasonNone {
		s.reason = reason
	}
	return true
}

func (s *Session) bind(slot int) {
	s.mu.Lock()
	s.slot = slot
	s.mu.Unlock()
}

func (s *Session) setNickname(nickname string) {
	s.mu.Lock()
	s.nickname = nickname
	s.mu.Unlock()
}

func (s *Session) interrupt() {
	s.conn.Interrupt()
}
