package core

import (
	"context"
	"time"
)

// EventKind is a session lifecycle step reported to the Auditor.
type EventKind int

const (
	// EventSessionOpened is emitted when a connection gets a registry slot.
	EventSessionOpened EventKind = iota
	// EventSessionActive is emitted when the nickname handshake succeeds.
	EventSessionActive
	// EventSessionClosed is emitted after teardown released every resource.
	EventSessionClosed
)

func (k EventKind) String() string {
	switch k {
	case EventSessionOpened:
		return "opened"
	case EventSessionActive:
		return "active"
	case EventSessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CloseReason records why a session left the Active loop.
type CloseReason string

const (
	ReasonNone       CloseReason = ""
	ReasonClientQuit CloseReason = "client_quit"
	ReasonPeerGone   CloseReason = "peer_gone"
	ReasonIOError    CloseReason = "io_error"
	ReasonShutdown   CloseReason = "shutdown"
)

// Event describes one lifecycle step of a session.
type Event struct {
	Kind       EventKind
	SessionID  string
	Slot       int
	Nickname   string
	RemoteAddr string
	Reason     CloseReason
	At         time.Time
}

// Auditor receives lifecycle events. Implementations must be safe for
// concurrent use; errors are logged and never affect the session.
type Auditor interface {
	RecordSessionEvent(ctx context.Context, ev Event) error
}
