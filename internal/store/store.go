package store

import (
	"context"
	"time"
)

// SessionRecord is one persisted session lifecycle step.
type SessionRecord struct {
	ID         int64
	SessionID  string
	Event      string
	Slot       int
	Nickname   string
	RemoteAddr string
	Reason     string
	CreatedAt  time.Time
}

// AuditStore persists session lifecycle records. Chat lines are never stored.
type AuditStore interface {
	AppendSessionRecord(ctx context.Context, rec SessionRecord) (*SessionRecord, error)
	// ListSessionRecords returns the newest records first.
	ListSessionRecords(ctx context.Context, limit int) ([]SessionRecord, error)
	// ListSessionHistory returns every record of one session, oldest first.
	ListSessionHistory(ctx context.Context, sessionID string) ([]SessionRecord, error)
}

// Store combines all store interfaces.
type Store interface {
	AuditStore
	Close() error
}
