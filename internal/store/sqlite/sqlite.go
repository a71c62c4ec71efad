package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/store"
)

// Schema creates the audit table; it is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS session_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL,
	event       TEXT NOT NULL,
	slot        INTEGER NOT NULL,
	nickname    TEXT NOT NULL DEFAULT '',
	remote_addr TEXT NOT NULL DEFAULT '',
	reason      TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_session_events_session ON session_events(session_id, id);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens the database at dbPath and applies Schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, ApplySchema)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests that need a custom schema or seed rows.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; ":memory:" also needs it
	// so every query sees the same database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// ApplySchema creates the audit tables.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== AuditStore implementation ====

// AppendSessionRecord inserts rec and returns it with ID and timestamp set.
func (s *SQLiteStore) AppendSessionRecord(ctx context.Context, rec store.SessionRecord) (*store.SessionRecord, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO session_events (session_id, event, slot, nickname, remote_addr, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		rec.SessionID, rec.Event, rec.Slot, rec.Nickname, rec.RemoteAddr, rec.Reason, rec.CreatedAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("insert session event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}
	rec.ID = id
	return &rec, nil
}

// ListSessionRecords returns at most limit records, newest first.
func (s *SQLiteStore) ListSessionRecords(ctx context.Context, limit int) ([]store.SessionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, session_id, event, slot, nickname, remote_addr, reason, created_at
		FROM session_events
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query session events: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ListSessionHistory returns the records of sessionID, oldest first.
func (s *SQLiteStore) ListSessionHistory(ctx context.Context, sessionID string) ([]store.SessionRecord, error) {
	query := `
		SELECT id, session_id, event, slot, nickname, remote_addr, reason, created_at
		FROM session_events
		WHERE session_id = ?
		ORDER BY id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session history: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// RecordSessionEvent adapts the store to core.Auditor.
func (s *SQLiteStore) RecordSessionEvent(ctx context.Context, ev core.Event) error {
	_, err := s.AppendSessionRecord(ctx, store.SessionRecord{
		SessionID:  ev.SessionID,
		Event:      ev.Kind.String(),
		Slot:       ev.Slot,
		Nickname:   ev.Nickname,
		RemoteAddr: ev.RemoteAddr,
		Reason:     string(ev.Reason),
		CreatedAt:  ev.At,
	})
	return err
}

func scanRecords(rows *sql.Rows) ([]store.SessionRecord, error) {
	records := make([]store.SessionRecord, 0)
	for rows.Next() {
		var rec store.SessionRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.SessionID,
			&rec.Event,
			&rec.Slot,
			&rec.Nickname,
			&rec.RemoteAddr,
			&rec.Reason,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan session event: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session events: %w", err)
	}
	return records, nil
}

var _ core.Auditor = (*SQLiteStore)(nil)
