package http

import (
	"time"

	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/store"
)

// SessionResponse represents an active session in API responses.
type SessionResponse struct {
	ID         string    `json:"id"`
	Slot       int       `json:"slot"`
	Nickname   string    `json:"nickname"`
	RoomID     int       `json:"room_id"`
	State      string    `json:"state"`
	RemoteAddr string    `json:"remote_addr"`
	OpenedAt   time.Time `json:"opened_at"`
}

// SessionsResponse is the body of GET /api/sessions.
type SessionsResponse struct {
	Active   int               `json:"active"`
	Admitted int               `json:"admitted"` // gate tickets, counts a parked accept loop
	Capacity int               `json:"capacity"`
	Sessions []SessionResponse `json:"sessions"`
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Capacity    int      `json:"capacity"`
	Members     []string `json:"members"`
}

// AuditResponse represents one audit record in API responses.
type AuditResponse struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	Event      string    `json:"event"`
	Slot       int       `json:"slot"`
	Nickname   string    `json:"nickname,omitempty"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func errorFrom(err error) ErrorResponse {
	return ErrorResponse{Error: err.Error(), Code: core.ErrorCode(err)}
}

func sessionFromEntry(e core.Entry) SessionResponse {
	resp := SessionResponse{
		Slot:     e.Slot,
		Nickname: e.Nickname,
		RoomID:   e.RoomID,
	}
	if e.Session != nil {
		resp.ID = e.Session.ID
		resp.State = e.Session.State().String()
		resp.RemoteAddr = e.Session.RemoteAddr()
		resp.OpenedAt = e.Session.OpenedAt().UTC()
	}
	return resp
}

func roomFromCore(room core.Room, members []core.Entry) RoomResponse {
	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.Nickname)
	}
	return RoomResponse{
		ID:          room.ID,
		Name:        room.Name,
		Description: room.Description,
		Capacity:    room.Capacity,
		Members:     names,
	}
}

func auditFromRecord(rec store.SessionRecord) AuditResponse {
	return AuditResponse{
		ID:         rec.ID,
		SessionID:  rec.SessionID,
		Event:      rec.Event,
		Slot:       rec.Slot,
		Nickname:   rec.Nickname,
		RemoteAddr: rec.RemoteAddr,
		Reason:     rec.Reason,
		CreatedAt:  rec.CreatedAt.UTC(),
	}
}
