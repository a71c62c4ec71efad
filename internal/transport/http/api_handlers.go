package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/store"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 1000
)

// APIHandlers serves the read-only session and audit endpoints.
type APIHandlers struct {
	hub   *core.Hub
	audit store.AuditStore
	log   *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance. audit may be nil.
func NewAPIHandlers(hub *core.Hub, audit store.AuditStore, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		hub:   hub,
		audit: audit,
		log:   logger,
	}
}

// ListSessions returns every session past the handshake.
// GET /api/sessions
func (h *APIHandlers) ListSessions(c *gin.Context) {
	reg := h.hub.Registry()
	entries := reg.ListActive()

	sessions := make([]SessionResponse, 0, len(entries))
	for _, e := range entries {
		sessions = append(sessions, sessionFromEntry(e))
	}

	c.JSON(http.StatusOK, SessionsResponse{
		Active:   len(sessions),
		Admitted: h.hub.Gate().InUse(),
		Capacity: reg.Cap(),
		Sessions: sessions,
	})
}

// GetSession looks up one active session by nickname.
// GET /api/sessions/:nickname
func (h *APIHandlers) GetSession(c *gin.Context) {
	entry, err := h.hub.Registry().LookupByNickname(c.Param("nickname"))
	if err != nil {
		c.JSON(http.StatusNotFound, errorFrom(err))
		return
	}
	c.JSON(http.StatusOK, sessionFromEntry(entry))
}

// ListAudit returns the newest audit records.
// GET /api/audit?limit=N
func (h *APIHandlers) ListAudit(c *gin.Context) {
	if h.audit == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "audit trail disabled"})
		return
	}

	limit := defaultAuditLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxAuditLimit)
	}

	records, err := h.audit.ListSessionRecords(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list audit records")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": toAudit(records)})
}

// SessionHistory returns every audit record of one session.
// GET /api/audit/:session_id
func (h *APIHandlers) SessionHistory(c *gin.Context) {
	if h.audit == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "audit trail disabled"})
		return
	}

	sessionID := c.Param("session_id")
	records, err := h.audit.ListSessionHistory(c.Request.Context(), sessionID)
	if err != nil {
		h.log.Error().Err(err).Str("session_id", sessionID).Msg("failed to load session history")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if len(records) == 0 {
		c.JSON(http.StatusNotFound, errorFrom(core.ErrSessionNotFound))
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "records": toAudit(records)})
}

func toAudit(records []store.SessionRecord) []AuditResponse {
	out := make([]AuditResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, auditFromRecord(rec))
	}
	return out
}
