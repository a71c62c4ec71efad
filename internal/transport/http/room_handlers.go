package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/core"
)

// RoomHandlers provides HTTP handlers for the room directory.
type RoomHandlers struct {
	rooms    *core.Directory
	registry *core.Registry
	log      *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(rooms *core.Directory, registry *core.Registry, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		rooms:    rooms,
		registry: registry,
		log:      logger,
	}
}

// ListRooms returns all rooms with their current members.
// GET /api/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	rooms := h.rooms.List()
	resp := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		resp = append(resp, roomFromCore(room, h.registry.Members(room.ID)))
	}
	c.JSON(http.StatusOK, gin.H{"rooms": resp})
}

// GetRoom returns one room by ID.
// GET /api/rooms/:id
func (h *RoomHandlers) GetRoom(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid room id"})
		return
	}

	room, err := h.rooms.Get(id)
	if err != nil {
		h.log.Debug().Int("room_id", id).Msg("room not found")
		c.JSON(http.StatusNotFound, errorFrom(err))
		return
	}
	c.JSON(http.StatusOK, roomFromCore(room, h.registry.Members(room.ID)))
}
