package core

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Router fans lines out to sessions. Targets are taken from a registry
// snapshot; a failed write only abandons that recipient.
type Router struct {
	registry *Registry
	rooms    *Directory
	metrics  *Metrics
	log      *zerolog.Logger
}

// NewRouter builds a router over registry and rooms.
func NewRouter(registry *Registry, rooms *Directory, metrics *Metrics, logger *zerolog.Logger) *Router {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Router{
		registry: registry,
		rooms:    rooms,
		metrics:  metrics,
		log:      logger,
	}
}

// Broadcast sends text to every active member of roomID except origin and
// returns the number of successful deliveries.
func (r *Router) Broadcast(origin *Session, text string, roomID int) int {
	if !r.rooms.Exists(roomID) {
		r.log.Error().Int("room_id", roomID).Msg("broadcast to unknown room")
		return 0
	}

	delivered := 0
	for _, e := range r.registry.Members(roomID) {
		if e.Session == nil || e.Session == origin {
			continue
		}
		if r.deliver(e, text) {
			delivered++
		}
	}
	return delivered
}

// SendTo delivers text to the session holding nickname.
func (r *Router) SendTo(nickname, text string) error {
	e, err := r.registry.LookupByNickname(nickname)
	if err != nil {
		r.log.Error().Str("nickname", nickname).Msg("unicast to unknown nickname")
		return fmt.Errorf("send to %q: %w", nickname, err)
	}
	if e.Session == nil {
		return fmt.Errorf("send to %q: %w", nickname, ErrSessionNotFound)
	}
	if err := e.Session.conn.WriteLine(text); err != nil {
		r.deliveryFailed(e, err)
		return fmt.Errorf("send to %q: %w", nickname, err)
	}
	return nil
}

// SendAll delivers text to every active session and returns the number of
// successful deliveries.
func (r *Router) SendAll(text string) int {
	delivered := 0
	for _, e := range r.registry.ListActive() {
		if e.Session == nil {
			continue
		}
		if r.deliver(e, text) {
			delivered++
		}
	}
	return delivered
}

func (r *Router) deliver(e Entry, text string) bool {
	if err := e.Session.conn.WriteLine(text); err != nil {
		r.deliveryFailed(e, err)
		return false
	}
	return true
}

func (r *Router) deliveryFailed(e Entry, err error) {
	r.metrics.deliveryFailed()
	r.log.Warn().
		Err(err).
		Int("slot", e.Slot).
		Str("nickname", e.Nickname).
		Str("session_id", e.Session.ID).
		Msg("delivery failed, recipient skipped")
}
