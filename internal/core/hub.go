package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	applog "github.com/vovakirdan/wirechat-relay/internal/log"
	"github.com/vovakirdan/wirechat-relay/internal/proto"
	"github.com/vovakirdan/wirechat-relay/internal/utils"
)

// Options configures a Hub.
type Options struct {
	MaxClients     int
	MaxNicknameLen int
	OnlinePageSize int
	// Help is the /aide document; empty selects the built-in one.
	Help    string
	Auditor Auditor
	Metrics *Metrics
}

// Hub is the server context shared by every transport: admission gate,
// registry, rooms, router and dispatcher, plus the shutdown coordinator.
type Hub struct {
	log        *zerolog.Logger
	gate       *Gate
	registry   *Registry
	rooms      *Directory
	router     *Router
	dispatcher *Dispatcher
	metrics    *Metrics
	auditor    Auditor

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex // guards closing and wg.Add
	closing bool
	wg      sync.WaitGroup

	reapMu sync.Mutex // serialises reaping and guards live
	live   map[string]*Session
}

// NewHub builds a hub from opts.
func NewHub(opts Options, logger *zerolog.Logger) *Hub {
	if opts.MaxClients <= 0 {
		opts.MaxClients = 7
	}
	if opts.Help == "" {
		opts.Help, _ = LoadHelp("")
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}

	registry := NewRegistry(opts.MaxClients, opts.MaxNicknameLen)
	rooms := NewDirectory(opts.MaxClients)
	router := NewRouter(registry, rooms, metrics, applog.Component(logger, "router"))
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		log:        applog.Component(logger, "hub"),
		gate:       NewGate(opts.MaxClients, metrics),
		registry:   registry,
		rooms:      rooms,
		router:     router,
		dispatcher: NewDispatcher(registry, router, opts.Help, opts.OnlinePageSize, applog.Component(logger, "commands")),
		metrics:    metrics,
		auditor:    opts.Auditor,
		ctx:        ctx,
		cancel:     cancel,
		live:       make(map[string]*Session),
	}
}

// Registry returns the slot table.
func (h *Hub) Registry() *Registry { return h.registry }

// Rooms returns the room directory.
func (h *Hub) Rooms() *Directory { return h.rooms }

// Gate returns the admission gate shared by every transport.
func (h *Hub) Gate() *Gate { return h.gate }

// Router returns the message router.
func (h *Hub) Router() *Router { return h.router }

// Metrics returns the hub's collectors and their registry.
func (h *Hub) Metrics() *Metrics { return h.metrics }

// Reserve waits for admission capacity. It fails with ErrHubClosed once
// Shutdown has started.
func (h *Hub) Reserve(ctx context.Context) (*Ticket, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(h.ctx, cancel)
	defer stop()

	if h.ctx.Err() != nil {
		return nil, ErrHubClosed
	}
	ticket, err := h.gate.Reserve(ctx)
	if err != nil {
		if h.ctx.Err() != nil {
			return nil, ErrHubClosed
		}
		return nil, err
	}
	// Shutdown may have started while capacity was free.
	if h.ctx.Err() != nil {
		ticket.Release()
		return nil, ErrHubClosed
	}
	return ticket, nil
}

// Serve starts a session goroutine for conn. The hub takes ownership of both
// the ticket and the connection, including on error.
func (h *Hub) Serve(ticket *Ticket, conn Conn) error {
	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		_ = conn.Close()
		ticket.Release()
		return ErrHubClosed
	}

	sess := newSession(utils.NewID(), conn, ticket)
	slot, err := h.registry.Allocate(sess)
	if err != nil {
		h.mu.Unlock()
		h.log.Warn().
			Err(err).
			Str("remote_addr", conn.RemoteAddr()).
			Int("admitted", h.gate.InUse()).
			Msg("no free slot despite admission, dropping connection")
		_ = conn.Close()
		ticket.Release()
		return fmt.Errorf("serve %s: %w", conn.RemoteAddr(), err)
	}

	// Registered under mu so a concurrent Shutdown either sees the session
	// in its live snapshot or refuses it above.
	h.wg.Add(1)
	h.reapMu.Lock()
	h.live[sess.ID] = sess
	h.reapMu.Unlock()
	h.mu.Unlock()

	h.log.Info().
		Str("session_id", sess.ID).
		Int("slot", slot).
		Str("remote_addr", conn.RemoteAddr()).
		Msg("client connected")
	h.audit(sess, EventSessionOpened)

	go h.run(sess)
	return nil
}

// Live returns a snapshot of sessions that have not been reaped yet.
func (h *Hub) Live() []*Session {
	h.reapMu.Lock()
	defer h.reapMu.Unlock()

	out := make([]*Session, 0, len(h.live))
	for _, s := range h.live {
		out = append(out, s)
	}
	return out
}

// Shutdown notifies every session, sends the sentinel, interrupts pending
// reads and waits for all sessions to be reaped. The whole sequence, notices
// included, is bounded by ctx: when it expires the remaining connections are
// closed and ctx's error is returned. It is safe to call with no sessions and
// more than once.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	first := !h.closing
	h.closing = true
	h.mu.Unlock()
	h.cancel()

	notified := make(chan struct{})
	if first {
		h.log.Info().Int("sessions", len(h.Live())).Msg("shutting down sessions")
		// A stalled peer holds each write up to the write timeout, so the
		// notices run aside and ctx stays in charge.
		go func() {
			defer close(notified)
			h.router.SendAll(proto.ShutdownNotice)
			h.router.SendAll(proto.Sentinel)
		}()
	} else {
		close(notified)
	}

	select {
	case <-notified:
	case <-ctx.Done():
		return h.forceClose(ctx)
	}

	for _, s := range h.Live() {
		s.interrupt()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if first {
			h.log.Info().Int("admitted", h.gate.InUse()).Msg("all sessions closed")
		}
		return nil
	case <-ctx.Done():
		return h.forceClose(ctx)
	}
}

// forceClose closes every connection that is still live after ctx expired.
func (h *Hub) forceClose(ctx context.Context) error {
	stuck := h.Live()
	for _, s := range stuck {
		_ = s.conn.Close()
	}
	h.log.Warn().Int("sessions", len(stuck)).Msg("shutdown deadline reached, connections closed")
	return fmt.Errorf("shutdown: %w", ctx.Err())
}

// reap is the last step of a session: it drops the session from the live set
// and signals the shutdown wait group.
func (h *Hub) reap(s *Session) {
	h.reapMu.Lock()
	defer h.reapMu.Unlock()

	delete(h.live, s.ID)
	lifetime := time.Since(s.openedAt)
	h.metrics.sessionClosed(lifetime)
	h.audit(s, EventSessionClosed)

	h.log.Info().
		Str("session_id", s.ID).
		Str("nickname", s.Nickname()).
		Str("reason", string(s.Reason())).
		Dur("lifetime", lifetime).
		Int("active", h.registry.Count()).
		Msg("client disconnected")
	h.wg.Done()
}

func (h *Hub) audit(s *Session, kind EventKind) {
	if h.auditor == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ev := Event{
		Kind:       kind,
		SessionID:  s.ID,
		Slot:       s.Slot(),
		Nickname:   s.Nickname(),
		RemoteAddr: s.RemoteAddr(),
		Reason:     s.Reason(),
		At:         time.Now().UTC(),
	}
	if err := h.auditor.RecordSessionEvent(ctx, ev); err != nil {
		h.log.Warn().Err(err).Str("session_id", s.ID).Str("event", kind.String()).Msg("audit record failed")
	}
}
