package core

import (
	"errors"
	"io"
	"net"
	"strings"

	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

// run drives one session from handshake to teardown.
func (h *Hub) run(s *Session) {
	defer h.teardown(s)

	if err := h.handshake(s); err != nil {
		s.beginClose(reasonFor(err))
		h.logReadEnd(s, err)
		return
	}
	h.loop(s)
}

// handshake reads nickname proposals until one is accepted.
func (h *Hub) handshake(s *Session) error {
	for {
		line, err := s.conn.ReadLine()
		if err != nil {
			return err
		}
		h.metrics.line("handshake")

		err = h.registry.ClaimNickname(s.Slot(), line)
		if errors.Is(err, ErrNicknameTaken) || errors.Is(err, ErrNicknameInvalid) {
			h.log.Debug().Err(err).Str("session_id", s.ID).Str("proposed", line).Msg("nickname rejected")
			if werr := s.conn.WriteLine(proto.NicknameTaken); werr != nil {
				return werr
			}
			continue
		}
		if err != nil {
			return err
		}
		break
	}

	if err := s.transition(StateActive); err != nil {
		return err
	}
	nickname := s.Nickname()
	h.metrics.setActive(h.registry.Count())
	h.audit(s, EventSessionActive)
	h.log.Info().
		Str("session_id", s.ID).
		Str("nickname", nickname).
		Int("active", h.registry.Count()).
		Msg("nickname accepted")

	if err := s.conn.WriteLine(proto.Welcome); err != nil {
		return err
	}
	if nickname != proto.ReservedIdentity {
		h.router.Broadcast(s, proto.Joined(nickname), s.RoomID())
	}
	return nil
}

// loop relays lines until the peer leaves, the connection fails or the
// session is interrupted.
func (h *Hub) loop(s *Session) {
	nickname := s.Nickname()
	for {
		line, err := s.conn.ReadLine()
		if err != nil {
			s.beginClose(reasonFor(err))
			h.logReadEnd(s, err)
			return
		}
		h.log.Debug().Str("session_id", s.ID).Str("nickname", nickname).Str("line", line).Msg("line received")

		switch {
		case strings.TrimSpace(line) == "":
			continue
		case strings.TrimSpace(line) == proto.TerminationToken:
			h.metrics.line("quit")
			h.router.Broadcast(s, proto.Relayed(nickname, proto.LeaveNotice), s.RoomID())
			s.beginClose(ReasonClientQuit)
			return
		case line == proto.Sentinel:
			s.beginClose(ReasonShutdown)
			return
		case h.dispatcher.Dispatch(s, line):
			h.metrics.line("command")
		default:
			h.metrics.line("broadcast")
			h.router.Broadcast(s, proto.Relayed(nickname, line), s.RoomID())
		}
	}
}

// teardown releases the slot, the connection and the admission ticket, in
// that order, then reaps the session. It runs exactly once per session.
func (h *Hub) teardown(s *Session) {
	s.beginClose(ReasonIOError)

	h.registry.Release(s.Slot())
	h.metrics.setActive(h.registry.Count())
	if err := s.conn.Close(); err != nil {
		h.log.Debug().Err(err).Str("session_id", s.ID).Msg("close connection")
	}
	s.ticket.Release()

	if err := s.transition(StateClosed); err != nil {
		h.log.Error().Err(err).Str("session_id", s.ID).Msg("teardown")
	}
	h.reap(s)
}

func (h *Hub) logReadEnd(s *Session, err error) {
	switch reasonFor(err) {
	case ReasonIOError:
		h.log.Warn().Err(err).Str("session_id", s.ID).Str("state", s.State().String()).Msg("session read failed")
	default:
		h.log.Debug().Err(err).Str("session_id", s.ID).Msg("session read ended")
	}
}

func reasonFor(err error) CloseReason {
	switch {
	case errors.Is(err, proto.ErrInterrupted):
		return ReasonShutdown
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed), errors.Is(err, io.ErrClosedPipe):
		return ReasonPeerGone
	default:
		return ReasonIOError
	}
}
