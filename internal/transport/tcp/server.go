// Package tcp is the relay's primary transport: a plain TCP listener whose
// accept loop is gated by the hub's admission control.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

const acceptRetryDelay = 50 * time.Millisecond

// Server accepts TCP connections and hands them to the hub.
type Server struct {
	hub          *core.Hub
	addr         string
	maxLine      int
	writeTimeout time.Duration
	log          *zerolog.Logger

	mu sync.Mutex
	ln net.Listener
}

// NewServer builds a server that will listen on addr.
func NewServer(hub *core.Hub, addr string, maxLine int, writeTimeout time.Duration, logger *zerolog.Logger) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Server{
		hub:          hub,
		addr:         addr,
		maxLine:      maxLine,
		writeTimeout: writeTimeout,
		log:          logger,
	}
}

// Listen binds the listening socket.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	s.log.Info().Str("addr", ln.Addr().String()).Msg("listening")
	return nil
}

// Addr returns the bound address, nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve runs the accept loop until ctx is cancelled, the hub shuts down or the
// listener is closed. Each iteration first waits for admission capacity, so a
// full server leaves new connections in the kernel backlog.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return errors.New("serve: listener not bound")
	}

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	for {
		ticket, err := s.hub.Reserve(ctx)
		if err != nil {
			if ctx.Err() != nil {
				_ = s.Close()
				return nil
			}
			if errors.Is(err, core.ErrHubClosed) {
				return nil
			}
			return fmt.Errorf("reserve: %w", err)
		}

		conn, err := ln.Accept()
		if err != nil {
			ticket.Release()
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warn().Err(err).Msg("accept failed")
			time.Sleep(acceptRetryDelay)
			continue
		}

		lc := proto.NewLineConn(conn, s.maxLine, s.writeTimeout)
		if err := s.hub.Serve(ticket, lc); err != nil {
			s.log.Warn().Err(err).Str("remote_addr", lc.RemoteAddr()).Msg("connection refused")
		}
	}
}

// Close closes the listening socket. It is safe to call more than once.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	err := s.ln.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
