package http

import (
	"context"
	"errors"
	"io"
	"net"
	stdhttp "net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

// maxFrameBytes bounds one inbound frame. Frames up to it are clipped to the
// line limit like TCP lines; larger ones make the library close the socket.
const maxFrameBytes = 1 << 20

// WSHandler upgrades HTTP connections and runs them as relay sessions. Every
// text frame is one line in either direction.
type WSHandler struct {
	hub          *core.Hub
	maxLine      int
	writeTimeout time.Duration
	log          *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, maxLine int, writeTimeout time.Duration, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, maxLine: maxLine, writeTimeout: writeTimeout, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	// Admission happens before the upgrade so a full relay answers 503
	// instead of holding an idle socket.
	ticket, ok := h.hub.Gate().TryReserve()
	if !ok {
		h.log.Warn().Str("remote_addr", r.RemoteAddr).Msg("ws rejected, relay full")
		stdhttp.Error(w, core.ErrRegistryFull.Error(), stdhttp.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		ticket.Release()
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	wc := newWSConn(conn, r.RemoteAddr, h.maxLine, h.writeTimeout)
	if err := h.hub.Serve(ticket, wc); err != nil {
		h.log.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("ws session refused")
		return
	}

	// The hijacked connection stays valid only while ServeHTTP runs.
	<-wc.done
}

// wsConn adapts a websocket connection to core.Conn.
type wsConn struct {
	conn         *websocket.Conn
	remote       string
	maxLine      int
	writeTimeout time.Duration

	readCtx     context.Context
	cancelRead  context.CancelFunc
	interrupted atomic.Bool

	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

func newWSConn(conn *websocket.Conn, remote string, maxLine int, writeTimeout time.Duration) *wsConn {
	ctx, cancel := context.WithCancel(context.Background())
	return &wsConn{
		conn:         conn,
		remote:       remote,
		maxLine:      maxLine,
		writeTimeout: writeTimeout,
		readCtx:      ctx,
		cancelRead:   cancel,
		done:         make(chan struct{}),
	}
}

func (c *wsConn) ReadLine() (string, error) {
	for {
		typ, r, err := c.conn.Reader(c.readCtx)
		if err != nil {
			return "", c.readErr(err)
		}
		// keep one byte past the limit so Clip can find a rune boundary
		data, err := io.ReadAll(io.LimitReader(r, int64(c.maxLine)+1))
		if err == nil {
			_, err = io.Copy(io.Discard, r)
		}
		if err != nil {
			return "", c.readErr(err)
		}
		if typ != websocket.MessageText {
			continue
		}
		line := strings.ReplaceAll(proto.Decode(data), "\n", " ")
		return proto.Clip(line, c.maxLine), nil
	}
}

func (c *wsConn) readErr(err error) error {
	if c.interrupted.Load() {
		return proto.ErrInterrupted
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return io.EOF
	}
	return err
}

// WriteLine sends each line of text as its own frame.
func (c *wsConn) WriteLine(text string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	ctx := context.Background()
	if c.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.writeTimeout)
		defer cancel()
	}
	for _, line := range strings.Split(text, "\n") {
		if err := c.conn.Write(ctx, websocket.MessageText, []byte(line)); err != nil {
			return err
		}
	}
	return nil
}

// Interrupt cancels the pending read. The websocket library closes the
// connection when a read context is cancelled, so unlike a TCP session the
// peer cannot be written to afterwards.
func (c *wsConn) Interrupt() {
	c.interrupted.Store(true)
	c.cancelRead()
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		err := c.conn.Close(websocket.StatusNormalClosure, "bye")
		// An interrupted or peer-closed socket is already gone.
		if err != nil && !errors.Is(err, net.ErrClosed) && websocket.CloseStatus(err) == -1 && !c.interrupted.Load() {
			c.closeErr = err
		}
		c.cancelRead()
		close(c.done)
	})
	return c.closeErr
}

func (c *wsConn) RemoteAddr() string {
	return c.remote
}
