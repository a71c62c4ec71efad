package core

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

const waitTimeout = 2 * time.Second

func newTestHub(t *testing.T, opts Options) *Hub {
	t.Helper()

	if opts.MaxClients == 0 {
		opts.MaxClients = 7
	}
	logger := zerolog.Nop()
	h := NewHub(opts, &logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		_ = h.Shutdown(ctx)
	})
	return h
}

// testPeer is the client end of a net.Pipe served by a hub.
type testPeer struct {
	t     *testing.T
	conn  net.Conn
	lines chan string
}

func connect(t *testing.T, h *Hub) *testPeer {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	ticket, err := h.Reserve(ctx)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	return attach(t, h, ticket)
}

func attach(t *testing.T, h *Hub, ticket *Ticket) *testPeer {
	t.Helper()

	server, client := net.Pipe()
	if err := h.Serve(ticket, proto.NewLineConn(server, 512, time.Second)); err != nil {
		t.Fatalf("serve: %v", err)
	}

	p := &testPeer{t: t, conn: client, lines: make(chan string, 256)}
	go func() {
		defer close(p.lines)
		r := bufio.NewReader(client)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			p.lines <- strings.TrimRight(line, "\n")
		}
	}()
	t.Cleanup(func() { _ = client.Close() })
	return p
}

func login(t *testing.T, h *Hub, nickname string) *testPeer {
	t.Helper()
	p := connect(t, h)
	p.send(nickname)
	p.mustLine(proto.Welcome)
	return p
}

func (p *testPeer) send(line string) {
	p.t.Helper()
	_ = p.conn.SetWriteDeadline(time.Now().Add(waitTimeout))
	if _, err := p.conn.Write([]byte(line + "\n")); err != nil {
		p.t.Fatalf("peer write %q: %v", line, err)
	}
}

// mustLine waits for want, skipping unrelated lines.
func (p *testPeer) mustLine(want string) {
	p.t.Helper()

	deadline := time.NewTimer(waitTimeout)
	defer deadline.Stop()
	for {
		select {
		case got, ok := <-p.lines:
			if !ok {
				p.t.Fatalf("connection closed while waiting for %q", want)
			}
			if got == want {
				return
			}
		case <-deadline.C:
			p.t.Fatalf("timeout waiting for %q", want)
		}
	}
}

// mustNotSee fails if a line equal to unwanted arrives within d.
func (p *testPeer) mustNotSee(unwanted string, d time.Duration) {
	p.t.Helper()

	deadline := time.NewTimer(d)
	defer deadline.Stop()
	for {
		select {
		case got, ok := <-p.lines:
			if !ok {
				return
			}
			if got == unwanted {
				p.t.Fatalf("unexpected line %q", unwanted)
			}
		case <-deadline.C:
			return
		}
	}
}

// mustClose waits until the server side closes the connection.
func (p *testPeer) mustClose() {
	p.t.Helper()

	deadline := time.NewTimer(waitTimeout)
	defer deadline.Stop()
	for {
		select {
		case _, ok := <-p.lines:
			if !ok {
				return
			}
		case <-deadline.C:
			p.t.Fatal("connection still open")
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", what)
}

// fakeConn records writes; ReadLine returns lines pushed on in and otherwise
// blocks until Interrupt or Close.
type fakeConn struct {
	mu              sync.Mutex
	addr            string
	in              chan string
	written         []string
	failWrites      bool
	stallWrites     bool
	ignoreInterrupt bool
	closes          int
	interrupted     bool
	done            chan struct{}
	once            sync.Once
}

func newFakeConn(addr string) *fakeConn {
	return &fakeConn{addr: addr, done: make(chan struct{})}
}

func (c *fakeConn) ReadLine() (string, error) {
	select {
	case line := <-c.in:
		return line, nil
	case <-c.done:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.interrupted {
		return "", proto.ErrInterrupted
	}
	return "", io.EOF
}

func (c *fakeConn) WriteLine(text string) error {
	c.mu.Lock()
	if c.stallWrites {
		// a peer that stopped reading: the write hangs until Close
		c.mu.Unlock()
		<-c.done
		return io.ErrClosedPipe
	}
	defer c.mu.Unlock()
	if c.failWrites {
		return io.ErrClosedPipe
	}
	c.written = append(c.written, text)
	return nil
}

func (c *fakeConn) Interrupt() {
	c.mu.Lock()
	if c.ignoreInterrupt {
		c.mu.Unlock()
		return
	}
	c.interrupted = true
	c.mu.Unlock()
	c.once.Do(func() { close(c.done) })
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closes++
	c.mu.Unlock()
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) RemoteAddr() string { return c.addr }

func (c *fakeConn) stall() {
	c.mu.Lock()
	c.stallWrites = true
	c.mu.Unlock()
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

func (c *fakeConn) lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.written...)
}

// activeSession allocates and names a session backed by a fakeConn without
// running its goroutine.
func activeSession(t *testing.T, r *Registry, nickname string) (*Session, *fakeConn) {
	t.Helper()

	conn := newFakeConn(nickname + ":1")
	sess := newSession("id-"+nickname, conn, nil)
	slot, err := r.Allocate(sess)
	if err != nil {
		t.Fatalf("allocate %s: %v", nickname, err)
	}
	if err := r.ClaimNickname(slot, nickname); err != nil {
		t.Fatalf("claim %s: %v", nickname, err)
	}
	return sess, conn
}
