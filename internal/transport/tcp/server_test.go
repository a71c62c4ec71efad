package tcp

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

type lineClient struct {
	conn  net.Conn
	lines chan string
}

func dial(t *testing.T, addr string) *lineClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	c := &lineClient{conn: conn, lines: make(chan string, 64)}
	go func() {
		defer close(c.lines)
		sc := bufio.NewScanner(conn)
		for sc.Scan() {
			c.lines <- sc.Text()
		}
	}()
	t.Cleanup(func() { _ = conn.Close() })
	return c
}

func (c *lineClient) send(t *testing.T, line string) {
	t.Helper()
	if _, err := c.conn.Write(proto.Encode(line)); err != nil {
		t.Fatalf("write %q: %v", line, err)
	}
}

func (c *lineClient) expect(t *testing.T, want string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got, ok := <-c.lines:
			if !ok {
				t.Fatalf("connection closed while waiting for %q", want)
			}
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func (c *lineClient) silent(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case got := <-c.lines:
		t.Fatalf("unexpected line %q", got)
	case <-time.After(d):
	}
}

func startServer(t *testing.T, maxClients int) (*core.Hub, *Server, context.CancelFunc, chan error) {
	t.Helper()
	logger := zerolog.Nop()
	hub := core.NewHub(core.Options{MaxClients: maxClients, MaxNicknameLen: 19, OnlinePageSize: 20}, &logger)
	srv := NewServer(hub, "127.0.0.1:0", 500, time.Second, &logger)
	if err := srv.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
		defer stop()
		_ = hub.Shutdown(shutdownCtx)
	})
	return hub, srv, cancel, done
}

func TestServeRelaysBetweenClients(t *testing.T) {
	_, srv, _, _ := startServer(t, 4)
	addr := srv.Addr().String()

	alice := dial(t, addr)
	alice.send(t, "alice")
	alice.expect(t, proto.Welcome)

	bob := dial(t, addr)
	bob.send(t, "bob")
	bob.expect(t, proto.Welcome)
	alice.expect(t, proto.Joined("bob"))

	bob.send(t, "salut")
	alice.expect(t, proto.Relayed("bob", "salut"))
}

func TestServeBlocksAcceptWhenFull(t *testing.T) {
	hub, srv, _, _ := startServer(t, 1)
	addr := srv.Addr().String()

	first := dial(t, addr)
	first.send(t, "first")
	first.expect(t, proto.Welcome)

	// Connects through the kernel backlog but is not accepted yet.
	second := dial(t, addr)
	second.send(t, "second")
	second.silent(t, 200*time.Millisecond)
	if got := hub.Gate().InUse(); got != 1 {
		t.Fatalf("InUse = %d, want 1", got)
	}

	first.send(t, proto.TerminationToken)
	second.expect(t, proto.Welcome)
}

func TestServeAdmittedIncludesParkedAcceptTicket(t *testing.T) {
	hub, srv, _, _ := startServer(t, 3)
	addr := srv.Addr().String()

	alice := dial(t, addr)
	alice.send(t, "alice")
	alice.expect(t, proto.Welcome)

	// One session plus the ticket the loop holds while parked in Accept.
	deadline := time.Now().Add(2 * time.Second)
	for hub.Gate().InUse() != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("InUse = %d, want 2", hub.Gate().InUse())
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := hub.Registry().Occupied(); got != 1 {
		t.Fatalf("Occupied = %d, want 1", got)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	_, srv, cancel, done := startServer(t, 2)
	addr := srv.Addr().String()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	if conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond); err == nil {
		_ = conn.Close()
		t.Fatal("listener still accepting after cancel")
	}
}

func TestServeStopsOnHubShutdown(t *testing.T) {
	hub, srv, _, done := startServer(t, 1)
	c := dial(t, srv.Addr().String())
	c.send(t, "solo")
	c.expect(t, proto.Welcome)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := hub.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	c.expect(t, proto.ShutdownNotice)
	c.expect(t, proto.Sentinel)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after hub shutdown")
	}
}
