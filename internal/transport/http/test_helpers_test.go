package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/config"
	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/store"
	"github.com/vovakirdan/wirechat-relay/internal/store/sqlite"
)

type testEnv struct {
	hub   *core.Hub
	store *sqlite.SQLiteStore
	ts    *httptest.Server
}

// startTestServer runs the router on httptest with a fresh hub. withAudit
// attaches an in-memory sqlite audit store.
func startTestServer(t *testing.T, maxClients int, withAudit bool) *testEnv {
	t.Helper()

	logger := zerolog.Nop()
	cfg := config.Default()
	cfg.MaxClients = maxClients
	cfg.WriteTimeout = time.Second

	env := &testEnv{}
	opts := core.Options{
		MaxClients:     cfg.MaxClients,
		MaxNicknameLen: cfg.MaxNicknameLen,
		OnlinePageSize: cfg.OnlinePageSize,
	}
	var audit store.AuditStore
	if withAudit {
		st, err := sqlite.NewWithSetup(":memory:", sqlite.ApplySchema)
		if err != nil {
			t.Fatalf("failed to create test store: %v", err)
		}
		t.Cleanup(func() { _ = st.Close() })
		env.store = st
		opts.Auditor = st
		audit = st
	}

	env.hub = core.NewHub(opts, &logger)
	env.ts = httptest.NewServer(NewHandler(env.hub, audit, &cfg, &logger))
	t.Cleanup(env.ts.Close)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = env.hub.Shutdown(ctx)
	})
	return env
}

func (e *testEnv) wsURL() string {
	return strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
}

func (e *testEnv) getJSON(t *testing.T, path string, want int, out any) {
	t.Helper()
	resp, err := e.ts.Client().Get(e.ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		t.Fatalf("GET %s status = %d, want %d", path, resp.StatusCode, want)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
}

type wsPeer struct {
	conn *websocket.Conn
}

func dialWS(t *testing.T, env *testEnv) *wsPeer {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, resp, err := websocket.Dial(ctx, env.wsURL(), nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	t.Cleanup(func() { _ = conn.CloseNow() })
	return &wsPeer{conn: conn}
}

func (p *wsPeer) send(t *testing.T, line string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.conn.Write(ctx, websocket.MessageText, []byte(line)); err != nil {
		t.Fatalf("ws write %q: %v", line, err)
	}
}

// expect reads frames until want arrives.
func (p *wsPeer) expect(t *testing.T, want string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		_, data, err := p.conn.Read(ctx)
		if err != nil {
			t.Fatalf("waiting for %q: %v", want, err)
		}
		if string(data) == want {
			return
		}
	}
}

func (p *wsPeer) next(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := p.conn.Read(ctx)
	if err != nil {
		t.Fatalf("ws read: %v", err)
	}
	return string(data)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
