package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/wirechat-relay/internal/config"
	"github.com/vovakirdan/wirechat-relay/internal/core"
	applog "github.com/vovakirdan/wirechat-relay/internal/log"
	"github.com/vovakirdan/wirechat-relay/internal/store"
	"github.com/vovakirdan/wirechat-relay/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/wirechat-relay/internal/transport/http"
	"github.com/vovakirdan/wirechat-relay/internal/transport/tcp"
)

// App wires together core and transport layers.
type App struct {
	hub             *core.Hub
	tcp             *tcp.Server
	http            *stdhttp.Server
	store           store.Store
	shutdownTimeout time.Duration
	log             *zerolog.Logger

	mu       sync.Mutex
	httpAddr net.Addr
	ready    chan struct{}
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	help, err := core.LoadHelp(cfg.HelpFile)
	if err != nil {
		return nil, err
	}

	a := &App{
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             logger,
		ready:           make(chan struct{}),
	}

	opts := core.Options{
		MaxClients:     cfg.MaxClients,
		MaxNicknameLen: cfg.MaxNicknameLen,
		OnlinePageSize: cfg.OnlinePageSize,
		Help:           help,
	}

	var audit store.AuditStore
	if cfg.AuditDBPath != "" {
		st, err := sqlite.New(cfg.AuditDBPath)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		logger.Info().Str("db_path", cfg.AuditDBPath).Msg("audit store initialized")
		a.store = st
		opts.Auditor = st
		audit = st
	}

	a.hub = core.NewHub(opts, applog.Component(logger, "hub"))
	a.tcp = tcp.NewServer(a.hub, cfg.ListenAddr(), cfg.MaxLineBytes, cfg.WriteTimeout, applog.Component(logger, "tcp"))
	if cfg.HTTPAddr != "" {
		a.http = transporthttp.NewServer(a.hub, audit, cfg, applog.Component(logger, "http"))
	}
	return a, nil
}

// Hub exposes the session engine.
func (a *App) Hub() *core.Hub { return a.hub }

// Ready is closed once every listener is bound.
func (a *App) Ready() <-chan struct{} { return a.ready }

// Addr returns the bound relay address, nil before Ready.
func (a *App) Addr() net.Addr { return a.tcp.Addr() }

// HTTPAddr returns the bound admin address, nil before Ready or when disabled.
func (a *App) HTTPAddr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.httpAddr
}

// Run binds the listeners and serves until ctx is cancelled or a server
// fails, then shuts the hub down within the configured timeout. Bind errors
// are returned before anything is served.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	if err := a.tcp.Listen(); err != nil {
		return err
	}

	var httpLn net.Listener
	if a.http != nil {
		ln, err := net.Listen("tcp", a.http.Addr)
		if err != nil {
			_ = a.tcp.Close()
			return fmt.Errorf("listen http %s: %w", a.http.Addr, err)
		}
		httpLn = ln
		a.mu.Lock()
		a.httpAddr = ln.Addr()
		a.mu.Unlock()
		a.log.Info().Str("addr", ln.Addr().String()).Msg("admin http listening")
	}
	close(a.ready)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.tcp.Serve(gctx)
	})

	if a.http != nil {
		g.Go(func() error {
			if err := a.http.Serve(httpLn); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down")
		hubErr := a.hub.Shutdown(shutdownCtx)
		if err := a.tcp.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close listener")
		}
		if a.http != nil {
			if err := a.http.Shutdown(shutdownCtx); err != nil {
				a.log.Warn().Err(err).Msg("failed to shut down http server")
			}
		}
		return hubErr
	})

	return g.Wait()
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
