// Package http serves the relay's admin API, prometheus metrics and the
// WebSocket gateway on one gin engine.
package http

import (
	stdhttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/config"
	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/store"
)

const readHeaderTimeout = 5 * time.Second

// NewServer builds the HTTP server bound to cfg.HTTPAddr. audit may be nil
// when the audit trail is disabled.
func NewServer(hub *core.Hub, audit store.AuditStore, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewHandler(hub, audit, cfg, logger),
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// NewHandler mounts the WebSocket gateway next to the gin engine. /ws stays
// on the plain mux because gin refuses to hijack a connection whose response
// the websocket library has already started.
func NewHandler(hub *core.Hub, audit store.AuditStore, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, cfg.MaxLineBytes, cfg.WriteTimeout, logger))
	mux.Handle("/", NewRouter(hub, audit, logger))
	return mux
}

// NewRouter builds the gin engine with the admin routes registered.
func NewRouter(hub *core.Hub, audit store.AuditStore, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(hub.Metrics().Registry, promhttp.HandlerOpts{})))

	apiHandlers := NewAPIHandlers(hub, audit, logger)
	roomHandlers := NewRoomHandlers(hub.Rooms(), hub.Registry(), logger)

	api := router.Group("/api")
	{
		api.GET("/sessions", apiHandlers.ListSessions)
		api.GET("/sessions/:nickname", apiHandlers.GetSession)
		api.GET("/audit", apiHandlers.ListAudit)
		api.GET("/audit/:session_id", apiHandlers.SessionHistory)

		api.GET("/rooms", roomHandlers.ListRooms)
		api.GET("/rooms/:id", roomHandlers.GetRoom)
	}

	return router
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
