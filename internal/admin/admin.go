package admin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Brownie44l1/httpd/internal/hub"
	"github.com/Brownie44l1/httpd/internal/logger"
	"github.com/Brownie44l1/httpd/internal/server"
)

// StatsSource reports connection metrics.
type StatsSource interface {
	Stats() server.MetricsSnapshot
}

// Admin is the side listener for health checks, metrics and the live
// access log stream.
type Admin struct {
	engine  *gin.Engine
	stats   StatsSource
	hub     *hub.Hub
	log     logger.Logger
	started time.Time
}

// New builds the admin engine. h may be nil, which disables /ws.
func New(stats StatsSource, h *hub.Hub, log logger.Logger) *Admin {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false

	if log == nil {
		log = logger.NullLogger{}
	}

	a := &Admin{
		engine:  engine,
		stats:   stats,
		hub:     h,
		log:     log,
		started: time.Now(),
	}
	a.setupRoutes()
	return a
}

func (a *Admin) setupRoutes() {
	a.engine.GET("/healthz", a.handleHealth)
	a.engine.GET("/api/stats", a.handleStats)
	if a.hub != nil {
		a.engine.GET("/ws", a.handleWebSocket)
	}
}

// Handler exposes the engine, mainly for tests.
func (a *Admin) Handler() http.Handler {
	return a.engine
}

func (a *Admin) handleHealth(c *gin.Context) {
	snap := a.stats.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":             "ok",
		"uptime":             time.Since(a.started).Round(time.Second).String(),
		"active_connections": snap.ActiveConnections,
	})
}

type statsResponse struct {
	server.MetricsSnapshot
	Subscribers   int   `json:"stream_subscribers"`
	DroppedEvents int64 `json:"stream_dropped"`
}

func (a *Admin) handleStats(c *gin.Context) {
	resp := statsResponse{MetricsSnapshot: a.stats.Stats()}
	if a.hub != nil {
		resp.Subscribers = a.hub.Subscribers()
		resp.DroppedEvents = a.hub.Dropped()
	}
	c.JSON(http.StatusOK, resp)
}

// Serve runs the admin API on l until ctx is cancelled.
func (a *Admin) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(l) }()
	a.log.Info("admin API listening", logger.F("addr", l.Addr().String()))

	select {
	case err := <-errc:
		return fmt.Errorf("admin API: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("admin API shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin API: %w", err)
	}
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (a *Admin) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("admin API: listen on %s: %w", addr, err)
	}
	return a.Serve(ctx, l)
}
