// Package api exposes the research engine over HTTP: run submission,
// per-session SSE event streaming with resume, cancellation, run
// status, and health.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/delverhq/delver/pkg/config"
	"github.com/delverhq/delver/pkg/events"
	"github.com/delverhq/delver/pkg/service"
)

// Server is the HTTP front of the engine.
type Server struct {
	cfg     *config.Config
	manager *service.Manager
	bus     *events.Bus
	engine  *gin.Engine
	http    *http.Server
}

// NewServer builds the router and handlers.
func NewServer(cfg *config.Config, manager *service.Manager, bus *events.Bus) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		cfg:     cfg,
		manager: manager,
		bus:     bus,
		engine:  gin.New(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.Use(gin.Recovery(), requestLogger(), securityHeaders())

	s.engine.GET("/health", s.Health)

	v1 := s.engine.Group("/api/v1")
	{
		v1.POST("/research", s.StartResearch)
		v1.GET("/research/:id", s.GetResearch)
		v1.GET("/research/:id/events", s.StreamEvents)
		v1.POST("/research/:id/cancel", s.CancelResearch)
		v1.DELETE("/research/:id", s.CloseSession)
	}
}

// Handler returns the underlying router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// Start runs the HTTP server until ctx is done, then shuts down
// gracefully: stop accepting, wait for the manager, drain connections.
func (s *Server) Start(ctx context.Context) error {
	s.http = &http.Server{
		Addr:    s.cfg.Server.Addr(),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := s.manager.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Run manager shutdown incomplete", "error", err)
	}
	return s.http.Shutdown(shutdownCtx)
}
