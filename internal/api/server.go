// Package api serves the question pipeline over HTTP
package api

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/seanankenbruck/twin-query/internal/audit"
	"github.com/seanankenbruck/twin-query/internal/auth"
	"github.com/seanankenbruck/twin-query/internal/history"
	"github.com/seanankenbruck/twin-query/internal/observability"
	"github.com/seanankenbruck/twin-query/internal/processor"
	"github.com/seanankenbruck/twin-query/internal/schema"
)

// Asker answers questions against an open session
type Asker interface {
	ProcessQuery(ctx context.Context, question string) *processor.Answer
	Snapshot() *schema.Snapshot
}

// HistoryStore reads and clears a user's recent answers
type HistoryStore interface {
	Recent(ctx context.Context, userID string, limit int) ([]history.Entry, error)
	Clear(ctx context.Context, userID string) error
}

// AuditReader reads the audit trail
type AuditReader interface {
	Recent(ctx context.Context, limit int) ([]audit.Row, error)
}

// Options wires the server. History and Audit may be left nil when those
// stores are disabled.
type Options struct {
	Session Asker
	Auth    *auth.Manager
	History HistoryStore
	Audit   AuditReader
	Health  *observability.HealthChecker
	Metrics *observability.Metrics
	Logger  *observability.Logger
}

// Server is the HTTP front end
type Server struct {
	opts   Options
	engine *gin.Engine
}

// NewServer builds the router
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger("api")
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.GetGlobalMetrics()
	}
	if opts.Health == nil {
		opts.Health = observability.NewHealthChecker("dev")
	}

	s := &Server{opts: opts}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(observability.RecoveryMiddleware(s.opts.Logger))
	r.Use(observability.RequestLoggingMiddleware(s.opts.Logger, s.opts.Metrics))
	r.Use(observability.CORSWithLogging(s.opts.Logger))

	r.GET("/health", observability.HealthHandler(s.opts.Health))
	r.GET("/metrics", observability.MetricsHandler(s.opts.Metrics))

	api := r.Group("/api/v1", s.opts.Auth.Middleware())
	api.POST("/query", s.handleQuery)
	api.GET("/schema", s.handleSchema)
	api.GET("/history", s.handleHistory)
	api.DELETE("/history", s.handleClearHistory)
	api.GET("/audit", s.opts.Auth.RequireRole(auth.RoleAdmin), s.handleAudit)

	auth.NewHandlers(s.opts.Auth).SetupRoutes(api)

	return r
}

// Handler exposes the router
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then drains in-flight
// requests for up to shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.opts.Logger.Info(ctx, "HTTP server listening", map[string]interface{}{"addr": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	s.opts.Logger.Info(shutdownCtx, "HTTP server shutting down", nil)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
