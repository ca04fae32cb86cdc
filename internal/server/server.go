package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/identura/authcore/internal/access"
	"github.com/identura/authcore/internal/authz"
	"github.com/identura/authcore/internal/config"
	"github.com/identura/authcore/internal/observability"
)

// ginModeOnce ensures gin.SetMode is only called once to avoid race
// conditions.
var ginModeOnce sync.Once

// Server is the HTTP surface of the access API.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server

	grants    *access.GrantStore
	projector *access.Projector

	authorizer authz.HTTPAuthorizer
	logger     observability.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithServerLogger sets the logger for the server.
func WithServerLogger(logger observability.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAuthorizer protects the API routes with the given authorizer.
// Without one, routes run unprotected; deployments behind a gateway
// that already enforces access use that mode.
func WithAuthorizer(a authz.HTTPAuthorizer) Option {
	return func(s *Server) {
		s.authorizer = a
	}
}

// New creates the access API server.
func New(cfg config.ServerConfig, grants *access.GrantStore, projector *access.Projector, opts ...Option) *Server {
	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	s := &Server{
		engine:    gin.New(),
		grants:    grants,
		projector: projector,
		logger:    observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine.Use(gin.Recovery())
	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api/:group")
	api.GET("/access/:accountID", s.protect("access"), s.handleGetAccess)
	api.PUT("/organization/:orgID/access/:accountID", s.protect("access"), s.handleDefineAccess)
	api.DELETE("/organization/:orgID/access/:accountID", s.protect("access"), s.handleRemoveAccess)
	api.GET("/usage/:kind/:refID", s.protect("access"), s.handleUsage)
}

// protect adapts the authorizer middleware onto a gin route. With no
// authorizer configured it is a no-op.
func (s *Server) protect(target string) gin.HandlerFunc {
	if s.authorizer == nil {
		return func(c *gin.Context) { c.Next() }
	}
	mw := s.authorizer.Middleware(target)
	return func(c *gin.Context) {
		passed := false
		mw(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
		})).ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
		}
	}
}

// Engine returns the underlying gin engine, for tests and embedding.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start runs the server until ListenAndServe fails or Stop is called.
func (s *Server) Start() error {
	s.logger.Info("access API listening",
		observability.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("access API shutting down")
	return s.httpServer.Shutdown(ctx)
}
