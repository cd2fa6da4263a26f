package server

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/EdgeCode/internal/api/http"
	"github.com/GriffinCanCode/EdgeCode/internal/api/middleware"
	"github.com/GriffinCanCode/EdgeCode/internal/conditions"
	"github.com/GriffinCanCode/EdgeCode/internal/config"
	"github.com/GriffinCanCode/EdgeCode/internal/gateway"
	"github.com/GriffinCanCode/EdgeCode/internal/logging"
	"github.com/GriffinCanCode/EdgeCode/internal/monitoring"
	"github.com/GriffinCanCode/EdgeCode/internal/sandbox"
	"github.com/GriffinCanCode/EdgeCode/internal/store"
	"github.com/GriffinCanCode/EdgeCode/internal/tracing"
)

// Server wraps the admin HTTP server and the engine it fronts.
type Server struct {
	router  *gin.Engine
	store   *store.SQLite
	gw      *gateway.Gateway
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer
	log     *logging.Logger
}

// New builds the full engine from configuration.
func New(cfg *config.Config, log *logging.Logger) (*Server, error) {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := st.PurgeDiagnostics(context.Background()); err != nil {
		log.Warn("failed to purge expired diagnostics", zap.Error(err))
	}

	metrics := monitoring.NewMetrics()
	eval := conditions.NewEvaluator(log)
	exec := sandbox.New(sandbox.Config{
		Timeout:          cfg.Executor.Timeout(),
		AllowUnsafe:      cfg.Executor.AllowUnsafe,
		DenyExtra:        cfg.Executor.DenyExtra,
		MaxCallStackSize: sandbox.DefaultConfig().MaxCallStackSize,
	}, log)
	gw := gateway.New(st, eval, exec, log, metrics)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	tracer := tracing.New("edgecode", log.Logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	router.Use(monitoring.Middleware(metrics))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(st, gw, log)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Sample host page: drives the ambient passes and marker replacement
	// end to end. POST a page body to render markers inside it.
	router.GET("/render", handlers.Render)
	router.POST("/render", handlers.Render)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/fragments", handlers.ListFragments)
		v1.POST("/fragments", handlers.CreateFragment)
		v1.POST("/fragments/validate", handlers.ValidateFragment)
		v1.GET("/fragments/:id", handlers.GetFragment)
		v1.PUT("/fragments/:id", handlers.UpdateFragment)
		v1.DELETE("/fragments/:id", handlers.DeleteFragment)
		v1.POST("/fragments/:id/restore", handlers.RestoreFragment)
		v1.GET("/fragments/:id/revisions", handlers.ListRevisions)
		v1.POST("/fragments/:id/test", handlers.TestFragment)
		v1.GET("/fragments/:id/diagnostic", handlers.GetDiagnostic)

		v1.POST("/import", handlers.Import)
		v1.GET("/export", handlers.Export)
	}

	return &Server{
		router:  router,
		store:   st,
		gw:      gw,
		metrics: metrics,
		tracer:  tracer,
		log:     log,
	}, nil
}

// Gateway exposes the execution gateway for in-process hosts.
func (s *Server) Gateway() *gateway.Gateway {
	return s.gw
}

// Store exposes the persistence layer for in-process hosts.
func (s *Server) Store() *store.SQLite {
	return s.store
}

// Router exposes the HTTP handler, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run starts the admin HTTP server.
func (s *Server) Run(addr string) error {
	s.log.Info("starting admin server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Close releases engine resources.
func (s *Server) Close() error {
	s.metrics.Close()
	s.tracer.Close()
	return s.store.Close()
}
