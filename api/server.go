package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/killallgit/trackreview-api/api/types"
	"github.com/killallgit/trackreview-api/internal/logging"
	"github.com/killallgit/trackreview-api/pkg/config"
)

// ServerOptions configures the HTTP server. Zero durations fall back to the
// defaults below.
type ServerOptions struct {
	Address        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxHeaderBytes int
	CORSOrigins    []string
	EnableCORS     bool
	// RequestsPerMinute of zero disables rate limiting.
	RequestsPerMinute int
	Burst             int
}

// OptionsFromConfig maps the loaded configuration onto ServerOptions.
func OptionsFromConfig(address string, cfg *config.Config) ServerOptions {
	opts := ServerOptions{
		Address:        address,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		EnableCORS:     cfg.Security.EnableCORS,
		CORSOrigins:    cfg.Security.CORSOrigins,
	}
	if cfg.RateLimiting.Enabled {
		opts.RequestsPerMinute = cfg.RateLimiting.RequestsPerMinute
		opts.Burst = cfg.RateLimiting.Burst
	}
	return opts
}

// Server represents the HTTP server
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	opts       ServerOptions
	limiter    *RateLimiter
	logger     *slog.Logger

	// Dependencies for handlers
	dependencies *types.Dependencies
}

// NewServer creates a new HTTP server
func NewServer(opts ServerOptions, logger *slog.Logger) *Server {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 30 * time.Second
	}
	if opts.MaxHeaderBytes <= 0 {
		opts.MaxHeaderBytes = 1 << 20 // 1 MB
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine: engine,
		opts:   opts,
		logger: logging.WithComponent(logger, "http"),
		httpServer: &http.Server{
			Addr:           opts.Address,
			Handler:        engine,
			ReadTimeout:    opts.ReadTimeout,
			WriteTimeout:   opts.WriteTimeout,
			IdleTimeout:    2 * time.Minute,
			MaxHeaderBytes: opts.MaxHeaderBytes,
		},
	}
	if opts.RequestsPerMinute > 0 {
		s.limiter = NewRateLimiter(opts.RequestsPerMinute, opts.Burst)
	}
	return s
}

// SetDependencies sets all handler dependencies
func (s *Server) SetDependencies(deps *types.Dependencies) {
	s.dependencies = deps
}

// Engine returns the Gin engine for testing
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Initialize sets up middleware and routes
func (s *Server) Initialize() error {
	if s.dependencies == nil {
		return errors.New("server dependencies not set")
	}

	s.engine.Use(RequestLogger(s.logger))
	if s.opts.EnableCORS {
		s.engine.Use(CORS(s.opts.CORSOrigins))
	}

	RegisterRoutes(s.engine, s.dependencies, s.limiter)
	return nil
}

// Start serves until Shutdown. A clean shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "address", s.opts.Address)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	return s.httpServer.Shutdown(ctx)
}
