package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	mw "github.com/Timvanhoudt/VirtualTeamLeader/internal/api/middleware"
	v2 "github.com/Timvanhoudt/VirtualTeamLeader/internal/api/v2"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/buildinfo"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/conf"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/observability"
)

// Server is the HTTP server of the inspection service. It owns the Echo
// instance, the middleware stack and the v2 API controller.
type Server struct {
	echo     *echo.Echo
	config   *Config
	settings *conf.Settings
	logger   logger.Logger

	services v2.Services
	metrics  *observability.Metrics
	build    *buildinfo.Info

	apiController *v2.Controller

	// Run in order during Shutdown, after the listener has stopped.
	shutdownHooks []func(context.Context) error

	mu        sync.Mutex
	started   bool
	serveErr  chan error
	startTime time.Time
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithServices sets the services the API handlers call into.
func WithServices(svc v2.Services) ServerOption {
	return func(s *Server) {
		s.services = svc
	}
}

// WithMetrics enables the request metrics middleware and the /metrics endpoint.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithBuildInfo sets the version reported by the health endpoints.
func WithBuildInfo(info *buildinfo.Info) ServerOption {
	return func(s *Server) {
		s.build = info
	}
}

// WithLogger replaces the package logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

// WithShutdownHook registers a function that runs after the listener stops,
// e.g. draining the notifier or closing the database.
func WithShutdownHook(hook func(context.Context) error) ServerOption {
	return func(s *Server) {
		if hook != nil {
			s.shutdownHooks = append(s.shutdownHooks, hook)
		}
	}
}

// New creates a new HTTP server with the given settings and options.
func New(settings *conf.Settings, opts ...ServerOption) (*Server, error) {
	config := ConfigFromSettings(settings)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	s := &Server{
		config:    config,
		settings:  settings,
		logger:    GetLogger(),
		serveErr:  make(chan error, 1),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Debug = config.Debug

	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.setupMiddleware()
	s.setupRoutes()

	s.logger.Info("HTTP server initialized",
		logger.String("address", config.Address()),
		logger.String("body_limit", config.BodyLimit),
		logger.Bool("debug", config.Debug))

	return s, nil
}

// setupMiddleware configures the Echo middleware stack.
func (s *Server) setupMiddleware() {
	// Recovery middleware - should be first
	s.echo.Use(echomw.Recover())

	// Metrics scrapes and polling of the progress endpoint would drown the log.
	s.echo.Use(mw.NewRequestLoggerWithSkipper(s.logger, func(c echo.Context) bool {
		path := c.Request().URL.Path
		return path == "/metrics" || (!s.config.Debug && strings.HasPrefix(path, "/api/v2/progress/"))
	}))

	securityConfig := mw.DefaultSecurityConfig()
	securityConfig.AllowedOrigins = s.config.AllowedOrigins

	s.echo.Use(mw.NewCORS(securityConfig))
	s.echo.Use(mw.NewBodyLimit(s.config.BodyLimit))

	// promhttp negotiates its own compression.
	s.echo.Use(echomw.GzipWithConfig(echomw.GzipConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/metrics"
		},
	}))

	s.echo.Use(mw.NewSecureHeaders(securityConfig))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	apiOpts := []v2.Option{v2.WithBuildInfo(s.build)}
	if s.metrics != nil {
		apiOpts = append(apiOpts, v2.WithMetrics(s.metrics))
	}
	s.apiController = v2.New(s.echo, s.settings, s.services, apiOpts...)

	s.logger.Info("routes initialized",
		logger.String("api_version", "v2"),
		logger.Bool("metrics", s.metrics != nil))
}

// healthCheck is a liveness probe that does not touch the database.
// The detailed check lives at /api/v2/health.
func (s *Server) healthCheck(c echo.Context) error {
	uptime := time.Since(s.startTime)
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"version":        s.build.GetVersion(),
		"build_date":     s.build.GetBuildDate(),
		"uptime":         uptime.Round(time.Second).String(),
		"uptime_seconds": uptime.Seconds(),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

// Start begins serving HTTP requests in a background goroutine and returns
// once the listener is bound.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("server already started")
	}

	listener, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Address(), err)
	}
	s.echo.Listener = listener
	s.started = true

	go func() {
		err := s.echo.Start("")
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", logger.Error(err))
			s.serveErr <- err
		}
		close(s.serveErr)
	}()

	s.logger.Info("HTTP server started", logger.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.echo.Listener == nil {
		return nil
	}
	return s.echo.Listener.Addr()
}

// StartWithGracefulShutdown starts the server and blocks until SIGINT or
// SIGTERM arrives or the server fails, then shuts down.
func (s *Server) StartWithGracefulShutdown() error {
	if err := s.Start(); err != nil {
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("shutdown signal received", logger.String("signal", sig.String()))
	case err, ok := <-s.serveErr:
		if ok && err != nil {
			return errors.Join(fmt.Errorf("server error: %w", err), s.Shutdown())
		}
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server and runs the shutdown hooks.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := s.echo.Shutdown(ctx); err != nil {
		s.logger.Error("error during server shutdown", logger.Error(err))
		errs = append(errs, fmt.Errorf("shutdown error: %w", err))
	}

	for _, hook := range s.shutdownHooks {
		if err := hook(ctx); err != nil {
			s.logger.Warn("shutdown hook failed", logger.Error(err))
			errs = append(errs, err)
		}
	}

	s.logger.Info("server shutdown complete")
	return errors.Join(errs...)
}

// APIController returns the v2 API controller.
func (s *Server) APIController() *v2.Controller {
	return s.apiController
}

// Echo returns the underlying Echo instance.
// This is useful for testing or advanced configuration.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
