// Package api implements the JSON API of the inspection service under /api/v2.
package api

import (
	"context"
	"crypto/rand"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	mw "github.com/Timvanhoudt/VirtualTeamLeader/internal/api/middleware"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/buildinfo"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/conf"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/repository"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/inference"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/inspection"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/observability"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/privacy"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/progress"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/review"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/workplace"
)

// GetLogger returns the api package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// Database reports the state of the backing database.
type Database interface {
	Dialect() string
	SchemaVersion(ctx context.Context) (int, error)
}

// ModelCatalog hands out inferrers and lists the loaded ones.
type ModelCatalog interface {
	Get(ctx context.Context, ref inference.ModelRef) (inference.Inferrer, error)
	Loaded() []inference.LoadedModel
}

// Services are the domain services behind the handlers.
type Services struct {
	Store        *repository.Store
	Database     Database
	Pipeline     *inspection.Pipeline
	Privacy      *privacy.Filter
	Tracker      *progress.Tracker
	Selector     inspection.ModelSelector
	Models       ModelCatalog
	DefaultModel inference.ModelRef
	Review       *review.Service
	Datasets     *review.DatasetExporter
	History      *review.HistoryExporter
	Workplaces   *workplace.Service
}

// Controller manages the API routes and handlers.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	Settings *conf.Settings

	store        *repository.Store
	database     Database
	pipeline     *inspection.Pipeline
	privacy      *privacy.Filter
	tracker      *progress.Tracker
	selector     inspection.ModelSelector
	models       ModelCatalog
	defaultModel inference.ModelRef
	review       *review.Service
	datasets     *review.DatasetExporter
	history      *review.HistoryExporter
	workplaces   *workplace.Service

	build     *buildinfo.Info
	metrics   *observability.Metrics
	logger    logger.Logger
	startTime time.Time
	now       func() time.Time
}

// Option is a functional option for configuring the Controller.
type Option func(*Controller)

// WithMetrics records request metrics for the API group.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithBuildInfo reports version metadata on /health.
func WithBuildInfo(info *buildinfo.Info) Option {
	return func(c *Controller) {
		c.build = info
	}
}

// WithLogger replaces the package logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// ipExtractorFromForwardedHeaders prefers proxy headers over the remote address.
func ipExtractorFromForwardedHeaders(req *http.Request) string {
	if xff := req.Header.Get(echo.HeaderXForwardedFor); xff != "" {
		for part := range strings.SplitSeq(xff, ",") {
			if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
				return ip.String()
			}
		}
	}

	if ip := net.ParseIP(req.Header.Get(echo.HeaderXRealIP)); ip != nil {
		return ip.String()
	}

	remoteAddr, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return remoteAddr
}

// New creates the API controller and registers its routes on e.
func New(e *echo.Echo, settings *conf.Settings, svc Services, opts ...Option) *Controller {
	now := time.Now()
	c := &Controller{
		Echo:         e,
		Settings:     settings,
		store:        svc.Store,
		database:     svc.Database,
		pipeline:     svc.Pipeline,
		privacy:      svc.Privacy,
		tracker:      svc.Tracker,
		selector:     svc.Selector,
		models:       svc.Models,
		defaultModel: svc.DefaultModel,
		review:       svc.Review,
		datasets:     svc.Datasets,
		history:      svc.History,
		workplaces:   svc.Workplaces,
		logger:       GetLogger(),
		startTime:    now,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.privacy == nil {
		c.privacy = privacy.NewFilter(nil, privacy.Options{}, nil)
	}
	if c.tracker == nil {
		c.tracker = progress.NewTracker(0, 0)
	}

	e.IPExtractor = ipExtractorFromForwardedHeaders

	c.Group = e.Group("/api/v2")
	if c.metrics != nil {
		c.Group.Use(mw.NewMetrics(c.metrics.HTTP))
	}

	c.initRoutes()
	return c
}

// initRoutes registers all API endpoints.
func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.HealthCheck)

	routeInitializers := []struct {
		name string
		fn   func()
	}{
		{"system routes", c.initSystemRoutes},
		{"debug routes", c.initDebugRoutes},
		{"inspection routes", c.initInspectionRoutes},
		{"analysis routes", c.initAnalysisRoutes},
		{"training routes", c.initTrainingRoutes},
		{"workplace routes", c.initWorkplaceRoutes},
		{"media routes", c.initMediaRoutes},
	}

	for _, initializer := range routeInitializers {
		initializer.fn()
		c.logger.Debug("routes initialized", logger.String("group", initializer.name))
	}
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates a new API error response.
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID returns a short random id that links a response to its log entry.
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError logs err and writes an ErrorResponse with the given status.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := NewErrorResponse(err, message, code)

	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.Int("code", code),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("method", ctx.Request().Method),
		logger.String("ip", ctx.RealIP()),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	if code >= http.StatusInternalServerError {
		c.logger.Error("API error", fields...)
	} else {
		c.logger.Debug("API client error", fields...)
	}

	return ctx.JSON(code, resp)
}

// HandleServiceError maps a service error to its HTTP status.
func (c *Controller) HandleServiceError(ctx echo.Context, err error, message string) error {
	return c.HandleError(ctx, err, message, StatusFor(err))
}
