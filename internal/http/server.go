// Package http exposes the learning engine over a JSON HTTP API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/learnd/internal/engine"
	"github.com/fyrsmithlabs/learnd/internal/logging"
)

// Server provides HTTP endpoints for the learning engine.
type Server struct {
	echo    *echo.Echo
	engine  *engine.Engine
	logger  *zap.Logger
	config  *Config
	limiter *clientLimiter
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// RateLimit is the sustained interactions/second accepted per client.
	// Zero disables limiting.
	RateLimit float64
	RateBurst int
	// TrustedProxies lists the CIDRs whose X-Forwarded-For header is
	// honored when identifying a client. Empty uses the peer address.
	TrustedProxies []string

	// Meter records request metrics. Nil uses the global meter provider.
	Meter metric.Meter
}

// NewServer creates a new HTTP server.
func NewServer(eng *engine.Engine, logger *zap.Logger, cfg *Config) (*Server, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host:      "localhost",
			Port:      9191,
			RateLimit: 20,
			RateBurst: 40,
		}
	}

	extractor, err := ipExtractor(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.IPExtractor = extractor

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestContext)
	e.Use(NewHTTPMetrics(cfg.Meter, logger).MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:    e,
		engine:  eng,
		logger:  logger,
		config:  cfg,
		limiter: newClientLimiter(cfg.RateLimit, cfg.RateBurst),
	}

	s.registerRoutes()

	return s, nil
}

// requestContext carries the request id into the request context so engine
// logs and spans can be correlated with the access log.
func requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Response().Header().Get(echo.HeaderXRequestID)
		if logging.ValidateID(id, "request") == nil {
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
		}
		return next(c)
	}
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")

	v1.POST("/interactions", s.handleInteraction, s.limiter.middleware(s.logger))

	v1.GET("/insights", s.handleListInsights)
	v1.GET("/insights/:id", s.handleGetInsight)

	v1.GET("/preferences", s.handleListPreferences)
	v1.GET("/preferences/:category", s.handleGetPreference)

	v1.POST("/experiments", s.handleStartExperiment)
	v1.GET("/experiments", s.handleListExperiments)
	v1.GET("/experiments/:id", s.handleGetExperiment)
	v1.POST("/experiments/:id/results", s.handleRecordResult)
	v1.POST("/experiments/:id/abort", s.handleAbortExperiment)
	v1.POST("/experiments/:id/conclude", s.handleConcludeExperiment)

	v1.POST("/memories/process", s.handleProcessMemories)

	v1.GET("/knowledge/domains", s.handleListDomains)
	v1.POST("/knowledge/domains", s.handleAddDomain)
	v1.GET("/knowledge/connections", s.handleListConnections)
	v1.GET("/knowledge/concepts", s.handleListConcepts)
	v1.POST("/knowledge/concepts", s.handleSynthesize)
	v1.GET("/knowledge/candidates", s.handleCandidates)

	v1.GET("/reflection/insights", s.handleListMetaInsights)
	v1.POST("/reflection/generate", s.handleGenerateMetaInsights)

	v1.POST("/state/save", s.handleSaveState)
	v1.POST("/state/load", s.handleLoadState)

	v1.POST("/maintenance", s.handleMaintenance)
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
