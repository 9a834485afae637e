package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aescanero/lslrelay/internal/application/announcer"
	"github.com/aescanero/lslrelay/internal/application/relay"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HealthChecker reports transport health
type HealthChecker interface {
	IsHealthy() bool
	GetStatus() announcer.Status
}

// Server represents the HTTP API server
type Server struct {
	router *gin.Engine
	server *http.Server
	relay  *relay.Manager
	health HealthChecker
	logger *zap.Logger
}

// Config holds HTTP server configuration
type Config struct {
	Port   int
	Relay  *relay.Manager
	Health HealthChecker
	// Gatherer serves /metrics; nil uses prometheus.DefaultGatherer
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(requestID())
	router.Use(recovery(cfg.Logger))
	router.Use(requestLogger(cfg.Logger))
	router.Use(corsMiddleware())

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		router: router,
		relay:  cfg.Relay,
		health: cfg.Health,
		logger: cfg.Logger,
	}

	s.setupRoutes(gatherer)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	return s
}

// setupRoutes configures API routes
func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	// Health check
	s.router.GET("/health", s.handleHealth)

	// Metrics
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// Markers
	s.router.POST("/markers", s.handleMarker)

	// Preflight requests are answered by the CORS middleware, but gin only
	// runs middleware for matched routes.
	s.router.OPTIONS("/*path", func(c *gin.Context) {})
}

// SetupWebSocket adds the websocket tail of the relay stream
func (s *Server) SetupWebSocket(handler gin.HandlerFunc) {
	s.router.GET("/markers/ws", handler)
}

// Handler returns the server's HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info("HTTP server shut down complete")
	return nil
}
