// Package http exposes the back office over a JSON API. Handlers only translate
// requests into service calls and domain errors into status codes.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyjia/travel-backoffice/internal/application/service"
	appwf "github.com/garyjia/travel-backoffice/internal/application/workflow"
	"github.com/garyjia/travel-backoffice/internal/domain/event"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// HealthReporter reports whether the backing components are usable
type HealthReporter interface {
	Ready() bool
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	Mode         string // gin mode: debug, release or test
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// MetricsPath exposes MetricsHandler when both are set
	MetricsPath    string
	MetricsHandler http.Handler
	Health         HealthReporter
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		Mode:         gin.ReleaseMode,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// RequestIDHeader carries the correlation id in and out of the API
const RequestIDHeader = "X-Request-ID"

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	benchmarks service.BenchmarkService
	quotes     service.QuoteService
	engine     appwf.LifecycleEngine
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(
	config ServerConfig,
	benchmarks service.BenchmarkService,
	quotes service.QuoteService,
	engine appwf.LifecycleEngine,
	logger Logger,
) *Server {
	mode := config.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	s := &Server{
		config:     config,
		router:     gin.New(),
		benchmarks: benchmarks,
		quotes:     quotes,
		engine:     engine,
		logger:     logger,
	}

	s.router.Use(gin.Recovery(), requestID(), cors(), s.accessLog())
	s.setupRoutes()
	return s
}

// requestID reuses the caller's X-Request-ID or mints one, and puts it on the
// request context so that events raised by the request carry it
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(event.WithCorrelationID(c.Request.Context(), id))
		c.Next()
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+RequestIDHeader)
		h.Set("Access-Control-Expose-Headers", RequestIDHeader+", Content-Disposition")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// accessLog logs one line per request; server errors are logged at error level
func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []interface{}{
			"method", c.Request.Method,
			"route", c.FullPath(),
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"request_id", c.GetString("request_id"),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			s.logger.Error("HTTP request failed", fields...)
			return
		}
		s.logger.Info("HTTP request", fields...)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.benchmarks, s.quotes, s.engine, s.config.Health, s.logger)

	s.router.GET("/health", handlers.HealthCheck)

	if s.config.MetricsPath != "" && s.config.MetricsHandler != nil {
		s.router.GET(s.config.MetricsPath, gin.WrapH(s.config.MetricsHandler))
	}

	// API routes
	api := s.router.Group("/api")
	{
		// Benchmark groups
		api.GET("/groups", handlers.ListGroups)
		api.POST("/groups", handlers.CreateGroup)
		api.GET("/groups/:id", handlers.GetGroup)
		api.POST("/groups/:id/entries", handlers.AddEntry)
		api.PUT("/groups/:id/stay", handlers.SetStay)
		api.PUT("/groups/:id/reference", handlers.MarkReference)
		api.PUT("/groups/:id/commission", handlers.EditCommission)
		api.PUT("/groups/:id/exchange-rate", handlers.EditExchangeRate)
		api.POST("/groups/:id/client-line", handlers.FinalizeClientLine)

		// Quotes
		api.GET("/quotes", handlers.ListQuotes)
		api.POST("/quotes", handlers.Consolidate)
		api.GET("/quotes/:id", handlers.GetQuote)
		api.GET("/quotes/:id/export", handlers.ExportQuote)
		api.POST("/quotes/:id/archive", handlers.ArchiveQuote)

		// Lifecycle
		api.GET("/quotes/:id/lifecycle", handlers.GetLifecycle)
		api.POST("/quotes/:id/transitions", handlers.Transition)
		api.GET("/quotes/:id/history", handlers.History)
	}
}

// Start serves until ctx is cancelled, then drains in-flight requests
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.Address(),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	// Listening up front reports a taken port before Start blocks
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.logger.Info("HTTP server listening", "address", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gives in-flight requests ten seconds to finish
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
