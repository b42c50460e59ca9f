package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/travel-backoffice/internal/application/service"
	appwf "github.com/garyjia/travel-backoffice/internal/application/workflow"
	"github.com/garyjia/travel-backoffice/internal/domain/errs"
)

const version = "1.0.0"

// Handlers contains all HTTP request handlers
type Handlers struct {
	benchmarks service.BenchmarkService
	quotes     service.QuoteService
	engine     appwf.LifecycleEngine
	health     HealthReporter
	logger     Logger
}

// NewHandlers creates a new Handlers instance. health may be nil.
func NewHandlers(
	benchmarks service.BenchmarkService,
	quotes service.QuoteService,
	engine appwf.LifecycleEngine,
	health HealthReporter,
	logger Logger,
) *Handlers {
	return &Handlers{
		benchmarks: benchmarks,
		quotes:     quotes,
		engine:     engine,
		health:     health,
		logger:     logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// ConflictDetails tells the client which state to refetch
type ConflictDetails struct {
	Entity   string `json:"entity"`
	ID       int64  `json:"id"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// PageRequest represents paging query parameters
type PageRequest struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

// normalize applies the default page size
func (p *PageRequest) normalize() {
	if p.Limit <= 0 || p.Limit > 100 {
		p.Limit = 20
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   version,
	}

	if h.health != nil && !h.health.Ready() {
		response.Status = "unavailable"
		c.JSON(http.StatusServiceUnavailable, Response{Success: false, Data: response})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// parseID reads the :id path parameter, answering 400 when it is malformed
func (h *Handlers) parseID(c *gin.Context) (int64, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		h.logger.Error("Invalid ID", "id", idStr, "path", c.FullPath())
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid id",
			Code:    "validation",
		})
		return 0, false
	}
	return id, true
}

// bindJSON decodes the request body, answering 400 when it is malformed
func (h *Handlers) bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.logger.Error("Invalid request body", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body: " + err.Error(),
			Code:    "validation",
		})
		return false
	}
	return true
}

// ok writes a successful response
func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

// writeError maps domain errors onto HTTP statuses
func (h *Handlers) writeError(c *gin.Context, err error) {
	status, code := statusFor(err)

	resp := Response{Success: false, Error: err.Error(), Code: code}

	var conflict *errs.ConflictError
	if errors.As(err, &conflict) {
		resp.Details = ConflictDetails{
			Entity:   conflict.Entity,
			ID:       conflict.ID,
			Expected: conflict.Expected,
			Actual:   conflict.Actual,
		}
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.FullPath(), "error", err)
		resp.Error = "internal error"
	}

	c.JSON(status, resp)
}

// statusFor returns the HTTP status and error code of err
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, errs.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, errs.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, errs.ErrConsistency):
		return http.StatusUnprocessableEntity, "consistency"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
