package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/travel-backoffice/internal/application/service"
	"github.com/garyjia/travel-backoffice/internal/domain/entity"
	"github.com/garyjia/travel-backoffice/internal/domain/pricing"
)

// CreateGroupRequest is the body of POST /api/groups
type CreateGroupRequest struct {
	ProductLine string     `json:"product_line" binding:"required"`
	Label       string     `json:"label" binding:"required"`
	Arrival     *time.Time `json:"arrival"`
	Departure   *time.Time `json:"departure"`
}

// AddEntryRequest is the body of POST /api/groups/:id/entries
type AddEntryRequest struct {
	Platform     string  `json:"platform" binding:"required"`
	UnitPrice    float64 `json:"unit_price"`
	Currency     string  `json:"currency" binding:"required"`
	ExchangeRate float64 `json:"exchange_rate"`
	RoomCount    int     `json:"room_count"`
}

// StayRequest is the body of PUT /api/groups/:id/stay
type StayRequest struct {
	Arrival   time.Time `json:"arrival" binding:"required"`
	Departure time.Time `json:"departure" binding:"required"`
}

// ReferenceRequest is the body of PUT /api/groups/:id/reference
type ReferenceRequest struct {
	EntryID int64 `json:"entry_id" binding:"required"`
}

// ExchangeRateRequest is the body of PUT /api/groups/:id/exchange-rate. A zero
// rate asks the configured rate table.
type ExchangeRateRequest struct {
	Side string  `json:"side" binding:"required"`
	Rate float64 `json:"rate"`
}

// ClientLineRequest is the body of POST /api/groups/:id/client-line
type ClientLineRequest struct {
	ExchangeRate float64 `json:"exchange_rate"`
}

// ListGroups handles GET /api/groups
func (h *Handlers) ListGroups(c *gin.Context) {
	var req PageRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid query parameters", Code: "validation"})
		return
	}
	req.normalize()

	groups, err := h.benchmarks.ListGroups(c.Request.Context(), req.Limit, req.Offset)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if groups == nil {
		groups = []*entity.BenchmarkGroup{}
	}
	ok(c, http.StatusOK, groups)
}

// CreateGroup handles POST /api/groups
func (h *Handlers) CreateGroup(c *gin.Context) {
	var req CreateGroupRequest
	if !h.bindJSON(c, &req) {
		return
	}

	in := service.CreateGroupInput{
		ProductLine: entity.ProductLine(req.ProductLine),
		Label:       req.Label,
	}
	if req.Arrival != nil {
		in.Arrival = *req.Arrival
	}
	if req.Departure != nil {
		in.Departure = *req.Departure
	}

	group, err := h.benchmarks.CreateGroup(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, group)
}

// GetGroup handles GET /api/groups/:id
func (h *Handlers) GetGroup(c *gin.Context) {
	id, valid := h.parseID(c)
	if !valid {
		return
	}

	group, err := h.benchmarks.GetGroup(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, group)
}

// AddEntry handles POST /api/groups/:id/entries
func (h *Handlers) AddEntry(c *gin.Context) {
	id, valid := h.parseID(c)
	if !valid {
		return
	}
	var req AddEntryRequest
	if !h.bindJSON(c, &req) {
		return
	}

	group, err := h.benchmarks.AddEntry(c.Request.Context(), id, &entity.BenchmarkEntry{
		Platform:     req.Platform,
		UnitPrice:    req.UnitPrice,
		Currency:     req.Currency,
		ExchangeRate: req.ExchangeRate,
		RoomCount:    req.RoomCount,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, group)
}

// SetStay handles PUT /api/groups/:id/stay
func (h *Handlers) SetStay(c *gin.Context) {
	id, valid := h.parseID(c)
	if !valid {
		return
	}
	var req StayRequest
	if !h.bindJSON(c, &req) {
		return
	}

	group, err := h.benchmarks.SetStay(c.Request.Context(), id, req.Arrival, req.Departure)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, group)
}

// MarkReference handles PUT /api/groups/:id/reference
func (h *Handlers) MarkReference(c *gin.Context) {
	id, valid := h.parseID(c)
	if !valid {
		return
	}
	var req ReferenceRequest
	if !h.bindJSON(c, &req) {
		return
	}

	group, err := h.benchmarks.MarkReference(c.Request.Context(), id, req.EntryID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, group)
}

// EditCommission handles PUT /api/groups/:id/commission
func (h *Handlers) EditCommission(c *gin.Context) {
	id, valid := h.parseID(c)
	if !valid {
		return
	}
	var edit pricing.Edit
	if !h.bindJSON(c, &edit) {
		return
	}

	group, err := h.benchmarks.EditCommission(c.Request.Context(), id, edit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, group)
}

// EditExchangeRate handles PUT /api/groups/:id/exchange-rate
func (h *Handlers) EditExchangeRate(c *gin.Context) {
	id, valid := h.parseID(c)
	if !valid {
		return
	}
	var req ExchangeRateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	amounts, err := h.benchmarks.EditExchangeRate(c.Request.Context(), id, pricing.Side(req.Side), req.Rate)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, amounts)
}

// FinalizeClientLine handles POST /api/groups/:id/client-line
func (h *Handlers) FinalizeClientLine(c *gin.Context) {
	id, valid := h.parseID(c)
	if !valid {
		return
	}
	var req ClientLineRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}

	group, err := h.benchmarks.FinalizeClientLine(c.Request.Context(), id, req.ExchangeRate)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, group)
}
