package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/travel-backoffice/internal/application/service"
	appwf "github.com/garyjia/travel-backoffice/internal/application/workflow"
	"github.com/garyjia/travel-backoffice/internal/domain/entity"
	domainwf "github.com/garyjia/travel-backoffice/internal/domain/workflow"
)

// ConsolidateRequest is the body of POST /api/quotes
type ConsolidateRequest struct {
	GroupIDs  []int64 `json:"group_ids" binding:"required"`
	CreatedBy string  `json:"created_by"`
}

// ConsolidateResponse carries the new quote and its first lifecycle record
type ConsolidateResponse struct {
	Quote     *entity.Quote    `json:"quote"`
	Lifecycle *domainwf.Record `json:"lifecycle"`
}

// ListQuotesRequest represents query parameters for listing quotes
type ListQuotesRequest struct {
	PageRequest
	Reference string `form:"reference"`
}

// TransitionRequest is the body of POST /api/quotes/:id/transitions. ExpectedState
// is the state the client last saw.
type TransitionRequest struct {
	ExpectedState    string `json:"expected_state" binding:"required"`
	Target           string `json:"target" binding:"required"`
	POReference      string `json:"po_reference"`
	InvoiceReference string `json:"invoice_reference"`
	CancelReason     string `json:"cancel_reason"`
	CancelCondition  string `json:"cancel_condition"`
	Actor            string `json:"actor"`
}

// LifecycleResponse is a lifecycle record with the moves it allows next
type LifecycleResponse struct {
	Record           *domainwf.Record `json:"record"`
	PermittedTargets []domainwf.State `json:"permitted_targets"`
}

// ArchiveResponse tells where the workbook was stored
type ArchiveResponse struct {
	QuoteID int64  `json:"quote_id"`
	Path    string `json:"path"`
}

// ListQuotes handles GET /api/quotes. With ?reference= it returns the single
// matching quote.
func (h *Handlers) ListQuotes(c *gin.Context) {
	var req ListQuotesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid query parameters", Code: "validation"})
		return
	}

	if req.Reference != "" {
		q, err := h.quotes.GetQuoteByReference(c.Request.Context(), req.Reference)
		if err != nil {
			h.writeError(c, err)
			return
		}
		ok(c, http.StatusOK, q)
		return
	}

	req.normalize()
	quotes, err := h.quotes.ListQuotes(c.Request.Context(), req.Limit, req.Offset)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if quotes == nil {
		quotes = []*entity.Quote{}
	}
	ok(c, http.StatusOK, quotes)
}

// Consolidate handles POST /api/quotes
func (h *Handlers) Consolidate(c *gin.Context) {
	var req ConsolidateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	q, rec, err := h.quotes.Consolidate(c.Request.Context(), service.ConsolidateInput{
		GroupIDs:  req.GroupIDs,
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.logger.Info("Quote consolidated over HTTP", "quote_id", q.ID, "reference", q.Reference)
	ok(c, http.StatusCreated, ConsolidateResponse{Quote: q, Lifecycle: rec})
}

// GetQuote handles GET /api/quotes/:id
func (h *Handlers) GetQuote(c *gin.Context) {
	id, valid := h.parseID(c)
	if !valid {
		return
	}

	q, err := h.quotes.GetQuote(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, q)
}

// ExportQuote handles GET /api/quotes/:id/export and streams the workbook
func (h *Handlers) ExportQuote(c *gin.Context) {
	id, valid := h.parseID(c)
	if !valid {
		return
	}

	doc, err := h.quotes.Export(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName))
	c.Data(http.StatusOK, doc.ContentType, doc.Content)
}

// ArchiveQuote handles POST /api/quotes/:id/archive
func (h *Handlers) ArchiveQuote(c *gin.Context) {
	id, valid := h.parseID(c)
	if !valid {
		return
	}

	path, err := h.quotes.Archive(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, ArchiveResponse{QuoteID: id, Path: path})
}

// GetLifecycle handles GET /api/quotes/:id/lifecycle
func (h *Handlers) GetLifecycle(c *gin.Context) {
	id, valid := h.parseID(c)
	if !valid {
		return
	}

	rec, err := h.engine.GetRecord(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	targets, err := h.engine.PermittedTargets(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if targets == nil {
		targets = []domainwf.State{}
	}

	ok(c, http.StatusOK, LifecycleResponse{Record: rec, PermittedTargets: targets})
}

// Transition handles POST /api/quotes/:id/transitions
func (h *Handlers) Transition(c *gin.Context) {
	id, valid := h.parseID(c)
	if !valid {
		return
	}
	var req TransitionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	rec, err := h.engine.Transition(c.Request.Context(), id, appwf.TransitionCommand{
		ExpectedState: domainwf.State(req.ExpectedState),
		Request: domainwf.Request{
			Target:           domainwf.State(req.Target),
			POReference:      req.POReference,
			InvoiceReference: req.InvoiceReference,
			CancelReason:     req.CancelReason,
			CancelCondition:  req.CancelCondition,
		},
		Actor: req.Actor,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, rec)
}

// History handles GET /api/quotes/:id/history
func (h *Handlers) History(c *gin.Context) {
	id, valid := h.parseID(c)
	if !valid {
		return
	}

	history, err := h.engine.History(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if history == nil {
		history = []*entity.LifecycleHistory{}
	}
	ok(c, http.StatusOK, history)
}
