package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/travel-backoffice/internal/domain/errs"
)

// Record is the lifecycle of one quote. It is a value: Apply returns a new record
// and never mutates its input.
type Record struct {
	QuoteID          int64      `json:"quote_id"`
	State            State      `json:"state"`
	RequestedAt      *time.Time `json:"requested_at,omitempty"`
	ApprovedAt       *time.Time `json:"approved_at,omitempty"`
	PORequestedAt    *time.Time `json:"po_requested_at,omitempty"`
	TicketIssuedAt   *time.Time `json:"ticket_issued_at,omitempty"`
	InvoicedAt       *time.Time `json:"invoiced_at,omitempty"`
	SettledAt        *time.Time `json:"settled_at,omitempty"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
	POReference      string     `json:"po_reference,omitempty"`
	InvoiceReference string     `json:"invoice_reference,omitempty"`
	CancelReason     string     `json:"cancel_reason,omitempty"`
	CancelCondition  string     `json:"cancel_condition,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// NewRecord starts a lifecycle in CREATED
func NewRecord(quoteID int64, now time.Time) Record {
	return Record{
		QuoteID:   quoteID,
		State:     StateCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Request asks for a transition to Target. Only the fields relevant to the
// target are read.
type Request struct {
	Target           State  `json:"target"`
	POReference      string `json:"po_reference,omitempty"`
	InvoiceReference string `json:"invoice_reference,omitempty"`
	CancelReason     string `json:"cancel_reason,omitempty"`
	CancelCondition  string `json:"cancel_condition,omitempty"`
}

// Apply performs the requested transition and returns the updated record.
// The input record is left untouched on failure.
func Apply(ctx context.Context, rec Record, req Request, now time.Time) (Record, error) {
	if !rec.State.IsValid() {
		return rec, fmt.Errorf("%w: %s", ErrInvalidState, rec.State)
	}

	if !req.Target.IsValid() {
		return rec, errs.Validation("target", fmt.Sprintf("unknown target state %q", req.Target))
	}

	m, ok := lifecycleGraph.find(rec.State, req.Target)
	if !ok {
		reason := "not permitted from current state"
		if rec.State.IsTerminal() {
			reason = "record is in a terminal state"
		}
		return rec, errs.InvalidTransition(rec.State.String(), req.Target.String(), reason)
	}

	// Payload problems are reported before guard refusals so that malformed
	// input and refused transitions stay distinguishable.
	if err := validateRequest(req); err != nil {
		return rec, err
	}

	if m.check != nil {
		if err := m.check(ctx, rec); err != nil {
			return rec, errs.InvalidTransition(rec.State.String(), req.Target.String(), err.Error())
		}
	}

	// timestamps never go backwards relative to the last write
	if now.Before(rec.UpdatedAt) {
		now = rec.UpdatedAt
	}
	at := now

	next := rec
	switch m.to {
	case StateQuoteToApprove:
		next.RequestedAt = &at
	case StateQuoteApproved:
		next.ApprovedAt = &at
	case StatePOToApprove:
		next.PORequestedAt = &at
	case StateTicketIssued:
		next.POReference = strings.TrimSpace(req.POReference)
		next.TicketIssuedAt = &at
	case StateInvoiceIssued:
		next.InvoiceReference = strings.TrimSpace(req.InvoiceReference)
		next.InvoicedAt = &at
	case StateSettled:
		next.SettledAt = &at
	case StateCancelled:
		next.CancelReason = strings.TrimSpace(req.CancelReason)
		next.CancelCondition = strings.TrimSpace(req.CancelCondition)
		next.CancelledAt = &at
	}

	next.State = m.to
	next.UpdatedAt = at
	return next, nil
}

func validateRequest(req Request) error {
	switch req.Target {
	case StateTicketIssued:
		if strings.TrimSpace(req.POReference) == "" {
			return errs.Validation("po_reference", "is required to issue the ticket")
		}
	case StateInvoiceIssued:
		if strings.TrimSpace(req.InvoiceReference) == "" {
			return errs.Validation("invoice_reference", "is required to issue the invoice")
		}
	case StateCancelled:
		if strings.TrimSpace(req.CancelReason) == "" {
			return errs.Validation("cancel_reason", "is required")
		}
		if strings.TrimSpace(req.CancelCondition) == "" {
			return errs.Validation("cancel_condition", "is required")
		}
	}
	return nil
}

// PermittedTargets lists the states the record may move to next, in lifecycle
// order. Request payload requirements are not checked.
func PermittedTargets(rec Record) []State {
	if !rec.State.IsValid() {
		return nil
	}

	var targets []State
	for _, m := range lifecycleGraph[rec.State] {
		if m.check == nil || m.check(context.Background(), rec) == nil {
			targets = append(targets, m.to)
		}
	}
	return targets
}
