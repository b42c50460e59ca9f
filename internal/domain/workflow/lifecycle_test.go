package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/garyjia/travel-backoffice/internal/domain/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

func advance(t *testing.T, rec Record, reqs ...Request) Record {
	t.Helper()
	var err error
	for i, req := range reqs {
		rec, err = Apply(context.Background(), rec, req, t0.Add(time.Duration(i+1)*time.Hour))
		require.NoError(t, err, "request %d to %s", i, req.Target)
	}
	return rec
}

func toPOApproval(t *testing.T) Record {
	return advance(t, NewRecord(7, t0),
		Request{Target: StateQuoteToApprove},
		Request{Target: StateQuoteApproved},
		Request{Target: StatePOToApprove},
	)
}

func TestApply_HappyPath(t *testing.T) {
	rec := toPOApproval(t)
	require.Equal(t, StatePOToApprove, rec.State)
	require.NotNil(t, rec.RequestedAt)
	require.NotNil(t, rec.ApprovedAt)
	require.NotNil(t, rec.PORequestedAt)

	_, err := Apply(context.Background(), rec, Request{Target: StateTicketIssued}, t0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrValidation), "empty PO reference: %v", err)

	rec, err = Apply(context.Background(), rec, Request{Target: StateTicketIssued, POReference: "BC-001"}, t0.Add(5*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, StateTicketIssued, rec.State)
	assert.Equal(t, "BC-001", rec.POReference)
	require.NotNil(t, rec.TicketIssuedAt)

	rec = advance(t, rec,
		Request{Target: StateInvoiceIssued, InvoiceReference: "FA-2026-0042"},
		Request{Target: StateSettled},
	)
	assert.Equal(t, StateSettled, rec.State)
	assert.Equal(t, "FA-2026-0042", rec.InvoiceReference)
	assert.NotNil(t, rec.SettledAt)
	assert.Empty(t, PermittedTargets(rec))
}

func TestApply_POReferenceIsWriteOnce(t *testing.T) {
	rec := toPOApproval(t)
	rec.POReference = "BC-001"

	_, err := Apply(context.Background(), rec, Request{Target: StateTicketIssued, POReference: "BC-002"}, t0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrInvalidTransition))

	var ite *errs.InvalidTransitionError
	require.True(t, errors.As(err, &ite))
	assert.Equal(t, "PO_TO_APPROVE", ite.From)
	assert.Equal(t, "TICKET_ISSUED", ite.To)

	// a second PO once the ticket is issued is not a valid transition either
	issued := advance(t, toPOApproval(t), Request{Target: StateTicketIssued, POReference: "BC-001"})
	_, err = Apply(context.Background(), issued, Request{Target: StateTicketIssued, POReference: "BC-002"}, t0)
	assert.True(t, errors.Is(err, errs.ErrInvalidTransition))
}

func TestApply_InvalidTransitionLeavesRecordUnchanged(t *testing.T) {
	rec := NewRecord(1, t0)

	got, err := Apply(context.Background(), rec, Request{Target: StateTicketIssued, POReference: "BC-001"}, t0.Add(time.Hour))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrInvalidTransition))
	assert.Equal(t, rec, got)
	assert.Contains(t, err.Error(), "CREATED -> TICKET_ISSUED")
}

func TestApply_UnknownTarget(t *testing.T) {
	_, err := Apply(context.Background(), NewRecord(1, t0), Request{Target: State("ARCHIVED")}, t0)
	assert.True(t, errors.Is(err, errs.ErrValidation))
	assert.False(t, errors.Is(err, errs.ErrInvalidTransition))
}

func TestApply_BackToCreatedIsInvalidTransition(t *testing.T) {
	for _, rec := range []Record{NewRecord(1, t0), toPOApproval(t)} {
		got, err := Apply(context.Background(), rec, Request{Target: StateCreated}, t0.Add(time.Hour))
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrInvalidTransition), "from %s: %v", rec.State, err)
		assert.False(t, errors.Is(err, errs.ErrValidation))

		var ite *errs.InvalidTransitionError
		require.ErrorAs(t, err, &ite)
		assert.Equal(t, rec.State.String(), ite.From)
		assert.Equal(t, StateCreated.String(), ite.To)
		assert.Equal(t, rec, got)
	}
}

func TestApply_CorruptState(t *testing.T) {
	_, err := Apply(context.Background(), Record{State: State("BROKEN")}, Request{Target: StateCancelled}, t0)
	assert.True(t, errors.Is(err, ErrInvalidState))
}

func TestApply_CancelFromEveryNonTerminalState(t *testing.T) {
	paths := map[State][]Request{
		StateCreated:        nil,
		StateQuoteToApprove: {{Target: StateQuoteToApprove}},
		StateQuoteApproved:  {{Target: StateQuoteToApprove}, {Target: StateQuoteApproved}},
		StatePOToApprove:    {{Target: StateQuoteToApprove}, {Target: StateQuoteApproved}, {Target: StatePOToApprove}},
		StateTicketIssued: {{Target: StateQuoteToApprove}, {Target: StateQuoteApproved}, {Target: StatePOToApprove},
			{Target: StateTicketIssued, POReference: "BC-9"}},
		StateInvoiceIssued: {{Target: StateQuoteToApprove}, {Target: StateQuoteApproved}, {Target: StatePOToApprove},
			{Target: StateTicketIssued, POReference: "BC-9"}, {Target: StateInvoiceIssued, InvoiceReference: "FA-9"}},
	}

	cancel := Request{Target: StateCancelled, CancelReason: "CLIENT_WITHDREW", CancelCondition: "trip postponed"}

	for from, path := range paths {
		t.Run(string(from), func(t *testing.T) {
			rec := advance(t, NewRecord(3, t0), path...)
			require.Equal(t, from, rec.State)

			got, err := Apply(context.Background(), rec, cancel, t0.Add(24*time.Hour))
			require.NoError(t, err)
			assert.Equal(t, StateCancelled, got.State)
			assert.Equal(t, "CLIENT_WITHDREW", got.CancelReason)
			assert.Equal(t, "trip postponed", got.CancelCondition)
			assert.NotNil(t, got.CancelledAt)
			assert.True(t, got.State.IsTerminal())
		})
	}
}

func TestApply_CancelNeedsReasonAndCondition(t *testing.T) {
	rec := NewRecord(1, t0)

	_, err := Apply(context.Background(), rec, Request{Target: StateCancelled, CancelCondition: "x"}, t0)
	assert.True(t, errors.Is(err, errs.ErrValidation))

	_, err = Apply(context.Background(), rec, Request{Target: StateCancelled, CancelReason: "NO_SHOW", CancelCondition: "  "}, t0)
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestApply_TerminalStatesRefuseCancel(t *testing.T) {
	for _, state := range []State{StateSettled, StateCancelled} {
		rec := Record{QuoteID: 1, State: state, InvoiceReference: "FA-1"}
		_, err := Apply(context.Background(), rec, Request{Target: StateCancelled, CancelReason: "R", CancelCondition: "C"}, t0)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrInvalidTransition), "from %s", state)
	}
}

func TestApply_SettleGuards(t *testing.T) {
	settled := t0
	tests := []struct {
		name string
		rec  Record
	}{
		{"no invoice reference", Record{State: StateInvoiceIssued}},
		{"already settled", Record{State: StateInvoiceIssued, InvoiceReference: "FA-1", SettledAt: &settled}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Apply(context.Background(), tt.rec, Request{Target: StateSettled}, t0)
			assert.True(t, errors.Is(err, errs.ErrInvalidTransition))
		})
	}
}

func TestApply_TimestampsAreMonotonic(t *testing.T) {
	rec := NewRecord(1, t0)

	got, err := Apply(context.Background(), rec, Request{Target: StateQuoteToApprove}, t0.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, t0, *got.RequestedAt)
	assert.Equal(t, t0, got.UpdatedAt)
}

func TestPermittedTargets(t *testing.T) {
	assert.Equal(t, []State{StateQuoteToApprove, StateCancelled}, PermittedTargets(NewRecord(1, t0)))

	rec := toPOApproval(t)
	assert.Equal(t, []State{StateTicketIssued, StateCancelled}, PermittedTargets(rec))

	rec.POReference = "BC-1"
	assert.Equal(t, []State{StateCancelled}, PermittedTargets(rec))

	assert.Empty(t, PermittedTargets(Record{State: StateCancelled}))
	assert.Nil(t, PermittedTargets(Record{State: State("BROKEN")}))
}
