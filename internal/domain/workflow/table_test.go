package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState(t *testing.T) {
	tests := []struct {
		state    State
		valid    bool
		terminal bool
	}{
		{StateCreated, true, false},
		{StateQuoteToApprove, true, false},
		{StateQuoteApproved, true, false},
		{StatePOToApprove, true, false},
		{StateTicketIssued, true, false},
		{StateInvoiceIssued, true, false},
		{StateSettled, true, true},
		{StateCancelled, true, true},
		{State("ARCHIVED"), false, false},
		{State(""), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.state.IsValid())
			assert.Equal(t, tt.terminal, tt.state.IsTerminal())
		})
	}
}

func TestTriggerFor(t *testing.T) {
	got, ok := TriggerFor(StateTicketIssued)
	require.True(t, ok)
	assert.Equal(t, TriggerIssueTicket, got)

	_, ok = TriggerFor(StateCreated)
	assert.False(t, ok, "CREATED is never a target")
	assert.Equal(t, "CANCEL", TriggerCancel.String())
}

func TestLifecycleGraph_Edges(t *testing.T) {
	forward := map[State]State{
		StateCreated:        StateQuoteToApprove,
		StateQuoteToApprove: StateQuoteApproved,
		StateQuoteApproved:  StatePOToApprove,
		StatePOToApprove:    StateTicketIssued,
		StateTicketIssued:   StateInvoiceIssued,
		StateInvoiceIssued:  StateSettled,
	}

	for from, to := range forward {
		moves := lifecycleGraph[from]
		require.Len(t, moves, 2, "from %s", from)
		assert.Equal(t, to, moves[0].to, "forward edge listed first")
		assert.Equal(t, StateCancelled, moves[1].to)
		assert.Equal(t, TriggerCancel, moves[1].trigger)

		want, _ := TriggerFor(to)
		assert.Equal(t, want, moves[0].trigger)
	}

	assert.Empty(t, lifecycleGraph[StateSettled])
	assert.Empty(t, lifecycleGraph[StateCancelled])
}

func TestLifecycleGraph_NoSkipping(t *testing.T) {
	_, ok := lifecycleGraph.find(StateCreated, StateQuoteApproved)
	assert.False(t, ok)
	_, ok = lifecycleGraph.find(StateTicketIssued, StateSettled)
	assert.False(t, ok)
	_, ok = lifecycleGraph.find(StateQuoteApproved, StateQuoteToApprove)
	assert.False(t, ok, "no backward edges")
}

func TestLifecycleGraph_Checks(t *testing.T) {
	ctx := context.Background()

	issue, ok := lifecycleGraph.find(StatePOToApprove, StateTicketIssued)
	require.True(t, ok)
	assert.NoError(t, issue.check(ctx, Record{}))
	assert.ErrorContains(t, issue.check(ctx, Record{POReference: "BC-9"}), "already recorded")

	invoice, ok := lifecycleGraph.find(StateTicketIssued, StateInvoiceIssued)
	require.True(t, ok)
	assert.NoError(t, invoice.check(ctx, Record{}))
	assert.Error(t, invoice.check(ctx, Record{InvoiceReference: "FA-1"}))

	settle, ok := lifecycleGraph.find(StateInvoiceIssued, StateSettled)
	require.True(t, ok)
	assert.ErrorContains(t, settle.check(ctx, Record{}), "not recorded")
	assert.NoError(t, settle.check(ctx, Record{InvoiceReference: "FA-1"}))
}

func TestGraphEdge_PanicsOnBadTarget(t *testing.T) {
	assert.Panics(t, func() { graph{}.edge(StateCreated, StateCreated, nil) })
	assert.Panics(t, func() { graph{}.edge(State("NOPE"), StateCancelled, nil) })
}
