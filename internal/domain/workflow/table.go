package workflow

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidState is returned for a record whose stored state is unknown
var ErrInvalidState = errors.New("invalid state")

// check refuses a move by returning the reason. It only looks at the record.
type check func(ctx context.Context, rec Record) error

// move is one edge of the lifecycle graph
type move struct {
	trigger Trigger
	to      State
	check   check
}

// graph maps each state to the moves it allows, in lifecycle order
type graph map[State][]move

// edge adds a move out of from. The trigger is derived from the target.
func (g graph) edge(from, to State, c check) graph {
	trigger, ok := TriggerFor(to)
	if !ok || !from.IsValid() {
		panic(fmt.Sprintf("workflow: bad edge %s -> %s", from, to))
	}
	g[from] = append(g[from], move{trigger: trigger, to: to, check: c})
	return g
}

// find returns the move from one state to another
func (g graph) find(from, to State) (move, bool) {
	for _, m := range g[from] {
		if m.to == to {
			return m, true
		}
	}
	return move{}, false
}

// lifecycleGraph is the forward chain plus a cancel edge out of every
// non-terminal state
var lifecycleGraph = func() graph {
	g := graph{}.
		edge(StateCreated, StateQuoteToApprove, nil).
		edge(StateQuoteToApprove, StateQuoteApproved, nil).
		edge(StateQuoteApproved, StatePOToApprove, nil).
		edge(StatePOToApprove, StateTicketIssued, poNotRecorded).
		edge(StateTicketIssued, StateInvoiceIssued, invoiceNotRecorded).
		edge(StateInvoiceIssued, StateSettled, settleable)

	for _, s := range orderedStates {
		if !s.IsTerminal() {
			g.edge(s, StateCancelled, nil)
		}
	}
	return g
}()

func poNotRecorded(_ context.Context, rec Record) error {
	if rec.POReference != "" {
		return fmt.Errorf("PO reference %q already recorded", rec.POReference)
	}
	return nil
}

func invoiceNotRecorded(_ context.Context, rec Record) error {
	if rec.InvoiceReference != "" {
		return fmt.Errorf("invoice reference %q already recorded", rec.InvoiceReference)
	}
	return nil
}

func settleable(_ context.Context, rec Record) error {
	if rec.InvoiceReference == "" {
		return errors.New("invoice reference not recorded")
	}
	if rec.SettledAt != nil {
		return errors.New("settlement already recorded")
	}
	return nil
}
