package workflow

// Trigger represents an operator action that can cause a state transition
type Trigger string

const (
	TriggerRequestQuote Trigger = "REQUEST_QUOTE_APPROVAL"
	TriggerApproveQuote Trigger = "APPROVE_QUOTE"
	TriggerRequestPO    Trigger = "REQUEST_PO"
	TriggerIssueTicket  Trigger = "ISSUE_TICKET"
	TriggerIssueInvoice Trigger = "ISSUE_INVOICE"
	TriggerSettle       Trigger = "SETTLE"
	TriggerCancel       Trigger = "CANCEL"
)

// triggerByTarget maps each reachable target state to the action that reaches it
var triggerByTarget = map[State]Trigger{
	StateQuoteToApprove: TriggerRequestQuote,
	StateQuoteApproved:  TriggerApproveQuote,
	StatePOToApprove:    TriggerRequestPO,
	StateTicketIssued:   TriggerIssueTicket,
	StateInvoiceIssued:  TriggerIssueInvoice,
	StateSettled:        TriggerSettle,
	StateCancelled:      TriggerCancel,
}

// TriggerFor returns the action reaching the target state
func TriggerFor(target State) (Trigger, bool) {
	t, ok := triggerByTarget[target]
	return t, ok
}

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
