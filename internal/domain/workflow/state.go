package workflow

// State represents a lifecycle state of a commercial document
type State string

const (
	StateCreated        State = "CREATED"
	StateQuoteToApprove State = "QUOTE_TO_APPROVE"
	StateQuoteApproved  State = "QUOTE_APPROVED"
	StatePOToApprove    State = "PO_TO_APPROVE"
	StateTicketIssued   State = "TICKET_ISSUED"
	StateInvoiceIssued  State = "INVOICE_ISSUED"
	StateSettled        State = "SETTLED"
	StateCancelled      State = "CANCELLED"
)

// orderedStates lists states in lifecycle order
var orderedStates = []State{
	StateCreated,
	StateQuoteToApprove,
	StateQuoteApproved,
	StatePOToApprove,
	StateTicketIssued,
	StateInvoiceIssued,
	StateSettled,
	StateCancelled,
}

var validStates = map[State]bool{
	StateCreated:        true,
	StateQuoteToApprove: true,
	StateQuoteApproved:  true,
	StatePOToApprove:    true,
	StateTicketIssued:   true,
	StateInvoiceIssued:  true,
	StateSettled:        true,
	StateCancelled:      true,
}

var terminalStates = map[State]bool{
	StateSettled:   true,
	StateCancelled: true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid lifecycle state
func (s State) IsValid() bool {
	return validStates[s]
}
