package event

// Type identifies the type of domain event
type Type string

const (
	TypeGroupCreated          Type = "group.created"
	TypeGroupPriced           Type = "group.priced"
	TypeClientLineFinalized   Type = "group.client_line_finalized"
	TypeQuoteConsolidated     Type = "quote.consolidated"
	TypeLifecycleTransitioned Type = "lifecycle.transitioned"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeGroupCreated,
		TypeGroupPriced,
		TypeClientLineFinalized,
		TypeQuoteConsolidated,
		TypeLifecycleTransitioned:
		return true
	default:
		return false
	}
}
