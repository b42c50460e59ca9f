package entity

// ProductLine identifies which back-office product a document belongs to
type ProductLine string

const (
	ProductLineAttestation ProductLine = "ATTESTATION" // air-ticket attestation
	ProductLineHotel       ProductLine = "HOTEL"       // hotel reservation
)

// IsValid returns true for the supported product lines
func (p ProductLine) IsValid() bool {
	return p == ProductLineAttestation || p == ProductLineHotel
}

// String returns the string representation of the product line
func (p ProductLine) String() string {
	return string(p)
}

// ActionCreate is the action type of the first history entry of a lifecycle
const ActionCreate = "CREATE"

// Actor used when no operator is attached to a request
const ActorSystem = "system"
