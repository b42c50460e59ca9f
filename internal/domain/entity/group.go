package entity

import (
	"time"

	"github.com/garyjia/travel-backoffice/internal/domain/errs"
	"github.com/garyjia/travel-backoffice/internal/domain/pricing"
	"github.com/garyjia/travel-backoffice/internal/domain/stay"
)

// BenchmarkEntry is one candidate nightly price quotation from a supplier platform
type BenchmarkEntry struct {
	ID           int64     `json:"id"`
	GroupID      int64     `json:"group_id"`
	Platform     string    `json:"platform"`
	UnitPrice    float64   `json:"unit_price"`
	Currency     string    `json:"currency"`
	ExchangeRate float64   `json:"exchange_rate"`
	RoomCount    int       `json:"room_count"`
	IsReference  bool      `json:"is_reference"`
	CreatedAt    time.Time `json:"created_at"`
}

// Validate checks the entry before it joins a group
func (e *BenchmarkEntry) Validate() error {
	if e.Platform == "" {
		return errs.Validation("platform", "is required")
	}
	if e.UnitPrice < 0 {
		return errs.Validation("unit_price", "must not be negative")
	}
	if e.Currency == "" {
		return errs.Validation("currency", "is required")
	}
	if e.ExchangeRate <= 0 {
		return errs.Validation("exchange_rate", "must be positive")
	}
	if e.RoomCount < 1 {
		return errs.Validation("room_count", "must be at least 1")
	}
	return nil
}

// ClientLine is the finalized client price of a group. Once present, the group's
// reference entry is locked and the group may be consolidated.
type ClientLine struct {
	Currency        string    `json:"currency"`
	ClientUnitPrice float64   `json:"client_unit_price"`
	ExchangeRate    float64   `json:"exchange_rate"`
	LocalUnitPrice  float64   `json:"local_unit_price"`
	LocalAmount     float64   `json:"local_amount"`
	FinalizedAt     time.Time `json:"finalized_at"`
}

// BenchmarkGroup is one stay comparison across supplier platforms
type BenchmarkGroup struct {
	ID          int64                    `json:"id"`
	ProductLine ProductLine              `json:"product_line"`
	Label       string                   `json:"label"`
	Stay        stay.Period              `json:"stay"`
	Entries     []*BenchmarkEntry        `json:"entries"`
	Commission  pricing.CommissionPolicy `json:"commission"`
	// ClientExchangeRate overrides the reference entry's rate for the client line; 0 means unset
	ClientExchangeRate float64     `json:"client_exchange_rate,omitempty"`
	ClientLine         *ClientLine `json:"client_line,omitempty"`
	// QuoteID is set once the group has been consolidated; 0 otherwise
	QuoteID   int64     `json:"quote_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Reference returns the group's reference entry, or nil when none is marked
func (g *BenchmarkGroup) Reference() *BenchmarkEntry {
	for _, e := range g.Entries {
		if e.IsReference {
			return e
		}
	}
	return nil
}

// Entry returns the entry with the given id, or nil
func (g *BenchmarkGroup) Entry(id int64) *BenchmarkEntry {
	for _, e := range g.Entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// HasClientLine reports whether the group's pricing is finalized
func (g *BenchmarkGroup) HasClientLine() bool {
	return g.ClientLine != nil
}

// IsConsolidated reports whether the group already contributes to a quote
func (g *BenchmarkGroup) IsConsolidated() bool {
	return g.QuoteID != 0
}

// PricingState builds the pricing input from the reference entry
func (g *BenchmarkGroup) PricingState() (pricing.State, error) {
	ref := g.Reference()
	if ref == nil {
		return pricing.State{}, errs.Validation("reference", "group has no reference entry")
	}
	return pricing.State{
		ReferenceUnitPrice: ref.UnitPrice,
		RoomCount:          ref.RoomCount,
		ExchangeRate:       ref.ExchangeRate,
		Commission:         g.Commission,
	}, nil
}
