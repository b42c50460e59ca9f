// Package pricing keeps the three commission representations of a comparison group and
// its two currency-converted price lines consistent.
//
// All functions are pure: a State goes in, a new State comes out. The commission field the
// operator edited last is authoritative, every other field is derived from it.
package pricing

import (
	"math"

	"github.com/garyjia/travel-backoffice/internal/domain/errs"
)

// Field identifies which commission representation was edited
type Field string

const (
	FieldRatePercent     Field = "rate_percent"
	FieldPerUnitMarkup   Field = "per_unit_markup"
	FieldAggregateMarkup Field = "aggregate_markup"
)

// IsValid returns true for the three known commission fields
func (f Field) IsValid() bool {
	switch f {
	case FieldRatePercent, FieldPerUnitMarkup, FieldAggregateMarkup:
		return true
	default:
		return false
	}
}

// String returns the string representation of the field
func (f Field) String() string {
	return string(f)
}

// Side selects the supplier or the client price line for currency conversion
type Side string

const (
	SideSupplier Side = "supplier"
	SideClient   Side = "client"
)

// IsValid returns true for supplier and client
func (s Side) IsValid() bool {
	return s == SideSupplier || s == SideClient
}

// CommissionPolicy holds the three interchangeable commission representations
type CommissionPolicy struct {
	RatePercent     float64 `json:"rate_percent"`
	PerUnitMarkup   float64 `json:"per_unit_markup"`
	AggregateMarkup float64 `json:"aggregate_markup"`
	ClientUnitPrice float64 `json:"client_unit_price"`
	LastEdited      Field   `json:"last_edited,omitempty"`
}

// Value returns the current value of the given field
func (p CommissionPolicy) Value(f Field) float64 {
	switch f {
	case FieldRatePercent:
		return p.RatePercent
	case FieldPerUnitMarkup:
		return p.PerUnitMarkup
	case FieldAggregateMarkup:
		return p.AggregateMarkup
	default:
		return 0
	}
}

// IsPriced reports whether a commission edit has been applied
func (p CommissionPolicy) IsPriced() bool {
	return p.LastEdited.IsValid()
}

// State is the pricing input of one comparison group plus its derived commission
type State struct {
	// ReferenceUnitPrice is the nightly price of the group's reference entry (source currency)
	ReferenceUnitPrice float64
	RoomCount          int
	// ExchangeRate converts source currency into local currency
	ExchangeRate float64
	Commission   CommissionPolicy
}

// Edit is a single operator edit of one commission field
type Edit struct {
	Field Field   `json:"field"`
	Value float64 `json:"value"`
}

// LocalAmounts is a price line converted into local currency
type LocalAmounts struct {
	Side           Side    `json:"side"`
	UnitPrice      float64 `json:"unit_price"`
	ExchangeRate   float64 `json:"exchange_rate"`
	LocalUnitPrice float64 `json:"local_unit_price"`
	LocalTotal     float64 `json:"local_total"`
}

// Recompute applies one commission edit and derives every other commission field.
// When the reference price is not positive, a rate derived from a markup falls back
// to 0 instead of failing.
func Recompute(s State, e Edit) (State, error) {
	if err := validateState(s); err != nil {
		return State{}, err
	}
	if !e.Field.IsValid() {
		return State{}, errs.Validation("field", "unknown commission field "+string(e.Field))
	}
	if !isFinite(e.Value) {
		return State{}, errs.Validation(e.Field.String(), "must be a finite number")
	}

	ref := s.ReferenceUnitPrice
	rooms := float64(s.RoomCount)

	var p CommissionPolicy
	switch e.Field {
	case FieldRatePercent:
		p.RatePercent = e.Value
		p.PerUnitMarkup = ref * e.Value / 100
		p.AggregateMarkup = p.PerUnitMarkup * rooms
	case FieldPerUnitMarkup:
		p.PerUnitMarkup = e.Value
		p.AggregateMarkup = e.Value * rooms
		p.RatePercent = RatePercentFromMarkup(ref, e.Value)
	case FieldAggregateMarkup:
		p.AggregateMarkup = e.Value
		p.PerUnitMarkup = e.Value / rooms
		p.RatePercent = RatePercentFromMarkup(ref, p.PerUnitMarkup)
	}
	p.ClientUnitPrice = ref + p.PerUnitMarkup
	p.LastEdited = e.Field

	for _, v := range []float64{p.RatePercent, p.PerUnitMarkup, p.AggregateMarkup, p.ClientUnitPrice} {
		if !isFinite(v) {
			return State{}, &errs.ConsistencyError{Reason: "derived commission is not a finite number"}
		}
	}

	s.Commission = p
	return s, nil
}

// Reprice re-applies the last edited commission field, e.g. after the reference entry
// or the room count changed. An unpriced state only refreshes the client unit price.
func Reprice(s State) (State, error) {
	if !s.Commission.IsPriced() {
		if err := validateState(s); err != nil {
			return State{}, err
		}
		s.Commission.ClientUnitPrice = s.ReferenceUnitPrice
		return s, nil
	}
	return Recompute(s, Edit{Field: s.Commission.LastEdited, Value: s.Commission.Value(s.Commission.LastEdited)})
}

// ApplyCommissionEdit applies one commission edit and returns the derived policy
func (s State) ApplyCommissionEdit(field Field, value float64) (CommissionPolicy, error) {
	next, err := Recompute(s, Edit{Field: field, Value: value})
	if err != nil {
		return CommissionPolicy{}, err
	}
	return next.Commission, nil
}

// ClientUnitPrice returns the reference price plus the per-unit markup
func (s State) ClientUnitPrice() float64 {
	return s.ReferenceUnitPrice + s.Commission.PerUnitMarkup
}

// ApplyExchangeRateEdit converts one price line into local currency at the given rate.
// Commission fields are left untouched.
func (s State) ApplyExchangeRateEdit(side Side, rate float64) (LocalAmounts, error) {
	if err := validateState(s); err != nil {
		return LocalAmounts{}, err
	}
	if !side.IsValid() {
		return LocalAmounts{}, errs.Validation("side", "unknown price line "+string(side))
	}
	if !isFinite(rate) || rate <= 0 {
		return LocalAmounts{}, errs.Validation("exchange_rate", "must be a positive number")
	}

	unit := s.ReferenceUnitPrice
	if side == SideClient {
		unit = s.ClientUnitPrice()
	}

	localUnit := unit * rate
	return LocalAmounts{
		Side:           side,
		UnitPrice:      unit,
		ExchangeRate:   rate,
		LocalUnitPrice: localUnit,
		LocalTotal:     localUnit * float64(s.RoomCount),
	}, nil
}

// RatePercentFromMarkup derives the commission rate from a per-unit markup.
// A non-positive reference price yields 0.
func RatePercentFromMarkup(referenceUnitPrice, perUnitMarkup float64) float64 {
	if referenceUnitPrice <= 0 {
		return 0
	}
	return perUnitMarkup / referenceUnitPrice * 100
}

func validateState(s State) error {
	if s.RoomCount < 1 {
		return errs.Validation("room_count", "must be at least 1")
	}
	if !isFinite(s.ReferenceUnitPrice) {
		return errs.Validation("reference_unit_price", "must be a finite number")
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
