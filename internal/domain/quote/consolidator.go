// Package quote selects reference entries, finalizes client lines and consolidates
// priced comparison groups into a single billable quote.
package quote

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/garyjia/travel-backoffice/internal/domain/entity"
	"github.com/garyjia/travel-backoffice/internal/domain/errs"
	"github.com/garyjia/travel-backoffice/internal/domain/pricing"
)

// Meta carries the creation metadata of a quote
type Meta struct {
	Reference string
	CreatedBy string
	CreatedAt time.Time
}

// NewReference returns a human-readable quote reference
func NewReference() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "Q-" + id[:12]
}

// MarkReference makes entryID the single reference entry of the group.
// The reference is locked once a client line has been finalized.
func MarkReference(group *entity.BenchmarkGroup, entryID int64) error {
	if group.HasClientLine() {
		return errs.Validation("reference", "commission already validated, reference is locked")
	}
	if group.Entry(entryID) == nil {
		return errs.Validation("entry_id", fmt.Sprintf("entry %d is not part of group %d", entryID, group.ID))
	}

	for _, e := range group.Entries {
		e.IsReference = e.ID == entryID
	}
	return nil
}

// FinalizeClientLine derives the client line from the group's reference entry and
// commission, converted at clientRate into localCurrency.
func FinalizeClientLine(group *entity.BenchmarkGroup, clientRate float64, localCurrency string, now time.Time) error {
	if group.HasClientLine() {
		return errs.Validation("client_line", "group already has a finalized client line")
	}
	if group.ProductLine == entity.ProductLineHotel && !group.Stay.IsSet() {
		return errs.Validation("stay", "hotel group needs a stay of at least one night")
	}
	if !group.Commission.IsPriced() {
		return errs.Validation("commission", "commission has not been set")
	}

	state, err := group.PricingState()
	if err != nil {
		return err
	}

	local, err := state.ApplyExchangeRateEdit(pricing.SideClient, clientRate)
	if err != nil {
		return err
	}

	group.ClientLine = &entity.ClientLine{
		Currency:        localCurrency,
		ClientUnitPrice: local.UnitPrice,
		ExchangeRate:    local.ExchangeRate,
		LocalUnitPrice:  local.LocalUnitPrice,
		LocalAmount:     local.LocalTotal,
		FinalizedAt:     now,
	}
	return nil
}

// Consolidate sums the client-line amounts of the given groups into a quote.
// The total is computed in exact decimal arithmetic, so it does not depend on the
// order of groups.
func Consolidate(groups []*entity.BenchmarkGroup, meta Meta) (*entity.Quote, error) {
	if len(groups) == 0 {
		return nil, errs.Validation("group_ids", "at least one group is required")
	}

	seen := make(map[int64]bool, len(groups))
	productLine := groups[0].ProductLine
	currency := ""
	total := decimal.Zero
	contributions := make([]entity.QuoteContribution, 0, len(groups))

	for _, g := range groups {
		if seen[g.ID] {
			return nil, errs.Validation("group_ids", fmt.Sprintf("group %d listed twice", g.ID))
		}
		seen[g.ID] = true

		if !g.HasClientLine() {
			return nil, errs.Validation("group_ids", fmt.Sprintf("group %d has no finalized client line", g.ID))
		}
		if g.IsConsolidated() {
			return nil, errs.Validation("group_ids", fmt.Sprintf("group %d already belongs to quote %d", g.ID, g.QuoteID))
		}
		if g.ProductLine != productLine {
			return nil, errs.Validation("group_ids", "groups belong to different product lines")
		}
		if currency == "" {
			currency = g.ClientLine.Currency
		} else if g.ClientLine.Currency != currency {
			return nil, errs.Validation("group_ids", "groups are priced in different currencies")
		}

		total = total.Add(decimal.NewFromFloat(g.ClientLine.LocalAmount))
		contributions = append(contributions, entity.QuoteContribution{
			GroupID:     g.ID,
			Label:       g.Label,
			Nights:      g.Stay.Nights,
			LocalAmount: g.ClientLine.LocalAmount,
		})
	}

	reference := meta.Reference
	if reference == "" {
		reference = NewReference()
	}

	return &entity.Quote{
		Reference:     reference,
		ProductLine:   productLine,
		Contributions: contributions,
		Total:         total,
		Currency:      currency,
		CreatedBy:     meta.CreatedBy,
		CreatedAt:     meta.CreatedAt,
	}, nil
}
