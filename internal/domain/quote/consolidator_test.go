package quote

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/garyjia/travel-backoffice/internal/domain/entity"
	"github.com/garyjia/travel-backoffice/internal/domain/errs"
	"github.com/garyjia/travel-backoffice/internal/domain/pricing"
	"github.com/garyjia/travel-backoffice/internal/domain/stay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC)

func newGroup(id int64) *entity.BenchmarkGroup {
	return &entity.BenchmarkGroup{
		ID:          id,
		ProductLine: entity.ProductLineHotel,
		Label:       "Dakar Radisson",
		Stay: stay.Period{
			Arrival:   time.Date(2026, time.February, 13, 14, 0, 0, 0, time.UTC),
			Departure: time.Date(2026, time.February, 14, 10, 0, 0, 0, time.UTC),
			Nights:    1,
		},
		Entries: []*entity.BenchmarkEntry{
			{ID: id*10 + 1, GroupID: id, Platform: "booking", UnitPrice: 100, Currency: "EUR", ExchangeRate: 4800, RoomCount: 2},
			{ID: id*10 + 2, GroupID: id, Platform: "expedia", UnitPrice: 110, Currency: "EUR", ExchangeRate: 4800, RoomCount: 2},
		},
	}
}

func pricedGroup(t *testing.T, id int64, amount float64) *entity.BenchmarkGroup {
	t.Helper()
	g := newGroup(id)
	g.ClientLine = &entity.ClientLine{Currency: "MGA", LocalAmount: amount, FinalizedAt: now}
	return g
}

func TestMarkReference(t *testing.T) {
	g := newGroup(1)

	require.NoError(t, MarkReference(g, 11))
	assert.True(t, g.Entry(11).IsReference)
	assert.False(t, g.Entry(12).IsReference)

	// switching reference clears the previous one
	require.NoError(t, MarkReference(g, 12))
	assert.False(t, g.Entry(11).IsReference)
	assert.True(t, g.Entry(12).IsReference)
	assert.Equal(t, int64(12), g.Reference().ID)
}

func TestMarkReference_LockedAfterClientLine(t *testing.T) {
	g := newGroup(1)
	require.NoError(t, MarkReference(g, 11))
	g.ClientLine = &entity.ClientLine{LocalAmount: 1}

	err := MarkReference(g, 12)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrValidation))
	assert.True(t, g.Entry(11).IsReference, "reference must be unchanged")
}

func TestMarkReference_UnknownEntry(t *testing.T) {
	err := MarkReference(newGroup(1), 99)
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestFinalizeClientLine(t *testing.T) {
	g := newGroup(1)
	require.NoError(t, MarkReference(g, 11))

	state, err := g.PricingState()
	require.NoError(t, err)
	state, err = pricing.Recompute(state, pricing.Edit{Field: pricing.FieldRatePercent, Value: 5})
	require.NoError(t, err)
	g.Commission = state.Commission

	require.NoError(t, FinalizeClientLine(g, 4800, "MGA", now))
	require.NotNil(t, g.ClientLine)
	assert.InDelta(t, 105, g.ClientLine.ClientUnitPrice, 1e-9)
	assert.InDelta(t, 504000, g.ClientLine.LocalUnitPrice, 1e-9)
	assert.InDelta(t, 1008000, g.ClientLine.LocalAmount, 1e-9)
	assert.Equal(t, "MGA", g.ClientLine.Currency)

	err = FinalizeClientLine(g, 4800, "MGA", now)
	assert.True(t, errors.Is(err, errs.ErrValidation), "second client line must be rejected")
}

func TestFinalizeClientLine_Preconditions(t *testing.T) {
	t.Run("no reference", func(t *testing.T) {
		g := newGroup(1)
		g.Commission = pricing.CommissionPolicy{LastEdited: pricing.FieldRatePercent}
		assert.True(t, errors.Is(FinalizeClientLine(g, 1, "MGA", now), errs.ErrValidation))
	})

	t.Run("commission not set", func(t *testing.T) {
		g := newGroup(1)
		require.NoError(t, MarkReference(g, 11))
		assert.True(t, errors.Is(FinalizeClientLine(g, 1, "MGA", now), errs.ErrValidation))
	})

	t.Run("hotel without nights", func(t *testing.T) {
		g := newGroup(1)
		g.Stay = stay.Period{}
		require.NoError(t, MarkReference(g, 11))
		g.Commission = pricing.CommissionPolicy{LastEdited: pricing.FieldRatePercent}
		assert.True(t, errors.Is(FinalizeClientLine(g, 1, "MGA", now), errs.ErrValidation))
	})

	t.Run("attestation needs no stay", func(t *testing.T) {
		g := newGroup(1)
		g.ProductLine = entity.ProductLineAttestation
		g.Stay = stay.Period{}
		require.NoError(t, MarkReference(g, 11))
		g.Commission = pricing.CommissionPolicy{LastEdited: pricing.FieldPerUnitMarkup}
		assert.NoError(t, FinalizeClientLine(g, 1, "MGA", now))
	})
}

func TestConsolidate(t *testing.T) {
	a := pricedGroup(t, 1, 300000)
	b := pricedGroup(t, 2, 450000)

	q, err := Consolidate([]*entity.BenchmarkGroup{a, b}, Meta{CreatedBy: "ops", CreatedAt: now})
	require.NoError(t, err)
	assert.Equal(t, "750000", q.Total.String())
	assert.Equal(t, "MGA", q.Currency)
	assert.Equal(t, entity.ProductLineHotel, q.ProductLine)
	assert.Equal(t, []int64{1, 2}, q.GroupIDs())
	assert.True(t, strings.HasPrefix(q.Reference, "Q-"))

	reversed, err := Consolidate([]*entity.BenchmarkGroup{b, a}, Meta{Reference: "Q-FIXED"})
	require.NoError(t, err)
	assert.True(t, q.Total.Equal(reversed.Total))
	assert.Equal(t, "Q-FIXED", reversed.Reference)
}

func TestConsolidate_OrderIndependentWithFractions(t *testing.T) {
	amounts := []float64{0.1, 0.2, 0.3, 1e6 + 0.07, 12.345, 99999.99}
	var forward, backward []*entity.BenchmarkGroup
	for i, amt := range amounts {
		forward = append(forward, pricedGroup(t, int64(i+1), amt))
	}
	for i := len(forward) - 1; i >= 0; i-- {
		backward = append(backward, forward[i])
	}

	q1, err := Consolidate(forward, Meta{})
	require.NoError(t, err)
	q2, err := Consolidate(backward, Meta{})
	require.NoError(t, err)

	assert.True(t, q1.Total.Equal(q2.Total), "%s != %s", q1.Total, q2.Total)
	assert.Equal(t, "1100013.005", q1.Total.String())
}

func TestConsolidate_Validation(t *testing.T) {
	consolidated := pricedGroup(t, 3, 10)
	consolidated.QuoteID = 42

	attestation := pricedGroup(t, 4, 10)
	attestation.ProductLine = entity.ProductLineAttestation

	otherCurrency := pricedGroup(t, 5, 10)
	otherCurrency.ClientLine.Currency = "EUR"

	dup := pricedGroup(t, 6, 10)

	tests := []struct {
		name   string
		groups []*entity.BenchmarkGroup
	}{
		{"empty", nil},
		{"missing client line", []*entity.BenchmarkGroup{pricedGroup(t, 1, 10), newGroup(2)}},
		{"already consolidated", []*entity.BenchmarkGroup{consolidated}},
		{"mixed product lines", []*entity.BenchmarkGroup{pricedGroup(t, 1, 10), attestation}},
		{"mixed currencies", []*entity.BenchmarkGroup{pricedGroup(t, 1, 10), otherCurrency}},
		{"duplicate group", []*entity.BenchmarkGroup{dup, dup}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Consolidate(tt.groups, Meta{})
			require.Error(t, err)
			assert.Nil(t, q)
			assert.True(t, errors.Is(err, errs.ErrValidation))
		})
	}
}
