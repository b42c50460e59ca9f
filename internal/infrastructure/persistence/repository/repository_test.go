package repository

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appwf "github.com/garyjia/travel-backoffice/internal/application/workflow"
	"github.com/garyjia/travel-backoffice/internal/domain/entity"
	"github.com/garyjia/travel-backoffice/internal/domain/errs"
	"github.com/garyjia/travel-backoffice/internal/domain/event"
	"github.com/garyjia/travel-backoffice/internal/domain/pricing"
	"github.com/garyjia/travel-backoffice/internal/domain/stay"
	"github.com/garyjia/travel-backoffice/internal/domain/workflow"
	"github.com/garyjia/travel-backoffice/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/travel-backoffice/migrations"
	"github.com/garyjia/travel-backoffice/pkg/database"
)

type testStore struct {
	db        *sql.DB
	tx        *sqlite.DB
	groups    *GroupRepository
	quotes    *QuoteRepository
	lifecycle *LifecycleRepository
	history   *HistoryRepository
}

func newTestStore(t *testing.T) *testStore {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "backoffice.db"), MaxOpenConns: 1}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).RunMigrations(migrations.FS))

	return &testStore{
		db:        db.DB,
		tx:        sqlite.NewDB(db.DB, logger),
		groups:    NewGroupRepository(db.DB, logger).(*GroupRepository),
		quotes:    NewQuoteRepository(db.DB, logger).(*QuoteRepository),
		lifecycle: NewLifecycleRepository(db.DB, logger).(*LifecycleRepository),
		history:   NewHistoryRepository(db.DB, logger).(*HistoryRepository),
	}
}

var now = time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC)

// seedGroup stores a hotel group with two entries, the first being the reference
func (s *testStore) seedGroup(t *testing.T, label string) *entity.BenchmarkGroup {
	t.Helper()
	ctx := context.Background()

	period, err := stay.NewPeriod(
		time.Date(2026, time.March, 10, 15, 0, 0, 0, time.UTC),
		time.Date(2026, time.March, 12, 10, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)

	g := &entity.BenchmarkGroup{
		ProductLine: entity.ProductLineHotel,
		Label:       label,
		Stay:        period,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, s.groups.Create(ctx, g))

	for i, price := range []float64{100, 120} {
		e := &entity.BenchmarkEntry{
			GroupID:      g.ID,
			Platform:     []string{"booking", "expedia"}[i],
			UnitPrice:    price,
			Currency:     "EUR",
			ExchangeRate: 4800,
			RoomCount:    2,
			IsReference:  i == 0,
			CreatedAt:    now,
		}
		require.NoError(t, s.groups.AddEntry(ctx, e))
		g.Entries = append(g.Entries, e)
	}
	return g
}

func (s *testStore) finalize(t *testing.T, g *entity.BenchmarkGroup, amount float64) {
	t.Helper()
	g.Commission = pricing.CommissionPolicy{RatePercent: 5, PerUnitMarkup: 5, AggregateMarkup: 10, ClientUnitPrice: 105, LastEdited: pricing.FieldRatePercent}
	g.ClientLine = &entity.ClientLine{Currency: "MGA", ClientUnitPrice: 105, ExchangeRate: 4800, LocalUnitPrice: amount / 2, LocalAmount: amount, FinalizedAt: now}
	require.NoError(t, s.groups.Update(context.Background(), g))
}

func TestGroupRepository_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	g := s.seedGroup(t, "Carlton")
	s.finalize(t, g, 1008000)

	got, err := s.groups.GetByID(ctx, g.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, entity.ProductLineHotel, got.ProductLine)
	assert.Equal(t, 2, got.Stay.Nights)
	assert.True(t, got.Stay.Arrival.Equal(g.Stay.Arrival))
	require.Len(t, got.Entries, 2)
	assert.Equal(t, "booking", got.Entries[0].Platform)
	assert.Equal(t, g.Entries[0].ID, got.Reference().ID)
	assert.Equal(t, pricing.FieldRatePercent, got.Commission.LastEdited)
	require.NotNil(t, got.ClientLine)
	assert.InDelta(t, 1008000, got.ClientLine.LocalAmount, 1e-9)
	assert.False(t, got.IsConsolidated())

	missing, err := s.groups.GetByID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGroupRepository_SetReference(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	g := s.seedGroup(t, "Ibis")

	require.NoError(t, s.groups.SetReference(ctx, g.ID, g.Entries[1].ID))

	got, err := s.groups.GetByID(ctx, g.ID)
	require.NoError(t, err)
	assert.False(t, got.Entries[0].IsReference)
	assert.True(t, got.Entries[1].IsReference)

	other := s.seedGroup(t, "Novotel")
	err = s.groups.SetReference(ctx, g.ID, other.Entries[0].ID)
	assert.True(t, errors.Is(err, errs.ErrNotFound), "entry of another group")
}

func TestGroupRepository_SingleReferenceIsEnforced(t *testing.T) {
	s := newTestStore(t)
	g := s.seedGroup(t, "Ibis")

	err := s.groups.AddEntry(context.Background(), &entity.BenchmarkEntry{
		GroupID: g.ID, Platform: "agoda", UnitPrice: 90, Currency: "EUR",
		ExchangeRate: 4800, RoomCount: 2, IsReference: true, CreatedAt: now,
	})
	assert.Error(t, err)
}

func TestGroupRepository_UpdateEntryRateAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	first := s.seedGroup(t, "First")
	s.seedGroup(t, "Second")

	require.NoError(t, s.groups.UpdateEntryRate(ctx, first.Entries[0].ID, 4750))
	assert.True(t, errors.Is(s.groups.UpdateEntryRate(ctx, 12345, 1), errs.ErrNotFound))

	groups, err := s.groups.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "Second", groups[0].Label)
	assert.InDelta(t, 4750, groups[1].Entries[0].ExchangeRate, 1e-9)

	page, err := s.groups.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "First", page[0].Label)
}

func TestQuoteRepository_CreateLinksGroups(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := s.seedGroup(t, "A")
	b := s.seedGroup(t, "B")

	q := &entity.Quote{
		Reference:   "Q-0123456789AB",
		ProductLine: entity.ProductLineHotel,
		Contributions: []entity.QuoteContribution{
			{GroupID: b.ID, Label: "B", Nights: 2, LocalAmount: 0.1},
			{GroupID: a.ID, Label: "A", Nights: 2, LocalAmount: 0.2},
		},
		Total:     decimal.RequireFromString("0.3"),
		Currency:  "MGA",
		CreatedBy: "ops",
		CreatedAt: now,
	}
	require.NoError(t, s.quotes.Create(ctx, q))
	require.NotZero(t, q.ID)

	got, err := s.quotes.GetByReference(ctx, "Q-0123456789AB")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "0.3", got.Total.String())
	assert.Equal(t, []int64{b.ID, a.ID}, got.GroupIDs())

	linked, err := s.groups.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, q.ID, linked.QuoteID)

	none, err := s.quotes.GetByReference(ctx, "Q-NOPE")
	require.NoError(t, err)
	assert.Nil(t, none)

	list, err := s.quotes.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Contributions, 2)
}

func TestQuoteRepository_GroupConsolidatedTwiceRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := s.seedGroup(t, "A")
	b := s.seedGroup(t, "B")

	first := &entity.Quote{
		Reference: "Q-FIRST", ProductLine: entity.ProductLineHotel, Currency: "MGA", CreatedAt: now,
		Contributions: []entity.QuoteContribution{{GroupID: a.ID, Label: "A", LocalAmount: 10}},
		Total:         decimal.NewFromInt(10),
	}
	require.NoError(t, s.quotes.Create(ctx, first))

	second := &entity.Quote{
		Reference: "Q-SECOND", ProductLine: entity.ProductLineHotel, Currency: "MGA", CreatedAt: now,
		Contributions: []entity.QuoteContribution{
			{GroupID: b.ID, Label: "B", LocalAmount: 20},
			{GroupID: a.ID, Label: "A", LocalAmount: 10},
		},
		Total: decimal.NewFromInt(30),
	}
	err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.quotes.Create(txCtx, second)
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrConflict))

	gone, err := s.quotes.GetByReference(ctx, "Q-SECOND")
	require.NoError(t, err)
	assert.Nil(t, gone)

	unlinked, err := s.groups.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, unlinked.IsConsolidated(), "link rolled back with the quote")
}

func (s *testStore) seedQuote(t *testing.T) *entity.Quote {
	t.Helper()
	g := s.seedGroup(t, "Lifecycle")
	q := &entity.Quote{
		Reference: "Q-LIFECYCLE01", ProductLine: entity.ProductLineHotel, Currency: "MGA", CreatedAt: now,
		Contributions: []entity.QuoteContribution{{GroupID: g.ID, Label: g.Label, LocalAmount: 1008000}},
		Total:         decimal.NewFromInt(1008000),
	}
	require.NoError(t, s.quotes.Create(context.Background(), q))
	return q
}

func TestQuoteRepository_DuplicateReferenceConflicts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := s.seedGroup(t, "A")
	b := s.seedGroup(t, "B")

	newQuote := func(groupID int64) *entity.Quote {
		return &entity.Quote{
			Reference: "Q-SAME", ProductLine: entity.ProductLineHotel, Currency: "MGA", CreatedAt: now,
			Contributions: []entity.QuoteContribution{{GroupID: groupID, LocalAmount: 1}},
			Total:         decimal.NewFromInt(1),
		}
	}
	require.NoError(t, s.quotes.Create(ctx, newQuote(a.ID)))

	err := s.quotes.Create(ctx, newQuote(b.ID))
	var conflict *errs.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "quote", conflict.Entity)
	assert.Equal(t, "Q-SAME", conflict.Actual)
}

func TestLifecycleRepository_StartTwiceConflicts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	q := s.seedQuote(t)

	rec := workflow.NewRecord(q.ID, now)
	require.NoError(t, s.lifecycle.Create(ctx, &rec))

	again := workflow.NewRecord(q.ID, now.Add(time.Minute))
	err := s.lifecycle.Create(ctx, &again)
	assert.True(t, errors.Is(err, errs.ErrConflict), "got %v", err)
}

func TestLifecycleRepository_SaveChecksPriorState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	q := s.seedQuote(t)

	rec := workflow.NewRecord(q.ID, now)
	require.NoError(t, s.lifecycle.Create(ctx, &rec))

	next, err := workflow.Apply(ctx, rec, workflow.Request{Target: workflow.StateQuoteToApprove}, now.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, s.lifecycle.Save(ctx, &next, workflow.StateCreated))

	got, err := s.lifecycle.Get(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateQuoteToApprove, got.State)
	require.NotNil(t, got.RequestedAt)
	assert.True(t, got.RequestedAt.Equal(now.Add(time.Hour)))
	assert.Nil(t, got.ApprovedAt)

	// a second writer still believing CREATED loses
	stale := next
	stale.State = workflow.StateCancelled
	err = s.lifecycle.Save(ctx, &stale, workflow.StateCreated)
	var conflict *errs.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "CREATED", conflict.Expected)
	assert.Equal(t, "QUOTE_TO_APPROVE", conflict.Actual)

	missing := workflow.NewRecord(999, now)
	assert.True(t, errors.Is(s.lifecycle.Save(ctx, &missing, workflow.StateCreated), errs.ErrNotFound))

	counts, err := s.lifecycle.CountByState(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[workflow.State]int{workflow.StateQuoteToApprove: 1}, counts)
}

func TestLifecycleEngine_EndToEnd(t *testing.T) {
	s := newTestStore(t)
	ctx := event.WithCorrelationID(context.Background(), "req-e2e")
	q := s.seedQuote(t)

	engine := appwf.NewEngine(s.lifecycle, s.history, s.quotes, s.tx)
	_, err := engine.Start(ctx, q.ID, "ops")
	require.NoError(t, err)

	steps := []workflow.Request{
		{Target: workflow.StateQuoteToApprove},
		{Target: workflow.StateQuoteApproved},
		{Target: workflow.StatePOToApprove},
		{Target: workflow.StateTicketIssued, POReference: "BC-001"},
		{Target: workflow.StateInvoiceIssued, InvoiceReference: "FA-2026-001"},
		{Target: workflow.StateSettled},
	}
	expected := workflow.StateCreated
	for _, req := range steps {
		rec, err := engine.Transition(ctx, q.ID, appwf.TransitionCommand{ExpectedState: expected, Request: req, Actor: "ops"})
		require.NoError(t, err, "to %s", req.Target)
		expected = rec.State
	}

	rec, err := engine.GetRecord(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateSettled, rec.State)
	assert.Equal(t, "BC-001", rec.POReference)
	assert.Equal(t, "FA-2026-001", rec.InvoiceReference)
	assert.NotNil(t, rec.SettledAt)

	history, err := engine.History(ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, history, 7)
	assert.Equal(t, "SETTLED", history[6].ToState)
	assert.Equal(t, "INVOICE_ISSUED", history[6].FromState)
	assert.Equal(t, "req-e2e", history[6].CorrelationID)
	assert.JSONEq(t, `{"po_reference":"BC-001"}`, history[4].Detail)

	_, err = engine.Transition(ctx, q.ID, appwf.TransitionCommand{
		ExpectedState: workflow.StateSettled,
		Request:       workflow.Request{Target: workflow.StateCancelled, CancelReason: "late", CancelCondition: "none"},
	})
	assert.True(t, errors.Is(err, errs.ErrInvalidTransition))
}
