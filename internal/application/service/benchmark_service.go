package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/travel-backoffice/internal/application/dispatcher"
	"github.com/garyjia/travel-backoffice/internal/application/port"
	"github.com/garyjia/travel-backoffice/internal/domain/entity"
	"github.com/garyjia/travel-backoffice/internal/domain/errs"
	"github.com/garyjia/travel-backoffice/internal/domain/event"
	"github.com/garyjia/travel-backoffice/internal/domain/pricing"
	"github.com/garyjia/travel-backoffice/internal/domain/quote"
	"github.com/garyjia/travel-backoffice/internal/domain/stay"
	"github.com/garyjia/travel-backoffice/internal/observability/metrics"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// CreateGroupInput describes a new comparison group. The stay is optional at
// creation time.
type CreateGroupInput struct {
	ProductLine entity.ProductLine
	Label       string
	Arrival     time.Time
	Departure   time.Time
}

// BenchmarkService manages supplier comparison groups and their pricing
type BenchmarkService interface {
	CreateGroup(ctx context.Context, in CreateGroupInput) (*entity.BenchmarkGroup, error)
	GetGroup(ctx context.Context, id int64) (*entity.BenchmarkGroup, error)
	ListGroups(ctx context.Context, limit, offset int) ([]*entity.BenchmarkGroup, error)
	AddEntry(ctx context.Context, groupID int64, entry *entity.BenchmarkEntry) (*entity.BenchmarkGroup, error)
	SetStay(ctx context.Context, groupID int64, arrival, departure time.Time) (*entity.BenchmarkGroup, error)
	MarkReference(ctx context.Context, groupID, entryID int64) (*entity.BenchmarkGroup, error)
	EditCommission(ctx context.Context, groupID int64, edit pricing.Edit) (*entity.BenchmarkGroup, error)
	// EditExchangeRate stores a rate for one side and returns the converted amounts.
	// A zero rate asks the rate provider.
	EditExchangeRate(ctx context.Context, groupID int64, side pricing.Side, rate float64) (pricing.LocalAmounts, error)
	// FinalizeClientLine locks the group's client pricing. A zero rate falls back
	// to the stored client rate, then to the rate provider.
	FinalizeClientLine(ctx context.Context, groupID int64, rate float64) (*entity.BenchmarkGroup, error)
}

type benchmarkServiceImpl struct {
	groupRepo     port.GroupRepository
	txManager     port.TransactionManager
	rates         port.RateProvider
	dispatcher    dispatcher.Dispatcher
	localCurrency string
	logger        Logger
	now           func() time.Time
}

// NewBenchmarkService creates a new BenchmarkService. rates and d may be nil.
func NewBenchmarkService(
	groupRepo port.GroupRepository,
	txManager port.TransactionManager,
	rates port.RateProvider,
	d dispatcher.Dispatcher,
	localCurrency string,
	logger Logger,
) BenchmarkService {
	return &benchmarkServiceImpl{
		groupRepo:     groupRepo,
		txManager:     txManager,
		rates:         rates,
		dispatcher:    d,
		localCurrency: localCurrency,
		logger:        logger,
		now:           time.Now,
	}
}

// CreateGroup creates an empty comparison group
func (s *benchmarkServiceImpl) CreateGroup(ctx context.Context, in CreateGroupInput) (*entity.BenchmarkGroup, error) {
	if !in.ProductLine.IsValid() {
		return nil, errs.Validation("product_line", fmt.Sprintf("unknown product line %q", in.ProductLine))
	}
	if strings.TrimSpace(in.Label) == "" {
		return nil, errs.Validation("label", "is required")
	}

	now := s.now()
	group := &entity.BenchmarkGroup{
		ProductLine: in.ProductLine,
		Label:       strings.TrimSpace(in.Label),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if !in.Arrival.IsZero() || !in.Departure.IsZero() {
		period, err := stay.NewPeriod(in.Arrival, in.Departure)
		if err != nil {
			return nil, err
		}
		group.Stay = period
	}

	if err := s.groupRepo.Create(ctx, group); err != nil {
		s.logger.Error("Failed to create group", "error", err, "label", group.Label)
		return nil, fmt.Errorf("create group: %w", err)
	}

	s.logger.Info("Group created", "id", group.ID, "product_line", group.ProductLine)
	s.emit(ctx, event.TypeGroupCreated, group, map[string]interface{}{
		event.KeyProductLine: group.ProductLine.String(),
	})
	return group, nil
}

// GetGroup retrieves a group with its entries
func (s *benchmarkServiceImpl) GetGroup(ctx context.Context, id int64) (*entity.BenchmarkGroup, error) {
	group, err := s.groupRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get group", "error", err, "id", id)
		return nil, fmt.Errorf("get group: %w", err)
	}
	if group == nil {
		return nil, errs.NotFound("group", id)
	}
	return group, nil
}

// ListGroups lists groups, newest first
func (s *benchmarkServiceImpl) ListGroups(ctx context.Context, limit, offset int) ([]*entity.BenchmarkGroup, error) {
	if limit <= 0 {
		limit = 50
	}
	groups, err := s.groupRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// AddEntry adds a supplier quotation to a group. The first entry becomes the
// reference.
func (s *benchmarkServiceImpl) AddEntry(ctx context.Context, groupID int64, entry *entity.BenchmarkEntry) (*entity.BenchmarkGroup, error) {
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	var group *entity.BenchmarkGroup
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		g, err := s.GetGroup(txCtx, groupID)
		if err != nil {
			return err
		}
		if g.IsConsolidated() {
			return errs.Validation("group_id", fmt.Sprintf("group %d is already consolidated", groupID))
		}

		entry.GroupID = groupID
		entry.CreatedAt = s.now()
		entry.IsReference = len(g.Entries) == 0
		if err := s.groupRepo.AddEntry(txCtx, entry); err != nil {
			return fmt.Errorf("add entry: %w", err)
		}
		g.Entries = append(g.Entries, entry)
		group = g
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Entry added", "group_id", groupID, "entry_id", entry.ID, "platform", entry.Platform)
	return group, nil
}

// SetStay records the stay dates of a group
func (s *benchmarkServiceImpl) SetStay(ctx context.Context, groupID int64, arrival, departure time.Time) (*entity.BenchmarkGroup, error) {
	period, err := stay.NewPeriod(arrival, departure)
	if err != nil {
		return nil, err
	}

	return s.update(ctx, groupID, func(txCtx context.Context, g *entity.BenchmarkGroup) error {
		if g.HasClientLine() {
			return errs.Validation("stay", "client line already finalized")
		}
		g.Stay = period
		return nil
	})
}

// MarkReference switches the group's reference entry and reprices the commission
// against the new reference.
func (s *benchmarkServiceImpl) MarkReference(ctx context.Context, groupID, entryID int64) (*entity.BenchmarkGroup, error) {
	var group *entity.BenchmarkGroup
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		g, err := s.GetGroup(txCtx, groupID)
		if err != nil {
			return err
		}
		if err := quote.MarkReference(g, entryID); err != nil {
			return err
		}

		state, err := g.PricingState()
		if err != nil {
			return err
		}
		repriced, err := pricing.Reprice(state)
		if err != nil {
			return err
		}
		if g.Commission.IsPriced() {
			g.Commission = repriced.Commission
		}

		if err := s.groupRepo.SetReference(txCtx, groupID, entryID); err != nil {
			return fmt.Errorf("set reference: %w", err)
		}
		g.UpdatedAt = s.now()
		if err := s.groupRepo.Update(txCtx, g); err != nil {
			return fmt.Errorf("update group: %w", err)
		}
		group = g
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Reference marked", "group_id", groupID, "entry_id", entryID)
	return group, nil
}

// EditCommission applies one commission edit and derives the other fields
func (s *benchmarkServiceImpl) EditCommission(ctx context.Context, groupID int64, edit pricing.Edit) (*entity.BenchmarkGroup, error) {
	group, err := s.update(ctx, groupID, func(txCtx context.Context, g *entity.BenchmarkGroup) error {
		if g.HasClientLine() {
			return errs.Validation("commission", "client line already finalized")
		}
		state, err := g.PricingState()
		if err != nil {
			return err
		}
		next, err := pricing.Recompute(state, edit)
		if err != nil {
			return err
		}
		g.Commission = next.Commission
		return nil
	})
	metrics.IncPricingEdit(edit.Field.String(), err)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, event.TypeGroupPriced, group, map[string]interface{}{
		event.KeyField: edit.Field.String(),
	})
	return group, nil
}

// EditExchangeRate stores the rate of one side and returns the converted amounts
func (s *benchmarkServiceImpl) EditExchangeRate(ctx context.Context, groupID int64, side pricing.Side, rate float64) (pricing.LocalAmounts, error) {
	var amounts pricing.LocalAmounts
	_, err := s.update(ctx, groupID, func(txCtx context.Context, g *entity.BenchmarkGroup) error {
		if g.HasClientLine() {
			return errs.Validation("exchange_rate", "client line already finalized")
		}
		ref := g.Reference()
		if ref == nil {
			return errs.Validation("reference", "group has no reference entry")
		}

		resolved, err := s.resolveRate(txCtx, ref.Currency, rate)
		if err != nil {
			return err
		}
		state, err := g.PricingState()
		if err != nil {
			return err
		}
		amounts, err = state.ApplyExchangeRateEdit(side, resolved)
		if err != nil {
			return err
		}

		if side == pricing.SideSupplier {
			if err := s.groupRepo.UpdateEntryRate(txCtx, ref.ID, resolved); err != nil {
				return fmt.Errorf("update entry rate: %w", err)
			}
			ref.ExchangeRate = resolved
		} else {
			g.ClientExchangeRate = resolved
		}
		return nil
	})
	metrics.IncPricingEdit("exchange_rate_"+string(side), err)
	if err != nil {
		return pricing.LocalAmounts{}, err
	}
	return amounts, nil
}

// FinalizeClientLine derives and locks the client line
func (s *benchmarkServiceImpl) FinalizeClientLine(ctx context.Context, groupID int64, rate float64) (*entity.BenchmarkGroup, error) {
	group, err := s.update(ctx, groupID, func(txCtx context.Context, g *entity.BenchmarkGroup) error {
		if rate == 0 {
			rate = g.ClientExchangeRate
		}
		if rate == 0 {
			ref := g.Reference()
			if ref == nil {
				return errs.Validation("reference", "group has no reference entry")
			}
			resolved, err := s.resolveRate(txCtx, ref.Currency, 0)
			if err != nil {
				return err
			}
			rate = resolved
		}
		return quote.FinalizeClientLine(g, rate, s.localCurrency, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Client line finalized",
		"group_id", groupID,
		"local_amount", group.ClientLine.LocalAmount,
		"currency", group.ClientLine.Currency,
	)
	s.emit(ctx, event.TypeClientLineFinalized, group, map[string]interface{}{
		event.KeyTotal:    group.ClientLine.LocalAmount,
		event.KeyCurrency: group.ClientLine.Currency,
	})
	return group, nil
}

// resolveRate returns rate when the operator entered one, otherwise asks the
// rate provider. The returned rate is authoritative for the edit.
func (s *benchmarkServiceImpl) resolveRate(ctx context.Context, from string, rate float64) (float64, error) {
	if rate != 0 {
		return rate, nil
	}
	if s.rates == nil {
		return 0, errs.Validation("exchange_rate", "is required")
	}
	r, err := s.rates.Rate(ctx, from, s.localCurrency)
	if err != nil {
		return 0, err
	}
	return r, nil
}

// update loads a group, applies fn and persists it in one transaction
func (s *benchmarkServiceImpl) update(ctx context.Context, groupID int64, fn func(txCtx context.Context, g *entity.BenchmarkGroup) error) (*entity.BenchmarkGroup, error) {
	var group *entity.BenchmarkGroup
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		g, err := s.GetGroup(txCtx, groupID)
		if err != nil {
			return err
		}
		if err := fn(txCtx, g); err != nil {
			return err
		}
		g.UpdatedAt = s.now()
		if err := s.groupRepo.Update(txCtx, g); err != nil {
			return fmt.Errorf("update group: %w", err)
		}
		group = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

func (s *benchmarkServiceImpl) emit(ctx context.Context, t event.Type, g *entity.BenchmarkGroup, payload map[string]interface{}) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.DispatchAsync(ctx, event.NewEvent(t, g.ID, g.Label, payload).Correlate(ctx))
}
