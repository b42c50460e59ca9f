package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/travel-backoffice/internal/application/dispatcher"
	"github.com/garyjia/travel-backoffice/internal/application/port"
	appwf "github.com/garyjia/travel-backoffice/internal/application/workflow"
	"github.com/garyjia/travel-backoffice/internal/domain/entity"
	"github.com/garyjia/travel-backoffice/internal/domain/errs"
	"github.com/garyjia/travel-backoffice/internal/domain/event"
	"github.com/garyjia/travel-backoffice/internal/domain/quote"
	domainwf "github.com/garyjia/travel-backoffice/internal/domain/workflow"
	"github.com/garyjia/travel-backoffice/internal/observability/metrics"
)

// ConsolidateInput lists the groups to bill together
type ConsolidateInput struct {
	GroupIDs  []int64
	CreatedBy string
}

// Document is a rendered quote
type Document struct {
	FileName    string
	ContentType string
	Content     []byte
}

// QuoteService consolidates priced groups into quotes and renders them
type QuoteService interface {
	// Consolidate creates the quote and its CREATED lifecycle in one transaction
	Consolidate(ctx context.Context, in ConsolidateInput) (*entity.Quote, *domainwf.Record, error)
	GetQuote(ctx context.Context, id int64) (*entity.Quote, error)
	GetQuoteByReference(ctx context.Context, reference string) (*entity.Quote, error)
	ListQuotes(ctx context.Context, limit, offset int) ([]*entity.Quote, error)
	// Export renders the quote workbook
	Export(ctx context.Context, id int64) (*Document, error)
	// Archive renders the quote workbook and keeps it in the document store
	Archive(ctx context.Context, id int64) (string, error)
}

type quoteServiceImpl struct {
	groupRepo  port.GroupRepository
	quoteRepo  port.QuoteRepository
	txManager  port.TransactionManager
	engine     appwf.LifecycleEngine
	exporter   port.QuoteExporter
	store      port.DocumentStore
	dispatcher dispatcher.Dispatcher
	logger     Logger
	now        func() time.Time
}

// NewQuoteService creates a new QuoteService. exporter, store and d may be nil.
func NewQuoteService(
	groupRepo port.GroupRepository,
	quoteRepo port.QuoteRepository,
	txManager port.TransactionManager,
	engine appwf.LifecycleEngine,
	exporter port.QuoteExporter,
	store port.DocumentStore,
	d dispatcher.Dispatcher,
	logger Logger,
) QuoteService {
	return &quoteServiceImpl{
		groupRepo:  groupRepo,
		quoteRepo:  quoteRepo,
		txManager:  txManager,
		engine:     engine,
		exporter:   exporter,
		store:      store,
		dispatcher: d,
		logger:     logger,
		now:        time.Now,
	}
}

// Consolidate sums the client lines of the groups into a new quote
func (s *quoteServiceImpl) Consolidate(ctx context.Context, in ConsolidateInput) (*entity.Quote, *domainwf.Record, error) {
	start := time.Now()

	var (
		q   *entity.Quote
		rec *domainwf.Record
	)
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		groups, err := s.loadGroups(txCtx, in.GroupIDs)
		if err != nil {
			return err
		}

		q, err = quote.Consolidate(groups, quote.Meta{
			CreatedBy: strings.TrimSpace(in.CreatedBy),
			CreatedAt: s.now(),
		})
		if err != nil {
			return err
		}

		if err := s.quoteRepo.Create(txCtx, q); err != nil {
			return fmt.Errorf("create quote: %w", err)
		}

		rec, err = s.engine.Start(txCtx, q.ID, in.CreatedBy)
		return err
	})

	productLine, currency, total := "", "", 0.0
	if q != nil {
		productLine, currency, total = q.ProductLine.String(), q.Currency, q.Total.InexactFloat64()
	}
	metrics.ObserveConsolidation(productLine, currency, total, err, time.Since(start))

	if err != nil {
		s.logger.Error("Consolidation failed", "error", err, "group_ids", in.GroupIDs)
		return nil, nil, err
	}

	s.logger.Info("Quote consolidated",
		"quote_id", q.ID,
		"reference", q.Reference,
		"total", q.Total.String(),
		"currency", q.Currency,
		"groups", len(q.Contributions),
	)

	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeQuoteConsolidated, q.ID, q.Reference, map[string]interface{}{
			event.KeyTotal:       q.Total,
			event.KeyCurrency:    q.Currency,
			event.KeyProductLine: q.ProductLine.String(),
			event.KeyGroupCount:  len(q.Contributions),
		}).Correlate(ctx))
	}
	return q, rec, nil
}

// loadGroups fetches the groups in the order requested
func (s *quoteServiceImpl) loadGroups(ctx context.Context, ids []int64) ([]*entity.BenchmarkGroup, error) {
	if len(ids) == 0 {
		return nil, errs.Validation("group_ids", "at least one group is required")
	}

	found, err := s.groupRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load groups: %w", err)
	}

	byID := make(map[int64]*entity.BenchmarkGroup, len(found))
	for _, g := range found {
		byID[g.ID] = g
	}

	groups := make([]*entity.BenchmarkGroup, 0, len(ids))
	for _, id := range ids {
		g, ok := byID[id]
		if !ok {
			return nil, errs.NotFound("group", id)
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// GetQuote retrieves a quote by ID
func (s *quoteServiceImpl) GetQuote(ctx context.Context, id int64) (*entity.Quote, error) {
	q, err := s.quoteRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get quote", "error", err, "id", id)
		return nil, fmt.Errorf("get quote: %w", err)
	}
	if q == nil {
		return nil, errs.NotFound("quote", id)
	}
	return q, nil
}

// GetQuoteByReference retrieves a quote by its human reference
func (s *quoteServiceImpl) GetQuoteByReference(ctx context.Context, reference string) (*entity.Quote, error) {
	q, err := s.quoteRepo.GetByReference(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("get quote: %w", err)
	}
	if q == nil {
		return nil, &errs.NotFoundError{Entity: "quote", Key: reference}
	}
	return q, nil
}

// ListQuotes lists quotes, newest first
func (s *quoteServiceImpl) ListQuotes(ctx context.Context, limit, offset int) ([]*entity.Quote, error) {
	if limit <= 0 {
		limit = 50
	}
	quotes, err := s.quoteRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}
	return quotes, nil
}

// Export renders the quote workbook
func (s *quoteServiceImpl) Export(ctx context.Context, id int64) (*Document, error) {
	if s.exporter == nil {
		return nil, fmt.Errorf("quote export is not configured")
	}

	q, err := s.GetQuote(ctx, id)
	if err != nil {
		return nil, err
	}
	groups, err := s.loadGroups(ctx, q.GroupIDs())
	if err != nil {
		return nil, err
	}

	start := time.Now()
	content, err := s.exporter.Export(ctx, q, groups)
	metrics.ObserveExport(err, time.Since(start))
	if err != nil {
		s.logger.Error("Quote export failed", "error", err, "quote_id", id)
		return nil, fmt.Errorf("export quote: %w", err)
	}

	return &Document{
		FileName:    s.exporter.FileName(q),
		ContentType: s.exporter.ContentType(),
		Content:     content,
	}, nil
}

// Archive renders the quote workbook into the document store
func (s *quoteServiceImpl) Archive(ctx context.Context, id int64) (string, error) {
	if s.store == nil {
		return "", fmt.Errorf("document store is not configured")
	}

	doc, err := s.Export(ctx, id)
	if err != nil {
		return "", err
	}

	path := "quotes/" + doc.FileName
	if err := s.store.Save(ctx, path, doc.Content); err != nil {
		return "", fmt.Errorf("archive quote: %w", err)
	}

	s.logger.Info("Quote archived", "quote_id", id, "path", path, "size", len(doc.Content))
	return path, nil
}

// ArchiveOnConsolidation returns a dispatcher handler that archives the workbook
// of every newly consolidated quote.
func ArchiveOnConsolidation(svc QuoteService) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		_, err := svc.Archive(ctx, evt.AggregateID)
		return err
	}
}
