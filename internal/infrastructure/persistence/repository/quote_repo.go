package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/travel-backoffice/internal/application/port"
	"github.com/garyjia/travel-backoffice/internal/domain/entity"
	"github.com/garyjia/travel-backoffice/internal/domain/errs"
	"github.com/garyjia/travel-backoffice/internal/infrastructure/persistence/sqlite"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// QuoteRepository implements port.QuoteRepository. Amounts are stored as decimal
// strings so a stored total reads back exactly.
type QuoteRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewQuoteRepository creates a new quote repository
func NewQuoteRepository(db *sql.DB, logger *zap.Logger) port.QuoteRepository {
	return &QuoteRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores the quote and its contributions, then links every contributing
// group. A group already linked to another quote fails with a ConflictError;
// the caller's transaction rolls the whole quote back.
func (r *QuoteRepository) Create(ctx context.Context, q *entity.Quote) error {
	exec := sqlite.Executor(ctx, r.db)

	result, err := exec.ExecContext(ctx, `
		INSERT INTO quotes (reference, product_line, total, currency, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		q.Reference,
		q.ProductLine,
		q.Total.String(),
		q.Currency,
		q.CreatedBy,
		q.CreatedAt.UTC(),
	)
	if sqlite.IsUniqueViolation(err) {
		return &errs.ConflictError{Entity: "quote", Expected: "unused reference", Actual: q.Reference}
	}
	if err != nil {
		r.logger.Error("Failed to create quote", zap.String("reference", q.Reference), zap.Error(err))
		return fmt.Errorf("failed to create quote: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	for i, c := range q.Contributions {
		_, err := exec.ExecContext(ctx, `
			INSERT INTO quote_contributions (quote_id, group_id, position, label, nights, local_amount)
			VALUES (?, ?, ?, ?, ?, ?)
		`, id, c.GroupID, i, c.Label, c.Nights, decimal.NewFromFloat(c.LocalAmount).String())
		if err != nil {
			return fmt.Errorf("failed to store contribution of group %d: %w", c.GroupID, err)
		}

		linked, err := exec.ExecContext(ctx,
			"UPDATE benchmark_groups SET quote_id = ? WHERE id = ? AND quote_id IS NULL", id, c.GroupID)
		if err != nil {
			return fmt.Errorf("failed to link group %d: %w", c.GroupID, err)
		}
		n, err := linked.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if n == 0 {
			r.logger.Info("Group already consolidated", zap.Int64("group_id", c.GroupID))
			return &errs.ConflictError{Entity: "group", ID: c.GroupID, Expected: "unconsolidated", Actual: "consolidated"}
		}
	}

	q.ID = id
	return nil
}

// GetByID retrieves a quote with its contributions
func (r *QuoteRepository) GetByID(ctx context.Context, id int64) (*entity.Quote, error) {
	return r.getOne(ctx, "id = ?", id)
}

// GetByReference retrieves a quote by its human reference
func (r *QuoteRepository) GetByReference(ctx context.Context, reference string) (*entity.Quote, error) {
	return r.getOne(ctx, "reference = ?", reference)
}

// List retrieves quotes, newest first
func (r *QuoteRepository) List(ctx context.Context, limit, offset int) ([]*entity.Quote, error) {
	quotes, err := r.query(ctx, "1 = 1 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		r.logger.Error("Failed to list quotes", zap.Error(err))
		return nil, err
	}
	for _, q := range quotes {
		if err := r.loadContributions(ctx, q); err != nil {
			return nil, err
		}
	}
	return quotes, nil
}

func (r *QuoteRepository) getOne(ctx context.Context, where string, arg interface{}) (*entity.Quote, error) {
	quotes, err := r.query(ctx, where, arg)
	if err != nil {
		r.logger.Error("Failed to get quote", zap.Any("key", arg), zap.Error(err))
		return nil, err
	}
	if len(quotes) == 0 {
		return nil, nil
	}
	if err := r.loadContributions(ctx, quotes[0]); err != nil {
		return nil, err
	}
	return quotes[0], nil
}

func (r *QuoteRepository) query(ctx context.Context, where string, args ...interface{}) ([]*entity.Quote, error) {
	query := `
		SELECT id, reference, product_line, total, currency, created_by, created_at
		FROM quotes
		WHERE ` + where

	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query quotes: %w", err)
	}
	defer rows.Close()

	var quotes []*entity.Quote
	for rows.Next() {
		var (
			q     entity.Quote
			total string
		)
		if err := rows.Scan(&q.ID, &q.Reference, &q.ProductLine, &total, &q.Currency, &q.CreatedBy, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan quote: %w", err)
		}
		if q.Total, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("quote %d: invalid stored total %q: %w", q.ID, total, err)
		}
		quotes = append(quotes, &q)
	}
	return quotes, rows.Err()
}

func (r *QuoteRepository) loadContributions(ctx context.Context, q *entity.Quote) error {
	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, `
		SELECT group_id, label, nights, local_amount
		FROM quote_contributions
		WHERE quote_id = ?
		ORDER BY position
	`, q.ID)
	if err != nil {
		return fmt.Errorf("failed to query contributions: %w", err)
	}
	defer rows.Close()

	q.Contributions = []entity.QuoteContribution{}
	for rows.Next() {
		var (
			c      entity.QuoteContribution
			amount string
		)
		if err := rows.Scan(&c.GroupID, &c.Label, &c.Nights, &amount); err != nil {
			return fmt.Errorf("failed to scan contribution: %w", err)
		}
		if c.LocalAmount, err = parseAmount(amount); err != nil {
			return fmt.Errorf("quote %d group %d: %w", q.ID, c.GroupID, err)
		}
		q.Contributions = append(q.Contributions, c)
	}
	return rows.Err()
}

func parseAmount(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid stored amount %q: %w", s, err)
	}
	return d.InexactFloat64(), nil
}

// Verify interface compliance
var _ port.QuoteRepository = (*QuoteRepository)(nil)
