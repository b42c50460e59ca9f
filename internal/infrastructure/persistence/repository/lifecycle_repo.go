package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garyjia/travel-backoffice/internal/application/port"
	"github.com/garyjia/travel-backoffice/internal/domain/errs"
	"github.com/garyjia/travel-backoffice/internal/domain/workflow"
	"github.com/garyjia/travel-backoffice/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// LifecycleRepository implements port.LifecycleRepository
type LifecycleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLifecycleRepository creates a new lifecycle repository
func NewLifecycleRepository(db *sql.DB, logger *zap.Logger) port.LifecycleRepository {
	return &LifecycleRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a new lifecycle record
func (r *LifecycleRepository) Create(ctx context.Context, rec *workflow.Record) error {
	query := `
		INSERT INTO lifecycle_records (
			quote_id, state, requested_at, approved_at, po_requested_at,
			ticket_issued_at, invoiced_at, settled_at, cancelled_at,
			po_reference, invoice_reference, cancel_reason, cancel_condition,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		rec.QuoteID,
		rec.State,
		nullTime(rec.RequestedAt),
		nullTime(rec.ApprovedAt),
		nullTime(rec.PORequestedAt),
		nullTime(rec.TicketIssuedAt),
		nullTime(rec.InvoicedAt),
		nullTime(rec.SettledAt),
		nullTime(rec.CancelledAt),
		rec.POReference,
		rec.InvoiceReference,
		rec.CancelReason,
		rec.CancelCondition,
		rec.CreatedAt.UTC(),
		rec.UpdatedAt.UTC(),
	)
	if sqlite.IsUniqueViolation(err) {
		return &errs.ConflictError{Entity: "lifecycle", ID: rec.QuoteID, Expected: "absent", Actual: "already started"}
	}
	if err != nil {
		r.logger.Error("Failed to create lifecycle", zap.Int64("quote_id", rec.QuoteID), zap.Error(err))
		return fmt.Errorf("failed to create lifecycle: %w", err)
	}
	return nil
}

// Get retrieves the lifecycle of a quote
func (r *LifecycleRepository) Get(ctx context.Context, quoteID int64) (*workflow.Record, error) {
	query := `
		SELECT quote_id, state, requested_at, approved_at, po_requested_at,
			ticket_issued_at, invoiced_at, settled_at, cancelled_at,
			po_reference, invoice_reference, cancel_reason, cancel_condition,
			created_at, updated_at
		FROM lifecycle_records
		WHERE quote_id = ?
	`

	var (
		rec                                     workflow.Record
		requested, approved, poRequested        sql.NullTime
		ticketIssued, invoiced, settled, cancel sql.NullTime
	)
	err := sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, quoteID).Scan(
		&rec.QuoteID,
		&rec.State,
		&requested,
		&approved,
		&poRequested,
		&ticketIssued,
		&invoiced,
		&settled,
		&cancel,
		&rec.POReference,
		&rec.InvoiceReference,
		&rec.CancelReason,
		&rec.CancelCondition,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get lifecycle", zap.Int64("quote_id", quoteID), zap.Error(err))
		return nil, fmt.Errorf("failed to get lifecycle: %w", err)
	}

	rec.RequestedAt = timePtr(requested)
	rec.ApprovedAt = timePtr(approved)
	rec.PORequestedAt = timePtr(poRequested)
	rec.TicketIssuedAt = timePtr(ticketIssued)
	rec.InvoicedAt = timePtr(invoiced)
	rec.SettledAt = timePtr(settled)
	rec.CancelledAt = timePtr(cancel)
	return &rec, nil
}

// Save writes rec if the stored state is still expectedPriorState. A lost race
// surfaces as a ConflictError carrying the state actually stored.
func (r *LifecycleRepository) Save(ctx context.Context, rec *workflow.Record, expectedPriorState workflow.State) error {
	query := `
		UPDATE lifecycle_records SET
			state = ?, requested_at = ?, approved_at = ?, po_requested_at = ?,
			ticket_issued_at = ?, invoiced_at = ?, settled_at = ?, cancelled_at = ?,
			po_reference = ?, invoice_reference = ?, cancel_reason = ?, cancel_condition = ?,
			updated_at = ?
		WHERE quote_id = ? AND state = ?
	`

	exec := sqlite.Executor(ctx, r.db)
	result, err := exec.ExecContext(ctx, query,
		rec.State,
		nullTime(rec.RequestedAt),
		nullTime(rec.ApprovedAt),
		nullTime(rec.PORequestedAt),
		nullTime(rec.TicketIssuedAt),
		nullTime(rec.InvoicedAt),
		nullTime(rec.SettledAt),
		nullTime(rec.CancelledAt),
		rec.POReference,
		rec.InvoiceReference,
		rec.CancelReason,
		rec.CancelCondition,
		rec.UpdatedAt.UTC(),
		rec.QuoteID,
		expectedPriorState,
	)
	if err != nil {
		r.logger.Error("Failed to save lifecycle", zap.Int64("quote_id", rec.QuoteID), zap.Error(err))
		return fmt.Errorf("failed to save lifecycle: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 1 {
		return nil
	}

	var actual string
	err = exec.QueryRowContext(ctx, "SELECT state FROM lifecycle_records WHERE quote_id = ?", rec.QuoteID).Scan(&actual)
	if errors.Is(err, sql.ErrNoRows) {
		return errs.NotFound("lifecycle", rec.QuoteID)
	}
	if err != nil {
		return fmt.Errorf("failed to read lifecycle state: %w", err)
	}
	return &errs.ConflictError{
		Entity:   "lifecycle",
		ID:       rec.QuoteID,
		Expected: expectedPriorState.String(),
		Actual:   actual,
	}
}

// CountByState returns how many lifecycles sit in each state
func (r *LifecycleRepository) CountByState(ctx context.Context) (map[workflow.State]int, error) {
	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx,
		"SELECT state, COUNT(*) FROM lifecycle_records GROUP BY state")
	if err != nil {
		return nil, fmt.Errorf("failed to count lifecycles: %w", err)
	}
	defer rows.Close()

	counts := make(map[workflow.State]int)
	for rows.Next() {
		var (
			state workflow.State
			n     int
		)
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("failed to scan lifecycle count: %w", err)
		}
		counts[state] = n
	}
	return counts, rows.Err()
}

// Verify interface compliance
var _ port.LifecycleRepository = (*LifecycleRepository)(nil)
