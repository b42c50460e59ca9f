package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/travel-backoffice/internal/application/port"
	"github.com/garyjia/travel-backoffice/internal/domain/entity"
	"github.com/garyjia/travel-backoffice/internal/infrastructure/persistence/sqlite"
)

// HistoryRepository stores the append-only lifecycle audit trail
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{db: db, logger: logger}
}

const historyColumns = `id, quote_id, actor, from_state, to_state, action_type, detail, correlation_id, timestamp`

// Create appends one line. It joins the caller's transaction so that the line
// commits with the lifecycle write it describes.
func (r *HistoryRepository) Create(ctx context.Context, h *entity.LifecycleHistory) error {
	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO lifecycle_history (
			quote_id, actor, from_state, to_state, action_type, detail, correlation_id, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		h.QuoteID, h.Actor, h.FromState, h.ToState, h.ActionType, h.Detail, h.CorrelationID, h.Timestamp.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to append lifecycle history",
			zap.Int64("quote_id", h.QuoteID),
			zap.String("action", h.ActionType),
			zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	if h.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	return nil
}

// GetByQuoteID returns the trail of a quote, oldest first. Lines written in the
// same instant keep their insertion order.
func (r *HistoryRepository) GetByQuoteID(ctx context.Context, quoteID int64) ([]*entity.LifecycleHistory, error) {
	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx,
		`SELECT `+historyColumns+` FROM lifecycle_history WHERE quote_id = ? ORDER BY timestamp, id`,
		quoteID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get history of quote %d: %w", quoteID, err)
	}
	defer rows.Close()

	var trail []*entity.LifecycleHistory
	for rows.Next() {
		var h entity.LifecycleHistory
		if err := rows.Scan(
			&h.ID, &h.QuoteID, &h.Actor, &h.FromState, &h.ToState,
			&h.ActionType, &h.Detail, &h.CorrelationID, &h.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		trail = append(trail, &h)
	}
	return trail, rows.Err()
}

var _ port.HistoryRepository = (*HistoryRepository)(nil)
