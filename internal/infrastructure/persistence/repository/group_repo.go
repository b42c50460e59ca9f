package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/travel-backoffice/internal/application/port"
	"github.com/garyjia/travel-backoffice/internal/domain/entity"
	"github.com/garyjia/travel-backoffice/internal/domain/errs"
	"github.com/garyjia/travel-backoffice/internal/domain/pricing"
	"github.com/garyjia/travel-backoffice/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// GroupRepository implements port.GroupRepository
type GroupRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewGroupRepository creates a new group repository
func NewGroupRepository(db *sql.DB, logger *zap.Logger) port.GroupRepository {
	return &GroupRepository{
		db:     db,
		logger: logger,
	}
}

const groupColumns = `
	id, product_line, label, arrival, departure, nights,
	rate_percent, per_unit_markup, aggregate_markup, client_unit_price, last_edited,
	client_exchange_rate, client_line, quote_id, created_at, updated_at
`

// Create inserts the group row; entries are added separately
func (r *GroupRepository) Create(ctx context.Context, group *entity.BenchmarkGroup) error {
	query := `
		INSERT INTO benchmark_groups (
			product_line, label, arrival, departure, nights,
			rate_percent, per_unit_markup, aggregate_markup, client_unit_price, last_edited,
			client_exchange_rate, client_line, quote_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	clientLine, err := encodeClientLine(group.ClientLine)
	if err != nil {
		return err
	}

	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		group.ProductLine,
		group.Label,
		stayTime(group.Stay.Arrival),
		stayTime(group.Stay.Departure),
		group.Stay.Nights,
		group.Commission.RatePercent,
		group.Commission.PerUnitMarkup,
		group.Commission.AggregateMarkup,
		group.Commission.ClientUnitPrice,
		group.Commission.LastEdited,
		group.ClientExchangeRate,
		clientLine,
		nullID(group.QuoteID),
		group.CreatedAt.UTC(),
		group.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create group", zap.String("label", group.Label), zap.Error(err))
		return fmt.Errorf("failed to create group: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	group.ID = id
	return nil
}

// GetByID retrieves a group with its entries
func (r *GroupRepository) GetByID(ctx context.Context, id int64) (*entity.BenchmarkGroup, error) {
	groups, err := r.GetByIDs(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, nil
	}
	return groups[0], nil
}

// GetByIDs retrieves the groups that exist among ids, in id order
func (r *GroupRepository) GetByIDs(ctx context.Context, ids []int64) ([]*entity.BenchmarkGroup, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT ` + groupColumns + ` FROM benchmark_groups WHERE id IN (` + placeholders(len(ids)) + `) ORDER BY id`

	groups, err := r.query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to get groups", zap.Int64s("ids", ids), zap.Error(err))
		return nil, err
	}
	if err := r.loadEntries(ctx, groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// Update persists the group's scalar fields
func (r *GroupRepository) Update(ctx context.Context, group *entity.BenchmarkGroup) error {
	query := `
		UPDATE benchmark_groups SET
			label = ?, arrival = ?, departure = ?, nights = ?,
			rate_percent = ?, per_unit_markup = ?, aggregate_markup = ?, client_unit_price = ?, last_edited = ?,
			client_exchange_rate = ?, client_line = ?, updated_at = ?
		WHERE id = ?
	`

	clientLine, err := encodeClientLine(group.ClientLine)
	if err != nil {
		return err
	}

	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		group.Label,
		stayTime(group.Stay.Arrival),
		stayTime(group.Stay.Departure),
		group.Stay.Nights,
		group.Commission.RatePercent,
		group.Commission.PerUnitMarkup,
		group.Commission.AggregateMarkup,
		group.Commission.ClientUnitPrice,
		group.Commission.LastEdited,
		group.ClientExchangeRate,
		clientLine,
		group.UpdatedAt.UTC(),
		group.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update group", zap.Int64("id", group.ID), zap.Error(err))
		return fmt.Errorf("failed to update group: %w", err)
	}

	return expectOneRow(result, "group", group.ID)
}

// AddEntry inserts a supplier entry into its group
func (r *GroupRepository) AddEntry(ctx context.Context, entry *entity.BenchmarkEntry) error {
	query := `
		INSERT INTO benchmark_entries (
			group_id, platform, unit_price, currency, exchange_rate,
			room_count, is_reference, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		entry.GroupID,
		entry.Platform,
		entry.UnitPrice,
		entry.Currency,
		entry.ExchangeRate,
		entry.RoomCount,
		entry.IsReference,
		entry.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to add entry", zap.Int64("group_id", entry.GroupID), zap.Error(err))
		return fmt.Errorf("failed to add entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	entry.ID = id
	return nil
}

// UpdateEntryRate stores a new exchange rate on one entry
func (r *GroupRepository) UpdateEntryRate(ctx context.Context, entryID int64, rate float64) error {
	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx,
		"UPDATE benchmark_entries SET exchange_rate = ? WHERE id = ?", rate, entryID)
	if err != nil {
		r.logger.Error("Failed to update entry rate", zap.Int64("entry_id", entryID), zap.Error(err))
		return fmt.Errorf("failed to update entry rate: %w", err)
	}
	return expectOneRow(result, "entry", entryID)
}

// SetReference clears the old reference before marking the new one, so the
// one-reference index never sees two flagged rows.
func (r *GroupRepository) SetReference(ctx context.Context, groupID, entryID int64) error {
	exec := sqlite.Executor(ctx, r.db)

	if _, err := exec.ExecContext(ctx,
		"UPDATE benchmark_entries SET is_reference = 0 WHERE group_id = ? AND id <> ?", groupID, entryID); err != nil {
		return fmt.Errorf("failed to clear reference: %w", err)
	}

	result, err := exec.ExecContext(ctx,
		"UPDATE benchmark_entries SET is_reference = 1 WHERE group_id = ? AND id = ?", groupID, entryID)
	if err != nil {
		r.logger.Error("Failed to set reference", zap.Int64("group_id", groupID), zap.Int64("entry_id", entryID), zap.Error(err))
		return fmt.Errorf("failed to set reference: %w", err)
	}
	return expectOneRow(result, "entry", entryID)
}

// List retrieves groups, newest first
func (r *GroupRepository) List(ctx context.Context, limit, offset int) ([]*entity.BenchmarkGroup, error) {
	query := `SELECT ` + groupColumns + ` FROM benchmark_groups ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`

	groups, err := r.query(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list groups", zap.Error(err))
		return nil, err
	}
	if err := r.loadEntries(ctx, groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *GroupRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.BenchmarkGroup, error) {
	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer rows.Close()

	var groups []*entity.BenchmarkGroup
	for rows.Next() {
		var (
			g                  entity.BenchmarkGroup
			arrival, departure sql.NullTime
			lastEdited         string
			clientLine         sql.NullString
			quoteID            sql.NullInt64
		)
		err := rows.Scan(
			&g.ID,
			&g.ProductLine,
			&g.Label,
			&arrival,
			&departure,
			&g.Stay.Nights,
			&g.Commission.RatePercent,
			&g.Commission.PerUnitMarkup,
			&g.Commission.AggregateMarkup,
			&g.Commission.ClientUnitPrice,
			&lastEdited,
			&g.ClientExchangeRate,
			&clientLine,
			&quoteID,
			&g.CreatedAt,
			&g.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}

		g.Stay.Arrival = arrival.Time
		g.Stay.Departure = departure.Time
		g.Commission.LastEdited = pricing.Field(lastEdited)
		g.QuoteID = quoteID.Int64
		if clientLine.Valid && clientLine.String != "" {
			var cl entity.ClientLine
			if err := json.Unmarshal([]byte(clientLine.String), &cl); err != nil {
				return nil, fmt.Errorf("failed to decode client line of group %d: %w", g.ID, err)
			}
			g.ClientLine = &cl
		}
		groups = append(groups, &g)
	}
	return groups, rows.Err()
}

// loadEntries attaches entries to groups in insertion order
func (r *GroupRepository) loadEntries(ctx context.Context, groups []*entity.BenchmarkGroup) error {
	if len(groups) == 0 {
		return nil
	}

	byID := make(map[int64]*entity.BenchmarkGroup, len(groups))
	args := make([]interface{}, 0, len(groups))
	for _, g := range groups {
		g.Entries = []*entity.BenchmarkEntry{}
		byID[g.ID] = g
		args = append(args, g.ID)
	}

	query := `
		SELECT id, group_id, platform, unit_price, currency, exchange_rate,
			room_count, is_reference, created_at
		FROM benchmark_entries
		WHERE group_id IN (` + placeholders(len(args)) + `)
		ORDER BY id
	`
	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e entity.BenchmarkEntry
		if err := rows.Scan(
			&e.ID,
			&e.GroupID,
			&e.Platform,
			&e.UnitPrice,
			&e.Currency,
			&e.ExchangeRate,
			&e.RoomCount,
			&e.IsReference,
			&e.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to scan entry: %w", err)
		}
		if g := byID[e.GroupID]; g != nil {
			g.Entries = append(g.Entries, &e)
		}
	}
	return rows.Err()
}

func encodeClientLine(cl *entity.ClientLine) (sql.NullString, error) {
	if cl == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(cl)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode client line: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func stayTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func expectOneRow(result sql.Result, entityName string, id int64) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errs.NotFound(entityName, id)
	}
	return nil
}

// Verify interface compliance
var _ port.GroupRepository = (*GroupRepository)(nil)
