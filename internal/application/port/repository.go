package port

import (
	"context"

	"github.com/garyjia/travel-backoffice/internal/domain/entity"
	"github.com/garyjia/travel-backoffice/internal/domain/workflow"
)

// Repositories return (nil, nil) when a row does not exist; services turn that
// into a NotFoundError.

// GroupRepository defines persistence operations for BenchmarkGroup and its entries
type GroupRepository interface {
	Create(ctx context.Context, group *entity.BenchmarkGroup) error
	// GetByID loads the group with its entries in insertion order
	GetByID(ctx context.Context, id int64) (*entity.BenchmarkGroup, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*entity.BenchmarkGroup, error)
	// Update persists the group's scalar fields (stay, commission, client line, quote link)
	Update(ctx context.Context, group *entity.BenchmarkGroup) error
	AddEntry(ctx context.Context, entry *entity.BenchmarkEntry) error
	UpdateEntryRate(ctx context.Context, entryID int64, rate float64) error
	// SetReference marks one entry of the group as its only reference
	SetReference(ctx context.Context, groupID, entryID int64) error
	List(ctx context.Context, limit, offset int) ([]*entity.BenchmarkGroup, error)
}

// QuoteRepository defines persistence operations for Quote
type QuoteRepository interface {
	// Create stores the quote with its contributions and links the groups to it
	Create(ctx context.Context, quote *entity.Quote) error
	GetByID(ctx context.Context, id int64) (*entity.Quote, error)
	GetByReference(ctx context.Context, reference string) (*entity.Quote, error)
	List(ctx context.Context, limit, offset int) ([]*entity.Quote, error)
}

// LifecycleRepository defines persistence operations for lifecycle records
type LifecycleRepository interface {
	Create(ctx context.Context, rec *workflow.Record) error
	Get(ctx context.Context, quoteID int64) (*workflow.Record, error)
	// Save writes rec only if the stored state still equals expectedPriorState,
	// otherwise it returns a ConflictError.
	Save(ctx context.Context, rec *workflow.Record, expectedPriorState workflow.State) error
	CountByState(ctx context.Context) (map[workflow.State]int, error)
}

// HistoryRepository defines persistence operations for LifecycleHistory
type HistoryRepository interface {
	Create(ctx context.Context, history *entity.LifecycleHistory) error
	GetByQuoteID(ctx context.Context, quoteID int64) ([]*entity.LifecycleHistory, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
