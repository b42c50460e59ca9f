package workflow

import (
	"context"

	"github.com/garyjia/travel-backoffice/internal/domain/entity"
	domainwf "github.com/garyjia/travel-backoffice/internal/domain/workflow"
)

// TransitionCommand asks for a lifecycle transition. ExpectedState is the state the
// caller last saw; it is the optimistic-concurrency token for the write.
type TransitionCommand struct {
	ExpectedState domainwf.State
	Request       domainwf.Request
	Actor         string
}

// LifecycleEngine drives quote lifecycles through the guarded transition table
type LifecycleEngine interface {
	// Start creates the CREATED record of a new quote
	Start(ctx context.Context, quoteID int64, actor string) (*domainwf.Record, error)

	// Transition applies cmd to the quote's lifecycle and persists the result
	Transition(ctx context.Context, quoteID int64, cmd TransitionCommand) (*domainwf.Record, error)

	// GetRecord returns the current lifecycle record
	GetRecord(ctx context.Context, quoteID int64) (*domainwf.Record, error)

	// PermittedTargets lists the states the quote may move to next
	PermittedTargets(ctx context.Context, quoteID int64) ([]domainwf.State, error)

	// History returns the audit trail of the quote's lifecycle, oldest first
	History(ctx context.Context, quoteID int64) ([]*entity.LifecycleHistory, error)
}
