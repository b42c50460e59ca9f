package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/travel-backoffice/internal/application/dispatcher"
	"github.com/garyjia/travel-backoffice/internal/application/port"
	"github.com/garyjia/travel-backoffice/internal/domain/entity"
	"github.com/garyjia/travel-backoffice/internal/domain/errs"
	"github.com/garyjia/travel-backoffice/internal/domain/event"
	domainwf "github.com/garyjia/travel-backoffice/internal/domain/workflow"
	"github.com/garyjia/travel-backoffice/internal/observability/metrics"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// engineImpl is the concrete implementation of LifecycleEngine
type engineImpl struct {
	lifecycleRepo port.LifecycleRepository
	historyRepo   port.HistoryRepository
	quoteRepo     port.QuoteRepository
	txManager     port.TransactionManager
	dispatcher    dispatcher.Dispatcher
	logger        Logger
	now           func() time.Time
}

// EngineOption configures the lifecycle engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithLogger sets the engine logger
func WithLogger(l Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = l
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new lifecycle engine
func NewEngine(
	lifecycleRepo port.LifecycleRepository,
	historyRepo port.HistoryRepository,
	quoteRepo port.QuoteRepository,
	txManager port.TransactionManager,
	opts ...EngineOption,
) LifecycleEngine {
	e := &engineImpl{
		lifecycleRepo: lifecycleRepo,
		historyRepo:   historyRepo,
		quoteRepo:     quoteRepo,
		txManager:     txManager,
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Start creates the CREATED record and its first history entry. It joins the
// caller's transaction when there is one.
func (e *engineImpl) Start(ctx context.Context, quoteID int64, actor string) (*domainwf.Record, error) {
	rec := domainwf.NewRecord(quoteID, e.now())

	if err := e.lifecycleRepo.Create(ctx, &rec); err != nil {
		return nil, fmt.Errorf("failed to create lifecycle record: %w", err)
	}

	history := &entity.LifecycleHistory{
		QuoteID:       quoteID,
		Actor:         actorOrSystem(actor),
		ToState:       rec.State.String(),
		ActionType:    entity.ActionCreate,
		CorrelationID: event.CorrelationIDFrom(ctx),
		Timestamp:     rec.CreatedAt,
	}
	if err := e.historyRepo.Create(ctx, history); err != nil {
		return nil, fmt.Errorf("failed to create history record: %w", err)
	}

	return &rec, nil
}

// Transition applies cmd inside a transaction. A stale ExpectedState, either on
// load or at commit, fails with a ConflictError and nothing is written.
func (e *engineImpl) Transition(ctx context.Context, quoteID int64, cmd TransitionCommand) (*domainwf.Record, error) {
	if !cmd.ExpectedState.IsValid() {
		return nil, errs.Validation("expected_state", fmt.Sprintf("unknown state %q", cmd.ExpectedState))
	}

	var updated domainwf.Record
	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		current, err := e.lifecycleRepo.Get(txCtx, quoteID)
		if err != nil {
			return fmt.Errorf("failed to load lifecycle record: %w", err)
		}
		if current == nil {
			return errs.NotFound("lifecycle", quoteID)
		}
		if current.State != cmd.ExpectedState {
			return &errs.ConflictError{
				Entity:   "lifecycle",
				ID:       quoteID,
				Expected: cmd.ExpectedState.String(),
				Actual:   current.State.String(),
			}
		}

		next, err := domainwf.Apply(txCtx, *current, cmd.Request, e.now())
		if err != nil {
			return err
		}

		if err := e.lifecycleRepo.Save(txCtx, &next, cmd.ExpectedState); err != nil {
			return err
		}

		detail, err := requestDetail(cmd.Request)
		if err != nil {
			return fmt.Errorf("failed to encode transition detail: %w", err)
		}

		trigger, _ := domainwf.TriggerFor(next.State)
		history := &entity.LifecycleHistory{
			QuoteID:       quoteID,
			Actor:         actorOrSystem(cmd.Actor),
			FromState:     current.State.String(),
			ToState:       next.State.String(),
			ActionType:    trigger.String(),
			Detail:        detail,
			CorrelationID: event.CorrelationIDFrom(txCtx),
			Timestamp:     next.UpdatedAt,
		}
		if err := e.historyRepo.Create(txCtx, history); err != nil {
			return fmt.Errorf("failed to create history record: %w", err)
		}

		updated = next
		return nil
	})

	metrics.ObserveTransition(cmd.ExpectedState.String(), cmd.Request.Target.String(), err)

	if err != nil {
		if e.logger != nil && !isExpected(err) {
			e.logger.Error("Lifecycle transition failed",
				"quote_id", quoteID,
				"target", cmd.Request.Target,
				"error", err,
			)
		}
		return nil, err
	}

	if e.logger != nil {
		e.logger.Info("Lifecycle transitioned",
			"quote_id", quoteID,
			"from", cmd.ExpectedState,
			"to", updated.State,
			"actor", cmd.Actor,
		)
	}

	e.emit(ctx, quoteID, cmd, updated)
	return &updated, nil
}

func (e *engineImpl) emit(ctx context.Context, quoteID int64, cmd TransitionCommand, rec domainwf.Record) {
	if e.dispatcher == nil {
		return
	}

	reference := ""
	if e.quoteRepo != nil {
		if q, err := e.quoteRepo.GetByID(ctx, quoteID); err == nil && q != nil {
			reference = q.Reference
		}
	}

	e.dispatcher.DispatchAsync(ctx, event.NewEvent(
		event.TypeLifecycleTransitioned,
		quoteID,
		reference,
		map[string]interface{}{
			event.KeyFromState: cmd.ExpectedState.String(),
			event.KeyToState:   rec.State.String(),
			event.KeyActor:     actorOrSystem(cmd.Actor),
		},
	).Correlate(ctx))
}

// GetRecord returns the current lifecycle record
func (e *engineImpl) GetRecord(ctx context.Context, quoteID int64) (*domainwf.Record, error) {
	rec, err := e.lifecycleRepo.Get(ctx, quoteID)
	if err != nil {
		return nil, fmt.Errorf("failed to load lifecycle record: %w", err)
	}
	if rec == nil {
		return nil, errs.NotFound("lifecycle", quoteID)
	}
	return rec, nil
}

// PermittedTargets lists the states the quote may move to next
func (e *engineImpl) PermittedTargets(ctx context.Context, quoteID int64) ([]domainwf.State, error) {
	rec, err := e.GetRecord(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	return domainwf.PermittedTargets(*rec), nil
}

// History returns the audit trail of the quote's lifecycle
func (e *engineImpl) History(ctx context.Context, quoteID int64) ([]*entity.LifecycleHistory, error) {
	if _, err := e.GetRecord(ctx, quoteID); err != nil {
		return nil, err
	}
	history, err := e.historyRepo.GetByQuoteID(ctx, quoteID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return history, nil
}

func actorOrSystem(actor string) string {
	if actor == "" {
		return entity.ActorSystem
	}
	return actor
}

// requestDetail keeps only the request fields that carry information, as JSON.
// A request with none of them yields "".
func requestDetail(req domainwf.Request) (string, error) {
	data := map[string]string{}
	if req.POReference != "" {
		data["po_reference"] = req.POReference
	}
	if req.InvoiceReference != "" {
		data["invoice_reference"] = req.InvoiceReference
	}
	if req.CancelReason != "" {
		data["cancel_reason"] = req.CancelReason
	}
	if req.CancelCondition != "" {
		data["cancel_condition"] = req.CancelCondition
	}
	if len(data) == 0 {
		return "", nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// isExpected reports caller-side failures that are not worth an error log
func isExpected(err error) bool {
	return errors.Is(err, errs.ErrValidation) ||
		errors.Is(err, errs.ErrInvalidTransition) ||
		errors.Is(err, errs.ErrConflict) ||
		errors.Is(err, errs.ErrNotFound)
}
