package container

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/travel-backoffice/internal/application/dispatcher"
	"github.com/garyjia/travel-backoffice/internal/application/port"
	"github.com/garyjia/travel-backoffice/internal/application/service"
	"github.com/garyjia/travel-backoffice/internal/application/workflow"
	infraLark "github.com/garyjia/travel-backoffice/internal/infrastructure/external/lark"
	"github.com/garyjia/travel-backoffice/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/travel-backoffice/internal/observability/metrics"
)

// Container owns the back office's components. Start builds them bottom-up
// and undoes partial work on failure; Close tears them down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	sqlDB        *sql.DB
	db           *sqlite.DB
	repositories *RepositoryBundle

	adapters *AdapterBundle
	notifier *infraLark.Notifier

	dispatcher dispatcher.Dispatcher
	engine     workflow.LifecycleEngine
	services   *ServiceBundle

	mu     sync.Mutex
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Groups     port.GroupRepository
	Quotes     port.QuoteRepository
	Lifecycles port.LifecycleRepository
	History    port.HistoryRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Benchmark service.BenchmarkService
	Quote     service.QuoteService
}

// HealthStatus represents the health of all components. Lifecycles counts the
// quotes in each lifecycle state when the database answers.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
	Lifecycles map[string]int             `json:"lifecycles,omitempty"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer validates cfg. Nothing is opened until Start.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{config: cfg, logger: logger}, nil
}

type initStep struct {
	name string
	run  func() error
}

// Start opens the database, then builds adapters, the dispatcher with the
// lifecycle engine, the services and finally the event subscribers.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	steps := []initStep{
		{"database", c.initDatabase},
		{"adapters", c.initAdapters},
		{"lifecycle engine", c.initDispatcherAndWorkflow},
		{"services", c.initServices},
		{"subscribers", c.initSubscribers},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			c.rollback()
			return err
		}
		if err := step.run(); err != nil {
			c.rollback()
			return fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
		c.logger.Info("Component initialized", zap.String("component", step.name))
	}

	metrics.Init(c.sqlDB, c.logger)

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// rollback releases whatever a failed Start managed to open
func (c *Container) rollback() {
	if err := c.teardown(); err != nil {
		c.logger.Error("Partial initialization cleanup failed", zap.Error(err))
	}
	c.repositories, c.adapters, c.engine, c.services, c.notifier = nil, nil, nil, nil, nil
}

// teardown drains the dispatcher so pending archive and notification
// handlers finish before the database goes away
func (c *Container) teardown() error {
	var failures []error

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			failures = append(failures, fmt.Errorf("close dispatcher: %w", err))
		}
		c.dispatcher = nil
	}

	if c.sqlDB != nil {
		if err := c.sqlDB.Close(); err != nil {
			failures = append(failures, fmt.Errorf("close database: %w", err))
		}
		c.sqlDB, c.db = nil, nil
	}

	return errors.Join(failures...)
}

// Close shuts the container down. It can only be called once.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("container already closed")
	}
	c.ready.Store(false)

	c.logger.Info("Closing container")
	if err := c.teardown(); err != nil {
		c.logger.Error("Container closed with errors", zap.Error(err))
		return err
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health pings the database and reports which components are wired.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	set := func(name string, ok bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: ok, Message: msg}
		if !ok {
			status.Overall = false
		}
	}
	wired := func(name string, ok bool) {
		if ok {
			set(name, true, "")
		} else {
			set(name, false, "not initialized")
		}
	}

	if c.sqlDB == nil {
		set("database", false, "not initialized")
	} else {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := c.sqlDB.PingContext(pingCtx)
		cancel()
		if err != nil {
			set("database", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			set("database", true, "")
		}
	}

	wired("dispatcher", c.dispatcher != nil)
	wired("services", c.services != nil)
	if c.config.Lark.Enabled {
		wired("lark", c.notifier != nil)
	}

	if c.repositories != nil && status.Components["database"].Healthy {
		counts, err := c.repositories.Lifecycles.CountByState(ctx)
		if err != nil {
			set("lifecycles", false, err.Error())
		} else {
			status.Lifecycles = make(map[string]int, len(counts))
			for state, n := range counts {
				status.Lifecycles[state.String()] = n
			}
		}
	}

	return status
}

func (c *Container) initDatabase() error {
	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.sqlDB = dbBundle.SqlDB
	c.db = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(c.sqlDB, c.logger)
	if err != nil {
		return err
	}
	c.repositories = repos
	return nil
}

func (c *Container) initAdapters() error {
	adapters, err := ProvideAdapters(&c.config.Pricing, &c.config.Storage, c.logger)
	if err != nil {
		return err
	}
	c.adapters = adapters
	return nil
}

func (c *Container) initDispatcherAndWorkflow() error {
	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp

	engine, err := ProvideLifecycleEngine(&WorkflowDeps{
		Repos:      c.repositories,
		TxManager:  c.db,
		Dispatcher: c.dispatcher,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.engine = engine
	return nil
}

func (c *Container) initServices() error {
	services, err := ProvideServices(&ServiceDeps{
		Repos:         c.repositories,
		TxManager:     c.db,
		Engine:        c.engine,
		Adapters:      c.adapters,
		Dispatcher:    c.dispatcher,
		LocalCurrency: c.config.Pricing.LocalCurrency,
		Logger:        c.logger,
	})
	if err != nil {
		return err
	}
	c.services = services
	return nil
}

// initSubscribers registers the read models reacting to quote activity
func (c *Container) initSubscribers() error {
	if c.config.Storage.ArchiveOnConsolidation {
		RegisterArchiver(c.dispatcher, c.services.Quote)
	}

	notifier, err := ProvideNotifier(&c.config.Lark, c.dispatcher, c.logger)
	if err != nil {
		return err
	}
	c.notifier = notifier
	return nil
}

// LifecycleEngine returns the quote lifecycle engine.
func (c *Container) LifecycleEngine() workflow.LifecycleEngine {
	return c.engine
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// DocumentStore returns the document store.
func (c *Container) DocumentStore() port.DocumentStore {
	if c.adapters == nil {
		return nil
	}
	return c.adapters.Store
}

// LoggerAdapter adapts zap.Logger to the minimal Logger interfaces of the
// service, dispatcher, workflow and http packages.
type LoggerAdapter struct {
	logger *zap.Logger
}

// NewLoggerAdapter wraps logger
func NewLoggerAdapter(logger *zap.Logger) *LoggerAdapter {
	return &LoggerAdapter{logger: logger}
}

func (a *LoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *LoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
