package container

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/garyjia/travel-backoffice/internal/application/dispatcher"
	"github.com/garyjia/travel-backoffice/internal/application/port"
	"github.com/garyjia/travel-backoffice/internal/application/service"
	"github.com/garyjia/travel-backoffice/internal/application/workflow"
	"github.com/garyjia/travel-backoffice/internal/domain/event"
	"github.com/garyjia/travel-backoffice/internal/infrastructure/export"
	infraLark "github.com/garyjia/travel-backoffice/internal/infrastructure/external/lark"
	"github.com/garyjia/travel-backoffice/internal/infrastructure/persistence/repository"
	"github.com/garyjia/travel-backoffice/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/travel-backoffice/internal/infrastructure/rates"
	"github.com/garyjia/travel-backoffice/internal/infrastructure/storage"
	"github.com/garyjia/travel-backoffice/internal/observability/metrics"
	"github.com/garyjia/travel-backoffice/migrations"
	"github.com/garyjia/travel-backoffice/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
}

// AdapterBundle holds the pricing and document adapters.
type AdapterBundle struct {
	Rates    port.RateProvider
	Exporter port.QuoteExporter
	Store    port.DocumentStore
}

// ProvideDatabase opens the SQLite database, applies pending migrations and
// wraps the connection in a transaction manager.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if dir := filepath.Dir(cfg.Path); cfg.Path != database.MemoryPath && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	var source fs.FS = migrations.FS
	if cfg.MigrationsDir != "" {
		source = os.DirFS(cfg.MigrationsDir)
	}
	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(source); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if version, err := migrator.Version(); err == nil {
		logger.Info("Database schema ready", zap.Int("schema_version", version))
	}

	return &DatabaseBundle{
		SqlDB:          db.DB,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Groups:     repository.NewGroupRepository(sqlDB, logger),
		Quotes:     repository.NewQuoteRepository(sqlDB, logger),
		Lifecycles: repository.NewLifecycleRepository(sqlDB, logger),
		History:    repository.NewHistoryRepository(sqlDB, logger),
	}, nil
}

// ProvideAdapters creates the rate provider, the workbook exporter and the
// document store.
func ProvideAdapters(pricing *PricingConfig, storageCfg *StorageConfig, logger *zap.Logger) (*AdapterBundle, error) {
	if pricing == nil || storageCfg == nil {
		return nil, fmt.Errorf("pricing and storage config are required")
	}

	provider, err := rates.NewStaticProvider(pricing.Rates, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build rate table: %w", err)
	}

	store, err := storage.NewDocumentStore(storageCfg.OutputDir, logger)
	if err != nil {
		return nil, err
	}

	return &AdapterBundle{
		Rates:    provider,
		Exporter: export.NewWorkbookExporter(storageCfg.CompanyName, int32(storageCfg.RoundingPlaces), logger),
		Store:    store,
	}, nil
}

// ProvideDispatcher creates the event dispatcher with handler metrics.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(NewLoggerAdapter(logger.Named("dispatcher"))),
		dispatcher.WithObserver(metrics.HandlerObserver{}),
	), nil
}

// WorkflowDeps holds dependencies required for creating the lifecycle engine.
type WorkflowDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
}

// ProvideLifecycleEngine creates the quote lifecycle engine.
func ProvideLifecycleEngine(deps *WorkflowDeps) (workflow.LifecycleEngine, error) {
	if deps == nil {
		return nil, fmt.Errorf("workflow dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	opts := []workflow.EngineOption{
		workflow.WithLogger(NewLoggerAdapter(deps.Logger.Named("lifecycle"))),
	}
	if deps.Dispatcher != nil {
		opts = append(opts, workflow.WithDispatcher(deps.Dispatcher))
	}

	return workflow.NewEngine(
		deps.Repos.Lifecycles,
		deps.Repos.History,
		deps.Repos.Quotes,
		deps.TxManager,
		opts...,
	), nil
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Repos         *RepositoryBundle
	TxManager     port.TransactionManager
	Engine        workflow.LifecycleEngine
	Adapters      *AdapterBundle
	Dispatcher    dispatcher.Dispatcher
	LocalCurrency string
	Logger        *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("lifecycle engine is required")
	}
	if deps.Adapters == nil {
		return nil, fmt.Errorf("adapters are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	serviceLogger := NewLoggerAdapter(deps.Logger.Named("service"))

	return &ServiceBundle{
		Benchmark: service.NewBenchmarkService(
			deps.Repos.Groups,
			deps.TxManager,
			deps.Adapters.Rates,
			deps.Dispatcher,
			deps.LocalCurrency,
			serviceLogger,
		),
		Quote: service.NewQuoteService(
			deps.Repos.Groups,
			deps.Repos.Quotes,
			deps.TxManager,
			deps.Engine,
			deps.Adapters.Exporter,
			deps.Adapters.Store,
			deps.Dispatcher,
			serviceLogger,
		),
	}, nil
}

// ProvideNotifier connects the Lark messenger to the dispatcher. It returns nil
// when Lark is disabled.
func ProvideNotifier(cfg *LarkConfig, d dispatcher.Dispatcher, logger *zap.Logger) (*infraLark.Notifier, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	if d == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	messenger, err := infraLark.NewMessenger(infraLark.Config{
		AppID:          cfg.AppID,
		AppSecret:      cfg.AppSecret,
		BaseURL:        cfg.BaseURL,
		RequestTimeout: cfg.RequestTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create lark client: %w", err)
	}

	notifier := infraLark.NewNotifier(messenger, cfg.NotifyChatID, logger)
	notifier.Register(d)
	return notifier, nil
}

// RegisterArchiver stores a workbook for every consolidated quote.
func RegisterArchiver(d dispatcher.Dispatcher, quotes service.QuoteService) {
	d.SubscribeNamed(event.TypeQuoteConsolidated, "quote_archiver", service.ArchiveOnConsolidation(quotes))
}
