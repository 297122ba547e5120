package container

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kwayummari/ghf-approval-engine/internal/application/dispatcher"
	"github.com/kwayummari/ghf-approval-engine/internal/application/effects"
	"github.com/kwayummari/ghf-approval-engine/internal/application/port"
	"github.com/kwayummari/ghf-approval-engine/internal/application/service"
	"github.com/kwayummari/ghf-approval-engine/internal/application/workflow"
	"github.com/kwayummari/ghf-approval-engine/internal/config"
	domainwf "github.com/kwayummari/ghf-approval-engine/internal/domain/workflow"
	"github.com/kwayummari/ghf-approval-engine/internal/infrastructure/export"
	infraLark "github.com/kwayummari/ghf-approval-engine/internal/infrastructure/external/lark"
	"github.com/kwayummari/ghf-approval-engine/internal/infrastructure/lock"
	"github.com/kwayummari/ghf-approval-engine/internal/infrastructure/messaging"
	"github.com/kwayummari/ghf-approval-engine/internal/infrastructure/persistence/repository"
	"github.com/kwayummari/ghf-approval-engine/internal/infrastructure/persistence/sqlite"
	"github.com/kwayummari/ghf-approval-engine/internal/infrastructure/storage"
	"github.com/kwayummari/ghf-approval-engine/internal/infrastructure/worker"
	"github.com/kwayummari/ghf-approval-engine/migrations"
	"github.com/kwayummari/ghf-approval-engine/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Conn           *database.DB
	TransactionMgr *sqlite.DB
}

// StorageBundle holds storage-related components.
type StorageBundle struct {
	FileStorage port.FileStorage
	Exporter    port.VoucherExporter
}

// LockBundle holds the per-request locker and, for the redis driver, its client.
type LockBundle struct {
	Locker port.Locker
	Redis  redis.UniversalClient
}

// EventBundle holds the status-change stream. Both fields are nil when events are disabled.
type EventBundle struct {
	PubSub    *gochannel.GoChannel
	Publisher *messaging.EventPublisher
}

// ProvideDatabase opens the database and applies pending migrations when auto_migrate is set.
func ProvideDatabase(cfg *config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	conn, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		migrator := database.NewMigrator(conn, logger)
		if err := migrator.RunMigrations(migrations.FS); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return &DatabaseBundle{
		Conn:           conn,
		TransactionMgr: sqlite.NewDB(conn.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories over the transaction-aware database.
func ProvideRepositories(db *sqlite.DB, engineCfg *config.EngineConfig, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	auditPageSize := 0
	if engineCfg != nil {
		auditPageSize = engineCfg.AuditPageSize
	}

	return &RepositoryBundle{
		Requests:    repository.NewRequestRepository(db, logger),
		Audits:      repository.NewAuditRepository(db, logger, auditPageSize),
		SideEffects: repository.NewSideEffectRepository(db, logger),
		CashBook:    repository.NewCashBookRepository(db, logger),
	}, nil
}

// ProvideRegistry builds the sealed definition registry from the catalog.
func ProvideRegistry(catalog *config.WorkflowCatalog, logger *zap.Logger) (*domainwf.Registry, error) {
	if catalog == nil {
		return nil, fmt.Errorf("workflow catalog is required")
	}

	registry, err := catalog.BuildRegistry()
	if err != nil {
		return nil, err
	}

	logger.Info("Workflow definitions registered", zap.Strings("request_types", registry.Types()))
	return registry, nil
}

// ProvideMessenger returns the Lark messenger, or a logging sender when Lark is disabled.
func ProvideMessenger(cfg *config.LarkConfig, logger *zap.Logger) (port.MessageSender, error) {
	if cfg == nil {
		return nil, fmt.Errorf("lark config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if !cfg.Enabled {
		logger.Info("Lark disabled, notifications are logged only")
		return infraLark.NewLogSender(logger), nil
	}

	sdkClient := infraLark.NewSDKClient(infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		BaseURL:   cfg.BaseURL,
	}, logger)

	return infraLark.NewMessenger(sdkClient, logger), nil
}

// ProvideStorage creates file storage and the voucher exporter writing into it.
func ProvideStorage(cfg *config.ExportConfig, logger *zap.Logger) (*StorageBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("export config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	fileStorage := storage.NewLocalFileStorage(cfg.OutputDir, logger)

	return &StorageBundle{
		FileStorage: fileStorage,
		Exporter:    export.NewVoucherExporter(fileStorage, cfg.CompanyName, logger),
	}, nil
}

// ProvideLocker returns the in-process keyed locker or the Redis lock, per locking.driver.
func ProvideLocker(cfg *config.LockingConfig, logger *zap.Logger) (*LockBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("locking config is required")
	}

	switch cfg.Driver {
	case "", "memory":
		return &LockBundle{Locker: workflow.NewKeyedLocker()}, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		locker := lock.NewRedisLocker(client, lock.RedisConfig{
			KeyPrefix: cfg.Redis.KeyPrefix,
			TTL:       cfg.Redis.TTL,
		}, logger)

		logger.Info("Using redis request lock", zap.String("addr", cfg.Redis.Addr))
		return &LockBundle{Locker: locker, Redis: client}, nil

	default:
		return nil, fmt.Errorf("unknown lock driver %q", cfg.Driver)
	}
}

// ProvideEvents creates the in-process status-change stream when events are enabled.
func ProvideEvents(cfg *config.EventsConfig, logger *zap.Logger) (*EventBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("events config is required")
	}
	if !cfg.Enabled {
		return &EventBundle{}, nil
	}

	pubSub := messaging.NewGoChannel(messaging.NewZapAdapter(logger))

	return &EventBundle{
		PubSub:    pubSub,
		Publisher: messaging.NewEventPublisher(pubSub, cfg.Topic, logger),
	}, nil
}

// DispatcherDeps holds dependencies required for creating the side-effect dispatcher.
type DispatcherDeps struct {
	Repos     *RepositoryBundle
	Storage   *StorageBundle
	Messenger port.MessageSender
	Catalog   *config.WorkflowCatalog
	Config    *config.SideEffectsConfig
	Logger    *zap.Logger
}

// ProvideDispatcher creates the dispatcher and registers the catalog's effects on it.
func ProvideDispatcher(deps *DispatcherDeps) (dispatcher.Dispatcher, error) {
	if deps == nil {
		return nil, fmt.Errorf("dispatcher dependencies are required")
	}
	if deps.Repos == nil || deps.Storage == nil || deps.Catalog == nil || deps.Config == nil {
		return nil, fmt.Errorf("repositories, storage, catalog and side effect config are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	d := dispatcher.NewDispatcher(
		deps.Repos.SideEffects,
		dispatcher.WithLogger(&zapLoggerAdapter{logger: deps.Logger.Named("dispatcher")}),
		dispatcher.WithHandlerTimeout(deps.Config.HandlerTimeout),
	)

	catalog := effects.Catalog(effects.Dependencies{
		Messenger:     deps.Messenger,
		PayrollChatID: deps.Config.PayrollChatID,
		CashBook:      deps.Repos.CashBook,
		Exporter:      deps.Storage.Exporter,
		Requests:      deps.Repos.Requests,
		Audits:        deps.Repos.Audits,
	})

	if err := effects.Register(d, deps.Catalog.Effects, catalog); err != nil {
		return nil, fmt.Errorf("failed to register side effects: %w", err)
	}

	return d, nil
}

// WorkflowDeps holds dependencies required for creating the transition engine.
type WorkflowDeps struct {
	Registry   *domainwf.Registry
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Locker     port.Locker
	Publisher  port.EventPublisher
	Config     *config.EngineConfig
	Logger     *zap.Logger
}

// ProvideWorkflowEngine creates the transition engine.
func ProvideWorkflowEngine(deps *WorkflowDeps) (workflow.TransitionEngine, error) {
	if deps == nil {
		return nil, fmt.Errorf("workflow dependencies are required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	opts := []workflow.EngineOption{
		workflow.WithLogger(&zapLoggerAdapter{logger: deps.Logger.Named("engine")}),
	}
	if deps.Locker != nil {
		opts = append(opts, workflow.WithLocker(deps.Locker))
	}
	if deps.Publisher != nil {
		opts = append(opts, workflow.WithPublisher(deps.Publisher))
	}
	if deps.Config != nil {
		opts = append(opts, workflow.WithPendingPageSize(deps.Config.PendingPageSize))
	}

	return workflow.NewEngine(
		deps.Registry,
		deps.Repos.Requests,
		deps.Repos.Audits,
		deps.TxManager,
		deps.Dispatcher,
		opts...,
	), nil
}

// ProvideServices creates all application services.
func ProvideServices(registry *domainwf.Registry, repos *RepositoryBundle, locker port.Locker, logger *zap.Logger) (*ServiceBundle, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if locker == nil {
		return nil, fmt.Errorf("locker is required")
	}

	return &ServiceBundle{
		Requests: service.NewRequestService(
			registry,
			repos.Requests,
			repos.SideEffects,
			locker,
			&zapLoggerAdapter{logger: logger.Named("requests")},
		),
	}, nil
}

// WorkerDeps holds dependencies required for creating workers.
type WorkerDeps struct {
	Engine workflow.TransitionEngine
	Repos  *RepositoryBundle
	Events *EventBundle
	Config *config.Config
	Logger *zap.Logger
}

// ProvideWorkers creates and registers all background workers.
// Returns *worker.WorkerManager with all workers registered but not started.
func ProvideWorkers(deps *WorkerDeps) (*worker.WorkerManager, error) {
	if deps == nil {
		return nil, fmt.Errorf("worker dependencies are required")
	}
	if deps.Engine == nil || deps.Repos == nil || deps.Config == nil {
		return nil, fmt.Errorf("engine, repositories and config are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	manager := worker.NewWorkerManager(deps.Logger)

	retryCfg := worker.RetryWorkerConfig{
		Schedule:  deps.Config.SideEffects.RetrySchedule,
		BatchSize: deps.Config.SideEffects.RetryBatchSize,
	}
	manager.Register(worker.NewRetryWorker(retryCfg, deps.Engine, deps.Repos.SideEffects, deps.Logger))

	if deps.Events != nil && deps.Events.PubSub != nil {
		manager.Register(messaging.NewActivityLogger(deps.Events.PubSub, deps.Config.Events.Topic, deps.Logger))
	}

	return manager, nil
}
