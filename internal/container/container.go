package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kwayummari/ghf-approval-engine/internal/application/dispatcher"
	"github.com/kwayummari/ghf-approval-engine/internal/application/port"
	"github.com/kwayummari/ghf-approval-engine/internal/application/service"
	"github.com/kwayummari/ghf-approval-engine/internal/application/workflow"
	domainwf "github.com/kwayummari/ghf-approval-engine/internal/domain/workflow"
	"github.com/kwayummari/ghf-approval-engine/internal/infrastructure/persistence/sqlite"
	"github.com/kwayummari/ghf-approval-engine/internal/infrastructure/worker"
	"github.com/kwayummari/ghf-approval-engine/pkg/database"
)

const healthPingTimeout = 2 * time.Second

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	conn         *database.DB
	db           *sqlite.DB
	repositories *RepositoryBundle
	registry     *domainwf.Registry

	// Infrastructure - External
	messenger port.MessageSender
	storage   *StorageBundle
	locks     *LockBundle
	events    *EventBundle

	// Application
	dispatcher dispatcher.Dispatcher
	engine     workflow.TransitionEngine
	services   *ServiceBundle

	// Workers
	workers *worker.WorkerManager

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Requests    port.RequestRepository
	Audits      port.AuditRepository
	SideEffects port.SideEffectRepository
	CashBook    port.CashBookRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Requests service.RequestService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
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

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components and begins processing.
// Components are initialized in dependency order:
// 1. Database, repositories and the definition registry
// 2. External clients (Lark messenger, file storage, voucher exporter)
// 3. Request lock and status-change stream
// 4. Side-effect dispatcher and transition engine
// 5. Application services
// 6. Workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	steps := []struct {
		name string
		init func() error
	}{
		{"database", c.initDatabase},
		{"external clients", c.initExternalClients},
		{"coordination", c.initCoordination},
		{"dispatcher and workflow", c.initDispatcherAndWorkflow},
		{"services", c.initServices},
		{"workers", c.initWorkers},
	}

	for _, step := range steps {
		if err := step.init(); err != nil {
			c.releaseLocked()
			return fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
		c.logger.Info("Initialized", zap.String("component", step.name))
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	errs := c.releaseLocked()

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// releaseLocked tears down whatever has been initialized. Callers hold c.mu.
func (c *Container) releaseLocked() []error {
	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
		c.workers = nil
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
		c.dispatcher = nil
	}

	if c.events != nil && c.events.Publisher != nil {
		if err := c.events.Publisher.Close(); err != nil {
			c.logger.Error("Failed to close event stream", zap.Error(err))
			errs = append(errs, fmt.Errorf("close event stream: %w", err))
		}
		c.events = nil
	}

	if c.locks != nil && c.locks.Redis != nil {
		if err := c.locks.Redis.Close(); err != nil {
			c.logger.Error("Failed to close redis client", zap.Error(err))
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
		c.locks = nil
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
		c.conn = nil
	}

	return errs
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, h ComponentHealth) {
		status.Components[name] = h
		if !h.Healthy {
			status.Overall = false
		}
	}

	ctx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()

	if c.conn != nil {
		if err := c.conn.PingContext(ctx); err != nil {
			set("database", ComponentHealth{Message: fmt.Sprintf("ping failed: %v", err)})
		} else {
			set("database", ComponentHealth{Healthy: true})
		}
	} else {
		set("database", ComponentHealth{Message: "not initialized"})
	}

	if c.registry != nil {
		set("registry", ComponentHealth{
			Healthy: c.registry.Sealed(),
			Message: fmt.Sprintf("request types: %d", len(c.registry.Types())),
		})
	} else {
		set("registry", ComponentHealth{Message: "not initialized"})
	}

	if c.locks != nil && c.locks.Redis != nil {
		if err := c.locks.Redis.Ping(ctx).Err(); err != nil {
			set("lock", ComponentHealth{Message: fmt.Sprintf("redis ping failed: %v", err)})
		} else {
			set("lock", ComponentHealth{Healthy: true, Message: "redis"})
		}
	} else if c.locks != nil {
		set("lock", ComponentHealth{Healthy: true, Message: "memory"})
	}

	if c.workers != nil {
		running := c.workers.IsRunning()
		failed := 0
		for _, ok := range c.workers.Status() {
			if !ok {
				failed++
			}
		}
		set("workers", ComponentHealth{
			Healthy: running && failed == 0,
			Message: fmt.Sprintf("worker count: %d, not started: %d", c.workers.GetWorkerCount(), failed),
		})
	} else {
		set("workers", ComponentHealth{Message: "not initialized"})
	}

	if c.dispatcher != nil {
		set("dispatcher", ComponentHealth{Healthy: true})
	} else {
		set("dispatcher", ComponentHealth{Message: "not initialized"})
	}

	return status
}

// HealthCheck adapts Health to the HTTP layer's health callback.
func (c *Container) HealthCheck(ctx context.Context) (bool, interface{}) {
	status := c.Health(ctx)
	return status.Overall, status.Components
}

func (c *Container) initDatabase() error {
	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.conn = dbBundle.Conn
	c.db = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(c.db, &c.config.Engine, c.logger)
	if err != nil {
		return err
	}
	c.repositories = repos

	registry, err := ProvideRegistry(c.config.Catalog, c.logger)
	if err != nil {
		return err
	}
	c.registry = registry
	return nil
}

func (c *Container) initExternalClients() error {
	messenger, err := ProvideMessenger(&c.config.Lark, c.logger)
	if err != nil {
		return err
	}
	c.messenger = messenger

	storageBundle, err := ProvideStorage(&c.config.Export, c.logger)
	if err != nil {
		return err
	}
	c.storage = storageBundle
	return nil
}

func (c *Container) initCoordination() error {
	locks, err := ProvideLocker(&c.config.Locking, c.logger)
	if err != nil {
		return err
	}
	c.locks = locks

	events, err := ProvideEvents(&c.config.Events, c.logger)
	if err != nil {
		return err
	}
	c.events = events
	return nil
}

func (c *Container) initDispatcherAndWorkflow() error {
	disp, err := ProvideDispatcher(&DispatcherDeps{
		Repos:     c.repositories,
		Storage:   c.storage,
		Messenger: c.messenger,
		Catalog:   c.config.Catalog,
		Config:    &c.config.SideEffects,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}
	c.dispatcher = disp

	deps := &WorkflowDeps{
		Registry:   c.registry,
		Repos:      c.repositories,
		TxManager:  c.db,
		Dispatcher: c.dispatcher,
		Locker:     c.locks.Locker,
		Config:     &c.config.Engine,
		Logger:     c.logger,
	}
	if c.events.Publisher != nil {
		deps.Publisher = c.events.Publisher
	}

	engine, err := ProvideWorkflowEngine(deps)
	if err != nil {
		return err
	}
	c.engine = engine
	return nil
}

func (c *Container) initServices() error {
	services, err := ProvideServices(c.registry, c.repositories, c.locks.Locker, c.logger)
	if err != nil {
		return err
	}
	c.services = services
	return nil
}

func (c *Container) initWorkers() error {
	workers, err := ProvideWorkers(&WorkerDeps{
		Engine: c.engine,
		Repos:  c.repositories,
		Events: c.events,
		Config: c.config.Config,
		Logger: c.logger,
	})
	if err != nil {
		return err
	}
	c.workers = workers

	if err := c.workers.StartAll(c.ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	return nil
}

// Getters for accessing container components

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Registry returns the sealed workflow definition registry.
func (c *Container) Registry() *domainwf.Registry {
	return c.registry
}

// Messenger returns the notification sender.
func (c *Container) Messenger() port.MessageSender {
	return c.messenger
}

// Locker returns the per-request lock.
func (c *Container) Locker() port.Locker {
	if c.locks == nil {
		return nil
	}
	return c.locks.Locker
}

// RedisClient returns the redis client, nil unless the redis lock driver is used.
func (c *Container) RedisClient() redis.UniversalClient {
	if c.locks == nil {
		return nil
	}
	return c.locks.Redis
}

// Dispatcher returns the side-effect dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Engine returns the transition engine.
func (c *Container) Engine() workflow.TransitionEngine {
	return c.engine
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// ServiceLogger returns the container's logger adapted to the application Logger interface.
func (c *Container) ServiceLogger() service.Logger {
	return &zapLoggerAdapter{logger: c.logger}
}

// zapLoggerAdapter adapts zap.Logger to the application-layer Logger interfaces.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
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
