package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Logger      LoggerConfig      `mapstructure:"logger"`
	Workflows   WorkflowsConfig   `mapstructure:"workflows"`
	Engine      EngineConfig      `mapstructure:"engine"`
	Locking     LockingConfig     `mapstructure:"locking"`
	SideEffects SideEffectsConfig `mapstructure:"side_effects"`
	Events      EventsConfig      `mapstructure:"events"`
	Lark        LarkConfig        `mapstructure:"lark"`
	Export      ExportConfig      `mapstructure:"export"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // gin mode: debug, release, test
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// WorkflowsConfig points at the workflow definitions catalog
type WorkflowsConfig struct {
	Path string `mapstructure:"path"` // empty or missing file uses the built-in catalog
}

// EngineConfig tunes the transition engine
type EngineConfig struct {
	PendingPageSize int `mapstructure:"pending_page_size"`
	AuditPageSize   int `mapstructure:"audit_page_size"`
}

// LockingConfig selects the per-request lock
type LockingConfig struct {
	Driver string      `mapstructure:"driver"` // memory or redis
	Redis  RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds the Redis lock settings
type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// SideEffectsConfig holds dispatcher and retry settings
type SideEffectsConfig struct {
	HandlerTimeout time.Duration `mapstructure:"handler_timeout"`
	RetrySchedule  string        `mapstructure:"retry_schedule"`
	RetryBatchSize int           `mapstructure:"retry_batch_size"`
	PayrollChatID  string        `mapstructure:"payroll_chat_id"`
}

// EventsConfig controls the status-change stream
type EventsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Topic   string `mapstructure:"topic"`
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
	BaseURL   string `mapstructure:"base_url"`
}

// ExportConfig holds voucher export configuration
type ExportConfig struct {
	OutputDir   string `mapstructure:"output_dir"`
	CompanyName string `mapstructure:"company_name"`
}

// Load loads configuration from file and environment variables.
// An empty configPath uses defaults and environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/approvals.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.auto_migrate", true)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	v.SetDefault("workflows.path", "configs/workflows.yaml")

	v.SetDefault("engine.pending_page_size", 200)
	v.SetDefault("engine.audit_page_size", 100)

	// Locking defaults
	v.SetDefault("locking.driver", "memory")
	v.SetDefault("locking.redis.addr", "localhost:6379")
	v.SetDefault("locking.redis.db", 0)
	v.SetDefault("locking.redis.key_prefix", "approval:lock:")
	v.SetDefault("locking.redis.ttl", 30*time.Second)

	// Side effect defaults
	v.SetDefault("side_effects.handler_timeout", 30*time.Second)
	v.SetDefault("side_effects.retry_schedule", "@every 5m")
	v.SetDefault("side_effects.retry_batch_size", 50)

	v.SetDefault("events.enabled", true)
	v.SetDefault("events.topic", "approval.requests")

	v.SetDefault("lark.enabled", false)

	// Export defaults
	v.SetDefault("export.output_dir", "generated_vouchers")
	v.SetDefault("export.company_name", "GHF")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) {
	// Sensitive credentials from environment
	_ = v.BindEnv("lark.app_id", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "LARK_APP_SECRET")
	_ = v.BindEnv("lark.enabled", "LARK_ENABLED")
	_ = v.BindEnv("locking.redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("locking.redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("locking.driver", "LOCK_DRIVER")
	_ = v.BindEnv("database.path", "DATABASE_PATH")
	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("side_effects.payroll_chat_id", "PAYROLL_CHAT_ID")
	_ = v.BindEnv("export.company_name", "COMPANY_NAME")
}

// Validate rejects missing or inconsistent values
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range", c.Server.Port))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}

	switch c.Locking.Driver {
	case "memory":
	case "redis":
		if c.Locking.Redis.Addr == "" {
			errs = append(errs, errors.New("locking.redis.addr is required for the redis driver"))
		}
		if c.Locking.Redis.TTL <= c.SideEffects.HandlerTimeout {
			errs = append(errs, errors.New("locking.redis.ttl must exceed side_effects.handler_timeout"))
		}
	default:
		errs = append(errs, fmt.Errorf("locking.driver %q must be memory or redis", c.Locking.Driver))
	}

	if c.SideEffects.HandlerTimeout <= 0 {
		errs = append(errs, errors.New("side_effects.handler_timeout must be positive"))
	}
	if c.SideEffects.RetryBatchSize <= 0 {
		errs = append(errs, errors.New("side_effects.retry_batch_size must be positive"))
	}

	if c.Lark.Enabled {
		if c.Lark.AppID == "" {
			errs = append(errs, errors.New("lark.app_id is required when lark is enabled"))
		}
		if c.Lark.AppSecret == "" {
			errs = append(errs, errors.New("lark.app_secret is required when lark is enabled"))
		}
	}

	if c.Export.OutputDir == "" {
		errs = append(errs, errors.New("export.output_dir is required"))
	}

	return errors.Join(errs...)
}

// Address returns the HTTP listen address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
