package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	assert.Equal(t, "data/approvals.db", cfg.Database.Path)
	assert.Equal(t, "memory", cfg.Locking.Driver)
	assert.Equal(t, 30*time.Second, cfg.SideEffects.HandlerTimeout)
	assert.Equal(t, "@every 5m", cfg.SideEffects.RetrySchedule)
	assert.True(t, cfg.Events.Enabled)
	assert.False(t, cfg.Lark.Enabled)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	path := writeFile(t, "config.yaml", `
server:
  port: 9090
database:
  path: /tmp/from-file.db
side_effects:
  handler_timeout: 5s
locking:
  driver: redis
  redis:
    ttl: 20s
`)
	t.Setenv("DATABASE_PATH", "/tmp/from-env.db")
	t.Setenv("PAYROLL_CHAT_ID", "oc_payroll")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/tmp/from-env.db", cfg.Database.Path)
	assert.Equal(t, 5*time.Second, cfg.SideEffects.HandlerTimeout)
	assert.Equal(t, "redis", cfg.Locking.Driver)
	assert.Equal(t, 20*time.Second, cfg.Locking.Redis.TTL)
	assert.Equal(t, "oc_payroll", cfg.SideEffects.PayrollChatID)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"unknown lock driver", func(c *Config) { c.Locking.Driver = "etcd" }, "locking.driver"},
		{"redis ttl shorter than handlers", func(c *Config) {
			c.Locking.Driver = "redis"
			c.Locking.Redis.TTL = time.Second
		}, "locking.redis.ttl"},
		{"lark without credentials", func(c *Config) { c.Lark.Enabled = true }, "lark.app_id"},
		{"no handler timeout", func(c *Config) { c.SideEffects.HandlerTimeout = 0 }, "handler_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
