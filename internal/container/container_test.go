package container

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kwayummari/ghf-approval-engine/internal/application/service"
	"github.com/kwayummari/ghf-approval-engine/internal/application/workflow"
	"github.com/kwayummari/ghf-approval-engine/internal/config"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/entity"
	domainwf "github.com/kwayummari/ghf-approval-engine/internal/domain/workflow"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()

	return &Config{
		Config: &config.Config{
			Server: config.ServerConfig{Host: "127.0.0.1", Port: 8080},
			Database: config.DatabaseConfig{
				Path:         filepath.Join(dir, "approvals.db"),
				MaxOpenConns: 4,
				MaxIdleConns: 2,
				AutoMigrate:  true,
			},
			Engine:  config.EngineConfig{PendingPageSize: 10, AuditPageSize: 10},
			Locking: config.LockingConfig{Driver: "memory"},
			SideEffects: config.SideEffectsConfig{
				HandlerTimeout: 5 * time.Second,
				RetrySchedule:  "@every 1h",
				RetryBatchSize: 10,
				PayrollChatID:  "oc_payroll",
			},
			Events: config.EventsConfig{Enabled: true, Topic: "approval.test"},
			Export: config.ExportConfig{OutputDir: filepath.Join(dir, "vouchers"), CompanyName: "GHF"},
		},
		Catalog: config.DefaultWorkflows(),
	}
}

func TestNewContainer_Validation(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(testConfig(t), nil)
	assert.Error(t, err)

	cfg := testConfig(t)
	cfg.Catalog = nil
	_, err = NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Locking.Driver = "etcd"
	_, err = NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestContainer_Lifecycle(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(ctx), "second start must fail")

	health := c.Health(ctx)
	assert.True(t, health.Overall, "components: %+v", health.Components)
	for _, name := range []string{"database", "registry", "lock", "workers", "dispatcher"} {
		assert.Contains(t, health.Components, name)
	}
	assert.Equal(t, map[string]bool{"RetryWorker": true, "ActivityLogger": true}, c.Workers().Status())

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close())
	assert.Error(t, c.Start(ctx))
}

func TestContainer_TimesheetApproval(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	defer c.Close()

	engine := c.Engine()
	alice := domainwf.Actor{ID: "alice"}
	bob := domainwf.Actor{ID: "bob", Roles: []string{"supervisor"}}
	carol := domainwf.Actor{ID: "carol", Roles: []string{"hr"}}

	req, err := c.Services().Requests.CreateDraft(ctx, service.DraftInput{
		RequestType: "timesheet",
		SubjectID:   "ts-2026-01",
		SubmittedBy: alice.ID,
	})
	require.NoError(t, err)

	req, err = engine.Submit(ctx, workflow.Command{RequestID: req.ID, Actor: alice, ExpectedVersion: 0})
	require.NoError(t, err)
	assert.Equal(t, int64(1), req.Version)

	// hr cannot act on the supervisor stage
	_, err = engine.Approve(ctx, workflow.Command{RequestID: req.ID, Actor: carol, ExpectedVersion: 1})
	assert.True(t, errors.Is(err, domainwf.ErrUnauthorized))

	req, err = engine.Approve(ctx, workflow.Command{RequestID: req.ID, Actor: bob, ExpectedVersion: 1})
	require.NoError(t, err)
	req, err = engine.Approve(ctx, workflow.Command{RequestID: req.ID, Actor: carol, ExpectedVersion: 2})
	require.NoError(t, err)
	assert.Equal(t, domainwf.StatusApproved, req.Status)
	assert.Equal(t, int64(3), req.Version)

	records, err := c.Services().Requests.SideEffects(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "notify-payroll", records[0].EffectKey)
	assert.Equal(t, entity.SideEffectExecuted, records[0].Status)

	seq, err := engine.ListAudit(ctx, req.ID)
	require.NoError(t, err)
	var actions []domainwf.Action
	for entry, err := range seq {
		require.NoError(t, err)
		actions = append(actions, entry.Action)
	}
	assert.Equal(t, []domainwf.Action{
		domainwf.ActionSubmit,
		domainwf.ActionGuardDenied,
		domainwf.ActionApprove,
		domainwf.ActionApprove,
	}, actions)
}
