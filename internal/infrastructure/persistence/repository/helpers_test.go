package repository

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/kwayummari/ghf-approval-engine/internal/domain/entity"
	"github.com/kwayummari/ghf-approval-engine/internal/infrastructure/persistence/sqlite"
	"github.com/kwayummari/ghf-approval-engine/migrations"
	"github.com/kwayummari/ghf-approval-engine/pkg/database"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "test.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).RunMigrations(migrations.FS))
	return sqlite.NewDB(db.DB, logger)
}

func seedRequest(t *testing.T, repo *RequestRepository, id string) *entity.ApprovalRequest {
	t.Helper()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	req := entity.NewDraft("petty_cash", "office-"+id, "alice", json.RawMessage(`{"amount_cents":1500}`), now)
	req.ID = id
	require.NoError(t, repo.Create(context.Background(), req))
	return req
}
