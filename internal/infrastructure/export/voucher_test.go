package export

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/kwayummari/ghf-approval-engine/internal/domain/entity"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/workflow"
	"github.com/kwayummari/ghf-approval-engine/internal/infrastructure/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func TestVoucherExporter_Export(t *testing.T) {
	store := storage.NewLocalFileStorage(t.TempDir(), zap.NewNop())
	exporter := NewVoucherExporter(store, "GHF Health", zap.NewNop())
	exporter.now = func() time.Time { return time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC) }

	req := &entity.ApprovalRequest{
		ID:          "req-42",
		RequestType: "payroll",
		SubjectID:   "2026-03",
		Status:      workflow.StatusApproved,
		Version:     3,
		SubmittedBy: "alice",
		Payload:     json.RawMessage(`{"headcount":12,"amount_cents":990000}`),
	}
	at := time.Date(2026, 3, 31, 17, 0, 0, 0, time.UTC)
	trail := []*entity.AuditEntry{
		{SequenceNumber: 1, ActorID: "alice", Action: workflow.ActionSubmit, Timestamp: at},
		{SequenceNumber: 2, ActorID: "bob", Action: workflow.ActionApprove, StageNameAtTime: "finance", Comment: "ok", Timestamp: at},
	}

	path, err := exporter.Export(context.Background(), req, trail)
	require.NoError(t, err)
	assert.Equal(t, store.GetFullPath("vouchers/payroll/req-42.xlsx"), path)

	data, err := store.Read(context.Background(), VoucherPath(req))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)

	flat := map[string]string{}
	for _, row := range rows {
		if len(row) >= 2 {
			flat[row[0]] = row[1]
		}
	}
	assert.Equal(t, "GHF Health", rows[0][0])
	assert.Equal(t, "req-42", flat["Request ID"])
	assert.Equal(t, "APPROVED", flat["Status"])
	assert.Equal(t, "3", flat["Version"])
	assert.Equal(t, "12", flat["headcount"])
	assert.Equal(t, "2026-04-01 08:00:00", flat["Generated at"])

	last := rows[len(rows)-1]
	assert.Equal(t, []string{"2", "bob", "APPROVE", "finance", "ok", "2026-03-31 17:00:00"}, last)
}

func TestVoucherExporter_ExportIsRepeatable(t *testing.T) {
	store := storage.NewLocalFileStorage(t.TempDir(), zap.NewNop())
	exporter := NewVoucherExporter(store, "GHF Health", zap.NewNop())
	req := &entity.ApprovalRequest{ID: "r1", RequestType: "replenishment", Status: workflow.StatusDisbursed}

	first, err := exporter.Export(context.Background(), req, nil)
	require.NoError(t, err)
	second, err := exporter.Export(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.True(t, store.Exists(context.Background(), VoucherPath(req)))
}
