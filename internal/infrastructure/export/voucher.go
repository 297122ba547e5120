package export

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kwayummari/ghf-approval-engine/internal/application/port"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/entity"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// SheetName is the worksheet holding the voucher
const SheetName = "Voucher"

const timeLayout = "2006-01-02 15:04:05"

// VoucherExporter writes one .xlsx approval voucher per request
type VoucherExporter struct {
	storage     port.FileStorage
	companyName string
	logger      *zap.Logger
	now         func() time.Time
}

// NewVoucherExporter creates an exporter that saves vouchers through storage
func NewVoucherExporter(storage port.FileStorage, companyName string, logger *zap.Logger) *VoucherExporter {
	return &VoucherExporter{
		storage:     storage,
		companyName: companyName,
		logger:      logger,
		now:         time.Now,
	}
}

// VoucherPath is the storage path of a request's voucher
func VoucherPath(req *entity.ApprovalRequest) string {
	return fmt.Sprintf("vouchers/%s/%s.xlsx", req.RequestType, req.ID)
}

// Export renders the voucher and overwrites any earlier one for the same request
func (e *VoucherExporter) Export(ctx context.Context, req *entity.ApprovalRequest, trail []*entity.AuditEntry) (string, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			e.logger.Warn("Failed to close workbook", zap.Error(err))
		}
	}()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return "", fmt.Errorf("failed to name sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return "", fmt.Errorf("failed to create style: %w", err)
	}
	title, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		return "", fmt.Errorf("failed to create style: %w", err)
	}

	w := &sheetWriter{f: f, row: 1}
	w.put(title, e.companyName)
	w.put(title, "Approval Voucher")
	w.row++

	previous := ""
	if req.PreviousVersionID != nil {
		previous = *req.PreviousVersionID
	}
	for _, kv := range [][2]string{
		{"Request ID", req.ID},
		{"Request type", req.RequestType},
		{"Subject", req.SubjectID},
		{"Submitted by", req.SubmittedBy},
		{"Status", req.Status.String()},
		{"Version", fmt.Sprintf("%d", req.Version)},
		{"Resubmission of", previous},
		{"Generated at", e.now().UTC().Format(timeLayout)},
	} {
		w.pair(bold, kv[0], kv[1])
	}

	payload, err := req.PayloadMap()
	if err != nil {
		return "", fmt.Errorf("failed to decode payload: %w", err)
	}
	if len(payload) > 0 {
		w.row++
		w.put(bold, "Details")
		keys := make([]string, 0, len(payload))
		for k := range payload {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			w.pair(0, k, fmt.Sprint(payload[k]))
		}
	}

	w.row++
	w.put(bold, "Approval trail")
	w.cells(bold, "#", "Actor", "Action", "Stage", "Comment", "Time")
	for _, entry := range trail {
		w.cells(0,
			entry.SequenceNumber,
			entry.ActorID,
			string(entry.Action),
			entry.StageNameAtTime,
			entry.Comment,
			entry.Timestamp.UTC().Format(timeLayout),
		)
	}
	if w.err != nil {
		return "", fmt.Errorf("failed to fill voucher: %w", w.err)
	}

	if err := f.SetColWidth(SheetName, "A", "A", 18); err != nil {
		return "", err
	}
	if err := f.SetColWidth(SheetName, "B", "F", 24); err != nil {
		return "", err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return "", fmt.Errorf("failed to render voucher: %w", err)
	}

	path := VoucherPath(req)
	if err := e.storage.Save(ctx, path, buf.Bytes()); err != nil {
		return "", err
	}

	e.logger.Info("Voucher exported",
		zap.String("request_id", req.ID),
		zap.String("path", path),
		zap.Int("audit_entries", len(trail)))
	return e.storage.GetFullPath(path), nil
}

// sheetWriter appends rows to the voucher sheet and keeps the first error
type sheetWriter struct {
	f   *excelize.File
	row int
	err error
}

func (w *sheetWriter) put(style int, value string) {
	w.cells(style, value)
}

func (w *sheetWriter) pair(style int, label, value string) {
	if w.err != nil {
		return
	}
	w.set(1, label, style)
	w.set(2, value, 0)
	w.row++
}

func (w *sheetWriter) cells(style int, values ...interface{}) {
	if w.err != nil {
		return
	}
	for i, v := range values {
		w.set(i+1, v, style)
	}
	w.row++
}

func (w *sheetWriter) set(col int, value interface{}, style int) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, w.row)
	if err != nil {
		w.err = err
		return
	}
	if err := w.f.SetCellValue(SheetName, cell, value); err != nil {
		w.err = err
		return
	}
	if style != 0 {
		w.err = w.f.SetCellStyle(SheetName, cell, cell, style)
	}
}

var _ port.VoucherExporter = (*VoucherExporter)(nil)
