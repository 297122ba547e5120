package effects

import (
	"context"
	"errors"
	"fmt"

	"github.com/kwayummari/ghf-approval-engine/internal/application/dispatcher"
	"github.com/kwayummari/ghf-approval-engine/internal/application/port"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/entity"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/event"
)

// ExportVoucher renders the request and its audit trail with exporter
func ExportVoucher(exporter port.VoucherExporter, requests port.RequestRepository, audits port.AuditRepository) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		if exporter == nil || requests == nil || audits == nil {
			return errors.New("voucher export is not configured")
		}

		req, err := requests.GetByID(ctx, evt.RequestID)
		if err != nil {
			return err
		}

		var trail []*entity.AuditEntry
		for entry, err := range audits.ListFor(ctx, evt.RequestID) {
			if err != nil {
				return fmt.Errorf("read audit trail: %w", err)
			}
			trail = append(trail, entry)
		}

		_, err = exporter.Export(ctx, req, trail)
		return err
	}
}
