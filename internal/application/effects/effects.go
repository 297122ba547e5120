// Package effects holds the side effects run when a request finishes its last stage.
package effects

import (
	"fmt"
	"sort"

	"github.com/kwayummari/ghf-approval-engine/internal/application/dispatcher"
	"github.com/kwayummari/ghf-approval-engine/internal/application/port"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/workflow"
)

const (
	KeyNotifyPayroll   = "notify-payroll"
	KeyNotifySubmitter = "notify-submitter"
	KeyUpdateCashBook  = "update-cash-book"
	KeyExportVoucher   = "export-voucher"
)

// Spec is a named handler waiting to be bound to request types
type Spec struct {
	Description string
	Handler     dispatcher.Handler
}

// Dependencies are the collaborators the built-in effects need
type Dependencies struct {
	Messenger     port.MessageSender
	PayrollChatID string
	CashBook      port.CashBookRepository
	Exporter      port.VoucherExporter
	Requests      port.RequestRepository
	Audits        port.AuditRepository
}

// Catalog returns the built-in effects keyed by effect key
func Catalog(deps Dependencies) map[string]Spec {
	return map[string]Spec{
		KeyNotifyPayroll: {
			Description: "Notify the payroll channel of an approved request",
			Handler:     NotifyPayroll(deps.Messenger, deps.PayrollChatID),
		},
		KeyNotifySubmitter: {
			Description: "Tell the submitter their request was approved",
			Handler:     NotifySubmitter(deps.Messenger),
		},
		KeyUpdateCashBook: {
			Description: "Credit the petty-cash book with the disbursed amount",
			Handler:     CreditCashBook(deps.CashBook),
		},
		KeyExportVoucher: {
			Description: "Write an approval voucher workbook",
			Handler:     ExportVoucher(deps.Exporter, deps.Requests, deps.Audits),
		},
	}
}

// Register binds effects to request types. bindings maps request type to effect keys.
func Register(d dispatcher.Dispatcher, bindings map[string][]string, catalog map[string]Spec) error {
	types := make([]string, 0, len(bindings))
	for requestType := range bindings {
		types = append(types, requestType)
	}
	sort.Strings(types)

	for _, requestType := range types {
		for _, key := range bindings[requestType] {
			spec, ok := catalog[key]
			if !ok {
				return fmt.Errorf("%w: request type %s references unknown effect %q", workflow.ErrValidation, requestType, key)
			}
			if err := d.RegisterEffectInfo(dispatcher.EffectInfo{
				RequestType: requestType,
				Key:         key,
				Description: spec.Description,
				Handler:     spec.Handler,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}
