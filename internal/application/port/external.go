package port

import (
	"context"

	"github.com/kwayummari/ghf-approval-engine/internal/domain/entity"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/event"
)

// Locker serializes work on one key across goroutines (or instances)
type Locker interface {
	// Lock blocks until the key is held or ctx is done. The returned func releases it.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// EventPublisher publishes committed status changes
type EventPublisher interface {
	Publish(ctx context.Context, evt *event.Event) error
}

// MessageSender delivers chat notifications
type MessageSender interface {
	// SendText sends a plain-text message. receiveIDType is one of open_id, user_id, chat_id.
	SendText(ctx context.Context, receiveIDType, receiveID, text string) error
}

// VoucherExporter renders an approval voucher for a finished request
type VoucherExporter interface {
	// Export writes the voucher and returns its storage path
	Export(ctx context.Context, req *entity.ApprovalRequest, trail []*entity.AuditEntry) (string, error)
}
