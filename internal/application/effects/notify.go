package effects

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kwayummari/ghf-approval-engine/internal/application/dispatcher"
	"github.com/kwayummari/ghf-approval-engine/internal/application/port"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/event"
)

const (
	receiveIDChat = "chat_id"
	receiveIDUser = "user_id"
)

// NotifyPayroll posts the approved request to the payroll chat
func NotifyPayroll(sender port.MessageSender, chatID string) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		if sender == nil {
			return errors.New("no message sender configured")
		}
		if chatID == "" {
			return errors.New("payroll chat id is not configured")
		}
		return sender.SendText(ctx, receiveIDChat, chatID, approvalText(evt, "ready for payroll"))
	}
}

// NotifySubmitter messages the person who submitted the request
func NotifySubmitter(sender port.MessageSender) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		if sender == nil {
			return errors.New("no message sender configured")
		}
		if evt.SubmittedBy == "" {
			return fmt.Errorf("request %s has no submitter", evt.RequestID)
		}
		return sender.SendText(ctx, receiveIDUser, evt.SubmittedBy, approvalText(evt, "your request was approved"))
	}
}

func approvalText(evt *event.Event, suffix string) string {
	kind := strings.ReplaceAll(evt.RequestType, "_", " ")
	return fmt.Sprintf("[%s] %s %s is %s: %s (request %s)",
		strings.ToUpper(kind), kind, evt.SubjectID, strings.ToLower(evt.Status), suffix, evt.RequestID)
}
