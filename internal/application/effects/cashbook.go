package effects

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kwayummari/ghf-approval-engine/internal/application/dispatcher"
	"github.com/kwayummari/ghf-approval-engine/internal/application/port"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/entity"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/event"
)

// AmountKey is the payload field holding the replenishment amount in cents
const AmountKey = "amount_cents"

// CreditCashBook posts the disbursed amount to the cash book once per request
func CreditCashBook(repo port.CashBookRepository) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		if repo == nil {
			return errors.New("no cash book configured")
		}

		amount := evt.GetPayloadInt(AmountKey)
		if amount <= 0 {
			return fmt.Errorf("request %s: payload %s must be a positive integer", evt.RequestID, AmountKey)
		}

		// a record lost between credit and MarkExecuted must not credit twice
		existing, err := repo.GetByRequestID(ctx, evt.RequestID)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}

		memo := evt.GetPayloadString("memo")
		if memo == "" {
			memo = fmt.Sprintf("%s %s", evt.RequestType, evt.SubjectID)
		}

		return repo.Credit(ctx, &entity.CashBookEntry{
			RequestID:   evt.RequestID,
			SubjectID:   evt.SubjectID,
			AmountCents: amount,
			Memo:        memo,
			CreatedAt:   time.Now(),
		})
	}
}
