package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kwayummari/ghf-approval-engine/internal/application/port"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/entity"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/workflow"
	"github.com/kwayummari/ghf-approval-engine/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// CashBookRepository implements port.CashBookRepository
type CashBookRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewCashBookRepository creates a new cash book repository
func NewCashBookRepository(db *sqlite.DB, logger *zap.Logger) port.CashBookRepository {
	return &CashBookRepository{
		db:     db,
		logger: logger,
	}
}

// Credit appends an entry whose balance is the previous balance plus the amount
func (r *CashBookRepository) Credit(ctx context.Context, entry *entity.CashBookEntry) error {
	if entry.AmountCents <= 0 {
		return fmt.Errorf("%w: credit amount must be positive", workflow.ErrValidation)
	}

	query := `
		INSERT INTO cash_book_entries (
			request_id, subject_id, amount_cents, balance_cents, memo, created_at
		)
		SELECT ?, ?, ?,
			COALESCE((SELECT balance_cents FROM cash_book_entries ORDER BY id DESC LIMIT 1), 0) + ?,
			?, ?
		RETURNING id, balance_cents
	`

	err := r.db.Executor(ctx).QueryRowContext(ctx, query,
		entry.RequestID,
		entry.SubjectID,
		entry.AmountCents,
		entry.AmountCents,
		entry.Memo,
		entry.CreatedAt.UTC(),
	).Scan(&entry.ID, &entry.BalanceCents)
	if err != nil {
		if sqlite.IsUniqueViolation(err) {
			return fmt.Errorf("%w: request %s is already credited", workflow.ErrInvalidState, entry.RequestID)
		}
		r.logger.Error("Failed to credit cash book", zap.String("request_id", entry.RequestID), zap.Error(err))
		return fmt.Errorf("failed to credit cash book: %w", err)
	}

	r.logger.Info("Cash book credited",
		zap.String("request_id", entry.RequestID),
		zap.Int64("amount_cents", entry.AmountCents),
		zap.Int64("balance_cents", entry.BalanceCents))
	return nil
}

// GetByRequestID retrieves the entry posted for a request
func (r *CashBookRepository) GetByRequestID(ctx context.Context, requestID string) (*entity.CashBookEntry, error) {
	query := `
		SELECT id, request_id, subject_id, amount_cents, balance_cents, memo, created_at
		FROM cash_book_entries
		WHERE request_id = ?
	`

	var entry entity.CashBookEntry
	err := r.db.Executor(ctx).QueryRowContext(ctx, query, requestID).Scan(
		&entry.ID,
		&entry.RequestID,
		&entry.SubjectID,
		&entry.AmountCents,
		&entry.BalanceCents,
		&entry.Memo,
		&entry.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cash book entry: %w", err)
	}
	return &entry, nil
}

// Balance returns the running balance of the latest entry
func (r *CashBookRepository) Balance(ctx context.Context) (int64, error) {
	var balance int64
	err := r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT COALESCE((SELECT balance_cents FROM cash_book_entries ORDER BY id DESC LIMIT 1), 0)`,
	).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("failed to get cash book balance: %w", err)
	}
	return balance, nil
}
