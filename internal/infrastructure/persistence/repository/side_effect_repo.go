package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kwayummari/ghf-approval-engine/internal/application/port"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/entity"
	"github.com/kwayummari/ghf-approval-engine/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// ErrRecordNotPending is returned when marking a record that is not being executed
var ErrRecordNotPending = errors.New("side effect record is not pending")

const sideEffectColumns = `id, request_id, effect_key, status, attempts, last_error,
	executed_at, created_at, updated_at`

// SideEffectRepository implements port.SideEffectRepository
type SideEffectRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewSideEffectRepository creates a new side-effect record repository
func NewSideEffectRepository(db *sqlite.DB, logger *zap.Logger) port.SideEffectRepository {
	return &SideEffectRepository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Get retrieves one record, or nil when the effect never ran for the request
func (r *SideEffectRepository) Get(ctx context.Context, requestID, effectKey string) (*entity.SideEffectRecord, error) {
	query := `SELECT ` + sideEffectColumns + `
		FROM side_effect_records
		WHERE request_id = ? AND effect_key = ?`

	rec, err := scanSideEffect(r.db.Executor(ctx).QueryRowContext(ctx, query, requestID, effectKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get side effect record: %w", err)
	}
	return rec, nil
}

// Claim creates or re-arms the record in a single transaction
func (r *SideEffectRepository) Claim(ctx context.Context, requestID, effectKey string) (*entity.SideEffectRecord, bool, error) {
	var rec *entity.SideEffectRecord
	var claimed bool

	err := r.db.WithTransaction(ctx, func(ctx context.Context) error {
		existing, err := r.Get(ctx, requestID, effectKey)
		if err != nil {
			return err
		}
		now := r.now().UTC()

		switch {
		case existing == nil:
			query := `
				INSERT INTO side_effect_records (
					request_id, effect_key, status, attempts, last_error, created_at, updated_at
				) VALUES (?, ?, ?, 1, '', ?, ?)
			`
			result, err := r.db.Executor(ctx).ExecContext(ctx, query,
				requestID, effectKey, string(entity.SideEffectPending), now, now)
			if err != nil {
				return fmt.Errorf("failed to create side effect record: %w", err)
			}
			id, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to get last insert id: %w", err)
			}
			rec = &entity.SideEffectRecord{
				ID:        id,
				RequestID: requestID,
				EffectKey: effectKey,
				Status:    entity.SideEffectPending,
				Attempts:  1,
				CreatedAt: now,
				UpdatedAt: now,
			}
			claimed = true

		case existing.Status == entity.SideEffectFailed:
			query := `
				UPDATE side_effect_records
				SET status = ?, attempts = attempts + 1, updated_at = ?
				WHERE id = ? AND status = ?
			`
			if _, err := r.db.Executor(ctx).ExecContext(ctx, query,
				string(entity.SideEffectPending), now, existing.ID, string(entity.SideEffectFailed)); err != nil {
				return fmt.Errorf("failed to re-arm side effect record: %w", err)
			}
			existing.Status = entity.SideEffectPending
			existing.Attempts++
			existing.UpdatedAt = now
			rec = existing
			claimed = true

		default:
			rec = existing
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to claim side effect",
			zap.String("request_id", requestID),
			zap.String("effect_key", effectKey),
			zap.Error(err))
		return nil, false, err
	}
	return rec, claimed, nil
}

// MarkExecuted records a successful run
func (r *SideEffectRepository) MarkExecuted(ctx context.Context, requestID, effectKey string, at time.Time) error {
	query := `
		UPDATE side_effect_records
		SET status = ?, executed_at = ?, last_error = '', updated_at = ?
		WHERE request_id = ? AND effect_key = ? AND status = ?
	`
	return r.transition(ctx, query, requestID, effectKey,
		string(entity.SideEffectExecuted), at.UTC(), r.now().UTC(),
		requestID, effectKey, string(entity.SideEffectPending))
}

// MarkFailed records a failed run and its error
func (r *SideEffectRepository) MarkFailed(ctx context.Context, requestID, effectKey, lastError string) error {
	query := `
		UPDATE side_effect_records
		SET status = ?, last_error = ?, updated_at = ?
		WHERE request_id = ? AND effect_key = ? AND status = ?
	`
	return r.transition(ctx, query, requestID, effectKey,
		string(entity.SideEffectFailed), lastError, r.now().UTC(),
		requestID, effectKey, string(entity.SideEffectPending))
}

func (r *SideEffectRepository) transition(ctx context.Context, query, requestID, effectKey string, args ...interface{}) error {
	result, err := r.db.Executor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update side effect record",
			zap.String("request_id", requestID),
			zap.String("effect_key", effectKey),
			zap.Error(err))
		return fmt.Errorf("failed to update side effect record: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s/%s", ErrRecordNotPending, requestID, effectKey)
	}
	return nil
}

// ListByRequestID returns every record of a request ordered by effect key
func (r *SideEffectRepository) ListByRequestID(ctx context.Context, requestID string) ([]*entity.SideEffectRecord, error) {
	query := `SELECT ` + sideEffectColumns + `
		FROM side_effect_records
		WHERE request_id = ?
		ORDER BY effect_key`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list side effect records: %w", err)
	}
	defer rows.Close()

	var records []*entity.SideEffectRecord
	for rows.Next() {
		rec, err := scanSideEffect(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan side effect record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListFailedRequestIDs returns up to limit requests with a failed effect, least recently touched first
func (r *SideEffectRepository) ListFailedRequestIDs(ctx context.Context, limit int) ([]string, error) {
	query := `
		SELECT request_id
		FROM side_effect_records
		WHERE status = ?
		GROUP BY request_id
		ORDER BY MIN(updated_at)
		LIMIT ?
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, string(entity.SideEffectFailed), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed side effects: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanSideEffect(row rowScanner) (*entity.SideEffectRecord, error) {
	var rec entity.SideEffectRecord
	var status string
	var executedAt sql.NullTime

	if err := row.Scan(
		&rec.ID,
		&rec.RequestID,
		&rec.EffectKey,
		&status,
		&rec.Attempts,
		&rec.LastError,
		&executedAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return nil, err
	}

	rec.Status = entity.SideEffectStatus(status)
	if executedAt.Valid {
		t := executedAt.Time
		rec.ExecutedAt = &t
	}
	return &rec, nil
}
