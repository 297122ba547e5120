package repository

import (
	"context"
	"fmt"
	"iter"

	"github.com/kwayummari/ghf-approval-engine/internal/application/port"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/entity"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/workflow"
	"github.com/kwayummari/ghf-approval-engine/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const defaultAuditPageSize = 100

// AuditRepository implements port.AuditRepository
type AuditRepository struct {
	db       *sqlite.DB
	logger   *zap.Logger
	pageSize int
}

// NewAuditRepository creates a new audit repository. pageSize bounds each
// query issued while ranging over ListFor; zero uses the default.
func NewAuditRepository(db *sqlite.DB, logger *zap.Logger, pageSize int) port.AuditRepository {
	if pageSize <= 0 {
		pageSize = defaultAuditPageSize
	}
	return &AuditRepository{
		db:       db,
		logger:   logger,
		pageSize: pageSize,
	}
}

// Append inserts an entry with the next sequence number for its request
func (r *AuditRepository) Append(ctx context.Context, entry *entity.AuditEntry) error {
	query := `
		INSERT INTO audit_entries (
			request_id, sequence_number, actor_id, action, stage_name, comment, created_at
		)
		SELECT ?, COALESCE(MAX(sequence_number), 0) + 1, ?, ?, ?, ?, ?
		FROM audit_entries
		WHERE request_id = ?
		RETURNING id, sequence_number
	`

	err := r.db.Executor(ctx).QueryRowContext(ctx, query,
		entry.RequestID,
		entry.ActorID,
		string(entry.Action),
		entry.StageNameAtTime,
		entry.Comment,
		entry.Timestamp.UTC(),
		entry.RequestID,
	).Scan(&entry.ID, &entry.SequenceNumber)
	if err != nil {
		r.logger.Error("Failed to append audit entry",
			zap.String("request_id", entry.RequestID),
			zap.String("action", string(entry.Action)),
			zap.Error(err))
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// ListFor yields the request's entries in sequence order, one page per query
func (r *AuditRepository) ListFor(ctx context.Context, requestID string) iter.Seq2[*entity.AuditEntry, error] {
	return func(yield func(*entity.AuditEntry, error) bool) {
		var after int64
		for {
			page, err := r.page(ctx, requestID, after)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, entry := range page {
				if !yield(entry, nil) {
					return
				}
				after = entry.SequenceNumber
			}
			if len(page) < r.pageSize {
				return
			}
		}
	}
}

func (r *AuditRepository) page(ctx context.Context, requestID string, after int64) ([]*entity.AuditEntry, error) {
	query := `
		SELECT id, request_id, sequence_number, actor_id, action, stage_name, comment, created_at
		FROM audit_entries
		WHERE request_id = ? AND sequence_number > ?
		ORDER BY sequence_number
		LIMIT ?
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, requestID, after, r.pageSize)
	if err != nil {
		r.logger.Error("Failed to list audit entries", zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*entity.AuditEntry
	for rows.Next() {
		var entry entity.AuditEntry
		var action string
		if err := rows.Scan(
			&entry.ID,
			&entry.RequestID,
			&entry.SequenceNumber,
			&entry.ActorID,
			&action,
			&entry.StageNameAtTime,
			&entry.Comment,
			&entry.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entry.Action = workflow.Action(action)
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
