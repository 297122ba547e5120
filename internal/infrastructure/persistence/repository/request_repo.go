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

const requestColumns = `id, request_type, subject_id, status, current_stage_index, version,
	submitted_by, previous_version_id, payload, created_at, updated_at`

// RequestRepository implements port.RequestRepository
type RequestRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *sqlite.DB, logger *zap.Logger) port.RequestRepository {
	return &RequestRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new approval request
func (r *RequestRepository) Create(ctx context.Context, req *entity.ApprovalRequest) error {
	query := `
		INSERT INTO approval_requests (
			id, request_type, subject_id, status, current_stage_index, version,
			submitted_by, previous_version_id, payload, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		req.ID,
		req.RequestType,
		req.SubjectID,
		string(req.Status),
		req.CurrentStageIndex,
		req.Version,
		req.SubmittedBy,
		nullableString(req.PreviousVersionID),
		nullablePayload(req.Payload),
		req.CreatedAt.UTC(),
		req.UpdatedAt.UTC(),
	)
	if err != nil {
		if sqlite.IsUniqueViolation(err) {
			return fmt.Errorf("%w: request %s or a successor of it already exists", workflow.ErrInvalidState, req.ID)
		}
		r.logger.Error("Failed to create request", zap.String("request_id", req.ID), zap.Error(err))
		return fmt.Errorf("failed to create request: %w", err)
	}
	return nil
}

// GetByID retrieves a request by ID
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*entity.ApprovalRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM approval_requests WHERE id = ?`

	req, err := scanRequest(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: request %s", workflow.ErrNotFound, id)
	}
	if err != nil {
		r.logger.Error("Failed to get request", zap.String("request_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

// GetSuccessor retrieves the request resubmitted from id
func (r *RequestRepository) GetSuccessor(ctx context.Context, id string) (*entity.ApprovalRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM approval_requests WHERE previous_version_id = ?`

	req, err := scanRequest(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get successor: %w", err)
	}
	return req, nil
}

// UpdateState writes the mutable state columns guarded by the stored version
func (r *RequestRepository) UpdateState(ctx context.Context, req *entity.ApprovalRequest, expectedVersion int64) error {
	query := `
		UPDATE approval_requests
		SET status = ?, current_stage_index = ?, version = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		string(req.Status),
		req.CurrentStageIndex,
		req.Version,
		req.UpdatedAt.UTC(),
		req.ID,
		expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to update request state", zap.String("request_id", req.ID), zap.Error(err))
		return fmt.Errorf("failed to update request state: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: request %s is no longer at version %d",
			workflow.ErrConcurrencyConflict, req.ID, expectedVersion)
	}
	return nil
}

// ListByStatus returns the page of requests in status after the cursor, oldest first
func (r *RequestRepository) ListByStatus(ctx context.Context, status workflow.Status, after port.RequestCursor, limit int) ([]*entity.ApprovalRequest, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if after.ID == "" {
		query := `SELECT ` + requestColumns + `
			FROM approval_requests
			WHERE status = ?
			ORDER BY created_at, id
			LIMIT ?`
		rows, err = r.db.Executor(ctx).QueryContext(ctx, query, string(status), limit)
	} else {
		query := `SELECT ` + requestColumns + `
			FROM approval_requests
			WHERE status = ? AND (created_at > ? OR (created_at = ? AND id > ?))
			ORDER BY created_at, id
			LIMIT ?`
		createdAt := after.CreatedAt.UTC()
		rows, err = r.db.Executor(ctx).QueryContext(ctx, query, string(status), createdAt, createdAt, after.ID, limit)
	}
	if err != nil {
		r.logger.Error("Failed to list requests", zap.String("status", string(status)), zap.Error(err))
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var requests []*entity.ApprovalRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (*entity.ApprovalRequest, error) {
	var req entity.ApprovalRequest
	var status string
	var previous, payload sql.NullString

	err := row.Scan(
		&req.ID,
		&req.RequestType,
		&req.SubjectID,
		&status,
		&req.CurrentStageIndex,
		&req.Version,
		&req.SubmittedBy,
		&previous,
		&payload,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.Status = workflow.Status(status)
	if previous.Valid {
		prev := previous.String
		req.PreviousVersionID = &prev
	}
	if payload.Valid && payload.String != "" {
		req.Payload = []byte(payload.String)
	}
	return &req, nil
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullablePayload(p []byte) sql.NullString {
	if len(p) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(p), Valid: true}
}
