package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kwayummari/ghf-approval-engine/internal/application/port"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/entity"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/workflow"
)

// maxHistoryDepth stops History on corrupted link cycles
const maxHistoryDepth = 100

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// DraftInput describes a new request
type DraftInput struct {
	RequestType string
	SubjectID   string
	SubmittedBy string
	Payload     json.RawMessage
}

// ResubmitInput describes a resubmission of a rejected request
type ResubmitInput struct {
	RejectedID   string
	ActorID      string
	NewSubjectID string
	Payload      json.RawMessage

	// ExpectedVersion, when set, must equal the rejected request's version
	ExpectedVersion *int64
}

// RequestService creates requests and answers questions about their lineage
type RequestService interface {
	// CreateDraft stores a new draft for a registered request type
	CreateDraft(ctx context.Context, in DraftInput) (*entity.ApprovalRequest, error)

	// Resubmit creates a new draft linked to a rejected request. The rejected request is left untouched.
	Resubmit(ctx context.Context, in ResubmitInput) (*entity.ApprovalRequest, error)

	// History returns the resubmission chain ending at id, oldest first
	History(ctx context.Context, id string) ([]*entity.ApprovalRequest, error)

	// SideEffects returns the side-effect records of a request
	SideEffects(ctx context.Context, id string) ([]*entity.SideEffectRecord, error)
}

type requestServiceImpl struct {
	registry *workflow.Registry
	requests port.RequestRepository
	records  port.SideEffectRepository
	locker   port.Locker
	logger   Logger
	now      func() time.Time
}

// NewRequestService creates a new RequestService
func NewRequestService(
	registry *workflow.Registry,
	requests port.RequestRepository,
	records port.SideEffectRepository,
	locker port.Locker,
	logger Logger,
) RequestService {
	return &requestServiceImpl{
		registry: registry,
		requests: requests,
		records:  records,
		locker:   locker,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *requestServiceImpl) CreateDraft(ctx context.Context, in DraftInput) (*entity.ApprovalRequest, error) {
	if strings.TrimSpace(in.SubjectID) == "" {
		return nil, fmt.Errorf("%w: subject id is required", workflow.ErrValidation)
	}
	if strings.TrimSpace(in.SubmittedBy) == "" {
		return nil, fmt.Errorf("%w: submitter is required", workflow.ErrValidation)
	}
	if err := validatePayload(in.Payload); err != nil {
		return nil, err
	}
	if _, err := s.registry.Get(in.RequestType); err != nil {
		return nil, err
	}

	req := entity.NewDraft(in.RequestType, in.SubjectID, in.SubmittedBy, in.Payload, s.now())
	if err := s.requests.Create(ctx, req); err != nil {
		s.logger.Error("Failed to create draft",
			"request_type", in.RequestType,
			"subject_id", in.SubjectID,
			"error", err,
		)
		return nil, fmt.Errorf("create draft: %w", err)
	}

	s.logger.Info("Draft created",
		"request_id", req.ID,
		"request_type", req.RequestType,
		"subject_id", req.SubjectID,
		"submitted_by", req.SubmittedBy,
	)
	return req, nil
}

func (s *requestServiceImpl) Resubmit(ctx context.Context, in ResubmitInput) (*entity.ApprovalRequest, error) {
	if in.RejectedID == "" || in.ActorID == "" {
		return nil, fmt.Errorf("%w: rejected request id and actor are required", workflow.ErrValidation)
	}
	if in.ExpectedVersion != nil && *in.ExpectedVersion < 0 {
		return nil, fmt.Errorf("%w: expected version must not be negative", workflow.ErrValidation)
	}
	if err := validatePayload(in.Payload); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, in.RejectedID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock request %s: %w", in.RejectedID, err)
	}
	defer unlock()

	source, err := s.requests.GetByID(ctx, in.RejectedID)
	if err != nil {
		return nil, err
	}
	if in.ExpectedVersion != nil && *in.ExpectedVersion != source.Version {
		return nil, fmt.Errorf("%w: request %s is at version %d, expected %d",
			workflow.ErrConcurrencyConflict, source.ID, source.Version, *in.ExpectedVersion)
	}
	if source.Status != workflow.StatusRejected {
		return nil, fmt.Errorf("%w: request %s is %s, only rejected requests can be resubmitted",
			workflow.ErrInvalidState, source.ID, source.Status)
	}
	if source.SubmittedBy != in.ActorID {
		return nil, fmt.Errorf("%w: only the original submitter may resubmit request %s",
			workflow.ErrUnauthorized, source.ID)
	}

	successor, err := s.requests.GetSuccessor(ctx, source.ID)
	if err != nil {
		return nil, err
	}
	if successor != nil {
		return nil, fmt.Errorf("%w: request %s was already resubmitted as %s",
			workflow.ErrInvalidState, source.ID, successor.ID)
	}

	subjectID := in.NewSubjectID
	if subjectID == "" {
		subjectID = source.SubjectID
	}
	payload := in.Payload
	if len(payload) == 0 {
		payload = source.Payload
	}

	draft := entity.NewDraft(source.RequestType, subjectID, source.SubmittedBy, payload, s.now())
	prev := source.ID
	draft.PreviousVersionID = &prev

	if err := s.requests.Create(ctx, draft); err != nil {
		s.logger.Error("Failed to create resubmission",
			"rejected_id", source.ID,
			"error", err,
		)
		return nil, fmt.Errorf("create resubmission: %w", err)
	}

	s.logger.Info("Request resubmitted",
		"request_id", draft.ID,
		"previous_version_id", source.ID,
		"request_type", draft.RequestType,
	)
	return draft, nil
}

func (s *requestServiceImpl) History(ctx context.Context, id string) ([]*entity.ApprovalRequest, error) {
	var chain []*entity.ApprovalRequest
	seen := make(map[string]bool)

	for next := id; next != ""; {
		if seen[next] || len(chain) >= maxHistoryDepth {
			return nil, fmt.Errorf("%w: resubmission chain of %s does not terminate", workflow.ErrInvalidState, id)
		}
		seen[next] = true

		req, err := s.requests.GetByID(ctx, next)
		if err != nil {
			return nil, err
		}
		chain = append(chain, req)

		next = ""
		if req.PreviousVersionID != nil {
			next = *req.PreviousVersionID
		}
	}

	// oldest first
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

func (s *requestServiceImpl) SideEffects(ctx context.Context, id string) ([]*entity.SideEffectRecord, error) {
	if _, err := s.requests.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.records.ListByRequestID(ctx, id)
}

func validatePayload(payload json.RawMessage) error {
	if len(payload) == 0 {
		return nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(payload, &obj); err != nil {
		return fmt.Errorf("%w: payload must be a JSON object", workflow.ErrValidation)
	}
	return nil
}
