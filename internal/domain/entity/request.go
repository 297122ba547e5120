package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/kwayummari/ghf-approval-engine/internal/domain/workflow"
)

// ApprovalRequest is one subject moving through a workflow definition
type ApprovalRequest struct {
	ID                string          `json:"id"`
	RequestType       string          `json:"request_type"`
	SubjectID         string          `json:"subject_id"`
	Status            workflow.Status `json:"status"`
	CurrentStageIndex int             `json:"current_stage_index"`
	Version           int64           `json:"version"`
	SubmittedBy       string          `json:"submitted_by"`
	PreviousVersionID *string         `json:"previous_version_id,omitempty"`
	Payload           json.RawMessage `json:"payload,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// NewDraft creates an unsaved draft request at version 0
func NewDraft(requestType, subjectID, submittedBy string, payload json.RawMessage, now time.Time) *ApprovalRequest {
	return &ApprovalRequest{
		ID:          uuid.New().String(),
		RequestType: requestType,
		SubjectID:   subjectID,
		Status:      workflow.StatusDraft,
		SubmittedBy: submittedBy,
		Payload:     payload,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Clone returns a deep copy of the request
func (r *ApprovalRequest) Clone() *ApprovalRequest {
	c := *r
	if r.PreviousVersionID != nil {
		prev := *r.PreviousVersionID
		c.PreviousVersionID = &prev
	}
	if r.Payload != nil {
		c.Payload = append(json.RawMessage(nil), r.Payload...)
	}
	return &c
}

// IsFinal reports whether the request's status can no longer change
func (r *ApprovalRequest) IsFinal() bool {
	return r.Status.IsTerminal()
}

// PayloadMap decodes the payload as a JSON object. Empty payloads yield an empty map.
func (r *ApprovalRequest) PayloadMap() (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if len(r.Payload) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(r.Payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}
