package http

import (
	"encoding/json"
	"time"

	"github.com/kwayummari/ghf-approval-engine/internal/application/dispatcher"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/entity"
)

// Response is the envelope for successful responses. Errors use problem bodies.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Version    string      `json:"version"`
	Components interface{} `json:"components,omitempty"`
}

// CreateRequestBody is the body of POST /api/v1/requests
type CreateRequestBody struct {
	RequestType string          `json:"request_type" validate:"required,max=64"`
	SubjectID   string          `json:"subject_id" validate:"required,max=128"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// TransitionBody is the body of every transition endpoint
type TransitionBody struct {
	ExpectedVersion *int64 `json:"expected_version" validate:"required,gte=0"`
	Comment         string `json:"comment,omitempty" validate:"max=4000"`
}

// ResubmitBody is the body of POST /api/v1/requests/:id/resubmit
type ResubmitBody struct {
	ExpectedVersion *int64          `json:"expected_version,omitempty" validate:"omitempty,gte=0"`
	SubjectID       string          `json:"subject_id,omitempty" validate:"max=128"`
	Payload         json.RawMessage `json:"payload,omitempty"`
}

// SideEffectOutcome reports one effect of a manual retry
type SideEffectOutcome struct {
	EffectKey string `json:"effect_key"`
	Status    string `json:"status"`
	Executed  bool   `json:"executed"`
	Error     string `json:"error,omitempty"`
}

// AuditTrailResponse lists a request's audit entries oldest first
type AuditTrailResponse struct {
	RequestID string               `json:"request_id"`
	Entries   []*entity.AuditEntry `json:"entries"`
}

func toOutcomes(outcomes []dispatcher.Outcome) []SideEffectOutcome {
	out := make([]SideEffectOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		item := SideEffectOutcome{
			EffectKey: o.EffectKey,
			Status:    string(o.Status),
			Executed:  o.Executed,
		}
		if o.Err != nil {
			item.Error = o.Err.Error()
		}
		out = append(out, item)
	}
	return out
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
