package entity

import (
	"time"

	"github.com/kwayummari/ghf-approval-engine/internal/domain/workflow"
)

// AuditEntry records one action attempt against a request. Entries are never updated.
type AuditEntry struct {
	ID              int64           `json:"id"`
	RequestID       string          `json:"request_id"`
	SequenceNumber  int64           `json:"sequence_number"`
	ActorID         string          `json:"actor_id"`
	Action          workflow.Action `json:"action"`
	StageNameAtTime string          `json:"stage_name_at_time,omitempty"`
	Comment         string          `json:"comment,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
}
