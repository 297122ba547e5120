package event

import (
	"testing"

	"github.com/kwayummari/ghf-approval-engine/internal/domain/workflow"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      bool
	}{
		{"submitted", TypeRequestSubmitted, true},
		{"advanced", TypeRequestAdvanced, true},
		{"approved", TypeRequestApproved, true},
		{"disbursed", TypeRequestDisbursed, true},
		{"guard denied", TypeGuardDenied, true},
		{"unknown", Type("request.archived"), false},
		{"empty", Type(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.IsValid(); got != tt.want {
				t.Errorf("Type.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTypeForStatus(t *testing.T) {
	tests := []struct {
		status workflow.Status
		want   Type
	}{
		{workflow.StatusPending, TypeRequestAdvanced},
		{workflow.StatusApproved, TypeRequestApproved},
		{workflow.StatusRejected, TypeRequestRejected},
		{workflow.StatusDisbursed, TypeRequestDisbursed},
		{workflow.StatusCancelled, TypeRequestCancelled},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := TypeForStatus(tt.status); got != tt.want {
				t.Errorf("TypeForStatus(%s) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestNewEvent(t *testing.T) {
	evt := NewEvent(TypeRequestApproved, "req-1", nil)

	if evt.ID == "" || evt.CorrelationID == "" {
		t.Error("NewEvent() should assign ids")
	}
	if evt.ID == evt.CorrelationID {
		t.Error("event id and correlation id should differ")
	}
	if evt.Payload == nil {
		t.Error("NewEvent() should never leave Payload nil")
	}
	if evt.RequestID != "req-1" || evt.Type != TypeRequestApproved {
		t.Errorf("NewEvent() = %+v", evt)
	}
}

func TestEvent_WithPayloadIsImmutable(t *testing.T) {
	original := NewEvent(TypeRequestApproved, "req-1", map[string]interface{}{"a": 1})
	updated := original.WithPayload("b", "two")

	if _, ok := original.Payload["b"]; ok {
		t.Error("WithPayload() mutated the original event")
	}
	if updated.GetPayloadString("b") != "two" || updated.ID != original.ID {
		t.Errorf("WithPayload() = %+v", updated)
	}
}

func TestEvent_PayloadAccessors(t *testing.T) {
	evt := NewEvent(TypeRequestDisbursed, "req-2", map[string]interface{}{
		"amount_cents": float64(12500),
		"count":        3,
		"memo":         "fuel",
		"urgent":       true,
	})

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"json number", evt.GetPayloadInt("amount_cents"), int64(12500)},
		{"int", evt.GetPayloadInt("count"), int64(3)},
		{"string as int", evt.GetPayloadInt("memo"), int64(0)},
		{"string", evt.GetPayloadString("memo"), "fuel"},
		{"missing string", evt.GetPayloadString("missing"), ""},
		{"bool", evt.GetPayloadBool("urgent"), true},
		{"missing bool", evt.GetPayloadBool("missing"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}
