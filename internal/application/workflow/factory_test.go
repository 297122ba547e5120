package workflow

import (
	"context"
	"errors"
	"testing"

	domainwf "github.com/kwayummari/ghf-approval-engine/internal/domain/workflow"
)

func TestBuildApprovalLifecycle(t *testing.T) {
	lifecycle := BuildApprovalLifecycle()

	intermediate := domainwf.StagePosition{Index: 0}
	second := domainwf.StagePosition{Index: 1}
	last := domainwf.StagePosition{Index: 1, Last: true}
	lastDisbursement := domainwf.StagePosition{Index: 1, Last: true, Disbursement: true}

	tests := []struct {
		name    string
		from    domainwf.Status
		action  domainwf.Action
		pos     domainwf.StagePosition
		want    domainwf.Status
		wantErr bool
	}{
		{"submit draft", domainwf.StatusDraft, domainwf.ActionSubmit, intermediate, domainwf.StatusSubmitted, false},
		{"route submitted", domainwf.StatusSubmitted, domainwf.ActionRoute, intermediate, domainwf.StatusPending, false},
		{"cancel draft", domainwf.StatusDraft, domainwf.ActionCancel, intermediate, domainwf.StatusCancelled, false},
		{"cancel submitted", domainwf.StatusSubmitted, domainwf.ActionCancel, intermediate, domainwf.StatusCancelled, false},
		{"approve intermediate", domainwf.StatusPending, domainwf.ActionApprove, intermediate, domainwf.StatusPending, false},
		{"approve last", domainwf.StatusPending, domainwf.ActionApprove, last, domainwf.StatusApproved, false},
		{"approve last disbursement", domainwf.StatusPending, domainwf.ActionApprove, lastDisbursement, domainwf.StatusDisbursed, false},
		{"disburse last disbursement", domainwf.StatusPending, domainwf.ActionDisburse, lastDisbursement, domainwf.StatusDisbursed, false},
		{"disburse last plain", domainwf.StatusPending, domainwf.ActionDisburse, last, "", true},
		{"disburse intermediate", domainwf.StatusPending, domainwf.ActionDisburse, intermediate, "", true},
		{"reject pending", domainwf.StatusPending, domainwf.ActionReject, second, domainwf.StatusRejected, false},
		{"cancel first stage", domainwf.StatusPending, domainwf.ActionCancel, intermediate, domainwf.StatusCancelled, false},
		{"cancel second stage", domainwf.StatusPending, domainwf.ActionCancel, second, "", true},
		{"approve draft", domainwf.StatusDraft, domainwf.ActionApprove, intermediate, "", true},
		{"approve approved", domainwf.StatusApproved, domainwf.ActionApprove, last, "", true},
		{"reject rejected", domainwf.StatusRejected, domainwf.ActionReject, intermediate, "", true},
		{"cancel disbursed", domainwf.StatusDisbursed, domainwf.ActionCancel, lastDisbursement, "", true},
		{"submit cancelled", domainwf.StatusCancelled, domainwf.ActionSubmit, intermediate, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine := lifecycle.Build(tt.from)
			err := machine.Fire(domainwf.WithPosition(context.Background(), tt.pos), tt.action)

			if tt.wantErr {
				if !errors.Is(err, domainwf.ErrInvalidState) {
					t.Errorf("Fire() error = %v, want ErrInvalidState", err)
				}
				if machine.Status() != tt.from {
					t.Errorf("status moved to %s on a failed Fire()", machine.Status())
				}
				return
			}
			if err != nil {
				t.Fatalf("Fire() failed: %v", err)
			}
			if machine.Status() != tt.want {
				t.Errorf("status = %s, want %s", machine.Status(), tt.want)
			}
		})
	}
}

func TestBuildApprovalLifecycle_RequiresPosition(t *testing.T) {
	machine := BuildApprovalLifecycle().Build(domainwf.StatusPending)

	if err := machine.Fire(context.Background(), domainwf.ActionApprove); !errors.Is(err, domainwf.ErrConditionFailed) {
		t.Errorf("Fire() without position error = %v, want ErrConditionFailed", err)
	}
}
