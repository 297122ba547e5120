package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var definitionValidator = validator.New(validator.WithRequiredStructEnabled())

// Stage is one step of a linear approval sequence. Exactly one of RequiredRole
// and RequiredPermission is set.
type Stage struct {
	Name               string `json:"name" validate:"required"`
	RequiredRole       string `json:"required_role,omitempty" validate:"required_without=RequiredPermission,excluded_with=RequiredPermission"`
	RequiredPermission string `json:"required_permission,omitempty"`
	TerminalOnApprove  bool   `json:"terminal_on_approve"`
	Disbursement       bool   `json:"disbursement"`
}

// Definition is the ordered stage list for one request type
type Definition struct {
	RequestType string  `json:"request_type" validate:"required"`
	Stages      []Stage `json:"stages" validate:"required,min=1,dive"`
}

// Validate checks the structural rules of a definition
func (d *Definition) Validate() error {
	if err := definitionValidator.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: definition %q: %s", ErrValidation, d.RequestType, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: definition %q: %v", ErrValidation, d.RequestType, err)
	}

	last := len(d.Stages) - 1
	seen := make(map[string]bool, len(d.Stages))
	for i, stage := range d.Stages {
		if seen[stage.Name] {
			return fmt.Errorf("%w: definition %q: duplicate stage name %q", ErrValidation, d.RequestType, stage.Name)
		}
		seen[stage.Name] = true

		if stage.TerminalOnApprove && i != last {
			return fmt.Errorf("%w: definition %q: stage %q is terminal_on_approve but not last", ErrValidation, d.RequestType, stage.Name)
		}
		if stage.Disbursement && i != last {
			return fmt.Errorf("%w: definition %q: stage %q is a disbursement stage but not last", ErrValidation, d.RequestType, stage.Name)
		}
	}

	return nil
}

// LastIndex returns the index of the final stage
func (d *Definition) LastIndex() int {
	return len(d.Stages) - 1
}

// StageAt returns the stage at index i
func (d *Definition) StageAt(i int) (Stage, bool) {
	if i < 0 || i >= len(d.Stages) {
		return Stage{}, false
	}
	return d.Stages[i], true
}

// DispatchesOnCompletion reports whether finishing the last stage triggers side effects
func (d *Definition) DispatchesOnCompletion() bool {
	return len(d.Stages) > 0 && d.Stages[d.LastIndex()].TerminalOnApprove
}

// Clone returns a copy that shares no memory with d
func (d *Definition) Clone() *Definition {
	out := &Definition{RequestType: d.RequestType}
	out.Stages = append([]Stage(nil), d.Stages...)
	return out
}
