package config

import (
	"path/filepath"
	"testing"

	"github.com/kwayummari/ghf-approval-engine/internal/domain/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultWorkflows_AreValid(t *testing.T) {
	catalog := DefaultWorkflows()

	registry, err := catalog.BuildRegistry()
	require.NoError(t, err)
	assert.True(t, registry.Sealed())
	assert.Equal(t, []string{"document", "leave", "payroll", "replenishment", "timesheet", "travel_request"}, registry.Types())

	for requestType := range catalog.Effects {
		def, err := registry.Get(requestType)
		require.NoError(t, err)
		assert.True(t, def.DispatchesOnCompletion(), requestType)
	}
}

func TestLoadWorkflows_ShippedCatalogMatchesDefaults(t *testing.T) {
	catalog, err := LoadWorkflows(filepath.Join("..", "..", "configs", "workflows.yaml"))
	require.NoError(t, err)

	defaults := DefaultWorkflows()
	assert.Equal(t, defaults.Definitions, catalog.Definitions)
	assert.Equal(t, defaults.Effects, catalog.Effects)
}

func TestLoadWorkflows_MissingFileUsesDefaults(t *testing.T) {
	catalog, err := LoadWorkflows(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Len(t, catalog.Definitions, len(DefaultWorkflows().Definitions))
}

func TestParseWorkflows(t *testing.T) {
	catalog, err := ParseWorkflows([]byte(`
workflows:
  - request_type: purchase
    stages:
      - name: dept_head
        required_role: dept_head
      - name: finance
        required_permission: purchase.approve
        terminal_on_approve: true
    effects: [notify-submitter]
`))
	require.NoError(t, err)
	require.Len(t, catalog.Definitions, 1)

	def := catalog.Definitions[0]
	assert.Equal(t, "purchase", def.RequestType)
	assert.Equal(t, "purchase.approve", def.Stages[1].RequiredPermission)
	assert.True(t, def.Stages[1].TerminalOnApprove)
	assert.Equal(t, []string{"notify-submitter"}, catalog.Effects["purchase"])
}

func TestParseWorkflows_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{"empty", ``, workflow.ErrValidation},
		{"unknown field", `
workflows:
  - request_type: a
    stages: [{name: s, required_role: r, terminal: true}]
`, workflow.ErrValidation},
		{"bad request type", `
workflows:
  - request_type: Petty Cash
    stages: [{name: s, required_role: r}]
`, workflow.ErrValidation},
		{"duplicate type", `
workflows:
  - request_type: a
    stages: [{name: s, required_role: r}]
  - request_type: a
    stages: [{name: s, required_role: r}]
`, workflow.ErrDuplicateDefinition},
		{"role and permission", `
workflows:
  - request_type: a
    stages: [{name: s, required_role: r, required_permission: p}]
`, workflow.ErrValidation},
		{"effects without terminal stage", `
workflows:
  - request_type: a
    stages: [{name: s, required_role: r}]
    effects: [notify-submitter]
`, workflow.ErrValidation},
		{"repeated effect", `
workflows:
  - request_type: a
    stages: [{name: s, required_role: r, terminal_on_approve: true}]
    effects: [notify-submitter, notify-submitter]
`, workflow.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWorkflows([]byte(tt.yaml))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
