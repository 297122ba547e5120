package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kwayummari/ghf-approval-engine/internal/domain/workflow"
	"github.com/kwayummari/ghf-approval-engine/pkg/utils"
	"gopkg.in/yaml.v3"
)

// WorkflowCatalog is the parsed set of definitions and the effects bound to each request type
type WorkflowCatalog struct {
	Definitions []workflow.Definition
	Effects     map[string][]string
}

type catalogFile struct {
	Workflows []workflowEntry `yaml:"workflows"`
}

type workflowEntry struct {
	RequestType string       `yaml:"request_type"`
	Stages      []stageEntry `yaml:"stages"`
	Effects     []string     `yaml:"effects"`
}

type stageEntry struct {
	Name               string `yaml:"name"`
	RequiredRole       string `yaml:"required_role"`
	RequiredPermission string `yaml:"required_permission"`
	TerminalOnApprove  bool   `yaml:"terminal_on_approve"`
	Disbursement       bool   `yaml:"disbursement"`
}

// LoadWorkflows reads the catalog at path, or returns the built-in catalog when
// path is empty or the file does not exist
func LoadWorkflows(path string) (*WorkflowCatalog, error) {
	if path == "" {
		return DefaultWorkflows(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultWorkflows(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read workflows file: %w", err)
	}
	catalog, err := ParseWorkflows(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return catalog, nil
}

// ParseWorkflows decodes and validates a YAML catalog. Unknown fields are rejected.
func ParseWorkflows(data []byte) (*WorkflowCatalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file catalogFile
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: decode workflows: %v", workflow.ErrValidation, err)
	}
	if len(file.Workflows) == 0 {
		return nil, fmt.Errorf("%w: no workflows defined", workflow.ErrValidation)
	}

	catalog := &WorkflowCatalog{Effects: make(map[string][]string)}
	seen := make(map[string]bool, len(file.Workflows))
	for _, entry := range file.Workflows {
		def := entry.definition()
		if err := utils.ValidateIdentifier("request type", def.RequestType); err != nil {
			return nil, fmt.Errorf("%w: %v", workflow.ErrValidation, err)
		}
		if seen[def.RequestType] {
			return nil, fmt.Errorf("%w: %s", workflow.ErrDuplicateDefinition, def.RequestType)
		}
		seen[def.RequestType] = true

		if err := def.Validate(); err != nil {
			return nil, err
		}

		if len(entry.Effects) > 0 && !def.DispatchesOnCompletion() {
			return nil, fmt.Errorf("%w: %s binds effects but its last stage is not terminal_on_approve",
				workflow.ErrValidation, def.RequestType)
		}
		keys := make(map[string]bool, len(entry.Effects))
		for _, key := range entry.Effects {
			if err := utils.ValidateIdentifier("effect key", key); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", workflow.ErrValidation, def.RequestType, err)
			}
			if keys[key] {
				return nil, fmt.Errorf("%w: %s: effect %q listed twice", workflow.ErrValidation, def.RequestType, key)
			}
			keys[key] = true
		}

		catalog.Definitions = append(catalog.Definitions, def)
		if len(entry.Effects) > 0 {
			catalog.Effects[def.RequestType] = append([]string(nil), entry.Effects...)
		}
	}
	return catalog, nil
}

func (e workflowEntry) definition() workflow.Definition {
	def := workflow.Definition{RequestType: e.RequestType}
	for _, s := range e.Stages {
		def.Stages = append(def.Stages, workflow.Stage{
			Name:               s.Name,
			RequiredRole:       s.RequiredRole,
			RequiredPermission: s.RequiredPermission,
			TerminalOnApprove:  s.TerminalOnApprove,
			Disbursement:       s.Disbursement,
		})
	}
	return def
}

// BuildRegistry registers every definition and seals the registry
func (c *WorkflowCatalog) BuildRegistry() (*workflow.Registry, error) {
	registry := workflow.NewRegistry()
	for _, def := range c.Definitions {
		if err := registry.Register(def); err != nil {
			return nil, err
		}
	}
	registry.Seal()
	return registry, nil
}

// DefaultWorkflows returns the built-in catalog
func DefaultWorkflows() *WorkflowCatalog {
	role := func(name, r string) workflow.Stage {
		return workflow.Stage{Name: name, RequiredRole: r}
	}
	final := func(s workflow.Stage) workflow.Stage {
		s.TerminalOnApprove = true
		return s
	}

	return &WorkflowCatalog{
		Definitions: []workflow.Definition{
			{RequestType: "timesheet", Stages: []workflow.Stage{
				role("supervisor", "supervisor"),
				final(role("hr", "hr")),
			}},
			{RequestType: "travel_request", Stages: []workflow.Stage{
				role("dept_head", "dept_head"),
				final(role("finance", "finance")),
			}},
			{RequestType: "replenishment", Stages: []workflow.Stage{
				role("supervisor", "supervisor"),
				role("finance", "finance"),
				{Name: "cashier", RequiredPermission: "cash.disburse", TerminalOnApprove: true, Disbursement: true},
			}},
			{RequestType: "payroll", Stages: []workflow.Stage{
				role("hr", "hr"),
				role("finance", "finance"),
				final(role("director", "director")),
			}},
			{RequestType: "leave", Stages: []workflow.Stage{
				role("supervisor", "supervisor"),
				final(role("hr", "hr")),
			}},
			{RequestType: "document", Stages: []workflow.Stage{
				final(workflow.Stage{Name: "reviewer", RequiredPermission: "documents.approve"}),
			}},
		},
		Effects: map[string][]string{
			"timesheet":      {"notify-payroll"},
			"travel_request": {"notify-submitter"},
			"replenishment":  {"update-cash-book", "export-voucher"},
			"payroll":        {"notify-payroll", "export-voucher"},
			"leave":          {"notify-submitter"},
			"document":       {"notify-submitter"},
		},
	}
}
