// Package container provides dependency injection and lifecycle management
// for the approval engine service.
package container

import (
	"fmt"

	"github.com/kwayummari/ghf-approval-engine/internal/config"
)

// Config holds everything the container needs to build the service:
// the application settings plus the workflow catalog they point at.
type Config struct {
	*config.Config

	// Catalog holds the workflow definitions and the effects bound to each request type
	Catalog *config.WorkflowCatalog
}

// NewConfig loads the workflow catalog referenced by cfg
func NewConfig(cfg *config.Config) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	catalog, err := config.LoadWorkflows(cfg.Workflows.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflows: %w", err)
	}

	return &Config{Config: cfg, Catalog: catalog}, nil
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Config == nil {
		return fmt.Errorf("application config is required")
	}
	if c.Catalog == nil || len(c.Catalog.Definitions) == 0 {
		return fmt.Errorf("workflow catalog has no definitions")
	}
	return c.Config.Validate()
}
