// Package config exposes the process-wide registries the source models as
// class-level accessors (available_deployments, the post-processing stage
// lists, keep_internal_data_structures?) as a single object injected into
// the resolver's constructor, rather than as hidden globals.
package config

import (
	"github.com/g-arjones/tools-syskit/internal/component"
	"github.com/g-arjones/tools-syskit/internal/hooks"
	"github.com/hashicorp/go-hclog"
)

// Config carries everything the pipeline driver needs that is not
// specific to a single resolve call: the component-model registry, the
// registered post-processing hooks, the debug retention flag, and the
// logger.
type Config struct {
	// Registry is the component-model registry external collaborator.
	Registry component.Registry

	// Hooks holds the five ordered post-processing hook stages (Design
	// Note 3). A nil Hooks is treated as an empty registry.
	Hooks *hooks.Registry

	// KeepInternalDataStructures, when true, skips clearing
	// required_instances/merge graph/dynamics cache between resolve
	// calls.
	KeepInternalDataStructures bool

	// Logger is the structured logger the pipeline and its stages log
	// through. A nil Logger is replaced with hclog.NewNullLogger() so
	// callers never need a nil check.
	Logger hclog.Logger
}

// Normalize fills in defaults for zero-value fields.
func (c *Config) Normalize() {
	if c.Logger == nil {
		c.Logger = hclog.NewNullLogger()
	}
	if c.Hooks == nil {
		c.Hooks = hooks.NewRegistry()
	}
}
