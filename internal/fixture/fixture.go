package fixture

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/g-arjones/tools-syskit/internal/component"
	"github.com/g-arjones/tools-syskit/internal/planmodel"
	"gopkg.in/yaml.v3"
)

// RequirementFixture is the on-disk description of one requirement task:
// a top-level blueprint model plus optional data services and argument
// overrides.
type RequirementFixture struct {
	Model        string         `json:"model" yaml:"model"`
	DataServices []string       `json:"data_services,omitempty" yaml:"data_services,omitempty"`
	Args         map[string]any `json:"args,omitempty" yaml:"args,omitempty"`
}

// PlanFixture is the whole on-disk description Load expects: a component
// registry plus the set of requirement tasks to seed the plan with.
type PlanFixture struct {
	Registry     RegistryFixture       `json:"registry" yaml:"registry"`
	Requirements []RequirementFixture `json:"requirements" yaml:"requirements"`
}

// Loaded bundles everything a resolver.Resolver needs, built fresh from
// one fixture file.
type Loaded struct {
	Plan     *planmodel.Plan
	Registry *component.StaticRegistry
	Requirements []planmodel.RequirementTask
}

// Load reads a PlanFixture from path (JSON, or YAML when the extension is
// .yml/.yaml), builds the registry, and seeds a fresh Plan with one
// requirement task per fixture entry.
func Load(path string) (*Loaded, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fixture: %w", err)
	}

	var pf PlanFixture
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &pf); err != nil {
			return nil, fmt.Errorf("fixture: parsing %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(raw, &pf); err != nil {
			return nil, fmt.Errorf("fixture: parsing %s: %w", path, err)
		}
	}

	registry, err := BuildRegistry(pf.Registry)
	if err != nil {
		return nil, err
	}

	plan := planmodel.NewPlan()
	tx := plan.Begin()

	var reqTasks []planmodel.RequirementTask
	for i, rf := range pf.Requirements {
		model, ok := registry.ModelFor(rf.Model)
		if !ok {
			return nil, fmt.Errorf("fixture: requirement %d references unknown model %q", i, rf.Model)
		}
		var dataServices []*component.Model
		for _, name := range rf.DataServices {
			ds, ok := registry.ModelFor(name)
			if !ok {
				return nil, fmt.Errorf("fixture: requirement %d references unknown data service %q", i, name)
			}
			dataServices = append(dataServices, ds)
		}
		req := NewStaticRequirement(model, dataServices, rf.Args)
		h := tx.Add(&planmodel.Task{Requirement: req, Reusable: true})
		reqTasks = append(reqTasks, planmodel.RequirementTask{Handle: h, Requirement: req})
	}

	if err := plan.CommitTransaction(tx); err != nil {
		return nil, fmt.Errorf("fixture: seeding plan: %w", err)
	}

	return &Loaded{Plan: plan, Registry: registry, Requirements: reqTasks}, nil
}
