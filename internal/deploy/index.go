// Package deploy implements the Deployment Candidate Index and Deployment
// Selector: matching task contexts in the staging plan against
// the set of deployments the component-model registry knows about.
package deploy

import (
	"github.com/g-arjones/tools-syskit/internal/component"
)

// Candidate is one (host, deployment-model, deployment-local-name) tuple a
// task-context model can be deployed as.
type Candidate struct {
	Host            string
	Deployment      *component.DeploymentModel
	DeploymentLocal string
}

// Index is the deployed-model closure plus the task-context-model ->
// candidates map.
type Index struct {
	// Closure is the set of model names reachable from the models that
	// appear in available_deployments, excluding the abstract roots.
	Closure map[string]bool

	// Candidates maps a task-context model name to every deployment slot
	// it can be bound to.
	Candidates map[string][]Candidate
}

// Build computes the deployed-model closure and the candidate map from the
// registry's available deployments and submodel relation.
func Build(registry component.Registry) *Index {
	idx := &Index{
		Closure:    make(map[string]bool),
		Candidates: make(map[string][]Candidate),
	}

	registry.EachOrogenDeployedTaskContextModel(func(model *component.Model, dep *component.DeploymentModel, host, localName string) {
		idx.Candidates[model.Name] = append(idx.Candidates[model.Name], Candidate{
			Host:            host,
			Deployment:      dep,
			DeploymentLocal: localName,
		})
		idx.Closure[model.Name] = true
	})

	// Expand: every model any seed model fulfills, restricted to
	// component/data-service kinds.
	changed := true
	for changed {
		changed = false
		for name := range snapshot(idx.Closure) {
			model, ok := registry.ModelFor(name)
			if !ok {
				continue
			}
			for _, fulfilled := range model.Fulfills {
				if idx.Closure[fulfilled] {
					continue
				}
				if fm, ok := registry.ModelFor(fulfilled); ok {
					if fm.Kind != component.KindComposition && fm.Kind != component.KindDataService && fm.Kind != component.KindTaskContext {
						continue
					}
				}
				idx.Closure[fulfilled] = true
				changed = true
			}
		}

		// Every composition model whose every child has a fulfilled model
		// now in the closure.
		registry.EachSubmodel("Composition", func(m *component.Model) {
			if idx.Closure[m.Name] {
				return
			}
			if len(m.Children) == 0 {
				return
			}
			for _, child := range m.Children {
				if child.Model == nil || !closureFulfills(idx.Closure, child.Model) {
					return
				}
			}
			idx.Closure[m.Name] = true
			changed = true
		})
	}

	for root := range component.AbstractRootNames {
		delete(idx.Closure, root)
	}
	return idx
}

func closureFulfills(closure map[string]bool, m *component.Model) bool {
	for _, f := range m.Fulfills {
		if closure[f] {
			return true
		}
	}
	return false
}

func snapshot(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k := range m {
		out[k] = true
	}
	return out
}

// CandidatesFor returns the deployment candidates for a task-context model,
// looking up first by exact model name, then by any model the candidates
// map has for a name the model concretely fulfills.
func (idx *Index) CandidatesFor(model *component.Model) []Candidate {
	if model == nil {
		return nil
	}
	if c, ok := idx.Candidates[model.Name]; ok {
		return c
	}
	for _, name := range model.Fulfills {
		if c, ok := idx.Candidates[name]; ok {
			return c
		}
	}
	return nil
}
