// Package instantiate implements the Instantiator: expanding each
// requirement task into a subgraph of concrete tasks and allocating
// devices across the resulting hierarchy.
package instantiate

import (
	"fmt"

	"github.com/g-arjones/tools-syskit/internal/hooks"
	"github.com/g-arjones/tools-syskit/internal/planmodel"
)

// Instantiator expands requirement tasks into the working plan.
type Instantiator struct {
	Hooks *hooks.Registry
}

// New returns an Instantiator using the given hook registry (nil is
// treated as no hooks).
func New(h *hooks.Registry) *Instantiator {
	return &Instantiator{Hooks: h}
}

// Result is what InstantiateAll records for one requirement task.
type Result struct {
	Requirement planmodel.Handle
	Root        planmodel.Handle
}

// InstantiateAll expands every requirement task in reqs, in order, marking
// each root permanent and tagging it with its fulfilled-model triple. The
// Instantiation hook stage runs once per requirement, immediately after
// that requirement's subgraph is built, with (engine, tx) -- engine is
// passed through opaquely from the caller so hooks can reach whatever
// pipeline state they need without this package depending on the resolver
// package.
func (in *Instantiator) InstantiateAll(engine any, tx *planmodel.Transaction, reqs []planmodel.RequirementTask) ([]Result, error) {
	results := make([]Result, 0, len(reqs))
	for _, req := range reqs {
		root, err := req.Requirement.Instanciate(tx)
		if err != nil {
			return nil, fmt.Errorf("instantiate requirement %s: %w", req.Handle, err)
		}
		tx.MarkPermanent(root)

		fulfilled := req.Requirement.FullfilledModel()
		rootTask, ok := tx.Task(root)
		if !ok {
			return nil, fmt.Errorf("instantiate requirement %s: instanciate returned unknown root %s", req.Handle, root)
		}
		triple := &planmodel.FulfilledModelTriple{RetainedArgs: map[string]any{}}
		if fulfilled.Model != nil {
			triple.TopModel = fulfilled.Model.Name
		}
		for _, ds := range fulfilled.DataServiceModels {
			triple.DataServiceModels = append(triple.DataServiceModels, ds.Name)
		}
		for k, v := range fulfilled.ArgumentOverrides {
			if _, ok := rootTask.ArgValue(k); ok {
				triple.RetainedArgs[k] = v
			}
		}
		rootTask.FulfilledModel = triple
		if di := req.Requirement.ResolvedDependencyInjection(); len(di) > 0 {
			if rootTask.DependencyInjection == nil {
				rootTask.DependencyInjection = make(map[string]any, len(di))
			}
			for k, v := range di {
				rootTask.DependencyInjection[k] = v
			}
		}

		tx.SetPlannedBy(req.Handle, root)

		if in.Hooks != nil {
			if err := in.Hooks.Run(hooks.Instantiation, engine, tx); err != nil {
				return nil, err
			}
		}

		results = append(results, Result{Requirement: req.Handle, Root: root})
	}
	return results, nil
}
