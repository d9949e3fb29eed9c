// Package resolver implements the Pipeline Driver: the resolve()
// entry point that sequences instantiation, merging, bus linking,
// deployment selection, reconciliation and validation against one staging
// transaction, then commits or discards it according to the failure
// policy.
package resolver

import (
	"fmt"

	"github.com/g-arjones/tools-syskit/internal/buslink"
	"github.com/g-arjones/tools-syskit/internal/config"
	"github.com/g-arjones/tools-syskit/internal/deploy"
	"github.com/g-arjones/tools-syskit/internal/graphviz"
	"github.com/g-arjones/tools-syskit/internal/hooks"
	"github.com/g-arjones/tools-syskit/internal/instantiate"
	"github.com/g-arjones/tools-syskit/internal/merge"
	"github.com/g-arjones/tools-syskit/internal/planmodel"
	"github.com/g-arjones/tools-syskit/internal/reconcile"
	"github.com/g-arjones/tools-syskit/internal/validate"
	"github.com/hashicorp/go-hclog"
)

// OnError selects the recovery applied when resolve fails partway through.
type OnError int

const (
	// OnErrorDrop discards the transaction; the real plan is unmodified.
	OnErrorDrop OnError = iota
	// OnErrorSave dumps dataflow and hierarchy graphs to files, then
	// discards; the real plan is unmodified.
	OnErrorSave
	// OnErrorCommit commits the staging state anyway, for debugging.
	OnErrorCommit
)

// Options configures one resolve call.
type Options struct {
	// RequirementTasks overrides plan.RequirementTasks() discovery, used
	// by tests and by callers that track requirement tasks outside the
	// plan database.
	RequirementTasks []planmodel.RequirementTask

	OnError OnError

	// GraphDumpDir is where OnErrorSave writes its dataflow/hierarchy dot
	// files. Ignored for any other OnError value.
	GraphDumpDir string
}

// Resolver drives one full pipeline run against a real plan.
type Resolver struct {
	Plan   *planmodel.Plan
	Config *config.Config

	solver       *merge.Solver
	instantiator *instantiate.Instantiator
	linker       *buslink.Linker
	reconciler   *reconcile.Engine

	// saveIndex counts how many times this Resolver has dumped graphs
	// under OnErrorSave, so repeated failures within one process don't
	// overwrite each other's dot files.
	saveIndex int
}

// New returns a Resolver over the given real plan and configuration.
// Config.Normalize is called so the resolver never has to nil-check.
func New(plan *planmodel.Plan, cfg *config.Config) *Resolver {
	cfg.Normalize()
	solver := merge.NewSolver()
	return &Resolver{
		Plan:         plan,
		Config:       cfg,
		solver:       solver,
		instantiator: instantiate.New(cfg.Hooks),
		linker:       buslink.New(cfg.Registry),
		reconciler:   reconcile.New(solver),
	}
}

// Result is what Resolve returns on success: the instantiation results and
// the deployment-selection diagnostics from the run (useful for tests and
// the demo command; the real output is the committed plan itself).
type Result struct {
	Instantiated []instantiate.Result
	Deployed     *deploy.Result
	Reconciled   *reconcile.Results
}

// Resolve runs the full pipeline against r.Plan.
func (r *Resolver) Resolve(opts Options) (*Result, error) {
	log := r.Config.Logger.Named("resolve")

	// Step 1: open a staging transaction.
	tx := r.Plan.Begin()
	finalize := func() {
		if !r.Config.KeepInternalDataStructures {
			r.solver.Graph.Reset()
		}
	}

	result, err := r.run(tx, opts, log)
	if err != nil {
		switch opts.OnError {
		case OnErrorCommit:
			log.Warn("resolve failed, committing staging state anyway for debugging", "error", err)
			if cerr := r.Plan.CommitTransaction(tx); cerr != nil {
				log.Error("commit-on-error also failed", "error", cerr)
			}
		case OnErrorSave:
			r.saveIndex++
			if derr := graphviz.DumpAllIndexed(tx, opts.GraphDumpDir, r.saveIndex); derr != nil {
				log.Error("failed to dump graphs on error", "error", derr)
			}
			r.Plan.DiscardTransaction(tx)
		default:
			r.Plan.DiscardTransaction(tx)
		}
		finalize()
		return nil, err
	}

	if err := r.Plan.CommitTransaction(tx); err != nil {
		finalize()
		return nil, err
	}
	finalize()
	return result, nil
}

func (r *Resolver) run(tx *planmodel.Transaction, opts Options, log hclog.Logger) (*Result, error) {
	reqs := opts.RequirementTasks
	if reqs == nil {
		reqs = r.Plan.RequirementTasks()
	}
	log.Debug("computing system network", "requirement_tasks", len(reqs))

	// Step 2: compute_system_network.
	instantiated, err := r.instantiator.InstantiateAll(r, tx, reqs)
	if err != nil {
		return nil, fmt.Errorf("instantiate: %w", err)
	}
	if err := r.solver.MergeIdenticalTasks(tx); err != nil {
		return nil, fmt.Errorf("merge (post-instantiation): %w", err)
	}
	if err := r.Config.Hooks.Run(hooks.InstantiatedNetwork, r, tx); err != nil {
		return nil, err
	}
	if err := r.linker.Link(tx); err != nil {
		return nil, fmt.Errorf("buslink: %w", err)
	}
	if err := r.solver.MergeIdenticalTasks(tx); err != nil {
		return nil, fmt.Errorf("merge (post-buslink): %w", err)
	}
	removeUnresolvedOptionalChildren(tx)
	freezeDefaultConfiguration(tx)
	tx.StaticGarbageCollect(nil)
	unmarkAllPermanent(tx)
	if err := r.Config.Hooks.Run(hooks.SystemNetwork, r, tx); err != nil {
		return nil, err
	}
	if err := validate.AbstractNetwork(tx); err != nil {
		return nil, err
	}
	if err := validate.GeneratedNetwork(tx); err != nil {
		return nil, err
	}

	// Step 3: compute_deployed_network.
	log.Debug("computing deployed network")
	selector := deploy.New(r.Config.Registry)
	selResult := selector.Select(tx)
	if err := selector.Apply(tx, selResult); err != nil {
		return nil, fmt.Errorf("deploy: %w", err)
	}
	if err := validate.DeployedNetwork(tx, selector.Index); err != nil {
		return nil, err
	}
	if err := r.Config.Hooks.Run(hooks.Deployment, r, tx); err != nil {
		return nil, err
	}

	// Step 4: reconcile against running deployments, re-merge.
	reconciled, err := r.reconciler.Reconcile(tx, r.Plan)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	if err := r.solver.MergeIdenticalTasks(tx); err != nil {
		return nil, fmt.Errorf("merge (post-reconcile): %w", err)
	}

	// Step 5: apply_merge_to_stored_instances.
	for _, inst := range instantiated {
		resolved := r.solver.ReplacementFor(inst.Root)
		tx.SetPlannedBy(inst.Requirement, resolved)
	}

	// Step 6: fix_toplevel_tasks.
	for _, req := range reqs {
		planned, ok := tx.PlannedTask(req.Handle)
		if !ok {
			continue
		}
		resolved := r.solver.ReplacementFor(planned)
		tx.SetPlannedBy(req.Handle, resolved)
	}

	// Step 7: final-network hooks, validate final.
	if err := r.Config.Hooks.Run(hooks.FinalNetwork, r, tx); err != nil {
		return nil, err
	}
	if err := validate.FinalNetwork(tx); err != nil {
		return nil, err
	}

	return &Result{Instantiated: instantiated, Deployed: selResult, Reconciled: reconciled}, nil
}

// removeUnresolvedOptionalChildren drops or narrows composition children
// whose roles are all optional and unresolved: if every role
// a child plays under a parent is optional, the child is dropped from
// that parent; otherwise its role set is narrowed to the required ones.
func removeUnresolvedOptionalChildren(tx *planmodel.Transaction) {
	for _, t := range tx.OrderedTasks() {
		if !t.Abstract {
			continue
		}
		for parent, roles := range t.Roles {
			parentTask, ok := tx.Task(parent)
			if !ok || parentTask.Model == nil {
				continue
			}
			for _, role := range append([]string(nil), roles...) {
				if optionalRole(parentTask, role) {
					tx.RemoveChildRole(parent, t.Handle, role)
				}
			}
		}
	}
}

// freezeDefaultConfiguration locks in each task's model default arguments
// before static garbage collection runs, so every later stage (deployment
// selection, reconciliation, the post-reconcile merge) sees the same
// argument set for an unconfigured task rather than recomputing defaults
// independently.
// An argument already set -- explicitly, or by an earlier override -- is
// left untouched; only arguments the task has never been given a value
// for are seeded from the model's declared defaults.
func freezeDefaultConfiguration(tx *planmodel.Transaction) {
	for _, t := range tx.OrderedTasks() {
		if t.Model == nil || len(t.Model.DefaultArgs) == 0 {
			continue
		}
		for name, value := range t.Model.DefaultArgs {
			if arg, ok := t.Args[name]; ok && arg.Set {
				continue
			}
			t.SetArg(name, value)
		}
	}
}

func optionalRole(parent *planmodel.Task, role string) bool {
	for _, c := range parent.Model.Children {
		if c.Name == role {
			return c.Optional
		}
	}
	return false
}

func unmarkAllPermanent(tx *planmodel.Transaction) {
	for _, t := range tx.OrderedTasks() {
		tx.UnmarkPermanentTask(t.Handle)
	}
}
