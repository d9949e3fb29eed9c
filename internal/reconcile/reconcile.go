// Package reconcile implements the Reconciliation Engine: folding a
// freshly deployed staging network onto the processes that are already
// running in the real plan, so that resolve() never tears down and
// restarts a component that could simply be kept or patched in place.
//
// The shape here is grounded on the categorized-result reconciler pattern
// (allocReconciler / reconcileResults) used for job reconciliation in
// cluster schedulers: compute a Results value describing what would
// happen, then apply it against the transaction.
package reconcile

import (
	"fmt"

	"github.com/g-arjones/tools-syskit/internal/errtypes"
	"github.com/g-arjones/tools-syskit/internal/merge"
	"github.com/g-arjones/tools-syskit/internal/planmodel"
)

// Engine reconciles new deployment instances in a staging transaction
// against the non-finished deployments of the real plan.
type Engine struct {
	Solver *merge.Solver
}

// New returns an Engine driving merges through the given solver, so that
// the solver's replacement graph stays authoritative for the whole
// resolve.
func New(solver *merge.Solver) *Engine {
	return &Engine{Solver: solver}
}

// Results is what Reconcile computed: the disposition of every new
// deployment instance it considered, reported for diagnostics and tests.
type Results struct {
	// Kept lists new deployment instances left as-is because the real
	// plan has no matching running process yet.
	Kept []planmodel.Handle
	// Reused lists new deployment instances folded onto an existing
	// running process.
	Reused []ReuseResult
}

// ReuseResult records that a new deployment instance D was folded onto an
// existing running process E, along with how many of D's task contexts
// were merged onto an existing task versus spawned fresh.
type ReuseResult struct {
	New      planmodel.Handle
	Existing planmodel.Handle
	Merged   int
	Spawned  int
}

// Reconcile runs against every deployment-instance task in tx that is
// not a transaction proxy (i.e. was created during this resolve), using
// plan to discover the real plan's currently running and finishing
// deployments.
func (eng *Engine) Reconcile(tx *planmodel.Transaction, plan *planmodel.Plan) (*Results, error) {
	scrub(tx)

	res := &Results{}
	running := plan.RunningDeployments()
	finishing := plan.FinishingDeployments()

	for _, d := range tx.OrderedTasks() {
		if !d.IsDeployment() || d.TransactionProxy {
			continue
		}

		matches := matchingRunning(running, d.DeploymentProcessName)
		switch len(matches) {
		case 0:
			res.Kept = append(res.Kept, d.Handle)
		case 1:
			reuse, err := eng.reuse(tx, d, matches[0])
			if err != nil {
				return nil, err
			}
			res.Reused = append(res.Reused, *reuse)
		default:
			return nil, &errtypes.InternalError{Reason: fmt.Sprintf(
				"more than one running deployment with process name %q", d.DeploymentProcessName)}
		}

		for _, f := range finishing {
			if f.DeploymentProcessName == d.DeploymentProcessName {
				tx.AddOrdering(planmodel.Ordering{Kind: planmodel.StartAfterStop, Before: d.Handle, After: f.Handle})
			}
		}
	}

	tx.PruneStaleConnections()
	return res, nil
}

func matchingRunning(running []*planmodel.Task, processName string) []*planmodel.Task {
	var out []*planmodel.Task
	for _, e := range running {
		if e.State.NotFinished() && e.State.NotFinishing() && e.DeploymentProcessName == processName {
			out = append(out, e)
		}
	}
	return out
}

// reuse folds D's task contexts onto E's, spawning fresh replacements
// where no compatible existing task is found, then handles static-port
// reconfiguration for already-setup survivors.
func (eng *Engine) reuse(tx *planmodel.Transaction, d, e *planmodel.Task) (*ReuseResult, error) {
	res := &ReuseResult{New: d.Handle, Existing: e.Handle}

	for _, t := range hostedBy(tx, d.Handle) {
		existing := bestMatch(tx, e.Handle, t.OrocosName)

		var survivor planmodel.Handle
		if existing != nil && canBeDeployedBy(t, existing) {
			survivor = existing.Handle
			res.Merged++
		} else {
			clone := t.Clone()
			clone.ExecutionAgent = e.Handle
			survivor = tx.Add(clone)
			if existing != nil {
				detach(tx, existing)
				tx.AddOrdering(planmodel.Ordering{Kind: planmodel.ConfigureAfterStop, Before: survivor, After: existing.Handle})
			}
			res.Spawned++
		}

		preEdges := snapshotStaticSinks(tx, survivor)
		if err := eng.Solver.RegisterReplacement(tx, t.Handle, survivor); err != nil {
			return nil, err
		}
		if survivorTask, ok := tx.Task(survivor); ok && survivorTask.Setup {
			if staticPortsChanged(tx, survivor, preEdges) {
				if err := reconfigure(tx, eng.Solver, survivorTask); err != nil {
					return nil, err
				}
			}
		}
	}
	return res, nil
}

// hostedBy returns the task contexts tx currently records as hosted by
// the deployment instance d (ExecutionAgent == d).
func hostedBy(tx *planmodel.Transaction, d planmodel.Handle) []*planmodel.Task {
	var out []*planmodel.Task
	for _, t := range tx.OrderedTasks() {
		if t.ExecutionAgent == d {
			out = append(out, t)
		}
	}
	return out
}

// bestMatch finds, among the tasks currently hosted by e, the one with a
// matching orocos_name, preferring a Running task over a Pending one.
func bestMatch(tx *planmodel.Transaction, e planmodel.Handle, orocosName string) *planmodel.Task {
	var best *planmodel.Task
	for _, t := range hostedBy(tx, e) {
		if t.OrocosName != orocosName {
			continue
		}
		if best == nil || (t.State == planmodel.Running && best.State != planmodel.Running) {
			best = t
		}
	}
	return best
}

// canBeDeployedBy reports whether t's model and concrete arguments are
// compatible with reusing existing.
func canBeDeployedBy(t, existing *planmodel.Task) bool {
	if t.Model != existing.Model {
		return false
	}
	for k, av := range t.Args {
		if !av.Set {
			continue
		}
		ev, ok := existing.Args[k]
		if !ok || !ev.Set {
			continue
		}
		if fmt.Sprint(av.Value) != fmt.Sprint(ev.Value) {
			return false
		}
	}
	return true
}

// detach removes existing from every parent it plays a role under,
// without removing the task itself, so it can keep running until its
// ordered stop.
func detach(tx *planmodel.Transaction, existing *planmodel.Task) {
	for parent := range existing.Roles {
		for _, role := range append([]string(nil), existing.Roles[parent]...) {
			tx.RemoveChildRole(parent, existing.Handle, role)
		}
	}
}

// scrub implements the pre-merge non-reusable-task cleanup: clears
// relations for any task marked non-reusable, removes abstract proxies,
// and leaves dataflow-staleness pruning to PruneStaleConnections.
func scrub(tx *planmodel.Transaction) {
	for _, t := range tx.OrderedTasks() {
		if !t.Reusable {
			tx.ClearRelationsFor(t.Handle)
		}
		if t.Abstract && t.TransactionProxy {
			tx.RemoveTask(t.Handle)
		}
	}
}

type staticSink struct {
	pair   planmodel.PortPair
	source planmodel.Handle
}

// snapshotStaticSinks captures the current (source, pair) bindings for
// every static input port of h, used to detect a static-port change after
// the merge that folds a new task onto h.
func snapshotStaticSinks(tx *planmodel.Transaction, h planmodel.Handle) []staticSink {
	t, ok := tx.Task(h)
	if !ok || t.Model == nil {
		return nil
	}
	statics := make(map[string]bool)
	for _, p := range t.Model.InputPorts {
		if p.Static {
			statics[p.Name] = true
		}
	}
	var out []staticSink
	for _, e := range tx.EdgesTo(h) {
		for pair := range e.ConnectionSet {
			if statics[pair.SinkPort] {
				out = append(out, staticSink{pair: pair, source: e.Source})
			}
		}
	}
	return out
}

// staticPortsChanged reports whether h's current static-sink bindings
// differ from the snapshot taken immediately before the merge.
func staticPortsChanged(tx *planmodel.Transaction, h planmodel.Handle, before []staticSink) bool {
	after := snapshotStaticSinks(tx, h)
	beforeBySink := make(map[planmodel.PortPair]planmodel.Handle, len(before))
	for _, s := range before {
		beforeBySink[s.pair] = s.source
	}
	afterBySink := make(map[planmodel.PortPair]planmodel.Handle, len(after))
	for _, s := range after {
		afterBySink[s.pair] = s.source
	}
	if len(beforeBySink) != len(afterBySink) {
		return true
	}
	for pair, src := range afterBySink {
		if beforeBySink[pair] != src {
			return true
		}
	}
	return false
}

// reconfigure spawns a fresh replacement for an already-setup survivor
// whose static ports changed, orders its configuration after the current
// task's stop, and swaps it in for every relation except that one
// ordering. The old survivor handle is left
// standing, unreferenced by anything but the ordering, so the constraint
// still names a real task once the plan commits: folding it away via a
// normal merge would rewrite the ordering's own After reference onto the
// replacement and make it vacuous.
func reconfigure(tx *planmodel.Transaction, solver *merge.Solver, survivor *planmodel.Task) error {
	replacement := survivor.Clone()
	replacement.ExecutionAgent = survivor.ExecutionAgent
	replacementHandle := tx.Add(replacement)

	for parent, roles := range survivor.Roles {
		for _, role := range roles {
			tx.AddChild(parent, replacementHandle, role)
		}
	}
	detach(tx, survivor)

	for _, dep := range tx.Dependencies(survivor.Handle) {
		tx.AddDependency(replacementHandle, dep)
	}

	for _, e := range tx.EdgesTo(survivor.Handle) {
		if err := tx.AddDataflowEdge(e.Source, replacementHandle, e.ConnectionSet); err != nil {
			return err
		}
		tx.RemoveEdge(e.Source, survivor.Handle)
	}
	for _, e := range tx.EdgesFrom(survivor.Handle) {
		if err := tx.AddDataflowEdge(replacementHandle, e.Sink, e.ConnectionSet); err != nil {
			return err
		}
		tx.RemoveEdge(survivor.Handle, e.Sink)
	}

	tx.AddOrdering(planmodel.Ordering{Kind: planmodel.ConfigureAfterStop, Before: replacementHandle, After: survivor.Handle})
	solver.RecordAlias(survivor.Handle, replacementHandle)
	return nil
}
