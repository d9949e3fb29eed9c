package planmodel

import "fmt"

// Plan is the real, committed working plan: the external plan-database
// engine's view, restricted to the operations the resolver needs.
// Building, transforming and validating a candidate network all happen
// against a Transaction (plan.go's Begin); Plan itself is only read for
// discovery (requirement tasks, running deployments) and is the sole
// target of CommitTransaction.
type Plan struct {
	alloc *handleAllocator

	tasks    map[Handle]*Task
	children map[Handle][]Handle
	depends  map[Handle][]Handle
	edges    []*DataflowEdge
	planning map[Handle]Handle

	permanent map[Handle]bool

	finalized bool
}

// NewPlan returns an empty, ready-to-use real plan.
func NewPlan() *Plan {
	return &Plan{
		alloc:     &handleAllocator{},
		tasks:     make(map[Handle]*Task),
		children:  make(map[Handle][]Handle),
		depends:   make(map[Handle][]Handle),
		planning:  make(map[Handle]Handle),
		permanent: make(map[Handle]bool),
	}
}

// Finalized reports whether the plan has been torn down (plan-database op
// finalized?,).
func (p *Plan) Finalized() bool { return p.finalized }

// Task looks up a committed task by handle.
func (p *Plan) Task(h Handle) (*Task, bool) {
	t, ok := p.tasks[h]
	return t, ok
}

// FindTasks returns every committed task whose model fulfills modelName
// (plan-database op find_tasks,).
func (p *Plan) FindTasks(modelName string) []*Task {
	var out []*Task
	for _, t := range p.orderedTasks() {
		if t.Model != nil && t.Model.FulfillsModel(modelName) {
			out = append(out, t)
		}
	}
	return out
}

// FindLocalTasks returns every committed task whose model name matches
// exactly (plan-database op find_local_tasks,).
func (p *Plan) FindLocalTasks(modelName string) []*Task {
	var out []*Task
	for _, t := range p.orderedTasks() {
		if t.Model != nil && t.Model.Name == modelName {
			out = append(out, t)
		}
	}
	return out
}

// RunningDeployments returns every committed deployment-instance task that
// is not finished (finishing ones included), used by the reconciliation
// engine to find a process to adapt against; the engine itself skips the
// finishing ones when matching.
func (p *Plan) RunningDeployments() []*Task {
	var out []*Task
	for _, t := range p.orderedTasks() {
		if t.IsDeployment() && t.State.NotFinished() {
			out = append(out, t)
		}
	}
	return out
}

// FinishingDeployments returns every committed deployment-instance task
// currently in the Finishing state, used for the reconciler's
// start-after-stop ordering rule.
func (p *Plan) FinishingDeployments() []*Task {
	var out []*Task
	for _, t := range p.orderedTasks() {
		if t.IsDeployment() && t.State == Finishing {
			out = append(out, t)
		}
	}
	return out
}

func (p *Plan) orderedTasks() []*Task {
	out := make([]*Task, 0, len(p.tasks))
	for _, t := range p.tasks {
		out = append(out, t)
	}
	sortByCreationIndex(out)
	return out
}

// RequirementTasks returns the committed requirement tasks discovered from
// the real plan (used when resolver.Options.RequirementTasks is not
// overridden,).
func (p *Plan) RequirementTasks() []RequirementTask {
	var out []RequirementTask
	for _, t := range p.orderedTasks() {
		if t.Requirement != nil {
			out = append(out, RequirementTask{Handle: t.Handle, Requirement: t.Requirement})
		}
	}
	return out
}

// PlannedTask returns the task a requirement task plans, if recorded.
func (p *Plan) PlannedTask(requirement Handle) (Handle, bool) {
	h, ok := p.planning[requirement]
	return h, ok
}

func sortHandles(hs []Handle) {
	for i := 1; i < len(hs); i++ {
		for j := i; j > 0 && hs[j-1] > hs[j]; j-- {
			hs[j-1], hs[j] = hs[j], hs[j-1]
		}
	}
}

func sortByCreationIndex(ts []*Task) {
	for i := 1; i < len(ts); i++ {
		for j := i; j > 0 && ts[j-1].creationIndex > ts[j].creationIndex; j-- {
			ts[j-1], ts[j] = ts[j], ts[j-1]
		}
	}
}

// Begin opens a staging transaction over the real plan.
// The transaction starts from a full copy of the committed state: every
// task it initially contains is marked TransactionProxy, with RealHandle
// equal to its own handle: handles are the canonical identity, so a proxy
// and its real counterpart can legitimately share one.
func (p *Plan) Begin() *Transaction {
	txn := &Transaction{
		plan:      p,
		alloc:     p.alloc,
		tasks:     make(map[Handle]*Task, len(p.tasks)),
		children:  make(map[Handle][]Handle, len(p.children)),
		depends:   make(map[Handle][]Handle, len(p.depends)),
		planning:  make(map[Handle]Handle, len(p.planning)),
		permanent: make(map[Handle]bool),
	}
	for h, t := range p.tasks {
		clone := t.Clone()
		clone.Handle = h
		clone.creationIndex = t.creationIndex
		clone.State = t.State
		clone.TransactionProxy = true
		clone.RealHandle = h
		clone.ExecutionAgent = t.ExecutionAgent
		txn.tasks[h] = clone
	}
	for h, kids := range p.children {
		txn.children[h] = append([]Handle(nil), kids...)
	}
	for h, deps := range p.depends {
		txn.depends[h] = append([]Handle(nil), deps...)
	}
	for _, e := range p.edges {
		cs := make(map[PortPair]ConnectionPolicy, len(e.ConnectionSet))
		for k, v := range e.ConnectionSet {
			cs[k] = v
		}
		txn.edges = append(txn.edges, &DataflowEdge{Source: e.Source, Sink: e.Sink, ConnectionSet: cs})
	}
	for req, planned := range p.planning {
		txn.planning[req] = planned
	}
	return txn
}

// CommitTransaction replaces the real plan's state wholesale with the
// transaction's final state (plan-database op commit_transaction,).
// Non-goals rule out partial/incremental replanning, so a commit is
// always a full-state swap rather than a diff-and-patch.
func (p *Plan) CommitTransaction(txn *Transaction) error {
	if txn.plan != p {
		return fmt.Errorf("planmodel: transaction does not belong to this plan")
	}
	if txn.done {
		return fmt.Errorf("planmodel: transaction already finalized")
	}
	p.tasks = txn.tasks
	p.children = txn.children
	p.depends = txn.depends
	p.edges = txn.edges
	p.planning = txn.planning
	p.permanent = txn.permanent
	txn.done = true
	return nil
}

// DiscardTransaction drops the transaction without touching the real plan
// (plan-database op discard_transaction,).
func (p *Plan) DiscardTransaction(txn *Transaction) {
	txn.done = true
}
