package planmodel

import "fmt"

// Transaction is the staging copy of the real plan that the resolver
// pipeline builds, transforms, validates and eventually commits.
// It implements the Plan-database operations the resolver needs: add,
// remove_task, replace, static_garbage_collect, find_local_tasks,
// find_tasks, task_relation_graph_for, wrap_task, and the permanent-task
// markers.
type Transaction struct {
	plan  *Plan
	alloc *handleAllocator
	done  bool

	tasks     map[Handle]*Task
	children  map[Handle][]Handle
	depends   map[Handle][]Handle
	edges     []*DataflowEdge
	orderings []Ordering
	planning  map[Handle]Handle
	permanent map[Handle]bool
}

// ConflictingPort is returned, unwrapped, by Replace when two tasks being
// merged carry incompatible policies for the same (source-port,sink-port)
// pair, and by AddDataflowEdge when the new connection set disagrees with
// the existing edge's.
type ConflictingPort struct {
	From, To Handle
	Port     PortPair
	A, B     ConnectionPolicy
}

func (c *ConflictingPort) Error() string {
	return fmt.Sprintf("conflicting connection policy for %s->%s on port %q: %v vs %v", c.From, c.To, c.Port.SinkPort, c.A, c.B)
}

// Add inserts t as a brand new (non-proxy) task and returns its handle
// (plan-database op add,).
func (tx *Transaction) Add(t *Task) Handle {
	h := tx.alloc.allocate()
	t.Handle = h
	t.creationIndex = int64(h)
	tx.tasks[h] = t
	return h
}

// AddPermanentTask inserts t and marks it permanent, so it survives
// static_garbage_collect until explicitly unmarked (plan-database op
// add_permanent_task,).
func (tx *Transaction) AddPermanentTask(t *Task) Handle {
	h := tx.Add(t)
	tx.permanent[h] = true
	return h
}

// MarkPermanent marks an already-inserted task permanent.
func (tx *Transaction) MarkPermanent(h Handle) { tx.permanent[h] = true }

// UnmarkPermanentTask removes the permanent marker from h (plan-database
// op unmark_permanent_task,).
func (tx *Transaction) UnmarkPermanentTask(h Handle) { delete(tx.permanent, h) }

// IsPermanent reports whether h is currently marked permanent.
func (tx *Transaction) IsPermanent(h Handle) bool { return tx.permanent[h] }

// WrapTask returns the staging copy of a real-plan task (plan-database op
// wrap_task,). It only looks the handle up: Begin already copied every
// committed task in as a proxy, and WrapTask creates no new proxy, so it
// reports false for a real task whose staging copy is no longer in the
// transaction (for example after garbage collection removed it).
func (tx *Transaction) WrapTask(real Handle) (*Task, bool) {
	t, ok := tx.tasks[real]
	return t, ok
}

// Task looks up a staging task by handle.
func (tx *Transaction) Task(h Handle) (*Task, bool) {
	t, ok := tx.tasks[h]
	return t, ok
}

// OrderedTasks returns every staging task ordered by creation index, the
// deterministic iteration order requires.
func (tx *Transaction) OrderedTasks() []*Task {
	out := make([]*Task, 0, len(tx.tasks))
	for _, t := range tx.tasks {
		out = append(out, t)
	}
	sortByCreationIndex(out)
	return out
}

// FindLocalTasks returns staging tasks whose model name matches exactly
// (plan-database op find_local_tasks,).
func (tx *Transaction) FindLocalTasks(modelName string) []*Task {
	var out []*Task
	for _, t := range tx.OrderedTasks() {
		if t.Model != nil && t.Model.Name == modelName {
			out = append(out, t)
		}
	}
	return out
}

// FindTasks returns staging tasks whose model fulfills modelName
// (plan-database op find_tasks,).
func (tx *Transaction) FindTasks(modelName string) []*Task {
	var out []*Task
	for _, t := range tx.OrderedTasks() {
		if t.Model != nil && t.Model.FulfillsModel(modelName) {
			out = append(out, t)
		}
	}
	return out
}

// RemoveTask deletes h and everything that directly references it
// (plan-database op remove_task,).
func (tx *Transaction) RemoveTask(h Handle) {
	delete(tx.tasks, h)
	delete(tx.children, h)
	delete(tx.permanent, h)
	for parent, kids := range tx.children {
		tx.children[parent] = removeHandle(kids, h)
	}
	delete(tx.depends, h)
	for task, deps := range tx.depends {
		tx.depends[task] = removeHandle(deps, h)
	}
	filtered := tx.edges[:0]
	for _, e := range tx.edges {
		if e.Source == h || e.Sink == h {
			continue
		}
		filtered = append(filtered, e)
	}
	tx.edges = filtered
	var orderings []Ordering
	for _, o := range tx.orderings {
		if o.Before == h || o.After == h {
			continue
		}
		orderings = append(orderings, o)
	}
	tx.orderings = orderings
	for req, planned := range tx.planning {
		if req == h || planned == h {
			delete(tx.planning, req)
		}
	}
}

func removeHandle(hs []Handle, h Handle) []Handle {
	out := hs[:0]
	for _, x := range hs {
		if x != h {
			out = append(out, x)
		}
	}
	return out
}

// AddChild records that child plays role under parent (hierarchy
// relation). A child can be added under the same parent more than once
// with a different role.
func (tx *Transaction) AddChild(parent, child Handle, role string) {
	if t, ok := tx.tasks[child]; ok {
		if t.Roles == nil {
			t.Roles = make(map[Handle][]string)
		}
		t.Roles[parent] = append(t.Roles[parent], role)
	}
	for _, existing := range tx.children[parent] {
		if existing == child {
			return
		}
	}
	tx.children[parent] = append(tx.children[parent], child)
}

// Children returns the ordered child handles of parent.
func (tx *Transaction) Children(parent Handle) []Handle { return tx.children[parent] }

// Parents returns every handle that has child as a child, in creation
// order -- needed because the plan graph is a DAG and device
// auto-allocation must walk all ancestors, not just one.
func (tx *Transaction) Parents(child Handle) []Handle {
	var out []Handle
	for parent, kids := range tx.children {
		for _, k := range kids {
			if k == child {
				out = append(out, parent)
				break
			}
		}
	}
	sortHandles(out)
	return out
}

// RemoveChildRole narrows or drops a child's role set under parent,
// dropping the hierarchy edge entirely once no roles remain.
func (tx *Transaction) RemoveChildRole(parent, child Handle, role string) {
	if t, ok := tx.tasks[child]; ok {
		t.Roles[parent] = removeString(t.Roles[parent], role)
		if len(t.Roles[parent]) == 0 {
			delete(t.Roles, parent)
			tx.children[parent] = removeHandle(tx.children[parent], child)
		}
	}
}

func removeString(ss []string, s string) []string {
	out := ss[:0]
	for _, x := range ss {
		if x != s {
			out = append(out, x)
		}
	}
	return out
}

// AddDependency records that task depends_on on (dependency relation, used
// by the bus linker,).
func (tx *Transaction) AddDependency(task, on Handle) {
	for _, existing := range tx.depends[task] {
		if existing == on {
			return
		}
	}
	tx.depends[task] = append(tx.depends[task], on)
}

// Dependencies returns the ordered set of tasks that `task` depends on.
func (tx *Transaction) Dependencies(task Handle) []Handle { return tx.depends[task] }

// AddOrdering installs an explicit start/stop ordering constraint.
func (tx *Transaction) AddOrdering(o Ordering) { tx.orderings = append(tx.orderings, o) }

// Orderings returns every explicit ordering constraint currently staged.
func (tx *Transaction) Orderings() []Ordering { return append([]Ordering(nil), tx.orderings...) }

// AddDataflowEdge installs (or merges into an existing) dataflow edge
// between source and sink, unioning connection sets. Returns a
// *ConflictingPort error if the two sets disagree on a shared port pair.
func (tx *Transaction) AddDataflowEdge(source, sink Handle, connections map[PortPair]ConnectionPolicy) error {
	for _, e := range tx.edges {
		if e.Source == source && e.Sink == sink {
			return mergeConnectionSets(e, source, sink, connections)
		}
	}
	cs := make(map[PortPair]ConnectionPolicy, len(connections))
	for k, v := range connections {
		cs[k] = v
	}
	tx.edges = append(tx.edges, &DataflowEdge{Source: source, Sink: sink, ConnectionSet: cs})
	return nil
}

func mergeConnectionSets(e *DataflowEdge, from, to Handle, incoming map[PortPair]ConnectionPolicy) error {
	for pair, policy := range incoming {
		if existing, ok := e.ConnectionSet[pair]; ok {
			if !existing.Equal(policy) {
				return &ConflictingPort{From: from, To: to, Port: pair, A: existing, B: policy}
			}
			continue
		}
		e.ConnectionSet[pair] = policy
	}
	return nil
}

// EdgesFrom returns every dataflow edge whose source is h.
func (tx *Transaction) EdgesFrom(h Handle) []*DataflowEdge {
	var out []*DataflowEdge
	for _, e := range tx.edges {
		if e.Source == h {
			out = append(out, e)
		}
	}
	return out
}

// EdgesTo returns every dataflow edge whose sink is h.
func (tx *Transaction) EdgesTo(h Handle) []*DataflowEdge {
	var out []*DataflowEdge
	for _, e := range tx.edges {
		if e.Sink == h {
			out = append(out, e)
		}
	}
	return out
}

// RemoveEdge deletes exactly the edge between source and sink, if any.
func (tx *Transaction) RemoveEdge(source, sink Handle) {
	filtered := tx.edges[:0]
	for _, e := range tx.edges {
		if e.Source == source && e.Sink == sink {
			continue
		}
		filtered = append(filtered, e)
	}
	tx.edges = filtered
}

// AllEdges returns every staged dataflow edge.
func (tx *Transaction) AllEdges() []*DataflowEdge { return tx.edges }

// SetPlannedBy records the planning relation: requirement plans planned.
func (tx *Transaction) SetPlannedBy(requirement, planned Handle) {
	tx.planning[requirement] = planned
}

// PlannedTask returns the task a requirement task currently plans.
func (tx *Transaction) PlannedTask(requirement Handle) (Handle, bool) {
	h, ok := tx.planning[requirement]
	return h, ok
}

// RequirementTasks returns every requirement task known to this
// transaction.
func (tx *Transaction) RequirementTasks() []RequirementTask {
	var out []RequirementTask
	for _, t := range tx.OrderedTasks() {
		if t.Requirement != nil {
			out = append(out, RequirementTask{Handle: t.Handle, Requirement: t.Requirement})
		}
	}
	return out
}

// Replace redirects every hierarchy, dependency, dataflow, ordering and
// planning reference to `from` onto `to`, then removes `from`
// (plan-database op replace(from,to),). Dataflow connection sets are
// unioned; a conflicting pair is reported as a *ConflictingPort error and
// the replace is aborted without partially applying.
func (tx *Transaction) Replace(from, to Handle) error {
	if from == to {
		return nil
	}
	// Pre-flight: check for dataflow conflicts before mutating anything,
	// so a failed replace leaves the graph untouched.
	redirected := make(map[[2]Handle]map[PortPair]ConnectionPolicy)
	for _, e := range tx.edges {
		src, sink := e.Source, e.Sink
		if src == from {
			src = to
		}
		if sink == from {
			sink = to
		}
		if src == sink {
			continue // redirecting would create a self-loop; drop it
		}
		key := [2]Handle{src, sink}
		if existing, ok := redirected[key]; ok {
			if err := unionConnections(existing, e.ConnectionSet, src, sink); err != nil {
				return err
			}
		} else {
			cs := make(map[PortPair]ConnectionPolicy, len(e.ConnectionSet))
			for k, v := range e.ConnectionSet {
				cs[k] = v
			}
			redirected[key] = cs
		}
	}

	var newEdges []*DataflowEdge
	for key, cs := range redirected {
		newEdges = append(newEdges, &DataflowEdge{Source: key[0], Sink: key[1], ConnectionSet: cs})
	}
	tx.edges = newEdges

	// Hierarchy: redirect child references and parent references.
	for parent, kids := range tx.children {
		newParent := parent
		if parent == from {
			newParent = to
		}
		var newKids []Handle
		for _, k := range kids {
			if k == from {
				k = to
			}
			newKids = appendUnique(newKids, k)
		}
		if newParent != parent {
			tx.children[newParent] = append(tx.children[newParent], newKids...)
			delete(tx.children, parent)
		} else {
			tx.children[parent] = newKids
		}
	}
	if fromTask, ok := tx.tasks[from]; ok {
		for parent, roles := range fromTask.Roles {
			if toTask, ok := tx.tasks[to]; ok {
				if toTask.Roles == nil {
					toTask.Roles = make(map[Handle][]string)
				}
				toTask.Roles[parent] = append(toTask.Roles[parent], roles...)
			}
		}
	}
	for _, t := range tx.tasks {
		if roles, ok := t.Roles[from]; ok {
			delete(t.Roles, from)
			t.Roles[to] = append(t.Roles[to], roles...)
		}
	}

	// Dependencies.
	for task, deps := range tx.depends {
		newTask := task
		if task == from {
			newTask = to
		}
		var newDeps []Handle
		for _, d := range deps {
			if d == from {
				d = to
			}
			newDeps = appendUnique(newDeps, d)
		}
		if newTask != task {
			tx.depends[newTask] = append(tx.depends[newTask], newDeps...)
			delete(tx.depends, task)
		} else {
			tx.depends[task] = newDeps
		}
	}

	// Orderings.
	for i := range tx.orderings {
		if tx.orderings[i].Before == from {
			tx.orderings[i].Before = to
		}
		if tx.orderings[i].After == from {
			tx.orderings[i].After = to
		}
	}

	// Planning relation.
	for req, planned := range tx.planning {
		if req == from {
			delete(tx.planning, req)
			req = to
		}
		if planned == from {
			planned = to
		}
		tx.planning[req] = planned
	}

	// Execution agent references on every other task.
	for _, t := range tx.tasks {
		if t.ExecutionAgent == from {
			t.ExecutionAgent = to
		}
	}

	if tx.permanent[from] {
		tx.permanent[to] = true
	}
	delete(tx.permanent, from)
	delete(tx.tasks, from)
	return nil
}

func unionConnections(into map[PortPair]ConnectionPolicy, from map[PortPair]ConnectionPolicy, src, sink Handle) error {
	for pair, policy := range from {
		if existing, ok := into[pair]; ok {
			if !existing.Equal(policy) {
				return &ConflictingPort{From: src, To: sink, Port: pair, A: existing, B: policy}
			}
			continue
		}
		into[pair] = policy
	}
	return nil
}

func appendUnique(hs []Handle, h Handle) []Handle {
	for _, x := range hs {
		if x == h {
			return hs
		}
	}
	return append(hs, h)
}

// StaticGarbageCollect removes every task unreachable from a permanent
// root via hierarchy, dependency or dataflow edges, calling onRemove for
// each one before it is deleted (plan-database op static_garbage_collect,
//; "static-garbage-collect").
func (tx *Transaction) StaticGarbageCollect(onRemove func(*Task)) {
	reachable := make(map[Handle]bool)
	var stack []Handle
	for h := range tx.permanent {
		if _, ok := tx.tasks[h]; ok {
			stack = append(stack, h)
		}
	}
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reachable[h] {
			continue
		}
		reachable[h] = true
		for _, k := range tx.children[h] {
			stack = append(stack, k)
		}
		for _, d := range tx.depends[h] {
			stack = append(stack, d)
		}
		for _, e := range tx.edges {
			if e.Source == h {
				stack = append(stack, e.Sink)
			}
		}
		if t, ok := tx.tasks[h]; ok && t.ExecutionAgent.Valid() {
			stack = append(stack, t.ExecutionAgent)
		}
	}
	for _, t := range tx.OrderedTasks() {
		if reachable[t.Handle] {
			continue
		}
		if onRemove != nil {
			onRemove(t)
		}
		tx.RemoveTask(t.Handle)
	}
}

// TaskRelationGraphFor returns a read-only snapshot of one relation kind
// (plan-database op task_relation_graph_for,).
func (tx *Transaction) TaskRelationGraphFor(rel Relation) *RelationGraph {
	g := &RelationGraph{successors: make(map[Handle][]Handle), predecessors: make(map[Handle][]Handle)}
	add := func(from, to Handle) {
		g.successors[from] = append(g.successors[from], to)
		g.predecessors[to] = append(g.predecessors[to], from)
	}
	switch rel {
	case RelationHierarchy:
		for parent, kids := range tx.children {
			for _, k := range kids {
				add(parent, k)
			}
		}
	case RelationDependency:
		for task, deps := range tx.depends {
			for _, d := range deps {
				add(task, d)
			}
		}
	case RelationDataflow:
		for _, e := range tx.edges {
			add(e.Source, e.Sink)
		}
	case RelationPlanning:
		for req, planned := range tx.planning {
			add(req, planned)
		}
	}
	return g
}

// NotAbstract is a convenience filter predicate over the current
// transaction's tasks, matching the not_abstract relation filter.
func (tx *Transaction) NotAbstract(h Handle) bool {
	t, ok := tx.tasks[h]
	return ok && !t.Abstract
}

// AllocateHandle reserves a fresh handle without inserting a task, used
// when the caller wants to pre-wire relations before the task body is
// ready.
func (tx *Transaction) AllocateHandle() Handle { return tx.alloc.allocate() }

// ClearRelationsFor drops every dependency and dataflow edge touching h in
// either direction, without removing the task itself (reconciliation's
// non-reusable-task scrub,). The hierarchy relation is left alone: a
// non-reusable task is still detached from its parents individually via
// RemoveChildRole where that applies.
func (tx *Transaction) ClearRelationsFor(h Handle) {
	delete(tx.depends, h)
	for t, deps := range tx.depends {
		tx.depends[t] = removeHandle(deps, h)
	}
	var kept []*DataflowEdge
	for _, e := range tx.edges {
		if e.Source == h || e.Sink == h {
			continue
		}
		kept = append(kept, e)
	}
	tx.edges = kept
}

// PruneStaleConnections drops, from every dataflow edge, any (source-port,
// sink-port) pair that no longer names a real port on both endpoints'
// current models. Edges left with an
// empty connection set are removed entirely.
func (tx *Transaction) PruneStaleConnections() {
	var kept []*DataflowEdge
	for _, e := range tx.edges {
		src, srcOK := tx.tasks[e.Source]
		sink, sinkOK := tx.tasks[e.Sink]
		if !srcOK || !sinkOK || src.Model == nil || sink.Model == nil {
			continue
		}
		for pair := range e.ConnectionSet {
			if _, ok := src.Model.FindOutputPort(pair.SourcePort); !ok {
				delete(e.ConnectionSet, pair)
				continue
			}
			if _, ok := sink.Model.FindInputPort(pair.SinkPort); !ok {
				delete(e.ConnectionSet, pair)
			}
		}
		if len(e.ConnectionSet) > 0 {
			kept = append(kept, e)
		}
	}
	tx.edges = kept
}
