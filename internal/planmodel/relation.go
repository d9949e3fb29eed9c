package planmodel

// Relation identifies one of the task-relation graphs the plan-database
// exposes via task_relation_graph_for.
type Relation int

const (
	// RelationHierarchy is the parent/child composition relation: which
	// task plays which role(s) under which parent.
	RelationHierarchy Relation = iota
	// RelationDependency is the depends_on relation used by the bus
	// linker and reconciliation engine to order startup.
	RelationDependency
	// RelationDataflow is the directed, port-labelled dataflow edge
	// relation.
	RelationDataflow
	// RelationPlanning is the requirement-task -> placeholder-task
	// relation that fix_toplevel_tasks rewrites on commit.
	RelationPlanning
)

// OrderingKind enumerates the explicit start/stop ordering constraints the
// resolver installs (bus attach, static-port reconfiguration).
type OrderingKind int

const (
	// ConfigureAfterStop orders Before.configure strictly after After.stop.
	ConfigureAfterStop OrderingKind = iota
	// ConfigureAfterStart orders Before.configure strictly after
	// After.start.
	ConfigureAfterStart
	// StartAfterStop orders Before.start strictly after After.stop, used
	// when a superseded deployment process must fully stop before its
	// replacement starts.
	StartAfterStop
)

// Ordering is one explicit start/stop ordering constraint between two
// tasks.
type Ordering struct {
	Kind   OrderingKind
	Before Handle
	After  Handle
}

// RelationGraph is a read-only snapshot view of one relation kind over a
// Transaction, used for reachability walks (e.g. static_garbage_collect)
// and ancestor traversal (e.g. device auto-allocation).
type RelationGraph struct {
	successors   map[Handle][]Handle
	predecessors map[Handle][]Handle
}

// Successors returns the handles h points to in this relation.
func (g *RelationGraph) Successors(h Handle) []Handle { return g.successors[h] }

// Predecessors returns the handles that point to h in this relation.
func (g *RelationGraph) Predecessors(h Handle) []Handle { return g.predecessors[h] }
