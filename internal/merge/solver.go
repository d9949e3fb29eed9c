package merge

import (
	"reflect"

	"github.com/g-arjones/tools-syskit/internal/planmodel"
)

// Solver owns the replacement Graph and applies merges against a
// Transaction.
type Solver struct {
	Graph *Graph
}

// NewSolver returns a Solver with a fresh replacement graph.
func NewSolver() *Solver {
	return &Solver{Graph: NewGraph()}
}

// ReplacementFor is a convenience forward to Graph.ReplacementFor.
func (s *Solver) ReplacementFor(h planmodel.Handle) planmodel.Handle {
	return s.Graph.ReplacementFor(h)
}

// ApplyMergeGroup records that every key of group is replaced by its
// value, redirects every incident relation in tx accordingly, and removes
// the replaced tasks. Targets are resolved transitively within the
// group first, so a group containing both {a:b} and {b:c} is applied as
// if it were {a:c, b:c}.
func (s *Solver) ApplyMergeGroup(tx *planmodel.Transaction, group map[planmodel.Handle]planmodel.Handle) error {
	resolved := make(map[planmodel.Handle]planmodel.Handle, len(group))
	for from := range group {
		to := from
		seen := map[planmodel.Handle]bool{}
		for {
			next, ok := group[to]
			if !ok || next == to || seen[next] {
				break
			}
			seen[to] = true
			to = next
		}
		resolved[from] = to
	}
	for from, to := range resolved {
		if from == to {
			continue
		}
		if err := tx.Replace(from, to); err != nil {
			if conflict, ok := err.(*planmodel.ConflictingPort); ok {
				return &ConflictError{From: conflict.From, To: conflict.To, Port: conflict.Port}
			}
			return err
		}
		s.Graph.record(from, to)
	}
	return nil
}

// RecordAlias notes that from is now represented by to in the replacement
// ledger, without touching the transaction. Used when a caller has already
// migrated from's relations onto to by hand (reconciliation's static-port
// swap,) and from's handle must keep existing in the transaction so
// an ordering constraint referencing it stays meaningful.
func (s *Solver) RecordAlias(from, to planmodel.Handle) {
	s.Graph.record(from, to)
}

// RegisterReplacement records and applies a single from->to merge; it is
// equivalent to ApplyMergeGroup with a one-entry group, exposed under its
// own name for the reconciliation engine, which uses it to fold a newly
// deployed task onto the survivor it reuses or spawns.
func (s *Solver) RegisterReplacement(tx *planmodel.Transaction, proxy, real planmodel.Handle) error {
	return s.ApplyMergeGroup(tx, map[planmodel.Handle]planmodel.Handle{proxy: real})
}

// MergeIdenticalTasks runs the iterative fixed-point merge pass.
// Two tasks are mergeable iff they share a concrete model, have
// compatible arguments, share an execution agent (or both are unassigned),
// have structurally compatible input connection sets, and merging them
// would not introduce a cycle. Ties among multiple mergeable candidates
// are broken by preferring the candidate with more already-assigned
// arguments, then the one already deployed, then stable creation-index
// order.
func (s *Solver) MergeIdenticalTasks(tx *planmodel.Transaction) error {
	for {
		changed, err := s.mergePass(tx, tx.OrderedTasks())
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
	}
}

// mergeIdenticalTasksInOrder is MergeIdenticalTasks with the candidate
// visitation order pinned to order instead of tx.OrderedTasks(), used by
// ValidateConfluence to probe whether the fixed point depends on
// processing order.
func (s *Solver) mergeIdenticalTasksInOrder(tx *planmodel.Transaction, order []planmodel.Handle) error {
	for {
		var tasks []*planmodel.Task
		for _, h := range order {
			if t, ok := tx.Task(h); ok {
				tasks = append(tasks, t)
			}
		}
		changed, err := s.mergePass(tx, tasks)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
	}
}

func (s *Solver) mergePass(tx *planmodel.Transaction, tasks []*planmodel.Task) (bool, error) {
	removed := make(map[planmodel.Handle]bool)
	changed := false

	for i := 0; i < len(tasks); i++ {
		a := tasks[i]
		if removed[a.Handle] {
			continue
		}
		if _, ok := tx.Task(a.Handle); !ok {
			continue
		}

		var candidates []*planmodel.Task
		for j := i + 1; j < len(tasks); j++ {
			b := tasks[j]
			if removed[b.Handle] {
				continue
			}
			if _, ok := tx.Task(b.Handle); !ok {
				continue
			}
			if mergeable(tx, a, b) {
				candidates = append(candidates, b)
			}
		}
		if len(candidates) == 0 {
			continue
		}

		winner := pickSurvivor(tx, append([]*planmodel.Task{a}, candidates...))
		for _, t := range append([]*planmodel.Task{a}, candidates...) {
			if t.Handle == winner.Handle {
				continue
			}
			if err := s.ApplyMergeGroup(tx, map[planmodel.Handle]planmodel.Handle{t.Handle: winner.Handle}); err != nil {
				return false, err
			}
			removed[t.Handle] = true
		}
		changed = true
	}
	return changed, nil
}

// mergeable implements the mergeability predicate.
func mergeable(tx *planmodel.Transaction, a, b *planmodel.Task) bool {
	if a.Model != b.Model {
		return false
	}
	if a.TransactionProxy != b.TransactionProxy {
		// A real, already-committed task and a brand new one are never
		// silently unified by this pass; reconciliation is the
		// only stage that folds a new task into an existing real one,
		// and it does so deliberately, not via this generic pass.
		if a.TransactionProxy || b.TransactionProxy {
			return false
		}
	}
	if !argsCompatibleMap(a.Args, b.Args) {
		return false
	}
	if a.ExecutionAgent.Valid() && b.ExecutionAgent.Valid() && a.ExecutionAgent != b.ExecutionAgent {
		return false
	}
	if !inputConnectionsCompatible(tx, a.Handle, b.Handle) {
		return false
	}
	if wouldCreateCycle(tx, a.Handle, b.Handle) {
		return false
	}
	return true
}

func argsCompatibleMap(a, b map[string]planmodel.Arg) bool {
	for k, av := range a {
		if !av.Set {
			continue
		}
		bv, ok := b[k]
		if !ok || !bv.Set {
			continue
		}
		if !reflect.DeepEqual(av.Value, bv.Value) {
			return false
		}
	}
	return true
}

func inputConnectionsCompatible(tx *planmodel.Transaction, a, b planmodel.Handle) bool {
	aIn := tx.EdgesTo(a)
	bIn := tx.EdgesTo(b)
	bBySink := make(map[planmodel.PortPair]struct {
		src    planmodel.Handle
		policy planmodel.ConnectionPolicy
	})
	for _, e := range bIn {
		for pair, policy := range e.ConnectionSet {
			bBySink[pair] = struct {
				src    planmodel.Handle
				policy planmodel.ConnectionPolicy
			}{src: e.Source, policy: policy}
		}
	}
	for _, e := range aIn {
		for pair, policy := range e.ConnectionSet {
			if other, ok := bBySink[pair]; ok {
				if other.src != e.Source || !other.policy.Equal(policy) {
					return false
				}
			}
		}
	}
	return true
}

// wouldCreateCycle reports whether redirecting every edge incident on
// `from` onto `to` would introduce a cycle reachable from `to`, combining
// the hierarchy, dependency and dataflow relations.
func wouldCreateCycle(tx *planmodel.Transaction, from, to planmodel.Handle) bool {
	succ := func(h planmodel.Handle) []planmodel.Handle {
		var out []planmodel.Handle
		if h == from {
			h = to
		}
		out = append(out, tx.Children(h)...)
		out = append(out, tx.Dependencies(h)...)
		for _, e := range tx.EdgesFrom(h) {
			out = append(out, e.Sink)
		}
		// Also fold in from's own successors when walking from `to`.
		if h == to {
			out = append(out, tx.Children(from)...)
			out = append(out, tx.Dependencies(from)...)
			for _, e := range tx.EdgesFrom(from) {
				out = append(out, e.Sink)
			}
		}
		normalized := make([]planmodel.Handle, len(out))
		for i, x := range out {
			if x == from {
				x = to
			}
			normalized[i] = x
		}
		return normalized
	}

	visited := map[planmodel.Handle]bool{}
	var stack []planmodel.Handle
	stack = append(stack, succ(to)...)
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if h == to {
			return true
		}
		if visited[h] {
			continue
		}
		visited[h] = true
		stack = append(stack, succ(h)...)
	}
	return false
}

// pickSurvivor applies the tie-break rule: most already-assigned
// arguments, then already-deployed, then lowest (earliest) creation index.
func pickSurvivor(tx *planmodel.Transaction, candidates []*planmodel.Task) *planmodel.Task {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if betterSurvivor(c, best) {
			best = c
		}
	}
	return best
}

func betterSurvivor(c, best *planmodel.Task) bool {
	cSet, bestSet := countSetArgs(c), countSetArgs(best)
	if cSet != bestSet {
		return cSet > bestSet
	}
	cDeployed, bestDeployed := c.ExecutionAgent.Valid(), best.ExecutionAgent.Valid()
	if cDeployed != bestDeployed {
		return cDeployed
	}
	return c.CreationIndex() < best.CreationIndex()
}

func countSetArgs(t *planmodel.Task) int {
	n := 0
	for _, a := range t.Args {
		if a.Set {
			n++
		}
	}
	return n
}
