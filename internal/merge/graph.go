// Package merge implements the Merge Solver: equivalence-class
// merging of plan tasks, with a confluent fixed-point algorithm and a
// transitively-closed replacement ledger independent of the working plan's
// own task table, so that a handle can still be resolved to its final
// representative long after the original task has been redirected away
// from the working plan entirely.
package merge

import "github.com/g-arjones/tools-syskit/internal/planmodel"

// Graph is the internal replacement DAG: rewrites
// from -> to, transitively closed on query.
type Graph struct {
	to map[planmodel.Handle]planmodel.Handle
}

// NewGraph returns an empty replacement graph.
func NewGraph() *Graph {
	return &Graph{to: make(map[planmodel.Handle]planmodel.Handle)}
}

// record notes that from has been replaced by to.
func (g *Graph) record(from, to planmodel.Handle) {
	g.to[from] = to
}

// ReplacementFor follows the transitive closure and returns the current
// representative of h. If h was never replaced it
// is its own representative.
func (g *Graph) ReplacementFor(h planmodel.Handle) planmodel.Handle {
	seen := map[planmodel.Handle]bool{h: true}
	cur := h
	for {
		next, ok := g.to[cur]
		if !ok || next == cur {
			return cur
		}
		if seen[next] {
			// Defensive: a cycle in the replacement ledger should never
			// happen (merges only ever collapse, never loop), but bail
			// out rather than spin forever if one somehow appears.
			return cur
		}
		seen[next] = true
		cur = next
	}
}

// Reset clears the ledger, used by finalize between resolve calls unless
// debug retention is enabled.
func (g *Graph) Reset() {
	g.to = make(map[planmodel.Handle]planmodel.Handle)
}
