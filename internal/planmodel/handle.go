// Package planmodel holds the mutable working-plan data model: tasks,
// dataflow edges, and the staging transaction that the resolver operates
// on. The authoritative plan-database engine (transactions, garbage
// collection, mission markers) is an external collaborator; this package
// models only the subset of its behavior that the resolver depends on,
// behind the Plan type in plan.go.
package planmodel

import "fmt"

// Handle is a stable identity for a task, assigned when the task is
// inserted into a plan or transaction. Handles, not object identity, are
// what the merge graph and every other cross-referencing structure key on,
// so that a task can be transparently substituted by a proxy or by its
// real-plan counterpart without invalidating anything that refers to it by
// handle.
type Handle int64

// String implements fmt.Stringer for use in log fields and error messages.
func (h Handle) String() string {
	return fmt.Sprintf("#%d", int64(h))
}

// Valid reports whether the handle refers to an actual task, as opposed to
// the zero value used to mean "no task" (e.g. an unset execution agent).
func (h Handle) Valid() bool {
	return h != 0
}

// handleAllocator hands out strictly increasing handles, doubling as the
// creation-index source used for deterministic iteration and merge
// tie-breaks.
type handleAllocator struct {
	next int64
}

func (a *handleAllocator) allocate() Handle {
	a.next++
	return Handle(a.next)
}
