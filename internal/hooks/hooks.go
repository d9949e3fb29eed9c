// Package hooks models the resolver's registered post-processing hooks:
// five ordered stages -- instantiation, instantiated
// network, system network, deployment, and final network -- each a
// named, ordered sequence of callbacks invoked synchronously with
// (engine, work_plan). The source models these as class-level registries
// with ad-hoc super-chaining guarded by `defined? super`; here each stage
// is an explicit, constructible list with an ordinary registration API,
// and "chain to parent" is just another hook a caller
// registers explicitly rather than implicit dispatch.
package hooks

// Stage names the five ordered post-processing stages the pipeline driver
// invokes.
type Stage int

const (
	Instantiation Stage = iota
	InstantiatedNetwork
	SystemNetwork
	Deployment
	FinalNetwork

	numStages
)

func (s Stage) String() string {
	switch s {
	case Instantiation:
		return "instantiation"
	case InstantiatedNetwork:
		return "instantiated_network"
	case SystemNetwork:
		return "system_network"
	case Deployment:
		return "deployment"
	case FinalNetwork:
		return "final_network"
	default:
		return "unknown"
	}
}

// Func is a post-processing callback. It is untyped in engine/workPlan
// (both passed as any) so that this package has no dependency on the
// resolver or planmodel packages; callers type-assert inside the closure
// they register, which in practice is no burden since Go closures already
// capture their concrete collaborators by reference.
type Func func(engine any, workPlan any) error

// Hook is one named, registered callback.
type Hook struct {
	Name string
	Run  Func
}

// Registry holds the five ordered hook stages and runs them in
// registration order. It must not be mutated concurrently with Run; the
// resolver's pipeline is single-threaded and synchronous.
type Registry struct {
	stages [numStages][]Hook
}

// NewRegistry returns an empty hook registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a hook to the end of the given stage's list.
func (r *Registry) Register(stage Stage, h Hook) {
	r.stages[stage] = append(r.stages[stage], h)
}

// Run invokes every hook registered for stage, in registration order,
// stopping at the first error. Hooks must not start transactions of their
// own; this package has no way to enforce that beyond documenting it,
// since transactions belong to planmodel.
func (r *Registry) Run(stage Stage, engine any, workPlan any) error {
	for _, h := range r.stages[stage] {
		if err := h.Run(engine, workPlan); err != nil {
			return &HookError{Stage: stage, Hook: h.Name, Err: err}
		}
	}
	return nil
}

// HookError wraps an error raised by a named hook with the stage and hook
// name it came from.
type HookError struct {
	Stage Stage
	Hook  string
	Err   error
}

func (e *HookError) Error() string {
	return e.Stage.String() + " hook " + e.Hook + ": " + e.Err.Error()
}

func (e *HookError) Unwrap() error { return e.Err }
