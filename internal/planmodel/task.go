package planmodel

import "github.com/g-arjones/tools-syskit/internal/component"

// LifecycleState is the run state of a task,
type LifecycleState int

const (
	Pending LifecycleState = iota
	Starting
	Running
	Finishing
	Finished
)

func (s LifecycleState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Finishing:
		return "finishing"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// NotFinished reports whether the state is something other than Finished,
// matching the plan-database's not_finished relation filter.
func (s LifecycleState) NotFinished() bool { return s != Finished }

// NotFinishing reports whether the state is something other than
// Finishing, matching the not_finishing relation filter.
func (s LifecycleState) NotFinishing() bool { return s != Finishing }

// Arg is one entry of a task's arguments map. Arguments are either unset
// (Set == false, in which case Value is meaningless) or set to a concrete
// value. Keeping set-ness explicit (rather than using a nil/zero value) is
// what lets the merge solver and device allocator distinguish "unset" from
// "set to the zero value".
type Arg struct {
	Value any
	Set   bool
}

// DeploymentHint matches either a deployment model identity (by name) or a
// deployment-local task-context name by regular expression,
type DeploymentHint struct {
	// DeploymentModel, if non-empty, must equal the candidate deployment
	// model's name exactly.
	DeploymentModel string
	// NamePattern, if non-empty, is matched against the deployment-local
	// name with regexp.MatchString.
	NamePattern string
}

// Task is a mutable node of the working plan. Every cross-reference to
// a Task (merge graph entries, dataflow edges, hierarchy relations) is by
// Handle rather than by pointer, so that a Task can be merged away or
// substituted by its real-plan counterpart without invalidating anything
// that still holds its handle.
type Task struct {
	Handle Handle

	Model *component.Model

	Args map[string]Arg

	Abstract bool

	// Roles lists the role names this task plays within each parent
	// composition, keyed by the parent's handle. A task can have more than
	// one role under the same parent (e.g. a redundant child bound under
	// two optional roles).
	Roles map[Handle][]string

	// ExecutionAgent is the handle of the deployment instance task hosting
	// this task context, or the zero Handle if none is bound yet.
	ExecutionAgent Handle

	OrocosName      string
	DeploymentHints []DeploymentHint

	// Requirement is non-nil only for requirement tasks: external
	// planner tasks whose Requirements field drives instantiation of a
	// placeholder task recorded via the planning relation.
	Requirement Requirement

	// DependencyInjection carries the dependency-injection selections this
	// task contributes to its descendants' device auto-allocation,
	// keyed by service argument name (e.g. "imu_dev").
	DependencyInjection map[string]any

	// FulfilledModel records the fulfilled-model triple an instantiated
	// root is tagged with: the top model name, the provided
	// data-service model names, and the subset of requirement argument
	// overrides retained on the actual task.
	FulfilledModel *FulfilledModelTriple

	State LifecycleState

	// Reusable reports whether this task may be merged onto during
	// reconciliation. The zero value is false; Clone sets it to true, and
	// code building a task directly sets it explicitly. It stays false for
	// tasks that represent an event that has already fired and cannot be
	// replayed onto a new task.
	Reusable bool

	// Setup reports whether the task has already gone through
	// configuration; reconfigure() only spawns a fresh replacement for
	// tasks where this is already true.
	Setup bool

	// TransactionProxy marks a task as a staging copy of a real-plan task,
	// as opposed to a brand new task created during this resolve.
	TransactionProxy bool

	// RealHandle is only meaningful when TransactionProxy is true: it names
	// the handle of the real-plan task this one wraps.
	RealHandle Handle

	// DeploymentProcessName and DeploymentHostName are only meaningful for
	// tasks whose Model.Kind is component.KindDeployment (execution agents
	// themselves): the OS process name and host this deployment instance
	// runs on.
	DeploymentProcessName string
	DeploymentHostName    string

	// creationIndex orders tasks by insertion order within a single
	// transaction, used for deterministic iteration and as the final
	// merge tie-break.
	creationIndex int64
}

// FulfilledModelTriple is the tag an instantiated requirement root carries:
// the model it was planned to fulfill, plus the retained arguments.
type FulfilledModelTriple struct {
	TopModel          string
	DataServiceModels []string
	RetainedArgs      map[string]any
}

// CreationIndex exposes the insertion order used for deterministic
// iteration and merge tie-breaks.
func (t *Task) CreationIndex() int64 { return t.creationIndex }

// Clone returns a deep-enough copy of t suitable for inserting as a new
// task (e.g. when the reconciliation engine spawns a fresh replacement).
// The clone carries no handle, creation index, or lifecycle state of its
// own; the caller assigns those on insertion.
func (t *Task) Clone() *Task {
	clone := &Task{
		Model:            t.Model,
		Abstract:         t.Abstract,
		OrocosName:       t.OrocosName,
		Reusable:         true,
		DeploymentHints:  append([]DeploymentHint(nil), t.DeploymentHints...),
		Args:             make(map[string]Arg, len(t.Args)),
		Roles:            make(map[Handle][]string, len(t.Roles)),
		DeploymentProcessName: t.DeploymentProcessName,
		DeploymentHostName:    t.DeploymentHostName,
	}
	for k, v := range t.Args {
		clone.Args[k] = v
	}
	for k, v := range t.Roles {
		clone.Roles[k] = append([]string(nil), v...)
	}
	return clone
}

// ArgValue is a convenience accessor returning (value, true) only when the
// argument is set.
func (t *Task) ArgValue(name string) (any, bool) {
	a, ok := t.Args[name]
	if !ok || !a.Set {
		return nil, false
	}
	return a.Value, true
}

// SetArg sets an argument to a concrete value.
func (t *Task) SetArg(name string, value any) {
	if t.Args == nil {
		t.Args = make(map[string]Arg)
	}
	t.Args[name] = Arg{Value: value, Set: true}
}

// IsDeployment reports whether this task is a deployment instance (an
// execution agent), identified by the model's tagged Kind.
func (t *Task) IsDeployment() bool {
	return t.Model != nil && t.Model.Kind == component.KindDeployment
}

// MasterDriverDevice returns the device value bound for the named master
// driver service, if any.
func (t *Task) MasterDriverDevice(service string) (any, bool) {
	return t.ArgValue(service + "_dev")
}
