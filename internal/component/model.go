// Package component models the component-model registry that the resolver
// consumes as an external collaborator: task-context models,
// composition models, data-service models, and deployment models, along
// with the port/child introspection the registry provides.
//
// Categories that the source distinguishes by duck-typing (respond_to?,
// kind_of?) are modeled here as a tagged Kind plus a capability bitmask,
// so that callers dispatch on Kind rather than type-asserting their way
// through an interface hierarchy.
package component

// Kind tags the category of a Model, replacing the source's duck-typed
// dispatch.
type Kind int

const (
	KindGeneric Kind = iota
	KindTaskContext
	KindComposition
	KindDeployment
	KindDevice
	KindDataService
)

func (k Kind) String() string {
	switch k {
	case KindTaskContext:
		return "task_context"
	case KindComposition:
		return "composition"
	case KindDeployment:
		return "deployment"
	case KindDevice:
		return "device"
	case KindDataService:
		return "data_service"
	default:
		return "generic"
	}
}

// Capability is a bitmask of behaviors a Model supports, used instead of
// the source's respond_to?/kind_of? checks.
type Capability uint32

const (
	// CapHasChildren marks models (compositions) that enumerate named
	// children.
	CapHasChildren Capability = 1 << iota
	// CapHasMasterDrivers marks task-context models that carry master
	// driver services and therefore participate in device allocation and
	// bus linking.
	CapHasMasterDrivers
	// CapDeployable marks models that can appear as a deployed task
	// context inside a Deployment.
	CapDeployable
	// CapAbstractRoot marks the well-known abstract roots (TaskContext,
	// DataService, Composition, Component) excluded from the deployed-model
	// closure.
	CapAbstractRoot
)

// Has reports whether all bits of want are set in c.
func (c Capability) Has(want Capability) bool { return c&want == want }

// Port describes one input or output port of a Model.
type Port struct {
	Name string
	Type string

	// Static marks a port whose identity or type cannot change while the
	// owning task is configured. Reconfiguring it requires a full
	// stop-reconfigure cycle.
	Static bool

	// Multiplexes marks an input port that may legitimately be driven by
	// more than one distinct (source-task, source-port) pair.
	Multiplexes bool

	Output bool
}

// Child describes one named child slot of a composition model.
type Child struct {
	Name     string
	Model    *Model
	Optional bool
}

// MasterDriverService names a master driver service a task-context model
// requires, whose conventional device argument is Name + "_dev".
type MasterDriverService struct {
	Name string
	Bus  string // communication bus model name required for this device, if any; empty if none.
}

// Model is an immutable component-model descriptor. The zero value is
// not valid; populate the fields directly (as the fixture registry builder
// and the tests do).
type Model struct {
	Name string
	Kind Kind
	Caps Capability

	// Fulfills is the set of model names this model is substitutable for
	// (the "fulfilled models" of), including itself.
	Fulfills []string

	Children []Child

	InputPorts  []Port
	OutputPorts []Port

	MasterDrivers []MasterDriverService

	// DefaultArgs are the argument values the model declares for its own
	// task contexts, seeded onto an instantiated task the first time the
	// resolver freezes default configuration, for every argument the task
	// does not already carry an explicit or overridden value for.
	DefaultArgs map[string]any
}

// FindInputPort looks up an input port by name (registry op find_input_port,).
func (m *Model) FindInputPort(name string) (Port, bool) {
	for _, p := range m.InputPorts {
		if p.Name == name {
			return p, true
		}
	}
	return Port{}, false
}

// FindOutputPort looks up an output port by name (registry op find_output_port,).
func (m *Model) FindOutputPort(name string) (Port, bool) {
	for _, p := range m.OutputPorts {
		if p.Name == name {
			return p, true
		}
	}
	return Port{}, false
}

// FulfillsModel reports whether m is substitutable for the named model.
func (m *Model) FulfillsModel(name string) bool {
	for _, f := range m.Fulfills {
		if f == name {
			return true
		}
	}
	return false
}

// EachMasterDriverService iterates the master driver services of m
// (registry op each_master_driver_service,).
func (m *Model) EachMasterDriverService(fn func(MasterDriverService)) {
	for _, svc := range m.MasterDrivers {
		fn(svc)
	}
}

// DeployedTaskContext is one entry of a Deployment Model: a
// deployment-local name bound to a task-context model.
type DeployedTaskContext struct {
	Name  string
	Model *Model
}

// DeploymentModel enumerates the task contexts a single OS process will
// host.
type DeploymentModel struct {
	Name  string
	Tasks []DeployedTaskContext
}

// FindTask looks up a deployment-local task-context entry by name.
func (d *DeploymentModel) FindTask(name string) (DeployedTaskContext, bool) {
	for _, t := range d.Tasks {
		if t.Name == name {
			return t, true
		}
	}
	return DeployedTaskContext{}, false
}

// AbstractRootNames are the well-known abstract roots excluded from the
// deployed-model closure.
var AbstractRootNames = map[string]bool{
	"TaskContext": true,
	"DataService": true,
	"Composition": true,
	"Component":   true,
}
