package component

// Registry is the component-model registry external collaborator:
// each_submodel, each_child, each_orogen_deployed_task_context_model,
// each_fullfilled_model, find_input_port, find_output_port,
// each_master_driver_service, model_for.
//
// Most of the per-model introspection ops (find_input_port,
// find_output_port, each_master_driver_service) live directly on *Model
// since Model is an immutable descriptor; Registry covers the operations
// that need the whole-catalog view: submodel enumeration and deployment
// discovery.
type Registry interface {
	// EachSubmodel calls fn once for every model registered that is a
	// submodel of (fulfills) the given model name, including the model
	// itself if registered.
	EachSubmodel(modelName string, fn func(*Model))

	// ModelFor returns the registered Model for a task-context model name
	// (registry op model_for), or (nil, false) if unknown.
	ModelFor(name string) (*Model, bool)

	// EachOrogenDeployedTaskContextModel calls fn once for every
	// task-context model that appears as a deployed task context in some
	// registered deployment model, along with the deployment itself and
	// the deployment-local name and host it is available on.
	EachOrogenDeployedTaskContextModel(fn func(model *Model, dep *DeploymentModel, host, localName string))

	// AvailableDeployments returns every registered (host, deployment
	// model) pair known to the registry.
	AvailableDeployments() []HostedDeployment
}

// HostedDeployment pairs a deployment model with the host it is available
// on, mirroring the (host, deployment-model, deployment-local-name) tuples
// used throughout–.
type HostedDeployment struct {
	Host  string
	Model *DeploymentModel
}

// StaticRegistry is an in-memory reference implementation of Registry,
// suitable both for the package tests and for the demo command. The real
// framework's registry is populated from on-disk component model
// definitions; that loader is outside this engine's scope.
type StaticRegistry struct {
	models      map[string]*Model
	deployments []HostedDeployment
}

// NewStaticRegistry builds a Registry from a fixed set of models and
// deployments.
func NewStaticRegistry(models []*Model, deployments []HostedDeployment) *StaticRegistry {
	r := &StaticRegistry{
		models:      make(map[string]*Model, len(models)),
		deployments: deployments,
	}
	for _, m := range models {
		r.models[m.Name] = m
	}
	return r
}

func (r *StaticRegistry) ModelFor(name string) (*Model, bool) {
	m, ok := r.models[name]
	return m, ok
}

func (r *StaticRegistry) EachSubmodel(modelName string, fn func(*Model)) {
	for _, m := range r.models {
		if m.FulfillsModel(modelName) {
			fn(m)
		}
	}
}

func (r *StaticRegistry) EachOrogenDeployedTaskContextModel(fn func(model *Model, dep *DeploymentModel, host, localName string)) {
	for _, hd := range r.deployments {
		for _, dtc := range hd.Model.Tasks {
			fn(dtc.Model, hd.Model, hd.Host, dtc.Name)
		}
	}
}

func (r *StaticRegistry) AvailableDeployments() []HostedDeployment {
	return r.deployments
}
