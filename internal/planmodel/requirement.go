package planmodel

import "github.com/g-arjones/tools-syskit/internal/component"

// InstanceRequirements is a component-model plus selections plus argument
// overrides, the payload of a Requirement.
type InstanceRequirements struct {
	Model              *component.Model
	DataServiceModels  []*component.Model
	ArgumentOverrides  map[string]any
	ResolvedDependencyInjection map[string]any // service-argument-name -> selected device/value
}

// Fulfills reports whether a concrete model satisfies these requirements,
// mirroring the source's `r.requirements.fullfills?(task.model)` check.
func (r *InstanceRequirements) Fulfills(model *component.Model) bool {
	if model == nil {
		return false
	}
	if r.Model != nil && !model.FulfillsModel(r.Model.Name) {
		return false
	}
	for _, ds := range r.DataServiceModels {
		if !model.FulfillsModel(ds.Name) {
			return false
		}
	}
	return true
}

// Requirement is the external collaborator: instanciate(plan),
// fullfilled_model, resolved_dependency_injection.
type Requirement interface {
	// Instanciate expands the requirement into a subgraph within tx,
	// returning the handle of its root task.
	Instanciate(tx *Transaction) (Handle, error)

	// FullfilledModel returns the instance requirements this requirement
	// represents, used to tag the instantiated root.
	FullfilledModel() InstanceRequirements

	// ResolvedDependencyInjection returns the service-argument-name ->
	// selection map this requirement contributes for device
	// auto-allocation.
	ResolvedDependencyInjection() map[string]any
}

// RequirementTask pairs a requirement task's handle with its Requirement
// payload -- the resolver discovers these from the real plan (or from
// resolver.Options.RequirementTasks) rather than from the Transaction,
// since requirement tasks belong to the external planner.
type RequirementTask struct {
	Handle      Handle
	Requirement Requirement
}
