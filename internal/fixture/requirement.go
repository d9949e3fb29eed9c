package fixture

import (
	"fmt"

	"github.com/g-arjones/tools-syskit/internal/component"
	"github.com/g-arjones/tools-syskit/internal/planmodel"
)

// StaticRequirement is an in-memory Requirement implementation that
// expands a composition's Children recursively, marking every
// composition/data-service node abstract so the resolver's instantiation
// and specialization steps have real work to do. It is the reference
// collaborator for the demo command and for tests that want a realistic
// Requirement instead of a hand-rolled stub.
type StaticRequirement struct {
	Requirements planmodel.InstanceRequirements
}

// NewStaticRequirement builds a StaticRequirement from a blueprint model
// plus optional data-service models and argument overrides.
func NewStaticRequirement(model *component.Model, dataServices []*component.Model, args map[string]any) *StaticRequirement {
	return &StaticRequirement{
		Requirements: planmodel.InstanceRequirements{
			Model:             model,
			DataServiceModels: dataServices,
			ArgumentOverrides: args,
		},
	}
}

func (r *StaticRequirement) Instanciate(tx *planmodel.Transaction) (planmodel.Handle, error) {
	if r.Requirements.Model == nil {
		return 0, fmt.Errorf("fixture: requirement has no blueprint model")
	}
	return instantiateModel(tx, r.Requirements.Model, r.Requirements.ArgumentOverrides)
}

func (r *StaticRequirement) FullfilledModel() planmodel.InstanceRequirements { return r.Requirements }

func (r *StaticRequirement) ResolvedDependencyInjection() map[string]any {
	return r.Requirements.ResolvedDependencyInjection
}

func instantiateModel(tx *planmodel.Transaction, model *component.Model, args map[string]any) (planmodel.Handle, error) {
	t := &planmodel.Task{
		Model:    model,
		Abstract: model.Kind == component.KindComposition || model.Kind == component.KindDataService,
		Reusable: true,
		Args:     map[string]planmodel.Arg{},
	}
	for k, v := range args {
		t.SetArg(k, v)
	}
	h := tx.Add(t)

	for _, child := range model.Children {
		if child.Model == nil {
			continue
		}
		childHandle, err := instantiateModel(tx, child.Model, nil)
		if err != nil {
			return 0, err
		}
		tx.AddChild(h, childHandle, child.Name)
	}
	return h, nil
}
