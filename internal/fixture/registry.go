// Package fixture loads plan and component-model registry fixtures from
// JSON or YAML, for the demo command and for package tests that want a
// realistic, hand-authored network instead of ad-hoc Go literals. This is
// the in-memory reference implementation of the external collaborators
// (component-model registry, Requirement) the resolver otherwise only
// consumes as interfaces.
package fixture

import (
	"fmt"

	"github.com/g-arjones/tools-syskit/internal/component"
)

// PortFixture describes one input or output port.
type PortFixture struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Static      bool   `json:"static,omitempty" yaml:"static,omitempty"`
	Multiplexes bool   `json:"multiplexes,omitempty" yaml:"multiplexes,omitempty"`
}

// ChildFixture describes one named composition child slot.
type ChildFixture struct {
	Role     string `json:"role" yaml:"role"`
	Model    string `json:"model" yaml:"model"`
	Optional bool   `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// MasterDriverFixture describes one master driver service requirement.
type MasterDriverFixture struct {
	Name string `json:"name" yaml:"name"`
	Bus  string `json:"bus,omitempty" yaml:"bus,omitempty"`
}

// ModelFixture is the on-disk description of one component.Model.
type ModelFixture struct {
	Name          string                `json:"name" yaml:"name"`
	Kind          string                `json:"kind" yaml:"kind"`
	Fulfills      []string              `json:"fulfills,omitempty" yaml:"fulfills,omitempty"`
	Children      []ChildFixture        `json:"children,omitempty" yaml:"children,omitempty"`
	InputPorts    []PortFixture         `json:"input_ports,omitempty" yaml:"input_ports,omitempty"`
	OutputPorts   []PortFixture         `json:"output_ports,omitempty" yaml:"output_ports,omitempty"`
	MasterDrivers []MasterDriverFixture `json:"master_drivers,omitempty" yaml:"master_drivers,omitempty"`
	DefaultArgs   map[string]any        `json:"default_args,omitempty" yaml:"default_args,omitempty"`
}

// DeployedTaskFixture is one deployment-local task-context slot.
type DeployedTaskFixture struct {
	Name  string `json:"name" yaml:"name"`
	Model string `json:"model" yaml:"model"`
}

// DeploymentFixture is the on-disk description of one hosted deployment.
type DeploymentFixture struct {
	Name  string                `json:"name" yaml:"name"`
	Host  string                `json:"host" yaml:"host"`
	Tasks []DeployedTaskFixture `json:"tasks,omitempty" yaml:"tasks,omitempty"`
}

// RegistryFixture is the on-disk description of a whole component-model
// registry.
type RegistryFixture struct {
	Models      []ModelFixture      `json:"models" yaml:"models"`
	Deployments []DeploymentFixture `json:"deployments,omitempty" yaml:"deployments,omitempty"`
}

var kindByName = map[string]component.Kind{
	"generic":      component.KindGeneric,
	"task_context": component.KindTaskContext,
	"composition":  component.KindComposition,
	"deployment":   component.KindDeployment,
	"device":       component.KindDevice,
	"data_service": component.KindDataService,
}

// BuildRegistry resolves a RegistryFixture into a StaticRegistry. Model
// cross-references (Children, deployment task-context entries) are
// resolved in a second pass so that fixtures may list models in any
// order.
func BuildRegistry(f RegistryFixture) (*component.StaticRegistry, error) {
	models := make(map[string]*component.Model, len(f.Models))
	for _, mf := range f.Models {
		kind, ok := kindByName[mf.Kind]
		if !ok {
			return nil, fmt.Errorf("fixture: model %q has unknown kind %q", mf.Name, mf.Kind)
		}
		m := &component.Model{
			Name:        mf.Name,
			Kind:        kind,
			Fulfills:    append([]string{mf.Name}, mf.Fulfills...),
			DefaultArgs: mf.DefaultArgs,
		}
		for _, p := range mf.InputPorts {
			m.InputPorts = append(m.InputPorts, component.Port{Name: p.Name, Type: p.Type, Static: p.Static, Multiplexes: p.Multiplexes})
		}
		for _, p := range mf.OutputPorts {
			m.OutputPorts = append(m.OutputPorts, component.Port{Name: p.Name, Type: p.Type, Output: true})
		}
		for _, d := range mf.MasterDrivers {
			m.MasterDrivers = append(m.MasterDrivers, component.MasterDriverService{Name: d.Name, Bus: d.Bus})
		}
		if len(m.MasterDrivers) > 0 {
			m.Caps |= component.CapHasMasterDrivers
		}
		if kind == component.KindComposition {
			m.Caps |= component.CapHasChildren
		}
		models[mf.Name] = m
	}

	for _, mf := range f.Models {
		m := models[mf.Name]
		for _, cf := range mf.Children {
			childModel, ok := models[cf.Model]
			if !ok {
				return nil, fmt.Errorf("fixture: model %q references unknown child model %q", mf.Name, cf.Model)
			}
			m.Children = append(m.Children, component.Child{Name: cf.Role, Model: childModel, Optional: cf.Optional})
		}
	}

	var ordered []*component.Model
	for _, mf := range f.Models {
		ordered = append(ordered, models[mf.Name])
	}

	var deployments []component.HostedDeployment
	for _, df := range f.Deployments {
		dm := &component.DeploymentModel{Name: df.Name}
		for _, tf := range df.Tasks {
			taskModel, ok := models[tf.Model]
			if !ok {
				return nil, fmt.Errorf("fixture: deployment %q references unknown model %q", df.Name, tf.Model)
			}
			dm.Tasks = append(dm.Tasks, component.DeployedTaskContext{Name: tf.Name, Model: taskModel})
			taskModel.Caps |= component.CapDeployable
		}
		deployments = append(deployments, component.HostedDeployment{Host: df.Host, Model: dm})

		models[df.Name] = &component.Model{
			Name: df.Name,
			Kind: component.KindDeployment,
		}
		ordered = append(ordered, models[df.Name])
	}

	return component.NewStaticRegistry(ordered, deployments), nil
}
