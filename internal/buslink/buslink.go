// Package buslink implements the Bus Linker: attaching
// device-carrying task contexts to their communication-bus tasks.
package buslink

import (
	"fmt"

	"github.com/g-arjones/tools-syskit/internal/component"
	"github.com/g-arjones/tools-syskit/internal/planmodel"
)

// Linker attaches device tasks to bus tasks.
type Linker struct {
	Registry component.Registry
}

// New returns a Linker backed by the given component-model registry.
func New(registry component.Registry) *Linker {
	return &Linker{Registry: registry}
}

// Link enumerates every task carrying a master driver service that names
// a required bus, ensures exactly one bus task per bus model exists in tx
// (memoized for the duration of this call), and for each: adds a
// dependency edge and orders the task's configure strictly after the
// bus's start. No separate attachment record is kept on the bus task; the
// dependency edge is the only link between the two.
func (l *Linker) Link(tx *planmodel.Transaction) error {
	busses := make(map[string]planmodel.Handle)

	for _, t := range tx.OrderedTasks() {
		if t.Model == nil || !t.Model.Caps.Has(component.CapHasMasterDrivers) {
			continue
		}
		for _, svc := range t.Model.MasterDrivers {
			if svc.Bus == "" {
				continue
			}
			if _, hasDevice := t.ArgValue(svc.Name + "_dev"); !hasDevice {
				continue
			}
			busHandle, err := l.busTaskFor(tx, busses, svc.Bus)
			if err != nil {
				return err
			}
			tx.AddDependency(t.Handle, busHandle)
			tx.AddOrdering(planmodel.Ordering{
				Kind:   planmodel.ConfigureAfterStart,
				Before: t.Handle,
				After:  busHandle,
			})
		}
	}
	return nil
}

// busTaskFor returns the handle of the single bus task for the named bus
// model, instantiating it the first time it is needed within this call.
func (l *Linker) busTaskFor(tx *planmodel.Transaction, memo map[string]planmodel.Handle, busModel string) (planmodel.Handle, error) {
	if h, ok := memo[busModel]; ok {
		return h, nil
	}
	if existing := tx.FindLocalTasks(busModel); len(existing) == 1 {
		memo[busModel] = existing[0].Handle
		return existing[0].Handle, nil
	} else if len(existing) > 1 {
		memo[busModel] = existing[0].Handle
		return existing[0].Handle, nil
	}

	model, ok := l.Registry.ModelFor(busModel)
	if !ok {
		return 0, fmt.Errorf("buslink: unknown bus model %q", busModel)
	}
	h := tx.Add(&planmodel.Task{
		Model:    model,
		Args:     map[string]planmodel.Arg{},
		Reusable: true,
	})
	memo[busModel] = h
	return h, nil
}
