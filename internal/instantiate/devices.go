package instantiate

import (
	"fmt"

	"github.com/g-arjones/tools-syskit/internal/component"
	"github.com/g-arjones/tools-syskit/internal/planmodel"
)

// AllocateDevices implements the device-allocation pass: for every
// master-driver-carrying task in tx, and for every master driver service it
// declares, if no device is yet attached, search the task's ancestors
// (through the hierarchy relation) for a dependency-injection selection
// named "<service>_dev". If every ancestor that has an opinion agrees on
// one device, bind it; if ancestors disagree, leave the argument unset so
// the validator suite reports it (DeviceAllocationFailed).
//
// Ancestor traversal may revisit nodes through diamonds in the (DAG, not
// tree) hierarchy, so results are memoized per argument name for the
// duration of this single call.
func AllocateDevices(tx *planmodel.Transaction) {
	memo := make(map[memoKey][]any)
	for _, t := range tx.OrderedTasks() {
		if t.Model == nil || !t.Model.Caps.Has(component.CapHasMasterDrivers) {
			continue
		}
		for _, svc := range t.Model.MasterDrivers {
			key := svc.Name + "_dev"
			if _, ok := t.ArgValue(key); ok {
				continue
			}
			selections := ancestorSelections(tx, t.Handle, key, memo, map[planmodel.Handle]bool{})
			switch len(selections) {
			case 0:
				// No ancestor has an opinion; left unset, validator flags it.
			case 1:
				t.SetArg(key, selections[0])
			default:
				// Ancestors disagree; left unset, the validator reports
				// DeviceAllocationFailed for it.
			}
		}
	}
}

type memoKey struct {
	task planmodel.Handle
	arg  string
}

func ancestorSelections(tx *planmodel.Transaction, h planmodel.Handle, arg string, memo map[memoKey][]any, visiting map[planmodel.Handle]bool) []any {
	key := memoKey{task: h, arg: arg}
	if cached, ok := memo[key]; ok {
		return cached
	}
	if visiting[h] {
		return nil
	}
	visiting[h] = true

	var found []any
	seenValues := make(map[string]bool)
	for _, parent := range tx.Parents(h) {
		parentTask, ok := tx.Task(parent)
		if !ok {
			continue
		}
		if v, ok := parentTask.DependencyInjection[arg]; ok {
			sig := fmtValue(v)
			if !seenValues[sig] {
				seenValues[sig] = true
				found = append(found, v)
			}
			continue // an ancestor's own selection shadows its own ancestors'
		}
		for _, v := range ancestorSelections(tx, parent, arg, memo, visiting) {
			sig := fmtValue(v)
			if !seenValues[sig] {
				seenValues[sig] = true
				found = append(found, v)
			}
		}
	}
	delete(visiting, h)
	memo[key] = found
	return found
}

func fmtValue(v any) string {
	type stringer interface{ String() string }
	if s, ok := v.(stringer); ok {
		return s.String()
	}
	return fmt.Sprint(v)
}

