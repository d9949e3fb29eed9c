// Package validate implements the Validator Suite: four
// independently runnable checks over a staging transaction, each reporting
// every violation it finds as typed errors from internal/errtypes
// (collected in an errlist.List, or as the entries of one
// MissingDeployments).
package validate

import (
	"fmt"

	"github.com/g-arjones/tools-syskit/internal/component"
	"github.com/g-arjones/tools-syskit/internal/deploy"
	"github.com/g-arjones/tools-syskit/internal/errlist"
	"github.com/g-arjones/tools-syskit/internal/errtypes"
	"github.com/g-arjones/tools-syskit/internal/planmodel"
)

// AbstractNetwork checks the no-multiplexing-violation invariant: every
// task-context input port not declared Multiplexes must have at most one
// distinct (source-task, source-port) driver across all incoming edges.
func AbstractNetwork(tx *planmodel.Transaction) error {
	var errs errlist.List
	for _, t := range tx.OrderedTasks() {
		if t.Model == nil {
			continue
		}
		drivers := make(map[string]map[[2]string]bool)
		for _, e := range tx.EdgesTo(t.Handle) {
			for pair := range e.ConnectionSet {
				if drivers[pair.SinkPort] == nil {
					drivers[pair.SinkPort] = make(map[[2]string]bool)
				}
				drivers[pair.SinkPort][[2]string{e.Source.String(), pair.SourcePort}] = true
			}
		}
		for sinkPort, sources := range drivers {
			if len(sources) <= 1 {
				continue
			}
			port, ok := t.Model.FindInputPort(sinkPort)
			if ok && port.Multiplexes {
				continue
			}
			errs.Append(&errtypes.MultiplexingError{Task: t.Handle, Port: sinkPort})
		}
	}
	return errs.Err()
}

// GeneratedNetwork checks task allocation (no task remains abstract) and
// device allocation (every master driver service is bound, and each bound
// device is unique).
func GeneratedNetwork(tx *planmodel.Transaction) error {
	var errs errlist.List

	var abstract []planmodel.Handle
	deviceOwners := make(map[string][]planmodel.Handle)

	for _, t := range tx.OrderedTasks() {
		if t.Abstract {
			abstract = append(abstract, t.Handle)
		}
		if t.Model == nil {
			continue
		}
		for _, svc := range t.Model.MasterDrivers {
			key := svc.Name + "_dev"
			v, ok := t.ArgValue(key)
			if !ok {
				errs.Append(&errtypes.DeviceAllocationFailed{Task: t.Handle, Service: svc.Name})
				continue
			}
			sig := fmt.Sprint(v)
			deviceOwners[sig] = append(deviceOwners[sig], t.Handle)
		}
	}

	if len(abstract) > 0 {
		errs.Append(&errtypes.TaskAllocationFailed{Tasks: abstract})
	}
	for device, owners := range deviceOwners {
		if len(owners) > 1 {
			errs.Append(&errtypes.ConflictingDeviceAllocation{Device: device, Tasks: owners})
		}
	}
	return errs.Err()
}

// DeployedNetwork checks that every non-abstract, non-finished task
// context has an execution agent, using idx to attach per-task candidate
// diagnostics to the violation.
func DeployedNetwork(tx *planmodel.Transaction, idx *deploy.Index) error {
	var missing []errtypes.MissingDeploymentEntry
	for _, t := range tx.OrderedTasks() {
		if t.Abstract || t.Model == nil || t.State == planmodel.Finished {
			continue
		}
		if t.Model.Kind != component.KindTaskContext {
			continue
		}
		if t.ExecutionAgent.Valid() {
			continue
		}
		entry := errtypes.MissingDeploymentEntry{Task: t.Handle}
		if idx != nil {
			for _, c := range idx.CandidatesFor(t.Model) {
				entry.Candidates = append(entry.Candidates, errtypes.CandidateDiagnostic{
					Host:            c.Host,
					DeploymentModel: c.Deployment.Name,
					Name:            c.DeploymentLocal,
				})
			}
		}
		missing = append(missing, entry)
	}
	if len(missing) > 0 {
		return &errtypes.MissingDeployments{Entries: missing}
	}
	return nil
}

// FinalNetwork checks that every requirement task's planned task is a
// real (non-proxy) task still attached to the transaction.
func FinalNetwork(tx *planmodel.Transaction) error {
	var errs errlist.List
	for _, req := range tx.RequirementTasks() {
		planned, ok := tx.PlannedTask(req.Handle)
		if !ok {
			errs.Append(&errtypes.InternalError{Reason: fmt.Sprintf("requirement %s has no planned task", req.Handle)})
			continue
		}
		t, ok := tx.Task(planned)
		if !ok {
			errs.Append(&errtypes.InternalError{Reason: fmt.Sprintf("requirement %s plans unknown task %s", req.Handle, planned)})
			continue
		}
		if t.TransactionProxy {
			errs.Append(&errtypes.InternalError{Reason: fmt.Sprintf("requirement %s still plans a transaction proxy %s", req.Handle, planned)})
		}
	}
	return errs.Err()
}
