// Package errtypes collects the typed error taxonomy that the
// validator suite, reconciliation engine and pipeline driver raise. Merge
// conflicts have their own concrete type in internal/merge, since the
// merge solver is the only producer of that one; everything else lives
// here so validate, reconcile and resolver can all produce and recognize
// the same error values.
package errtypes

import (
	"fmt"

	"github.com/g-arjones/tools-syskit/internal/planmodel"
)

// TaskAllocationFailed reports that at least one task remained abstract
// after the generated-network stage.
type TaskAllocationFailed struct {
	Tasks []planmodel.Handle
}

func (e *TaskAllocationFailed) Error() string {
	return fmt.Sprintf("TaskAllocationFailed: %d task(s) remain abstract", len(e.Tasks))
}

// DeviceAllocationFailed reports that a master driver service has no bound
// device.
type DeviceAllocationFailed struct {
	Task    planmodel.Handle
	Service string
}

func (e *DeviceAllocationFailed) Error() string {
	return fmt.Sprintf("DeviceAllocationFailed: %s has no device bound for service %q", e.Task, e.Service)
}

// ConflictingDeviceAllocation reports that a device is bound to two tasks
// at once.
type ConflictingDeviceAllocation struct {
	Device any
	Tasks  []planmodel.Handle
}

func (e *ConflictingDeviceAllocation) Error() string {
	return fmt.Sprintf("ConflictingDeviceAllocation: device %v bound to %d tasks", e.Device, len(e.Tasks))
}

// MultiplexingError reports that a non-multiplexing input port has more
// than one distinct (source-task, source-port) driver.
type MultiplexingError struct {
	Task planmodel.Handle
	Port string
}

func (e *MultiplexingError) Error() string {
	return fmt.Sprintf("MultiplexingError: %s input port %q has multiple distinct drivers", e.Task, e.Port)
}

// MissingDeploymentEntry is one task context that has no deployable slot,
// together with the candidates the selector considered.
type MissingDeploymentEntry struct {
	Task       planmodel.Handle
	Candidates []CandidateDiagnostic
}

// CandidateDiagnostic is the per-candidate diagnostic MissingDeployments
// carries: a (host, deployment-model, name) tuple plus whatever task is
// already bound there, if any.
type CandidateDiagnostic struct {
	Host            string
	DeploymentModel string
	Name            string
	ExistingBinding planmodel.Handle
}

// MissingDeployments reports that one or more task contexts have no
// deployable slot.
type MissingDeployments struct {
	Entries []MissingDeploymentEntry
}

func (e *MissingDeployments) Error() string {
	return fmt.Sprintf("MissingDeployments: %d task(s) have no deployable slot", len(e.Entries))
}

// AmbiguousSpecialization reports that composition specialization
// selection is non-unique while strict mode is on.
type AmbiguousSpecialization struct {
	Task       planmodel.Handle
	Candidates int
}

func (e *AmbiguousSpecialization) Error() string {
	return fmt.Sprintf("AmbiguousSpecialization: %s has %d surviving candidates", e.Task, e.Candidates)
}

// InternalError reports an invariant violation that should not be
// reachable: duplicate running deployments for the same process name,
// proxies surviving commit, and similar.
type InternalError struct {
	Reason string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("InternalError: %s", e.Reason)
}
