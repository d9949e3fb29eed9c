package errtypes_test

import (
	"testing"

	"github.com/g-arjones/tools-syskit/internal/errtypes"
	"github.com/g-arjones/tools-syskit/internal/planmodel"
	"github.com/stretchr/testify/assert"
)

func TestTaskAllocationFailedError(t *testing.T) {
	err := &errtypes.TaskAllocationFailed{Tasks: []planmodel.Handle{1, 2}}
	assert.Equal(t, "TaskAllocationFailed: 2 task(s) remain abstract", err.Error())
}

func TestDeviceAllocationFailedError(t *testing.T) {
	err := &errtypes.DeviceAllocationFailed{Task: 3, Service: "imu"}
	assert.Contains(t, err.Error(), `service "imu"`)
	assert.Contains(t, err.Error(), "#3")
}

func TestConflictingDeviceAllocationError(t *testing.T) {
	err := &errtypes.ConflictingDeviceAllocation{Device: "imu0", Tasks: []planmodel.Handle{1, 2}}
	assert.Equal(t, "ConflictingDeviceAllocation: device imu0 bound to 2 tasks", err.Error())
}

func TestMultiplexingErrorError(t *testing.T) {
	err := &errtypes.MultiplexingError{Task: 4, Port: "in"}
	assert.Contains(t, err.Error(), `port "in"`)
}

func TestMissingDeploymentsError(t *testing.T) {
	err := &errtypes.MissingDeployments{Entries: []errtypes.MissingDeploymentEntry{{Task: 1}, {Task: 2}}}
	assert.Equal(t, "MissingDeployments: 2 task(s) have no deployable slot", err.Error())
}

func TestAmbiguousSpecializationError(t *testing.T) {
	err := &errtypes.AmbiguousSpecialization{Task: 5, Candidates: 3}
	assert.Contains(t, err.Error(), "3 surviving candidates")
}

func TestInternalErrorError(t *testing.T) {
	err := &errtypes.InternalError{Reason: "duplicate running deployment"}
	assert.Equal(t, "InternalError: duplicate running deployment", err.Error())
}
