package validate_test

import (
	"errors"
	"testing"

	"github.com/g-arjones/tools-syskit/internal/component"
	"github.com/g-arjones/tools-syskit/internal/deploy"
	"github.com/g-arjones/tools-syskit/internal/errlist"
	"github.com/g-arjones/tools-syskit/internal/errtypes"
	"github.com/g-arjones/tools-syskit/internal/planmodel"
	"github.com/g-arjones/tools-syskit/internal/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var imuModel = &component.Model{
	Name: "IMU",
	Kind: component.KindTaskContext,
	InputPorts: []component.Port{
		{Name: "in", Type: "/base/Samples"},
		{Name: "mux_in", Type: "/base/Samples", Multiplexes: true},
	},
	OutputPorts: []component.Port{
		{Name: "out", Type: "/base/Samples"},
	},
	MasterDrivers: []component.MasterDriverService{
		{Name: "imu", Bus: "CAN"},
	},
}

func TestAbstractNetworkRejectsUnmultiplexedMultiDriver(t *testing.T) {
	plan := planmodel.NewPlan()
	tx := plan.Begin()
	sink := tx.Add(&planmodel.Task{Model: imuModel})
	src1 := tx.Add(&planmodel.Task{Model: imuModel})
	src2 := tx.Add(&planmodel.Task{Model: imuModel})

	pair := planmodel.PortPair{SourcePort: "out", SinkPort: "in"}
	require.NoError(t, tx.AddDataflowEdge(src1, sink, map[planmodel.PortPair]planmodel.ConnectionPolicy{pair: {Type: "buffer", Size: 1}}))
	require.NoError(t, tx.AddDataflowEdge(src2, sink, map[planmodel.PortPair]planmodel.ConnectionPolicy{pair: {Type: "buffer", Size: 1}}))

	err := validate.AbstractNetwork(tx)
	require.Error(t, err)
	var multiplex *errtypes.MultiplexingError
	require.ErrorAs(t, err, &multiplex)
	assert.Equal(t, "in", multiplex.Port)
}

func TestAbstractNetworkAllowsMultiplexedPort(t *testing.T) {
	plan := planmodel.NewPlan()
	tx := plan.Begin()
	sink := tx.Add(&planmodel.Task{Model: imuModel})
	src1 := tx.Add(&planmodel.Task{Model: imuModel})
	src2 := tx.Add(&planmodel.Task{Model: imuModel})

	pair := planmodel.PortPair{SourcePort: "out", SinkPort: "mux_in"}
	require.NoError(t, tx.AddDataflowEdge(src1, sink, map[planmodel.PortPair]planmodel.ConnectionPolicy{pair: {Type: "buffer", Size: 1}}))
	require.NoError(t, tx.AddDataflowEdge(src2, sink, map[planmodel.PortPair]planmodel.ConnectionPolicy{pair: {Type: "buffer", Size: 1}}))

	assert.NoError(t, validate.AbstractNetwork(tx))
}

func TestGeneratedNetworkRejectsAbstractTasks(t *testing.T) {
	plan := planmodel.NewPlan()
	tx := plan.Begin()
	tx.Add(&planmodel.Task{Model: imuModel, Abstract: true})

	err := validate.GeneratedNetwork(tx)
	require.Error(t, err)
	var taskAlloc *errtypes.TaskAllocationFailed
	require.ErrorAs(t, err, &taskAlloc)
}

func TestGeneratedNetworkRejectsUnboundMasterDriver(t *testing.T) {
	plan := planmodel.NewPlan()
	tx := plan.Begin()
	tx.Add(&planmodel.Task{Model: imuModel})

	err := validate.GeneratedNetwork(tx)
	require.Error(t, err)
	var deviceErr *errtypes.DeviceAllocationFailed
	require.ErrorAs(t, err, &deviceErr)
	assert.Equal(t, "imu", deviceErr.Service)
}

func TestGeneratedNetworkRejectsConflictingDeviceAllocation(t *testing.T) {
	plan := planmodel.NewPlan()
	tx := plan.Begin()
	a := tx.Add(&planmodel.Task{Model: imuModel})
	b := tx.Add(&planmodel.Task{Model: imuModel})
	ta, _ := tx.Task(a)
	ta.SetArg("imu_dev", "imu0")
	tb, _ := tx.Task(b)
	tb.SetArg("imu_dev", "imu0")

	err := validate.GeneratedNetwork(tx)
	require.Error(t, err)
	var conflict *errtypes.ConflictingDeviceAllocation
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "imu0", conflict.Device)
	assert.ElementsMatch(t, []planmodel.Handle{a, b}, conflict.Tasks)
}

func TestGeneratedNetworkAcceptsFullyAllocatedPlan(t *testing.T) {
	plan := planmodel.NewPlan()
	tx := plan.Begin()
	a := tx.Add(&planmodel.Task{Model: imuModel})
	ta, _ := tx.Task(a)
	ta.SetArg("imu_dev", "imu0")

	assert.NoError(t, validate.GeneratedNetwork(tx))
}

func TestDeployedNetworkReportsMissingWithCandidates(t *testing.T) {
	plan := planmodel.NewPlan()
	tx := plan.Begin()
	task := tx.Add(&planmodel.Task{Model: imuModel})

	dep := &component.DeploymentModel{Name: "imu_deployment", Tasks: []component.DeployedTaskContext{{Name: "imu_task", Model: imuModel}}}
	reg := component.NewStaticRegistry([]*component.Model{imuModel}, []component.HostedDeployment{{Host: "robot0", Model: dep}})
	idx := deploy.Build(reg)

	err := validate.DeployedNetwork(tx, idx)
	require.Error(t, err)
	var missing *errtypes.MissingDeployments
	require.ErrorAs(t, err, &missing)
	require.Len(t, missing.Entries, 1)
	assert.Equal(t, task, missing.Entries[0].Task)
	require.Len(t, missing.Entries[0].Candidates, 1)
	assert.Equal(t, "robot0", missing.Entries[0].Candidates[0].Host)
}

func TestDeployedNetworkAcceptsTaskWithExecutionAgent(t *testing.T) {
	plan := planmodel.NewPlan()
	tx := plan.Begin()
	agent := tx.Add(&planmodel.Task{Model: &component.Model{Name: "imu_deployment", Kind: component.KindDeployment}})
	tx.Add(&planmodel.Task{Model: imuModel, ExecutionAgent: agent})

	assert.NoError(t, validate.DeployedNetwork(tx, nil))
}

func TestDeployedNetworkSkipsFinishedTasks(t *testing.T) {
	plan := planmodel.NewPlan()
	tx := plan.Begin()
	tx.Add(&planmodel.Task{Model: imuModel, State: planmodel.Finished})

	assert.NoError(t, validate.DeployedNetwork(tx, nil))
}

type noopRequirement struct{}

func (noopRequirement) Instanciate(tx *planmodel.Transaction) (planmodel.Handle, error) {
	return tx.Add(&planmodel.Task{Model: imuModel}), nil
}
func (noopRequirement) FullfilledModel() planmodel.InstanceRequirements {
	return planmodel.InstanceRequirements{Model: imuModel}
}
func (noopRequirement) ResolvedDependencyInjection() map[string]any { return nil }

func TestFinalNetworkRejectsRequirementWithoutPlannedTask(t *testing.T) {
	plan := planmodel.NewPlan()
	tx := plan.Begin()
	tx.Add(&planmodel.Task{Requirement: noopRequirement{}})

	err := validate.FinalNetwork(tx)
	require.Error(t, err)
	var internal *errtypes.InternalError
	require.ErrorAs(t, err, &internal)
}

func TestFinalNetworkRejectsPlanStillPointingAtProxy(t *testing.T) {
	plan := planmodel.NewPlan()
	seed := plan.Begin()
	real := seed.Add(&planmodel.Task{Model: imuModel})
	require.NoError(t, plan.CommitTransaction(seed))

	tx := plan.Begin()
	req := tx.Add(&planmodel.Task{Requirement: noopRequirement{}})
	tx.SetPlannedBy(req, real)

	err := validate.FinalNetwork(tx)
	require.Error(t, err)
}

func TestFinalNetworkAcceptsRealPlannedTask(t *testing.T) {
	plan := planmodel.NewPlan()
	tx := plan.Begin()
	req := tx.Add(&planmodel.Task{Requirement: noopRequirement{}})
	real := tx.Add(&planmodel.Task{Model: imuModel})
	tx.SetPlannedBy(req, real)

	assert.NoError(t, validate.FinalNetwork(tx))
}

func TestFinalNetworkErrorsAreAggregated(t *testing.T) {
	plan := planmodel.NewPlan()
	tx := plan.Begin()
	tx.Add(&planmodel.Task{Requirement: noopRequirement{}})
	tx.Add(&planmodel.Task{Requirement: noopRequirement{}})

	err := validate.FinalNetwork(tx)
	require.Error(t, err)
	var list *errlist.List
	require.True(t, errors.As(err, &list))
	assert.Len(t, *list, 2)
}
