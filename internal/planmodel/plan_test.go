package planmodel_test

import (
	"testing"

	"github.com/g-arjones/tools-syskit/internal/component"
	"github.com/g-arjones/tools-syskit/internal/planmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deploymentModel() *component.Model {
	return &component.Model{Name: "imu_deployment", Kind: component.KindDeployment}
}

func TestPlanBeginProxiesExistingTasks(t *testing.T) {
	plan := planmodel.NewPlan()
	seed := plan.Begin()
	h := seed.Add(&planmodel.Task{Model: imuModel()})
	require.NoError(t, plan.CommitTransaction(seed))

	tx := plan.Begin()
	proxy, ok := tx.Task(h)
	require.True(t, ok)
	assert.True(t, proxy.TransactionProxy)
	assert.Equal(t, h, proxy.RealHandle)
}

func TestPlanCommitTransactionSwapsState(t *testing.T) {
	plan := planmodel.NewPlan()
	tx := plan.Begin()
	h := tx.Add(&planmodel.Task{Model: imuModel()})
	require.NoError(t, plan.CommitTransaction(tx))

	committed, ok := plan.Task(h)
	require.True(t, ok)
	assert.Equal(t, "IMU", committed.Model.Name)
}

func TestPlanDiscardTransactionLeavesPlanUntouched(t *testing.T) {
	plan := planmodel.NewPlan()
	tx := plan.Begin()
	h := tx.Add(&planmodel.Task{Model: imuModel()})
	plan.DiscardTransaction(tx)

	_, ok := plan.Task(h)
	assert.False(t, ok)
}

func TestPlanRunningAndFinishingDeployments(t *testing.T) {
	plan := planmodel.NewPlan()
	tx := plan.Begin()
	running := tx.Add(&planmodel.Task{Model: deploymentModel(), State: planmodel.Running})
	finishing := tx.Add(&planmodel.Task{Model: deploymentModel(), State: planmodel.Finishing})
	finished := tx.Add(&planmodel.Task{Model: deploymentModel(), State: planmodel.Finished})
	require.NoError(t, plan.CommitTransaction(tx))

	runningDeployments := plan.RunningDeployments()
	var runningHandles []planmodel.Handle
	for _, d := range runningDeployments {
		runningHandles = append(runningHandles, d.Handle)
	}
	assert.ElementsMatch(t, []planmodel.Handle{running, finishing}, runningHandles)
	assert.NotContains(t, runningHandles, finished)

	finishingDeployments := plan.FinishingDeployments()
	require.Len(t, finishingDeployments, 1)
	assert.Equal(t, finishing, finishingDeployments[0].Handle)
}

func TestPlanFindTasksAndFindLocalTasks(t *testing.T) {
	plan := planmodel.NewPlan()
	tx := plan.Begin()
	imu := imuModel()
	imu.Fulfills = []string{"IMU", "DeviceDriver"}
	tx.Add(&planmodel.Task{Model: imu})
	require.NoError(t, plan.CommitTransaction(tx))

	assert.Len(t, plan.FindLocalTasks("IMU"), 1)
	assert.Len(t, plan.FindTasks("DeviceDriver"), 1)
	assert.Empty(t, plan.FindLocalTasks("GPS"))
}

func TestPlanRequirementTasksAndPlannedTask(t *testing.T) {
	plan := planmodel.NewPlan()
	tx := plan.Begin()
	reqHandle := tx.Add(&planmodel.Task{Requirement: noopRequirement{}})
	planned := tx.Add(&planmodel.Task{Model: imuModel()})
	tx.SetPlannedBy(reqHandle, planned)
	require.NoError(t, plan.CommitTransaction(tx))

	reqs := plan.RequirementTasks()
	require.Len(t, reqs, 1)
	assert.Equal(t, reqHandle, reqs[0].Handle)

	got, ok := plan.PlannedTask(reqHandle)
	require.True(t, ok)
	assert.Equal(t, planned, got)
}

type noopRequirement struct{}

func (noopRequirement) Instanciate(tx *planmodel.Transaction) (planmodel.Handle, error) {
	return tx.Add(&planmodel.Task{Model: imuModel()}), nil
}
func (noopRequirement) FullfilledModel() planmodel.InstanceRequirements {
	return planmodel.InstanceRequirements{}
}
func (noopRequirement) ResolvedDependencyInjection() map[string]any { return nil }
