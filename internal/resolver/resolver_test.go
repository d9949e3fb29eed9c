package resolver_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/g-arjones/tools-syskit/internal/config"
	"github.com/g-arjones/tools-syskit/internal/fixture"
	"github.com/g-arjones/tools-syskit/internal/planmodel"
	"github.com/g-arjones/tools-syskit/internal/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const planFixture = `{
  "registry": {
    "models": [
      {"name": "IMU", "kind": "task_context",
       "output_ports": [{"name": "samples", "type": "/base/Samples"}]}
    ],
    "deployments": [
      {"name": "imu_deployment", "host": "robot0",
       "tasks": [{"name": "imu_task", "model": "IMU"}]}
    ]
  },
  "requirements": [
    {"model": "IMU"}
  ]
}`

func loadFixture(t *testing.T) *fixture.Loaded {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.json")
	require.NoError(t, os.WriteFile(path, []byte(planFixture), 0o644))
	loaded, err := fixture.Load(path)
	require.NoError(t, err)
	return loaded
}

func TestResolveEndToEndCommitsADeployedNetwork(t *testing.T) {
	loaded := loadFixture(t)

	cfg := &config.Config{Registry: loaded.Registry}
	r := resolver.New(loaded.Plan, cfg)

	result, err := r.Resolve(resolver.Options{RequirementTasks: loaded.Requirements})
	require.NoError(t, err)
	require.Len(t, result.Instantiated, 1)
	assert.Empty(t, result.Deployed.Missing)
	assert.Empty(t, result.Deployed.Ambiguous)

	reqHandle := loaded.Requirements[0].Handle
	planned, ok := loaded.Plan.PlannedTask(reqHandle)
	require.True(t, ok)

	tasks := loaded.Plan.FindLocalTasks("IMU")
	require.Len(t, tasks, 1)
	assert.True(t, tasks[0].ExecutionAgent.Valid())
	assert.Equal(t, tasks[0].Handle, planned)
}

func TestResolveSecondRunReusesTheRunningDeployment(t *testing.T) {
	loaded := loadFixture(t)
	cfg := &config.Config{Registry: loaded.Registry}
	r := resolver.New(loaded.Plan, cfg)

	_, err := r.Resolve(resolver.Options{RequirementTasks: loaded.Requirements})
	require.NoError(t, err)

	deployments := loaded.Plan.FindLocalTasks("imu_deployment")
	require.Len(t, deployments, 1)
	deployments[0].State = planmodel.Running
	hosted := loaded.Plan.FindLocalTasks("IMU")
	require.Len(t, hosted, 1)
	hosted[0].State = planmodel.Running

	secondReq := fixture.NewStaticRequirement(hosted[0].Model, nil, nil)
	result, err := r.Resolve(resolver.Options{RequirementTasks: []planmodel.RequirementTask{
		{Handle: 0, Requirement: secondReq},
	}})
	require.NoError(t, err)
	require.Len(t, result.Reconciled.Reused, 1)
	assert.Equal(t, 1, result.Reconciled.Reused[0].Merged)
}

func TestResolveOnErrorDropLeavesPlanUnchanged(t *testing.T) {
	loaded := loadFixture(t)
	cfg := &config.Config{Registry: loaded.Registry}
	r := resolver.New(loaded.Plan, cfg)

	badReq := fixture.NewStaticRequirement(nil, nil, nil)
	_, err := r.Resolve(resolver.Options{RequirementTasks: []planmodel.RequirementTask{
		{Handle: 0, Requirement: badReq},
	}, OnError: resolver.OnErrorDrop})
	require.Error(t, err)

	assert.Empty(t, loaded.Plan.FindLocalTasks("IMU"))
}

func TestResolveOnErrorSaveDumpsGraphs(t *testing.T) {
	loaded := loadFixture(t)
	cfg := &config.Config{Registry: loaded.Registry}
	r := resolver.New(loaded.Plan, cfg)
	dumpDir := t.TempDir()

	badReq := fixture.NewStaticRequirement(nil, nil, nil)
	_, err := r.Resolve(resolver.Options{
		RequirementTasks: []planmodel.RequirementTask{{Handle: 0, Requirement: badReq}},
		OnError:          resolver.OnErrorSave,
		GraphDumpDir:     dumpDir,
	})
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dumpDir, "syskit-plan-1.hierarchy.dot"))
	assert.NoError(t, statErr)
	_, statErr = os.Stat(filepath.Join(dumpDir, "syskit-plan-1.dataflow.dot"))
	assert.NoError(t, statErr)
}

func TestResolveOnErrorSaveAdvancesTheInvocationIndexOnEachFailure(t *testing.T) {
	loaded := loadFixture(t)
	cfg := &config.Config{Registry: loaded.Registry}
	r := resolver.New(loaded.Plan, cfg)
	dumpDir := t.TempDir()

	badReq := fixture.NewStaticRequirement(nil, nil, nil)
	for i := 0; i < 2; i++ {
		_, err := r.Resolve(resolver.Options{
			RequirementTasks: []planmodel.RequirementTask{{Handle: 0, Requirement: badReq}},
			OnError:          resolver.OnErrorSave,
			GraphDumpDir:     dumpDir,
		})
		require.Error(t, err)
	}

	_, statErr := os.Stat(filepath.Join(dumpDir, "syskit-plan-1.hierarchy.dot"))
	assert.NoError(t, statErr)
	_, statErr = os.Stat(filepath.Join(dumpDir, "syskit-plan-2.hierarchy.dot"))
	assert.NoError(t, statErr)
}

const defaultArgsFixture = `{
  "registry": {
    "models": [
      {"name": "IMU", "kind": "task_context",
       "output_ports": [{"name": "samples", "type": "/base/Samples"}],
       "default_args": {"period": 0.01}}
    ],
    "deployments": [
      {"name": "imu_deployment", "host": "robot0",
       "tasks": [{"name": "imu_task", "model": "IMU"}]}
    ]
  },
  "requirements": [
    {"model": "IMU"}
  ]
}`

func TestResolveFreezesModelDefaultArgsBeforeGarbageCollection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.json")
	require.NoError(t, os.WriteFile(path, []byte(defaultArgsFixture), 0o644))
	loaded, err := fixture.Load(path)
	require.NoError(t, err)

	cfg := &config.Config{Registry: loaded.Registry}
	r := resolver.New(loaded.Plan, cfg)

	_, err = r.Resolve(resolver.Options{RequirementTasks: loaded.Requirements})
	require.NoError(t, err)

	tasks := loaded.Plan.FindLocalTasks("IMU")
	require.Len(t, tasks, 1)
	arg, ok := tasks[0].Args["period"]
	require.True(t, ok)
	assert.True(t, arg.Set)
	assert.Equal(t, 0.01, arg.Value)
}

func TestResolveLeavesAnExplicitArgOverridingAModelDefaultUntouched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.json")
	require.NoError(t, os.WriteFile(path, []byte(defaultArgsFixture), 0o644))
	loaded, err := fixture.Load(path)
	require.NoError(t, err)

	imuModel, ok := loaded.Registry.ModelFor("IMU")
	require.True(t, ok)
	loaded.Requirements[0].Requirement = fixture.NewStaticRequirement(
		imuModel, nil, map[string]any{"period": 0.05},
	)

	cfg := &config.Config{Registry: loaded.Registry}
	r := resolver.New(loaded.Plan, cfg)

	_, err = r.Resolve(resolver.Options{RequirementTasks: loaded.Requirements})
	require.NoError(t, err)

	tasks := loaded.Plan.FindLocalTasks("IMU")
	require.Len(t, tasks, 1)
	arg, ok := tasks[0].Args["period"]
	require.True(t, ok)
	assert.True(t, arg.Set)
	assert.Equal(t, 0.05, arg.Value)
}
