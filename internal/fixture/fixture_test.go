package fixture_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/g-arjones/tools-syskit/internal/component"
	"github.com/g-arjones/tools-syskit/internal/fixture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsonFixture = `{
  "registry": {
    "models": [
      {"name": "CAN", "kind": "task_context"},
      {"name": "IMU", "kind": "task_context",
       "master_drivers": [{"name": "imu", "bus": "CAN"}],
       "output_ports": [{"name": "samples", "type": "/base/Samples"}]},
      {"name": "Navigation", "kind": "composition",
       "children": [{"role": "imu", "model": "IMU"}]}
    ],
    "deployments": [
      {"name": "imu_deployment", "host": "robot0",
       "tasks": [{"name": "imu_task", "model": "IMU"}]}
    ]
  },
  "requirements": [
    {"model": "Navigation"}
  ]
}`

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadJSONBuildsRegistryAndSeedsRequirements(t *testing.T) {
	path := writeFixture(t, "plan.json", jsonFixture)

	loaded, err := fixture.Load(path)
	require.NoError(t, err)

	imu, ok := loaded.Registry.ModelFor("IMU")
	require.True(t, ok)
	assert.True(t, imu.FulfillsModel("IMU"))
	assert.Len(t, imu.MasterDrivers, 1)

	nav, ok := loaded.Registry.ModelFor("Navigation")
	require.True(t, ok)
	require.Len(t, nav.Children, 1)
	assert.Equal(t, "imu", nav.Children[0].Name)
	assert.Same(t, imu, nav.Children[0].Model)

	require.Len(t, loaded.Requirements, 1)
	planned, ok := loaded.Plan.PlannedTask(loaded.Requirements[0].Handle)
	assert.False(t, ok)
	_ = planned
}

func TestLoadYAMLProducesEquivalentRegistry(t *testing.T) {
	yamlFixture := `
registry:
  models:
    - name: CAN
      kind: task_context
    - name: IMU
      kind: task_context
      master_drivers:
        - name: imu
          bus: CAN
  deployments:
    - name: imu_deployment
      host: robot0
      tasks:
        - name: imu_task
          model: IMU
requirements:
  - model: IMU
`
	path := writeFixture(t, "plan.yaml", yamlFixture)

	loaded, err := fixture.Load(path)
	require.NoError(t, err)

	deployments := loaded.Registry.AvailableDeployments()
	require.Len(t, deployments, 1)
	assert.Equal(t, "robot0", deployments[0].Host)
	require.Len(t, loaded.Requirements, 1)
}

func TestLoadRejectsUnknownChildModel(t *testing.T) {
	bad := `{
  "registry": {
    "models": [
      {"name": "Navigation", "kind": "composition",
       "children": [{"role": "imu", "model": "Missing"}]}
    ]
  }
}`
	path := writeFixture(t, "bad.json", bad)

	_, err := fixture.Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsUnknownRequirementModel(t *testing.T) {
	bad := `{
  "registry": {"models": [{"name": "IMU", "kind": "task_context"}]},
  "requirements": [{"model": "Nonexistent"}]
}`
	path := writeFixture(t, "bad2.json", bad)

	_, err := fixture.Load(path)
	assert.Error(t, err)
}

func TestBuildRegistryMarksDeployedModelsCapDeployable(t *testing.T) {
	reg, err := fixture.BuildRegistry(fixture.RegistryFixture{
		Models: []fixture.ModelFixture{{Name: "IMU", Kind: "task_context"}},
		Deployments: []fixture.DeploymentFixture{
			{Name: "imu_deployment", Host: "robot0", Tasks: []fixture.DeployedTaskFixture{{Name: "imu_task", Model: "IMU"}}},
		},
	})
	require.NoError(t, err)

	imu, ok := reg.ModelFor("IMU")
	require.True(t, ok)
	assert.True(t, imu.Caps.Has(component.CapDeployable))
}
