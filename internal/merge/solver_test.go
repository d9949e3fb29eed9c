package merge_test

import (
	"testing"

	"github.com/g-arjones/tools-syskit/internal/component"
	"github.com/g-arjones/tools-syskit/internal/merge"
	"github.com/g-arjones/tools-syskit/internal/planmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var imuModel = &component.Model{
	Name: "IMU",
	Kind: component.KindTaskContext,
	InputPorts: []component.Port{
		{Name: "in", Type: "/base/Samples"},
	},
	OutputPorts: []component.Port{
		{Name: "out", Type: "/base/Samples"},
	},
}

func TestMergeIdenticalTasksMergesCompatibleTasks(t *testing.T) {
	plan := planmodel.NewPlan()
	tx := plan.Begin()
	a := tx.Add(&planmodel.Task{Model: imuModel})
	b := tx.Add(&planmodel.Task{Model: imuModel})

	s := merge.NewSolver()
	require.NoError(t, s.MergeIdenticalTasks(tx))

	survivorA := s.ReplacementFor(a)
	survivorB := s.ReplacementFor(b)
	assert.Equal(t, survivorA, survivorB)
	_, ok := tx.Task(survivorA)
	assert.True(t, ok)
}

func TestMergeIdenticalTasksKeepsDistinctModelsApart(t *testing.T) {
	plan := planmodel.NewPlan()
	tx := plan.Begin()
	gps := &component.Model{Name: "GPS", Kind: component.KindTaskContext}
	a := tx.Add(&planmodel.Task{Model: imuModel})
	b := tx.Add(&planmodel.Task{Model: gps})

	s := merge.NewSolver()
	require.NoError(t, s.MergeIdenticalTasks(tx))

	assert.NotEqual(t, s.ReplacementFor(a), s.ReplacementFor(b))
}

func TestMergeIdenticalTasksKeepsIncompatibleArgsApart(t *testing.T) {
	plan := planmodel.NewPlan()
	tx := plan.Begin()
	a := tx.Add(&planmodel.Task{Model: imuModel})
	b := tx.Add(&planmodel.Task{Model: imuModel})
	ta, _ := tx.Task(a)
	ta.SetArg("rate", 100)
	tb, _ := tx.Task(b)
	tb.SetArg("rate", 200)

	s := merge.NewSolver()
	require.NoError(t, s.MergeIdenticalTasks(tx))

	assert.NotEqual(t, s.ReplacementFor(a), s.ReplacementFor(b))
}

func TestMergeIdenticalTasksNeverMergesAProxyWithANewTask(t *testing.T) {
	plan := planmodel.NewPlan()
	seed := plan.Begin()
	seed.Add(&planmodel.Task{Model: imuModel})
	require.NoError(t, plan.CommitTransaction(seed))

	tx := plan.Begin()
	fresh := tx.Add(&planmodel.Task{Model: imuModel})

	s := merge.NewSolver()
	require.NoError(t, s.MergeIdenticalTasks(tx))

	// The proxy and the fresh task share a model but must stay distinct;
	// only reconciliation folds a new task into a real one deliberately.
	assert.Equal(t, fresh, s.ReplacementFor(fresh))
	tasks := tx.OrderedTasks()
	assert.Len(t, tasks, 2)
}

func TestMergeIdenticalTasksPrefersSurvivorWithMoreArgsSet(t *testing.T) {
	plan := planmodel.NewPlan()
	tx := plan.Begin()
	a := tx.Add(&planmodel.Task{Model: imuModel})
	b := tx.Add(&planmodel.Task{Model: imuModel})
	tb, _ := tx.Task(b)
	tb.SetArg("rate", 100)

	s := merge.NewSolver()
	require.NoError(t, s.MergeIdenticalTasks(tx))

	assert.Equal(t, b, s.ReplacementFor(a))
	assert.Equal(t, b, s.ReplacementFor(b))
}

func TestApplyMergeGroupReportsConflictingPortsAsConflictError(t *testing.T) {
	plan := planmodel.NewPlan()
	tx := plan.Begin()
	a := tx.Add(&planmodel.Task{Model: imuModel})
	b := tx.Add(&planmodel.Task{Model: imuModel})
	other := tx.Add(&planmodel.Task{Model: imuModel})

	pair := planmodel.PortPair{SourcePort: "out", SinkPort: "in"}
	require.NoError(t, tx.AddDataflowEdge(other, a, map[planmodel.PortPair]planmodel.ConnectionPolicy{
		pair: {Type: "buffer", Size: 1},
	}))
	require.NoError(t, tx.AddDataflowEdge(other, b, map[planmodel.PortPair]planmodel.ConnectionPolicy{
		pair: {Type: "buffer", Size: 99},
	}))

	s := merge.NewSolver()
	err := s.ApplyMergeGroup(tx, map[planmodel.Handle]planmodel.Handle{a: b})
	require.Error(t, err)
	var conflict *merge.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestMergeIdenticalTasksRejectsWouldBeCycle(t *testing.T) {
	plan := planmodel.NewPlan()
	tx := plan.Begin()
	a := tx.Add(&planmodel.Task{Model: imuModel})
	b := tx.Add(&planmodel.Task{Model: imuModel})
	tx.AddDependency(a, b)
	tx.AddDependency(b, a)

	s := merge.NewSolver()
	// a and b depend on each other; merging them would collapse a
	// self-dependency into a real cycle through the surviving handle's own
	// successors, so the cycle guard must keep them apart.
	require.NoError(t, s.MergeIdenticalTasks(tx))
	assert.NotEqual(t, s.ReplacementFor(a), s.ReplacementFor(b))
}
