package merge_test

import (
	"testing"

	"github.com/g-arjones/tools-syskit/internal/component"
	"github.com/g-arjones/tools-syskit/internal/merge"
	"github.com/g-arjones/tools-syskit/internal/planmodel"
	"github.com/stretchr/testify/assert"
)

func TestValidateConfluenceAcceptsAnOrderIndependentFixedPoint(t *testing.T) {
	build := func() *planmodel.Transaction {
		plan := planmodel.NewPlan()
		tx := plan.Begin()
		tx.Add(&planmodel.Task{Model: imuModel})
		tx.Add(&planmodel.Task{Model: imuModel})
		tx.Add(&planmodel.Task{Model: imuModel})
		return tx
	}

	assert.NoError(t, merge.ValidateConfluence(build))
}

func TestValidateConfluenceAcceptsDistinctSurvivingModels(t *testing.T) {
	otherModel := &component.Model{Name: "Bus", Kind: component.KindTaskContext}

	build := func() *planmodel.Transaction {
		plan := planmodel.NewPlan()
		tx := plan.Begin()
		tx.Add(&planmodel.Task{Model: imuModel})
		tx.Add(&planmodel.Task{Model: otherModel})
		tx.Add(&planmodel.Task{Model: imuModel})
		return tx
	}

	assert.NoError(t, merge.ValidateConfluence(build))
}
