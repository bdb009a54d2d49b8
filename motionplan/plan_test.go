package motionplan

import (
	"context"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"github.com/armlab/planarkin/ik"
	"github.com/armlab/planarkin/kinchain"
)

func threeLink(t *testing.T) *kinchain.Chain {
	t.Helper()
	chain, err := kinchain.NewRevoluteChain("threeLink", []float64{3.0, 2.5, 1.5}, nil)
	test.That(t, err, test.ShouldBeNil)
	return chain
}

func TestInterpolate(t *testing.T) {
	from := kinchain.FloatsToInputs([]float64{0, 0, 0})
	to := kinchain.FloatsToInputs([]float64{1.0, -2.0, 0.5})

	path := Interpolate(from, to, 5)
	test.That(t, path, test.ShouldHaveLength, 5)
	test.That(t, path[0], test.ShouldResemble, from)
	test.That(t, path[4], test.ShouldResemble, to)
	test.That(t, path[2][0].Value, test.ShouldAlmostEqual, 0.5)
	test.That(t, path[2][1].Value, test.ShouldAlmostEqual, -1.0)
	test.That(t, path[2][2].Value, test.ShouldAlmostEqual, 0.25)

	short := Interpolate(from, to, 1)
	test.That(t, short, test.ShouldHaveLength, 1)
	test.That(t, short[0], test.ShouldResemble, to)
}

func TestPlanPickAndPlace(t *testing.T) {
	logger := golog.NewTestLogger(t)
	chain := threeLink(t)
	solver, err := ik.NewNloptIK(chain.Copy(), logger, ik.SolverConfig{})
	test.That(t, err, test.ShouldBeNil)

	const steps = 10
	planner, err := NewPickAndPlacePlanner(chain, solver, logger, steps)
	test.That(t, err, test.ShouldBeNil)

	tasks := []Task{
		{Pick: r2.Point{X: 4.0, Y: 2.0}, Place: r2.Point{X: 5.0, Y: 0}},
		// far outside max reach, must be skipped whole
		{Pick: r2.Point{X: 9.0, Y: 9.0}, Place: r2.Point{X: 4.0, Y: 0}},
	}
	plan, skipped, err := planner.Plan(context.Background(), tasks)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, skipped, test.ShouldHaveLength, 1)
	test.That(t, skipped[0].Pick, test.ShouldResemble, tasks[1].Pick)

	// one planned task: approach and carry segments, plus the final return home
	test.That(t, plan.Trajectory, test.ShouldHaveLength, 3*steps)
	home := chain.CurrentInputs()
	test.That(t, plan.Trajectory[0], test.ShouldResemble, home)
	test.That(t, plan.Trajectory[len(plan.Trajectory)-1], test.ShouldResemble, home)

	// the pick waypoint really lands on the pick point
	pickConfig := plan.Trajectory[steps-1]
	eePos, err := chain.Transform(pickConfig)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, eePos.Sub(tasks[0].Pick).Norm(), test.ShouldBeLessThan, 0.01)

	// planning never commits anything to the chain
	test.That(t, kinchain.InputsToFloats(chain.CurrentInputs()), test.ShouldResemble, []float64{0, 0, 0})
}

func TestPlannerValidation(t *testing.T) {
	logger := golog.NewTestLogger(t)
	chain := threeLink(t)
	solver, err := ik.NewNloptIK(chain, logger, ik.SolverConfig{})
	test.That(t, err, test.ShouldBeNil)

	_, err = NewPickAndPlacePlanner(nil, solver, logger, 0)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewPickAndPlacePlanner(chain, nil, logger, 0)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPlanCancellation(t *testing.T) {
	logger := golog.NewTestLogger(t)
	chain := threeLink(t)
	solver, err := ik.NewNloptIK(chain, logger, ik.SolverConfig{})
	test.That(t, err, test.ShouldBeNil)
	planner, err := NewPickAndPlacePlanner(chain, solver, logger, 0)
	test.That(t, err, test.ShouldBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = planner.Plan(ctx, []Task{{Pick: r2.Point{X: 4, Y: 2}, Place: r2.Point{X: 5, Y: 0}}})
	test.That(t, err, test.ShouldNotBeNil)
}
