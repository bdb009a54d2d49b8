package motionplan

import (
	"context"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/armlab/planarkin/kinchain"
)

const defaultStepsPerSegment = 50

// Solver finds joint values bringing a chain's end effector to a target, seeded from
// the given configuration. Both ik.NloptIK and ik.CombinedIK satisfy this.
type Solver interface {
	Solve(ctx context.Context, target r2.Point, seed []kinchain.Input) ([]kinchain.Input, float64, error)
}

// Task is one pick-and-place job: grab at Pick, release at Place.
type Task struct {
	Pick  r2.Point
	Place r2.Point
}

// PickAndPlacePlanner sequences pick-and-place tasks into a single joint-space plan.
type PickAndPlacePlanner struct {
	chain  *kinchain.Chain
	solver Solver
	logger golog.Logger
	steps  int
}

// NewPickAndPlacePlanner creates a planner moving the given chain with the given
// solver. stepsPerSegment controls trajectory smoothness; values below 2 select the
// default of 50.
func NewPickAndPlacePlanner(chain *kinchain.Chain, solver Solver, logger golog.Logger, stepsPerSegment int) (*PickAndPlacePlanner, error) {
	if chain == nil {
		return nil, errors.New("cannot plan for a nil chain")
	}
	if solver == nil {
		return nil, errors.New("cannot plan without a solver")
	}
	if stepsPerSegment < 2 {
		stepsPerSegment = defaultStepsPerSegment
	}
	return &PickAndPlacePlanner{chain: chain, solver: solver, logger: logger, steps: stepsPerSegment}, nil
}

// Plan builds a trajectory that starts from the chain's committed configuration,
// visits each task's pick and place points in order, and returns home. A task whose
// pick or place point cannot be solved is skipped whole, reported in the second
// return value, and planning continues with the next task; only context cancellation
// aborts the plan. The chain itself is never mutated.
func (p *PickAndPlacePlanner) Plan(ctx context.Context, tasks []Task) (*Plan, []Task, error) {
	home := p.chain.CurrentInputs()
	current := home
	plan := &Plan{}
	var skipped []Task

	for i, task := range tasks {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		pickSolution, _, err := p.solver.Solve(ctx, task.Pick, current)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, err
			}
			p.logger.Debugw("pick point unreachable, skipping task", "task", i, "point", task.Pick, "error", err)
			skipped = append(skipped, task)
			continue
		}
		placeSolution, _, err := p.solver.Solve(ctx, task.Place, pickSolution)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, err
			}
			p.logger.Debugw("place point unreachable, skipping task", "task", i, "point", task.Place, "error", err)
			skipped = append(skipped, task)
			continue
		}
		plan.Append(Interpolate(current, pickSolution, p.steps))
		plan.Append(Interpolate(pickSolution, placeSolution, p.steps))
		current = placeSolution
	}

	plan.Append(Interpolate(current, home, p.steps))
	return plan, skipped, nil
}
