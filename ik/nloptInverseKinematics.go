// Package ik numerically solves inverse kinematics for planar chains: finding joint
// values that bring the end effector to a target point, subject to each joint's
// declared limits. Solving is local constrained optimization (SLSQP via nlopt), so
// the solution found depends on the seed configuration, and a failure means
// "unreachable from this seed", not that no solution exists anywhere.
package ik

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/go-nlopt/nlopt"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/armlab/planarkin/kinchain"
)

// ErrNoSolution is returned, possibly wrapped, whenever the solver cannot reach a
// target. Callers branch on it with errors.Is; it is an expected result, not a fault.
var ErrNoSolution = errors.New("kinematics could not solve for position")

var errBadBounds = errors.New("cannot set upper or lower bounds for nlopt, slice is empty")

const (
	defaultMaxIterations = 100
	defaultTolerance     = 0.01
	defaultJump          = 1e-8
	convergenceEpsilon   = 1e-10
)

// TolerancePolicy selects how a raw optimizer result is judged to be a solution.
type TolerancePolicy int

const (
	// PolicyResidualCap accepts a result only if the optimizer converged and the end
	// effector landed within Tolerance of the target. This is the default.
	PolicyResidualCap TolerancePolicy = iota
	// PolicyOptimizerSuccess accepts whatever the optimizer reports as converged,
	// with no extra residual check.
	PolicyOptimizerSuccess
)

// Objective selects the scalar function minimized during the solve.
type Objective int

const (
	// ObjectiveSquaredDistance minimizes squared euclidean distance to the target.
	// This is the default.
	ObjectiveSquaredDistance Objective = iota
	// ObjectiveDistance minimizes plain euclidean distance to the target.
	ObjectiveDistance
)

// SolverConfig tunes an NloptIK. The zero value selects defaults: 100 optimizer
// iterations, the squared distance objective, and a 0.01-unit residual cap.
type SolverConfig struct {
	MaxIterations int
	Tolerance     float64
	Policy        TolerancePolicy
	Objective     Objective
	Clock         clock.Clock
}

// SolveStats counts the work a solver has done.
type SolveStats struct {
	Attempts int
	Solved   int
	Elapsed  time.Duration
}

// NloptIK solves inverse kinematics for a single chain by running nlopt's SLSQP
// implementation from a single seed. Joint limits are passed to the optimizer as
// bounds rather than clipped, so the search may pass through boundary-adjacent
// infeasible points. An NloptIK is not safe for concurrent use; CombinedIK manages
// a solver per worker.
type NloptIK struct {
	chain      *kinchain.Chain
	lowerBound []float64
	upperBound []float64

	maxIterations int
	tolerance     float64
	policy        TolerancePolicy
	objective     Objective

	logger golog.Logger
	clk    clock.Clock
	stats  SolveStats
}

type optimizeReturn struct {
	solution []float64
	score    float64
	err      error
}

// NewNloptIK creates a solver for the given chain.
func NewNloptIK(chain *kinchain.Chain, logger golog.Logger, cfg SolverConfig) (*NloptIK, error) {
	if chain == nil {
		return nil, errors.New("cannot create a solver for a nil chain")
	}
	if cfg.MaxIterations < 1 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = defaultTolerance
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	ik := &NloptIK{
		chain:         chain,
		maxIterations: cfg.MaxIterations,
		tolerance:     cfg.Tolerance,
		policy:        cfg.Policy,
		objective:     cfg.Objective,
		logger:        logger,
		clk:           cfg.Clock,
	}
	ik.lowerBound, ik.upperBound = limitsToArrays(chain.DoF())
	if len(ik.lowerBound) == 0 || len(ik.upperBound) == 0 {
		return nil, errBadBounds
	}
	return ik, nil
}

// Chain returns the chain this solver operates on.
func (ik *NloptIK) Chain() *kinchain.Chain {
	return ik.chain
}

// Stats returns counters accumulated over the lifetime of the solver.
func (ik *NloptIK) Stats() SolveStats {
	return ik.stats
}

func (ik *NloptIK) newMetric(target r2.Point) StateMetric {
	if ik.objective == ObjectiveDistance {
		return NewNormMetric(target)
	}
	return NewSquaredNormMetric(target)
}

// Solve runs a single constrained solve for the target, seeded with the given joint
// values. A nil seed explicitly defaults to the chain's committed values; the chain
// itself is never mutated. On success it returns the solution and the residual
// distance between the solution's end effector and the target. On failure the
// returned error wraps ErrNoSolution.
func (ik *NloptIK) Solve(ctx context.Context, target r2.Point, seed []kinchain.Input) ([]kinchain.Input, float64, error) {
	if seed == nil {
		seed = ik.chain.CurrentInputs()
	}
	if len(seed) != len(ik.lowerBound) {
		return nil, 0, kinchain.NewIncorrectDoFError(len(seed), len(ik.lowerBound))
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	startTime := ik.clk.Now()
	ik.stats.Attempts++
	defer func() {
		ik.stats.Elapsed += ik.clk.Since(startTime)
	}()

	opt, err := nlopt.NewNLopt(nlopt.LD_SLSQP, uint(len(ik.lowerBound)))
	if err != nil {
		return nil, 0, errors.Wrap(err, "nlopt creation error")
	}
	defer opt.Destroy()

	metric := ik.newMetric(target)
	mInput := &State{}

	// x is our set of inputs.
	// Gradient is, under the hood, an unsafe C structure that we are meant to mutate in place.
	nloptMinFunc := func(x, gradient []float64) float64 {
		inputs := kinchain.FloatsToInputs(x)
		eePos, err := ik.chain.Transform(inputs)
		if err != nil && !strings.Contains(err.Error(), kinchain.OOBErrString) {
			ik.logger.Errorw("error calculating eePos in nlopt", "error", err)
			err = opt.ForceStop()
			ik.logger.Errorw("forcestop error", "error", err)
			return 0
		}
		mInput.Configuration = inputs
		mInput.Position = eePos
		dist := metric(mInput)

		for i := range gradient {
			flip := false
			inputs[i].Value += defaultJump
			if inputs[i].Value >= ik.upperBound[i] {
				flip = true
				inputs[i].Value -= 2 * defaultJump
			}

			eePos, err := ik.chain.Transform(inputs)
			if err != nil && !strings.Contains(err.Error(), kinchain.OOBErrString) {
				ik.logger.Errorw("error calculating eePos in nlopt", "error", err)
				err = opt.ForceStop()
				ik.logger.Errorw("forcestop error", "error", err)
				return 0
			}
			mInput.Configuration = inputs
			mInput.Position = eePos
			dist2 := metric(mInput)
			gradient[i] = (dist2 - dist) / defaultJump
			if flip {
				inputs[i].Value += defaultJump
				gradient[i] *= -1
			} else {
				inputs[i].Value -= defaultJump
			}
		}
		return dist
	}

	err = multierr.Combine(
		opt.SetFtolRel(convergenceEpsilon),
		opt.SetFtolAbs(convergenceEpsilon),
		opt.SetXtolRel(convergenceEpsilon),
		opt.SetXtolAbs1(convergenceEpsilon),
		opt.SetLowerBounds(ik.lowerBound),
		opt.SetUpperBounds(ik.upperBound),
		opt.SetMinObjective(nloptMinFunc),
		opt.SetMaxEval(ik.maxIterations),
	)
	if err != nil {
		return nil, 0, errors.Wrap(err, "nlopt setup error")
	}

	var activeSolvers sync.WaitGroup
	solveChan := make(chan *optimizeReturn, 1)
	activeSolvers.Add(1)
	goutils.PanicCapturingGo(func() {
		defer activeSolvers.Done()
		solutionRaw, result, nloptErr := opt.Optimize(kinchain.InputsToFloats(seed))
		solveChan <- &optimizeReturn{solutionRaw, result, nloptErr}
	})

	var solved *optimizeReturn
	select {
	case <-ctx.Done():
		err = opt.ForceStop()
		activeSolvers.Wait()
		return nil, 0, multierr.Combine(err, ctx.Err())
	case solved = <-solveChan:
	}
	activeSolvers.Wait()

	if solved.solution == nil {
		return nil, 0, multierr.Append(solved.err, ErrNoSolution)
	}
	solution := kinchain.FloatsToInputs(solved.solution)
	residual := ik.residual(solution, target)

	switch ik.policy {
	case PolicyOptimizerSuccess:
		// Optimizer errors just *happen* sometimes due to weirdnesses in nonlinear
		// problems; under this policy they are the only failure signal we have.
		if solved.err != nil {
			return nil, residual, multierr.Append(solved.err, ErrNoSolution)
		}
	case PolicyResidualCap:
		if residual > ik.tolerance {
			return nil, residual, multierr.Append(solved.err, ErrNoSolution)
		}
	}
	ik.stats.Solved++
	return solution, residual, nil
}

// residual reports the euclidean distance between the configuration's end effector
// and the target, regardless of the solve objective.
func (ik *NloptIK) residual(solution []kinchain.Input, target r2.Point) float64 {
	eePos, err := ik.chain.Transform(solution)
	if err != nil && !strings.Contains(err.Error(), kinchain.OOBErrString) {
		return 0
	}
	return eePos.Sub(target).Norm()
}

func limitsToArrays(limits []kinchain.Limit) ([]float64, []float64) {
	var min, max []float64
	for _, limit := range limits {
		min = append(min, limit.Min)
		max = append(max, limit.Max)
	}
	return min, max
}
