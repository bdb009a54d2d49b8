package ik

import (
	"context"
	"math/rand"
	"sync"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/armlab/planarkin/kinchain"
)

// CombinedIK runs a number of NloptIK solvers in parallel over independent copies of
// the same chain. The first worker is seeded with the caller's seed; the rest start
// from random in-bounds configurations, which lets redundant chains escape seeds the
// single local solver gets stuck on.
type CombinedIK struct {
	solvers []*NloptIK
	logger  golog.Logger
}

type combinedReturn struct {
	solution []kinchain.Input
	residual float64
	err      error
}

// NewCombinedIK creates a combined solver with nWorkers child solvers, each owning an
// independent copy of the chain's joint state.
func NewCombinedIK(chain *kinchain.Chain, logger golog.Logger, nWorkers int, cfg SolverConfig) (*CombinedIK, error) {
	if nWorkers < 1 {
		return nil, errors.New("need at least one worker")
	}
	ik := &CombinedIK{logger: logger}
	for i := 0; i < nWorkers; i++ {
		solver, err := NewNloptIK(chain.Copy(), logger, cfg)
		if err != nil {
			return nil, err
		}
		ik.solvers = append(ik.solvers, solver)
	}
	return ik, nil
}

// Solve runs all child solvers and returns the solution with the smallest residual.
// Worker k>0 draws its starting configuration from a rand seeded with k, so repeated
// calls are deterministic. If no worker succeeds the returned error wraps
// ErrNoSolution along with each worker's failure.
func (ik *CombinedIK) Solve(ctx context.Context, target r2.Point, seed []kinchain.Input) ([]kinchain.Input, float64, error) {
	var activeSolvers sync.WaitGroup
	results := make([]combinedReturn, len(ik.solvers))

	for i, solver := range ik.solvers {
		i, solver := i, solver
		startingPos := seed
		if i > 0 {
			//nolint:gosec
			startingPos = kinchain.RandomChainInputs(solver.Chain(), rand.New(rand.NewSource(int64(i))))
		}
		activeSolvers.Add(1)
		goutils.PanicCapturingGo(func() {
			defer activeSolvers.Done()
			solution, residual, err := solver.Solve(ctx, target, startingPos)
			results[i] = combinedReturn{solution, residual, err}
		})
	}
	activeSolvers.Wait()

	best := -1
	var solveErrors error
	for i, result := range results {
		if result.err != nil {
			solveErrors = multierr.Combine(solveErrors, result.err)
			continue
		}
		if best < 0 || result.residual < results[best].residual {
			best = i
		}
	}
	if best < 0 {
		return nil, 0, solveErrors
	}
	return results[best].solution, results[best].residual, nil
}
