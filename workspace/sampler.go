// Package workspace estimates the reachable workspace of a planar chain by brute
// force: it grids the square bounding the chain's maximum reach, prunes points
// outside the reach annulus, and runs the inverse kinematics solver on the rest.
// A pass costs O(R²) solver invocations and is meant for offline analysis, not for
// anything real-time.
package workspace

import (
	"context"
	"math"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/armlab/planarkin/ik"
	"github.com/armlab/planarkin/kinchain"
	"github.com/armlab/planarkin/utils"
)

// Sample is one grid point together with its classification.
type Sample struct {
	Point     r2.Point
	Reachable bool
}

// SummaryStats describe the distances from the base to the reachable points of an
// analysis. All fields are zero when nothing was reachable.
type SummaryStats struct {
	MinDistance  float64
	MaxDistance  float64
	MeanDistance float64
}

// Analysis is the immutable result of one sampling pass. Re-running at a different
// resolution produces an independent new Analysis.
type Analysis struct {
	// Tested holds every grid point in row-major order, R² in total.
	Tested []Sample
	// Reachable holds the points the solver reached, in the same order.
	Reachable []r2.Point
	// Ratio is |Reachable| / |Tested|.
	Ratio float64
	// Area estimates the covered workspace area: the reachable count times the area
	// of one grid cell. A crude estimator, but it converges with resolution.
	Area float64
	// GridExtent is the half-width of the sampled square, the chain's max reach.
	GridExtent float64
	Summary    SummaryStats
}

// SamplerConfig tunes a Sampler. The zero value runs single-threaded with default
// solver settings.
type SamplerConfig struct {
	Solver ik.SolverConfig
	// Workers is the number of parallel sampling workers; each owns an independent
	// copy of the chain and its own solver. Values below 1 mean single-threaded.
	Workers int
}

// Sampler classifies grid points as reachable or not for one chain.
type Sampler struct {
	chain  *kinchain.Chain
	logger golog.Logger
	cfg    SamplerConfig
}

// NewSampler creates a sampler for the given chain.
func NewSampler(chain *kinchain.Chain, logger golog.Logger, cfg SamplerConfig) (*Sampler, error) {
	if chain == nil {
		return nil, errors.New("cannot sample a nil chain")
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Sampler{chain: chain, logger: logger, cfg: cfg}, nil
}

// SampleGrid samples a resolution×resolution grid spanning the square
// [-MaxReach, MaxReach]² and classifies each point. A point counts as reachable only
// if it passes the reach-annulus pre-filter and the solver then finds a solution
// seeded from the chain's committed joint values. Individual solve failures simply
// mark their point unreachable; only context cancellation aborts the pass.
func (s *Sampler) SampleGrid(ctx context.Context, resolution int) (*Analysis, error) {
	if resolution < 2 {
		return nil, errors.Errorf("grid resolution must be at least 2, got %d", resolution)
	}
	extent := s.chain.MaxReach()
	axis := floats.Span(make([]float64, resolution), -extent, extent)
	grid := utils.Meshgrid2D(axis, axis)
	total, _ := grid.Dims()

	s.logger.Debugf("sampling %d grid points over [%.3f, %.3f]² with %d workers",
		total, -extent, extent, s.cfg.Workers)

	tested := make([]Sample, total)
	workerErrs := make([]error, s.cfg.Workers)
	perWorker := (total + s.cfg.Workers - 1) / s.cfg.Workers

	done := make(chan struct{}, s.cfg.Workers)
	for w := 0; w < s.cfg.Workers; w++ {
		w := w
		start := w * perWorker
		end := start + perWorker
		if end > total {
			end = total
		}
		goutils.PanicCapturingGo(func() {
			defer func() { done <- struct{}{} }()
			if start >= end {
				return
			}
			workerErrs[w] = s.sampleRange(ctx, grid, tested, start, end)
		})
	}
	for w := 0; w < s.cfg.Workers; w++ {
		<-done
	}
	var err error
	for _, werr := range workerErrs {
		err = multierr.Combine(err, werr)
	}
	if err != nil {
		return nil, err
	}

	analysis := &Analysis{Tested: tested, GridExtent: extent}
	var distances []float64
	for _, sample := range tested {
		if sample.Reachable {
			analysis.Reachable = append(analysis.Reachable, sample.Point)
			distances = append(distances, sample.Point.Norm())
		}
	}
	analysis.Ratio = float64(len(analysis.Reachable)) / float64(total)
	analysis.Area = float64(len(analysis.Reachable)) * utils.Square(2*extent/math.Sqrt(float64(total)))
	if len(distances) > 0 {
		analysis.Summary.MinDistance, _ = stats.Min(distances)
		analysis.Summary.MaxDistance, _ = stats.Max(distances)
		analysis.Summary.MeanDistance, _ = stats.Mean(distances)
	}

	s.logger.Debugf("workspace analysis complete: %d/%d reachable, ratio %.3f, area %.3f",
		len(analysis.Reachable), total, analysis.Ratio, analysis.Area)
	return analysis, nil
}

// sampleRange classifies the grid rows [start, end) into tested, using a private
// chain copy so concurrent workers never share joint state.
func (s *Sampler) sampleRange(ctx context.Context, grid *mat.Dense, tested []Sample, start, end int) error {
	chain := s.chain.Copy()
	solver, err := ik.NewNloptIK(chain, s.logger, s.cfg.Solver)
	if err != nil {
		return err
	}
	seed := chain.CurrentInputs()
	for i := start; i < end; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		point := r2.Point{X: grid.At(i, 0), Y: grid.At(i, 1)}
		tested[i] = Sample{Point: point}
		if !chain.Reachable(point) {
			continue
		}
		if _, _, err := solver.Solve(ctx, point, seed); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			continue
		}
		tested[i].Reachable = true
	}
	return nil
}
