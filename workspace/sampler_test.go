package workspace

import (
	"context"
	"testing"

	"github.com/edaniels/golog"
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

func TestSampleGrid(t *testing.T) {
	logger := golog.NewTestLogger(t)
	chain := threeLink(t)
	sampler, err := NewSampler(chain, logger, SamplerConfig{})
	test.That(t, err, test.ShouldBeNil)

	const resolution = 30
	analysis, err := sampler.SampleGrid(context.Background(), resolution)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, analysis.Tested, test.ShouldHaveLength, resolution*resolution)
	test.That(t, analysis.GridExtent, test.ShouldAlmostEqual, 7.0)

	// the chain is neither unreachable everywhere nor fills the bounding square,
	// since its min reach excludes a central disk
	test.That(t, len(analysis.Reachable), test.ShouldBeGreaterThan, 0)
	test.That(t, len(analysis.Reachable), test.ShouldBeLessThan, resolution*resolution)
	test.That(t, analysis.Ratio, test.ShouldBeGreaterThan, 0.0)
	test.That(t, analysis.Ratio, test.ShouldBeLessThan, 1.0)
	test.That(t, analysis.Area, test.ShouldBeGreaterThan, 0.0)

	// the annulus pre-filter is a superset test: nothing classified reachable may
	// fail it, and every reachable distance lies within the reach bounds
	for _, point := range analysis.Reachable {
		test.That(t, chain.Reachable(point), test.ShouldBeTrue)
	}
	test.That(t, analysis.Summary.MinDistance, test.ShouldBeGreaterThanOrEqualTo, chain.MinReach()-1e-9)
	test.That(t, analysis.Summary.MaxDistance, test.ShouldBeLessThanOrEqualTo, chain.MaxReach()+1e-9)
	test.That(t, analysis.Summary.MeanDistance, test.ShouldBeGreaterThanOrEqualTo, analysis.Summary.MinDistance)
	test.That(t, analysis.Summary.MeanDistance, test.ShouldBeLessThanOrEqualTo, analysis.Summary.MaxDistance)
}

func TestSampleGridParallel(t *testing.T) {
	logger := golog.NewTestLogger(t)
	chain := threeLink(t)

	serial, err := NewSampler(chain, logger, SamplerConfig{})
	test.That(t, err, test.ShouldBeNil)
	parallel, err := NewSampler(chain, logger, SamplerConfig{Workers: 4})
	test.That(t, err, test.ShouldBeNil)

	const resolution = 20
	serialAnalysis, err := serial.SampleGrid(context.Background(), resolution)
	test.That(t, err, test.ShouldBeNil)
	parallelAnalysis, err := parallel.SampleGrid(context.Background(), resolution)
	test.That(t, err, test.ShouldBeNil)

	// workers partition the grid but run the same deterministic per-point check
	test.That(t, parallelAnalysis.Ratio, test.ShouldAlmostEqual, serialAnalysis.Ratio)
	test.That(t, len(parallelAnalysis.Reachable), test.ShouldEqual, len(serialAnalysis.Reachable))
}

func TestSampleGridDegenerateChain(t *testing.T) {
	logger := golog.NewTestLogger(t)
	single, err := kinchain.NewRevoluteChain("single", []float64{2.0}, nil)
	test.That(t, err, test.ShouldBeNil)
	sampler, err := NewSampler(single, logger, SamplerConfig{})
	test.That(t, err, test.ShouldBeNil)

	// the reachable set is exactly the circle of radius 2, a measure-zero set
	// against an area grid, so the ratio collapses toward zero
	analysis, err := sampler.SampleGrid(context.Background(), 25)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, analysis.Ratio, test.ShouldBeLessThan, 0.05)
}

func TestSamplerValidation(t *testing.T) {
	logger := golog.NewTestLogger(t)
	_, err := NewSampler(nil, logger, SamplerConfig{})
	test.That(t, err, test.ShouldNotBeNil)

	sampler, err := NewSampler(threeLink(t), logger, SamplerConfig{})
	test.That(t, err, test.ShouldBeNil)
	_, err = sampler.SampleGrid(context.Background(), 1)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSampleGridCancellation(t *testing.T) {
	logger := golog.NewTestLogger(t)
	sampler, err := NewSampler(threeLink(t), logger, SamplerConfig{
		Solver: ik.SolverConfig{MaxIterations: 10},
	})
	test.That(t, err, test.ShouldBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sampler.SampleGrid(ctx, 10)
	test.That(t, err, test.ShouldNotBeNil)
}
