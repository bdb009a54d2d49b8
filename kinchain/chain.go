// Package kinchain models planar serial kinematic chains of rotational and
// translational joints and does the forward-kinematics math for them: mapping
// joint values to the end effector and intermediate joint positions, and deriving
// aggregate reach bounds used to cheaply prune unreachable targets.
package kinchain

import (
	"math"
	"math/rand"
	"sync"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/floats"
)

// Chain is an ordered sequence of joints anchored at the origin. Its geometry is
// immutable after construction; only the committed joint values change. A Chain is
// not safe for concurrent mutation; parallel workers should operate on a Copy.
type Chain struct {
	name   string
	joints []Joint
	values []Input

	boundsOnce sync.Once
	maxReach   float64
	minReach   float64
}

// NewChain creates a chain from the given joints, all values zeroed. At least one
// joint is required.
func NewChain(name string, joints ...Joint) (*Chain, error) {
	if len(joints) == 0 {
		return nil, errors.New("a chain needs at least one joint")
	}
	for _, j := range joints {
		if j == nil {
			return nil, errors.New("nil joint passed to NewChain")
		}
	}
	return &Chain{name: name, joints: joints, values: make([]Input, len(joints))}, nil
}

// NewRevoluteChain creates a chain of rotational joints from parallel slices of link
// lengths and limits. A nil limits slice applies DefaultRotationalLimit to every
// joint; otherwise the slices must have equal length.
func NewRevoluteChain(name string, linkLengths []float64, limits []Limit) (*Chain, error) {
	if limits != nil && len(limits) != len(linkLengths) {
		return nil, errors.Errorf("have %d link lengths but %d joint limits", len(linkLengths), len(limits))
	}
	joints := make([]Joint, 0, len(linkLengths))
	for i, length := range linkLengths {
		limit := DefaultRotationalLimit
		if limits != nil {
			limit = limits[i]
		}
		joint, err := NewRotationalJoint(length, limit)
		if err != nil {
			return nil, errors.Wrapf(err, "joint %d", i)
		}
		joints = append(joints, joint)
	}
	return NewChain(name, joints...)
}

// Name returns the name of the chain.
func (c *Chain) Name() string {
	return c.name
}

// DoF returns the limits of each joint in order. Its length is the number of degrees
// of freedom of the chain.
func (c *Chain) DoF() []Limit {
	limits := make([]Limit, len(c.joints))
	for i, j := range c.joints {
		limits[i] = j.Limit()
	}
	return limits
}

// JointPositions computes forward kinematics for the given joint values and returns
// the positions of the base, every joint, and the end effector, in order. The result
// always has len(inputs)+1 entries.
//
// The mapping is defined for any real-valued inputs. Values outside a joint's declared
// range still produce positions, along with a non-nil error containing OOBErrString
// that callers doing pure geometry may ignore.
func (c *Chain) JointPositions(inputs []Input) ([]r2.Point, error) {
	if len(inputs) != len(c.joints) {
		return nil, NewIncorrectDoFError(len(inputs), len(c.joints))
	}
	var err error
	positions := make([]r2.Point, 0, len(c.joints)+1)
	pos := r2.Point{}
	positions = append(positions, pos)
	orientation := 0.0
	for i, joint := range c.joints {
		value := inputs[i].Value
		if limit := joint.Limit(); value < limit.Min || value > limit.Max {
			err = multierr.Combine(err, NewJointOutOfRangeError(i, value, limit))
		}
		var delta r2.Point
		delta, orientation = joint.Step(orientation, value)
		pos = pos.Add(delta)
		positions = append(positions, pos)
	}
	return positions, err
}

// Transform computes forward kinematics for the given joint values and returns the
// end effector position. Out-of-bounds inputs behave as in JointPositions.
func (c *Chain) Transform(inputs []Input) (r2.Point, error) {
	positions, err := c.JointPositions(inputs)
	if positions == nil {
		return r2.Point{}, err
	}
	return positions[len(positions)-1], err
}

// CurrentInputs returns a copy of the chain's committed joint values.
func (c *Chain) CurrentInputs() []Input {
	return append(make([]Input, 0, len(c.values)), c.values...)
}

// CurrentJointPositions computes forward kinematics for the chain's committed joint
// values.
func (c *Chain) CurrentJointPositions() []r2.Point {
	positions, _ := c.JointPositions(c.values)
	return positions
}

// SetJointValues commits new joint values to the chain. The commit is atomic: if any
// value lies outside its joint's declared range, no value is changed and the returned
// error reports every rejected joint.
func (c *Chain) SetJointValues(inputs []Input) error {
	if len(inputs) != len(c.joints) {
		return NewIncorrectDoFError(len(inputs), len(c.joints))
	}
	var err error
	for i, joint := range c.joints {
		if limit := joint.Limit(); inputs[i].Value < limit.Min || inputs[i].Value > limit.Max {
			err = multierr.Combine(err, NewJointOutOfRangeError(i, inputs[i].Value, limit))
		}
	}
	if err != nil {
		return err
	}
	copy(c.values, inputs)
	return nil
}

// Copy returns a chain sharing this chain's immutable geometry but with an independent
// copy of the committed joint values, suitable for handing to a parallel worker.
func (c *Chain) Copy() *Chain {
	return &Chain{
		name:   c.name,
		joints: c.joints,
		values: c.CurrentInputs(),
	}
}

// AlmostEquals returns whether the other chain has the same joints, up to floating
// point imprecision. Committed values are not compared.
func (c *Chain) AlmostEquals(other *Chain) bool {
	if len(c.joints) != len(other.joints) {
		return false
	}
	for i, j := range c.joints {
		if !j.AlmostEquals(other.joints[i]) {
			return false
		}
	}
	return true
}

func (c *Chain) computeReachBounds() {
	var rotational []float64
	for _, joint := range c.joints {
		switch j := joint.(type) {
		case *rotationalJoint:
			rotational = append(rotational, j.length)
			c.maxReach += j.length
		case *translationalJoint:
			c.maxReach += j.limit.Max
		}
	}
	if len(rotational) == 0 {
		return
	}
	// Translational joints never push the minimum reach below their zero extension,
	// so only the rotational links participate in the triangle-inequality bound.
	last := rotational[len(rotational)-1]
	c.minReach = math.Abs(floats.Sum(rotational[:len(rotational)-1]) - last)
}

// MaxReach returns the maximum distance from the base the end effector can attain:
// the sum of all rotational link lengths plus the maximum extension of every
// translational joint.
func (c *Chain) MaxReach() float64 {
	c.boundsOnce.Do(c.computeReachBounds)
	return c.maxReach
}

// MinReach returns the minimum distance from the base the end effector can attain
// with unrestricted joint rotation, the distal link folded back against the rest.
func (c *Chain) MinReach() float64 {
	c.boundsOnce.Do(c.computeReachBounds)
	return c.minReach
}

// Reachable reports whether the target lies within the annulus between MinReach and
// MaxReach. This is a necessary but not sufficient condition for reachability: it
// ignores joint range restrictions beyond the aggregate bounds, and is meant as a
// cheap pre-filter before running an inverse kinematics solver.
func (c *Chain) Reachable(target r2.Point) bool {
	distance := target.Norm()
	return c.MinReach() <= distance && distance <= c.MaxReach()
}

// RandomChainInputs produces a set of in-bounds joint values for the chain, drawn
// uniformly from each joint's limits using the given source of randomness.
func RandomChainInputs(c *Chain, rSeed *rand.Rand) []Input {
	if rSeed == nil {
		//nolint:gosec
		rSeed = rand.New(rand.NewSource(1))
	}
	dof := c.DoF()
	pos := make([]Input, 0, len(dof))
	for _, limit := range dof {
		l, u := limit.Min, limit.Max

		// Default to [-999,999] as range if limits are infinite
		if l == math.Inf(-1) {
			l = -999
		}
		if u == math.Inf(1) {
			u = 999
		}

		jRange := math.Abs(u - l)
		pos = append(pos, Input{rSeed.Float64()*jRange + l})
	}
	return pos
}
