package kinchain

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/armlab/planarkin/utils"
)

// Limit represents the admissible range of motion for one joint variable.
type Limit struct {
	Min float64
	Max float64
}

// DefaultRotationalLimit is the limit assumed for rotational joints when none is given,
// a full turn in either direction.
var DefaultRotationalLimit = Limit{-math.Pi, math.Pi}

func limitsAlmostEqual(a, b Limit) bool {
	const epsilon = 1e-5
	return utils.Float64AlmostEqual(a.Min, b.Min, epsilon) &&
		utils.Float64AlmostEqual(a.Max, b.Max, epsilon)
}

// Joint models a single degree of freedom of a planar serial chain, e.g. a revolute
// elbow or a prismatic extension stage.
type Joint interface {
	// Step advances the chain's planar pose through this joint. Given the cumulative
	// orientation of the chain so far and the joint variable, it returns the
	// displacement from this joint's origin to the next and the new cumulative
	// orientation. It is a pure function and accepts any real-valued input.
	Step(orientation, value float64) (r2.Point, float64)

	// Limit reports the admissible range of the joint variable.
	Limit() Limit

	// AlmostEquals returns whether the other joint has the same kind, geometry, and
	// limits, up to floating point imprecision.
	AlmostEquals(other Joint) bool
}

// a rotational joint revolves about its origin and then traverses a rigid link of
// fixed length along the new orientation.
type rotationalJoint struct {
	length float64
	limit  Limit
}

// NewRotationalJoint creates a rotational joint followed by a rigid link of the given
// length. The link length must be non-negative.
func NewRotationalJoint(linkLength float64, limit Limit) (Joint, error) {
	if linkLength < 0 {
		return nil, errors.Errorf("link length must be non-negative, got %f", linkLength)
	}
	if limit.Min > limit.Max {
		return nil, errors.Errorf("invalid joint limit, min %f greater than max %f", limit.Min, limit.Max)
	}
	return &rotationalJoint{length: linkLength, limit: limit}, nil
}

func (rj *rotationalJoint) Step(orientation, value float64) (r2.Point, float64) {
	orientation += value
	return r2.Point{X: rj.length * math.Cos(orientation), Y: rj.length * math.Sin(orientation)}, orientation
}

func (rj *rotationalJoint) Limit() Limit {
	return rj.limit
}

func (rj *rotationalJoint) AlmostEquals(other Joint) bool {
	otherJ, ok := other.(*rotationalJoint)
	return ok && utils.Float64AlmostEqual(rj.length, otherJ.length, 1e-8) &&
		limitsAlmostEqual(rj.limit, otherJ.limit)
}

// a translational joint displaces along the chain's current orientation without
// changing it. It carries no link of its own; the joint variable is the displacement.
type translationalJoint struct {
	limit Limit
}

// NewTranslationalJoint creates a translational joint with the given extension limits.
// There is no default limit for translational joints; callers must supply one.
func NewTranslationalJoint(limit Limit) (Joint, error) {
	if limit.Min > limit.Max {
		return nil, errors.Errorf("invalid joint limit, min %f greater than max %f", limit.Min, limit.Max)
	}
	return &translationalJoint{limit: limit}, nil
}

func (pj *translationalJoint) Step(orientation, value float64) (r2.Point, float64) {
	return r2.Point{X: value * math.Cos(orientation), Y: value * math.Sin(orientation)}, orientation
}

func (pj *translationalJoint) Limit() Limit {
	return pj.limit
}

func (pj *translationalJoint) AlmostEquals(other Joint) bool {
	otherJ, ok := other.(*translationalJoint)
	return ok && limitsAlmostEqual(pj.limit, otherJ.limit)
}
