package kinchain

import "github.com/pkg/errors"

// OOBErrString is a string that all out-of-bounds errors contain, so that they can be
// checked for distinct from other errors. Forward kinematics is still computed for
// out-of-bounds inputs; callers that only care about geometry may ignore these.
const OOBErrString = "input out of bounds"

// NewIncorrectDoFError returns an error describing a joint-value slice whose length does
// not match the chain's degrees of freedom.
func NewIncorrectDoFError(actual, expected int) error {
	return errors.Errorf("number of inputs does not match chain DoF, expected %d but got %d", expected, actual)
}

// NewJointOutOfRangeError returns an error for a joint variable outside its declared range.
func NewJointOutOfRangeError(joint int, value float64, limit Limit) error {
	return errors.Errorf("joint %d value %.5f %s [%.5f, %.5f]", joint, value, OOBErrString, limit.Min, limit.Max)
}
