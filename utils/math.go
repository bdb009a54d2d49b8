// Package utils contains small math helpers shared by the kinematics packages.
package utils

import (
	"math"
	"math/rand"
)

// DegToRad converts degrees to radians.
func DegToRad(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(radians float64) float64 {
	return radians * 180 / math.Pi
}

// Square is faster than math.Pow(x, 2).
func Square(n float64) float64 {
	return n * n
}

// Float64AlmostEqual determines if two float64s are within a given tolerance of each other.
func Float64AlmostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) < tol
}

// SampleRandomIntRange samples a random integer within a range given by [min, max]
// using the given rand.Rand.
func SampleRandomIntRange(min, max int, r *rand.Rand) int {
	return r.Intn(max-min+1) + min
}
