package ik

import (
	"github.com/golang/geo/r2"

	"github.com/armlab/planarkin/kinchain"
	"github.com/armlab/planarkin/utils"
)

// State is a snapshot of a chain mid-solve: a configuration and the end effector
// position it produces.
type State struct {
	Position      r2.Point
	Configuration []kinchain.Input
}

// StateMetric are functions which, given a State, produce some score. Lower is better.
// The solver descends on a metric to converge upon a goal position.
type StateMetric func(*State) float64

// NewSquaredNormMetric returns the default metric: squared euclidean distance between
// the end effector and the goal.
func NewSquaredNormMetric(goal r2.Point) StateMetric {
	return func(state *State) float64 {
		return utils.Square(state.Position.Sub(goal).Norm())
	}
}

// NewNormMetric returns plain euclidean distance between the end effector and the
// goal. Its gradient is steeper than the squared metric near the goal, which some
// chains converge on faster, at the cost of being non-smooth at zero.
func NewNormMetric(goal r2.Point) StateMetric {
	return func(state *State) float64 {
		return state.Position.Sub(goal).Norm()
	}
}

// CombineMetrics will take a variable number of metrics and return a new metric
// summing their scores.
func CombineMetrics(metrics ...StateMetric) StateMetric {
	return func(state *State) float64 {
		dist := 0.
		for _, metric := range metrics {
			dist += metric(state)
		}
		return dist
	}
}
