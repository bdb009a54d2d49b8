// Package motionplan builds simple joint-space motion plans for planar chains:
// linear interpolation between configurations and pick-and-place sequencing on top
// of an inverse kinematics solver.
package motionplan

import (
	"github.com/armlab/planarkin/kinchain"
)

// Plan is an ordered sequence of joint configurations for one chain. Consumers
// (animation, hardware) step through Trajectory in order; the plan itself never
// touches the chain.
type Plan struct {
	Trajectory [][]kinchain.Input
}

// Append extends the plan with the given configurations.
func (p *Plan) Append(path [][]kinchain.Input) {
	p.Trajectory = append(p.Trajectory, path...)
}

// Interpolate returns steps configurations evenly spaced from from to to, both
// endpoints included. Fewer than two steps collapse to just the endpoint.
func Interpolate(from, to []kinchain.Input, steps int) [][]kinchain.Input {
	if steps < 2 {
		return [][]kinchain.Input{to}
	}
	path := make([][]kinchain.Input, 0, steps)
	for i := 0; i < steps; i++ {
		t := float64(i) / float64(steps-1)
		step := make([]kinchain.Input, len(from))
		for j, start := range from {
			step[j] = kinchain.Input{Value: start.Value + t*(to[j].Value-start.Value)}
		}
		path = append(path, step)
	}
	return path
}
