// Package control provides reference controllers and a registry that resolves
// them by the name a robot config asks for.
package control

import (
	"github.com/zeusync/robosim/internal/core/physics/geom"
	"github.com/zeusync/robosim/internal/core/sim"
)

// Differential maps a forward/turn request onto a left and right wheel.
// Positive turn is counter-clockwise.
type Differential struct {
	Left  string `json:"left" yaml:"left"`
	Right string `json:"right" yaml:"right"`
}

func (d Differential) Mix(forward, turn float64) sim.Commands {
	return sim.Commands{
		d.Left:  geom.Clamp(forward-turn, -1, 1),
		d.Right: geom.Clamp(forward+turn, -1, 1),
	}
}

// Constant always returns the same commands.
func Constant(cmds sim.Commands) sim.Controller {
	return sim.ControllerFunc(func(sim.Readings, float64) (sim.Commands, error) {
		out := make(sim.Commands, len(cmds))
		for k, v := range cmds {
			out[k] = v
		}
		return out, nil
	})
}

// Idle never commands anything; wheels keep whatever they had.
func Idle() sim.Controller {
	return sim.ControllerFunc(func(sim.Readings, float64) (sim.Commands, error) { return nil, nil })
}
