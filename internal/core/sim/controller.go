package sim

import "github.com/zeusync/robosim/internal/core/devices/sensor"

// Readings maps sensor names to their latest outputs.
type Readings map[string]sensor.Reading

// Commands maps wheel names to normalized commands in [-1, 1].
// Wheels missing from the map keep their previous command.
type Commands map[string]float64

// Controller turns sensor readings into wheel commands once per step.
type Controller interface {
	Step(readings Readings, dt float64) (Commands, error)
}

type ControllerFunc func(readings Readings, dt float64) (Commands, error)

func (f ControllerFunc) Step(readings Readings, dt float64) (Commands, error) { return f(readings, dt) }

// Stateful controllers can have their state captured in snapshots and carried across rebinds.
type Stateful interface {
	Controller
	State() ([]byte, error)
	RestoreState(data []byte) error
	Reset()
}

func (r Readings) clone() Readings {
	if r == nil {
		return nil
	}
	out := make(Readings, len(r))
	for k, v := range r {
		out[k] = v.Clone()
	}
	return out
}

func (c Commands) clone() Commands {
	if c == nil {
		return nil
	}
	out := make(Commands, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}
