package sim

import (
	"fmt"
	"strings"

	"github.com/zeusync/robosim/internal/core/config"
	"github.com/zeusync/robosim/internal/core/devices/actuator"
	"github.com/zeusync/robosim/internal/core/devices/sensor"
	"github.com/zeusync/robosim/internal/core/physics/body"
	"github.com/zeusync/robosim/internal/core/physics/geom"
	"github.com/zeusync/robosim/internal/core/physics/joint"
)

// minSpawnSeparation is the spawn distance below which two robots are reported as stacked.
const minSpawnSeparation = 0.05

// robotBody remembers where a robot body sits relative to the spawn pose.
type robotBody struct {
	handle body.Handle
	local  geom.Pose
}

// robot is one robot placed in the world. Its bodies and devices carry
// world names (prefix + local name); its controller only sees local names.
type robot struct {
	config config.Robot
	prefix string

	bodies  []robotBody
	joints  []*joint.Joint
	wheels  []*actuator.Wheel
	local   map[string]*actuator.Wheel
	sensors []*sensor.Sensor

	controller Controller
	fault      *ControllerFault
}

func (r *robot) name() string { return r.config.Name }

func (r *robot) qualify(name string) string { return r.prefix + name }

func (r *robot) localName(name string) string { return strings.TrimPrefix(name, r.prefix) }

// readings picks this robot's sensors out of all, keyed by local name.
func (r *robot) readings(all Readings) Readings {
	out := make(Readings, len(r.sensors))
	for _, sn := range r.sensors {
		if v, ok := all[sn.Name]; ok {
			out[r.localName(sn.Name)] = v
		}
	}
	return out
}

// commands returns the robot's current wheel commands keyed by local name.
func (r *robot) commands() Commands {
	out := make(Commands, len(r.wheels))
	for _, w := range r.wheels {
		out[r.localName(w.Name)] = w.Command()
	}
	return out
}

func (r *robot) pose(bodies arena) geom.Pose {
	if len(r.bodies) == 0 {
		return geom.Pose{}
	}
	return bodies[r.bodies[0].handle].Pose
}

// place moves every body of the robot to pose∘local and stops it.
func (r *robot) place(bodies arena, pose geom.Pose) {
	for _, rb := range r.bodies {
		b := bodies[rb.handle]
		b.SetState(pose.Compose(rb.local), geom.Vec2{}, 0)
		b.ClearForces()
	}
	for _, j := range r.joints {
		j.Reset()
	}
}

// buildRobot instantiates cfg into the scenario being assembled in next.
// Every name is qualified with prefix.
func buildRobot(next *Simulator, cfg config.Robot, prefix string, add func(body.Spec) (body.Handle, error)) (*robot, error) {
	r := &robot{config: cfg, prefix: prefix, local: make(map[string]*actuator.Wheel)}

	for _, bc := range cfg.Bodies {
		spec, err := bc.Spec(cfg.SpawnPose)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfig, err)
		}
		spec.Name = r.qualify(spec.Name)
		h, err := add(spec)
		if err != nil {
			return nil, err
		}
		r.bodies = append(r.bodies, robotBody{handle: h, local: bc.Pose})
	}

	for _, jc := range cfg.Joints {
		j := &joint.Joint{
			Name:           r.qualify(jc.Name),
			BodyA:          next.byName[r.qualify(jc.Parent)],
			BodyB:          next.byName[r.qualify(jc.Child)],
			AnchorA:        jc.AnchorParent.Vec(),
			AnchorB:        jc.AnchorChild.Vec(),
			TargetDistance: jc.TargetDistance,
			Compliance:     jc.Compliance,
		}
		r.joints = append(r.joints, j)
		next.connected[orderedPair(j.BodyA, j.BodyB)] = struct{}{}
	}

	perBody := make(map[body.Handle]int)
	for _, ac := range cfg.Actuators {
		kind, params, err := ac.Resolve()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfig, err)
		}
		h := next.byName[r.qualify(ac.Body)]
		if next.bodies[h].Static() {
			return nil, fmt.Errorf("%w: actuator %q is mounted on static body %q", ErrConfig, ac.Name, ac.Body)
		}
		w := actuator.NewWheel(r.qualify(ac.Name), h, ac.MountPose, kind, params)
		r.wheels = append(r.wheels, w)
		r.local[ac.Name] = w
		perBody[h]++
	}
	for _, w := range r.wheels {
		if w.Params.WheelCount == 0 {
			w.Params.WheelCount = perBody[w.Body]
		}
	}

	for _, sc := range cfg.Sensors {
		kind, params, err := sc.Resolve()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfig, err)
		}
		r.sensors = append(r.sensors, sensor.New(r.qualify(sc.Name), kind, next.byName[r.qualify(sc.Body)], sc.MountPose, params))
	}
	return r, nil
}

// groupWheels batches wheels by parent body, in declaration order.
func groupWheels(wheels []*actuator.Wheel) [][]*actuator.Wheel {
	var groups [][]*actuator.Wheel
	index := make(map[body.Handle]int)
	for _, w := range wheels {
		i, ok := index[w.Body]
		if !ok {
			i = len(groups)
			index[w.Body] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], w)
	}
	return groups
}
