package sim

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/golang/snappy"

	"github.com/zeusync/robosim/internal/core/devices/actuator"
	"github.com/zeusync/robosim/internal/core/devices/sensor"
	"github.com/zeusync/robosim/internal/core/events/bus"
	"github.com/zeusync/robosim/internal/core/physics/geom"
)

type BodyState struct {
	Name            string    `json:"name"`
	Pose            geom.Pose `json:"pose"`
	LinearVelocity  geom.Vec2 `json:"lin_vel"`
	AngularVelocity float64   `json:"ang_vel"`
}

// State is a read-only view of the simulator after the last step.
type State struct {
	Time            float64      `json:"time"`
	Step            uint64       `json:"step"`
	Bodies          []BodyState  `json:"bodies"`
	Commands        Commands     `json:"commands"`
	Readings        Readings     `json:"readings"`
	Faulted         bool         `json:"faulted"`
	ControllerFault string       `json:"controller_fault,omitempty"`
	Warnings        []string     `json:"warnings,omitempty"`
	Robots          []RobotState `json:"robots"`
}

// RobotState is one robot's part of State.
type RobotState struct {
	Name            string    `json:"name"`
	Pose            geom.Pose `json:"pose"`
	Faulted         bool      `json:"faulted"`
	ControllerFault string    `json:"controller_fault,omitempty"`
}

// State reports Faulted and ControllerFault for the first faulted robot;
// Robots carries the per-robot detail.
func (s *Simulator) State() State {
	st := State{
		Time:     s.time,
		Step:     s.step,
		Bodies:   s.bodyStates(),
		Commands: s.commands.clone(),
		Readings: s.readings.clone(),
		Warnings: append([]string(nil), s.warnings...),
		Robots:   make([]RobotState, len(s.robots)),
	}
	if f := s.ControllerFault(); f != nil {
		st.Faulted = true
		st.ControllerFault = f.Error()
	}
	for i, r := range s.robots {
		st.Robots[i] = RobotState{Name: r.name(), Pose: r.pose(s.bodies), Faulted: r.fault != nil}
		if r.fault != nil {
			st.Robots[i].ControllerFault = r.fault.Error()
		}
	}
	return st
}

func (s *Simulator) bodyStates() []BodyState {
	out := make([]BodyState, len(s.bodies))
	for i, b := range s.bodies {
		out[i] = BodyState{Name: b.Name(), Pose: b.Pose, LinearVelocity: b.LinearVelocity, AngularVelocity: b.AngularVelocity}
	}
	return out
}

// Snapshot captures everything needed to resume the loaded scenario
// bit-for-bit: time, randomness, bodies, devices and controller state.
type Snapshot struct {
	World    string                    `json:"world"`
	Robots   []string                  `json:"robots"`
	Time     float64                   `json:"time"`
	Step     uint64                    `json:"step"`
	RNG      []byte                    `json:"rng"`
	Bodies   []BodyState               `json:"bodies"`
	Wheels   map[string]actuator.State `json:"wheels"`
	Sensors  map[string]sensor.State   `json:"sensors"`
	Commands Commands                  `json:"commands"`
	Readings Readings                  `json:"readings,omitempty"`

	// Controllers holds the state of stateful controllers by robot name.
	Controllers map[string][]byte `json:"controllers,omitempty"`
}

func (s *Simulator) Snapshot() (Snapshot, error) {
	if !s.loaded {
		return Snapshot{}, ErrNotLoaded
	}
	rngState, err := s.rng.state()
	if err != nil {
		return Snapshot{}, fmt.Errorf("capture rng: %w", err)
	}
	snap := Snapshot{
		World:    s.world.Name,
		Robots:   s.Robots(),
		Time:     s.time,
		Step:     s.step,
		RNG:      rngState,
		Bodies:   s.bodyStates(),
		Wheels:   make(map[string]actuator.State, len(s.wheels)),
		Sensors:  make(map[string]sensor.State, len(s.sensors)),
		Commands: s.commands.clone(),
		Readings: s.readings.clone(),
	}
	for _, w := range s.wheels {
		snap.Wheels[w.Name] = w.State()
	}
	for _, sn := range s.sensors {
		snap.Sensors[sn.Name] = sn.State()
	}
	for _, r := range s.robots {
		st, ok := r.controller.(Stateful)
		if !ok {
			continue
		}
		data, err := st.State()
		if err != nil {
			return Snapshot{}, fmt.Errorf("capture controller state of %s: %w", r.name(), err)
		}
		if snap.Controllers == nil {
			snap.Controllers = make(map[string][]byte)
		}
		snap.Controllers[r.name()] = data
	}
	return snap, nil
}

// ApplySnapshot restores snap. The snapshot is checked against the loaded
// scenario first; on any mismatch nothing is changed. Force accumulators and
// joint multipliers are cleared.
func (s *Simulator) ApplySnapshot(snap Snapshot) error {
	if !s.loaded {
		return ErrNotLoaded
	}
	if err := s.checkSnapshot(snap); err != nil {
		return err
	}
	restored := newRNG(0)
	if err := restored.restore(snap.RNG); err != nil {
		return fmt.Errorf("%w: restore rng: %w", ErrSnapshotMismatch, err)
	}
	for _, r := range s.robots {
		data, ok := snap.Controllers[r.name()]
		if !ok {
			continue
		}
		if st, stateful := r.controller.(Stateful); stateful {
			if err := st.RestoreState(data); err != nil {
				return fmt.Errorf("restore controller state of %s: %w", r.name(), err)
			}
		}
	}

	s.rng = restored
	s.time, s.step = snap.Time, snap.Step
	for i, bs := range snap.Bodies {
		b := s.bodies[i]
		b.SetState(bs.Pose, bs.LinearVelocity, bs.AngularVelocity)
		b.ClearForces()
	}
	for _, w := range s.wheels {
		w.Restore(snap.Wheels[w.Name])
	}
	for _, sn := range s.sensors {
		sn.Restore(snap.Sensors[sn.Name])
	}
	for _, j := range s.joints {
		j.Reset()
	}
	s.commands = make(Commands, len(s.wheels))
	for _, w := range s.wheels {
		s.commands[w.Name] = w.Command()
	}
	s.readings = snap.Readings.clone()
	if s.readings == nil {
		s.readings = Readings{}
	}
	s.warnings = nil
	s.publish(bus.TypeSnapshotApplied, snap.Step)
	return nil
}

func (s *Simulator) checkSnapshot(snap Snapshot) error {
	mismatch := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrSnapshotMismatch, fmt.Sprintf(format, args...))
	}
	if snap.World != s.world.Name || !slices.Equal(snap.Robots, s.Robots()) {
		return mismatch("snapshot of %s %v applied to %s %v", snap.World, snap.Robots, s.world.Name, s.Robots())
	}
	if !geom.IsFinite(snap.Time) || snap.Time < 0 {
		return mismatch("invalid time %v", snap.Time)
	}
	if len(snap.Bodies) != len(s.bodies) {
		return mismatch("%d bodies, scenario has %d", len(snap.Bodies), len(s.bodies))
	}
	for i, bs := range snap.Bodies {
		if bs.Name != s.bodies[i].Name() {
			return mismatch("body %d is %q, expected %q", i, bs.Name, s.bodies[i].Name())
		}
		if !bs.Pose.IsFinite() || !geom.Finite(bs.LinearVelocity) || !geom.IsFinite(bs.AngularVelocity) {
			return mismatch("body %q has non-finite state", bs.Name)
		}
	}
	if len(snap.Wheels) != len(s.wheels) || len(snap.Sensors) != len(s.sensors) {
		return mismatch("device count differs")
	}
	for _, w := range s.wheels {
		if _, ok := snap.Wheels[w.Name]; !ok {
			return mismatch("missing wheel %q", w.Name)
		}
	}
	for _, sn := range s.sensors {
		if _, ok := snap.Sensors[sn.Name]; !ok {
			return mismatch("missing sensor %q", sn.Name)
		}
	}
	return nil
}

// EncodeSnapshot serialises snap as snappy-compressed JSON.
func EncodeSnapshot(snap Snapshot) ([]byte, error) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return snappy.Encode(nil, raw), nil
}

func DecodeSnapshot(data []byte) (Snapshot, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return Snapshot{}, fmt.Errorf("decompress snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// Digest hashes time, step and every body's pose and velocity. Two runs with
// equal digests at the same step are bit-identical in body state.
func (s *Simulator) Digest() uint64 {
	buf := make([]byte, 0, 16+len(s.bodies)*48)
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(s.time))
	buf = binary.LittleEndian.AppendUint64(buf, s.step)
	for _, b := range s.bodies {
		for _, v := range []float64{b.Pose.X, b.Pose.Y, b.Pose.Theta, b.LinearVelocity[0], b.LinearVelocity[1], b.AngularVelocity} {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
		}
	}
	return xxhash.Sum64(buf)
}
