// Package sim owns the simulation loop: it wires bodies, joints, wheels and
// sensors built from a scenario and advances them one fixed step at a time.
package sim

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/zeusync/robosim/internal/core/config"
	"github.com/zeusync/robosim/internal/core/devices/actuator"
	"github.com/zeusync/robosim/internal/core/devices/sensor"
	"github.com/zeusync/robosim/internal/core/events/bus"
	"github.com/zeusync/robosim/internal/core/observability/log"
	"github.com/zeusync/robosim/internal/core/physics/body"
	"github.com/zeusync/robosim/internal/core/physics/geom"
	"github.com/zeusync/robosim/internal/core/physics/joint"
	"github.com/zeusync/robosim/internal/core/trace"
)

// arena indexes bodies by handle.
type arena []*body.Body

func (a arena) Body(h body.Handle) (*body.Body, bool) {
	if int(h) >= len(a) {
		return nil, false
	}
	return a[h], true
}

type pairKey [2]body.Handle

func orderedPair(a, b body.Handle) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}

// Simulator is not safe for concurrent use. Drive it from a single goroutine.
type Simulator struct {
	id       string
	logger   log.Log
	bus      bus.EventBus
	settings Settings

	loaded      bool
	world       config.World
	integration body.Settings
	timestep    float64
	stepLimit   float64

	bodies      arena
	byName      map[string]body.Handle
	joints      []*joint.Joint
	connected   map[pairKey]struct{}
	wheels      []*actuator.Wheel
	wheelByName map[string]*actuator.Wheel
	wheelGroups [][]*actuator.Wheel
	sensors     []*sensor.Sensor
	robots      []*robot
	robotByName map[string]*robot

	// primary drives the first robot unless bindings names it.
	primary  Controller
	bindings map[string]Controller

	commands Commands
	readings Readings
	warnings []string

	time float64
	step uint64
	rng  *rng

	tracing  bool
	recorder *trace.Recorder
}

func New(opts ...Option) *Simulator {
	s := &Simulator{
		id:       uuid.NewString(),
		logger:   log.NewNop(),
		settings: DefaultSettings(),
		rng:      newRNG(0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID identifies this simulator instance in logs and events.
func (s *Simulator) ID() string { return s.id }

func (s *Simulator) Loaded() bool { return s.loaded }

func (s *Simulator) Time() float64 { return s.time }

func (s *Simulator) StepIndex() uint64 { return s.step }

// Timestep is the world's default step length.
func (s *Simulator) Timestep() float64 { return s.timestep }

func (s *Simulator) Settings() Settings { return s.settings }

func (s *Simulator) World() config.World { return s.world }

// Robot returns the configuration of the first robot.
func (s *Simulator) Robot() config.Robot {
	if len(s.robots) == 0 {
		return config.Robot{}
	}
	return s.robots[0].config
}

// Robots lists robot names in scenario order.
func (s *Simulator) Robots() []string {
	out := make([]string, len(s.robots))
	for i, r := range s.robots {
		out[i] = r.name()
	}
	return out
}

func (s *Simulator) RobotConfig(name string) (config.Robot, bool) {
	r, ok := s.robotByName[name]
	if !ok {
		return config.Robot{}, false
	}
	return r.config, true
}

// Controller returns the controller of the first robot, or nil.
func (s *Simulator) Controller() Controller {
	if len(s.robots) == 0 {
		return s.primary
	}
	return s.robots[0].controller
}

// RobotController returns the controller bound to the named robot.
func (s *Simulator) RobotController(name string) (Controller, bool) {
	r, ok := s.robotByName[name]
	if !ok {
		return nil, false
	}
	return r.controller, true
}

// Body looks a body up by name.
func (s *Simulator) Body(name string) (*body.Body, bool) {
	h, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return s.bodies[h], true
}

func (s *Simulator) Wheel(name string) (*actuator.Wheel, bool) {
	w, ok := s.wheelByName[name]
	return w, ok
}

// Wheels returns the wheels in declaration order.
func (s *Simulator) Wheels() []*actuator.Wheel { return append([]*actuator.Wheel(nil), s.wheels...) }

// Sensors returns the sensors in declaration order.
func (s *Simulator) Sensors() []*sensor.Sensor { return append([]*sensor.Sensor(nil), s.sensors...) }

// RobotPose is the pose of the first robot's first body.
func (s *Simulator) RobotPose() geom.Pose {
	if len(s.robots) == 0 {
		return geom.Pose{}
	}
	return s.robots[0].pose(s.bodies)
}

// RobotPoseOf is the pose of the named robot's first body.
func (s *Simulator) RobotPoseOf(name string) (geom.Pose, bool) {
	r, ok := s.robotByName[name]
	if !ok {
		return geom.Pose{}, false
	}
	return r.pose(s.bodies), true
}

// Load replaces the current scenario with world and a single robot.
// On error the previous scenario stays in place.
func (s *Simulator) Load(world config.World, robot config.Robot, opts LoadOptions) error {
	return s.LoadRobots(world, []config.Robot{robot}, opts)
}

// LoadScenario loads every robot of sc into its world.
func (s *Simulator) LoadScenario(sc config.Scenario, opts LoadOptions) error {
	return s.LoadRobots(sc.World, sc.Fleet(), opts)
}

// LoadRobots replaces the current scenario with world and robots. A lone
// robot keeps its own body and device names; with several robots every name
// is prefixed with "<robot>/". On error the previous scenario stays in place.
func (s *Simulator) LoadRobots(world config.World, robots []config.Robot, opts LoadOptions) error {
	if len(robots) == 0 {
		return fmt.Errorf("%w: at least one robot is required", ErrConfig)
	}
	// Defaults are written into slice elements; keep the caller's documents untouched.
	world.Drawings = append([]config.Stroke(nil), world.Drawings...)
	world.ApplyDefaults()
	if err := world.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	robots = append([]config.Robot(nil), robots...)
	multi := len(robots) > 1
	names := make(map[string]struct{}, len(robots))
	for i := range robots {
		if multi && robots[i].Name == "" {
			robots[i].Name = fmt.Sprintf("robot_%d", i+1)
		}
		robots[i].ApplyDefaults()
		if err := robots[i].Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrConfig, err)
		}
		if _, dup := names[robots[i].Name]; dup {
			return fmt.Errorf("%w: duplicate robot name %q", ErrConfig, robots[i].Name)
		}
		names[robots[i].Name] = struct{}{}
	}

	env := world
	if opts.IgnoreTerrain {
		env.Terrain = nil
	}
	statics, err := env.StaticBodies()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}

	next := &Simulator{
		byName:      make(map[string]body.Handle),
		wheelByName: make(map[string]*actuator.Wheel),
		robotByName: make(map[string]*robot, len(robots)),
		connected:   make(map[pairKey]struct{}),
	}
	add := func(spec body.Spec) (body.Handle, error) {
		if _, dup := next.byName[spec.Name]; dup {
			return 0, fmt.Errorf("%w: duplicate body name %q", ErrConfig, spec.Name)
		}
		h := body.Handle(len(next.bodies))
		b, err := body.New(h, spec)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrConfig, err)
		}
		next.bodies = append(next.bodies, b)
		next.byName[spec.Name] = h
		return h, nil
	}

	for _, spec := range statics {
		if _, err := add(spec); err != nil {
			return err
		}
	}
	for i, cfg := range robots {
		prefix := ""
		if multi {
			prefix = cfg.Name + "/"
		}
		r, err := buildRobot(next, cfg, prefix, add)
		if err != nil {
			return err
		}
		r.controller = s.binding(cfg.Name, i == 0)
		next.robots = append(next.robots, r)
		next.robotByName[cfg.Name] = r
		next.joints = append(next.joints, r.joints...)
		next.sensors = append(next.sensors, r.sensors...)
		for _, w := range r.wheels {
			next.wheels = append(next.wheels, w)
			next.wheelByName[w.Name] = w
		}
	}

	integration := s.settings.Integration
	integration.Gravity = world.Gravity.Vec()
	if opts.TopDown {
		integration.Gravity = geom.Vec2{}
	}
	stepLimit := s.settings.MaxStepTranslation
	if multi && stepLimit > multiRobotStepTranslation {
		stepLimit = multiRobotStepTranslation
	}

	s.world = world
	s.integration = integration
	s.timestep = world.Timestep
	s.stepLimit = stepLimit
	s.bodies, s.byName = next.bodies, next.byName
	s.joints, s.connected = next.joints, next.connected
	s.wheels, s.wheelByName, s.sensors = next.wheels, next.wheelByName, next.sensors
	s.wheelGroups = groupWheels(next.wheels)
	s.robots, s.robotByName = next.robots, next.robotByName
	s.loaded = true
	s.resetRuntime()
	for _, r := range s.robots {
		if st, ok := r.controller.(Stateful); ok {
			st.Reset()
		}
	}

	s.warnings = s.spawnOverlaps()
	for _, w := range s.warnings {
		s.logger.Warn(w, log.String("sim", s.id))
	}
	s.logger.Info("scenario loaded",
		log.String("sim", s.id),
		log.String("world", world.Name),
		log.Any("robots", s.Robots()),
		log.Int("bodies", len(s.bodies)),
		log.Int("joints", len(s.joints)),
		log.Int("wheels", len(s.wheels)),
		log.Int("sensors", len(s.sensors)),
		log.Int64("seed", world.Seed),
	)
	s.publish(bus.TypeLoaded, map[string]any{"world": world.Name, "robots": s.Robots(), "bodies": len(s.bodies)})
	return nil
}

// binding resolves the controller for a robot being loaded.
func (s *Simulator) binding(name string, first bool) Controller {
	if c, ok := s.bindings[name]; ok {
		return c
	}
	if first {
		return s.primary
	}
	return nil
}

// resetRuntime rewinds time, randomness and device state of the loaded scenario.
func (s *Simulator) resetRuntime() {
	s.time, s.step = 0, 0
	s.rng = newRNG(s.world.Seed)
	s.readings = Readings{}
	s.commands = make(Commands, len(s.wheels))
	for _, w := range s.wheels {
		w.Reset()
		s.commands[w.Name] = 0
	}
	for _, sn := range s.sensors {
		sn.Reset()
	}
	for _, j := range s.joints {
		j.Reset()
	}
	for _, r := range s.robots {
		r.fault = nil
	}
	if s.tracing {
		s.recorder = trace.NewRecorder(s.world.Name, s.world.Seed)
	}
}

// spawnOverlaps lists robot bodies that start inside solid scenery or inside
// another robot, and robots spawned on top of each other.
func (s *Simulator) spawnOverlaps() []string {
	var out []string
	overlap := func(b, other *body.Body) {
		if !other.Collides() {
			return
		}
		if m, ok := geom.Intersect(b.Shape(), b.Pose, other.Shape(), other.Pose); ok {
			out = append(out, fmt.Sprintf("spawn overlap between %s and %s (depth %.3f m)", b.Name(), other.Name(), m.Penetration))
		}
	}
	for i, r := range s.robots {
		for _, rb := range r.bodies {
			b := s.bodies[rb.handle]
			if !b.Collides() {
				continue
			}
			for _, other := range s.bodies {
				if other.Static() {
					overlap(b, other)
				}
			}
			for _, o := range s.robots[i+1:] {
				for _, ob := range o.bodies {
					overlap(b, s.bodies[ob.handle])
				}
			}
		}
	}
	for i, r := range s.robots {
		for _, o := range s.robots[i+1:] {
			if d := geom.Distance(r.config.SpawnPose.Position(), o.config.SpawnPose.Position()); d < minSpawnSeparation {
				out = append(out, fmt.Sprintf("robots %s and %s spawn %.3f m apart", r.name(), o.name(), d))
			}
		}
	}
	return out
}

// collides filters broad-phase pairs: joint-connected bodies never collide.
func (s *Simulator) collides(a, b *body.Body) bool {
	_, linked := s.connected[orderedPair(a.Handle(), b.Handle())]
	return !linked
}

func (s *Simulator) lookup(name string) (*robot, error) {
	if !s.loaded {
		return nil, ErrNotLoaded
	}
	r, ok := s.robotByName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRobot, name)
	}
	return r, nil
}

// Reposition moves the first robot. See RepositionRobot.
func (s *Simulator) Reposition(pose geom.Pose, asSpawn bool) error {
	if !s.loaded {
		return ErrNotLoaded
	}
	return s.RepositionRobot(s.robots[0].name(), pose, asSpawn)
}

// RepositionRobot moves every body of the named robot to pose∘local, zeroes
// velocities and clears the robot's joint multipliers. With asSpawn the pose
// also becomes the robot's new spawn.
func (s *Simulator) RepositionRobot(name string, pose geom.Pose, asSpawn bool) error {
	r, err := s.lookup(name)
	if err != nil {
		return err
	}
	if !pose.IsFinite() {
		return fmt.Errorf("%w: reposition pose must be finite", ErrConfig)
	}
	r.place(s.bodies, pose)
	if asSpawn {
		r.config.SpawnPose = pose
	}
	return nil
}

// ResetToSpawn returns every robot to its spawn pose.
func (s *Simulator) ResetToSpawn() error {
	if !s.loaded {
		return ErrNotLoaded
	}
	for _, r := range s.robots {
		if err := s.ResetRobotToSpawn(r.name()); err != nil {
			return err
		}
	}
	return nil
}

// ResetRobotToSpawn returns the named robot to its spawn pose.
func (s *Simulator) ResetRobotToSpawn(name string) error {
	r, err := s.lookup(name)
	if err != nil {
		return err
	}
	r.place(s.bodies, r.config.SpawnPose)
	s.publish(bus.TypeReset, map[string]any{"robot": name, "pose": r.config.SpawnPose})
	return nil
}

// Rebind swaps the controller of the first robot; it also becomes the
// default for later loads. Stateful controllers are reset unless
// opts.KeepState carries the old controller's state over. Rebinding clears
// the robot's controller fault.
func (s *Simulator) Rebind(c Controller, opts RebindOptions) error {
	if !s.loaded {
		if err := transfer(s.primary, c, opts); err != nil {
			return err
		}
		s.primary = c
		return nil
	}
	r := s.robots[0]
	if err := transfer(r.controller, c, opts); err != nil {
		return err
	}
	delete(s.bindings, r.name())
	s.primary = c
	r.controller, r.fault = c, nil
	return nil
}

// RebindRobot swaps the controller of the named robot and keeps the binding
// for later loads of a robot with that name.
func (s *Simulator) RebindRobot(name string, c Controller, opts RebindOptions) error {
	r, err := s.lookup(name)
	if err != nil {
		return err
	}
	if err := transfer(r.controller, c, opts); err != nil {
		return err
	}
	if s.bindings == nil {
		s.bindings = make(map[string]Controller)
	}
	s.bindings[name] = c
	r.controller, r.fault = c, nil
	return nil
}

func transfer(prev, c Controller, opts RebindOptions) error {
	next, nextStateful := c.(Stateful)
	old, oldStateful := prev.(Stateful)
	switch {
	case opts.KeepState && nextStateful && oldStateful:
		data, err := old.State()
		if err != nil {
			return fmt.Errorf("capture controller state: %w", err)
		}
		if err := next.RestoreState(data); err != nil {
			return fmt.Errorf("transfer controller state: %w", err)
		}
	case nextStateful:
		next.Reset()
	}
	return nil
}

// ControllerFault returns the first active controller fault in robot order, or nil.
func (s *Simulator) ControllerFault() *ControllerFault {
	for _, r := range s.robots {
		if r.fault != nil {
			return r.fault
		}
	}
	return nil
}

// RobotFault returns the named robot's active controller fault, or nil.
func (s *Simulator) RobotFault(name string) *ControllerFault {
	if r, ok := s.robotByName[name]; ok {
		return r.fault
	}
	return nil
}

// ClearControllerFault re-enables every faulted controller.
func (s *Simulator) ClearControllerFault() {
	for _, r := range s.robots {
		r.fault = nil
	}
}

// ClearRobotFault re-enables the named robot's controller.
func (s *Simulator) ClearRobotFault(name string) error {
	r, err := s.lookup(name)
	if err != nil {
		return err
	}
	r.fault = nil
	return nil
}

// EnableTraceLogging starts a fresh trace, or stops recording while keeping what was captured.
func (s *Simulator) EnableTraceLogging(enabled bool) {
	s.tracing = enabled
	if enabled {
		s.recorder = trace.NewRecorder(s.world.Name, s.world.Seed)
	}
}

// TraceLog returns a copy of the captured trace.
func (s *Simulator) TraceLog() (trace.Log, error) {
	if s.recorder == nil {
		return trace.Log{}, ErrNoTrace
	}
	return s.recorder.Log(), nil
}

// SetTraceSink streams every recorded step to fn while tracing is enabled.
func (s *Simulator) SetTraceSink(fn func(trace.Record)) error {
	if s.recorder == nil {
		return ErrNoTrace
	}
	s.recorder.SetSink(fn)
	return nil
}

// SaveTraceLog writes the captured trace; the encoding follows the file extension.
func (s *Simulator) SaveTraceLog(path string) error {
	l, err := s.TraceLog()
	if err != nil {
		return err
	}
	return trace.Save(path, l)
}

func (s *Simulator) publish(eventType string, data any) {
	if s.bus == nil || !s.bus.HasSubscribers(eventType) {
		return
	}
	meta := map[string]any{"step": s.step, "time": s.time}
	if err := s.bus.Publish(bus.NewEvent(eventType, s.id, data, meta)); err != nil {
		s.logger.Debug("event handler failed", log.String("type", eventType), log.Error(err))
	}
}
