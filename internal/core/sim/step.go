package sim

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/zeusync/robosim/internal/core/devices/actuator"
	"github.com/zeusync/robosim/internal/core/events/bus"
	"github.com/zeusync/robosim/internal/core/observability/log"
	"github.com/zeusync/robosim/internal/core/physics/body"
	"github.com/zeusync/robosim/internal/core/physics/contact"
	"github.com/zeusync/robosim/internal/core/physics/geom"
	"github.com/zeusync/robosim/internal/core/physics/joint"
	"github.com/zeusync/robosim/internal/core/trace"
)

// StageStepClamp marks faults raised by the per-step translation check.
const StageStepClamp = "step_clamp"

// StepReport summarises one call to Step.
type StepReport struct {
	Step     uint64       `json:"step"`
	Time     float64      `json:"time"`
	DT       float64      `json:"dt"`
	Contacts int          `json:"contacts"`
	Faults   []body.Fault `json:"faults,omitempty"`
	// ControllerFault is the first fault raised on this step, in robot order.
	ControllerFault *ControllerFault `json:"-"`
	Warnings        []string         `json:"warnings,omitempty"`
	// Err is ErrNotLoaded when nothing was simulated.
	Err error `json:"-"`
}

// Step advances the world by exactly one step. A dt that is not positive and
// finite falls back to the world timestep. Step never panics on controller
// misbehaviour and always returns a report.
func (s *Simulator) Step(dt float64) StepReport {
	if !s.loaded {
		return StepReport{Err: ErrNotLoaded}
	}
	if !(dt > 0) || math.IsInf(dt, 0) {
		dt = s.timestep
	}

	report := StepReport{Step: s.step, Time: s.time, DT: dt}
	s.warnings = s.warnings[:0]
	prev := make([]geom.Pose, len(s.bodies))
	for i, b := range s.bodies {
		prev[i] = b.Pose
	}

	//1.- Sensors see the world as it was at the end of the previous step.
	readings := s.sampleSensors(dt)

	//2.- Each controller decides; failures keep that robot's previous commands.
	for _, r := range s.robots {
		if f := s.tickController(r, r.readings(readings), dt); f != nil && report.ControllerFault == nil {
			report.ControllerFault = f
		}
	}

	//3.- Wheels push on their bodies through traction impulses, one batch per body.
	for _, group := range s.wheelGroups {
		actuator.StepAll(s.bodies[group[0].Body], group, s.step, dt)
	}

	//4.- Integrate, then enforce joints and contacts.
	for _, b := range s.bodies {
		report.Faults = append(report.Faults, body.Integrate(b, s.integration, dt)...)
	}
	joint.Solve(s.joints, s.bodies, s.settings.Joints, dt)
	cr := contact.Solve(contact.BroadPhase(s.bodies, s.collides), s.settings.Contacts)
	report.Contacts = len(cr.Contacts)
	report.Faults = append(report.Faults, cr.Faults...)

	//5.- Catch anything the solvers could not keep sane.
	report.Faults = append(report.Faults, s.clampSteps(prev, dt)...)
	report.Warnings = append([]string(nil), s.warnings...)

	if s.tracing && s.recorder != nil {
		s.recorder.Append(s.traceRecord(dt))
	}

	s.time += dt
	s.step++
	s.report(report)
	return report
}

func (s *Simulator) sampleSensors(dt float64) Readings {
	readings := make(Readings, len(s.sensors))
	for _, sn := range s.sensors {
		readings[sn.Name] = sn.Sample(s.time, dt, s.bodies[sn.Body], s.bodies, s.rng)
	}
	s.readings = readings
	return readings.clone()
}

// tickController runs the robot's controller and applies its commands. It
// returns the fault raised on this step, if any.
func (s *Simulator) tickController(r *robot, readings Readings, dt float64) *ControllerFault {
	if r.controller == nil || r.fault != nil {
		return nil
	}
	cmds, err := s.callController(r, readings, dt)
	if err == nil {
		err = validateCommands(r, cmds)
	}
	if err != nil {
		var fault *ControllerFault
		if !errors.As(err, &fault) {
			fault = &ControllerFault{Step: s.step, Err: err}
		}
		fault.Robot = r.name()
		r.fault = fault
		s.logger.Error("controller fault",
			log.String("sim", s.id),
			log.String("robot", r.name()),
			log.Uint64("step", s.step),
			log.Error(fault),
		)
		s.publish(bus.TypeControllerFault, fault)
		return fault
	}

	for name, v := range cmds {
		w := r.local[name]
		w.SetCommand(v)
		s.commands[w.Name] = w.Command()
	}
	return nil
}

func (s *Simulator) callController(r *robot, readings Readings, dt float64) (cmds Commands, err error) {
	defer func() {
		if p := recover(); p != nil {
			cmds = nil
			err = &ControllerFault{Step: s.step, Panic: p, Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	return r.controller.Step(readings, dt)
}

// validateCommands rejects the whole batch on an unknown wheel or a non-finite value.
func validateCommands(r *robot, cmds Commands) error {
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := r.local[name]; !ok {
			return fmt.Errorf("command for unknown wheel %q", name)
		}
		if !geom.IsFinite(cmds[name]) {
			return fmt.Errorf("non-finite command %v for wheel %q", cmds[name], name)
		}
	}
	return nil
}

// clampSteps limits per-step translation of dynamic bodies and reverts
// non-finite poses to where the body started the step.
func (s *Simulator) clampSteps(prev []geom.Pose, dt float64) []body.Fault {
	var faults []body.Fault
	limit := s.stepLimit
	for i, b := range s.bodies {
		if b.Static() {
			continue
		}
		p := prev[i]
		if !b.Pose.IsFinite() {
			b.SetState(p, b.LinearVelocity, b.AngularVelocity)
			faults = append(faults, body.Fault{Body: b.Handle(), Name: b.Name(), Stage: StageStepClamp, Detail: "non-finite pose reverted"})
			continue
		}
		if limit <= 0 {
			continue
		}
		d := b.Pose.Position().Sub(p.Position())
		dist := d.Len()
		if dist <= limit {
			continue
		}
		scaled := p.Position().Add(d.Mul(limit / dist))
		b.Pose = geom.NewPose(scaled[0], scaled[1], b.Pose.Theta)
		s.warnings = append(s.warnings, fmt.Sprintf("%s: large step %.3f m (dt=%.4f) clamped", b.Name(), dist, dt))
	}
	return faults
}

func (s *Simulator) traceRecord(dt float64) trace.Record {
	rec := trace.Record{
		Step:      s.step,
		Time:      s.time,
		DT:        dt,
		RobotPose: s.RobotPose(),
		Motors:    make(map[string]trace.Motor, len(s.wheels)),
		Bodies:    make(map[string]trace.Body, len(s.bodies)),
		Robots:    make(map[string]trace.Robot, len(s.robots)),
		Sensors:   s.readings.clone(),
		Warnings:  append([]string(nil), s.warnings...),
	}
	for _, w := range s.wheels {
		r := w.LastReport()
		rec.Motors[w.Name] = trace.Motor{
			Report:            r,
			LongitudinalForce: r.AppliedLongitudinalImpulse / dt,
			LateralForce:      r.AppliedLateralImpulse / dt,
		}
	}
	for _, b := range s.bodies {
		if b.Static() {
			continue
		}
		rec.Bodies[b.Name()] = trace.Body{Pose: b.Pose, LinearVelocity: b.LinearVelocity, AngularVelocity: b.AngularVelocity}
	}
	for _, r := range s.robots {
		rr := trace.Robot{Pose: r.pose(s.bodies), Commands: r.commands()}
		if r.fault != nil {
			rr.ControllerFault = r.fault.Error()
		}
		rec.Robots[r.name()] = rr
	}
	if f := s.ControllerFault(); f != nil {
		rec.ControllerFault = f.Error()
	}
	return rec
}

// report logs and publishes what happened during a step.
func (s *Simulator) report(r StepReport) {
	for _, f := range r.Faults {
		s.logger.Warn("numerical fault",
			log.String("sim", s.id),
			log.Uint64("step", r.Step),
			log.String("body", f.Name),
			log.String("stage", f.Stage),
			log.String("detail", f.Detail),
		)
		s.publish(bus.TypeNumericalFault, f)
	}
	for _, w := range r.Warnings {
		s.logger.Warn(w, log.String("sim", s.id), log.Uint64("step", r.Step))
		s.publish(bus.TypeWarning, w)
	}
	s.publish(bus.TypeStep, r)
}
