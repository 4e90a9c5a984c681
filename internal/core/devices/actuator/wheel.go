package actuator

import (
	"math"

	"github.com/zeusync/robosim/internal/core/physics/body"
	"github.com/zeusync/robosim/internal/core/physics/geom"
)

// Wheel is a motor mounted on a body. Its command is a normalized value in [-1, 1].
type Wheel struct {
	Name   string
	Body   body.Handle
	Mount  geom.Pose
	Kind   Kind
	Params Params

	command      float64
	angularSpeed float64
	last         Report
}

// State is the internal wheel state carried through snapshots.
type State struct {
	Command      float64 `json:"command"`
	AngularSpeed float64 `json:"angular_speed"`
}

func NewWheel(name string, h body.Handle, mount geom.Pose, kind Kind, params Params) *Wheel {
	return &Wheel{Name: name, Body: h, Mount: mount, Kind: kind, Params: params}
}

// SetCommand clamps the command into [-1, 1]; non-finite commands become 0.
func (w *Wheel) SetCommand(c float64) {
	if !geom.IsFinite(c) {
		c = 0
	}
	w.command = geom.Clamp(c, -1, 1)
}

func (w *Wheel) Command() float64      { return w.command }
func (w *Wheel) AngularSpeed() float64 { return w.angularSpeed }
func (w *Wheel) LastReport() Report    { return w.last }

func (w *Wheel) State() State {
	return State{Command: w.command, AngularSpeed: w.angularSpeed}
}

func (w *Wheel) Restore(s State) {
	w.SetCommand(s.Command)
	w.angularSpeed = s.AngularSpeed
	w.last = Report{}
}

// Reset stops the wheel and clears its command.
func (w *Wheel) Reset() {
	w.command, w.angularSpeed = 0, 0
	w.last = Report{}
}

// NormalLoad is the virtual downward force carried by this wheel.
func (w *Wheel) NormalLoad(b *body.Body) float64 {
	if w.Params.NormalForce != nil {
		return *w.Params.NormalForce
	}
	return b.Mass() * w.Params.GEquiv / float64(w.Params.wheelCount())
}

// Step applies one step of traction impulses to the parent body b.
func (w *Wheel) Step(b *body.Body, step uint64, dt float64) Report {
	return StepAll(b, []*Wheel{w}, step, dt)[0]
}

// StepAll advances every wheel mounted on b as one batch. All wheels read the
// body velocity from before any of them pushed and their impulses land
// together, so the result does not depend on the order of wheels.
func StepAll(b *body.Body, wheels []*Wheel, step uint64, dt float64) []Report {
	reports := make([]Report, len(wheels))
	if len(wheels) == 0 {
		return reports
	}
	if b == nil || b.Static() || !(dt > 0) {
		for i, w := range wheels {
			w.last = Report{Step: step, Command: w.command}
			reports[i] = w.last
		}
		return reports
	}

	share := 1 / float64(len(wheels))
	impulses := make([]Impulse, len(wheels))
	//1.- Evaluate every contact against the same body state.
	for i, w := range wheels {
		reports[i], impulses[i] = w.evaluate(b, share, dt)
	}
	//2.- Apply the whole batch.
	for _, imp := range impulses {
		imp.Apply(b)
	}
	//3.- Wheel speeds react to the ground speed the batch produced.
	for i, w := range wheels {
		r := &reports[i]
		r.ContactSpeedAfter = b.PointVelocity(impulses[i].Point).Dot(impulses[i].Forward)
		w.settle(*r, dt)
		r.Step = step
		r.Command = w.command
		w.last = *r
	}
	return reports
}

func (w *Wheel) radius() float64 { return math.Max(w.Params.WheelRadius, 1e-6) }

func (w *Wheel) evaluate(b *body.Body, share, dt float64) (Report, Impulse) {
	p := w.Params
	mount := b.Pose.Compose(w.Mount)
	contact := Contact{
		MuLong:         p.MuLong,
		MuLat:          p.MuLat,
		NormalLoad:     w.NormalLoad(b),
		LateralDamping: p.LateralDamping,
		Share:          share,
	}
	radius := w.radius()

	switch w.Kind {
	case KindWheelTorque:
		driveCap := math.Abs(p.MaxTorque*p.GearRatio/radius) * dt
		return EvaluateTraction(b, mount.Position(), mount.Forward(), w.angularSpeed*radius, driveCap, contact, dt)
	default:
		blend := math.Min(1, dt/p.responseTime())
		w.angularSpeed += (w.command*p.MaxWheelOmega - w.angularSpeed) * blend
		return EvaluateTraction(b, mount.Position(), mount.Forward(), w.angularSpeed*radius, math.Abs(p.MaxForce)*dt, contact, dt)
	}
}

func (w *Wheel) settle(r Report, dt float64) {
	p := w.Params
	radius := w.radius()
	switch w.Kind {
	case KindWheelTorque:
		gear := math.Max(p.GearRatio, 1e-6)
		reaction := (r.AppliedLongitudinalImpulse / dt) * radius / gear
		net := p.MaxTorque*w.command - reaction
		w.angularSpeed += net / math.Max(p.MotorInertia, 1e-6) * dt
		w.angularSpeed = geom.Clamp(w.angularSpeed, -maxTorqueOmega, maxTorqueOmega)
		w.relax(r, radius, torqueModeBlend)
	default:
		w.relax(r, radius, speedModeBlend)
	}
}

// relax pulls the wheel speed towards the ground speed in proportion to the grip it had.
func (w *Wheel) relax(r Report, radius, gain float64) {
	k := gain * r.TractionRatio()
	ground := r.ContactSpeedAfter / radius
	w.angularSpeed = w.angularSpeed*(1-k) + ground*k
}
