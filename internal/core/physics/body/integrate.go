package body

import "github.com/zeusync/robosim/internal/core/physics/geom"

const StageIntegrate = "integrate"

// Settings are the world-wide integration tunables.
// Damping factors are applied once per step; a factor outside (0, 1] disables damping.
// Non-positive speed limits disable clamping.
type Settings struct {
	Gravity         geom.Vec2 `json:"gravity" yaml:"gravity"`
	LinearDamping   float64   `json:"linear_damping" yaml:"linear_damping"`
	AngularDamping  float64   `json:"angular_damping" yaml:"angular_damping"`
	MaxLinearSpeed  float64   `json:"max_linear_speed" yaml:"max_linear_speed"`
	MaxAngularSpeed float64   `json:"max_angular_speed" yaml:"max_angular_speed"`
}

func DefaultSettings() Settings {
	return Settings{
		LinearDamping:   0.995,
		AngularDamping:  0.995,
		MaxLinearSpeed:  15,
		MaxAngularSpeed: 40,
	}
}

// Integrate advances one body by dt with semi-implicit Euler and clears its
// force accumulators. Non-finite results are repaired and reported.
func Integrate(b *Body, s Settings, dt float64) []Fault {
	defer b.ClearForces()
	if b.static {
		return nil
	}

	prev := b.Pose

	//1. forces -> velocity
	accel := s.Gravity.Add(b.force.Mul(b.invMass))
	v := b.LinearVelocity.Add(accel.Mul(dt))
	w := b.AngularVelocity + b.torque*b.invInertia*dt

	//2. damping
	v = v.Mul(dampingFactor(s.LinearDamping, b.material.LinearDamping, dt))
	w *= dampingFactor(s.AngularDamping, b.material.AngularDamping, dt)

	//3. speed limits
	if s.MaxLinearSpeed > 0 {
		v = geom.ClampLength(v, s.MaxLinearSpeed)
	}
	if s.MaxAngularSpeed > 0 {
		w = geom.Clamp(w, -s.MaxAngularSpeed, s.MaxAngularSpeed)
	}

	b.LinearVelocity, b.AngularVelocity = v, w
	faults := b.SanitizeVelocity(StageIntegrate)

	//4. velocity -> pose
	b.Pose = geom.Pose{
		X:     prev.X + b.LinearVelocity[0]*dt,
		Y:     prev.Y + b.LinearVelocity[1]*dt,
		Theta: prev.Theta + b.AngularVelocity*dt,
	}
	if !b.Pose.IsFinite() {
		b.Pose = prev
		faults = append(faults, b.fault(StageIntegrate, "non-finite pose reverted"))
	}
	return faults
}

func dampingFactor(global, material, dt float64) float64 {
	f := global
	if !(f > 0 && f <= 1) {
		f = 1
	}
	if material > 0 {
		f *= geom.Clamp(1-material*dt, 0, 1)
	}
	return f
}
