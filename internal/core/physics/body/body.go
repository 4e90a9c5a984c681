// Package body holds rigid body state and the per-step integrator.
package body

import (
	"errors"
	"fmt"

	"github.com/zeusync/robosim/internal/core/physics/geom"
)

var (
	ErrInvalidMass    = errors.New("dynamic body needs a positive finite mass")
	ErrInvalidInertia = errors.New("dynamic body needs a positive finite inertia")
	ErrInvalidPose    = errors.New("body pose must be finite")
)

// Handle is a stable index into the simulator's body arena.
type Handle uint32

// Spec is everything needed to build a body.
type Spec struct {
	Name     string
	Shape    geom.Shape
	Material Material
	Pose     geom.Pose
	Mass     float64
	// Inertia <= 0 derives the value from the shape and mass.
	Inertia   float64
	Static    bool
	NoCollide bool
}

// Body is a rigid body. Pose and velocities are mutated by the solvers; mass
// properties are fixed at construction.
type Body struct {
	Pose            geom.Pose
	LinearVelocity  geom.Vec2
	AngularVelocity float64

	handle    Handle
	name      string
	shape     geom.Shape
	material  Material
	static    bool
	noCollide bool

	mass, invMass       float64
	inertia, invInertia float64

	force  geom.Vec2
	torque float64
}

func New(h Handle, spec Spec) (*Body, error) {
	if !spec.Pose.IsFinite() {
		return nil, fmt.Errorf("body %q: %w", spec.Name, ErrInvalidPose)
	}
	b := &Body{
		Pose:      spec.Pose,
		handle:    h,
		name:      spec.Name,
		shape:     spec.Shape,
		material:  spec.Material.Normalized(),
		static:    spec.Static,
		noCollide: spec.NoCollide,
	}
	if spec.Static {
		return b, nil
	}

	if !(spec.Mass > 0) || !geom.IsFinite(spec.Mass) {
		return nil, fmt.Errorf("body %q: %w (got %v)", spec.Name, ErrInvalidMass, spec.Mass)
	}
	inertia := spec.Inertia
	if inertia <= 0 {
		inertia = spec.Shape.Inertia(spec.Mass)
	}
	if !(inertia > 0) || !geom.IsFinite(inertia) {
		return nil, fmt.Errorf("body %q: %w (got %v)", spec.Name, ErrInvalidInertia, inertia)
	}

	b.mass, b.invMass = spec.Mass, 1/spec.Mass
	b.inertia, b.invInertia = inertia, 1/inertia
	return b, nil
}

func (b *Body) Handle() Handle { return b.handle }
func (b *Body) Name() string { return b.name }
func (b *Body) Shape() geom.Shape { return b.shape }
func (b *Body) Material() Material { return b.material }
func (b *Body) Static() bool { return b.static }
func (b *Body) Collides() bool { return !b.noCollide }
func (b *Body) Mass() float64 { return b.mass }
func (b *Body) InvMass() float64 { return b.invMass }
func (b *Body) Inertia() float64 { return b.inertia }
func (b *Body) InvInertia() float64 { return b.invInertia }
func (b *Body) Position() geom.Vec2 { return b.Pose.Position() }
func (b *Body) Bounds() geom.AABB { return b.shape.Bounds(b.Pose) }
func (b *Body) Contains(p geom.Vec2) bool { return b.shape.Contains(p, b.Pose) }

// ApplyForce accumulates a force through the centre of mass until the next integration.
func (b *Body) ApplyForce(f geom.Vec2) {
	if b.static {
		return
	}
	b.force = b.force.Add(f)
}

// ApplyForceAt accumulates a force applied at a world point, adding the induced torque.
func (b *Body) ApplyForceAt(f geom.Vec2, worldPoint geom.Vec2) {
	if b.static {
		return
	}
	b.force = b.force.Add(f)
	b.torque += geom.Cross(worldPoint.Sub(b.Position()), f)
}

func (b *Body) ApplyTorque(t float64) {
	if b.static {
		return
	}
	b.torque += t
}

// PendingForce returns the accumulated force and torque.
func (b *Body) PendingForce() (geom.Vec2, float64) { return b.force, b.torque }

func (b *Body) ClearForces() {
	b.force = geom.Vec2{}
	b.torque = 0
}

// ApplyImpulse changes velocity immediately by an impulse at a world point.
func (b *Body) ApplyImpulse(j geom.Vec2, worldPoint geom.Vec2) {
	if b.static {
		return
	}
	b.LinearVelocity = b.LinearVelocity.Add(j.Mul(b.invMass))
	b.AngularVelocity += b.invInertia * geom.Cross(worldPoint.Sub(b.Position()), j)
}

// PointVelocity is the world velocity of a point rigidly attached to the body.
func (b *Body) PointVelocity(worldPoint geom.Vec2) geom.Vec2 {
	return b.LinearVelocity.Add(geom.CrossSV(b.AngularVelocity, worldPoint.Sub(b.Position())))
}

// EffectiveInvMass is the inverse mass seen by an impulse along axis at worldPoint.
func (b *Body) EffectiveInvMass(worldPoint, axis geom.Vec2) float64 {
	rn := geom.Cross(worldPoint.Sub(b.Position()), axis)
	return b.invMass + b.invInertia*rn*rn
}

// Translate shifts the body without touching its velocity.
func (b *Body) Translate(d geom.Vec2) {
	if b.static {
		return
	}
	b.Pose = b.Pose.Translate(d)
}

// Turn rotates the body in place by dTheta radians.
func (b *Body) Turn(dTheta float64) {
	if b.static {
		return
	}
	b.Pose.Theta += dTheta
}

// SetState overwrites pose and velocities. Static bodies keep zero velocity.
func (b *Body) SetState(p geom.Pose, v geom.Vec2, w float64) {
	b.Pose = p
	if b.static {
		b.LinearVelocity, b.AngularVelocity = geom.Vec2{}, 0
		return
	}
	b.LinearVelocity, b.AngularVelocity = v, w
}

// SanitizeVelocity zeroes non-finite velocity components and reports them.
func (b *Body) SanitizeVelocity(stage string) []Fault {
	var faults []Fault
	if !geom.Finite(b.LinearVelocity) {
		faults = append(faults, b.fault(stage, "non-finite linear velocity"))
		b.LinearVelocity = geom.Vec2{}
	}
	if !geom.IsFinite(b.AngularVelocity) {
		faults = append(faults, b.fault(stage, "non-finite angular velocity"))
		b.AngularVelocity = 0
	}
	return faults
}

func (b *Body) fault(stage, detail string) Fault {
	return Fault{Body: b.handle, Name: b.name, Stage: stage, Detail: detail}
}
