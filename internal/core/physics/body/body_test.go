package body

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/robosim/internal/core/physics/geom"
)

const dt = 1.0 / 120

func newDisc(t *testing.T, mass, inertia float64) *Body {
	t.Helper()
	shape, err := geom.NewCircle(0.1)
	require.NoError(t, err)
	b, err := New(0, Spec{Name: "disc", Shape: shape, Material: DefaultMaterial(), Mass: mass, Inertia: inertia})
	require.NoError(t, err)
	return b
}

func undamped() Settings {
	return Settings{}
}

func TestNewValidatesMass(t *testing.T) {
	shape, _ := geom.NewBox(1, 1)

	_, err := New(1, Spec{Name: "bad", Shape: shape, Mass: 0})
	assert.ErrorIs(t, err, ErrInvalidMass)

	_, err = New(1, Spec{Name: "bad", Shape: shape, Mass: 1, Pose: geom.Pose{X: math.NaN()}})
	assert.ErrorIs(t, err, ErrInvalidPose)

	static, err := New(2, Spec{Name: "wall", Shape: shape, Static: true})
	require.NoError(t, err)
	assert.Zero(t, static.InvMass())
	assert.Zero(t, static.InvInertia())

	derived, err := New(3, Spec{Name: "crate", Shape: shape, Mass: 12})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, derived.Inertia(), 1e-9)
	assert.InDelta(t, 0.5, derived.InvInertia(), 1e-9)
}

func TestDampingIsMonotonic(t *testing.T) {
	b := newDisc(t, 1, 0.05)
	b.LinearVelocity = geom.V(3, -4)
	b.AngularVelocity = 7

	s := DefaultSettings()
	prevSpeed, prevSpin := b.LinearVelocity.Len(), math.Abs(b.AngularVelocity)
	for i := 0; i < 500; i++ {
		require.Empty(t, Integrate(b, s, dt))
		speed, spin := b.LinearVelocity.Len(), math.Abs(b.AngularVelocity)
		require.LessOrEqual(t, speed, prevSpeed)
		require.LessOrEqual(t, spin, prevSpin)
		prevSpeed, prevSpin = speed, spin
	}
	assert.Less(t, prevSpeed, 5.0*0.1)
}

func TestOffCentreForceProducesExpectedSpin(t *testing.T) {
	const (
		force   = 1.0
		offset  = 0.1
		inertia = 0.05
	)
	b := newDisc(t, 1, inertia)
	b.ApplyForceAt(geom.V(0, force), geom.V(offset, 0))

	_, torque := b.PendingForce()
	assert.InDelta(t, force*offset, torque, 1e-12)

	Integrate(b, undamped(), dt)
	assert.InDelta(t, force*offset*dt/inertia, b.AngularVelocity, 1e-12)
	assert.InDelta(t, force*dt, b.LinearVelocity.Y(), 1e-12)

	// Accumulators are consumed by the step.
	f, tq := b.PendingForce()
	assert.Equal(t, geom.Vec2{}, f)
	assert.Zero(t, tq)
}

func TestIntegrateClampsSpeed(t *testing.T) {
	b := newDisc(t, 1, 0.05)
	b.LinearVelocity = geom.V(100, 0)
	b.AngularVelocity = -100

	s := undamped()
	s.MaxLinearSpeed = 15
	s.MaxAngularSpeed = 40
	Integrate(b, s, dt)

	assert.InDelta(t, 15, b.LinearVelocity.Len(), 1e-9)
	assert.InDelta(t, -40, b.AngularVelocity, 1e-9)
	assert.InDelta(t, 15*dt, b.Pose.X, 1e-9)
}

func TestIntegrateRepairsNonFiniteVelocity(t *testing.T) {
	b := newDisc(t, 1, 0.05)
	b.Pose = geom.NewPose(1, 2, 0.5)
	b.ApplyForce(geom.V(math.Inf(1), 0))

	faults := Integrate(b, DefaultSettings(), dt)
	require.Len(t, faults, 1)
	assert.Equal(t, StageIntegrate, faults[0].Stage)
	assert.Equal(t, "disc", faults[0].Name)
	assert.Contains(t, faults[0].Error(), "linear velocity")

	assert.Equal(t, geom.Vec2{}, b.LinearVelocity)
	assert.Equal(t, geom.NewPose(1, 2, 0.5), b.Pose)
}

func TestStaticBodiesDoNotMove(t *testing.T) {
	shape, _ := geom.NewBox(1, 1)
	wall, err := New(0, Spec{Name: "wall", Shape: shape, Static: true, Pose: geom.NewPose(3, 0, 0)})
	require.NoError(t, err)

	wall.ApplyForce(geom.V(10, 0))
	wall.ApplyImpulse(geom.V(10, 0), geom.V(3, 0.5))
	s := DefaultSettings()
	s.Gravity = geom.V(0, -9.81)
	Integrate(wall, s, dt)

	assert.Equal(t, geom.NewPose(3, 0, 0), wall.Pose)
	assert.Equal(t, geom.Vec2{}, wall.LinearVelocity)
}

func TestImpulseAndPointVelocity(t *testing.T) {
	b := newDisc(t, 2, 0.5)
	b.ApplyImpulse(geom.V(0, 1), geom.V(0.5, 0))

	assert.InDelta(t, 0.5, b.LinearVelocity.Y(), 1e-12)
	assert.InDelta(t, 1.0, b.AngularVelocity, 1e-12)

	pv := b.PointVelocity(geom.V(0.5, 0))
	assert.InDelta(t, 1.0, pv.Y(), 1e-12)
	assert.InDelta(t, 0.5+2*0.25, b.EffectiveInvMass(geom.V(0.5, 0), geom.V(0, 1)), 1e-12)
}

func TestMaterialNormalized(t *testing.T) {
	m := Material{Friction: -1, Restitution: 3, Reflectivity: 2, Fields: map[string]float64{"heat": 4}}.Normalized()
	assert.Zero(t, m.Friction)
	assert.Equal(t, 1.0, m.Restitution)
	assert.Equal(t, 1.0, m.Reflectivity)
	assert.Equal(t, 4.0, m.Field("heat", 0))
	assert.Equal(t, 9.0, m.Field("missing", 9))
}
