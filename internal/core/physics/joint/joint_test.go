package joint

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/robosim/internal/core/physics/body"
	"github.com/zeusync/robosim/internal/core/physics/geom"
)

const dt = 1.0 / 120

type arena []*body.Body

func (a arena) Body(h body.Handle) (*body.Body, bool) {
	if int(h) >= len(a) {
		return nil, false
	}
	return a[h], true
}

func disc(t *testing.T, h body.Handle, x, y float64, static bool) *body.Body {
	t.Helper()
	shape, err := geom.NewCircle(0.05)
	require.NoError(t, err)
	b, err := body.New(h, body.Spec{Name: "disc", Shape: shape, Pose: geom.NewPose(x, y, 0), Mass: 1, Inertia: 0.01, Static: static})
	require.NoError(t, err)
	return b
}

func TestRigidJointConverges(t *testing.T) {
	bodies := arena{disc(t, 0, 0, 0, false), disc(t, 1, 0.35, 0, false)}
	j := &Joint{BodyA: 0, BodyB: 1, TargetDistance: 0.3}

	Solve([]*Joint{j}, bodies, DefaultSettings(), dt)

	assert.Less(t, math.Abs(j.Error(bodies)), 1e-3)
	// Equal masses share the correction.
	assert.InDelta(t, 0.025, bodies[0].Pose.X, 1e-6)
	assert.InDelta(t, 0.325, bodies[1].Pose.X, 1e-6)
	assert.Less(t, j.Lambda(), 0.0)
}

func TestCompliantJointConverges(t *testing.T) {
	bodies := arena{disc(t, 0, 0, 0, true), disc(t, 1, 0, -0.25, false)}
	j := &Joint{BodyA: 0, BodyB: 1, TargetDistance: 0.2, Compliance: 1e-8}

	Solve([]*Joint{j}, bodies, DefaultSettings(), dt)

	assert.Less(t, math.Abs(j.Error(bodies)), 1e-3)
	assert.Equal(t, geom.NewPose(0, 0, 0), bodies[0].Pose)
}

func TestOffsetAnchorsRotateBodies(t *testing.T) {
	bodies := arena{disc(t, 0, 0, 0, true), disc(t, 1, 0.5, 0.1, false)}
	j := &Joint{BodyA: 0, BodyB: 1, AnchorB: geom.V(-0.1, 0), TargetDistance: 0.3}

	for i := 0; i < 5; i++ {
		Solve([]*Joint{j}, bodies, DefaultSettings(), dt)
	}

	assert.Less(t, math.Abs(j.Error(bodies)), 1e-3)
	assert.NotZero(t, bodies[1].Pose.Theta)
}

func TestCorrectionIsClamped(t *testing.T) {
	bodies := arena{disc(t, 0, 0, 0, true), disc(t, 1, 2, 0, false)}
	j := &Joint{BodyA: 0, BodyB: 1}

	s := Settings{Substeps: MinSubsteps, MaxCorrection: 0.05}
	Solve([]*Joint{j}, bodies, s, dt)

	// Anchors at the centres: no rotation, one body moves at most limit per substep.
	assert.InDelta(t, 2-0.05*MinSubsteps, bodies[1].Pose.X, 1e-9)
}

func TestSolveSkipsMissingAndStatic(t *testing.T) {
	bodies := arena{disc(t, 0, 0, 0, true), disc(t, 1, 1, 0, true)}
	joints := []*Joint{
		{BodyA: 0, BodyB: 1},
		{BodyA: 0, BodyB: 7},
	}

	assert.NotPanics(t, func() { Solve(joints, bodies, DefaultSettings(), dt) })
	assert.Equal(t, 1.0, bodies[1].Pose.X)
	assert.Zero(t, joints[1].Error(bodies))
}
