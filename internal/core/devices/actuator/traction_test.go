package actuator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zeusync/robosim/internal/core/physics/geom"
)

func TestSolveTractionWithoutGripDoesNotPush(t *testing.T) {
	tests := map[string]Contact{
		"no load":       {MuLong: 0.9, MuLat: 0.8, NormalLoad: 0},
		"no friction":   {MuLong: 0, MuLat: 0.8, NormalLoad: 5},
		"negative load": {MuLong: 0.9, MuLat: 0.8, NormalLoad: -3},
	}
	for name, c := range tests {
		t.Run(name, func(t *testing.T) {
			b := chassis(t)
			r := SolveTraction(b, geom.V(0, 0), geom.V(1, 0), 1, 10*dt, c, dt)
			assert.Zero(t, r.AppliedLongitudinalImpulse)
			assert.Greater(t, r.DesiredLongitudinalImpulse, 0.0)
			assert.Zero(t, b.LinearVelocity.X())
			assert.Zero(t, r.ContactSpeedAfter)
		})
	}
}

func TestSolveTractionTakesTheTighterLimit(t *testing.T) {
	c := Contact{MuLong: 0.9, MuLat: 0.8, NormalLoad: 5}
	budget := c.MuLong * c.NormalLoad * dt

	r := SolveTraction(chassis(t), geom.V(0, 0), geom.V(1, 0), 1, budget/4, c, dt)
	assert.InDelta(t, budget/4, r.AppliedLongitudinalImpulse, 1e-12)

	r = SolveTraction(chassis(t), geom.V(0, 0), geom.V(1, 0), 1, 10*budget, c, dt)
	assert.InDelta(t, budget, r.AppliedLongitudinalImpulse, 1e-12)
}

func TestEvaluateTractionLeavesBodyAlone(t *testing.T) {
	b := chassis(t)
	c := Contact{MuLong: 0.9, MuLat: 0.8, NormalLoad: 5, Share: 0.5}
	r, imp := EvaluateTraction(b, geom.V(0, 0), geom.V(1, 0), 0.01, 1, c, dt)

	assert.Zero(t, b.LinearVelocity.X())
	assert.InDelta(t, 0.01*0.5, r.DesiredLongitudinalImpulse, 1e-12, "a half share corrects half the error")
	assert.Equal(t, r.AppliedLongitudinalImpulse, imp.Longitudinal)

	imp.Apply(b)
	assert.InDelta(t, imp.Longitudinal, b.LinearVelocity.X(), 1e-12)
}
