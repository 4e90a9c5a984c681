// Package joint implements the XPBD distance constraint solver.
package joint

import (
	"math"

	"github.com/zeusync/robosim/internal/core/physics/body"
	"github.com/zeusync/robosim/internal/core/physics/geom"
)

const (
	MinSubsteps = 4
	MaxSubsteps = 8
)

// Joint keeps two anchor points at a target distance.
// Compliance is the inverse stiffness in m/N; zero is rigid.
type Joint struct {
	Name           string
	BodyA, BodyB   body.Handle
	AnchorA        geom.Vec2
	AnchorB        geom.Vec2
	TargetDistance float64
	Compliance     float64

	lambda float64
}

// Lambda is the accumulated Lagrange multiplier of the last solve.
func (j *Joint) Lambda() float64 { return j.lambda }

// Reset clears the accumulated multiplier.
func (j *Joint) Reset() { j.lambda = 0 }

type Settings struct {
	Substeps      int     `json:"substeps" yaml:"substeps"`
	MaxCorrection float64 `json:"max_correction" yaml:"max_correction"`
}

func DefaultSettings() Settings {
	return Settings{Substeps: MinSubsteps, MaxCorrection: 0.05}
}

// Resolver maps handles to bodies.
type Resolver interface {
	Body(h body.Handle) (*body.Body, bool)
}

// Error returns the current distance error of the joint.
func (j *Joint) Error(r Resolver) float64 {
	a, okA := r.Body(j.BodyA)
	b, okB := r.Body(j.BodyB)
	if !okA || !okB {
		return 0
	}
	pa := a.Pose.TransformPoint(j.AnchorA)
	pb := b.Pose.TransformPoint(j.AnchorB)
	return geom.Distance(pa, pb) - j.TargetDistance
}

// Solve projects every joint for the configured number of substeps.
// Multipliers restart from zero on every call.
func Solve(joints []*Joint, r Resolver, s Settings, dt float64) {
	if len(joints) == 0 || !(dt > 0) {
		return
	}
	substeps := s.Substeps
	if substeps < MinSubsteps {
		substeps = MinSubsteps
	}
	if substeps > MaxSubsteps {
		substeps = MaxSubsteps
	}
	h := dt / float64(substeps)

	for _, j := range joints {
		j.lambda = 0
	}
	for i := 0; i < substeps; i++ {
		for _, j := range joints {
			j.project(r, s.MaxCorrection, h)
		}
	}
}

func (j *Joint) project(r Resolver, maxCorrection, h float64) {
	a, okA := r.Body(j.BodyA)
	b, okB := r.Body(j.BodyB)
	if !okA || !okB || (a.Static() && b.Static()) {
		return
	}

	pa := a.Pose.TransformPoint(j.AnchorA)
	pb := b.Pose.TransformPoint(j.AnchorB)
	d := pb.Sub(pa)
	dist := d.Len()
	c := dist - j.TargetDistance
	if math.Abs(c) < geom.Epsilon {
		return
	}
	n, ok := geom.Normalize(d)
	if !ok {
		n = geom.Vec2{1, 0}
	}

	wA := a.EffectiveInvMass(pa, n)
	wB := b.EffectiveInvMass(pb, n)
	w := wA + wB
	if w < geom.Epsilon {
		return
	}

	alpha := j.Compliance / (h * h)
	dLambda := (-c - alpha*j.lambda) / (w + alpha)
	if maxCorrection > 0 {
		limit := maxCorrection / w
		dLambda = geom.Clamp(dLambda, -limit, limit)
	}
	if !geom.IsFinite(dLambda) {
		return
	}
	j.lambda += dLambda

	p := n.Mul(dLambda)
	rA := pa.Sub(a.Position())
	rB := pb.Sub(b.Position())

	a.Translate(p.Mul(-a.InvMass()))
	a.Turn(-a.InvInertia() * geom.Cross(rA, p))
	b.Translate(p.Mul(b.InvMass()))
	b.Turn(b.InvInertia() * geom.Cross(rB, p))
}
