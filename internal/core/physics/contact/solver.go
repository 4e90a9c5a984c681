package contact

import (
	"math"

	"github.com/zeusync/robosim/internal/core/physics/body"
	"github.com/zeusync/robosim/internal/core/physics/geom"
)

const StageContact = "contact"

// Settings tune the Baumgarte style positional correction.
type Settings struct {
	CorrectionPercent float64 `json:"correction_percent" yaml:"correction_percent"`
	Slop              float64 `json:"slop" yaml:"slop"`
	MaxCorrection     float64 `json:"max_correction" yaml:"max_correction"`
}

func DefaultSettings() Settings {
	return Settings{CorrectionPercent: 0.25, Slop: 0.002, MaxCorrection: 0.05}
}

// Contact is one resolved manifold, kept for diagnostics.
type Contact struct {
	A, B            body.Handle
	Manifold        geom.Manifold
	NormalImpulse   float64
	FrictionImpulse float64
}

// Report summarises one Solve call.
type Report struct {
	Contacts []Contact
	Faults   []body.Fault
}

// Solve resolves every overlapping pair once, in order.
func Solve(pairs []Pair, s Settings) Report {
	var report Report
	for _, p := range pairs {
		m, ok := geom.Intersect(p.A.Shape(), p.A.Pose, p.B.Shape(), p.B.Pose)
		if !ok {
			continue
		}
		c := resolve(p.A, p.B, m, s)
		report.Contacts = append(report.Contacts, c)
		report.Faults = append(report.Faults, p.A.SanitizeVelocity(StageContact)...)
		report.Faults = append(report.Faults, p.B.SanitizeVelocity(StageContact)...)
	}
	return report
}

// Restitution combines two coefficients: the bouncier material wins.
func Restitution(a, b body.Material) float64 {
	return geom.Clamp(math.Max(a.Restitution, b.Restitution), 0, 1)
}

// Friction combines two coefficients as their mean.
func Friction(a, b body.Material) float64 {
	return math.Max(0, (a.Friction+b.Friction)/2)
}

func resolve(a, b *body.Body, m geom.Manifold, s Settings) Contact {
	c := Contact{A: a.Handle(), B: b.Handle(), Manifold: m}
	n := m.Normal

	invSum := a.InvMass() + b.InvMass()
	if invSum <= 0 {
		return c
	}

	//1. positional correction
	push := math.Max(m.Penetration-s.Slop, 0) * s.CorrectionPercent
	if s.MaxCorrection > 0 {
		push = math.Min(push, s.MaxCorrection)
	}
	if push > 0 {
		a.Translate(n.Mul(-push * a.InvMass() / invSum))
		b.Translate(n.Mul(push * b.InvMass() / invSum))
	}

	//2. normal impulse
	rel := b.PointVelocity(m.Point).Sub(a.PointVelocity(m.Point))
	vn := rel.Dot(n)
	if vn >= 0 {
		return c
	}
	kn := a.EffectiveInvMass(m.Point, n) + b.EffectiveInvMass(m.Point, n)
	if kn <= 0 {
		return c
	}
	e := Restitution(a.Material(), b.Material())
	jn := -(1 + e) * vn / kn
	impulse := n.Mul(jn)
	a.ApplyImpulse(impulse.Mul(-1), m.Point)
	b.ApplyImpulse(impulse, m.Point)
	c.NormalImpulse = jn

	//3. friction
	rel = b.PointVelocity(m.Point).Sub(a.PointVelocity(m.Point))
	tangent, ok := geom.Normalize(rel.Sub(n.Mul(rel.Dot(n))))
	if !ok {
		return c
	}
	kt := a.EffectiveInvMass(m.Point, tangent) + b.EffectiveInvMass(m.Point, tangent)
	if kt <= 0 {
		return c
	}
	mu := Friction(a.Material(), b.Material())
	jt := geom.Clamp(-rel.Dot(tangent)/kt, -mu*jn, mu*jn)
	friction := tangent.Mul(jt)
	a.ApplyImpulse(friction.Mul(-1), m.Point)
	b.ApplyImpulse(friction, m.Point)
	c.FrictionImpulse = jt

	return c
}
