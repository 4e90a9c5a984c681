package actuator

import (
	"math"

	"github.com/zeusync/robosim/internal/core/physics/body"
	"github.com/zeusync/robosim/internal/core/physics/geom"
)

// Report is the per-step telemetry of one traction evaluation.
type Report struct {
	Step                       uint64  `json:"step"`
	Command                    float64 `json:"command"`
	SlipRatio                  float64 `json:"slip_ratio"`
	LateralSlip                float64 `json:"lateral_slip"`
	WheelSpeed                 float64 `json:"wheel_speed"`
	PreferredSpeed             float64 `json:"preferred_speed"`
	ContactSpeed               float64 `json:"contact_speed"`
	ContactSpeedAfter          float64 `json:"contact_speed_after"`
	DesiredLongitudinalImpulse float64 `json:"desired_longitudinal_impulse"`
	AppliedLongitudinalImpulse float64 `json:"applied_longitudinal_impulse"`
	AppliedLateralImpulse      float64 `json:"applied_lateral_impulse"`
	NormalLoad                 float64 `json:"normal_load"`
}

// TractionRatio is the share of the desired longitudinal impulse that traction allowed.
func (r Report) TractionRatio() float64 {
	if math.Abs(r.DesiredLongitudinalImpulse) < 1e-9 {
		return 0
	}
	return math.Min(1, math.Abs(r.AppliedLongitudinalImpulse)/math.Abs(r.DesiredLongitudinalImpulse))
}

// Contact describes the friction budget at one wheel contact.
type Contact struct {
	MuLong         float64
	MuLat          float64
	NormalLoad     float64
	LateralDamping float64
	// Share is the fraction of the velocity error this contact corrects when
	// several wheels on one body are solved together. Zero means all of it.
	Share float64
}

// Impulse is a traction impulse pair waiting to be applied at Point.
type Impulse struct {
	Point        geom.Vec2
	Forward      geom.Vec2
	Longitudinal float64
	Lateral      float64
}

// Apply pushes the impulse pair into b.
func (i Impulse) Apply(b *body.Body) {
	if i.Lateral != 0 {
		b.ApplyImpulse(geom.Perp(i.Forward).Mul(i.Lateral), i.Point)
	}
	if i.Longitudinal != 0 {
		b.ApplyImpulse(i.Forward.Mul(i.Longitudinal), i.Point)
	}
}

// EvaluateTraction computes the impulses that drive the contact point at
// worldPoint towards preferredSpeed along forward, limited by friction and
// the drive cap. b is only read. Traction is a hard budget: a contact
// without longitudinal grip never pushes, whatever the drive cap.
func EvaluateTraction(b *body.Body, worldPoint, forward geom.Vec2, preferredSpeed, driveCap float64, c Contact, dt float64) (Report, Impulse) {
	report := Report{
		WheelSpeed:     preferredSpeed,
		PreferredSpeed: preferredSpeed,
		NormalLoad:     c.NormalLoad,
	}
	imp := Impulse{Point: worldPoint, Forward: forward}
	if b.Static() {
		return report, imp
	}

	share := c.Share
	if !(share > 0) || share > 1 {
		share = 1
	}
	load := math.Max(c.NormalLoad, 0)
	report.NormalLoad = load
	damping := geom.Clamp(c.LateralDamping, 0, 1)
	lateral := geom.Perp(forward)
	maxLong := math.Max(0, math.Abs(c.MuLong)*load*dt)
	maxLat := math.Max(0, math.Abs(c.MuLat)*load*dt)
	driveCap = math.Max(0, math.Abs(driveCap))

	vc := b.PointVelocity(worldPoint)
	vLong := vc.Dot(forward)
	vLat := vc.Dot(lateral)
	report.ContactSpeed = vLong
	report.LateralSlip = vLat
	report.SlipRatio = (preferredSpeed - vLong) / math.Max(math.Max(math.Abs(preferredSpeed), math.Abs(vLong)), slipDenominatorLo)

	//1. lateral grip
	if maxLat > 0 && math.Abs(vLat) > 1e-6 {
		if w := b.EffectiveInvMass(worldPoint, lateral); w > 1e-9 {
			imp.Lateral = geom.Clamp(-vLat/w*(1-damping)*share, -maxLat, maxLat)
		}
	}

	//2. longitudinal drive, sharing the friction budget with the lateral grip
	if w := b.EffectiveInvMass(worldPoint, forward); w > 1e-9 {
		desired := (preferredSpeed - vLong) / w * share
		report.DesiredLongitudinalImpulse = desired
		if maxLong > 0 {
			limit := maxLong
			if maxLat > 0 {
				latRatio := math.Min(1, math.Abs(imp.Lateral)/(maxLat+1e-9))
				limit = maxLong * math.Max(0, 1-0.5*latRatio)
			}
			if driveCap > 0 {
				limit = math.Min(limit, driveCap)
			}
			imp.Longitudinal = geom.Clamp(desired, -limit, limit)
		}
	}

	report.AppliedLongitudinalImpulse = imp.Longitudinal
	report.AppliedLateralImpulse = imp.Lateral
	return report, imp
}

// SolveTraction evaluates and applies the traction impulses of a single contact.
func SolveTraction(b *body.Body, worldPoint, forward geom.Vec2, preferredSpeed, driveCap float64, c Contact, dt float64) Report {
	report, imp := EvaluateTraction(b, worldPoint, forward, preferredSpeed, driveCap, c, dt)
	if b.Static() {
		return report
	}
	imp.Apply(b)
	report.ContactSpeedAfter = b.PointVelocity(worldPoint).Dot(forward)
	return report
}
