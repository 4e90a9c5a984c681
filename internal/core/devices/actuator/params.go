// Package actuator models traction-limited wheel motors.
package actuator

import (
	"fmt"
	"math"
)

type Kind uint8

const (
	// KindWheel tracks a commanded wheel speed through a first-order response.
	KindWheel Kind = iota
	// KindWheelTorque integrates commanded motor torque against the traction reaction.
	KindWheelTorque
)

func (k Kind) String() string {
	switch k {
	case KindWheel:
		return "wheel"
	case KindWheelTorque:
		return "wheel_torque"
	default:
		return "unknown"
	}
}

func ParseKind(name string) (Kind, error) {
	switch name {
	case "wheel", "wheel_motor", "":
		return KindWheel, nil
	case "wheel_torque", "wheel_detailed":
		return KindWheelTorque, nil
	default:
		return 0, fmt.Errorf("unknown actuator type %q", name)
	}
}

const (
	minResponseTime   = 1e-4
	maxTorqueOmega    = 100.0
	speedModeBlend    = 0.4
	torqueModeBlend   = 0.3
	slipDenominatorLo = 0.05
)

// Params are the wheel and traction parameters. A nil NormalForce derives the
// load from body mass, GEquiv and WheelCount; WheelCount 0 is inferred at load.
type Params struct {
	MaxForce       float64  `json:"max_force" yaml:"max_force"`
	MuLong         float64  `json:"mu_long" yaml:"mu_long"`
	MuLat          float64  `json:"mu_lat" yaml:"mu_lat"`
	GEquiv         float64  `json:"g_equiv" yaml:"g_equiv"`
	NormalForce    *float64 `json:"normal_force,omitempty" yaml:"normal_force,omitempty"`
	LateralDamping float64  `json:"lateral_damping" yaml:"lateral_damping"`
	WheelCount     int      `json:"wheel_count" yaml:"wheel_count"`
	WheelRadius    float64  `json:"wheel_radius" yaml:"wheel_radius"`
	ResponseTime   float64  `json:"response_time" yaml:"response_time"`
	MaxWheelOmega  float64  `json:"max_wheel_omega" yaml:"max_wheel_omega"`

	// Torque model only.
	MaxTorque    float64 `json:"max_torque" yaml:"max_torque"`
	GearRatio    float64 `json:"gear_ratio" yaml:"gear_ratio"`
	MotorInertia float64 `json:"motor_inertia" yaml:"motor_inertia"`
}

func DefaultParams() Params {
	return Params{
		MaxForce:       2.0,
		MuLong:         0.9,
		MuLat:          0.8,
		GEquiv:         9.81,
		LateralDamping: 0.25,
		WheelRadius:    0.03,
		ResponseTime:   0.05,
		MaxWheelOmega:  40,
		MaxTorque:      0.45,
		GearRatio:      1,
		MotorInertia:   0.002,
	}
}

var presets = map[string]Params{
	"wheel_small": func() Params {
		p := DefaultParams()
		p.WheelCount = 2
		return p
	}(),
}

// Preset returns a named hardware profile.
func Preset(name string) (Params, bool) {
	p, ok := presets[name]
	return p, ok
}

// Validate rejects parameters that would make the traction model meaningless.
func (p Params) Validate() error {
	switch {
	case !(p.WheelRadius > 0):
		return fmt.Errorf("wheel_radius must be positive, got %v", p.WheelRadius)
	case p.WheelCount < 0:
		return fmt.Errorf("wheel_count must not be negative, got %d", p.WheelCount)
	case p.NormalForce != nil && (*p.NormalForce < 0 || math.IsNaN(*p.NormalForce)):
		return fmt.Errorf("normal_force must not be negative, got %v", *p.NormalForce)
	case math.IsNaN(p.MuLong) || math.IsNaN(p.MuLat) || math.IsNaN(p.MaxForce):
		return fmt.Errorf("traction coefficients must be numbers")
	}
	return nil
}

func (p Params) responseTime() float64 { return math.Max(p.ResponseTime, minResponseTime) }

func (p Params) wheelCount() int {
	if p.WheelCount < 1 {
		return 1
	}
	return p.WheelCount
}
