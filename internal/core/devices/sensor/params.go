// Package sensor implements rate-limited, noisy sensors mounted on bodies.
package sensor

import "fmt"

type Kind uint8

const (
	KindDistance Kind = iota
	KindLine
	KindLineArray
	KindIMU
	KindEncoder
)

func (k Kind) String() string {
	switch k {
	case KindDistance:
		return "distance"
	case KindLine:
		return "line"
	case KindLineArray:
		return "line_array"
	case KindIMU:
		return "imu"
	case KindEncoder:
		return "encoder"
	default:
		return "unknown"
	}
}

func ParseKind(name string) (Kind, error) {
	switch name {
	case "distance", "range":
		return KindDistance, nil
	case "line":
		return KindLine, nil
	case "line_array":
		return KindLineArray, nil
	case "imu":
		return KindIMU, nil
	case "encoder":
		return KindEncoder, nil
	default:
		return 0, fmt.Errorf("unknown sensor type %q", name)
	}
}

// Noise is additive bias plus zero-mean gaussian noise.
type Noise struct {
	Bias   float64 `json:"bias" yaml:"bias"`
	StdDev float64 `json:"std_dev" yaml:"std_dev"`
}

// Gaussian is the random source noise is drawn from.
type Gaussian interface {
	NormFloat64() float64
}

func (n Noise) sample(rng Gaussian) float64 {
	if n.StdDev == 0 || rng == nil {
		return n.Bias
	}
	return n.Bias + rng.NormFloat64()*n.StdDev
}

// Params configure a sensor. Fields that do not apply to a kind are ignored.
type Params struct {
	RateHz    float64 `json:"rate_hz" yaml:"rate_hz"`
	Noise     Noise   `json:"noise" yaml:"noise"`
	MaxRange  float64 `json:"max_range,omitempty" yaml:"max_range,omitempty"`
	Step      float64 `json:"step,omitempty" yaml:"step,omitempty"`
	MaxSignal float64 `json:"max_signal,omitempty" yaml:"max_signal,omitempty"`
	Spacing   float64 `json:"spacing,omitempty" yaml:"spacing,omitempty"`
	Count     int     `json:"count,omitempty" yaml:"count,omitempty"`
}

// DefaultParams returns the stock profile for a sensor kind.
func DefaultParams(kind Kind) Params {
	switch kind {
	case KindDistance:
		return Params{RateHz: 40, Noise: Noise{StdDev: 0.01}, MaxRange: 1.5, Step: 0.01}
	case KindLine:
		return Params{RateHz: 60, Noise: Noise{StdDev: 0.02}, MaxSignal: 1}
	case KindLineArray:
		return Params{RateHz: 60, Noise: Noise{StdDev: 0.02}, MaxSignal: 1, Spacing: 0.02, Count: 5}
	case KindIMU:
		return Params{RateHz: 200, Noise: Noise{StdDev: 0.005}}
	case KindEncoder:
		return Params{RateHz: 200, Noise: Noise{StdDev: 0.001}}
	default:
		return Params{}
	}
}

var presets = map[string]struct {
	kind   Kind
	params Params
}{
	"range_short":   {KindDistance, DefaultParams(KindDistance)},
	"line_basic":    {KindLineArray, DefaultParams(KindLineArray)},
	"imu_basic":     {KindIMU, DefaultParams(KindIMU)},
	"encoder_basic": {KindEncoder, DefaultParams(KindEncoder)},
}

// Preset returns a named hardware profile and the kind it belongs to.
func Preset(name string) (Kind, Params, bool) {
	p, ok := presets[name]
	return p.kind, p.params, ok
}

func (p Params) Validate(kind Kind) error {
	if p.RateHz < 0 {
		return fmt.Errorf("rate_hz must not be negative, got %v", p.RateHz)
	}
	if p.Noise.StdDev < 0 {
		return fmt.Errorf("noise std_dev must not be negative, got %v", p.Noise.StdDev)
	}
	switch kind {
	case KindDistance:
		if !(p.MaxRange > 0) || !(p.Step > 0) {
			return fmt.Errorf("distance sensor needs positive max_range and step")
		}
	case KindLine, KindLineArray:
		if !(p.MaxSignal > 0) {
			return fmt.Errorf("line sensor needs positive max_signal")
		}
		if kind == KindLineArray && p.Count < 1 {
			return fmt.Errorf("line array needs at least one element")
		}
	}
	return nil
}

// Period is the minimum time between recomputed readings; zero means every step.
func (p Params) Period() float64 {
	if p.RateHz <= 0 {
		return 0
	}
	return 1 / p.RateHz
}
