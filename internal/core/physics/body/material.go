package body

import "github.com/zeusync/robosim/internal/core/physics/geom"

// Well known material field names readable through Material.Field.
const (
	FieldLineIntensity = "line_intensity"
	FieldReflectivity  = "reflectivity"
	FieldTraction      = "traction"
)

// Material holds the surface properties of a body. It is read-only while stepping.
type Material struct {
	Name           string             `json:"name,omitempty" yaml:"name,omitempty"`
	Friction       float64            `json:"friction" yaml:"friction"`
	Restitution    float64            `json:"restitution" yaml:"restitution"`
	LinearDamping  float64            `json:"linear_damping" yaml:"linear_damping"`
	AngularDamping float64            `json:"angular_damping" yaml:"angular_damping"`
	Reflectivity   float64            `json:"reflectivity" yaml:"reflectivity"`
	LineIntensity  float64            `json:"line_intensity" yaml:"line_intensity"`
	Traction       float64            `json:"traction" yaml:"traction"`
	Fields         map[string]float64 `json:"fields,omitempty" yaml:"fields,omitempty"`
}

func DefaultMaterial() Material {
	return Material{
		Name:         "default",
		Friction:     0.8,
		Restitution:  0.1,
		Reflectivity: 0.5,
		Traction:     1.0,
	}
}

// Normalized clamps the coefficients into their physical ranges.
func (m Material) Normalized() Material {
	m.Friction = nonNegative(m.Friction)
	m.Restitution = geom.Clamp(m.Restitution, 0, 1)
	if !geom.IsFinite(m.Restitution) {
		m.Restitution = 0
	}
	m.LinearDamping = nonNegative(m.LinearDamping)
	m.AngularDamping = nonNegative(m.AngularDamping)
	m.Reflectivity = geom.Clamp(nonNegative(m.Reflectivity), 0, 1)
	m.LineIntensity = nonNegative(m.LineIntensity)
	m.Traction = nonNegative(m.Traction)
	if len(m.Fields) > 0 {
		fields := make(map[string]float64, len(m.Fields))
		for k, v := range m.Fields {
			fields[k] = v
		}
		m.Fields = fields
	}
	return m
}

// Field looks up a named scalar, falling back to def when it is unknown.
func (m Material) Field(name string, def float64) float64 {
	switch name {
	case FieldLineIntensity:
		return m.LineIntensity
	case FieldReflectivity:
		return m.Reflectivity
	case FieldTraction:
		return m.Traction
	}
	if v, ok := m.Fields[name]; ok {
		return v
	}
	return def
}

func nonNegative(f float64) float64 {
	if !geom.IsFinite(f) || f < 0 {
		return 0
	}
	return f
}
