// Package config describes worlds and robots as YAML/JSON documents and
// validates them before they reach the simulator.
package config

import (
	"errors"
	"fmt"

	"github.com/zeusync/robosim/internal/core/physics/body"
	"github.com/zeusync/robosim/internal/core/physics/geom"
)

var ErrInvalidConfig = errors.New("invalid configuration")

const DefaultTimestep = 1.0 / 120

// Point is an [x, y] pair.
type Point [2]float64

func (p Point) Vec() geom.Vec2 { return geom.Vec2{p[0], p[1]} }

// Shape is the serialized form of geom.Shape.
type Shape struct {
	Type   string  `json:"type" yaml:"type"`
	Radius float64 `json:"radius,omitempty" yaml:"radius,omitempty"`
	Width  float64 `json:"width,omitempty" yaml:"width,omitempty"`
	Height float64 `json:"height,omitempty" yaml:"height,omitempty"`
	Points []Point `json:"points,omitempty" yaml:"points,omitempty"`
}

func (s Shape) Build() (geom.Shape, error) {
	switch s.Type {
	case "circle":
		return geom.NewCircle(s.Radius)
	case "box", "rect":
		if !(s.Width > 0) || !(s.Height > 0) {
			return geom.Shape{}, fmt.Errorf("box needs positive width and height")
		}
		return geom.NewBox(s.Width, s.Height)
	case "polygon":
		verts := make([]geom.Vec2, len(s.Points))
		for i, p := range s.Points {
			verts[i] = p.Vec()
		}
		return geom.NewPolygon(verts)
	default:
		return geom.Shape{}, fmt.Errorf("unknown shape type %q", s.Type)
	}
}

// Body describes one rigid body. A nil Material uses body.DefaultMaterial.
type Body struct {
	Name      string         `json:"name" yaml:"name"`
	Shape     Shape          `json:"shape" yaml:"shape"`
	Pose      geom.Pose      `json:"pose" yaml:"pose"`
	Static    bool           `json:"static,omitempty" yaml:"static,omitempty"`
	Mass      float64        `json:"mass,omitempty" yaml:"mass,omitempty"`
	Inertia   float64        `json:"inertia,omitempty" yaml:"inertia,omitempty"`
	NoCollide bool           `json:"no_collide,omitempty" yaml:"no_collide,omitempty"`
	Material  *body.Material `json:"material,omitempty" yaml:"material,omitempty"`
}

// Spec converts the document into a body spec, with pose relative to origin.
func (b Body) Spec(origin geom.Pose) (body.Spec, error) {
	shape, err := b.Shape.Build()
	if err != nil {
		return body.Spec{}, fmt.Errorf("body %q: %w", b.Name, err)
	}
	mat := body.DefaultMaterial()
	if b.Material != nil {
		mat = *b.Material
	}
	return body.Spec{
		Name:      b.Name,
		Shape:     shape,
		Material:  mat,
		Pose:      origin.Compose(b.Pose),
		Mass:      b.Mass,
		Inertia:   b.Inertia,
		Static:    b.Static,
		NoCollide: b.NoCollide,
	}, nil
}

func (b Body) validate() error {
	if b.Name == "" {
		return fmt.Errorf("body name is required")
	}
	if _, err := b.Shape.Build(); err != nil {
		return fmt.Errorf("body %q: %w", b.Name, err)
	}
	if !b.Pose.IsFinite() {
		return fmt.Errorf("body %q: pose must be finite", b.Name)
	}
	if !b.Static && (!(b.Mass > 0) || !geom.IsFinite(b.Mass)) {
		return fmt.Errorf("body %q: dynamic body needs a positive mass", b.Name)
	}
	if b.Inertia < 0 {
		return fmt.Errorf("body %q: inertia must not be negative", b.Name)
	}
	return nil
}

// invalid wraps collected problems into a single ErrInvalidConfig error.
func invalid(what string, problems []error) error {
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, what, errors.Join(problems...))
}
