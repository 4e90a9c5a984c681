package config

import (
	"fmt"
	"math"

	"github.com/zeusync/robosim/internal/core/physics/body"
	"github.com/zeusync/robosim/internal/core/physics/geom"
)

const (
	StrokeMark = "mark"
	StrokeWall = "wall"

	// WallThickness is the thickness of the walls generated from Bounds.
	WallThickness = 0.05
)

// Stroke is a painted polyline. Marks are sensed by line sensors and do not
// collide; walls are solid.
type Stroke struct {
	Kind      string  `json:"kind" yaml:"kind"`
	Thickness float64 `json:"thickness" yaml:"thickness"`
	Intensity float64 `json:"intensity,omitempty" yaml:"intensity,omitempty"`
	Points    []Point `json:"points" yaml:"points"`
}

// Bounds fences the arena with four static walls.
type Bounds struct {
	MinX float64 `json:"min_x" yaml:"min_x"`
	MinY float64 `json:"min_y" yaml:"min_y"`
	MaxX float64 `json:"max_x" yaml:"max_x"`
	MaxY float64 `json:"max_y" yaml:"max_y"`
}

type World struct {
	Name     string         `json:"name" yaml:"name"`
	Seed     int64          `json:"seed" yaml:"seed"`
	Gravity  Point          `json:"gravity" yaml:"gravity"`
	Timestep float64        `json:"timestep" yaml:"timestep"`
	Terrain  []Body         `json:"terrain,omitempty" yaml:"terrain,omitempty"`
	Drawings []Stroke       `json:"drawings,omitempty" yaml:"drawings,omitempty"`
	Bounds   *Bounds        `json:"bounds,omitempty" yaml:"bounds,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

func (w *World) ApplyDefaults() {
	if w.Name == "" {
		w.Name = "world"
	}
	if w.Timestep == 0 {
		w.Timestep = DefaultTimestep
	}
	for i := range w.Drawings {
		if w.Drawings[i].Kind == "" {
			w.Drawings[i].Kind = StrokeMark
		}
		if w.Drawings[i].Thickness == 0 {
			w.Drawings[i].Thickness = 0.05
		}
		if w.Drawings[i].Kind == StrokeMark && w.Drawings[i].Intensity == 0 {
			w.Drawings[i].Intensity = 1
		}
	}
}

func (w *World) Validate() error {
	var problems []error
	if !(w.Timestep > 0) || math.IsInf(w.Timestep, 0) {
		problems = append(problems, fmt.Errorf("timestep must be positive, got %v", w.Timestep))
	}
	if !geom.Finite(w.Gravity.Vec()) {
		problems = append(problems, fmt.Errorf("gravity must be finite"))
	}

	names := make(map[string]struct{}, len(w.Terrain))
	for _, b := range w.Terrain {
		if err := b.validate(); err != nil {
			problems = append(problems, err)
			continue
		}
		if _, dup := names[b.Name]; dup {
			problems = append(problems, fmt.Errorf("duplicate terrain body %q", b.Name))
		}
		names[b.Name] = struct{}{}
	}

	for i, s := range w.Drawings {
		if s.Kind != StrokeMark && s.Kind != StrokeWall {
			problems = append(problems, fmt.Errorf("drawing %d: unknown kind %q", i, s.Kind))
		}
		if len(s.Points) < 2 {
			problems = append(problems, fmt.Errorf("drawing %d: needs at least two points", i))
		}
		if !(s.Thickness > 0) {
			problems = append(problems, fmt.Errorf("drawing %d: thickness must be positive", i))
		}
	}

	if b := w.Bounds; b != nil && (b.MaxX <= b.MinX || b.MaxY <= b.MinY) {
		problems = append(problems, fmt.Errorf("bounds are empty"))
	}
	return invalid("world "+w.Name, problems)
}

// StaticBodies expands terrain, drawings and bounds into body specs.
func (w *World) StaticBodies() ([]body.Spec, error) {
	var specs []body.Spec
	for _, b := range w.Terrain {
		spec, err := b.Spec(geom.Pose{})
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}

	for i, s := range w.Drawings {
		for j := 0; j+1 < len(s.Points); j++ {
			spec, ok, err := segmentBody(fmt.Sprintf("drawing_%d_%d", i, j), s.Points[j].Vec(), s.Points[j+1].Vec(), s.Thickness)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			if s.Kind == StrokeMark {
				spec.NoCollide = true
				spec.Material = body.Material{Name: "paint", LineIntensity: s.Intensity}
			}
			specs = append(specs, spec)
		}
	}

	if b := w.Bounds; b != nil {
		t := WallThickness
		corners := []geom.Vec2{{b.MinX, b.MinY}, {b.MaxX, b.MinY}, {b.MaxX, b.MaxY}, {b.MinX, b.MaxY}}
		for i, name := range []string{"bounds_south", "bounds_east", "bounds_north", "bounds_west"} {
			spec, _, err := segmentBody(name, corners[i], corners[(i+1)%4], t)
			if err != nil {
				return nil, err
			}
			specs = append(specs, spec)
		}
	}
	return specs, nil
}

// segmentBody builds a static box covering the segment a-b.
func segmentBody(name string, a, b geom.Vec2, thickness float64) (body.Spec, bool, error) {
	d := b.Sub(a)
	length := d.Len()
	if length < geom.Epsilon {
		return body.Spec{}, false, nil
	}
	shape, err := geom.NewBox(length+thickness, thickness)
	if err != nil {
		return body.Spec{}, false, fmt.Errorf("%s: %w", name, err)
	}
	mid := a.Add(b).Mul(0.5)
	return body.Spec{
		Name:     name,
		Shape:    shape,
		Material: body.DefaultMaterial(),
		Pose:     geom.NewPose(mid[0], mid[1], math.Atan2(d[1], d[0])),
		Static:   true,
	}, true, nil
}
