package geom

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidRadius  = errors.New("circle radius must be positive and finite")
	ErrTooFewVertices = errors.New("polygon needs at least three vertices")
	ErrNotConvex      = errors.New("polygon is not convex")
	ErrDegenerate     = errors.New("polygon has zero area")
)

type ShapeKind uint8

const (
	ShapeCircle ShapeKind = iota
	ShapePolygon
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeCircle:
		return "circle"
	case ShapePolygon:
		return "polygon"
	default:
		return "unknown"
	}
}

// Shape is a circle or a convex polygon in a body's local frame.
// Values are immutable once built; polygon vertices are stored counter-clockwise.
type Shape struct {
	kind     ShapeKind
	radius   float64
	vertices []Vec2
}

func NewCircle(radius float64) (Shape, error) {
	if !(radius > 0) || !IsFinite(radius) {
		return Shape{}, fmt.Errorf("%w: %v", ErrInvalidRadius, radius)
	}
	return Shape{kind: ShapeCircle, radius: radius}, nil
}

// NewPolygon validates the outline and normalizes its winding to counter-clockwise.
func NewPolygon(vertices []Vec2) (Shape, error) {
	if len(vertices) < 3 {
		return Shape{}, fmt.Errorf("%w: got %d", ErrTooFewVertices, len(vertices))
	}
	verts := make([]Vec2, len(vertices))
	copy(verts, vertices)
	for i, v := range verts {
		if !Finite(v) {
			return Shape{}, fmt.Errorf("polygon vertex %d is not finite", i)
		}
	}

	area := signedArea(verts)
	if math.Abs(area) < Epsilon {
		return Shape{}, ErrDegenerate
	}
	if area < 0 {
		for i, j := 0, len(verts)-1; i < j; i, j = i+1, j-1 {
			verts[i], verts[j] = verts[j], verts[i]
		}
	}

	n := len(verts)
	for i := range verts {
		e1 := verts[(i+1)%n].Sub(verts[i])
		e2 := verts[(i+2)%n].Sub(verts[(i+1)%n])
		if Cross(e1, e2) < -Epsilon {
			return Shape{}, fmt.Errorf("%w: reflex corner at vertex %d", ErrNotConvex, (i+1)%n)
		}
	}

	return Shape{kind: ShapePolygon, vertices: verts}, nil
}

// NewBox builds a width × height rectangle centred on the local origin.
func NewBox(width, height float64) (Shape, error) {
	hw, hh := width/2, height/2
	return NewPolygon([]Vec2{{-hw, -hh}, {hw, -hh}, {hw, hh}, {-hw, hh}})
}

func (s Shape) Kind() ShapeKind { return s.kind }

func (s Shape) Radius() float64 { return s.radius }

// Vertices returns a copy of the local polygon outline (nil for circles).
func (s Shape) Vertices() []Vec2 {
	if s.kind != ShapePolygon {
		return nil
	}
	out := make([]Vec2, len(s.vertices))
	copy(out, s.vertices)
	return out
}

// WorldVertices returns the polygon outline placed at pose p.
func (s Shape) WorldVertices(p Pose) []Vec2 {
	if s.kind != ShapePolygon {
		return nil
	}
	out := make([]Vec2, len(s.vertices))
	for i, v := range s.vertices {
		out[i] = p.TransformPoint(v)
	}
	return out
}

func (s Shape) Bounds(p Pose) AABB {
	if s.kind == ShapeCircle {
		c := p.Position()
		r := Vec2{s.radius, s.radius}
		return AABB{Min: c.Sub(r), Max: c.Add(r)}
	}
	return BoundsOf(s.WorldVertices(p)...)
}

// Contains reports whether the world point lies inside (or on) the shape placed at p.
func (s Shape) Contains(point Vec2, p Pose) bool {
	local := p.InverseTransformPoint(point)
	if s.kind == ShapeCircle {
		return local.Dot(local) <= s.radius*s.radius
	}
	return containsConvex(s.vertices, local)
}

func (s Shape) Area() float64 {
	if s.kind == ShapeCircle {
		return math.Pi * s.radius * s.radius
	}
	return signedArea(s.vertices)
}

// BoundingRadius is the distance from the local origin to the farthest point of the shape.
func (s Shape) BoundingRadius() float64 {
	if s.kind == ShapeCircle {
		return s.radius
	}
	r := 0.0
	for _, v := range s.vertices {
		r = math.Max(r, v.Len())
	}
	return r
}

// Inertia returns the moment of inertia about the local origin for a uniform density body of the given mass.
func (s Shape) Inertia(mass float64) float64 {
	if s.kind == ShapeCircle {
		return 0.5 * mass * s.radius * s.radius
	}
	var num, den float64
	n := len(s.vertices)
	for i := range s.vertices {
		a, b := s.vertices[i], s.vertices[(i+1)%n]
		c := math.Abs(Cross(a, b))
		num += c * (a.Dot(a) + a.Dot(b) + b.Dot(b))
		den += c
	}
	if den < Epsilon {
		return 0
	}
	return mass * num / (6 * den)
}

func signedArea(verts []Vec2) float64 {
	area := 0.0
	n := len(verts)
	for i := range verts {
		area += Cross(verts[i], verts[(i+1)%n])
	}
	return area / 2
}

func centroid(verts []Vec2) Vec2 {
	var c Vec2
	for _, v := range verts {
		c = c.Add(v)
	}
	return c.Mul(1 / float64(len(verts)))
}

// containsConvex assumes counter-clockwise winding.
func containsConvex(verts []Vec2, p Vec2) bool {
	n := len(verts)
	for i := range verts {
		edge := verts[(i+1)%n].Sub(verts[i])
		if Cross(edge, p.Sub(verts[i])) < -Epsilon {
			return false
		}
	}
	return true
}

// outwardNormal of edge i of a counter-clockwise polygon.
func outwardNormal(verts []Vec2, i int) Vec2 {
	edge := verts[(i+1)%len(verts)].Sub(verts[i])
	n, _ := Normalize(Vec2{edge[1], -edge[0]})
	return n
}
