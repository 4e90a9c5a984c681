package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Pose is a rigid 2D transform: translation (X, Y) and heading Theta in radians.
type Pose struct {
	X     float64 `json:"x" yaml:"x"`
	Y     float64 `json:"y" yaml:"y"`
	Theta float64 `json:"theta" yaml:"theta"`
}

func NewPose(x, y, theta float64) Pose { return Pose{X: x, Y: y, Theta: theta} }

func (p Pose) Position() Vec2 { return Vec2{p.X, p.Y} }

func (p Pose) Rotation() mgl64.Mat2 { return mgl64.Rotate2D(p.Theta) }

// Rotate applies only the rotational part of the pose to a direction.
func (p Pose) Rotate(v Vec2) Vec2 { return p.Rotation().Mul2x1(v) }

// TransformPoint maps a point from the pose's local frame into the parent frame.
func (p Pose) TransformPoint(local Vec2) Vec2 { return p.Rotate(local).Add(p.Position()) }

// InverseTransformPoint maps a parent-frame point into the pose's local frame.
func (p Pose) InverseTransformPoint(world Vec2) Vec2 {
	return mgl64.Rotate2D(-p.Theta).Mul2x1(world.Sub(p.Position()))
}

// Forward is the unit heading vector.
func (p Pose) Forward() Vec2 { return Vec2{math.Cos(p.Theta), math.Sin(p.Theta)} }

// Compose returns p ∘ child: child expressed in p's frame, lifted to p's parent frame.
func (p Pose) Compose(child Pose) Pose {
	pos := p.TransformPoint(child.Position())
	return Pose{X: pos[0], Y: pos[1], Theta: p.Theta + child.Theta}
}

// Inverse returns the pose q such that p.Compose(q) is the identity.
func (p Pose) Inverse() Pose {
	pos := mgl64.Rotate2D(-p.Theta).Mul2x1(p.Position().Mul(-1))
	return Pose{X: pos[0], Y: pos[1], Theta: -p.Theta}
}

func (p Pose) Translate(d Vec2) Pose {
	return Pose{X: p.X + d[0], Y: p.Y + d[1], Theta: p.Theta}
}

func (p Pose) IsFinite() bool {
	return IsFinite(p.X) && IsFinite(p.Y) && IsFinite(p.Theta)
}
