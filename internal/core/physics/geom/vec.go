// Package geom holds the 2D math used by the simulation kernel: vectors,
// poses, convex shapes, bounding boxes and the narrow-phase intersection test.
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Epsilon is the length below which a vector is treated as zero.
const Epsilon = 1e-9

// Vec2 is a 2D vector in metres (or metres per second).
type Vec2 = mgl64.Vec2

func V(x, y float64) Vec2 { return Vec2{x, y} }

// Cross returns the z component of a × b.
func Cross(a, b Vec2) float64 { return a[0]*b[1] - a[1]*b[0] }

// CrossSV returns s × v, the velocity of point v on a body spinning at s rad/s.
func CrossSV(s float64, v Vec2) Vec2 { return Vec2{-s * v[1], s * v[0]} }

// Perp rotates v by +90 degrees.
func Perp(v Vec2) Vec2 { return Vec2{-v[1], v[0]} }

// Normalize returns the unit vector along v. ok is false for zero or non-finite input.
func Normalize(v Vec2) (unit Vec2, ok bool) {
	l := v.Len()
	if l < Epsilon || !IsFinite(l) {
		return Vec2{}, false
	}
	return v.Mul(1 / l), true
}

func Distance(a, b Vec2) float64 { return b.Sub(a).Len() }

// ClampLength scales v down so that |v| <= limit.
func ClampLength(v Vec2, limit float64) Vec2 {
	l := v.Len()
	if limit < 0 || l <= limit || l < Epsilon {
		return v
	}
	return v.Mul(limit / l)
}

func IsFinite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

func Finite(v Vec2) bool { return IsFinite(v[0]) && IsFinite(v[1]) }

// Clamp bounds f to [lo, hi].
func Clamp(f, lo, hi float64) float64 {
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}
