package geom

import "math"

// AABB is an axis-aligned bounding box used for coarse pruning.
type AABB struct {
	Min Vec2
	Max Vec2
}

// BoundsOf returns the box enclosing the given points.
func BoundsOf(points ...Vec2) AABB {
	box := AABB{
		Min: Vec2{math.Inf(1), math.Inf(1)},
		Max: Vec2{math.Inf(-1), math.Inf(-1)},
	}
	for _, p := range points {
		box.Min = Vec2{math.Min(box.Min[0], p[0]), math.Min(box.Min[1], p[1])}
		box.Max = Vec2{math.Max(box.Max[0], p[0]), math.Max(box.Max[1], p[1])}
	}
	return box
}

// Overlaps reports whether the boxes intersect. Touching boxes overlap.
func (b AABB) Overlaps(o AABB) bool {
	return b.Min[0] <= o.Max[0] && o.Min[0] <= b.Max[0] &&
		b.Min[1] <= o.Max[1] && o.Min[1] <= b.Max[1]
}

func (b AABB) Contains(p Vec2) bool {
	return p[0] >= b.Min[0] && p[0] <= b.Max[0] && p[1] >= b.Min[1] && p[1] <= b.Max[1]
}

func (b AABB) Union(o AABB) AABB {
	return AABB{
		Min: Vec2{math.Min(b.Min[0], o.Min[0]), math.Min(b.Min[1], o.Min[1])},
		Max: Vec2{math.Max(b.Max[0], o.Max[0]), math.Max(b.Max[1], o.Max[1])},
	}
}

func (b AABB) Expand(margin float64) AABB {
	return AABB{
		Min: Vec2{b.Min[0] - margin, b.Min[1] - margin},
		Max: Vec2{b.Max[0] + margin, b.Max[1] + margin},
	}
}

func (b AABB) Center() Vec2 { return b.Min.Add(b.Max).Mul(0.5) }
