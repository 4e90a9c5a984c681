package geom

import "math"

// Manifold describes one overlap: Normal is a unit vector pointing from shape A
// towards shape B, Penetration is the overlap depth along it.
type Manifold struct {
	Normal      Vec2
	Penetration float64
	Point       Vec2
}

// Intersect tests two placed shapes and returns at most one manifold.
// ok is false when the shapes do not overlap.
func Intersect(a Shape, pa Pose, b Shape, pb Pose) (m Manifold, ok bool) {
	if !a.Bounds(pa).Overlaps(b.Bounds(pb)) {
		return Manifold{}, false
	}

	switch {
	case a.kind == ShapeCircle && b.kind == ShapeCircle:
		return circleCircle(pa.Position(), a.radius, pb.Position(), b.radius)
	case a.kind == ShapeCircle && b.kind == ShapePolygon:
		return circlePolygon(pa.Position(), a.radius, b.WorldVertices(pb))
	case a.kind == ShapePolygon && b.kind == ShapeCircle:
		m, ok = circlePolygon(pb.Position(), b.radius, a.WorldVertices(pa))
		m.Normal = m.Normal.Mul(-1)
		return m, ok
	default:
		return polygonPolygon(a.WorldVertices(pa), b.WorldVertices(pb))
	}
}

func circleCircle(ca Vec2, ra float64, cb Vec2, rb float64) (Manifold, bool) {
	d := cb.Sub(ca)
	dist := d.Len()
	if dist >= ra+rb {
		return Manifold{}, false
	}
	n, ok := Normalize(d)
	if !ok {
		n = Vec2{1, 0}
	}
	return Manifold{
		Normal:      n,
		Penetration: ra + rb - dist,
		Point:       ca.Add(n.Mul(ra)),
	}, true
}

// circlePolygon returns the manifold with the circle as shape A.
func circlePolygon(c Vec2, r float64, verts []Vec2) (Manifold, bool) {
	if containsConvex(verts, c) {
		// Centre is inside: push out through the nearest face.
		best := math.Inf(-1)
		bestNormal := Vec2{1, 0}
		for i := range verts {
			n := outwardNormal(verts, i)
			sep := c.Sub(verts[i]).Dot(n)
			if sep > best {
				best, bestNormal = sep, n
			}
		}
		return Manifold{
			Normal:      bestNormal.Mul(-1),
			Penetration: r - best,
			Point:       c.Sub(bestNormal.Mul(best)),
		}, true
	}

	closest, edgeNormal := closestOnBoundary(verts, c)
	d := closest.Sub(c)
	dist := d.Len()
	if dist >= r {
		return Manifold{}, false
	}
	n, ok := Normalize(d)
	if !ok {
		n = edgeNormal.Mul(-1)
	}
	return Manifold{Normal: n, Penetration: r - dist, Point: closest}, true
}

func closestOnBoundary(verts []Vec2, p Vec2) (Vec2, Vec2) {
	bestDist := math.Inf(1)
	var best, bestNormal Vec2
	n := len(verts)
	for i := range verts {
		a, b := verts[i], verts[(i+1)%n]
		q := closestOnSegment(a, b, p)
		if d := q.Sub(p).Dot(q.Sub(p)); d < bestDist {
			bestDist, best, bestNormal = d, q, outwardNormal(verts, i)
		}
	}
	return best, bestNormal
}

func closestOnSegment(a, b, p Vec2) Vec2 {
	ab := b.Sub(a)
	den := ab.Dot(ab)
	if den < Epsilon {
		return a
	}
	t := Clamp(p.Sub(a).Dot(ab)/den, 0, 1)
	return a.Add(ab.Mul(t))
}

func project(verts []Vec2, axis Vec2) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range verts {
		d := v.Dot(axis)
		lo, hi = math.Min(lo, d), math.Max(hi, d)
	}
	return lo, hi
}

// polygonPolygon runs SAT over the edge normals of both polygons.
// Ties keep the first axis seen, so A's faces win over B's.
func polygonPolygon(va, vb []Vec2) (Manifold, bool) {
	best := math.Inf(1)
	var axis Vec2
	referenceA := true

	test := func(verts []Vec2, fromA bool) bool {
		for i := range verts {
			n := outwardNormal(verts, i)
			loA, hiA := project(va, n)
			loB, hiB := project(vb, n)
			overlap := math.Min(hiA, hiB) - math.Max(loA, loB)
			if overlap <= 0 {
				return false
			}
			if overlap < best {
				best, axis, referenceA = overlap, n, fromA
			}
		}
		return true
	}
	if !test(va, true) || !test(vb, false) {
		return Manifold{}, false
	}

	if centroid(vb).Sub(centroid(va)).Dot(axis) < 0 {
		axis = axis.Mul(-1)
	}

	var point Vec2
	if referenceA {
		point = support(vb, axis.Mul(-1))
	} else {
		point = support(va, axis)
	}
	return Manifold{Normal: axis, Penetration: best, Point: point}, true
}

// support returns the vertex farthest along dir.
func support(verts []Vec2, dir Vec2) Vec2 {
	best := verts[0]
	bestDot := best.Dot(dir)
	for _, v := range verts[1:] {
		if d := v.Dot(dir); d > bestDot {
			best, bestDot = v, d
		}
	}
	return best
}
