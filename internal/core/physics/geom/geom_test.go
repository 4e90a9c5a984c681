package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tol = 1e-9

func mustBox(t *testing.T, w, h float64) Shape {
	t.Helper()
	s, err := NewBox(w, h)
	require.NoError(t, err)
	return s
}

func mustCircle(t *testing.T, r float64) Shape {
	t.Helper()
	s, err := NewCircle(r)
	require.NoError(t, err)
	return s
}

func TestPoseComposeInverse(t *testing.T) {
	p := NewPose(1, 2, math.Pi/2)
	child := NewPose(1, 0, 0.25)

	c := p.Compose(child)
	assert.InDelta(t, 1.0, c.X, tol)
	assert.InDelta(t, 3.0, c.Y, tol)
	assert.InDelta(t, math.Pi/2+0.25, c.Theta, tol)

	id := p.Compose(p.Inverse())
	assert.InDelta(t, 0, id.X, tol)
	assert.InDelta(t, 0, id.Y, tol)
	assert.InDelta(t, 0, id.Theta, tol)

	world := p.TransformPoint(V(0.3, -0.7))
	back := p.InverseTransformPoint(world)
	assert.InDelta(t, 0.3, back.X(), tol)
	assert.InDelta(t, -0.7, back.Y(), tol)
}

func TestNewPolygonValidation(t *testing.T) {
	_, err := NewPolygon([]Vec2{{0, 0}, {1, 0}})
	assert.ErrorIs(t, err, ErrTooFewVertices)

	_, err = NewPolygon([]Vec2{{0, 0}, {1, 0}, {2, 0}})
	assert.ErrorIs(t, err, ErrDegenerate)

	_, err = NewPolygon([]Vec2{{0, 0}, {2, 0}, {1, 0.2}, {2, 2}, {0, 2}})
	assert.ErrorIs(t, err, ErrNotConvex)

	_, err = NewCircle(0)
	assert.ErrorIs(t, err, ErrInvalidRadius)

	// Clockwise input is re-wound.
	s, err := NewPolygon([]Vec2{{0, 0}, {0, 1}, {1, 1}, {1, 0}})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, s.Area(), tol)
}

func TestShapeIsImmutable(t *testing.T) {
	src := []Vec2{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	s, err := NewPolygon(src)
	require.NoError(t, err)

	src[0] = Vec2{-5, -5}
	verts := s.Vertices()
	verts[1] = Vec2{9, 9}

	assert.Equal(t, Vec2{-1, -1}, s.Vertices()[0])
	assert.Equal(t, Vec2{1, -1}, s.Vertices()[1])
}

func TestContainsAndInertia(t *testing.T) {
	box := mustBox(t, 2, 1)
	pose := NewPose(5, 0, math.Pi/2)
	assert.True(t, box.Contains(V(5, 0.9), pose))
	assert.False(t, box.Contains(V(5.9, 0), pose))

	// Rectangle about its centre: m(w²+h²)/12.
	assert.InDelta(t, 1.0*(4+1)/12, box.Inertia(1), 1e-9)
	assert.InDelta(t, 0.5*2*0.25, mustCircle(t, 0.5).Inertia(2), tol)
}

func TestIntersectCircleCircle(t *testing.T) {
	a, b := mustCircle(t, 1), mustCircle(t, 1)

	m, ok := Intersect(a, NewPose(0, 0, 0), b, NewPose(1.5, 0, 0))
	require.True(t, ok)
	assert.InDelta(t, 1, m.Normal.X(), tol)
	assert.InDelta(t, 0.5, m.Penetration, tol)
	assert.InDelta(t, 1, m.Point.X(), tol)

	_, ok = Intersect(a, NewPose(0, 0, 0), b, NewPose(2.5, 0, 0))
	assert.False(t, ok)

	m, ok = Intersect(a, NewPose(0, 0, 0), b, NewPose(0, 0, 0))
	require.True(t, ok)
	assert.Equal(t, V(1, 0), m.Normal)
	assert.InDelta(t, 2, m.Penetration, tol)
}

func TestIntersectCirclePolygon(t *testing.T) {
	box := mustBox(t, 2, 2)
	ball := mustCircle(t, 0.5)

	m, ok := Intersect(ball, NewPose(-1.3, 0, 0), box, NewPose(0, 0, 0))
	require.True(t, ok)
	assert.InDelta(t, 1, m.Normal.X(), tol)
	assert.InDelta(t, 0.2, m.Penetration, tol)

	// Swapped order flips the normal.
	m, ok = Intersect(box, NewPose(0, 0, 0), ball, NewPose(-1.3, 0, 0))
	require.True(t, ok)
	assert.InDelta(t, -1, m.Normal.X(), tol)

	// Centre inside the box.
	m, ok = Intersect(ball, NewPose(0, 0.8, 0), box, NewPose(0, 0, 0))
	require.True(t, ok)
	assert.InDelta(t, -1, m.Normal.Y(), tol)
	assert.InDelta(t, 0.7, m.Penetration, tol)

	_, ok = Intersect(ball, NewPose(-1.6, 0, 0), box, NewPose(0, 0, 0))
	assert.False(t, ok)
}

func TestIntersectPolygonPolygon(t *testing.T) {
	a := mustBox(t, 2, 2)
	b := mustBox(t, 2, 2)

	m, ok := Intersect(a, NewPose(0, 0, 0), b, NewPose(1.8, 0.5, 0))
	require.True(t, ok)
	assert.InDelta(t, 1, m.Normal.X(), tol)
	assert.InDelta(t, 0, m.Normal.Y(), tol)
	assert.InDelta(t, 0.2, m.Penetration, tol)
	assert.InDelta(t, 0.8, m.Point.X(), tol)

	_, ok = Intersect(a, NewPose(0, 0, 0), b, NewPose(2.1, 0, 0))
	assert.False(t, ok)

	// Rotated square corner poking in.
	_, ok = Intersect(a, NewPose(0, 0, 0), b, NewPose(2.3, 0, math.Pi/4))
	assert.True(t, ok)
	_, ok = Intersect(a, NewPose(0, 0, 0), b, NewPose(2.5, 0, math.Pi/4))
	assert.False(t, ok)
}

func TestBounds(t *testing.T) {
	box := mustBox(t, 2, 2).Bounds(NewPose(1, 1, 0))
	assert.Equal(t, V(0, 0), box.Min)
	assert.Equal(t, V(2, 2), box.Max)
	assert.True(t, box.Overlaps(AABB{Min: V(2, 2), Max: V(3, 3)}))
	assert.False(t, box.Overlaps(AABB{Min: V(2.1, 0), Max: V(3, 3)}))
	assert.Equal(t, V(-1, -1), box.Expand(1).Min)
}

func TestClampLength(t *testing.T) {
	v := ClampLength(V(3, 4), 1)
	assert.InDelta(t, 1, v.Len(), tol)
	assert.Equal(t, V(0.3, 0.4), ClampLength(V(0.3, 0.4), 1))
	_, ok := Normalize(V(0, 0))
	assert.False(t, ok)
}
