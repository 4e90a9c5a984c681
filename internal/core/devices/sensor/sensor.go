package sensor

import (
	"github.com/zeusync/robosim/internal/core/physics/body"
	"github.com/zeusync/robosim/internal/core/physics/geom"
)

const periodEpsilon = 1e-9

// Reading is one sensor output. Scalar kinds use Value, vector kinds use Values.
type Reading struct {
	Sensor    string    `json:"sensor"`
	Kind      string    `json:"kind"`
	Value     float64   `json:"value"`
	Values    []float64 `json:"values,omitempty"`
	Hit       bool      `json:"hit,omitempty"`
	Timestamp float64   `json:"timestamp"`
}

func (r Reading) Clone() Reading {
	if r.Values != nil {
		r.Values = append([]float64(nil), r.Values...)
	}
	return r
}

// State is the cached sensor state carried through snapshots.
type State struct {
	Last        Reading `json:"last"`
	HasReading  bool    `json:"has_reading"`
	SinceUpdate float64 `json:"since_update"`
}

type Sensor struct {
	Name   string
	Kind   Kind
	Body   body.Handle
	Mount  geom.Pose
	Params Params

	last        Reading
	hasReading  bool
	sinceUpdate float64
}

func New(name string, kind Kind, h body.Handle, mount geom.Pose, params Params) *Sensor {
	return &Sensor{Name: name, Kind: kind, Body: h, Mount: mount, Params: params}
}

func (s *Sensor) Last() (Reading, bool) { return s.last.Clone(), s.hasReading }

func (s *Sensor) State() State {
	return State{Last: s.last.Clone(), HasReading: s.hasReading, SinceUpdate: s.sinceUpdate}
}

func (s *Sensor) Restore(st State) {
	s.last = st.Last.Clone()
	s.hasReading = st.HasReading
	s.sinceUpdate = st.SinceUpdate
}

func (s *Sensor) Reset() {
	s.last, s.hasReading, s.sinceUpdate = Reading{}, false, 0
}

// WorldPose is the sensor pose in world coordinates.
func (s *Sensor) WorldPose(parent *body.Body) geom.Pose {
	return parent.Pose.Compose(s.Mount)
}

// Sample returns the sensor output at time now, dt after the previous call.
// A new value is computed on the first call and then whenever a full period has
// elapsed; otherwise the cached reading is returned and no noise is drawn.
func (s *Sensor) Sample(now, dt float64, parent *body.Body, scene []*body.Body, rng Gaussian) Reading {
	s.sinceUpdate += dt
	if s.hasReading && s.sinceUpdate < s.Params.Period()-periodEpsilon {
		return s.last.Clone()
	}
	s.sinceUpdate = 0

	r := Reading{Sensor: s.Name, Kind: s.Kind.String(), Timestamp: now}
	switch s.Kind {
	case KindDistance:
		r.Value, r.Hit = s.readDistance(parent, scene, rng)
	case KindLine:
		r.Value = s.readLine(s.WorldPose(parent).Position(), scene, rng)
	case KindLineArray:
		points := s.SamplePoints(parent)
		r.Values = make([]float64, len(points))
		for i, p := range points {
			r.Values[i] = s.readLine(p, scene, rng)
		}
	case KindIMU:
		v := parent.LinearVelocity
		r.Values = []float64{
			v[0] + s.Params.Noise.sample(rng),
			v[1] + s.Params.Noise.sample(rng),
			parent.AngularVelocity + s.Params.Noise.sample(rng),
		}
		r.Value = r.Values[2]
	case KindEncoder:
		r.Value = parent.AngularVelocity + s.Params.Noise.sample(rng)
	}

	s.last, s.hasReading = r, true
	return r.Clone()
}

func (s *Sensor) readDistance(parent *body.Body, scene []*body.Body, rng Gaussian) (float64, bool) {
	pose := s.WorldPose(parent)
	origin, dir := pose.Position(), pose.Forward()
	maxRange := s.Params.MaxRange

	value, hit := maxRange, false
	if step := s.Params.Step; step > 0 {
		for i := 0; float64(i)*step <= maxRange; i++ {
			d := float64(i) * step
			p := origin.Add(dir.Mul(d))
			if occupied(p, parent, scene) {
				value, hit = d, true
				break
			}
		}
	}
	return geom.Clamp(value+s.Params.Noise.sample(rng), 0, maxRange), hit
}

// occupied reports whether any solid body other than self covers p.
func occupied(p geom.Vec2, self *body.Body, scene []*body.Body) bool {
	for _, b := range scene {
		if b == nil || b == self || !b.Collides() {
			continue
		}
		if b.Contains(p) {
			return true
		}
	}
	return false
}

func (s *Sensor) readLine(p geom.Vec2, scene []*body.Body, rng Gaussian) float64 {
	signal := 0.0
	for _, b := range scene {
		intensity := b.Material().Field(body.FieldLineIntensity, 0)
		if intensity <= 0 {
			continue
		}
		if b.Contains(p) {
			signal = intensity
			break
		}
	}
	maxSignal := s.Params.MaxSignal
	if maxSignal <= 0 {
		maxSignal = 1
	}
	return geom.Clamp(signal/maxSignal+s.Params.Noise.sample(rng), 0, 1)
}

// SamplePoints are the world positions of a line array's elements, spread
// along the sensor's lateral axis.
func (s *Sensor) SamplePoints(parent *body.Body) []geom.Vec2 {
	base := s.WorldPose(parent)
	if s.Kind != KindLineArray {
		return []geom.Vec2{base.Position()}
	}
	n := s.Params.Count
	points := make([]geom.Vec2, n)
	for i := range points {
		offset := (float64(i) - float64(n-1)/2) * s.Params.Spacing
		points[i] = base.TransformPoint(geom.V(0, offset))
	}
	return points
}
