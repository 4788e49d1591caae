package geom

import (
	"fmt"
	"math"
)

// DefaultCircleSamples is the number of points used when a soma is
// rendered as a circular contour.
const DefaultCircleSamples = 20

// Plane is an oriented plane. Normal is expected to be a unit vector;
// NewPlane guarantees it.
type Plane struct {
	Origin Point3
	Normal Point3
}

// NewPlane builds a plane through origin with the given normal, which is
// normalized. A zero normal is degenerate.
func NewPlane(origin, normal Point3) (Plane, error) {
	n, ok := normal.Normalize()
	if !ok {
		return Plane{}, degenerate("plane", "zero normal")
	}
	return Plane{Origin: origin, Normal: n}, nil
}

// Basis returns an orthonormal in-plane basis (U, V) with U × V = Normal.
// U is derived from the standard axis least aligned with the normal, so a
// plane with normal +Z has U = +X and V = +Y.
func (p Plane) Basis() (u, v Point3) {
	n := p.Normal
	helper := AxisX
	best := math.Abs(n.X)
	if ay := math.Abs(n.Y); ay < best {
		helper, best = AxisY, ay
	}
	if az := math.Abs(n.Z); az < best {
		helper = AxisZ
	}
	u, _ = helper.Sub(n.Scale(helper.Dot(n))).Normalize()
	v = n.Cross(u)
	return u, v
}

// SignedDistance returns the distance of q from the plane, positive on the
// side the normal points to.
func (p Plane) SignedDistance(q Point3) float64 {
	return q.Sub(p.Origin).Dot(p.Normal)
}

// Project returns the orthogonal projection of q onto the plane.
func (p Plane) Project(q Point3) Point3 {
	return q.Sub(p.Normal.Scale(p.SignedDistance(q)))
}

// To2D expresses q in the plane's (U, V) coordinates relative to Origin.
// The out-of-plane component is discarded.
func (p Plane) To2D(q Point3) Point2 {
	u, v := p.Basis()
	d := q.Sub(p.Origin)
	return Point2{X: d.Dot(u), Y: d.Dot(v)}
}

// From2D maps plane coordinates back into 3D.
func (p Plane) From2D(q Point2) Point3 {
	u, v := p.Basis()
	return p.Origin.Add(u.Scale(q.X)).Add(v.Scale(q.Y))
}

// MaxDeviation returns the largest absolute distance of any point from the plane.
func (p Plane) MaxDeviation(points []Point3) float64 {
	var dev float64
	for _, q := range points {
		dev = math.Max(dev, math.Abs(p.SignedDistance(q)))
	}
	return dev
}

// ProjectToPlane orthogonally projects points onto the plane through the
// origin with the given normal and returns their 2D coordinates in that
// plane's basis.
func ProjectToPlane(points []Point3, normal Point3) ([]Point2, error) {
	plane, err := NewPlane(Point3{}, normal)
	if err != nil {
		return nil, err
	}
	out := make([]Point2, len(points))
	for i, q := range points {
		out[i] = plane.To2D(q)
	}
	return out, nil
}

// SampleCircle returns n points evenly spaced on the circle of the given
// radius around center, lying in the plane with the given normal. The first
// sample sits at angle zero along the plane's U axis. n <= 0 selects
// DefaultCircleSamples.
func SampleCircle(center Point3, radius float64, normal Point3, n int) ([]Point3, error) {
	if radius < 0 || math.IsNaN(radius) {
		return nil, fmt.Errorf("geom: circle radius must be non-negative, got %g", radius)
	}
	if n <= 0 {
		n = DefaultCircleSamples
	}
	plane, err := NewPlane(center, normal)
	if err != nil {
		return nil, err
	}
	out := make([]Point3, n)
	for k := range out {
		theta := 2 * math.Pi * float64(k) / float64(n)
		out[k] = plane.From2D(Point2{X: radius * math.Cos(theta), Y: radius * math.Sin(theta)})
	}
	return out, nil
}
