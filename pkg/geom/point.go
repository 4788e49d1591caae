package geom

import (
	"fmt"
	"math"
)

// Point3 is a point or direction in 3D space. It is a value type; every
// operation returns a new point.
type Point3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Pt is shorthand for Point3{x, y, z}.
func Pt(x, y, z float64) Point3 {
	return Point3{X: x, Y: y, Z: z}
}

// Common unit vectors.
var (
	AxisX = Point3{X: 1}
	AxisY = Point3{Y: 1}
	AxisZ = Point3{Z: 1}
)

// Add returns p + q.
func (p Point3) Add(q Point3) Point3 {
	return Point3{p.X + q.X, p.Y + q.Y, p.Z + q.Z}
}

// Sub returns p - q.
func (p Point3) Sub(q Point3) Point3 {
	return Point3{p.X - q.X, p.Y - q.Y, p.Z - q.Z}
}

// Scale returns p * s.
func (p Point3) Scale(s float64) Point3 {
	return Point3{p.X * s, p.Y * s, p.Z * s}
}

// Dot returns the dot product of p and q.
func (p Point3) Dot(q Point3) float64 {
	return p.X*q.X + p.Y*q.Y + p.Z*q.Z
}

// Cross returns the cross product p × q.
func (p Point3) Cross(q Point3) Point3 {
	return Point3{
		p.Y*q.Z - p.Z*q.Y,
		p.Z*q.X - p.X*q.Z,
		p.X*q.Y - p.Y*q.X,
	}
}

// LengthSquared returns |p|².
func (p Point3) LengthSquared() float64 {
	return p.Dot(p)
}

// Length returns |p|.
func (p Point3) Length() float64 {
	return math.Sqrt(p.LengthSquared())
}

// Distance returns |p - q|.
func (p Point3) Distance(q Point3) float64 {
	return p.Sub(q).Length()
}

// Normalize returns the unit vector in the direction of p and false when
// p has zero length.
func (p Point3) Normalize() (Point3, bool) {
	l := p.Length()
	if l == 0 || math.IsNaN(l) {
		return Point3{}, false
	}
	return p.Scale(1 / l), true
}

// IsZero reports whether all components are exactly zero.
func (p Point3) IsZero() bool {
	return p.X == 0 && p.Y == 0 && p.Z == 0
}

// ApproxEqual reports whether p and q differ by at most tol per component.
func (p Point3) ApproxEqual(q Point3, tol float64) bool {
	return math.Abs(p.X-q.X) <= tol && math.Abs(p.Y-q.Y) <= tol && math.Abs(p.Z-q.Z) <= tol
}

// Array returns the components as an array.
func (p Point3) Array() [3]float64 {
	return [3]float64{p.X, p.Y, p.Z}
}

// String formats the point the way morphology tools print point rows.
func (p Point3) String() string {
	return fmt.Sprintf("(%g %g %g)", p.X, p.Y, p.Z)
}

// Mean returns the arithmetic mean of points. The mean of no points is the origin.
func Mean(points []Point3) Point3 {
	if len(points) == 0 {
		return Point3{}
	}
	var sum Point3
	for _, p := range points {
		sum = sum.Add(p)
	}
	return sum.Scale(1 / float64(len(points)))
}

// Point2 is a point in a plane's local coordinate system.
type Point2 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Sub returns p - q.
func (p Point2) Sub(q Point2) Point2 {
	return Point2{p.X - q.X, p.Y - q.Y}
}

// Dot returns the dot product of p and q.
func (p Point2) Dot(q Point2) float64 {
	return p.X*q.X + p.Y*q.Y
}
