package morph

import "github.com/chazu/morphtool/pkg/geom"

// Soma is the cell body of a morphology. It carries exactly one of four
// encodings; the set is closed and type switches over it are exhaustive.
type Soma interface {
	Kind() SomaKind
	// Center is the soma's reference point: the sphere center, or the mean
	// of the encoding's points.
	Center() geom.Point3
	// Clone returns a deep copy.
	Clone() Soma
	somaVariant() // marker method restricting implementations to this package
}

// ---------------------------------------------------------------------------
// Variants
// ---------------------------------------------------------------------------

// SinglePointSphere is a sphere given by its center and radius.
type SinglePointSphere struct {
	Point  geom.Point3 `json:"point" yaml:"point"`
	Radius float64     `json:"radius" yaml:"radius"`
}

func (SinglePointSphere) somaVariant() {}
func (SinglePointSphere) Kind() SomaKind { return KindSinglePointSphere }
func (s SinglePointSphere) Center() geom.Point3 { return s.Point }
func (s SinglePointSphere) Clone() Soma { return s }

// ThreePointCylinder is the NeuroMorpho soma encoding: three points along a
// cylinder axis, each with a radius. The first point is conventionally the
// center.
type ThreePointCylinder struct {
	Points [3]geom.Point3 `json:"points" yaml:"points"`
	Radii  [3]float64     `json:"radii" yaml:"radii"`
}

func (ThreePointCylinder) somaVariant() {}
func (ThreePointCylinder) Kind() SomaKind { return KindThreePointCylinder }
func (s ThreePointCylinder) Center() geom.Point3 {
	return geom.Mean(s.Points[:])
}
func (s ThreePointCylinder) Clone() Soma { return s }

// StackOfCylinders is a sequence of circular cross-sections along an axis.
// Consecutive pairs define frusta.
type StackOfCylinders struct {
	Points []geom.Point3 `json:"points" yaml:"points"`
	Radii  []float64     `json:"radii" yaml:"radii"`
}

func (StackOfCylinders) somaVariant() {}
func (StackOfCylinders) Kind() SomaKind { return KindStackOfCylinders }
func (s StackOfCylinders) Center() geom.Point3 {
	return geom.Mean(s.Points)
}
func (s StackOfCylinders) Clone() Soma {
	return StackOfCylinders{
		Points: append([]geom.Point3(nil), s.Points...),
		Radii:  append([]float64(nil), s.Radii...),
	}
}

// Contour is a closed planar polygon outlining the soma. The closing edge
// from the last point back to the first is implicit.
type Contour struct {
	Points []geom.Point3 `json:"points" yaml:"points"`
}

func (Contour) somaVariant() {}
func (Contour) Kind() SomaKind { return KindContour }
func (s Contour) Center() geom.Point3 {
	return geom.Mean(s.Points)
}
func (s Contour) Clone() Soma {
	return Contour{Points: append([]geom.Point3(nil), s.Points...)}
}

// SomaPoints returns the points of any soma encoding, in order.
func SomaPoints(s Soma) []geom.Point3 {
	switch v := s.(type) {
	case SinglePointSphere:
		return []geom.Point3{v.Point}
	case ThreePointCylinder:
		return v.Points[:]
	case StackOfCylinders:
		return v.Points
	case Contour:
		return v.Points
	}
	return nil
}
