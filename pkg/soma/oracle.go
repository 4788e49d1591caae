package soma

import (
	"math"
	"sort"

	"github.com/chazu/morphtool/pkg/geom"
	"github.com/chazu/morphtool/pkg/morph"
)

// SurfaceOracle computes the surface area of a soma the way a downstream
// simulator would. Conversions that must preserve surface area ask the
// oracle first.
type SurfaceOracle interface {
	SurfaceArea(s morph.Soma) (float64, error)
}

// OracleFunc adapts a function to SurfaceOracle.
type OracleFunc func(s morph.Soma) (float64, error)

// SurfaceArea calls f(s).
func (f OracleFunc) SurfaceArea(s morph.Soma) (float64, error) {
	return f(s)
}

// ClosedForm is a SurfaceOracle with exact formulas for spheres and
// cylinder encodings. Cylinder encodings are measured as the sum of the
// lateral areas of the frusta between consecutive cross-sections, without
// end caps. Contours have no closed form.
type ClosedForm struct{}

// SurfaceArea implements SurfaceOracle.
func (ClosedForm) SurfaceArea(s morph.Soma) (float64, error) {
	switch v := s.(type) {
	case morph.SinglePointSphere:
		return 4 * math.Pi * v.Radius * v.Radius, nil
	case morph.ThreePointCylinder:
		return threePointArea(v)
	case morph.StackOfCylinders:
		if len(v.Points) < 2 || len(v.Points) != len(v.Radii) {
			return 0, &SurfaceAreaUnavailableError{Kind: v.Kind(), Reason: "stack needs at least 2 cross-sections"}
		}
		return stackArea(v.Points, v.Radii), nil
	case morph.Contour:
		return 0, &SurfaceAreaUnavailableError{Kind: v.Kind(), Reason: "no closed form for contours"}
	}
	return 0, &SurfaceAreaUnavailableError{Reason: "no soma"}
}

// stackArea sums frustum lateral areas over consecutive cross-sections.
func stackArea(points []geom.Point3, radii []float64) float64 {
	var area float64
	for i := 1; i < len(points); i++ {
		h := points[i].Distance(points[i-1])
		area += geom.FrustumLateralArea(radii[i-1], radii[i], h)
	}
	return area
}

// threePointArea orders the three cross-sections along the cylinder axis
// and sums the two frusta between them. For the NeuroMorpho layout (center,
// center - r, center + r) this is 4πr².
func threePointArea(s morph.ThreePointCylinder) (float64, error) {
	_, axis, err := geom.PrincipalAxis(s.Points[:])
	if err != nil {
		return 0, &SurfaceAreaUnavailableError{Kind: s.Kind(), Reason: "zero-length cylinder axis"}
	}
	idx := []int{0, 1, 2}
	sort.SliceStable(idx, func(a, b int) bool {
		return s.Points[idx[a]].Dot(axis) < s.Points[idx[b]].Dot(axis)
	})
	points := make([]geom.Point3, 3)
	radii := make([]float64, 3)
	for i, j := range idx {
		points[i] = s.Points[j]
		radii[i] = s.Radii[j]
	}
	return stackArea(points, radii), nil
}
