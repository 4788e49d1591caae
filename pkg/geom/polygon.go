package geom

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ring converts a polygon outline into a closed orb ring.
func ring(points []Point2) orb.Ring {
	r := make(orb.Ring, 0, len(points)+1)
	for _, p := range points {
		r = append(r, orb.Point{p.X, p.Y})
	}
	if len(r) > 0 && !r[0].Equal(r[len(r)-1]) {
		r = append(r, r[0])
	}
	return r
}

// PolygonArea returns the unsigned area enclosed by a 2D polygon outline.
// The outline is closed implicitly; fewer than 3 points enclose nothing.
func PolygonArea(points []Point2) float64 {
	if len(points) < 3 {
		return 0
	}
	return math.Abs(planar.Area(ring(points)))
}

// PolygonCentroid returns the area centroid and unsigned area of a 2D
// polygon outline.
func PolygonCentroid(points []Point2) (Point2, float64) {
	if len(points) < 3 {
		return Point2{}, 0
	}
	c, a := planar.CentroidArea(ring(points))
	return Point2{X: c[0], Y: c[1]}, math.Abs(a)
}

// FrustumLateralArea returns the lateral surface area of a truncated cone
// with end radii r0, r1 and height h.
func FrustumLateralArea(r0, r1, h float64) float64 {
	return math.Pi * (r0 + r1) * math.Hypot(h, r0-r1)
}

// DistanceToLineSquared returns the squared perpendicular distance from p to
// the infinite line through a and b. When a and b coincide it is the squared
// distance from p to a.
func DistanceToLineSquared(p, a, b Point3) float64 {
	ab := b.Sub(a)
	ap := p.Sub(a)
	denom := ab.LengthSquared()
	if denom == 0 {
		return ap.LengthSquared()
	}
	return ap.Cross(ab).LengthSquared() / denom
}
