// Package contour fits a stack of cylinders to a planar soma contour.
//
// The contour is projected onto its best-fit plane, its principal axis
// becomes the stack axis, and at evenly spaced levels along that axis the
// contour's half-width gives each cylinder's radius.
package contour

import (
	"fmt"
	"math"

	"github.com/charmbracelet/log"
	"github.com/chazu/morphtool/internal/logger"
	"github.com/chazu/morphtool/pkg/geom"
	"github.com/chazu/morphtool/pkg/morph"
)

const (
	// DefaultLevels selects one level per contour point.
	DefaultLevels = 0

	// planarTolerance is the out-of-plane deviation, relative to the
	// contour extent, above which a warning is logged before projecting.
	planarTolerance = 1e-6

	// areaTolerance is the enclosed area, relative to the squared extent,
	// under which a contour is considered flat.
	areaTolerance = 1e-12

	// residualTolerance is the relative slack within which two candidate
	// radii fit a level equally well.
	residualTolerance = 1e-9
)

// InsufficientContourPointsError is returned for contours with fewer than
// three points.
type InsufficientContourPointsError struct {
	Got int
}

func (e *InsufficientContourPointsError) Error() string {
	return fmt.Sprintf("contour: need at least 3 points, got %d", e.Got)
}

// Fitter converts contours into stacks of cylinders.
type Fitter struct {
	// Levels is the number of cylinders in the output stack.
	// DefaultLevels uses the number of contour points.
	Levels int
	// Logger receives non-planarity warnings. Nil means the shared logger.
	Logger *log.Logger
}

// Fit fits a stack of nLevels cylinders to the closed contour through points.
func Fit(points []geom.Point3, nLevels int) (morph.StackOfCylinders, error) {
	return Fitter{Levels: nLevels}.Fit(points)
}

// Fit fits a stack of cylinders to the closed contour through points. The
// stack centres lie on the contour's principal axis, in axis order.
func (f Fitter) Fit(points []geom.Point3) (morph.StackOfCylinders, error) {
	if len(points) < 3 {
		return morph.StackOfCylinders{}, &InsufficientContourPointsError{Got: len(points)}
	}
	if f.Levels < 0 {
		return morph.StackOfCylinders{}, fmt.Errorf("contour: level count must be non-negative, got %d", f.Levels)
	}

	plane, err := geom.FitPlane(points)
	if err != nil {
		return morph.StackOfCylinders{}, fmt.Errorf("contour: %w", err)
	}

	extent := 0.0
	for _, p := range points {
		extent = math.Max(extent, p.Distance(plane.Origin))
	}
	if dev := plane.MaxDeviation(points); dev > planarTolerance*extent {
		logger.Or(f.Logger).Warn("contour is not planar, projecting onto best-fit plane",
			"deviation", dev, "points", len(points))
	}

	flat := make([]geom.Point2, len(points))
	lifted := make([]geom.Point3, len(points))
	for i, p := range points {
		flat[i] = plane.To2D(p)
		lifted[i] = geom.Pt(flat[i].X, flat[i].Y, 0)
	}
	if area := geom.PolygonArea(flat); area <= areaTolerance*extent*extent {
		return morph.StackOfCylinders{}, &geom.DegenerateGeometryError{
			Op:     "contour fit",
			Detail: "contour encloses no area",
		}
	}

	_, dir, err := geom.PrincipalAxis(lifted)
	if err != nil {
		return morph.StackOfCylinders{}, fmt.Errorf("contour: %w", err)
	}
	axis := geom.Point2{X: dir.X, Y: dir.Y}
	across := geom.Point2{X: -axis.Y, Y: axis.X}

	// Contour in (along, across) coordinates.
	ts := make([]float64, len(flat))
	ss := make([]float64, len(flat))
	tmin, tmax := math.Inf(1), math.Inf(-1)
	for i, q := range flat {
		ts[i] = q.Dot(axis)
		ss[i] = q.Dot(across)
		tmin = math.Min(tmin, ts[i])
		tmax = math.Max(tmax, ts[i])
	}

	n := f.Levels
	if n == DefaultLevels {
		n = len(points)
	}

	stack := morph.StackOfCylinders{
		Points: make([]geom.Point3, n),
		Radii:  make([]float64, n),
	}
	step := (tmax - tmin) / float64(n)
	for k := 0; k < n; k++ {
		t := tmin + (float64(k)+0.5)*step
		ds := crossings(ts, ss, t)
		if len(ds) == 0 {
			return morph.StackOfCylinders{}, &geom.DegenerateGeometryError{
				Op:     "contour fit",
				Detail: fmt.Sprintf("level %d does not cross the contour", k),
			}
		}
		stack.Points[k] = plane.From2D(geom.Point2{X: axis.X * t, Y: axis.Y * t})
		stack.Radii[k] = fitRadius(ds)
	}
	return stack, nil
}

// crossings returns the distances from the axis at which the closed polygon
// (ts, ss) crosses the perpendicular line at position t. Edges are treated
// as half-open so a vertex lying exactly on the line is counted once.
func crossings(ts, ss []float64, t float64) []float64 {
	var ds []float64
	n := len(ts)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		t0, t1 := ts[i], ts[j]
		if t0 == t1 {
			continue
		}
		if (t0 <= t && t < t1) || (t1 <= t && t < t0) {
			frac := (t - t0) / (t1 - t0)
			s := ss[i] + frac*(ss[j]-ss[i])
			ds = append(ds, math.Abs(s))
		}
	}
	return ds
}

// fitRadius returns the radius r minimising Σ(d - r)² over the crossing
// distances, that is the squared distances of the crossings to a circle of
// radius r. The optimum is mean(d); a crossing distance that fits equally
// well and is smaller wins.
func fitRadius(ds []float64) float64 {
	var sum, sumSq float64
	for _, d := range ds {
		sum += d
		sumSq += d * d
	}
	best := sum / float64(len(ds))
	bestResidual := residual(ds, best)

	chosen := best
	for _, d := range ds {
		r := residual(ds, d)
		if r <= bestResidual+residualTolerance*math.Max(bestResidual, sumSq) && d < chosen {
			chosen = d
		}
	}
	return chosen
}

func residual(ds []float64, r float64) float64 {
	var sum float64
	for _, d := range ds {
		e := d - r
		sum += e * e
	}
	return sum
}
