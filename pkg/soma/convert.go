// Package soma converts between the four soma encodings and picks the
// encoding each morphology file format can store. Conversions are pure: the
// input soma is never modified and the result shares no memory with it.
//
// Conversions that change the soma's shape class go through an equivalent
// sphere whose surface area matches the source soma's, as reported by a
// SurfaceOracle.
package soma

import (
	"errors"
	"fmt"
	"math"

	"github.com/charmbracelet/log"
	"github.com/chazu/morphtool/internal/logger"
	"github.com/chazu/morphtool/pkg/contour"
	"github.com/chazu/morphtool/pkg/geom"
	"github.com/chazu/morphtool/pkg/morph"
)

// Options tunes soma conversion.
type Options struct {
	// Oracle supplies soma surface areas. When nil, or when it fails, only
	// three-point cylinders can be reduced to a sphere.
	Oracle SurfaceOracle
	// Levels is the number of cylinders fitted to a contour.
	// contour.DefaultLevels uses the contour's point count.
	Levels int
	// ContourPoints is the number of points on generated circular
	// contours. Zero means geom.DefaultCircleSamples.
	ContourPoints int
	// SphereAsContour writes single-point spheres to ASC as circular
	// contours instead of keeping them as spheres.
	SphereAsContour bool
	// Logger receives conversion progress. Nil means the shared logger.
	Logger *log.Logger
}

func (o Options) log() *log.Logger {
	return logger.Or(o.Logger)
}

// ConvertForFormat returns the soma encoding to write when saving to the
// given format:
//
//	source             SWC                 H5 / ASC
//	sphere             unchanged           unchanged (ASC: circle with SphereAsContour)
//	three-point        unchanged           equal-area circular contour
//	stack              unchanged           outline of the stack
//	contour            fitted stack        unchanged
func ConvertForFormat(s morph.Soma, f Format, opts Options) (morph.Soma, error) {
	if s == nil {
		return nil, errors.New("soma: nil soma")
	}
	switch f {
	case SWC:
		if c, ok := s.(morph.Contour); ok {
			return result(contourToStack(c, opts))
		}
		return s.Clone(), nil

	case ASC, H5:
		switch v := s.(type) {
		case morph.SinglePointSphere:
			if f == ASC && opts.SphereAsContour {
				return result(sphereToContour(v, opts))
			}
			return v.Clone(), nil
		case morph.ThreePointCylinder:
			return result(threePointToContour(v, opts))
		case morph.StackOfCylinders:
			return result(stackToContour(v, opts))
		case morph.Contour:
			return v.Clone(), nil
		}
	}
	return nil, &UnsupportedSomaConversionError{From: s.Kind(), To: f.String()}
}

// ConvertTo converts s into an explicitly requested encoding. Identity
// conversions return a copy. Conversions with no meaningful definition
// (into a three-point cylinder from a stack or contour, into a stack from a
// sphere or three-point cylinder) return UnsupportedSomaConversionError.
func ConvertTo(s morph.Soma, to morph.SomaKind, opts Options) (morph.Soma, error) {
	if s == nil {
		return nil, errors.New("soma: nil soma")
	}
	if s.Kind() == to {
		return s.Clone(), nil
	}

	switch v := s.(type) {
	case morph.SinglePointSphere:
		switch to {
		case morph.KindThreePointCylinder:
			return sphereToThreePoint(v), nil
		case morph.KindContour:
			return result(sphereToContour(v, opts))
		}
	case morph.ThreePointCylinder:
		switch to {
		case morph.KindSinglePointSphere:
			return result(SingleSphere(v, opts))
		case morph.KindContour:
			return result(threePointToContour(v, opts))
		}
	case morph.StackOfCylinders:
		switch to {
		case morph.KindSinglePointSphere:
			return result(SingleSphere(v, opts))
		case morph.KindContour:
			return result(stackToContour(v, opts))
		}
	case morph.Contour:
		switch to {
		case morph.KindStackOfCylinders:
			return result(contourToStack(v, opts))
		case morph.KindSinglePointSphere:
			stack, err := contourToStack(v, opts)
			if err != nil {
				return nil, err
			}
			return result(SingleSphere(stack, opts))
		}
	}
	return nil, &UnsupportedSomaConversionError{From: s.Kind(), To: to.String()}
}

// result drops the concrete variant on error so callers never see a
// zero-valued soma next to a non-nil error.
func result[T morph.Soma](s T, err error) (morph.Soma, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}

// SingleSphere reduces any soma to the sphere with the same surface area,
// centred on the soma's center.
func SingleSphere(s morph.Soma, opts Options) (morph.SinglePointSphere, error) {
	if sp, ok := s.(morph.SinglePointSphere); ok {
		return sp, nil
	}
	area, err := SurfaceArea(s, opts)
	if err != nil {
		return morph.SinglePointSphere{}, err
	}
	r := math.Sqrt(area / (4 * math.Pi))
	opts.log().Info("Reducing soma to a single point sphere", "soma", s.Kind(), "area", area, "radius", r)
	return morph.SinglePointSphere{Point: s.Center(), Radius: r}, nil
}

// SurfaceArea returns the soma's surface area from the oracle, falling back
// to the closed form for three-point cylinders.
func SurfaceArea(s morph.Soma, opts Options) (float64, error) {
	if opts.Oracle != nil {
		area, err := opts.Oracle.SurfaceArea(s)
		if err == nil && area > 0 && !math.IsInf(area, 0) {
			return area, nil
		}
		opts.log().Debug("surface oracle gave no usable area", "soma", s.Kind(), "area", area, "error", err)
	}
	if tp, ok := s.(morph.ThreePointCylinder); ok {
		return threePointArea(tp)
	}
	return 0, &SurfaceAreaUnavailableError{Kind: s.Kind(), Reason: "no surface oracle and no closed form"}
}

// ---------------------------------------------------------------------------
// Individual conversions
// ---------------------------------------------------------------------------

func contourToStack(c morph.Contour, opts Options) (morph.StackOfCylinders, error) {
	opts.log().Info("Converting soma contour into a stack of cylinders", "points", len(c.Points))
	stack, err := contour.Fitter{Levels: opts.Levels, Logger: opts.Logger}.Fit(c.Points)
	if err != nil {
		return morph.StackOfCylinders{}, fmt.Errorf("soma: contour to stack: %w", err)
	}
	return stack, nil
}

// sphereToThreePoint uses the NeuroMorpho layout: the center plus two points
// one radius away along Y, all with the sphere's radius.
func sphereToThreePoint(s morph.SinglePointSphere) morph.ThreePointCylinder {
	c, r := s.Point, s.Radius
	return morph.ThreePointCylinder{
		Points: [3]geom.Point3{c, c.Sub(geom.AxisY.Scale(r)), c.Add(geom.AxisY.Scale(r))},
		Radii:  [3]float64{r, r, r},
	}
}

func sphereToContour(s morph.SinglePointSphere, opts Options) (morph.Contour, error) {
	opts.log().Info("Converting soma sphere into a circular contour", "radius", s.Radius)
	pts, err := geom.SampleCircle(s.Point, s.Radius, geom.AxisZ, opts.ContourPoints)
	if err != nil {
		return morph.Contour{}, fmt.Errorf("soma: sphere to contour: %w", err)
	}
	return morph.Contour{Points: pts}, nil
}

// threePointToContour draws the equal-area sphere's great circle in the
// plane of greatest cross-section: the plane containing the cylinder axis
// whose normal is closest to +Z.
func threePointToContour(s morph.ThreePointCylinder, opts Options) (morph.Contour, error) {
	opts.log().Info("Converting three point soma into a circular contour")
	sphere, err := SingleSphere(s, opts)
	if err != nil {
		return morph.Contour{}, err
	}
	normal := geom.AxisZ
	if _, axis, err := geom.PrincipalAxis(s.Points[:]); err == nil {
		normal = crossSectionNormal(axis)
	}
	pts, err := geom.SampleCircle(s.Center(), sphere.Radius, normal, opts.ContourPoints)
	if err != nil {
		return morph.Contour{}, fmt.Errorf("soma: three point to contour: %w", err)
	}
	return morph.Contour{Points: pts}, nil
}

// crossSectionNormal returns the unit normal, closest to +Z, of a plane
// containing axis. An axis parallel to Z falls back to +X.
func crossSectionNormal(axis geom.Point3) geom.Point3 {
	for _, pref := range []geom.Point3{geom.AxisZ, geom.AxisX} {
		n := pref.Sub(axis.Scale(pref.Dot(axis)))
		if n.Length() > 1e-10 {
			u, _ := n.Normalize()
			return u
		}
	}
	return geom.AxisZ
}

// stackToContour outlines the stack in the plane spanned by its direction
// and a perpendicular: one side offset by +radius, the other by -radius and
// walked backwards, so the result is a closed loop.
func stackToContour(s morph.StackOfCylinders, opts Options) (morph.Contour, error) {
	opts.log().Info("Converting soma stack of cylinders into a contour", "points", len(s.Points))
	if len(s.Points) != len(s.Radii) {
		return morph.Contour{}, fmt.Errorf("soma: stack has %d points but %d radii", len(s.Points), len(s.Radii))
	}
	if len(s.Points) < 2 {
		return morph.Contour{}, &geom.DegenerateGeometryError{
			Op:     "stack to contour",
			Detail: fmt.Sprintf("need at least 2 cross-sections, got %d", len(s.Points)),
		}
	}

	dir, ok := s.Points[len(s.Points)-1].Sub(s.Points[0]).Normalize()
	if !ok {
		_, axis, err := geom.PrincipalAxis(s.Points)
		if err != nil {
			return morph.Contour{}, fmt.Errorf("soma: stack to contour: %w", err)
		}
		dir = axis
	}
	orth := perpendicular(dir)

	n := len(s.Points)
	pts := make([]geom.Point3, 2*n)
	for i, p := range s.Points {
		offset := orth.Scale(s.Radii[i])
		pts[i] = p.Add(offset)
		pts[2*n-1-i] = p.Sub(offset)
	}
	return morph.Contour{Points: pts}, nil
}

// perpendicular rotates dir by 90° about Z, or about X when dir is parallel
// to Z.
func perpendicular(dir geom.Point3) geom.Point3 {
	orth := geom.Pt(-dir.Y, dir.X, 0)
	if orth.Length() < 1e-10 {
		orth = geom.Pt(dir.X, -dir.Z, dir.Y)
	}
	u, _ := orth.Normalize()
	return u
}
