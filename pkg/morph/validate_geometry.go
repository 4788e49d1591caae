package morph

import (
	"fmt"

	"github.com/chazu/morphtool/pkg/geom"
)

// ---------------------------------------------------------------------------
// Tier 2: geometric validation (errors and warnings)
// ---------------------------------------------------------------------------

// planarityTolerance is the largest out-of-plane deviation of a contour,
// relative to its extent, that still counts as planar.
const planarityTolerance = 1e-6

// validateGeometry runs all Tier 2 geometric checks.
// Returns errors (blocking) and warnings (advisory) separately.
func validateGeometry(m *Morphology) ([]ValidationError, []ValidationWarning) {
	var errs []ValidationError
	var warnings []ValidationWarning

	errs = append(errs, validateDiameters(m)...)
	somaErrs, somaWarnings := validateSomaGeometry(m.Soma)
	errs = append(errs, somaErrs...)
	warnings = append(warnings, somaWarnings...)

	return errs, warnings
}

// validateDiameters checks that no diameter or perimeter is negative.
func validateDiameters(m *Morphology) []ValidationError {
	var errs []ValidationError
	for id, s := range m.All() {
		for i, d := range s.Diameters {
			if d < 0 {
				errs = append(errs, ValidationError{
					SectionID: id,
					Message:   fmt.Sprintf("diameter %d is %.4f, must be non-negative", i, d),
					Severity:  SeverityError,
				})
			}
		}
		for i, p := range s.Perimeters {
			if p < 0 {
				errs = append(errs, ValidationError{
					SectionID: id,
					Message:   fmt.Sprintf("perimeter %d is %.4f, must be non-negative", i, p),
					Severity:  SeverityError,
				})
			}
		}
	}
	return errs
}

// validateSomaGeometry checks radii and contour shape.
func validateSomaGeometry(s Soma) ([]ValidationError, []ValidationWarning) {
	var errs []ValidationError
	var warnings []ValidationWarning

	negative := func(r float64) {
		errs = append(errs, ValidationError{
			SectionID: NoSection,
			Message:   fmt.Sprintf("soma radius is %.4f, must be non-negative", r),
			Severity:  SeverityError,
		})
	}
	warn := func(format string, args ...any) {
		warnings = append(warnings, ValidationWarning{
			SectionID: NoSection,
			Message:   fmt.Sprintf(format, args...),
		})
	}

	switch v := s.(type) {
	case SinglePointSphere:
		if v.Radius < 0 {
			negative(v.Radius)
		} else if v.Radius == 0 {
			warn("soma sphere has zero radius")
		}
	case ThreePointCylinder:
		for _, r := range v.Radii {
			if r < 0 {
				negative(r)
			}
		}
	case StackOfCylinders:
		for _, r := range v.Radii {
			if r < 0 {
				negative(r)
			}
		}
	case Contour:
		if len(v.Points) < 3 {
			if len(v.Points) > 0 {
				warn("soma contour has %d points, at least 3 are needed to enclose an area", len(v.Points))
			}
			break
		}
		plane, err := geom.FitPlane(v.Points)
		if err != nil {
			warn("soma contour encloses no area: %v", err)
			break
		}
		extent := 0.0
		for _, p := range v.Points {
			extent = max(extent, p.Distance(plane.Origin))
		}
		if dev := plane.MaxDeviation(v.Points); dev > planarityTolerance*extent {
			warn("soma contour is not planar: max deviation %.4g", dev)
		}
	}
	return errs, warnings
}
