package morph

import "fmt"

// ValidationSeverity indicates whether a validation finding makes a
// morphology unusable or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks processing
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// NoSection is the SectionID of findings about the soma or the morphology
// as a whole.
const NoSection = -1

// ValidationError describes a single validation finding.
type ValidationError struct {
	SectionID int                // pre-order section id, or NoSection
	Message   string             // human-readable description
	Severity  ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.SectionID == NoSection {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] section %d: %s", e.Severity, e.SectionID, e.Message)
}

// ValidationWarning describes a non-blocking advisory finding.
type ValidationWarning struct {
	SectionID int
	Message   string
}

// ValidationResult bundles errors (blocking) and warnings (advisory)
// from all validation tiers.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// OK reports whether no blocking errors were found.
func (r ValidationResult) OK() bool {
	return len(r.Errors) == 0
}

// Validate runs the Tier 1 structural checks and returns every finding.
// An empty slice means the morphology is well formed. It never mutates m.
func Validate(m *Morphology) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateSoma(m)...)
	errs = append(errs, validateArrays(m)...)
	errs = append(errs, validateLinks(m)...)
	return errs
}

// ValidateAll runs the structural and geometric tiers and separates
// errors from warnings.
func ValidateAll(m *Morphology) ValidationResult {
	// Tier 1: structural.
	tier1 := Validate(m)

	// Tier 2: geometric.
	tier2Errs, tier2Warnings := validateGeometry(m)

	var result ValidationResult
	for _, e := range tier1 {
		if e.Severity == SeverityWarning {
			result.Warnings = append(result.Warnings, ValidationWarning{
				SectionID: e.SectionID,
				Message:   e.Message,
			})
		} else {
			result.Errors = append(result.Errors, e)
		}
	}
	result.Errors = append(result.Errors, tier2Errs...)
	result.Warnings = append(result.Warnings, tier2Warnings...)
	return result
}

// validateSoma checks that the soma is present and its arrays are
// non-empty and consistent.
func validateSoma(m *Morphology) []ValidationError {
	somaErr := func(format string, args ...any) ValidationError {
		return ValidationError{
			SectionID: NoSection,
			Message:   fmt.Sprintf(format, args...),
			Severity:  SeverityError,
		}
	}

	switch s := m.Soma.(type) {
	case nil:
		return []ValidationError{somaErr("morphology has no soma")}
	case StackOfCylinders:
		if len(s.Points) == 0 {
			return []ValidationError{somaErr("soma stack has no points")}
		}
		if len(s.Points) != len(s.Radii) {
			return []ValidationError{somaErr("soma stack has %d points but %d radii", len(s.Points), len(s.Radii))}
		}
	case Contour:
		if len(s.Points) == 0 {
			return []ValidationError{somaErr("soma contour has no points")}
		}
	}
	return nil
}

// validateArrays checks that every section has points and that its
// parallel arrays have matching lengths.
func validateArrays(m *Morphology) []ValidationError {
	var errs []ValidationError
	for id, s := range m.All() {
		if len(s.Points) == 0 {
			errs = append(errs, ValidationError{
				SectionID: id,
				Message:   "section has no points",
				Severity:  SeverityError,
			})
			continue
		}
		if len(s.Diameters) != len(s.Points) {
			errs = append(errs, ValidationError{
				SectionID: id,
				Message:   fmt.Sprintf("section has %d points but %d diameters", len(s.Points), len(s.Diameters)),
				Severity:  SeverityError,
			})
		}
		if s.Perimeters != nil && len(s.Perimeters) != len(s.Points) {
			errs = append(errs, ValidationError{
				SectionID: id,
				Message:   fmt.Sprintf("section has %d points but %d perimeters", len(s.Points), len(s.Perimeters)),
				Severity:  SeverityError,
			})
		}
	}
	return errs
}

// validateLinks checks parent back-references and the shared branch point:
// every child must start at its parent's last point.
func validateLinks(m *Morphology) []ValidationError {
	var errs []ValidationError
	for i, r := range m.Roots {
		if r.parent != nil {
			errs = append(errs, ValidationError{
				SectionID: NoSection,
				Message:   fmt.Sprintf("root %d has a parent", i),
				Severity:  SeverityError,
			})
		}
	}
	for id, s := range m.All() {
		for j, c := range s.Children {
			if c.parent != s {
				errs = append(errs, ValidationError{
					SectionID: id,
					Message:   fmt.Sprintf("child %d does not link back to its parent", j),
					Severity:  SeverityError,
				})
			}
			if len(s.Points) == 0 || len(c.Points) == 0 {
				continue
			}
			if c.FirstPoint() != s.LastPoint() {
				errs = append(errs, ValidationError{
					SectionID: id,
					Message: fmt.Sprintf("child %d starts at %v, not at the parent's last point %v",
						j, c.FirstPoint(), s.LastPoint()),
					Severity: SeverityError,
				})
			}
		}
	}
	return errs
}
