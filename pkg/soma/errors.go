package soma

import (
	"fmt"

	"github.com/chazu/morphtool/pkg/morph"
)

// UnsupportedSomaConversionError is returned when no conversion exists
// from a soma encoding to a requested encoding or format.
type UnsupportedSomaConversionError struct {
	From morph.SomaKind
	To   string // target soma kind or file format
}

func (e *UnsupportedSomaConversionError) Error() string {
	return fmt.Sprintf("soma: no conversion from %s to %s", e.From, e.To)
}

// SurfaceAreaUnavailableError is returned when a conversion needs the soma
// surface area but neither the oracle nor a closed form can provide it.
type SurfaceAreaUnavailableError struct {
	Kind   morph.SomaKind
	Reason string
}

func (e *SurfaceAreaUnavailableError) Error() string {
	return fmt.Sprintf("soma: surface area of %s soma unavailable: %s", e.Kind, e.Reason)
}
