package geom

import "fmt"

// DegenerateGeometryError reports input whose shape does not allow the
// requested computation: coincident points, collinear contours, zero-length
// axes and the like.
type DegenerateGeometryError struct {
	Op     string // operation that failed, e.g. "principal axis"
	Detail string
}

func (e *DegenerateGeometryError) Error() string {
	return fmt.Sprintf("geom: degenerate geometry in %s: %s", e.Op, e.Detail)
}

func degenerate(op, format string, args ...any) error {
	return &DegenerateGeometryError{Op: op, Detail: fmt.Sprintf(format, args...)}
}
