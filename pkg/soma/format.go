package soma

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format is a morphology file format with its own soma capabilities.
type Format int

const (
	SWC Format = iota + 1 // sphere, three-point cylinder or stack of cylinders
	ASC                   // contours
	H5                    // contours and spheres
)

func (f Format) String() string {
	switch f {
	case SWC:
		return "swc"
	case ASC:
		return "asc"
	case H5:
		return "h5"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Ext returns the file extension for f, with the leading dot.
func (f Format) Ext() string {
	return "." + f.String()
}

// ParseFormat accepts a format name or file extension, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "swc":
		return SWC, nil
	case "asc":
		return ASC, nil
	case "h5":
		return H5, nil
	}
	return 0, fmt.Errorf("soma: unknown morphology format %q", s)
}

// FormatForPath returns the format implied by a file name's extension.
func FormatForPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}
