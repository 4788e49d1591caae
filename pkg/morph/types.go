package morph

import (
	"fmt"
	"strconv"
	"strings"
)

// SectionType classifies a neurite section. The numeric values are the SWC
// structure identifiers; values above ApicalDendrite are custom types and are
// preserved as-is.
type SectionType int

const (
	Undefined      SectionType = iota // SWC 0
	SomaType                          // SWC 1, only used by readers
	Axon                              // SWC 2
	BasalDendrite                     // SWC 3
	ApicalDendrite                    // SWC 4
)

func (t SectionType) String() string {
	switch t {
	case Undefined:
		return "undefined"
	case SomaType:
		return "soma"
	case Axon:
		return "axon"
	case BasalDendrite:
		return "basal_dendrite"
	case ApicalDendrite:
		return "apical_dendrite"
	default:
		return fmt.Sprintf("custom%d", int(t))
	}
}

// ParseSectionType accepts the names produced by String, a few common
// aliases, and bare SWC codes.
func ParseSectionType(s string) (SectionType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.ReplaceAll(name, "-", "_")
	switch name {
	case "undefined", "":
		return Undefined, nil
	case "soma":
		return SomaType, nil
	case "axon":
		return Axon, nil
	case "basal_dendrite", "basal", "dendrite":
		return BasalDendrite, nil
	case "apical_dendrite", "apical":
		return ApicalDendrite, nil
	}
	if code, err := strconv.Atoi(strings.TrimPrefix(name, "custom")); err == nil && code >= 0 {
		return SectionType(code), nil
	}
	return Undefined, fmt.Errorf("morph: unknown section type %q", s)
}

// SomaKind names the soma encoding carried by a Soma value.
type SomaKind int

const (
	KindSinglePointSphere SomaKind = iota + 1
	KindThreePointCylinder
	KindStackOfCylinders
	KindContour
)

func (k SomaKind) String() string {
	switch k {
	case KindSinglePointSphere:
		return "single-point-sphere"
	case KindThreePointCylinder:
		return "three-point-cylinder"
	case KindStackOfCylinders:
		return "stack-of-cylinders"
	case KindContour:
		return "contour"
	default:
		return fmt.Sprintf("SomaKind(%d)", int(k))
	}
}

// ParseSomaKind is the inverse of SomaKind.String. Short forms such as
// "sphere", "cylinder", "stack" are accepted.
func ParseSomaKind(s string) (SomaKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single-point-sphere", "sphere", "single-point":
		return KindSinglePointSphere, nil
	case "three-point-cylinder", "three-point", "cylinder":
		return KindThreePointCylinder, nil
	case "stack-of-cylinders", "stack", "cylinders":
		return KindStackOfCylinders, nil
	case "contour":
		return KindContour, nil
	}
	return 0, fmt.Errorf("morph: unknown soma kind %q", s)
}
