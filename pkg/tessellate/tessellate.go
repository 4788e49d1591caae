// Package tessellate turns somata and neurite sections into kernel solids
// and triangle meshes. One mesh is produced for the soma and one per
// section.
package tessellate

import (
	"errors"
	"fmt"
	"sort"

	"github.com/chazu/morphtool/pkg/contour"
	"github.com/chazu/morphtool/pkg/geom"
	"github.com/chazu/morphtool/pkg/kernel"
	"github.com/chazu/morphtool/pkg/morph"
)

// ErrNoGeometry is returned when a soma or section has no segment that
// can be turned into a solid.
var ErrNoGeometry = errors.New("tessellate: no solid geometry")

// profile is a sequence of cross-sections along a cylinder-like soma or a
// section: consecutive entries are joined by frusta.
type profile struct {
	points []geom.Point3
	radii  []float64
}

// solid unions the frusta between consecutive cross-sections. Zero-length
// segments and segments with two zero radii are skipped.
func (p profile) solid(k kernel.Kernel) (kernel.Solid, error) {
	var parts []kernel.Solid
	for i := 1; i < len(p.points); i++ {
		a, b := p.points[i-1], p.points[i]
		ra, rb := p.radii[i-1], p.radii[i]
		if a == b || ra+rb <= 0 {
			continue
		}
		f, err := k.Frustum(a, b, ra, rb)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i-1, err)
		}
		parts = append(parts, f)
	}
	if len(parts) == 0 {
		return nil, ErrNoGeometry
	}
	return k.Union(parts...), nil
}

// SomaSolid builds a solid for s. Cylinder encodings become unions of
// frusta; a contour is first fitted to a stack of cylinders with the given
// level count (contour.DefaultLevels for one level per point).
func SomaSolid(k kernel.Kernel, s morph.Soma, levels int) (kernel.Solid, error) {
	switch v := s.(type) {
	case morph.SinglePointSphere:
		return k.Sphere(v.Point, v.Radius)
	case nil:
		return nil, errors.New("tessellate: nil soma")
	}
	p, err := somaProfile(s, levels)
	if err != nil {
		return nil, err
	}
	return p.solid(k)
}

// somaProfile returns the cross-sections of a cylinder-like or contour
// soma, ordered along its axis.
func somaProfile(s morph.Soma, levels int) (profile, error) {
	switch v := s.(type) {
	case morph.ThreePointCylinder:
		return axisOrdered(v.Points[:], v.Radii[:])
	case morph.StackOfCylinders:
		if len(v.Points) != len(v.Radii) {
			return profile{}, fmt.Errorf("tessellate: stack has %d points but %d radii", len(v.Points), len(v.Radii))
		}
		return profile{points: v.Points, radii: v.Radii}, nil
	case morph.Contour:
		stack, err := contour.Fit(v.Points, levels)
		if err != nil {
			return profile{}, fmt.Errorf("tessellate: %w", err)
		}
		return profile{points: stack.Points, radii: stack.Radii}, nil
	}
	return profile{}, fmt.Errorf("tessellate: unsupported soma %T", s)
}

// axisOrdered sorts cross-sections by their position along the principal
// axis of their centres.
func axisOrdered(points []geom.Point3, radii []float64) (profile, error) {
	_, axis, err := geom.PrincipalAxis(points)
	if err != nil {
		return profile{}, fmt.Errorf("tessellate: %w", err)
	}
	idx := make([]int, len(points))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return points[idx[a]].Dot(axis) < points[idx[b]].Dot(axis)
	})
	p := profile{points: make([]geom.Point3, len(idx)), radii: make([]float64, len(idx))}
	for i, j := range idx {
		p.points[i] = points[j]
		p.radii[i] = radii[j]
	}
	return p, nil
}

// SectionSolid builds the frusta of a section, with radii of half the
// point diameters.
func SectionSolid(k kernel.Kernel, s *morph.Section) (kernel.Solid, error) {
	if len(s.Diameters) != len(s.Points) {
		return nil, fmt.Errorf("tessellate: section has %d points but %d diameters", len(s.Points), len(s.Diameters))
	}
	radii := make([]float64, len(s.Diameters))
	for i, d := range s.Diameters {
		radii[i] = d / 2
	}
	return profile{points: s.Points, radii: radii}.solid(k)
}

// Tessellate meshes the soma and every section of m with the provided
// geometry kernel. Sections without solid geometry (a single point, or
// zero diameters throughout) are skipped. The tessellator never mutates m.
func Tessellate(m *morph.Morphology, k kernel.Kernel) ([]*kernel.Mesh, error) {
	if m == nil {
		return nil, nil
	}

	var meshes []*kernel.Mesh
	if m.Soma != nil {
		solid, err := SomaSolid(k, m.Soma, contour.DefaultLevels)
		if err != nil {
			return nil, fmt.Errorf("tessellate: soma: %w", err)
		}
		mesh, err := k.ToMesh(solid)
		if err != nil {
			return nil, fmt.Errorf("tessellate: ToMesh failed for soma: %w", err)
		}
		mesh.Name = "soma"
		meshes = append(meshes, mesh)
	}

	for id, s := range m.All() {
		solid, err := SectionSolid(k, s)
		if errors.Is(err, ErrNoGeometry) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("tessellate: section %d: %w", id, err)
		}
		mesh, err := k.ToMesh(solid)
		if err != nil {
			return nil, fmt.Errorf("tessellate: ToMesh failed for section %d: %w", id, err)
		}
		mesh.Name = fmt.Sprintf("section %d", id)
		meshes = append(meshes, mesh)
	}

	return meshes, nil
}
