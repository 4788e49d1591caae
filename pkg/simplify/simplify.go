// Package simplify reduces the number of points in morphology sections
// with the Ramer-Douglas-Peucker algorithm. Each section is simplified on
// its own; the first and last points are always kept, so branch points and
// the tree topology survive.
package simplify

import (
	"fmt"
	"math"

	"github.com/chazu/morphtool/pkg/geom"
	"github.com/chazu/morphtool/pkg/morph"
)

// zeroEpsilon is the tolerance under which epsilon counts as zero.
const zeroEpsilon = 1e-12

// span is a pending [beg, end] index range on the work stack.
type span struct {
	beg, end int
}

// Points returns the indices of the points that survive simplification
// with tolerance epsilon, in increasing order. A point is dropped when its
// perpendicular distance to the line through its span's endpoints is at
// most epsilon.
func Points(points []geom.Point3, epsilon float64) ([]int, error) {
	if epsilon < 0 || math.IsNaN(epsilon) {
		return nil, fmt.Errorf("simplify: epsilon must be non-negative, got %g", epsilon)
	}
	n := len(points)
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	if n <= 2 || epsilon <= zeroEpsilon {
		return all, nil
	}

	keep := make([]bool, n)
	keep[0], keep[n-1] = true, true
	epsSq := epsilon * epsilon

	stack := []span{{0, n - 1}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if s.end-s.beg < 2 {
			continue
		}

		far, farDist := -1, -1.0
		for i := s.beg + 1; i < s.end; i++ {
			d := geom.DistanceToLineSquared(points[i], points[s.beg], points[s.end])
			if d > farDist {
				far, farDist = i, d
			}
		}
		if farDist > epsSq {
			keep[far] = true
			stack = append(stack, span{s.beg, far}, span{far, s.end})
		}
	}

	kept := all[:0]
	for i, k := range keep {
		if k {
			kept = append(kept, i)
		}
	}
	return kept, nil
}

// Section returns a simplified copy of s without its children. Diameters
// and perimeters are kept at the surviving point indices, so they must be
// as long as the points.
func Section(s *morph.Section, epsilon float64) (*morph.Section, error) {
	if len(s.Diameters) != len(s.Points) {
		return nil, fmt.Errorf("simplify: section has %d points but %d diameters", len(s.Points), len(s.Diameters))
	}
	if s.Perimeters != nil && len(s.Perimeters) != len(s.Points) {
		return nil, fmt.Errorf("simplify: section has %d points but %d perimeters", len(s.Points), len(s.Perimeters))
	}
	idx, err := Points(s.Points, epsilon)
	if err != nil {
		return nil, err
	}
	out := morph.NewSection(s.Type, pick(s.Points, idx), pick(s.Diameters, idx))
	if s.Perimeters != nil {
		out.Perimeters = pick(s.Perimeters, idx)
	}
	return out, nil
}

// Morphology returns a simplified copy of m. Every section is simplified
// independently; the soma is copied unchanged. m itself is not modified.
func Morphology(m *morph.Morphology, epsilon float64) (*morph.Morphology, error) {
	out := &morph.Morphology{}
	if m.Soma != nil {
		out.Soma = m.Soma.Clone()
	}
	for i, root := range m.Roots {
		r, err := subtree(root, epsilon)
		if err != nil {
			return nil, fmt.Errorf("simplify: root %d: %w", i, err)
		}
		out.AppendRoot(r)
	}
	return out, nil
}

func subtree(s *morph.Section, epsilon float64) (*morph.Section, error) {
	out, err := Section(s, epsilon)
	if err != nil {
		return nil, err
	}
	for _, child := range s.Children {
		c, err := subtree(child, epsilon)
		if err != nil {
			return nil, err
		}
		out.AppendChild(c)
	}
	return out, nil
}

// pick copies src at the given indices.
func pick[T any](src []T, idx []int) []T {
	if src == nil {
		return nil
	}
	out := make([]T, len(idx))
	for k, i := range idx {
		out[k] = src[i]
	}
	return out
}
