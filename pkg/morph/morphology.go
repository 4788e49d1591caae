package morph

import (
	"fmt"
	"iter"

	"github.com/chazu/morphtool/pkg/geom"
)

// Morphology is a soma plus an ordered forest of neurite sections.
// Operations in this module never mutate a Morphology they are handed;
// transformations return a new one.
type Morphology struct {
	Soma  Soma       `json:"soma" yaml:"soma"`
	Roots []*Section `json:"roots" yaml:"roots"`
}

// New creates a morphology with the given soma and no neurites.
func New(soma Soma) *Morphology {
	return &Morphology{Soma: soma}
}

// AppendRoot adds s as a new root section and returns it.
func (m *Morphology) AppendRoot(s *Section) *Section {
	s.parent = nil
	m.Roots = append(m.Roots, s)
	return s
}

// All yields every section depth-first in pre-order, paired with its
// section id. Ids count from zero in that same order.
func (m *Morphology) All() iter.Seq2[int, *Section] {
	return func(yield func(int, *Section) bool) {
		id := 0
		var walk func(s *Section) bool
		walk = func(s *Section) bool {
			if !yield(id, s) {
				return false
			}
			id++
			for _, c := range s.Children {
				if !walk(c) {
					return false
				}
			}
			return true
		}
		for _, r := range m.Roots {
			if !walk(r) {
				return
			}
		}
	}
}

// Sections returns all sections in pre-order.
func (m *Morphology) Sections() []*Section {
	var out []*Section
	for _, s := range m.All() {
		out = append(out, s)
	}
	return out
}

// Section returns the section with the given pre-order id.
func (m *Morphology) Section(id int) (*Section, error) {
	for i, s := range m.All() {
		if i == id {
			return s, nil
		}
	}
	return nil, fmt.Errorf("morph: no section with id %d", id)
}

// SectionCount returns the total number of sections.
func (m *Morphology) SectionCount() int {
	n := 0
	for range m.All() {
		n++
	}
	return n
}

// PointCount returns the total number of neurite points, counting the
// duplicated branch points once per section.
func (m *Morphology) PointCount() int {
	n := 0
	for _, s := range m.All() {
		n += s.Len()
	}
	return n
}

// Clone returns a deep copy of the morphology.
func (m *Morphology) Clone() *Morphology {
	c := &Morphology{}
	if m.Soma != nil {
		c.Soma = m.Soma.Clone()
	}
	if len(m.Roots) > 0 {
		c.Roots = make([]*Section, len(m.Roots))
		for i, r := range m.Roots {
			c.Roots[i] = r.clone(nil)
		}
	}
	return c
}

// Translated returns a copy of m with every soma and neurite point moved
// by offset.
func (m *Morphology) Translated(offset geom.Point3) *Morphology {
	c := m.Clone()
	if c.Soma != nil {
		c.Soma = TranslateSoma(c.Soma, offset)
	}
	for _, s := range c.All() {
		for i := range s.Points {
			s.Points[i] = s.Points[i].Add(offset)
		}
	}
	return c
}

// TranslateSoma returns a copy of s moved by offset.
func TranslateSoma(s Soma, offset geom.Point3) Soma {
	switch v := s.Clone().(type) {
	case SinglePointSphere:
		v.Point = v.Point.Add(offset)
		return v
	case ThreePointCylinder:
		for i := range v.Points {
			v.Points[i] = v.Points[i].Add(offset)
		}
		return v
	case StackOfCylinders:
		for i := range v.Points {
			v.Points[i] = v.Points[i].Add(offset)
		}
		return v
	case Contour:
		for i := range v.Points {
			v.Points[i] = v.Points[i].Add(offset)
		}
		return v
	}
	return s
}
