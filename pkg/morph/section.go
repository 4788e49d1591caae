package morph

import "github.com/chazu/morphtool/pkg/geom"

// Section is an unbranched run of neurite. Points, Diameters and (when
// present) Perimeters are parallel arrays. A nil Perimeters means the source
// format carries none.
type Section struct {
	Type       SectionType   `json:"type" yaml:"type"`
	Points     []geom.Point3 `json:"points" yaml:"points"`
	Diameters  []float64     `json:"diameters" yaml:"diameters"`
	Perimeters []float64     `json:"perimeters,omitempty" yaml:"perimeters,omitempty"`
	Children   []*Section    `json:"children,omitempty" yaml:"children,omitempty"`

	parent *Section
}

// NewSection returns a parentless section. The slices are used as given.
func NewSection(t SectionType, points []geom.Point3, diameters []float64) *Section {
	return &Section{Type: t, Points: points, Diameters: diameters}
}

// Parent returns the section this one branches from, or nil for a root.
func (s *Section) Parent() *Section {
	return s.parent
}

// IsRoot reports whether the section has no parent.
func (s *Section) IsRoot() bool {
	return s.parent == nil
}

// Len returns the number of points.
func (s *Section) Len() int {
	return len(s.Points)
}

// HasPerimeters reports whether perimeter data is present.
func (s *Section) HasPerimeters() bool {
	return s.Perimeters != nil
}

// FirstPoint returns the first point. It panics on an empty section.
func (s *Section) FirstPoint() geom.Point3 {
	return s.Points[0]
}

// LastPoint returns the last point. It panics on an empty section.
func (s *Section) LastPoint() geom.Point3 {
	return s.Points[len(s.Points)-1]
}

// AppendChild attaches c below s and returns c.
func (s *Section) AppendChild(c *Section) *Section {
	c.parent = s
	s.Children = append(s.Children, c)
	return c
}

// Branch appends a child section of type t. If the first given point does
// not already equal s's last point, that point and its diameter are
// prepended so the child starts where s ends.
func (s *Section) Branch(t SectionType, points []geom.Point3, diameters []float64) *Section {
	return s.Attach(NewSection(t, points, diameters))
}

// Attach is Branch for an already built section c, which may carry its own
// subtree. c's arrays are extended in place; a perimeter is prepended only
// when c has perimeters, taken from s when s has them and from c otherwise.
func (s *Section) Attach(c *Section) *Section {
	if len(s.Points) > 0 && (len(c.Points) == 0 || c.Points[0] != s.LastPoint()) {
		var d float64
		if n := len(s.Diameters); n > 0 {
			d = s.Diameters[n-1]
		}
		c.Points = append([]geom.Point3{s.LastPoint()}, c.Points...)
		c.Diameters = append([]float64{d}, c.Diameters...)
		if len(c.Perimeters) > 0 {
			p := c.Perimeters[0]
			if n := len(s.Perimeters); n > 0 {
				p = s.Perimeters[n-1]
			}
			c.Perimeters = append([]float64{p}, c.Perimeters...)
		}
	}
	return s.AppendChild(c)
}

// Clone deep-copies s and its subtree. The copy is parentless.
func (s *Section) Clone() *Section {
	return s.clone(nil)
}

func (s *Section) clone(parent *Section) *Section {
	c := &Section{
		Type:      s.Type,
		Points:    append([]geom.Point3(nil), s.Points...),
		Diameters: append([]float64(nil), s.Diameters...),
		parent:    parent,
	}
	if s.Perimeters != nil {
		c.Perimeters = append([]float64{}, s.Perimeters...)
	}
	if len(s.Children) > 0 {
		c.Children = make([]*Section, len(s.Children))
		for i, child := range s.Children {
			c.Children[i] = child.clone(c)
		}
	}
	return c
}
