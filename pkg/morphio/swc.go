package morphio

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chazu/morphtool/internal/logger"
	"github.com/chazu/morphtool/pkg/geom"
	"github.com/chazu/morphtool/pkg/morph"
)

// SyntaxError reports a malformed SWC line.
type SyntaxError struct {
	Line    int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// SWC reads and writes the SWC format: one sample per line,
// "id type x y z radius parent", with '#' comments.
//
// Soma samples (type 1) are decoded as a single-point sphere when there is
// one, a three-point cylinder when there are three and the last two hang off
// the first, and a stack of cylinders otherwise. Contour somata cannot be
// encoded.
type SWC struct{}

// sample is one SWC row.
type sample struct {
	id       int
	typ      morph.SectionType
	point    geom.Point3
	radius   float64
	parent   int
	line     int
	children []*sample
}

func (s *sample) isSoma() bool {
	return s.typ == morph.SomaType
}

// Decode implements Codec.
func (SWC) Decode(r io.Reader) (*morph.Morphology, error) {
	samples, err := readSamples(r)
	if err != nil {
		return nil, err
	}

	byID := make(map[int]*sample, len(samples))
	for _, s := range samples {
		if prev, dup := byID[s.id]; dup {
			return nil, &SyntaxError{Line: s.line, Message: fmt.Sprintf("sample %d already defined on line %d", s.id, prev.line)}
		}
		byID[s.id] = s
	}

	var somaSamples, roots []*sample
	for _, s := range samples {
		var parent *sample
		if s.parent != -1 {
			p, ok := byID[s.parent]
			if !ok {
				return nil, &SyntaxError{Line: s.line, Message: fmt.Sprintf("sample %d has unknown parent %d", s.id, s.parent)}
			}
			if p == s {
				return nil, &SyntaxError{Line: s.line, Message: fmt.Sprintf("sample %d is its own parent", s.id)}
			}
			parent = p
			p.children = append(p.children, s)
		}
		switch {
		case s.isSoma():
			somaSamples = append(somaSamples, s)
		case parent == nil || parent.isSoma():
			roots = append(roots, s)
		}
	}

	m := morph.New(decodeSoma(somaSamples))
	if m.Soma == nil {
		logger.Warn("SWC file has no soma samples")
	}
	for _, r := range roots {
		m.AppendRoot(buildSection(r, nil))
	}
	return m, nil
}

func readSamples(r io.Reader) ([]*sample, error) {
	var samples []*sample
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 7 {
			return nil, &SyntaxError{Line: line, Message: fmt.Sprintf("expected 7 fields, got %d", len(fields))}
		}

		var ints [3]int
		for i, f := range []string{fields[0], fields[1], fields[6]} {
			v, err := strconv.Atoi(f)
			if err != nil {
				return nil, &SyntaxError{Line: line, Message: fmt.Sprintf("invalid integer %q", f)}
			}
			ints[i] = v
		}
		var floats [4]float64
		for i, f := range fields[2:6] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, &SyntaxError{Line: line, Message: fmt.Sprintf("invalid number %q", f)}
			}
			floats[i] = v
		}
		if ints[1] < 0 {
			return nil, &SyntaxError{Line: line, Message: fmt.Sprintf("invalid structure type %d", ints[1])}
		}
		if ints[2] < -1 {
			ints[2] = -1
		}

		samples = append(samples, &sample{
			id:     ints[0],
			typ:    morph.SectionType(ints[1]),
			point:  geom.Pt(floats[0], floats[1], floats[2]),
			radius: floats[3],
			parent: ints[2],
			line:   line,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}

func decodeSoma(ss []*sample) morph.Soma {
	switch {
	case len(ss) == 0:
		return nil
	case len(ss) == 1:
		return morph.SinglePointSphere{Point: ss[0].point, Radius: ss[0].radius}
	case len(ss) == 3 && ss[1].parent == ss[0].id && ss[2].parent == ss[0].id:
		return morph.ThreePointCylinder{
			Points: [3]geom.Point3{ss[0].point, ss[1].point, ss[2].point},
			Radii:  [3]float64{ss[0].radius, ss[1].radius, ss[2].radius},
		}
	}
	stack := morph.StackOfCylinders{
		Points: make([]geom.Point3, len(ss)),
		Radii:  make([]float64, len(ss)),
	}
	for i, s := range ss {
		stack.Points[i] = s.point
		stack.Radii[i] = s.radius
	}
	return stack
}

// buildSection follows unbranched runs of same-typed samples starting at s.
// Child sections start with a copy of their parent's last sample.
func buildSection(s *sample, from *sample) *morph.Section {
	sec := morph.NewSection(s.typ, nil, nil)
	if from != nil {
		sec.Points = append(sec.Points, from.point)
		sec.Diameters = append(sec.Diameters, 2*from.radius)
	}
	for {
		sec.Points = append(sec.Points, s.point)
		sec.Diameters = append(sec.Diameters, 2*s.radius)
		if len(s.children) != 1 || s.children[0].typ != s.typ {
			break
		}
		s = s.children[0]
	}
	for _, c := range s.children {
		sec.AppendChild(buildSection(c, s))
	}
	return sec
}

// Encode implements Codec.
func (SWC) Encode(w io.Writer, m *morph.Morphology) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "# id type x y z radius parent")

	id := 0
	row := func(t morph.SectionType, p geom.Point3, radius float64, parent int) int {
		id++
		fmt.Fprintf(bw, "%d %d %g %g %g %g %d\n", id, int(t), p.X, p.Y, p.Z, radius, parent)
		return id
	}

	rootParent := -1
	switch s := m.Soma.(type) {
	case nil:
	case morph.SinglePointSphere:
		rootParent = row(morph.SomaType, s.Point, s.Radius, -1)
	case morph.ThreePointCylinder:
		rootParent = row(morph.SomaType, s.Points[0], s.Radii[0], -1)
		row(morph.SomaType, s.Points[1], s.Radii[1], rootParent)
		row(morph.SomaType, s.Points[2], s.Radii[2], rootParent)
	case morph.StackOfCylinders:
		if len(s.Points) == 0 || len(s.Points) != len(s.Radii) {
			return fmt.Errorf("soma stack has %d points and %d radii", len(s.Points), len(s.Radii))
		}
		parent := -1
		for i, p := range s.Points {
			parent = row(morph.SomaType, p, s.Radii[i], parent)
			if i == 0 {
				rootParent = parent
			}
		}
	default:
		return fmt.Errorf("%w: %s soma", ErrUnsupportedSoma, m.Soma.Kind())
	}

	var writeSection func(sec *morph.Section, parent int, skipFirst bool) error
	writeSection = func(sec *morph.Section, parent int, skipFirst bool) error {
		if len(sec.Diameters) != len(sec.Points) {
			return fmt.Errorf("section has %d points but %d diameters", len(sec.Points), len(sec.Diameters))
		}
		for i, p := range sec.Points {
			if i == 0 && skipFirst {
				continue
			}
			parent = row(sec.Type, p, sec.Diameters[i]/2, parent)
		}
		for _, c := range sec.Children {
			dup := len(c.Points) > 0 && len(sec.Points) > 0 && c.FirstPoint() == sec.LastPoint()
			if err := writeSection(c, parent, dup); err != nil {
				return err
			}
		}
		return nil
	}
	for i, r := range m.Roots {
		if err := writeSection(r, rootParent, false); err != nil {
			return fmt.Errorf("root %d: %w", i, err)
		}
	}
	return bw.Flush()
}
