// Package diff compares two morphologies section by section.
//
// Sections are paired in input order: roots with roots, children with
// children. No matching or reordering is attempted, so two morphologies
// that differ only in the order of their branches are reported as
// different. The soma is not compared.
package diff

import (
	"fmt"
	"strings"

	"github.com/chazu/morphtool/pkg/geom"
	"github.com/chazu/morphtool/pkg/morph"
	"gonum.org/v1/gonum/floats/scalar"
)

// Default tolerances, matching the usual element-wise closeness test.
const (
	DefaultRTol = 1e-5
	DefaultATol = 1e-8
)

// Options controls the comparison.
type Options struct {
	// RTol is the relative tolerance, scaled by the larger magnitude.
	RTol float64
	// ATol is the absolute tolerance.
	ATol float64
	// SkipPerimeters ignores the perimeter arrays.
	SkipPerimeters bool
	// FirstOnly stops at the first difference.
	FirstOnly bool
}

// DefaultOptions returns the default tolerances with every check enabled.
func DefaultOptions() Options {
	return Options{RTol: DefaultRTol, ATol: DefaultATol}
}

// Option modifies Options.
type Option func(*Options)

// WithTolerance sets the relative and absolute tolerances.
func WithTolerance(rtol, atol float64) Option {
	return func(o *Options) {
		o.RTol, o.ATol = rtol, atol
	}
}

// WithSkipPerimeters ignores perimeters.
func WithSkipPerimeters() Option {
	return func(o *Options) { o.SkipPerimeters = true }
}

// WithFirstOnly stops at the first difference.
func WithFirstOnly() Option {
	return func(o *Options) { o.FirstOnly = true }
}

// WithOptions replaces every option at once.
func WithOptions(opts Options) Option {
	return func(o *Options) { *o = opts }
}

// Result is the outcome of a comparison. Differs is true when at least one
// mismatch was found; Info describes each mismatch in traversal order.
type Result struct {
	Differs bool     `json:"differs" yaml:"differs"`
	Info    []string `json:"info,omitempty" yaml:"info,omitempty"`
}

// String joins the mismatch descriptions with blank lines.
func (r Result) String() string {
	return strings.Join(r.Info, "\n\n")
}

// Diff compares a and b. Mismatches are not errors: they are reported in
// the Result.
func Diff(a, b *morph.Morphology, opts ...Option) Result {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if len(a.Roots) != len(b.Roots) {
		return Result{
			Differs: true,
			Info:    []string{"Both morphologies have a different number of root sections"},
		}
	}

	d := &differ{opts: o, idsA: sectionIDs(a), idsB: sectionIDs(b)}
	for i := range a.Roots {
		if !d.compare(a.Roots[i], b.Roots[i]) {
			break
		}
	}
	return Result{Differs: len(d.info) > 0, Info: d.info}
}

// differ accumulates mismatches during one comparison.
type differ struct {
	opts       Options
	idsA, idsB map[*morph.Section]int
	info       []string
}

// report records a mismatch. It returns false when the comparison should
// stop.
func (d *differ) report(format string, args ...any) bool {
	d.info = append(d.info, fmt.Sprintf(format, args...))
	return !d.opts.FirstOnly
}

func (d *differ) close(x, y float64) bool {
	return scalar.EqualWithinAbsOrRel(x, y, d.opts.ATol, d.opts.RTol)
}

func (d *differ) closePoints(p, q geom.Point3) bool {
	return d.close(p.X, q.X) && d.close(p.Y, q.Y) && d.close(p.Z, q.Z)
}

// compare checks one pair of sections and, when their child counts agree,
// their subtrees. It returns false when the comparison should stop.
func (d *differ) compare(a, b *morph.Section) bool {
	sa := describe(d.idsA[a], a)
	sb := describe(d.idsB[b], b)

	if !compareArrays(d, "points", sa, sb, a.Points, b.Points, d.closePoints) {
		return false
	}
	if !compareArrays(d, "diameters", sa, sb, a.Diameters, b.Diameters, d.close) {
		return false
	}
	if !d.opts.SkipPerimeters {
		if !compareArrays(d, "perimeters", sa, sb, a.Perimeters, b.Perimeters, d.close) {
			return false
		}
	}
	if a.Type != b.Type {
		if !d.report("%s and %s have different section types", sa, sb) {
			return false
		}
	}
	if len(a.Children) != len(b.Children) {
		return d.report("%s and %s have a different number of children", sa, sb)
	}
	for i := range a.Children {
		if !d.compare(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}

// compareArrays reports a shape mismatch, or the first index whose values
// are not close. It returns false when the comparison should stop.
func compareArrays[T any](d *differ, attr, sa, sb string, x, y []T, eq func(T, T) bool) bool {
	if len(x) != len(y) {
		return d.report("Attributes Section.%s of:\n%s\n%s\nhave different shapes: (%d,) vs (%d,)",
			attr, sa, sb, len(x), len(y))
	}
	for i := range x {
		if !eq(x[i], y[i]) {
			return d.report("Attributes Section.%s of:\n%s\n%s\nhave the same shape but different values\n"+
				"Vector %s differs at index %d: %v != %v",
				attr, sa, sb, attr, i, x[i], y[i])
		}
	}
	return true
}

// sectionIDs maps every section of m to its pre-order id.
func sectionIDs(m *morph.Morphology) map[*morph.Section]int {
	ids := make(map[*morph.Section]int)
	for id, s := range m.All() {
		ids[s] = id
	}
	return ids
}

// describe renders a section as Section(id=N, points=[first,..., last]).
func describe(id int, s *morph.Section) string {
	if len(s.Points) == 0 {
		return fmt.Sprintf("Section(id=%d, points=[])", id)
	}
	return fmt.Sprintf("Section(id=%d, points=[%v,..., %v])", id, s.FirstPoint(), s.LastPoint())
}
