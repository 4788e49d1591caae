package diff

import (
	"fmt"
	"strings"

	"github.com/chazu/morphtool/pkg/morph"
	"github.com/sergi/go-diff/diffmatchpatch"
	"gopkg.in/yaml.v3"
)

// YAML renders the result as a YAML document.
func (r Result) YAML() ([]byte, error) {
	out, err := yaml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("diff: encoding report: %w", err)
	}
	return out, nil
}

// PointsReport returns a line diff of the point listings of two sections,
// one point and diameter per line. Removed lines start with "-", added
// lines with "+" and unchanged lines with a space. It returns an empty
// string when the listings are identical.
func PointsReport(a, b *morph.Section) string {
	x, y := pointListing(a), pointListing(b)
	if x == y {
		return ""
	}

	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(x, y)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			sb.WriteString(prefix)
			sb.WriteString(line)
		}
	}
	return sb.String()
}

// pointListing writes one "x y z d" line per point. Every line, including
// the last, ends in a newline so line diffs stay aligned.
func pointListing(s *morph.Section) string {
	var sb strings.Builder
	for i, p := range s.Points {
		var d float64
		if i < len(s.Diameters) {
			d = s.Diameters[i]
		}
		fmt.Fprintf(&sb, "%g %g %g %g\n", p.X, p.Y, p.Z, d)
	}
	return sb.String()
}
