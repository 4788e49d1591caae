package morphio

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/morphtool/pkg/diff"
	"github.com/chazu/morphtool/pkg/geom"
	"github.com/chazu/morphtool/pkg/morph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const forkedSWC = `# a forked dendrite and an axon
1 1 0 0 0 5 -1
2 3 0 5 0 1 1
3 3 0 10 0 1 2
4 3 -5 15 0 0.5 3

5 3 5 15 0 0.5 3
6 3 8 18 0 0.5 5   # trailing comment
7 2 0 -5 0 1 1
`

func decode(t *testing.T, src string) *morph.Morphology {
	t.Helper()
	m, err := SWC{}.Decode(strings.NewReader(src))
	require.NoError(t, err)
	return m
}

func TestDecodeSWC(t *testing.T) {
	m := decode(t, forkedSWC)

	assert.Equal(t, morph.SinglePointSphere{Point: geom.Pt(0, 0, 0), Radius: 5}, m.Soma)
	require.Len(t, m.Roots, 2)
	assert.Equal(t, 4, m.SectionCount())

	dendrite := m.Roots[0]
	assert.Equal(t, morph.BasalDendrite, dendrite.Type)
	assert.Equal(t, []geom.Point3{geom.Pt(0, 5, 0), geom.Pt(0, 10, 0)}, dendrite.Points)
	assert.Equal(t, []float64{2, 2}, dendrite.Diameters)
	assert.False(t, dendrite.HasPerimeters())

	require.Len(t, dendrite.Children, 2)
	left, right := dendrite.Children[0], dendrite.Children[1]
	assert.Equal(t, []geom.Point3{geom.Pt(0, 10, 0), geom.Pt(-5, 15, 0)}, left.Points)
	assert.Equal(t, []float64{2, 1}, left.Diameters)
	assert.Equal(t, []geom.Point3{geom.Pt(0, 10, 0), geom.Pt(5, 15, 0), geom.Pt(8, 18, 0)}, right.Points)
	assert.Same(t, dendrite, right.Parent())

	axon := m.Roots[1]
	assert.Equal(t, morph.Axon, axon.Type)
	assert.Equal(t, []geom.Point3{geom.Pt(0, -5, 0)}, axon.Points)

	assert.Empty(t, morph.Validate(m))
}

func TestDecodeSWCSomaEncodings(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want morph.Soma
	}{
		{
			name: "none",
			src:  "1 3 0 0 0 1 -1\n2 3 0 1 0 1 1\n",
			want: nil,
		},
		{
			name: "three point",
			src:  "1 1 0 0 0 2 -1\n2 1 0 -2 0 2 1\n3 1 0 2 0 2 1\n",
			want: morph.ThreePointCylinder{
				Points: [3]geom.Point3{geom.Pt(0, 0, 0), geom.Pt(0, -2, 0), geom.Pt(0, 2, 0)},
				Radii:  [3]float64{2, 2, 2},
			},
		},
		{
			name: "three point chain is a stack",
			src:  "1 1 0 0 0 1 -1\n2 1 0 1 0 2 1\n3 1 0 2 0 1 2\n",
			want: morph.StackOfCylinders{
				Points: []geom.Point3{geom.Pt(0, 0, 0), geom.Pt(0, 1, 0), geom.Pt(0, 2, 0)},
				Radii:  []float64{1, 2, 1},
			},
		},
		{
			name: "two point stack",
			src:  "1 1 0 0 0 1 -1\n2 1 0 0 3 1.5 1\n",
			want: morph.StackOfCylinders{
				Points: []geom.Point3{geom.Pt(0, 0, 0), geom.Pt(0, 0, 3)},
				Radii:  []float64{1, 1.5},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decode(t, tt.src).Soma)
		})
	}
}

func TestDecodeSWCTypeChangeStartsSection(t *testing.T) {
	m := decode(t, "1 1 0 0 0 1 -1\n2 3 0 1 0 1 1\n3 3 0 2 0 1 2\n4 7 0 3 0 0.5 3\n5 7 0 4 0 0.5 4\n")

	require.Len(t, m.Roots, 1)
	root := m.Roots[0]
	assert.Equal(t, []geom.Point3{geom.Pt(0, 1, 0), geom.Pt(0, 2, 0)}, root.Points)
	require.Len(t, root.Children, 1)
	child := root.Children[0]
	assert.Equal(t, morph.SectionType(7), child.Type)
	assert.Equal(t, []geom.Point3{geom.Pt(0, 2, 0), geom.Pt(0, 3, 0), geom.Pt(0, 4, 0)}, child.Points)
	assert.Equal(t, []float64{2, 1, 1}, child.Diameters)
}

func TestDecodeSWCErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"too few fields", "1 1 0 0 0 1 -1\n2 3 0 0\n", 2},
		{"bad integer", "x 1 0 0 0 1 -1\n", 1},
		{"bad number", "1 1 0 zero 0 1 -1\n", 1},
		{"negative type", "1 -1 0 0 0 1 -1\n", 1},
		{"unknown parent", "1 1 0 0 0 1 -1\n2 3 0 0 1 1 9\n", 2},
		{"duplicate id", "1 1 0 0 0 1 -1\n1 3 0 0 1 1 -1\n", 2},
		{"own parent", "1 1 0 0 0 1 -1\n2 3 0 0 1 1 2\n", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SWC{}.Decode(strings.NewReader(tt.src))
			var syntax *SyntaxError
			require.ErrorAs(t, err, &syntax)
			assert.Equal(t, tt.line, syntax.Line)
		})
	}
}

// neuron builds a morphology whose child sections start at their parent's
// last point, as SWC requires for a lossless round trip.
func neuron(soma morph.Soma) *morph.Morphology {
	m := morph.New(soma)
	trunk := m.AppendRoot(morph.NewSection(morph.ApicalDendrite,
		[]geom.Point3{geom.Pt(0, 2, 0), geom.Pt(0.5, 6, 1.25), geom.Pt(0, 10, 0)}, []float64{1.5, 1.25, 1}))
	trunk.Branch(morph.ApicalDendrite, []geom.Point3{geom.Pt(3, 12, 0), geom.Pt(4, 15, -1)}, []float64{0.75, 0.5})
	tuft := trunk.Branch(morph.ApicalDendrite, []geom.Point3{geom.Pt(-3, 12, 0)}, []float64{0.75})
	tuft.Branch(morph.SectionType(12), []geom.Point3{geom.Pt(-4, 13, 0)}, []float64{0.25})
	tuft.Branch(morph.ApicalDendrite, []geom.Point3{geom.Pt(-2, 14, 0)}, []float64{0.25})
	m.AppendRoot(morph.NewSection(morph.Axon,
		[]geom.Point3{geom.Pt(0, -2, 0), geom.Pt(0, -20, 0)}, []float64{1, 1}))
	return m
}

func TestSWCRoundTrip(t *testing.T) {
	somata := map[string]morph.Soma{
		"sphere": morph.SinglePointSphere{Point: geom.Pt(0, 0, 0), Radius: 2},
		"three point": morph.ThreePointCylinder{
			Points: [3]geom.Point3{geom.Pt(0, 0, 0), geom.Pt(0, -2, 0), geom.Pt(0, 2, 0)},
			Radii:  [3]float64{2, 2, 2},
		},
		"stack": morph.StackOfCylinders{
			Points: []geom.Point3{geom.Pt(0, -1, 0), geom.Pt(0, 0, 0), geom.Pt(0, 1, 0), geom.Pt(0, 2, 0)},
			Radii:  []float64{0.5, 2, 2, 0.5},
		},
	}
	for name, soma := range somata {
		t.Run(name, func(t *testing.T) {
			m := neuron(soma)

			var buf bytes.Buffer
			require.NoError(t, SWC{}.Encode(&buf, m))
			back, err := SWC{}.Decode(&buf)
			require.NoError(t, err)

			res := diff.Diff(m, back)
			assert.False(t, res.Differs, res.String())
			assert.Equal(t, m.Soma, back.Soma)
		})
	}
}

func TestEncodeSWCRows(t *testing.T) {
	m := morph.New(morph.SinglePointSphere{Point: geom.Pt(0, 0, 0), Radius: 1})
	root := m.AppendRoot(morph.NewSection(morph.Axon, []geom.Point3{geom.Pt(0, 1, 0), geom.Pt(0, 2, 0)}, []float64{1, 1}))
	root.Branch(morph.Axon, []geom.Point3{geom.Pt(1, 3, 0)}, []float64{0.5})

	var buf bytes.Buffer
	require.NoError(t, SWC{}.Encode(&buf, m))
	assert.Equal(t, strings.Join([]string{
		"# id type x y z radius parent",
		"1 1 0 0 0 1 -1",
		"2 2 0 1 0 0.5 1",
		"3 2 0 2 0 0.5 2",
		"4 2 1 3 0 0.25 3",
		"",
	}, "\n"), buf.String())
}

func TestEncodeSWCContourSoma(t *testing.T) {
	m := morph.New(morph.Contour{Points: []geom.Point3{geom.Pt(1, 0, 0), geom.Pt(0, 1, 0), geom.Pt(-1, 0, 0)}})
	err := SWC{}.Encode(io.Discard, m)
	assert.ErrorIs(t, err, ErrUnsupportedSoma)
}

func TestEncodeSWCNoSoma(t *testing.T) {
	m := morph.New(nil)
	m.AppendRoot(morph.NewSection(morph.Axon, []geom.Point3{geom.Pt(0, 0, 0), geom.Pt(0, 1, 0)}, []float64{1, 1}))

	var buf bytes.Buffer
	require.NoError(t, SWC{}.Encode(&buf, m))
	assert.Contains(t, buf.String(), "1 2 0 0 0 0.5 -1\n")
}

func TestLoadWrite(t *testing.T) {
	dir := t.TempDir()
	m := neuron(morph.SinglePointSphere{Point: geom.Pt(1, 2, 3), Radius: 4})

	path := filepath.Join(dir, "nested", "cell.SWC")
	require.NoError(t, Write(m, path))

	back, err := Load(path)
	require.NoError(t, err)
	assert.False(t, diff.Diff(m, back).Differs)

	_, err = Load(filepath.Join(dir, "missing.swc"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNoCodec(t *testing.T) {
	m := neuron(morph.SinglePointSphere{Radius: 1})
	for _, name := range []string{"cell.asc", "cell.h5", "cell"} {
		_, err := Load(name)
		assert.ErrorIs(t, err, ErrNoCodec, name)
		assert.ErrorIs(t, Write(m, filepath.Join(t.TempDir(), name)), ErrNoCodec, name)
	}
}

func TestWriteFailureLeavesNoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contour.swc")
	m := morph.New(morph.Contour{Points: []geom.Point3{geom.Pt(1, 0, 0), geom.Pt(0, 1, 0), geom.Pt(-1, 0, 0)}})

	err := Write(m, path)
	assert.ErrorIs(t, err, ErrUnsupportedSoma)
	_, statErr := os.Stat(path)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

type nopCodec struct{}

func (nopCodec) Decode(io.Reader) (*morph.Morphology, error) { return morph.New(nil), nil }
func (nopCodec) Encode(io.Writer, *morph.Morphology) error   { return nil }

func TestRegister(t *testing.T) {
	Register("NOP", nopCodec{})
	t.Cleanup(func() {
		mu.Lock()
		delete(codecs, ".nop")
		mu.Unlock()
	})

	assert.Contains(t, Extensions(), ".nop")
	assert.Contains(t, Extensions(), ".swc")
	c, err := CodecFor("x.nop")
	require.NoError(t, err)
	assert.Equal(t, nopCodec{}, c)
}
