package contour

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/chazu/morphtool/pkg/geom"
	"github.com/chazu/morphtool/pkg/morph"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func TestFitStacks(t *testing.T) {
	tests := []struct {
		name    string
		contour []geom.Point3
		levels  int
		want    morph.StackOfCylinders
	}{
		{
			name:    "unit square two levels",
			contour: []geom.Point3{geom.Pt(0, 0, 0), geom.Pt(1, 0, 0), geom.Pt(1, 1, 0), geom.Pt(0, 1, 0)},
			levels:  2,
			want: morph.StackOfCylinders{
				Points: []geom.Point3{geom.Pt(0.25, 0.5, 0), geom.Pt(0.75, 0.5, 0)},
				Radii:  []float64{0.5, 0.5},
			},
		},
		{
			name:    "unit square default levels",
			contour: []geom.Point3{geom.Pt(0, 0, 0), geom.Pt(1, 0, 0), geom.Pt(1, 1, 0), geom.Pt(0, 1, 0)},
			levels:  DefaultLevels,
			want: morph.StackOfCylinders{
				Points: []geom.Point3{
					geom.Pt(0.125, 0.5, 0), geom.Pt(0.375, 0.5, 0),
					geom.Pt(0.625, 0.5, 0), geom.Pt(0.875, 0.5, 0),
				},
				Radii: []float64{0.5, 0.5, 0.5, 0.5},
			},
		},
		{
			name:    "rectangle along x",
			contour: []geom.Point3{geom.Pt(0, 0, 0), geom.Pt(4, 0, 0), geom.Pt(4, 2, 0), geom.Pt(0, 2, 0)},
			levels:  4,
			want: morph.StackOfCylinders{
				Points: []geom.Point3{geom.Pt(0.5, 1, 0), geom.Pt(1.5, 1, 0), geom.Pt(2.5, 1, 0), geom.Pt(3.5, 1, 0)},
				Radii:  []float64{1, 1, 1, 1},
			},
		},
		{
			name:    "rectangle in xz plane",
			contour: []geom.Point3{geom.Pt(0, 3, 0), geom.Pt(2, 3, 0), geom.Pt(2, 3, 1), geom.Pt(0, 3, 1)},
			levels:  2,
			want: morph.StackOfCylinders{
				Points: []geom.Point3{geom.Pt(0.5, 3, 0.5), geom.Pt(1.5, 3, 0.5)},
				Radii:  []float64{0.5, 0.5},
			},
		},
		{
			name: "diamond",
			contour: []geom.Point3{
				geom.Pt(-2, 0, 0), geom.Pt(0, -1, 0), geom.Pt(2, 0, 0), geom.Pt(0, 1, 0),
			},
			levels: 2,
			want: morph.StackOfCylinders{
				Points: []geom.Point3{geom.Pt(-1, 0, 0), geom.Pt(1, 0, 0)},
				Radii:  []float64{0.5, 0.5},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Fit(tt.contour, tt.levels)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got, approx); diff != "" {
				t.Errorf("Fit() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFitCircle(t *testing.T) {
	const r = 3.0
	center := geom.Pt(1, 2, 5)
	circle, err := geom.SampleCircle(center, r, geom.AxisZ, 40)
	require.NoError(t, err)

	stack, err := Fit(circle, 10)
	require.NoError(t, err)
	require.Len(t, stack.Points, 10)

	for i, p := range stack.Points {
		offset := p.Sub(center)
		assert.InDelta(t, 0, offset.Y, 1e-9, "centre %d off axis", i)
		assert.InDelta(t, 0, offset.Z, 1e-9, "centre %d off plane", i)
		want := math.Sqrt(r*r - offset.X*offset.X)
		assert.InDelta(t, want, stack.Radii[i], 0.03, "radius %d", i)
	}
	// Centres are in axis order.
	for i := 1; i < len(stack.Points); i++ {
		assert.Greater(t, stack.Points[i].X, stack.Points[i-1].X)
	}
}

func TestFitInsufficientPoints(t *testing.T) {
	_, err := Fit([]geom.Point3{geom.Pt(0, 0, 0), geom.Pt(1, 0, 0)}, 2)
	var ice *InsufficientContourPointsError
	require.True(t, errors.As(err, &ice), "got %v", err)
	assert.Equal(t, 2, ice.Got)
}

func TestFitDegenerate(t *testing.T) {
	tests := []struct {
		name    string
		contour []geom.Point3
	}{
		{"collinear", []geom.Point3{geom.Pt(0, 0, 0), geom.Pt(1, 1, 0), geom.Pt(2, 2, 0), geom.Pt(3, 3, 0)}},
		{"coincident", []geom.Point3{geom.Pt(1, 1, 1), geom.Pt(1, 1, 1), geom.Pt(1, 1, 1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fit(tt.contour, 3)
			var dge *geom.DegenerateGeometryError
			assert.True(t, errors.As(err, &dge), "got %v", err)
		})
	}
}

func TestFitNegativeLevels(t *testing.T) {
	square := []geom.Point3{geom.Pt(0, 0, 0), geom.Pt(1, 0, 0), geom.Pt(1, 1, 0), geom.Pt(0, 1, 0)}
	_, err := Fit(square, -1)
	assert.Error(t, err)
}

func TestFitWarnsWhenNotPlanar(t *testing.T) {
	var buf bytes.Buffer
	l := log.New(&buf)

	warped := []geom.Point3{geom.Pt(0, 0, 0), geom.Pt(1, 0, 0.05), geom.Pt(1, 1, 0), geom.Pt(0, 1, 0.05)}
	stack, err := Fitter{Levels: 2, Logger: l}.Fit(warped)
	require.NoError(t, err)
	assert.Len(t, stack.Radii, 2)
	assert.Contains(t, buf.String(), "not planar")

	buf.Reset()
	flat := []geom.Point3{geom.Pt(0, 0, 0), geom.Pt(1, 0, 0), geom.Pt(1, 1, 0), geom.Pt(0, 1, 0)}
	_, err = Fitter{Levels: 2, Logger: l}.Fit(flat)
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestFitRadius(t *testing.T) {
	assert.InDelta(t, 0.5, fitRadius([]float64{0.5, 0.5}), 1e-12)
	assert.InDelta(t, 0.75, fitRadius([]float64{0.5, 1}), 1e-12)
	assert.InDelta(t, 2, fitRadius([]float64{2}), 1e-12)
	assert.InDelta(t, 2, fitRadius([]float64{1, 2, 3}), 1e-12)
}

func TestFitRadiusPrefersSmallerOnTie(t *testing.T) {
	// The optimum is 1+1e-6; the crossing at 1 fits within tolerance.
	assert.Equal(t, 1.0, fitRadius([]float64{1, 1 + 2e-6}))

	// Outside the tolerance the optimum is kept.
	assert.InDelta(t, 1.001, fitRadius([]float64{1, 1.002}), 1e-12)
}

func TestFitAsymmetricContour(t *testing.T) {
	// The axis is tilted and off-centre, so each level's two crossings lie
	// at different distances. The radius is half the chord between them.
	quad := []geom.Point3{geom.Pt(0, 0, 0), geom.Pt(10, 0, 0), geom.Pt(10, 1, 0), geom.Pt(0, 3, 0)}

	stack, err := Fit(quad, 4)
	require.NoError(t, err)
	want := []float64{1.381293370575667, 1.1273234994084644, 0.8733536282412617, 0.6193837570740592}
	assert.InDeltaSlice(t, want, stack.Radii, 1e-9)
}
