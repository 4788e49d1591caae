package main

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/morphtool/internal/config"
	"github.com/chazu/morphtool/pkg/geom"
	"github.com/chazu/morphtool/pkg/morph"
	"github.com/chazu/morphtool/pkg/morphio"
)

// cellSWC has a sphere soma at (1 2 3), a dendrite forking in two and an axon.
const cellSWC = `# id type x y z radius parent
1 1 1 2 3 5 -1
2 3 1 7 3 1 1
3 3 1 20 3 0.8 2
4 3 1 40 3 0.5 3
5 3 5 60 3 0.4 4
6 3 -5 60 3 0.4 4
7 2 1 -2 3 0.5 1
8 2 1 -50 3 0.4 7
`

// threePointSWC has a NeuroMorpho three-point soma of radius 4.
const threePointSWC = `# id type x y z radius parent
1 1 0 0 0 4 -1
2 1 0 -4 0 4 1
3 1 0 4 0 4 1
4 3 0 4 0 1 1
5 3 0 30 0 0.5 4
`

// testApp returns an App whose surface areas come from the closed forms.
func testApp() *App {
	cfg := config.Default()
	cfg.Oracle.Kind = config.OracleClosedForm
	return NewApp(cfg)
}

// writeFile writes body to name inside a fresh temp dir and returns its path.
func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

// TestE2EPyramidalExample exercises the full pipeline: script source ->
// engine -> morphology -> tessellate -> meshes.
func TestE2EPyramidalExample(t *testing.T) {
	app := testApp()

	source, err := os.ReadFile("examples/pyramidal.morph")
	if err != nil {
		t.Fatalf("failed to read pyramidal.morph: %v", err)
	}

	result := app.Evaluate(string(source))

	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			t.Errorf("eval error (line %d): %s", e.Line, e.Message)
		}
		t.FailNow()
	}
	if result.Morphology == nil {
		t.Fatal("expected a morphology")
	}
	if n := result.Morphology.SectionCount(); n != 8 {
		t.Errorf("expected 8 sections, got %d", n)
	}

	// Soma plus one mesh per section.
	if len(result.Meshes) != 9 {
		t.Fatalf("expected 9 meshes, got %d", len(result.Meshes))
	}
	if result.Meshes[0].Name != "soma" {
		t.Errorf("first mesh should be the soma, got %q", result.Meshes[0].Name)
	}
	for _, m := range result.Meshes {
		if len(m.Vertices) == 0 {
			t.Errorf("mesh %q: no vertices", m.Name)
		}
		if len(m.Normals) == 0 {
			t.Errorf("mesh %q: no normals", m.Name)
		}
		if len(m.Indices) == 0 {
			t.Errorf("mesh %q: no indices", m.Name)
		}
		if m.Color == "" {
			t.Errorf("mesh %q: no color assigned", m.Name)
		}
	}
}

// TestE2EEmptySource ensures the pipeline handles empty input gracefully.
func TestE2EEmptySource(t *testing.T) {
	app := testApp()
	result := app.Evaluate("")

	if len(result.Errors) > 0 {
		t.Errorf("unexpected errors for empty source: %v", result.Errors)
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes for empty source, got %d", len(result.Meshes))
	}
}

// TestE2ESyntaxError ensures syntax errors are reported, not panicked.
func TestE2ESyntaxError(t *testing.T) {
	app := testApp()
	result := app.Evaluate("(soma :sphere :radius")

	if len(result.Errors) == 0 {
		t.Fatal("expected at least one eval error for unmatched parens")
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes on error, got %d", len(result.Meshes))
	}
}

// TestE2ESingleSection tests the simplest useful neuron.
func TestE2ESingleSection(t *testing.T) {
	app := testApp()
	result := app.Evaluate(`
(soma :sphere :radius 5)
(section :type :axon (pt 0 -5 0 1) (pt 0 -50 0 1))
`)

	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Meshes) != 2 {
		t.Fatalf("expected 2 meshes, got %d", len(result.Meshes))
	}
	if result.Meshes[1].Name != "section 0" {
		t.Errorf("expected mesh name 'section 0', got %q", result.Meshes[1].Name)
	}
}

// ---------------------------------------------------------------------------
// File operations
// ---------------------------------------------------------------------------

func TestConvertFileRecenter(t *testing.T) {
	app := testApp()
	in := writeFile(t, "cell.swc", cellSWC)
	out := filepath.Join(t.TempDir(), "centered.swc")

	if err := app.ConvertFile(in, out, ConvertOptions{Recenter: true}); err != nil {
		t.Fatalf("ConvertFile: %v", err)
	}
	m, err := morphio.Load(out)
	if err != nil {
		t.Fatalf("loading result: %v", err)
	}
	if c := m.Soma.Center(); c != (geom.Point3{}) {
		t.Errorf("soma center = %v, want origin", c)
	}
	if p := m.Roots[0].FirstPoint(); p != geom.Pt(0, 5, 0) {
		t.Errorf("first dendrite point = %v, want (0 5 0)", p)
	}
	if len(m.Roots) != 2 || m.SectionCount() != 4 {
		t.Errorf("expected 2 roots and 4 sections, got %d and %d", len(m.Roots), m.SectionCount())
	}
}

func TestConvertFileSinglePointSoma(t *testing.T) {
	app := testApp()
	in := writeFile(t, "three.swc", threePointSWC)
	out := filepath.Join(t.TempDir(), "sphere.swc")

	if err := app.ConvertFile(in, out, ConvertOptions{SinglePointSoma: true}); err != nil {
		t.Fatalf("ConvertFile: %v", err)
	}
	m, err := morphio.Load(out)
	if err != nil {
		t.Fatalf("loading result: %v", err)
	}
	s, ok := m.Soma.(morph.SinglePointSphere)
	if !ok {
		t.Fatalf("expected a sphere soma, got %T", m.Soma)
	}
	// The three-point soma of radius r has the area of the sphere of radius r.
	if math.Abs(s.Radius-4) > 1e-9 {
		t.Errorf("sphere radius = %g, want 4", s.Radius)
	}
}

func TestConvertRejectsUnknownFormat(t *testing.T) {
	app := testApp()
	in := writeFile(t, "cell.swc", cellSWC)

	err := app.ConvertFile(in, filepath.Join(t.TempDir(), "cell.obj"), ConvertOptions{})
	if err == nil {
		t.Fatal("expected an error for an unknown output format")
	}
}

func TestConvertRecenterWithoutSoma(t *testing.T) {
	app := testApp()
	m := morph.New(nil)
	m.AppendRoot(morph.NewSection(morph.Axon, []geom.Point3{geom.Pt(0, 0, 0), geom.Pt(0, 1, 0)}, []float64{1, 1}))

	if _, err := app.Convert(m, "out.swc", ConvertOptions{Recenter: true}); err == nil {
		t.Fatal("expected an error recentering without a soma")
	}
}

func TestSimplifyFile(t *testing.T) {
	app := testApp()
	in := writeFile(t, "line.swc", `1 1 0 0 0 1 -1
2 2 0 1 0 0.5 1
3 2 0 2 0.01 0.5 2
4 2 0 3 0 0.5 3
5 2 0 4 0 0.5 4
`)
	out := filepath.Join(t.TempDir(), "simple.swc")

	if err := app.SimplifyFile(in, out, 0.1); err != nil {
		t.Fatalf("SimplifyFile: %v", err)
	}
	m, err := morphio.Load(out)
	if err != nil {
		t.Fatalf("loading result: %v", err)
	}
	if n := m.Roots[0].Len(); n != 2 {
		t.Errorf("expected the straight run to reduce to 2 points, got %d", n)
	}
}

func TestDiffFiles(t *testing.T) {
	app := testApp()
	a := writeFile(t, "a.swc", cellSWC)
	same := writeFile(t, "same.swc", cellSWC)
	moved := writeFile(t, "moved.swc", strings.Replace(cellSWC, "8 2 1 -50 3", "8 2 1 -55 3", 1))

	r, err := app.DiffFiles(a, same)
	if err != nil {
		t.Fatalf("DiffFiles: %v", err)
	}
	if r.Differs {
		t.Errorf("identical files reported as different: %s", r)
	}

	r, err = app.DiffFiles(a, moved)
	if err != nil {
		t.Fatalf("DiffFiles: %v", err)
	}
	if !r.Differs {
		t.Fatal("expected a difference")
	}
	if !strings.Contains(r.String(), "points") {
		t.Errorf("expected the report to mention points, got %q", r.String())
	}

	reports, err := app.PointsDiff(a, moved)
	if err != nil {
		t.Fatalf("PointsDiff: %v", err)
	}
	if len(reports) != 1 || reports[0].ID != 3 {
		t.Fatalf("expected one points report for section 3, got %+v", reports)
	}
	if !strings.Contains(reports[0].Report, "-55") {
		t.Errorf("points report should show the moved point, got %q", reports[0].Report)
	}
}

func TestDiffFilesMissing(t *testing.T) {
	app := testApp()
	a := writeFile(t, "a.swc", cellSWC)
	if _, err := app.DiffFiles(a, filepath.Join(t.TempDir(), "absent.swc")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestSurfaceArea(t *testing.T) {
	app := testApp()
	path := writeFile(t, "three.swc", threePointSWC)

	r, err := app.SurfaceArea(path)
	if err != nil {
		t.Fatalf("SurfaceArea: %v", err)
	}
	want := 4 * math.Pi * 16
	if r.Kind != morph.KindThreePointCylinder.String() {
		t.Errorf("kind = %q", r.Kind)
	}
	if math.Abs(r.ClosedForm-want) > 1e-9 {
		t.Errorf("closed form = %g, want %g", r.ClosedForm, want)
	}
	if math.Abs(r.Sphere-4) > 1e-9 {
		t.Errorf("sphere radius = %g, want 4", r.Sphere)
	}
	// The mesh approximates the cylinder within a few percent.
	if r.Mesh == 0 || math.Abs(r.Mesh-want)/want > 0.1 {
		t.Errorf("mesh area = %g, want about %g (unavailable: %v)", r.Mesh, want, r.Unavailable)
	}
}

func TestSomaSurfaceContour(t *testing.T) {
	app := testApp()
	circle, err := geom.SampleCircle(geom.Point3{}, 5, geom.Pt(0, 0, 1), 16)
	if err != nil {
		t.Fatalf("SampleCircle: %v", err)
	}

	r, err := app.SomaSurface(morph.Contour{Points: circle})
	if err != nil {
		t.Fatalf("SomaSurface: %v", err)
	}
	if _, ok := r.Unavailable[config.OracleClosedForm]; !ok {
		t.Error("contours have no closed form area")
	}
	if r.Mesh == 0 {
		t.Errorf("expected a mesh area, unavailable: %v", r.Unavailable)
	}

	if _, err := app.SomaSurface(nil); err == nil {
		t.Error("expected an error for a missing soma")
	}
}

func TestBuildFile(t *testing.T) {
	app := testApp()
	out := filepath.Join(t.TempDir(), "pyramidal.swc")

	evalErrs, err := app.BuildFile("examples/pyramidal.morph", out)
	if err != nil {
		t.Fatalf("BuildFile: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("unexpected eval errors: %v", evalErrs)
	}

	m, err := morphio.Load(out)
	if err != nil {
		t.Fatalf("loading result: %v", err)
	}
	// SWC cannot store contours, so the soma is written as a fitted stack.
	if m.Soma.Kind() != morph.KindStackOfCylinders {
		t.Errorf("expected a stack of cylinders soma, got %s", m.Soma.Kind())
	}
	if n := m.SectionCount(); n != 8 {
		t.Errorf("expected 8 sections, got %d", n)
	}
}

func TestBuildFileReportsScriptErrors(t *testing.T) {
	app := testApp()
	script := writeFile(t, "bad.morph", "(soma :sphere)\n")

	evalErrs, err := app.BuildFile(script, filepath.Join(t.TempDir(), "bad.swc"))
	if err != nil {
		t.Fatalf("BuildFile: %v", err)
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected eval errors")
	}
	if !strings.Contains(evalErrs[0].Message, "radius") {
		t.Errorf("expected the error to mention the radius, got %q", evalErrs[0].Message)
	}
}

func TestMeshFile(t *testing.T) {
	app := testApp()
	path := writeFile(t, "cell.swc", cellSWC)

	meshes, err := app.MeshFile(path)
	if err != nil {
		t.Fatalf("MeshFile: %v", err)
	}
	if len(meshes) != 5 {
		t.Fatalf("expected 5 meshes (soma and 4 sections), got %d", len(meshes))
	}
	for i, m := range meshes {
		if m.Color != colorPalette[i%len(colorPalette)] {
			t.Errorf("mesh %d: color %q", i, m.Color)
		}
	}
}
