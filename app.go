package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/chazu/morphtool/internal/config"
	"github.com/chazu/morphtool/internal/logger"
	"github.com/chazu/morphtool/pkg/batch"
	"github.com/chazu/morphtool/pkg/diff"
	"github.com/chazu/morphtool/pkg/engine"
	"github.com/chazu/morphtool/pkg/kernel"
	"github.com/chazu/morphtool/pkg/kernel/sdfx"
	"github.com/chazu/morphtool/pkg/morph"
	"github.com/chazu/morphtool/pkg/morphio"
	"github.com/chazu/morphtool/pkg/simplify"
	"github.com/chazu/morphtool/pkg/soma"
	"github.com/chazu/morphtool/pkg/tessellate"
)

// colorPalette is a default palette used to assign distinct colors to meshes.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// App ties the packages together behind the operations the CLI exposes.
type App struct {
	cfg    config.Config
	engine *engine.Engine
	kernel kernel.Kernel
	log    *log.Logger
}

// MeshData is the JSON-serializable mesh format written by the mesh command.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	Name     string    `json:"name"`
	Color    string    `json:"color"`
}

// EvalErrorData is a JSON-serializable eval error.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// EvalResult is the outcome of evaluating a morphology script.
type EvalResult struct {
	Morphology *morph.Morphology `json:"-"`
	Meshes     []MeshData        `json:"meshes"`
	Errors     []EvalErrorData   `json:"errors"`
	Warnings   []EvalErrorData   `json:"warnings"`
}

// ConvertOptions are the per-call switches of ConvertFile.
type ConvertOptions struct {
	// SinglePointSoma reduces the soma to its equal-area sphere first.
	SinglePointSoma bool
	// Recenter moves the soma center to the origin.
	Recenter bool
}

// SurfaceReport lists a soma's surface area as each oracle sees it.
// A zero area means that oracle could not measure the soma; the reason is
// in Unavailable.
type SurfaceReport struct {
	Kind        string            `json:"kind" yaml:"kind"`
	ClosedForm  float64           `json:"closed_form,omitempty" yaml:"closed_form,omitempty"`
	Mesh        float64           `json:"mesh,omitempty" yaml:"mesh,omitempty"`
	Sphere      float64           `json:"sphere_radius,omitempty" yaml:"sphere_radius,omitempty"`
	Unavailable map[string]string `json:"unavailable,omitempty" yaml:"unavailable,omitempty"`
}

// NewApp creates an App for cfg with an engine and the sdfx kernel.
func NewApp(cfg config.Config) *App {
	return &App{
		cfg:    cfg,
		engine: engine.NewEngine(),
		kernel: sdfx.NewWithCells(cfg.Oracle.MeshCells),
		log:    logger.NewStyledLogger("convert"),
	}
}

// Convert applies ConvertOptions and the soma rules of out's format to m.
// m is not modified.
func (a *App) Convert(m *morph.Morphology, out string, opts ConvertOptions) (*morph.Morphology, error) {
	format, err := soma.FormatForPath(out)
	if err != nil {
		return nil, err
	}
	so := a.cfg.SomaOptions()
	so.Logger = a.log
	res := m.Clone()

	if res.Soma != nil {
		s := res.Soma
		if opts.SinglePointSoma {
			sphere, err := soma.SingleSphere(s, so)
			if err != nil {
				return nil, err
			}
			s = sphere
		}
		if s, err = soma.ConvertForFormat(s, format, so); err != nil {
			return nil, err
		}
		res.Soma = s
	}
	if opts.Recenter {
		if res.Soma == nil {
			return nil, errors.New("cannot recenter a morphology without a soma")
		}
		res = res.Translated(res.Soma.Center().Scale(-1))
	}
	return res, nil
}

// ConvertFile loads in, converts it for out's format and writes it.
func (a *App) ConvertFile(in, out string, opts ConvertOptions) error {
	m, err := morphio.Load(in)
	if err != nil {
		return err
	}
	res, err := a.Convert(m, out, opts)
	if err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}
	if err := morphio.Write(res, out); err != nil {
		return err
	}
	a.log.Info("Converted morphology", "in", in, "out", out)
	return nil
}

// ConvertFolder converts every morphology of inDir into outDir with
// extension ext, using cfg.Batch.Workers workers.
func (a *App) ConvertFolder(ctx context.Context, inDir, outDir, ext string, opts ConvertOptions) (batch.Report, error) {
	convert := func(_ context.Context, in, out string) error {
		return a.ConvertFile(in, out, opts)
	}
	return batch.ConvertFolder(ctx, inDir, outDir, ext, convert, batch.Options{
		Workers: a.cfg.Batch.Workers,
		Logger:  logger.NewStyledLogger("batch"),
	})
}

// SimplifyFile writes in's morphology with every section simplified with
// tolerance epsilon.
func (a *App) SimplifyFile(in, out string, epsilon float64) error {
	m, err := morphio.Load(in)
	if err != nil {
		return err
	}
	simplified, err := simplify.Morphology(m, epsilon)
	if err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}
	logger.Info("Simplified morphology", "in", in, "points", m.PointCount(), "kept", simplified.PointCount())
	return morphio.Write(simplified, out)
}

// DiffFiles compares the morphologies stored at pathA and pathB.
// Configured tolerances apply unless opts override them.
func (a *App) DiffFiles(pathA, pathB string, opts ...diff.Option) (diff.Result, error) {
	ma, err := morphio.Load(pathA)
	if err != nil {
		return diff.Result{}, err
	}
	mb, err := morphio.Load(pathB)
	if err != nil {
		return diff.Result{}, err
	}
	opts = append([]diff.Option{diff.WithOptions(a.cfg.DiffOptions())}, opts...)
	return diff.Diff(ma, mb, opts...), nil
}

// PointsDiff returns a line diff of the points of every section that
// exists in both morphologies and whose listings differ, keyed by section
// id in the order the sections are visited.
func (a *App) PointsDiff(pathA, pathB string) ([]SectionPoints, error) {
	ma, err := morphio.Load(pathA)
	if err != nil {
		return nil, err
	}
	mb, err := morphio.Load(pathB)
	if err != nil {
		return nil, err
	}
	sections := mb.Sections()
	var out []SectionPoints
	for id, sa := range ma.All() {
		if id >= len(sections) {
			break
		}
		if report := diff.PointsReport(sa, sections[id]); report != "" {
			out = append(out, SectionPoints{ID: id, Report: report})
		}
	}
	return out, nil
}

// SectionPoints is the point listing diff of one section.
type SectionPoints struct {
	ID     int    `json:"id" yaml:"id"`
	Report string `json:"report" yaml:"report"`
}

// SurfaceArea reports the soma surface of the morphology at path.
func (a *App) SurfaceArea(path string) (SurfaceReport, error) {
	m, err := morphio.Load(path)
	if err != nil {
		return SurfaceReport{}, err
	}
	return a.SomaSurface(m.Soma)
}

// SomaSurface measures s with the closed form and mesh oracles, then
// derives the equal-area sphere with the configured oracle.
func (a *App) SomaSurface(s morph.Soma) (SurfaceReport, error) {
	if s == nil {
		return SurfaceReport{}, errors.New("morphology has no soma")
	}
	r := SurfaceReport{Kind: s.Kind().String(), Unavailable: map[string]string{}}

	if area, err := (soma.ClosedForm{}).SurfaceArea(s); err != nil {
		r.Unavailable[config.OracleClosedForm] = err.Error()
	} else {
		r.ClosedForm = area
	}
	mesh := &tessellate.MeshOracle{Kernel: a.kernel, Levels: a.cfg.Contour.Levels}
	if area, err := mesh.SurfaceArea(s); err != nil {
		r.Unavailable[config.OracleMesh] = err.Error()
	} else {
		r.Mesh = area
	}
	if sphere, err := soma.SingleSphere(s, a.cfg.SomaOptions()); err != nil {
		r.Unavailable["sphere"] = err.Error()
	} else {
		r.Sphere = sphere.Radius
	}
	if len(r.Unavailable) == 0 {
		r.Unavailable = nil
	}
	return r, nil
}

// Evaluate takes morphology script source and returns its morphology,
// meshes and errors.
func (a *App) Evaluate(source string) EvalResult {
	result := EvalResult{
		Meshes:   []MeshData{},
		Errors:   []EvalErrorData{},
		Warnings: []EvalErrorData{},
	}

	// Step 1: Evaluate the script into a morphology.
	res, err := a.engine.EvaluateResult(source)
	if err != nil {
		logger.Error("Evaluate fatal error", "error", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}
	for _, w := range res.Warnings {
		result.Warnings = append(result.Warnings, EvalErrorData{Message: w.Message})
	}
	if len(res.Errors) > 0 {
		for _, e := range res.Errors {
			result.Errors = append(result.Errors, EvalErrorData{Line: e.Line, Col: e.Col, Message: e.Message})
		}
		return result
	}
	result.Morphology = res.Morphology

	// Step 2: Tessellate the soma and sections into triangle meshes.
	meshes, err := tessellate.Tessellate(res.Morphology, a.kernel)
	if err != nil {
		logger.Error("Tessellate error", "error", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: "tessellation failed: " + err.Error()})
		return result
	}

	// Step 3: Convert kernel meshes to MeshData.
	result.Meshes = meshData(meshes)
	return result
}

// BuildFile evaluates the script at scriptPath and writes the resulting
// morphology to out, converting the soma for out's format.
func (a *App) BuildFile(scriptPath, out string) ([]EvalErrorData, error) {
	source, err := os.ReadFile(scriptPath)
	if err != nil {
		return nil, err
	}
	m, evalErrs, err := a.engine.Evaluate(string(source))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", scriptPath, err)
	}
	if len(evalErrs) > 0 {
		data := make([]EvalErrorData, len(evalErrs))
		for i, e := range evalErrs {
			data[i] = EvalErrorData{Line: e.Line, Col: e.Col, Message: e.Message}
		}
		return data, nil
	}
	res, err := a.Convert(m, out, ConvertOptions{})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", scriptPath, err)
	}
	return nil, morphio.Write(res, out)
}

// MeshFile tessellates the morphology at path.
func (a *App) MeshFile(path string) ([]MeshData, error) {
	m, err := morphio.Load(path)
	if err != nil {
		return nil, err
	}
	meshes, err := tessellate.Tessellate(m, a.kernel)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return meshData(meshes), nil
}

func meshData(meshes []*kernel.Mesh) []MeshData {
	data := make([]MeshData, len(meshes))
	for i, m := range meshes {
		data[i] = MeshData{
			Vertices: m.Vertices,
			Normals:  m.Normals,
			Indices:  m.Indices,
			Name:     m.Name,
			Color:    colorPalette[i%len(colorPalette)],
		}
	}
	return data
}
