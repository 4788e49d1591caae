// Package batch converts every morphology file of a folder in parallel.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/chazu/morphtool/internal/logger"
	"github.com/chazu/morphtool/pkg/soma"
	"golang.org/x/sync/errgroup"
)

// ConvertFunc converts the file at in and writes the result to out.
type ConvertFunc func(ctx context.Context, in, out string) error

// Options tunes ConvertFolder.
type Options struct {
	// Workers bounds the number of files converted at once. Zero means
	// GOMAXPROCS.
	Workers int
	// Logger receives per-file progress. Nil means the shared logger.
	Logger *log.Logger
}

// Failure records a file that could not be converted.
type Failure struct {
	Path string `json:"path" yaml:"path"`
	Err  error  `json:"-" yaml:"-"`
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Path, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Report lists the outcome for every input file, sorted by input path.
type Report struct {
	Converted []string  `json:"converted" yaml:"converted"`
	Failed    []Failure `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// OK reports whether every file converted.
func (r Report) OK() bool {
	return len(r.Failed) == 0
}

// Inputs lists the morphology files directly inside dir, that is files
// with an .swc, .asc or .h5 extension in any case, sorted by name.
func Inputs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := soma.FormatForPath(e.Name()); err != nil {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// OutputPath maps an input file to outDir with its extension replaced by
// ext (given with or without the leading dot).
func OutputPath(in, outDir, ext string) string {
	base := filepath.Base(in)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outDir, stem+"."+strings.TrimPrefix(ext, "."))
}

// ConvertFolder runs convert for every input of inDir, writing to outDir
// with extension ext. A file that fails is recorded in the report and the
// others carry on. The returned error is non-nil only when inDir cannot be
// listed, outDir cannot be created, or ctx is cancelled.
func ConvertFolder(ctx context.Context, inDir, outDir, ext string, convert ConvertFunc, opts Options) (Report, error) {
	l := logger.Or(opts.Logger)

	inputs, err := Inputs(inDir)
	if err != nil {
		return Report{}, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Report{}, fmt.Errorf("batch: %w", err)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	l.Info("Converting folder", "in", inDir, "out", outDir, "files", len(inputs), "workers", workers)

	var (
		mu     sync.Mutex
		report Report
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, in := range inputs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out := OutputPath(in, outDir, ext)
			err := convert(gctx, in, out)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// A cancelled conversion is not the file's fault.
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				l.Warn("Conversion failed", "path", in, "error", err)
				report.Failed = append(report.Failed, Failure{Path: in, Err: err})
				return nil
			}
			l.Debug("Converted", "path", in, "out", out)
			report.Converted = append(report.Converted, in)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Report{}, fmt.Errorf("batch: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Report{}, fmt.Errorf("batch: %w", err)
	}

	sort.Strings(report.Converted)
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].Path < report.Failed[j].Path })
	l.Info("Folder converted", "converted", len(report.Converted), "failed", len(report.Failed))
	return report, nil
}
