// Package config holds morphtool's layered configuration: built-in
// defaults, then morphtool.yaml, then MORPHTOOL_* environment variables,
// then command-line flags bound through viper.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/morphtool/pkg/diff"
	"github.com/chazu/morphtool/pkg/kernel/sdfx"
	"github.com/chazu/morphtool/pkg/soma"
	"github.com/chazu/morphtool/pkg/tessellate"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. MORPHTOOL_DIFF_RTOL.
const EnvPrefix = "MORPHTOOL"

// FileName is the config file looked up without its extension.
const FileName = "morphtool"

// Oracle kinds.
const (
	OracleNone       = "none"
	OracleClosedForm = "closed-form"
	OracleMesh       = "mesh"
)

// Config is the full morphtool configuration.
type Config struct {
	Diff     DiffConfig     `mapstructure:"diff" yaml:"diff"`
	Contour  ContourConfig  `mapstructure:"contour" yaml:"contour"`
	Soma     SomaConfig     `mapstructure:"soma" yaml:"soma"`
	Simplify SimplifyConfig `mapstructure:"simplify" yaml:"simplify"`
	Oracle   OracleConfig   `mapstructure:"oracle" yaml:"oracle"`
	Batch    BatchConfig    `mapstructure:"batch" yaml:"batch"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

type DiffConfig struct {
	RTol           float64 `mapstructure:"rtol" yaml:"rtol"`
	ATol           float64 `mapstructure:"atol" yaml:"atol"`
	SkipPerimeters bool    `mapstructure:"skip_perimeters" yaml:"skip_perimeters"`
}

type ContourConfig struct {
	// Levels is the number of cylinders fitted to a contour; 0 uses the
	// contour's point count.
	Levels int `mapstructure:"levels" yaml:"levels"`
}

type SomaConfig struct {
	ContourPoints   int  `mapstructure:"contour_points" yaml:"contour_points"`
	SphereAsContour bool `mapstructure:"sphere_as_contour" yaml:"sphere_as_contour"`
}

type SimplifyConfig struct {
	Epsilon float64 `mapstructure:"epsilon" yaml:"epsilon"`
}

type OracleConfig struct {
	Kind      string `mapstructure:"kind" yaml:"kind"`
	MeshCells int    `mapstructure:"mesh_cells" yaml:"mesh_cells"`
}

type BatchConfig struct {
	// Workers bounds parallel conversions; 0 means one per CPU.
	Workers int `mapstructure:"workers" yaml:"workers"`
}

type LoggingConfig struct {
	// Level empty defers to MORPHTOOL_LOG_LEVEL, then info.
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Diff:     DiffConfig{RTol: diff.DefaultRTol, ATol: diff.DefaultATol},
		Simplify: SimplifyConfig{Epsilon: 1},
		Oracle:   OracleConfig{Kind: OracleClosedForm, MeshCells: sdfx.DefaultMeshCells},
	}
}

// SetDefaults registers every key of Default on v so environment variables
// can override keys that appear in no config file.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("diff.rtol", d.Diff.RTol)
	v.SetDefault("diff.atol", d.Diff.ATol)
	v.SetDefault("diff.skip_perimeters", d.Diff.SkipPerimeters)
	v.SetDefault("contour.levels", d.Contour.Levels)
	v.SetDefault("soma.contour_points", d.Soma.ContourPoints)
	v.SetDefault("soma.sphere_as_contour", d.Soma.SphereAsContour)
	v.SetDefault("simplify.epsilon", d.Simplify.Epsilon)
	v.SetDefault("oracle.kind", d.Oracle.Kind)
	v.SetDefault("oracle.mesh_cells", d.Oracle.MeshCells)
	v.SetDefault("batch.workers", d.Batch.Workers)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
}

// Setup prepares v to read morphtool.yaml from the working directory or
// $HOME/.config/morphtool, and MORPHTOOL_* variables from the environment.
// An explicit file, when given, replaces the search.
func Setup(v *viper.Viper, file string) {
	SetDefaults(v)
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/morphtool")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Load reads the config file, if any, and decodes v into a Config.
// A missing file in the search path is not an error; a missing explicit
// file is.
func Load(v *viper.Viper) (Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: %w", err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects values no component accepts.
func (c Config) Validate() error {
	var errs []error
	if c.Diff.RTol < 0 || c.Diff.ATol < 0 {
		errs = append(errs, fmt.Errorf("diff tolerances must be non-negative, got rtol=%g atol=%g", c.Diff.RTol, c.Diff.ATol))
	}
	if c.Contour.Levels < 0 {
		errs = append(errs, fmt.Errorf("contour.levels must be non-negative, got %d", c.Contour.Levels))
	}
	if c.Soma.ContourPoints != 0 && c.Soma.ContourPoints < 3 {
		errs = append(errs, fmt.Errorf("soma.contour_points must be 0 or at least 3, got %d", c.Soma.ContourPoints))
	}
	if c.Simplify.Epsilon < 0 {
		errs = append(errs, fmt.Errorf("simplify.epsilon must be non-negative, got %g", c.Simplify.Epsilon))
	}
	switch c.Oracle.Kind {
	case OracleNone, OracleClosedForm, OracleMesh:
	default:
		errs = append(errs, fmt.Errorf("oracle.kind must be %s, %s or %s, got %q", OracleNone, OracleClosedForm, OracleMesh, c.Oracle.Kind))
	}
	if c.Batch.Workers < 0 {
		errs = append(errs, fmt.Errorf("batch.workers must be non-negative, got %d", c.Batch.Workers))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// SurfaceOracle builds the configured oracle. OracleNone yields nil, which
// limits sphere reduction to three-point cylinders.
func (c Config) SurfaceOracle() soma.SurfaceOracle {
	switch c.Oracle.Kind {
	case OracleClosedForm:
		return soma.ClosedForm{}
	case OracleMesh:
		return &tessellate.MeshOracle{Kernel: sdfx.NewWithCells(c.Oracle.MeshCells), Levels: c.Contour.Levels}
	}
	return nil
}

// SomaOptions returns conversion options for pkg/soma.
func (c Config) SomaOptions() soma.Options {
	return soma.Options{
		Oracle:          c.SurfaceOracle(),
		Levels:          c.Contour.Levels,
		ContourPoints:   c.Soma.ContourPoints,
		SphereAsContour: c.Soma.SphereAsContour,
	}
}

// DiffOptions returns comparison options for pkg/diff.
func (c Config) DiffOptions() diff.Options {
	o := diff.DefaultOptions()
	o.RTol, o.ATol = c.Diff.RTol, c.Diff.ATol
	o.SkipPerimeters = c.Diff.SkipPerimeters
	return o
}
