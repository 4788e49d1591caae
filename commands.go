package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/chazu/morphtool/pkg/diff"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by the report commands.
const (
	formatText = "text"
	formatYAML = "yaml"
)

func (c *cli) convertCmd() *cobra.Command {
	var opts ConvertOptions
	cmd := &cobra.Command{
		Use:   "convert IN OUT",
		Short: "Convert a morphology, adapting the soma to the output format",
		Long: `Convert reads IN and writes OUT. The output format follows OUT's extension
(swc, asc or h5) and the soma is converted to an encoding that format can store.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.ConvertFile(args[0], args[1], opts)
		},
	}
	cmd.Flags().BoolVar(&opts.SinglePointSoma, "single-point-soma", false, "Replace the soma by a sphere of equal surface area")
	cmd.Flags().BoolVar(&opts.Recenter, "recenter", false, "Move the soma center to the origin")
	c.somaFlags(cmd)
	return cmd
}

// somaFlags adds the flags that tune soma conversion to cmd.
func (c *cli) somaFlags(cmd *cobra.Command) {
	cmd.Flags().Int("levels", 0, "Cross sections used when fitting a contour [default: contour point count]")
	cmd.Flags().Int("contour-points", 0, "Points per generated contour [default: 20]")
	cmd.Flags().Bool("sphere-as-contour", false, "Write a sphere soma as a contour")
	cmd.Flags().String("oracle", "", "Surface oracle sizing and checking conversions (none|closed-form|mesh); mesh is slower and within a few percent")
	c.bindFlag(cmd, "contour.levels", "levels")
	c.bindFlag(cmd, "soma.contour_points", "contour-points")
	c.bindFlag(cmd, "soma.sphere_as_contour", "sphere-as-contour")
	c.bindFlag(cmd, "oracle.kind", "oracle")
}

func (c *cli) convertFolderCmd() *cobra.Command {
	var (
		opts ConvertOptions
		ext  string
	)
	cmd := &cobra.Command{
		Use:   "convert-folder IN_DIR OUT_DIR",
		Short: "Convert every morphology of a folder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := c.app.ConvertFolder(cmd.Context(), args[0], args[1], ext, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "converted %d files\n", len(report.Converted))
			if report.OK() {
				return nil
			}
			for _, f := range report.Failed {
				fmt.Fprintln(cmd.ErrOrStderr(), f.Error())
			}
			return fmt.Errorf("%d of %d files failed", len(report.Failed), len(report.Failed)+len(report.Converted))
		},
	}
	cmd.Flags().StringVar(&ext, "ext", "swc", "Output file extension")
	cmd.Flags().BoolVar(&opts.SinglePointSoma, "single-point-soma", false, "Replace each soma by a sphere of equal surface area")
	cmd.Flags().BoolVar(&opts.Recenter, "recenter", false, "Move each soma center to the origin")
	cmd.Flags().Int("workers", 0, "Files converted at once [default: GOMAXPROCS]")
	c.bindFlag(cmd, "batch.workers", "workers")
	c.somaFlags(cmd)
	return cmd
}

func (c *cli) simplifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simplify IN OUT",
		Short: "Simplify every section with Ramer-Douglas-Peucker",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.SimplifyFile(args[0], args[1], c.cfg.Simplify.Epsilon)
		},
	}
	cmd.Flags().Float64("epsilon", 1, "Largest distance a dropped point may lie from the simplified line")
	c.bindFlag(cmd, "simplify.epsilon", "epsilon")
	return cmd
}

func (c *cli) diffCmd() *cobra.Command {
	var (
		firstOnly bool
		points    bool
		format    string
	)
	cmd := &cobra.Command{
		Use:   "diff A B",
		Short: "Compare two morphologies; exit status 1 when they differ",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != formatText && format != formatYAML {
				return fmt.Errorf("unknown format %q (want %s or %s)", format, formatText, formatYAML)
			}
			var opts []diff.Option
			if firstOnly {
				opts = append(opts, diff.WithFirstOnly())
			}
			r, err := c.app.DiffFiles(args[0], args[1], opts...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := writeDiff(out, r, format); err != nil {
				return err
			}
			if points && r.Differs {
				reports, err := c.app.PointsDiff(args[0], args[1])
				if err != nil {
					return err
				}
				for _, p := range reports {
					fmt.Fprintf(out, "\nsection %d points:\n%s", p.ID, p.Report)
				}
			}
			if r.Differs {
				return errDiffer
			}
			return nil
		},
	}
	cmd.Flags().Float64("rtol", diff.DefaultRTol, "Relative tolerance")
	cmd.Flags().Float64("atol", diff.DefaultATol, "Absolute tolerance")
	cmd.Flags().Bool("skip-perimeters", false, "Ignore perimeters")
	cmd.Flags().BoolVar(&firstOnly, "first-only", false, "Stop at the first difference")
	cmd.Flags().BoolVar(&points, "points", false, "Print a line diff of the points of differing sections")
	cmd.Flags().StringVar(&format, "format", formatText, "Report format (text|yaml)")
	c.bindFlag(cmd, "diff.rtol", "rtol")
	c.bindFlag(cmd, "diff.atol", "atol")
	c.bindFlag(cmd, "diff.skip_perimeters", "skip-perimeters")
	return cmd
}

func writeDiff(w io.Writer, r diff.Result, format string) error {
	if format == formatYAML {
		b, err := r.YAML()
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	}
	if !r.Differs {
		return nil
	}
	_, err := fmt.Fprintln(w, r.String())
	return err
}

func (c *cli) surfaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "surface IN",
		Short: "Report the soma surface area measured by each oracle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := c.app.SurfaceArea(args[0])
			if err != nil {
				return err
			}
			b, err := yaml.Marshal(r)
			if err != nil {
				return fmt.Errorf("encoding report: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
	c.somaFlags(cmd)
	cmd.Flags().Int("mesh-cells", 0, "Marching cubes cells along the longest axis of a meshed soma")
	c.bindFlag(cmd, "oracle.mesh_cells", "mesh-cells")
	return cmd
}

func (c *cli) buildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build SCRIPT OUT",
		Short: "Evaluate a morphology script and write the morphology",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			evalErrs, err := c.app.BuildFile(args[0], args[1])
			if err != nil {
				return err
			}
			if len(evalErrs) == 0 {
				return nil
			}
			for _, e := range evalErrs {
				if e.Line > 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s:%d: %s\n", args[0], e.Line, e.Message)
				} else {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", args[0], e.Message)
				}
			}
			return fmt.Errorf("%s: %d errors", args[0], len(evalErrs))
		},
	}
}

func (c *cli) meshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mesh IN OUT.json",
		Short: "Tessellate a morphology into triangle meshes",
		Long:  `Mesh writes the soma and every section as a JSON array of meshes. OUT "-" writes to stdout.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			meshes, err := c.app.MeshFile(args[0])
			if err != nil {
				return err
			}
			if args[1] == "-" {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(meshes)
			}
			f, err := os.Create(args[1])
			if err != nil {
				return err
			}
			if err := json.NewEncoder(f).Encode(meshes); err != nil {
				f.Close()
				return fmt.Errorf("encoding meshes: %w", err)
			}
			return f.Close()
		},
	}
}

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "morphtool v%s\n", version)
		},
	}
}
