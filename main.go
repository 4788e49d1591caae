// Package main provides the morphtool CLI application entry point.
// morphtool converts, compares and simplifies neuron morphologies.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/chazu/morphtool/internal/config"
	"github.com/chazu/morphtool/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var version = "0.1.0" // This could be set at build time

// errDiffer is returned by the diff command when the morphologies differ.
// The differences have already been printed, so main only sets the exit
// status.
var errDiffer = errors.New("morphologies differ")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errDiffer) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// cli carries the state shared by the commands of one invocation.
type cli struct {
	v        *viper.Viper
	cfgFile  string
	testMode bool
	cfg      config.Config
	app      *App
}

// newRootCmd builds the command tree with its own viper instance.
func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "morphtool",
		Short: "Convert, compare and simplify neuron morphologies",
		Long: `morphtool converts neuron morphologies between file formats, reconciling
the soma encodings each format supports, compares two morphologies section by
section, and simplifies neurites with Ramer-Douglas-Peucker.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.initConfig(cmd)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&c.cfgFile, "config", "", "Config file [default: ./morphtool.yaml, then $HOME/.config/morphtool/morphtool.yaml]")
	pf.String("log-level", "", "Set log level (debug|info|warn|error) [default: info]")
	pf.String("log-file", "", "Write logs to file instead of stderr")
	pf.BoolVar(&c.testMode, "test-mode", false, "Run in deterministic test mode")
	c.bindFlag(rootCmd, "logging.level", "log-level")
	c.bindFlag(rootCmd, "logging.file", "log-file")

	rootCmd.AddCommand(
		c.convertCmd(),
		c.convertFolderCmd(),
		c.simplifyCmd(),
		c.diffCmd(),
		c.surfaceCmd(),
		c.buildCmd(),
		c.meshCmd(),
		c.versionCmd(),
	)
	return rootCmd
}

// configKey is the flag annotation naming the config key a flag sets.
const configKey = "morphtool_config_key"

// bindFlag marks a flag of cmd as the command line source of a config
// key. The binding happens in initConfig, once the running command is
// known, so commands sharing a key do not shadow one another.
func (c *cli) bindFlag(cmd *cobra.Command, key, name string) {
	fs := cmd.Flags()
	if fs.Lookup(name) == nil {
		fs = cmd.PersistentFlags()
	}
	if err := fs.SetAnnotation(name, configKey, []string{key}); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding %s flag: %v\n", name, err)
		os.Exit(1)
	}
}

// initConfig binds the flags of the running command, loads the
// configuration and configures the logger.
func (c *cli) initConfig(cmd *cobra.Command) error {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if keys := f.Annotations[configKey]; len(keys) == 1 && bindErr == nil {
			bindErr = c.v.BindPFlag(keys[0], f)
		}
	})
	if bindErr != nil {
		return bindErr
	}
	config.Setup(c.v, c.cfgFile)
	cfg, err := config.Load(c.v)
	if err != nil {
		return err
	}
	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.File, c.testMode); err != nil {
		return fmt.Errorf("configuring logger: %w", err)
	}
	c.cfg = cfg
	c.app = NewApp(cfg)
	logger.Debug("Configuration loaded", "file", c.v.ConfigFileUsed(), "oracle", cfg.Oracle.Kind)
	return nil
}
