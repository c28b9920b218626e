package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/config"
)

var (
	cfgFile string
	verbose bool

	settings = config.New()
	cfg      *config.Config
	logger   = zap.NewNop()
)

// rootCmd is the application entry point.
var rootCmd = &cobra.Command{
	Use:   "daedalus",
	Short: "Workflow automation engine",
	Long: `Daedalus executes workflow trees of test cases, loops, conditionals
and control actions. Workflows are stored as JSON, YAML or TOML documents
and scripted arguments live in plain JavaScript files next to them.`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return setup(cmd)
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		_ = logger.Sync()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./daedalus.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().String("scripts-dir", "", "scripts directory, relative to the working directory")
	rootCmd.PersistentFlags().String("working-dir", "", "working directory scripts and reports are resolved against")

	_ = settings.BindPFlag("paths.scripts_dir", rootCmd.PersistentFlags().Lookup("scripts-dir"))
	_ = settings.BindPFlag("paths.working_dir", rootCmd.PersistentFlags().Lookup("working-dir"))
}

// setup loads the configuration and builds the logger.
func setup(_ *cobra.Command) error {
	c, err := config.Load(settings, cfgFile)
	if err != nil {
		return err
	}
	if verbose {
		c.Logging.Level = "debug"
	}
	l, err := c.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	cfg, logger = c, l
	return nil
}
