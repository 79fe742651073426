// =============================================================================
// Grade Summary - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands are attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (gradesum)
//   ├── summarizeCmd (gradesum summarize)
//   ├── serveCmd     (gradesum serve)
//   └── versionCmd   (gradesum version)
//
// CONFIGURATION:
//   Before any subcommand runs, the root command:
//   1. Loads the configuration file (--config), then GRADESUM_* overrides
//   2. Applies --verbose
//   3. Sets up the logger
//
// =============================================================================

package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/gradesum/internal/config"
	"github.com/ginjaninja78/gradesum/internal/logging"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the configuration file.
var cfgFile string

// verbose enables debug logging when set to true.
var verbose bool

// appConfig and logger are populated by the root command before any
// subcommand runs.
var (
	appConfig *config.Config
	logger    *slog.Logger
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "gradesum",
	Short: "Grade Summary - Summarize registrar grade exports by course and cohort",
	Long: `Grade Summary reads registrar grade exports (XLSX or CSV), merges them into
one table and reports, per course and per enrollment cohort, how many students
were enrolled, how many took part and how many passed.

Key Features:
  - Any number of exports per batch; unusable files are reported and skipped
  - Two-level drill-down: periods -> courses -> enrollment cohorts
  - XLSX export of both summaries
  - HTTP session API for interactive use

Example Usage:
  gradesum summarize ./exports/*.xlsx --period "2023-2024 Χ"
  gradesum summarize --input-dir ./exports --period P1 --course ΜΑΘ101
  gradesum serve --config ./config.yaml`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	// --config: a missing file is only an error when the flag is given.
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}

// initConfig loads the configuration and builds the logger.
func initConfig(cmd *cobra.Command) error {
	cfg, err := config.Load(cfgFile, cmd.Flags().Changed("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if verbose {
		cfg.Logging.Level = "debug"
	}

	appConfig = cfg
	logger = logging.New(cfg.Logging, cmd.ErrOrStderr())
	logger.Debug("configuration loaded", slog.String("config", cfgFile))
	return nil
}
