package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPaths []string
	verbose     bool
	jsonOutput  bool
	modeFlag    string

	buildVersion = "dev"
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	buildVersion = version

	rootCmd := &cobra.Command{
		Use:   "gridcalc",
		Short: "gridcalc - spreadsheet formula engine",
		Long: `gridcalc parses, compiles and recalculates spreadsheet formulas.

Workbooks are described in YAML documents holding sheets, cell values,
formulas, defined names, tables and calculated-column models.

Features:
  - Locale-aware formula text (en-US, de-DE, fr-FR)
  - Dynamic arrays with spilling
  - Incremental recalculation, single-threaded or level-parallel
  - Calculated columns with atomic row insertion
  - Workbook snapshots in SQLite`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringSliceVarP(&configPaths, "config", "c", nil, "engine config files (YAML or CUE), merged in order")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&modeFlag, "mode", "", "recalculation mode (single or parallel), overrides the config")

	rootCmd.AddCommand(newEvalCommand())
	rootCmd.AddCommand(newRecalcCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newTokensCommand())
	rootCmd.AddCommand(newSnapshotCommand())
	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}
