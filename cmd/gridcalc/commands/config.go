package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gridcalc/gridcalc/pkg/config"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect engine configuration",
	}
	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigValidateCommand())
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective engine configuration",
		Long: `Print the engine configuration after merging the --config sources and
applying defaults.`,
		Example: `  gridcalc config show
  gridcalc -c base.yaml -c override.cue config show --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Context(), configPaths...)
			if err != nil {
				return err
			}
			if modeFlag != "" {
				cfg.Mode = modeFlag
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, cfg)
			}
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(map[string]config.EngineConfig{"engine": cfg}); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <path>...",
		Short: "Validate configuration files against the engine schema",
		Example: `  gridcalc config validate engine.yaml
  gridcalc config validate ./config`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pc, err := config.NewCUEParser().Parse(cmd.Context(), args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				if err := writeJSON(out, pc); err != nil {
					return err
				}
				return pc.Err()
			}
			for _, ve := range pc.Errors {
				fmt.Fprintf(out, "%s: %s\n", ve.Severity, ve.Error())
			}
			if err := pc.Err(); err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "%d file(s) valid\n", len(pc.SourceFiles))
			return err
		},
	}
}
