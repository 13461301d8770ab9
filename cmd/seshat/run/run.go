package run

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flarebyte/seshat-archive/internal/config"
)

var (
	cfgPath    string
	flagForce  bool
	flagKeepGo bool
	flagStages string
)

// Cmd represents the `seshat run` command.
var Cmd = &cobra.Command{
	Use:           "run",
	Short:         "Run the archive pipeline defined in a config",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfgPath == "" {
			return fmt.Errorf("missing required flag: --config")
		}
		settings, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		config.ApplyEnv(&settings)

		var requested []string
		if flagStages != "" {
			for _, name := range strings.Split(flagStages, ",") {
				if name = strings.TrimSpace(name); name != "" {
					requested = append(requested, name)
				}
			}
		}
		return executePipeline(cmd.Context(), settings, requested, flagForce, flagKeepGo)
	},
}

func init() {
	Cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to config file (.cue)")
	Cmd.Flags().BoolVar(&flagForce, "force", false, "Rerun stages even when cached output is still valid")
	Cmd.Flags().BoolVar(&flagKeepGo, "keep-going", false, "Continue past a failed stage instead of halting")
	Cmd.Flags().StringVar(&flagStages, "stages", "", "Comma-separated subset of stages to run")
}
