package reset

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flarebyte/seshat-archive/internal/config"
	"github.com/flarebyte/seshat-archive/internal/ledger"
	"github.com/flarebyte/seshat-archive/internal/pipeline"
	"github.com/flarebyte/seshat-archive/internal/stages"
)

var (
	cfgPath   string
	flagStage string
)

// Cmd clears recorded pipeline history so the next run starts fresh.
var Cmd = &cobra.Command{
	Use:           "reset",
	Short:         "Clear recorded pipeline history for one stage or the whole run",
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

		store, err := ledger.NewStore(settings.Processing.Dir)
		if err != nil {
			return err
		}
		o := pipeline.NewOrchestrator(store)
		for _, s := range stages.All() {
			o.Register(s)
		}

		if flagStage != "" {
			if err := o.ResetStage(flagStage); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared history for stage %q\n", flagStage)
			return nil
		}
		if err := o.ResetPipeline(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "cleared all pipeline history")
		return nil
	},
}

func init() {
	Cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to config file (.cue)")
	Cmd.Flags().StringVar(&flagStage, "stage", "", "Reset only this stage (and leave the rest)")
}
