package status

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/flarebyte/seshat-archive/internal/config"
	"github.com/flarebyte/seshat-archive/internal/ledger"
)

var cfgPath string

// Cmd reports the latest recorded outcome for every pipeline stage.
var Cmd = &cobra.Command{
	Use:           "status",
	Short:         "Show the latest recorded outcome of each pipeline stage",
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
		records, err := store.PipelineStatus()
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		for _, r := range statusReport(records) {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	},
}

type stageReport struct {
	Stage       string `json:"stage"`
	Success     bool   `json:"success"`
	Skipped     bool   `json:"skipped"`
	Records     int    `json:"records"`
	Errors      int    `json:"errors"`
	FinishedAt  string `json:"finished_at"`
	OutputFiles int    `json:"output_files"`
}

func statusReport(records []ledger.ExecutionRecord) []stageReport {
	out := make([]stageReport, 0, len(records))
	for _, rec := range records {
		r := stageReport{
			Stage:       rec.StageName,
			Success:     rec.Success,
			Skipped:     rec.Skipped,
			Records:     rec.RecordsProcessed,
			Errors:      rec.ErrorCount,
			OutputFiles: len(rec.OutputFiles),
		}
		if rec.FinishedAt != nil {
			r.FinishedAt = rec.FinishedAt.UTC().Format(time.RFC3339)
		}
		out = append(out, r)
	}
	return out
}

func init() {
	Cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to config file (.cue)")
}
