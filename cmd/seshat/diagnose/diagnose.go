package diagnose

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/flarebyte/seshat-archive/internal/attachment"
	"github.com/flarebyte/seshat-archive/internal/config"
	"github.com/flarebyte/seshat-archive/internal/export"
)

var cfgPath string

// Cmd implements `seshat diagnose`, a read-only sanity report over the
// configured export, processing and output directories.
var Cmd = &cobra.Command{
	Use:           "diagnose",
	Short:         "Report on the export, processing state and cached artifacts",
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

		report := buildReport(settings)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
		if !report.OK {
			return fmt.Errorf("diagnose found %d problem(s)", countProblems(report))
		}
		return nil
	},
}

type check struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Detail  string `json:"detail,omitempty"`
	Problem string `json:"problem,omitempty"`
}

type report struct {
	OK     bool    `json:"ok"`
	Checks []check `json:"checks"`
}

func buildReport(settings config.Settings) report {
	checks := []check{
		checkExportRoot(settings.Export.Root),
		checkWritableDir("processing_dir", settings.Processing.Dir),
		checkWritableDir("output_dir", settings.Output.Dir),
		checkResolutionArtifact(settings),
	}
	ok := true
	for _, c := range checks {
		if !c.OK {
			ok = false
		}
	}
	return report{OK: ok, Checks: checks}
}

func checkExportRoot(root string) check {
	c := check{Name: "export_root"}
	info, err := os.Stat(root)
	if err != nil {
		c.Problem = fmt.Sprintf("cannot stat %s: %v", root, err)
		return c
	}
	if !info.IsDir() {
		c.Problem = fmt.Sprintf("%s is not a directory", root)
		return c
	}
	docs, err := export.DiscoverDocuments(root)
	if err != nil {
		c.Problem = fmt.Sprintf("cannot list documents: %v", err)
		return c
	}
	c.OK = true
	c.Detail = fmt.Sprintf("%d documents", len(docs))
	return c
}

// checkWritableDir treats a missing directory as fine; the pipeline creates
// it on first run.
func checkWritableDir(name, dir string) check {
	c := check{Name: name}
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		c.OK = true
		c.Detail = fmt.Sprintf("%s does not exist yet", dir)
		return c
	}
	if err != nil {
		c.Problem = fmt.Sprintf("cannot stat %s: %v", dir, err)
		return c
	}
	if !info.IsDir() {
		c.Problem = fmt.Sprintf("%s is not a directory", dir)
		return c
	}
	c.OK = true
	c.Detail = dir
	return c
}

func checkResolutionArtifact(settings config.Settings) check {
	c := check{Name: "resolution_artifact", OK: true}
	path := attachment.ArtifactPath(settings.Processing.Dir)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		c.Detail = "not built yet"
		return c
	}
	limit := attachment.DefaultMaxDriftPercent
	if settings.Attachments.HasMaxCountDriftPercent {
		limit = settings.Attachments.MaxCountDriftPercent
	}
	if attachment.Fresh(path, settings.Export.Root, limit) {
		c.Detail = fmt.Sprintf("fresh (%s)", filepath.Base(path))
		return c
	}
	c.Detail = "stale; the resolve stage will rebuild it"
	return c
}

func countProblems(r report) int {
	n := 0
	for _, c := range r.Checks {
		if !c.OK {
			n++
		}
	}
	return n
}

func init() {
	Cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to config file (.cue)")
}
