// Package stages holds the concrete pipeline stages that turn a personal
// data export into a browsable archive: discover, extract, resolve, copy
// and generate. The orchestration contract they implement lives in
// internal/pipeline; the durable artifacts they exchange live in the
// processing dir.
package stages

import (
	"fmt"
	"path/filepath"

	"github.com/flarebyte/seshat-archive/internal/config"
	"github.com/flarebyte/seshat-archive/internal/pipeline"
)

const (
	StageDiscover = "discover"
	StageExtract  = "extract"
	StageResolve  = "resolve"
	StageCopy     = "copy"
	StageGenerate = "generate"
)

const (
	documentsFileName  = "documents.json"
	referencesFileName = "references.json"
	progressFileName   = "progress.json"
)

// All returns the full stage set in registration order.
func All() []pipeline.Stage {
	return []pipeline.Stage{
		&DiscoverStage{},
		&ExtractStage{},
		&ResolveStage{},
		&CopyStage{},
		&GenerateStage{},
	}
}

// settingsFrom unpacks the opaque configuration carried by the run context.
func settingsFrom(rc *pipeline.RunContext) (config.Settings, error) {
	s, ok := rc.Config.(config.Settings)
	if !ok {
		return config.Settings{}, fmt.Errorf("run context carries no usable configuration")
	}
	return s, nil
}

func documentsPath(rc *pipeline.RunContext) string {
	return filepath.Join(rc.ProcessingDir, documentsFileName)
}

func referencesPath(rc *pipeline.RunContext) string {
	return filepath.Join(rc.ProcessingDir, referencesFileName)
}

func progressPath(rc *pipeline.RunContext) string {
	return filepath.Join(rc.ProcessingDir, progressFileName)
}

func attachmentsDir(rc *pipeline.RunContext) string {
	return filepath.Join(rc.OutputDir, "attachments")
}
