package stages

import (
	"context"
	"fmt"

	"github.com/flarebyte/seshat-archive/internal/attachment"
	"github.com/flarebyte/seshat-archive/internal/config"
	"github.com/flarebyte/seshat-archive/internal/pipeline"
)

// ResolveStage matches extracted reference identifiers to candidate files
// in the export tree and persists the mapping artifact. Its skip decision
// implements the fingerprint freshness contract, so the expensive scan and
// match only reruns when the source tree actually moved.
type ResolveStage struct {
	pipeline.BaseStage
}

func (s *ResolveStage) Name() string           { return StageResolve }
func (s *ResolveStage) Dependencies() []string { return []string{StageExtract} }

func (s *ResolveStage) ValidatePrerequisites(rc *pipeline.RunContext) error {
	if !fileExists(referencesPath(rc)) {
		return fmt.Errorf("references artifact missing: %s", referencesPath(rc))
	}
	return nil
}

func (s *ResolveStage) CanSkip(rc *pipeline.RunContext) bool {
	cfg, err := settingsFrom(rc)
	if err != nil {
		return false
	}
	return attachment.Fresh(attachment.ArtifactPath(rc.ProcessingDir), cfg.Export.Root, maxDrift(cfg))
}

func (s *ResolveStage) Execute(ctx context.Context, rc *pipeline.RunContext) (*pipeline.StageResult, error) {
	cfg, err := settingsFrom(rc)
	if err != nil {
		return nil, err
	}

	var refs ReferencesArtifact
	if err := readJSONArtifact(referencesPath(rc), &refs); err != nil {
		return nil, err
	}

	var extensions []string
	if cfg.Attachments.HasExtensions {
		extensions = cfg.Attachments.Extensions
	}
	candidates, err := attachment.ScanCandidates(cfg.Export.Root, extensions)
	if err != nil {
		return nil, fmt.Errorf("scan candidates: %w", err)
	}
	fp, err := attachment.ComputeFingerprint(cfg.Export.Root)
	if err != nil {
		return nil, err
	}

	union := refs.Union()
	resolver := attachment.NewResolver(cfg.Export.Root, candidates)
	mappings := resolver.Resolve(union)

	a := attachment.NewArtifact(cfg.Export.Root, fp, mappings)
	path := attachment.ArtifactPath(rc.ProcessingDir)
	if err := attachment.WriteArtifact(path, a); err != nil {
		return nil, err
	}

	return &pipeline.StageResult{
		StageName:        StageResolve,
		Success:          true,
		RecordsProcessed: len(mappings),
		OutputFiles:      []string{path},
		Metadata: map[string]any{
			"candidates": len(candidates),
			"references": len(union),
			"unmatched":  len(union) - len(mappings),
		},
	}, nil
}

func maxDrift(cfg config.Settings) float64 {
	if cfg.Attachments.HasMaxCountDriftPercent {
		return cfg.Attachments.MaxCountDriftPercent
	}
	return attachment.DefaultMaxDriftPercent
}
