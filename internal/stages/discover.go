package stages

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/flarebyte/seshat-archive/internal/attachment"
	"github.com/flarebyte/seshat-archive/internal/export"
	"github.com/flarebyte/seshat-archive/internal/pipeline"
)

// DiscoverStage inventories the export tree: it classifies every HTML
// document, applies the optional Lua inclusion predicate and persists the
// result as the documents artifact other stages build on.
type DiscoverStage struct {
	pipeline.BaseStage
}

func (s *DiscoverStage) Name() string { return StageDiscover }

func (s *DiscoverStage) ValidatePrerequisites(rc *pipeline.RunContext) error {
	cfg, err := settingsFrom(rc)
	if err != nil {
		return err
	}
	if fi, err := os.Stat(cfg.Export.Root); err != nil || !fi.IsDir() {
		return fmt.Errorf("export root is not a readable directory: %s", cfg.Export.Root)
	}
	return nil
}

// CanSkip trusts the cached inventory only while the export tree's
// fingerprint and file count are both unchanged.
func (s *DiscoverStage) CanSkip(rc *pipeline.RunContext) bool {
	cfg, err := settingsFrom(rc)
	if err != nil {
		return false
	}
	var a DocumentsArtifact
	if err := readJSONArtifact(documentsPath(rc), &a); err != nil {
		return false
	}
	fp, err := attachment.ComputeFingerprint(cfg.Export.Root)
	if err != nil {
		return false
	}
	return fp.Digest == a.Metadata.Fingerprint && fp.FileCount == a.Metadata.FileCount
}

func (s *DiscoverStage) Execute(ctx context.Context, rc *pipeline.RunContext) (*pipeline.StageResult, error) {
	cfg, err := settingsFrom(rc)
	if err != nil {
		return nil, err
	}

	docs, err := export.DiscoverDocuments(cfg.Export.Root)
	if err != nil {
		return nil, fmt.Errorf("discover documents: %w", err)
	}
	fp, err := attachment.ComputeFingerprint(cfg.Export.Root)
	if err != nil {
		return nil, err
	}

	res := &pipeline.StageResult{StageName: StageDiscover, Success: true}
	kept := docs
	filtered := 0
	if cfg.Filter.HasLuaInline {
		pred := newLuaPredicate(cfg.Filter.LuaInline)
		kept = kept[:0]
		for _, doc := range docs {
			keep, err := pred.Keep(doc)
			if err != nil {
				// A broken predicate on one document is a per-item
				// error; the inventory keeps the document.
				res.AddError(fmt.Sprintf("%s: %v", doc.RelPath, err))
				keep = true
			}
			if keep {
				kept = append(kept, doc)
			} else {
				filtered++
			}
		}
	}

	a := DocumentsArtifact{
		Metadata: DocumentsMetadata{
			CreatedAt:     time.Now().UTC(),
			ExportRoot:    cfg.Export.Root,
			Fingerprint:   fp.Digest,
			FileCount:     fp.FileCount,
			TotalKept:     len(kept),
			TotalFiltered: filtered,
		},
		Documents: kept,
	}
	path := documentsPath(rc)
	if err := writeJSONArtifact(path, &a); err != nil {
		return nil, err
	}

	res.RecordsProcessed = len(kept)
	res.OutputFiles = []string{path}
	res.Metadata = map[string]any{
		"filtered":  filtered,
		"fileCount": fp.FileCount,
	}
	return res, nil
}
