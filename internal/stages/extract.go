package stages

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/flarebyte/seshat-archive/internal/export"
	"github.com/flarebyte/seshat-archive/internal/pipeline"
)

// ExtractStage runs the reference extractor over every discovered document
// and persists the per-document reference inventory. One unreadable
// document is a per-item error; the batch continues.
type ExtractStage struct {
	pipeline.BaseStage
}

func (s *ExtractStage) Name() string           { return StageExtract }
func (s *ExtractStage) Dependencies() []string { return []string{StageDiscover} }

func (s *ExtractStage) ValidatePrerequisites(rc *pipeline.RunContext) error {
	if !fileExists(documentsPath(rc)) {
		return fmt.Errorf("documents artifact missing: %s", documentsPath(rc))
	}
	return nil
}

// CanSkip trusts the cached references while they are newer than the
// documents inventory they were extracted from.
func (s *ExtractStage) CanSkip(rc *pipeline.RunContext) bool {
	refs, err := os.Stat(referencesPath(rc))
	if err != nil {
		return false
	}
	docs, err := os.Stat(documentsPath(rc))
	if err != nil {
		return false
	}
	return !docs.ModTime().After(refs.ModTime())
}

func (s *ExtractStage) Execute(ctx context.Context, rc *pipeline.RunContext) (*pipeline.StageResult, error) {
	var docs DocumentsArtifact
	if err := readJSONArtifact(documentsPath(rc), &docs); err != nil {
		return nil, err
	}

	res := &pipeline.StageResult{StageName: StageExtract, Success: true}
	a := ReferencesArtifact{
		CreatedAt:  time.Now().UTC(),
		ByDocument: map[string][]string{},
	}
	for _, doc := range docs.Documents {
		refs, err := export.ExtractReferences(doc.Path)
		if err != nil {
			res.AddError(fmt.Sprintf("%s: %v", doc.RelPath, err))
			continue
		}
		if len(refs) > 0 {
			a.ByDocument[doc.RelPath] = refs
			a.Total += len(refs)
		}
		res.RecordsProcessed++
	}

	path := referencesPath(rc)
	if err := writeJSONArtifact(path, &a); err != nil {
		return nil, err
	}
	res.OutputFiles = []string{path}
	res.Metadata = map[string]any{"references": a.Total}
	return res, nil
}
