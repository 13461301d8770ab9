package stages

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/flarebyte/seshat-archive/internal/attachment"
	"github.com/flarebyte/seshat-archive/internal/export"
	"github.com/flarebyte/seshat-archive/internal/manifest"
	"github.com/flarebyte/seshat-archive/internal/pipeline"
)

// GenerateStage renders every discovered document into the archive with
// attachment links rewritten to their copied locations, and writes the
// canonical archive manifest. A file-level progress ledger makes the stage
// resumable mid-batch: documents rendered by an interrupted run are not
// redone.
type GenerateStage struct {
	pipeline.BaseStage
}

func (s *GenerateStage) Name() string           { return StageGenerate }
func (s *GenerateStage) Dependencies() []string { return []string{StageDiscover, StageCopy} }

func (s *GenerateStage) ValidatePrerequisites(rc *pipeline.RunContext) error {
	if !fileExists(documentsPath(rc)) {
		return fmt.Errorf("documents artifact missing: %s", documentsPath(rc))
	}
	return nil
}

// CanSkip re-verifies that every inventoried document has a rendered output
// recorded in the progress ledger and that the manifest exists.
func (s *GenerateStage) CanSkip(rc *pipeline.RunContext) bool {
	if !fileExists(filepath.Join(rc.OutputDir, manifest.FileName)) {
		return false
	}
	var docs DocumentsArtifact
	if err := readJSONArtifact(documentsPath(rc), &docs); err != nil {
		return false
	}
	progress := loadProgress(progressPath(rc))
	for _, doc := range docs.Documents {
		if !progress.Done(doc.RelPath, s.outPath(rc, doc)) {
			return false
		}
	}
	return true
}

func (s *GenerateStage) outPath(rc *pipeline.RunContext, doc export.Document) string {
	return filepath.Join(rc.OutputDir, filepath.FromSlash(doc.RelPath))
}

func (s *GenerateStage) Execute(ctx context.Context, rc *pipeline.RunContext) (*pipeline.StageResult, error) {
	var docs DocumentsArtifact
	if err := readJSONArtifact(documentsPath(rc), &docs); err != nil {
		return nil, err
	}

	// The mapping artifact and per-document references are optional
	// inputs here: without them documents render with links untouched.
	resolved := map[string]string{}
	if a, err := attachment.ReadArtifact(attachment.ArtifactPath(rc.ProcessingDir)); err == nil {
		for ref, m := range a.Mappings {
			resolved[path.Base(ref)] = m.ResolvedRelativePath
		}
	}
	var refs ReferencesArtifact
	_ = readJSONArtifact(referencesPath(rc), &refs)

	progressFile := progressPath(rc)
	progress := loadProgress(progressFile)

	res := &pipeline.StageResult{StageName: StageGenerate, Success: true}
	rendered, resumed := 0, 0
	for _, doc := range docs.Documents {
		outPath := s.outPath(rc, doc)
		if progress.Done(doc.RelPath, outPath) {
			resumed++
			continue
		}
		links := make(map[string]string, len(resolved))
		for base, rel := range resolved {
			links[base] = export.LinkTarget(doc.RelPath, rel)
		}
		if err := export.RenderDocument(doc, links, outPath); err != nil {
			res.AddError(fmt.Sprintf("%s: %v", doc.RelPath, err))
			continue
		}
		counters := map[string]int{"documents": 1}
		for _, ref := range refs.ByDocument[doc.RelPath] {
			if _, ok := resolved[path.Base(ref)]; ok {
				counters["attachments"]++
			}
		}
		counters[string(doc.Kind)]++
		progress.Mark(doc.RelPath, doc.Conversation, counters)
		if err := progress.save(progressFile); err != nil {
			return nil, fmt.Errorf("save progress ledger: %w", err)
		}
		rendered++
		res.RecordsProcessed++
	}

	manifestPath := filepath.Join(rc.OutputDir, manifest.FileName)
	if err := manifest.Write(manifestPath, "seshat", manifestEntries(progress)); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	res.OutputFiles = []string{manifestPath, progressFile}
	res.Metadata = map[string]any{
		"rendered": rendered,
		"resumed":  resumed,
		"errors":   res.ErrorCount(),
	}
	return res, nil
}

// manifestEntries folds the progress counters into manifest entries.
func manifestEntries(p *Progress) []manifest.Entry {
	out := make([]manifest.Entry, 0, len(p.Conversations))
	for conversation, counters := range p.Conversations {
		e := manifest.Entry{Conversation: conversation, Kinds: map[string]int{}}
		for k, v := range counters {
			switch k {
			case "documents":
				e.Documents = v
			case "attachments":
				e.Attachments = v
			default:
				e.Kinds[k] = v
			}
		}
		if len(e.Kinds) == 0 {
			e.Kinds = nil
		}
		out = append(out, e)
	}
	return out
}
