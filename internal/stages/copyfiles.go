package stages

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/flarebyte/seshat-archive/internal/attachment"
	"github.com/flarebyte/seshat-archive/internal/pipeline"
)

// CopyStage materializes the resolved attachments into the archive. It is
// a pure reader of the mapping artifact: each source file is re-verified
// immediately before copying, an already-copied file with a matching size
// is skipped, and a vanished source is a per-item error, never a stage
// failure. Copied, skipped and error tallies are kept separate.
type CopyStage struct {
	pipeline.BaseStage
}

func (s *CopyStage) Name() string           { return StageCopy }
func (s *CopyStage) Dependencies() []string { return []string{StageResolve} }

func (s *CopyStage) ValidatePrerequisites(rc *pipeline.RunContext) error {
	path := attachment.ArtifactPath(rc.ProcessingDir)
	if !fileExists(path) {
		return fmt.Errorf("attachment mapping artifact missing: %s", path)
	}
	return nil
}

// CanSkip re-verifies that every mapped attachment already sits in the
// archive with the expected size.
func (s *CopyStage) CanSkip(rc *pipeline.RunContext) bool {
	a, err := attachment.ReadArtifact(attachment.ArtifactPath(rc.ProcessingDir))
	if err != nil {
		return false
	}
	if len(a.Mappings) == 0 {
		return true
	}
	for _, m := range a.Mappings {
		src, err := os.Stat(m.SourceAbsolutePath)
		if err != nil {
			// Source gone: the copy stage would tally an error for
			// this item, so the cached state is not equivalent.
			return false
		}
		dst, err := os.Stat(filepath.Join(attachmentsDir(rc), filepath.FromSlash(m.ResolvedRelativePath)))
		if err != nil || dst.Size() != src.Size() {
			return false
		}
	}
	return true
}

func (s *CopyStage) Execute(ctx context.Context, rc *pipeline.RunContext) (*pipeline.StageResult, error) {
	a, err := attachment.ReadArtifact(attachment.ArtifactPath(rc.ProcessingDir))
	if err != nil {
		return nil, err
	}

	res := &pipeline.StageResult{StageName: StageCopy, Success: true}
	copied, skipped := 0, 0
	for ref, m := range a.Mappings {
		src, err := os.Stat(m.SourceAbsolutePath)
		if err != nil {
			res.AddError(fmt.Sprintf("%s: source vanished: %s", ref, m.SourceAbsolutePath))
			continue
		}
		dest := filepath.Join(attachmentsDir(rc), filepath.FromSlash(m.ResolvedRelativePath))
		if fi, err := os.Stat(dest); err == nil && fi.Size() == src.Size() {
			skipped++
			res.RecordsProcessed++
			continue
		}
		if err := copyFile(m.SourceAbsolutePath, dest); err != nil {
			res.AddError(fmt.Sprintf("%s: %v", ref, err))
			continue
		}
		copied++
		res.RecordsProcessed++
	}

	res.Metadata = map[string]any{
		"copied":  copied,
		"skipped": skipped,
		"errors":  res.ErrorCount(),
	}
	return res, nil
}

// copyFile copies src to dest via a temp file so a partial write is never
// visible under the final name.
func copyFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, dest)
}
