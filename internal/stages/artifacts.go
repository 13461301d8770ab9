package stages

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/flarebyte/seshat-archive/internal/export"
)

// DocumentsArtifact is the durable inventory written by the discover stage.
type DocumentsArtifact struct {
	Metadata  DocumentsMetadata `json:"metadata"`
	Documents []export.Document `json:"documents"`
}

// DocumentsMetadata fingerprints the export tree the inventory came from.
type DocumentsMetadata struct {
	CreatedAt     time.Time `json:"created_at"`
	ExportRoot    string    `json:"export_root"`
	Fingerprint   string    `json:"fingerprint"`
	FileCount     int       `json:"file_count"`
	TotalKept     int       `json:"total_kept"`
	TotalFiltered int       `json:"total_filtered"`
}

// ReferencesArtifact is the per-document reference inventory written by the
// extract stage.
type ReferencesArtifact struct {
	CreatedAt  time.Time           `json:"created_at"`
	ByDocument map[string][]string `json:"by_document"`
	Total      int                 `json:"total"`
}

// Union returns the deduplicated reference set across all documents.
func (a *ReferencesArtifact) Union() []string {
	seen := map[string]bool{}
	var out []string
	for _, refs := range a.ByDocument {
		for _, r := range refs {
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	return out
}

// writeJSONArtifact persists v atomically as indented JSON.
func writeJSONArtifact(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(b, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// readJSONArtifact loads a JSON artifact into v.
func readJSONArtifact(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// fileExists reports whether path names an existing regular file.
func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
