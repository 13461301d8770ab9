package attachment

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ArtifactFileName is the mapping artifact written into the processing dir.
const ArtifactFileName = "attachments.json"

// DefaultMaxDriftPercent bounds how far the source file count may drift
// before the cached mapping is considered stale.
const DefaultMaxDriftPercent = 10.0

// ArtifactMetadata describes the scan that produced a mapping artifact.
type ArtifactMetadata struct {
	CreatedAt            time.Time `json:"created_at"`
	TotalMappings        int       `json:"total_mappings"`
	SourceRoot           string    `json:"source_root"`
	DirectoryFingerprint string    `json:"directory_fingerprint"`
	FileCount            int       `json:"file_count"`
}

// Artifact is the durable reference-to-file mapping. It is produced whole
// once per resolve run and wholly superseded by the next run that chooses
// not to skip; downstream stages only ever read the latest version.
type Artifact struct {
	Metadata ArtifactMetadata      `json:"metadata"`
	Mappings map[string]Resolution `json:"mappings"`
}

// ArtifactPath returns the artifact location under a processing dir.
func ArtifactPath(processingDir string) string {
	return filepath.Join(processingDir, ArtifactFileName)
}

// NewArtifact assembles an artifact from a resolution pass.
func NewArtifact(sourceRoot string, fp Fingerprint, mappings map[string]Resolution) *Artifact {
	return &Artifact{
		Metadata: ArtifactMetadata{
			CreatedAt:            time.Now().UTC(),
			TotalMappings:        len(mappings),
			SourceRoot:           sourceRoot,
			DirectoryFingerprint: fp.Digest,
			FileCount:            fp.FileCount,
		},
		Mappings: mappings,
	}
}

// WriteArtifact persists the artifact atomically (temp file plus rename).
func WriteArtifact(path string, a *Artifact) error {
	b, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("encode mapping artifact: %w", err)
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

// ReadArtifact loads a previously written artifact.
func ReadArtifact(path string) (*Artifact, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var a Artifact
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("decode mapping artifact: %w", err)
	}
	return &a, nil
}

// Fresh decides whether a cached artifact at path can still be trusted for
// sourceRoot: the artifact must exist, the stored fingerprint must equal
// the freshly computed one, and the file count must not have drifted by
// more than maxDriftPercent. A missing artifact always forces recompute.
func Fresh(path, sourceRoot string, maxDriftPercent float64) bool {
	a, err := ReadArtifact(path)
	if err != nil {
		return false
	}
	fp, err := ComputeFingerprint(sourceRoot)
	if err != nil {
		return false
	}
	if fp.Digest != a.Metadata.DirectoryFingerprint {
		return false
	}
	prior := Fingerprint{Digest: a.Metadata.DirectoryFingerprint, FileCount: a.Metadata.FileCount}
	return !fp.DriftExceeds(prior, maxDriftPercent)
}
