package attachment

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// defaultExtensions is the allow-list of media and document extensions
// eligible to satisfy an attachment reference.
var defaultExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".heic",
	".mp4", ".3gp", ".mov",
	".mp3", ".m4a", ".amr", ".ogg", ".opus", ".wav",
	".vcf", ".pdf",
}

// DefaultExtensions returns a copy of the built-in allow-list.
func DefaultExtensions() []string {
	out := make([]string, len(defaultExtensions))
	copy(out, defaultExtensions)
	return out
}

// ScanCandidates walks root recursively and returns the relative paths of
// files whose extension is in the allow-list. An empty allow-list means the
// built-in default. Paths are slash-separated and sorted for determinism.
func ScanCandidates(root string, extensions []string) ([]string, error) {
	if len(extensions) == 0 {
		extensions = defaultExtensions
	}
	allowed := map[string]bool{}
	for _, ext := range extensions {
		allowed[strings.ToLower(ext)] = true
	}

	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !allowed[strings.ToLower(filepath.Ext(p))] {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}
