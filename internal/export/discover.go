package export

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// Kind classifies a source document within the export.
type Kind string

const (
	KindText      Kind = "text"
	KindCall      Kind = "call"
	KindVoicemail Kind = "voicemail"
	KindUnknown   Kind = "unknown"
)

// Document is one classified source document from the export tree.
type Document struct {
	Path         string `json:"path"`
	RelPath      string `json:"relPath"`
	Kind         Kind   `json:"kind"`
	Conversation string `json:"conversation"`
}

// markers map the middle token of an export filename to a document kind.
// Export filenames look like "Jane Doe - Text - 2024-03-01T10_11_12Z.html".
var markers = map[string]Kind{
	"Text":      KindText,
	"Placed":    KindCall,
	"Received":  KindCall,
	"Missed":    KindCall,
	"Voicemail": KindVoicemail,
}

// Classify derives the kind and conversation identity from a filename.
func Classify(filename string) (Kind, string) {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	parts := strings.Split(base, " - ")
	if len(parts) < 2 {
		return KindUnknown, base
	}
	if kind, ok := markers[parts[1]]; ok {
		return kind, strings.TrimSpace(parts[0])
	}
	return KindUnknown, strings.TrimSpace(parts[0])
}

// DiscoverDocuments walks the export root for HTML documents and classifies
// them. Unclassifiable documents are kept with KindUnknown so a caller can
// count them; results are sorted by relative path.
func DiscoverDocuments(root string) ([]Document, error) {
	var out []Document
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(p), ".html") {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		kind, conversation := Classify(d.Name())
		out = append(out, Document{
			Path:         p,
			RelPath:      filepath.ToSlash(rel),
			Kind:         kind,
			Conversation: conversation,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	return out, nil
}
