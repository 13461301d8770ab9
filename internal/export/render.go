package export

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LinkTarget returns the link from a rendered document to a copied
// attachment. Rendered documents keep their subdirectory under the archive
// root while attachments live under attachments/, so the link climbs out of
// the document's directory first. Both inputs are slash-separated archive
// relative paths.
func LinkTarget(docRelPath, resolvedRelativePath string) string {
	target := path.Join("attachments", resolvedRelativePath)
	dir := path.Dir(docRelPath)
	if dir == "." {
		return target
	}
	return strings.Repeat("../", strings.Count(dir, "/")+1) + target
}

// RenderDocument writes the document into the archive with attachment
// references rewritten to their copied locations. links maps a reference
// identifier (basename) to the archive-relative target. Writing is
// atomic so an interrupted run never leaves a half-rendered file behind.
func RenderDocument(doc Document, links map[string]string, outPath string) error {
	b, err := os.ReadFile(doc.Path)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	content := refAttr.ReplaceAllStringFunc(string(b), func(m string) string {
		sub := refAttr.FindStringSubmatch(m)
		raw := strings.TrimSpace(sub[1])
		if !isLocalReference(raw) {
			return m
		}
		target, ok := links[path.Base(raw)]
		if !ok {
			return m
		}
		return strings.Replace(m, sub[1], target, 1)
	})

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(outPath), filepath.Base(outPath)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, outPath)
}
