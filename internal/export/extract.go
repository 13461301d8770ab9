package export

import (
	"os"
	"path"
	"regexp"
	"sort"
	"strings"
)

// refAttr matches src/href attribute values in a source document.
var refAttr = regexp.MustCompile(`(?i)(?:src|href)\s*=\s*"([^"]+)"`)

// ExtractReferences returns the attachment reference identifiers found in
// one document: local src/href targets, reduced to their basename, deduped
// and sorted. Web URLs, anchors and inline data are not references.
func ExtractReferences(docPath string) ([]string, error) {
	b, err := os.ReadFile(docPath)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	for _, m := range refAttr.FindAllStringSubmatch(string(b), -1) {
		raw := strings.TrimSpace(m[1])
		if raw == "" || !isLocalReference(raw) {
			continue
		}
		name := path.Base(raw)
		if name == "." || name == "/" {
			continue
		}
		seen[name] = true
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func isLocalReference(raw string) bool {
	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "http:"), strings.HasPrefix(lower, "https:"):
		return false
	case strings.HasPrefix(lower, "mailto:"), strings.HasPrefix(lower, "tel:"):
		return false
	case strings.HasPrefix(lower, "data:"), strings.HasPrefix(raw, "#"):
		return false
	case strings.HasSuffix(lower, ".css"), strings.HasSuffix(lower, ".js"):
		return false
	}
	return true
}
