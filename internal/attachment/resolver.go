package attachment

import (
	"path"
	"sort"
	"strings"
)

// Resolution is the binding of one reference identifier to a candidate.
type Resolution struct {
	ResolvedRelativePath string `json:"resolved_relative_path"`
	SourceAbsolutePath   string `json:"source_absolute_path"`
}

// Resolver matches reference identifiers found in source documents to
// candidate files from a directory scan.
//
// Two indexes back the match: normalized filename to candidate, and
// normalized stem to the candidates that share it. A candidate claimed by
// one reference is permanently ineligible for the rest of the pass, so no
// file ever backs two logical references.
type Resolver struct {
	root    string
	byName  map[string]string
	byStem  map[string][]string
	claimed map[string]bool
}

// NewResolver indexes the candidate relative paths under sourceRoot.
// Candidates are indexed in the given order; stem-strategy ties go to the
// earliest unclaimed candidate.
func NewResolver(sourceRoot string, candidates []string) *Resolver {
	r := &Resolver{
		root:    sourceRoot,
		byName:  map[string]string{},
		byStem:  map[string][]string{},
		claimed: map[string]bool{},
	}
	for _, rel := range candidates {
		name := normalize(path.Base(rel))
		if _, ok := r.byName[name]; !ok {
			r.byName[name] = rel
		}
		stem := stemOf(name)
		r.byStem[stem] = append(r.byStem[stem], rel)
	}
	return r
}

// Resolve maps each reference to at most one candidate. References are
// processed in sorted order so claims are deterministic; references that
// match nothing are omitted, not errors.
func (r *Resolver) Resolve(references []string) map[string]Resolution {
	refs := make([]string, len(references))
	copy(refs, references)
	sort.Strings(refs)

	out := map[string]Resolution{}
	for _, ref := range refs {
		if _, done := out[ref]; done {
			continue
		}
		rel, ok := r.match(ref)
		if !ok {
			continue
		}
		r.claimed[rel] = true
		out[ref] = Resolution{
			ResolvedRelativePath: rel,
			SourceAbsolutePath:   path.Join(r.root, rel),
		}
	}
	return out
}

// match tries the exact-filename strategy, then the shared-stem strategy.
func (r *Resolver) match(ref string) (string, bool) {
	name := normalize(path.Base(ref))
	if name == "" {
		return "", false
	}
	if rel, ok := r.byName[name]; ok && !r.claimed[rel] {
		return rel, true
	}
	for _, rel := range r.byStem[stemOf(name)] {
		if !r.claimed[rel] {
			return rel, true
		}
	}
	return "", false
}

// normalize case-folds and trims a filename for matching.
func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// stemOf strips the extension from an already-normalized filename.
func stemOf(name string) string {
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext)
}
