package attachment

import (
	"fmt"
	"hash/fnv"
	"io/fs"
	"os"
	"path/filepath"
)

// Fingerprint is a cheap digest of a directory's state: the root's mtime
// and size hashed to a short hex string, plus the recursive file count.
// The count is kept out of the digest so a small drift (files added deep
// in the tree without touching the root's stat) can be tolerated up to a
// limit instead of always invalidating. The scheme deliberately misses
// in-place edits that change neither count nor the root's stat; cached
// work guarded by it trades accuracy for speed.
type Fingerprint struct {
	Digest    string `json:"digest"`
	FileCount int    `json:"fileCount"`
}

// ComputeFingerprint stats root and counts files below it.
func ComputeFingerprint(root string) (Fingerprint, error) {
	fi, err := os.Stat(root)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("stat source root: %w", err)
	}

	count := 0
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	if err != nil {
		return Fingerprint{}, fmt.Errorf("walk source root: %w", err)
	}

	h := fnv.New64a()
	fmt.Fprintf(h, "%d|%d", fi.ModTime().UnixNano(), fi.Size())
	return Fingerprint{
		Digest:    fmt.Sprintf("%016x", h.Sum64()),
		FileCount: count,
	}, nil
}

// DriftExceeds reports whether the file count has drifted from prior by
// more than limitPercent, relative to the prior count. A prior count of
// zero drifts only when files now exist.
func (f Fingerprint) DriftExceeds(prior Fingerprint, limitPercent float64) bool {
	if prior.FileCount == 0 {
		return f.FileCount > 0
	}
	delta := f.FileCount - prior.FileCount
	if delta < 0 {
		delta = -delta
	}
	return float64(delta)/float64(prior.FileCount)*100 > limitPercent
}
