package stages

import "os"

// Progress is the file-level resumability ledger kept by the generate
// stage, independent of the stage-level execution ledger. It lets an
// interrupted run resume without re-rendering finished documents.
type Progress struct {
	FilesProcessed []string                  `json:"files_processed"`
	Stats          map[string]int            `json:"stats"`
	Conversations  map[string]map[string]int `json:"conversations"`
}

func newProgress() *Progress {
	return &Progress{
		Stats:         map[string]int{},
		Conversations: map[string]map[string]int{},
	}
}

// loadProgress reads the ledger, returning a fresh one when absent or
// unreadable (a corrupt ledger just means redoing work, never failing).
func loadProgress(path string) *Progress {
	var p Progress
	if err := readJSONArtifact(path, &p); err != nil {
		return newProgress()
	}
	if p.Stats == nil {
		p.Stats = map[string]int{}
	}
	if p.Conversations == nil {
		p.Conversations = map[string]map[string]int{}
	}
	return &p
}

func (p *Progress) save(path string) error {
	return writeJSONArtifact(path, p)
}

// Done reports whether relPath was already processed and its output still
// exists on disk.
func (p *Progress) Done(relPath, outPath string) bool {
	if _, err := os.Stat(outPath); err != nil {
		return false
	}
	for _, f := range p.FilesProcessed {
		if f == relPath {
			return true
		}
	}
	return false
}

// Mark records one processed document and bumps its conversation counters.
// Re-marking a recorded document is a no-op: a document re-rendered because
// its output vanished must not count twice.
func (p *Progress) Mark(relPath, conversation string, counters map[string]int) {
	for _, f := range p.FilesProcessed {
		if f == relPath {
			return
		}
	}
	p.FilesProcessed = append(p.FilesProcessed, relPath)
	c := p.Conversations[conversation]
	if c == nil {
		c = map[string]int{}
		p.Conversations[conversation] = c
	}
	for k, v := range counters {
		c[k] += v
		p.Stats[k] += v
	}
}
