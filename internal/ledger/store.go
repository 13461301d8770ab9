package ledger

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/flarebyte/seshat-archive/internal/pipeline"
)

const fileName = "ledger.jsonl"

// Store is a durable, append-only execution ledger backed by a JSONL event
// log. Opening a record appends a provisional line; closing it appends a
// finished line with the same ID. Readers reduce by ID, last event wins, so
// no line is ever rewritten in place.
type Store struct {
	dir string
}

// NewStore creates a ledger rooted at dir, creating the directory if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("ledger dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path() string { return filepath.Join(s.dir, fileName) }

// RecordStageStart opens a provisional record and returns its ID.
func (s *Store) RecordStageStart(name string) (string, error) {
	rec := ExecutionRecord{
		ID:        uuid.NewString(),
		StageName: name,
		StartedAt: time.Now().UTC(),
	}
	if err := s.append(rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// RecordStageResult closes the record with the outcome. Output files are
// snapshotted with their current size; a file that has since vanished is
// recorded with size 0.
func (s *Store) RecordStageResult(id string, res *pipeline.StageResult) error {
	open, err := s.find(id)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	open.FinishedAt = &now
	open.Success = res.Success
	open.Skipped = res.Skipped
	open.RecordsProcessed = res.RecordsProcessed
	open.ExecutionTimeMs = res.ExecutionTime.Milliseconds()
	open.ErrorCount = res.ErrorCount()
	if len(res.Metadata) > 0 {
		b, err := json.Marshal(res.Metadata)
		if err != nil {
			return fmt.Errorf("serialize metadata: %w", err)
		}
		open.Metadata = string(b)
	}
	for _, p := range res.OutputFiles {
		var size int64
		if fi, statErr := os.Stat(p); statErr == nil {
			size = fi.Size()
		}
		open.OutputFiles = append(open.OutputFiles, OutputFileRecord{Path: p, SizeBytes: size})
	}
	return s.append(open)
}

// LastSuccessfulExecution returns the most recent closed, successful record
// for the stage, or nil when there is none.
func (s *Store) LastSuccessfulExecution(name string) (*ExecutionRecord, error) {
	records, err := s.reduce()
	if err != nil {
		return nil, err
	}
	var best *ExecutionRecord
	for i := range records {
		r := &records[i]
		if r.StageName != name || !r.Closed() || !r.Success {
			continue
		}
		if best == nil || r.StartedAt.After(best.StartedAt) {
			best = r
		}
	}
	return best, nil
}

// StageCompleted reports whether the stage has any closed, successful run.
func (s *Store) StageCompleted(name string) (bool, error) {
	rec, err := s.LastSuccessfulExecution(name)
	if err != nil {
		return false, err
	}
	return rec != nil, nil
}

// PipelineStatus returns the latest finished record per stage, sorted by
// stage name for deterministic reporting.
func (s *Store) PipelineStatus() ([]ExecutionRecord, error) {
	records, err := s.reduce()
	if err != nil {
		return nil, err
	}
	latest := map[string]ExecutionRecord{}
	for _, r := range records {
		if !r.Closed() {
			continue
		}
		if cur, ok := latest[r.StageName]; !ok || r.StartedAt.After(cur.StartedAt) {
			latest[r.StageName] = r
		}
	}
	out := make([]ExecutionRecord, 0, len(latest))
	for _, r := range latest {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StageName < out[j].StageName })
	return out, nil
}

// LastResults reconstructs StageResult summaries from the latest finished
// record per stage, for seeding a new run's context.
func (s *Store) LastResults() (map[string]*pipeline.StageResult, error) {
	status, err := s.PipelineStatus()
	if err != nil {
		return nil, err
	}
	out := map[string]*pipeline.StageResult{}
	for _, r := range status {
		res := &pipeline.StageResult{
			StageName:        r.StageName,
			Success:          r.Success,
			Skipped:          r.Skipped,
			ExecutionTime:    time.Duration(r.ExecutionTimeMs) * time.Millisecond,
			RecordsProcessed: r.RecordsProcessed,
		}
		for _, f := range r.OutputFiles {
			res.OutputFiles = append(res.OutputFiles, f.Path)
		}
		if r.Metadata != "" {
			meta := map[string]any{}
			if err := json.Unmarshal([]byte(r.Metadata), &meta); err == nil {
				res.Metadata = meta
			}
		}
		out[r.StageName] = res
	}
	return out, nil
}

// ClearStage removes all history for one stage, including its output file
// snapshots, by rewriting the log without that stage's events.
func (s *Store) ClearStage(name string) error {
	records, err := s.readAll()
	if err != nil {
		return err
	}
	kept := records[:0]
	for _, r := range records {
		if r.StageName != name {
			kept = append(kept, r)
		}
	}
	return s.rewrite(kept)
}

// ClearAll removes the entire ledger.
func (s *Store) ClearAll() error {
	err := os.Remove(s.path())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *Store) append(rec ExecutionRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	f, err := os.OpenFile(s.path(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("append ledger: %w", err)
	}
	return f.Sync()
}

// readAll returns every event in append order. Truncated trailing lines
// (a crash mid-append) are tolerated and dropped.
func (s *Store) readAll() ([]ExecutionRecord, error) {
	f, err := os.Open(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []ExecutionRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec ExecutionRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, sc.Err()
}

// reduce collapses the event log to the last event per record ID, keeping
// the original append order of first appearance.
func (s *Store) reduce() ([]ExecutionRecord, error) {
	events, err := s.readAll()
	if err != nil {
		return nil, err
	}
	index := map[string]int{}
	var out []ExecutionRecord
	for _, e := range events {
		if i, ok := index[e.ID]; ok {
			out[i] = e
			continue
		}
		index[e.ID] = len(out)
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) find(id string) (ExecutionRecord, error) {
	records, err := s.reduce()
	if err != nil {
		return ExecutionRecord{}, err
	}
	for _, r := range records {
		if r.ID == id {
			return r, nil
		}
	}
	return ExecutionRecord{}, fmt.Errorf("unknown execution record: %q", id)
}

// rewrite atomically replaces the log file (used only by ClearStage).
func (s *Store) rewrite(records []ExecutionRecord) error {
	tmp, err := os.CreateTemp(s.dir, fileName+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	w := bufio.NewWriter(tmp)
	for _, r := range records {
		b, err := json.Marshal(r)
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return err
		}
		if _, err := w.Write(append(b, '\n')); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return err
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.path())
}
