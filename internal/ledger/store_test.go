package ledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/flarebyte/seshat-archive/internal/pipeline"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestOpenCloseLifecycle(t *testing.T) {
	s := newTestStore(t)

	id, err := s.RecordStageStart("resolve")
	if err != nil {
		t.Fatalf("RecordStageStart: %v", err)
	}

	// Provisional records must not count as completed.
	done, err := s.StageCompleted("resolve")
	if err != nil {
		t.Fatalf("StageCompleted: %v", err)
	}
	if done {
		t.Fatal("open record reported as completed")
	}

	res := &pipeline.StageResult{
		StageName:        "resolve",
		Success:          true,
		RecordsProcessed: 42,
		ExecutionTime:    1500 * time.Millisecond,
		Metadata:         map[string]any{"mapped": 42},
	}
	if err := s.RecordStageResult(id, res); err != nil {
		t.Fatalf("RecordStageResult: %v", err)
	}

	last, err := s.LastSuccessfulExecution("resolve")
	if err != nil {
		t.Fatalf("LastSuccessfulExecution: %v", err)
	}
	if last == nil || last.RecordsProcessed != 42 || !last.Closed() {
		t.Fatalf("last = %+v", last)
	}
	done, _ = s.StageCompleted("resolve")
	if !done {
		t.Fatal("closed successful record not reported as completed")
	}
}

func TestLastSuccessfulSkipsFailures(t *testing.T) {
	s := newTestStore(t)

	okID, _ := s.RecordStageStart("copy")
	if err := s.RecordStageResult(okID, &pipeline.StageResult{Success: true, RecordsProcessed: 7}); err != nil {
		t.Fatalf("close ok: %v", err)
	}
	failID, _ := s.RecordStageStart("copy")
	if err := s.RecordStageResult(failID, &pipeline.StageResult{Success: false, Errors: []string{"x"}}); err != nil {
		t.Fatalf("close fail: %v", err)
	}

	last, err := s.LastSuccessfulExecution("copy")
	if err != nil {
		t.Fatalf("LastSuccessfulExecution: %v", err)
	}
	if last == nil || last.ID != okID {
		t.Fatalf("last = %+v, want the successful record", last)
	}
}

func TestOutputFileSnapshot(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()
	present := filepath.Join(dir, "present.html")
	if err := os.WriteFile(present, []byte("<html/>"), 0o644); err != nil {
		t.Fatal(err)
	}
	vanished := filepath.Join(dir, "vanished.html")

	id, _ := s.RecordStageStart("generate")
	res := &pipeline.StageResult{Success: true, OutputFiles: []string{present, vanished}}
	if err := s.RecordStageResult(id, res); err != nil {
		t.Fatalf("RecordStageResult: %v", err)
	}

	last, _ := s.LastSuccessfulExecution("generate")
	if len(last.OutputFiles) != 2 {
		t.Fatalf("output files = %v", last.OutputFiles)
	}
	if last.OutputFiles[0].SizeBytes != int64(len("<html/>")) {
		t.Fatalf("present size = %d", last.OutputFiles[0].SizeBytes)
	}
	if last.OutputFiles[1].SizeBytes != 0 {
		t.Fatalf("vanished size = %d, want 0", last.OutputFiles[1].SizeBytes)
	}
}

func TestPipelineStatusLatestPerStage(t *testing.T) {
	s := newTestStore(t)
	for i, success := range []bool{true, false} {
		id, _ := s.RecordStageStart("discover")
		if err := s.RecordStageResult(id, &pipeline.StageResult{Success: success, RecordsProcessed: i}); err != nil {
			t.Fatal(err)
		}
	}
	id, _ := s.RecordStageStart("extract")
	_ = s.RecordStageResult(id, &pipeline.StageResult{Success: true})

	status, err := s.PipelineStatus()
	if err != nil {
		t.Fatalf("PipelineStatus: %v", err)
	}
	if len(status) != 2 {
		t.Fatalf("status = %+v", status)
	}
	// Sorted by name, and discover reflects the latest (failed) attempt.
	if status[0].StageName != "discover" || status[0].Success {
		t.Fatalf("status[0] = %+v", status[0])
	}
	if status[1].StageName != "extract" || !status[1].Success {
		t.Fatalf("status[1] = %+v", status[1])
	}
}

func TestClearStageCascades(t *testing.T) {
	s := newTestStore(t)
	for _, name := range []string{"discover", "extract"} {
		id, _ := s.RecordStageStart(name)
		_ = s.RecordStageResult(id, &pipeline.StageResult{Success: true, OutputFiles: []string{"out"}})
	}

	if err := s.ClearStage("discover"); err != nil {
		t.Fatalf("ClearStage: %v", err)
	}
	done, _ := s.StageCompleted("discover")
	if done {
		t.Fatal("discover history survived ClearStage")
	}
	done, _ = s.StageCompleted("extract")
	if !done {
		t.Fatal("extract history lost by ClearStage(discover)")
	}

	if err := s.ClearAll(); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	status, _ := s.PipelineStatus()
	if len(status) != 0 {
		t.Fatalf("status after ClearAll = %+v", status)
	}
}

func TestTruncatedTrailingLineIsTolerated(t *testing.T) {
	s := newTestStore(t)
	id, _ := s.RecordStageStart("resolve")
	_ = s.RecordStageResult(id, &pipeline.StageResult{Success: true})

	f, err := os.OpenFile(s.path(), os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(`{"id":"trunc`); err != nil {
		t.Fatal(err)
	}
	f.Close()

	last, err := s.LastSuccessfulExecution("resolve")
	if err != nil {
		t.Fatalf("LastSuccessfulExecution: %v", err)
	}
	if last == nil {
		t.Fatal("valid records lost to truncated tail")
	}
}

func TestLastResultsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	id, _ := s.RecordStageStart("resolve")
	_ = s.RecordStageResult(id, &pipeline.StageResult{
		Success:          true,
		RecordsProcessed: 3,
		Metadata:         map[string]any{"fingerprint": "abc"},
	})

	last, err := s.LastResults()
	if err != nil {
		t.Fatalf("LastResults: %v", err)
	}
	res := last["resolve"]
	if res == nil || !res.Success || res.RecordsProcessed != 3 {
		t.Fatalf("res = %+v", res)
	}
	if res.Metadata["fingerprint"] != "abc" {
		t.Fatalf("metadata = %+v", res.Metadata)
	}
}
