package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type fakeStage struct {
	BaseStage
	name      string
	deps      []string
	execute   func(ctx context.Context, rc *RunContext) (*StageResult, error)
	canSkip   func(rc *RunContext) bool
	prereq    func(rc *RunContext) error
	cleanups  int
	execCalls int
}

func (s *fakeStage) Name() string           { return s.name }
func (s *fakeStage) Dependencies() []string { return s.deps }

func (s *fakeStage) Execute(ctx context.Context, rc *RunContext) (*StageResult, error) {
	s.execCalls++
	if s.execute != nil {
		return s.execute(ctx, rc)
	}
	return &StageResult{StageName: s.name, Success: true, RecordsProcessed: 1}, nil
}

func (s *fakeStage) CanSkip(rc *RunContext) bool {
	if s.canSkip != nil {
		return s.canSkip(rc)
	}
	return false
}

func (s *fakeStage) ValidatePrerequisites(rc *RunContext) error {
	if s.prereq != nil {
		return s.prereq(rc)
	}
	return nil
}

func (s *fakeStage) CleanupOnError(rc *RunContext, runErr error) { s.cleanups++ }

func newFake(name string, deps ...string) *fakeStage {
	return &fakeStage{name: name, deps: deps}
}

func TestExecutionOrderRespectsDependencies(t *testing.T) {
	cases := []struct {
		name   string
		stages []*fakeStage
	}{
		{
			name: "chain",
			stages: []*fakeStage{
				newFake("c", "b"), newFake("b", "a"), newFake("a"),
			},
		},
		{
			name: "diamond",
			stages: []*fakeStage{
				newFake("top"),
				newFake("left", "top"),
				newFake("right", "top"),
				newFake("bottom", "left", "right"),
			},
		},
		{
			name: "independent",
			stages: []*fakeStage{
				newFake("x"), newFake("y"), newFake("z"),
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := NewOrchestrator(nil)
			for _, s := range tc.stages {
				o.Register(s)
			}
			if problems := o.ValidateDependencies(); len(problems) > 0 {
				t.Fatalf("unexpected problems: %v", problems)
			}
			order, err := o.ExecutionOrder(o.StageNames())
			if err != nil {
				t.Fatalf("ExecutionOrder: %v", err)
			}
			pos := map[string]int{}
			for i, name := range order {
				pos[name] = i
			}
			for _, s := range tc.stages {
				for _, dep := range s.deps {
					if pos[dep] >= pos[s.name] {
						t.Fatalf("dependency %q not before %q in %v", dep, s.name, order)
					}
				}
			}
		})
	}
}

func TestExecutionOrderRegistrationTieBreak(t *testing.T) {
	o := NewOrchestrator(nil)
	o.Register(newFake("beta"))
	o.Register(newFake("alpha"))
	o.Register(newFake("gamma"))
	order, err := o.ExecutionOrder(o.StageNames())
	if err != nil {
		t.Fatalf("ExecutionOrder: %v", err)
	}
	want := []string{"beta", "alpha", "gamma"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order %v, want %v", order, want)
		}
	}
}

func TestExecutionOrderIgnoresUnrequestedDeps(t *testing.T) {
	o := NewOrchestrator(nil)
	o.Register(newFake("a"))
	o.Register(newFake("b", "a"))
	order, err := o.ExecutionOrder([]string{"b"})
	if err != nil {
		t.Fatalf("ExecutionOrder: %v", err)
	}
	if len(order) != 1 || order[0] != "b" {
		t.Fatalf("order = %v, want [b]", order)
	}
}

func TestValidateDependenciesRejectsUnknown(t *testing.T) {
	o := NewOrchestrator(nil)
	o.Register(newFake("a", "ghost"))
	problems := o.ValidateDependencies()
	if len(problems) != 1 {
		t.Fatalf("problems = %v, want 1 entry", problems)
	}
}

func TestValidateDependenciesRejectsCycle(t *testing.T) {
	cases := []struct {
		name   string
		stages []*fakeStage
	}{
		{"self", []*fakeStage{newFake("a", "a")}},
		{"two", []*fakeStage{newFake("a", "b"), newFake("b", "a")}},
		{"three", []*fakeStage{newFake("a", "c"), newFake("b", "a"), newFake("c", "b")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := NewOrchestrator(nil)
			for _, s := range tc.stages {
				o.Register(s)
			}
			if problems := o.ValidateDependencies(); len(problems) == 0 {
				t.Fatal("expected cycle to be reported")
			}
			if _, err := o.ExecutePipeline(context.Background(), nil, RunConfig{}); err == nil {
				t.Fatal("expected pipeline to refuse execution")
			} else {
				var ge *GraphError
				if !errors.As(err, &ge) {
					t.Fatalf("error = %v, want GraphError", err)
				}
			}
		})
	}
}

func TestExecuteStageSkipFastPath(t *testing.T) {
	s := newFake("cached")
	s.canSkip = func(*RunContext) bool { return true }
	o := NewOrchestrator(nil)
	o.Register(s)

	res := o.ExecuteStage(context.Background(), "cached", NewRunContext("", "", nil), false)
	if !res.Success || !res.Skipped {
		t.Fatalf("result = %+v, want skipped success", res)
	}
	if s.execCalls != 0 {
		t.Fatalf("Execute called %d times on skip", s.execCalls)
	}

	res = o.ExecuteStage(context.Background(), "cached", NewRunContext("", "", nil), true)
	if res.Skipped || s.execCalls != 1 {
		t.Fatalf("force did not bypass skip: %+v calls=%d", res, s.execCalls)
	}
}

func TestExecuteStagePrereqFailureIsData(t *testing.T) {
	s := newFake("needy")
	s.prereq = func(*RunContext) error { return errors.New("missing artifact") }
	o := NewOrchestrator(nil)
	o.Register(s)

	res := o.ExecuteStage(context.Background(), "needy", NewRunContext("", "", nil), false)
	if res.Success {
		t.Fatal("prerequisite failure must produce a failure result")
	}
	if s.execCalls != 0 {
		t.Fatal("Execute must not run when prerequisites fail")
	}
	if !isPrereqFailure(res) {
		t.Fatalf("result not marked as prerequisite failure: %+v", res)
	}
}

func TestExecuteStagePanicBarrier(t *testing.T) {
	s := newFake("bomb")
	s.execute = func(context.Context, *RunContext) (*StageResult, error) {
		panic("boom")
	}
	o := NewOrchestrator(nil)
	o.Register(s)

	res := o.ExecuteStage(context.Background(), "bomb", NewRunContext("", "", nil), false)
	if res.Success {
		t.Fatal("panic must become a failure result")
	}
	if s.cleanups != 1 {
		t.Fatalf("cleanups = %d, want 1", s.cleanups)
	}
}

func TestExecuteStageErrorInvokesCleanup(t *testing.T) {
	s := newFake("flaky")
	s.execute = func(context.Context, *RunContext) (*StageResult, error) {
		return nil, errors.New("disk full")
	}
	o := NewOrchestrator(nil)
	o.Register(s)

	res := o.ExecuteStage(context.Background(), "flaky", NewRunContext("", "", nil), false)
	if res.Success || s.cleanups != 1 {
		t.Fatalf("result=%+v cleanups=%d", res, s.cleanups)
	}
}

func TestExecutePipelineStopOnError(t *testing.T) {
	a := newFake("a")
	b := newFake("b", "a")
	c := newFake("c", "b")
	b.execute = func(context.Context, *RunContext) (*StageResult, error) {
		return nil, errors.New("b failed")
	}
	o := NewOrchestrator(nil)
	o.Register(a)
	o.Register(b)
	o.Register(c)

	results, err := o.ExecutePipeline(context.Background(), nil, RunConfig{StopOnError: true})
	if err != nil {
		t.Fatalf("ExecutePipeline: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %v, want a and b only", results)
	}
	if _, ok := results["c"]; ok {
		t.Fatal("stage c must be absent after halt")
	}
	if c.execCalls != 0 {
		t.Fatal("stage c must not execute after halt")
	}
}

func TestExecutePipelineFailedDependencyBlocksDependent(t *testing.T) {
	a := newFake("a")
	a.execute = func(context.Context, *RunContext) (*StageResult, error) {
		return nil, errors.New("a failed")
	}
	b := newFake("b", "a")
	o := NewOrchestrator(nil)
	o.Register(a)
	o.Register(b)

	results, err := o.ExecutePipeline(context.Background(), nil, RunConfig{})
	if err != nil {
		t.Fatalf("ExecutePipeline: %v", err)
	}
	if results["b"].Success {
		t.Fatal("b must fail when its dependency failed")
	}
	if b.execCalls != 0 {
		t.Fatal("b must not execute when its dependency failed")
	}
}

func TestExecutePipelineSharedContext(t *testing.T) {
	a := newFake("a")
	a.execute = func(ctx context.Context, rc *RunContext) (*StageResult, error) {
		return &StageResult{Success: true, Metadata: map[string]any{"token": "from-a"}}, nil
	}
	var seen string
	b := newFake("b", "a")
	b.execute = func(ctx context.Context, rc *RunContext) (*StageResult, error) {
		if prior := rc.StageData("a"); prior != nil {
			seen, _ = prior.Metadata["token"].(string)
		}
		return &StageResult{Success: true}, nil
	}
	o := NewOrchestrator(nil)
	o.Register(a)
	o.Register(b)

	if _, err := o.ExecutePipeline(context.Background(), nil, RunConfig{}); err != nil {
		t.Fatalf("ExecutePipeline: %v", err)
	}
	if seen != "from-a" {
		t.Fatalf("stage b saw %q through the shared context", seen)
	}
}

func TestExecutePipelineIdempotentSecondRun(t *testing.T) {
	done := map[string]bool{}
	mk := func(name string, deps ...string) *fakeStage {
		s := newFake(name, deps...)
		s.canSkip = func(*RunContext) bool { return done[name] }
		s.execute = func(context.Context, *RunContext) (*StageResult, error) {
			done[name] = true
			return &StageResult{Success: true, RecordsProcessed: 5}, nil
		}
		return s
	}
	o := NewOrchestrator(nil)
	o.Register(mk("a"))
	o.Register(mk("b", "a"))

	first, err := o.ExecutePipeline(context.Background(), nil, RunConfig{})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := o.ExecutePipeline(context.Background(), nil, RunConfig{})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	for name, res := range first {
		if !res.Success || res.Skipped {
			t.Fatalf("first run %s: %+v", name, res)
		}
	}
	for name, res := range second {
		if !res.Skipped || res.RecordsProcessed != 0 {
			t.Fatalf("second run %s not a zero-work skip: %+v", name, res)
		}
	}
}

func TestCleanupPanicIsContained(t *testing.T) {
	s := &panickyCleanupStage{}
	o := NewOrchestrator(nil)
	o.Register(s)
	res := o.ExecuteStage(context.Background(), "grumpy", NewRunContext("", "", nil), false)
	if res.Success {
		t.Fatal("expected failure result")
	}
	if len(res.Errors) != 1 || res.Errors[0] != "original failure" {
		t.Fatalf("cleanup must not mask the original error: %v", res.Errors)
	}
}

type panickyCleanupStage struct {
	BaseStage
}

func (panickyCleanupStage) Name() string { return "grumpy" }

func (panickyCleanupStage) Execute(context.Context, *RunContext) (*StageResult, error) {
	return nil, fmt.Errorf("original failure")
}

func (panickyCleanupStage) CleanupOnError(*RunContext, error) {
	panic("cleanup exploded")
}

type failingLedger struct{}

func (failingLedger) RecordStageStart(string) (string, error) {
	return "", errors.New("ledger: disk full")
}
func (failingLedger) RecordStageResult(string, *StageResult) error {
	return errors.New("ledger: disk full")
}
func (failingLedger) StageCompleted(string) (bool, error)           { return false, nil }
func (failingLedger) LastResults() (map[string]*StageResult, error) { return nil, nil }
func (failingLedger) ClearStage(string) error                       { return nil }
func (failingLedger) ClearAll() error                               { return nil }

func TestLedgerWriteFailureSurfacedOnResult(t *testing.T) {
	o := NewOrchestrator(failingLedger{})
	o.Register(newFake("a"))

	rc := NewRunContext(t.TempDir(), t.TempDir(), nil)
	res := o.ExecuteStage(context.Background(), "a", rc, false)
	if !res.Success {
		t.Fatalf("stage must still succeed, got %+v", res)
	}
	msg, _ := res.Metadata["ledgerError"].(string)
	if msg == "" {
		t.Fatalf("ledger failure not surfaced: %+v", res.Metadata)
	}
}
