package pipeline

import (
	"context"
	"fmt"
	"time"
)

// Ledger is the durable audit log the orchestrator writes every stage
// attempt to. Stages never write it directly; the orchestrator is the
// single serialized writer.
type Ledger interface {
	RecordStageStart(name string) (string, error)
	RecordStageResult(id string, res *StageResult) error
	StageCompleted(name string) (bool, error)
	LastResults() (map[string]*StageResult, error)
	ClearStage(name string) error
	ClearAll() error
}

// Orchestrator registers stages, validates the dependency graph, computes a
// deterministic execution order and runs stages one at a time.
type Orchestrator struct {
	stages map[string]Stage
	// names preserves first-registration order as the deterministic
	// tie-break for scheduling.
	names  []string
	ledger Ledger
}

// NewOrchestrator builds an orchestrator writing to the given ledger.
// A nil ledger disables audit recording (used by lightweight tests).
func NewOrchestrator(ledger Ledger) *Orchestrator {
	return &Orchestrator{stages: map[string]Stage{}, ledger: ledger}
}

// Register adds a stage. Re-registering a name replaces the stage but keeps
// its original position in the tie-break order.
func (o *Orchestrator) Register(s Stage) {
	name := s.Name()
	if _, ok := o.stages[name]; !ok {
		o.names = append(o.names, name)
	}
	o.stages[name] = s
}

// StageNames returns all registered stage names in registration order.
func (o *Orchestrator) StageNames() []string {
	out := make([]string, len(o.names))
	copy(out, o.names)
	return out
}

// ValidateDependencies checks that every referenced dependency is registered
// and that the graph is acyclic. It returns human-readable problems; an
// empty slice means the graph is valid.
func (o *Orchestrator) ValidateDependencies() []string {
	var problems []string
	for _, name := range o.names {
		for _, dep := range o.stages[name].Dependencies() {
			if _, ok := o.stages[dep]; !ok {
				problems = append(problems, fmt.Sprintf("stage %q depends on unregistered stage %q", name, dep))
			}
		}
	}

	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	marks := map[string]int{}
	var visit func(name string, trail []string)
	visit = func(name string, trail []string) {
		switch marks[name] {
		case done:
			return
		case inStack:
			problems = append(problems, fmt.Sprintf("dependency cycle: %s", cycleText(trail, name)))
			return
		}
		marks[name] = inStack
		for _, dep := range o.stages[name].Dependencies() {
			if _, ok := o.stages[dep]; ok {
				visit(dep, append(trail, name))
			}
		}
		marks[name] = done
	}
	for _, name := range o.names {
		visit(name, nil)
	}
	return problems
}

func cycleText(trail []string, repeat string) string {
	start := 0
	for i, n := range trail {
		if n == repeat {
			start = i
			break
		}
	}
	out := ""
	for _, n := range trail[start:] {
		out += n + " -> "
	}
	return out + repeat
}

// ExecutionOrder computes a topological order over the requested stages.
// Dependencies outside the requested set are treated as satisfied (the
// caller is expected to have run them before, or to accept prerequisite
// failures at execution time). Ties are broken by registration order.
func (o *Orchestrator) ExecutionOrder(requested []string) ([]string, error) {
	want := map[string]bool{}
	for _, name := range requested {
		if _, ok := o.stages[name]; !ok {
			return nil, fmt.Errorf("unknown stage: %q", name)
		}
		want[name] = true
	}

	// Scan in registration order so equal-depth stages schedule
	// deterministically.
	scheduled := map[string]bool{}
	order := make([]string, 0, len(want))
	for len(order) < len(want) {
		progressed := false
		for _, name := range o.names {
			if !want[name] || scheduled[name] {
				continue
			}
			ready := true
			for _, dep := range o.stages[name].Dependencies() {
				if want[dep] && !scheduled[dep] {
					ready = false
					break
				}
			}
			if ready {
				order = append(order, name)
				scheduled[name] = true
				progressed = true
			}
		}
		if !progressed {
			// Unreachable when ValidateDependencies passed.
			return nil, fmt.Errorf("no schedulable stage among %d remaining", len(want)-len(order))
		}
	}
	return order, nil
}

// ExecuteStage runs one stage through the full skip/prerequisite/execute
// lifecycle. Any error or panic inside Execute is converted into a failure
// result and CleanupOnError is invoked; nothing escapes. Every attempt is
// recorded to the ledger before returning.
func (o *Orchestrator) ExecuteStage(ctx context.Context, name string, rc *RunContext, force bool) *StageResult {
	s, ok := o.stages[name]
	if !ok {
		return FailedResult(name, fmt.Errorf("unknown stage: %q", name))
	}

	if !force && s.CanSkip(rc) {
		res := SkippedResult(name)
		o.record(name, res)
		return res
	}

	if err := s.ValidatePrerequisites(rc); err != nil {
		res := FailedResult(name, prereqError{stage: name, cause: err})
		res.Metadata = map[string]any{"prereqFailed": true}
		o.record(name, res)
		return res
	}

	started := time.Now()
	res, err := o.runGuarded(ctx, s, rc)
	if err != nil {
		o.cleanupGuarded(s, rc, err)
		res = FailedResult(name, err)
	}
	if res == nil {
		res = FailedResult(name, fmt.Errorf("stage %q returned no result", name))
	}
	res.StageName = name
	if res.ExecutionTime == 0 {
		res.ExecutionTime = time.Since(started)
	}
	o.record(name, res)
	return res
}

// runGuarded invokes Execute behind a panic barrier.
func (o *Orchestrator) runGuarded(ctx context.Context, s Stage, rc *RunContext) (res *StageResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("stage %q panicked: %v", s.Name(), r)
		}
	}()
	return s.Execute(ctx, rc)
}

// cleanupGuarded invokes CleanupOnError; a panic from cleanup is swallowed
// so rollback can never mask the original failure.
func (o *Orchestrator) cleanupGuarded(s Stage, rc *RunContext, runErr error) {
	defer func() {
		_ = recover()
	}()
	s.CleanupOnError(rc, runErr)
}

// record appends the attempt to the ledger. A ledger write failure never
// fails the stage, but it is surfaced on the result so the audit gap is
// visible to callers.
func (o *Orchestrator) record(name string, res *StageResult) {
	if o.ledger == nil {
		return
	}
	id, err := o.ledger.RecordStageStart(name)
	if err != nil {
		noteLedgerFailure(res, err)
		return
	}
	if err := o.ledger.RecordStageResult(id, res); err != nil {
		noteLedgerFailure(res, err)
	}
}

func noteLedgerFailure(res *StageResult, err error) {
	if res.Metadata == nil {
		res.Metadata = map[string]any{}
	}
	res.Metadata["ledgerError"] = err.Error()
}

// RunConfig carries the per-invocation inputs for ExecutePipeline.
type RunConfig struct {
	ProcessingDir string
	OutputDir     string
	Config        any
	Force         bool
	StopOnError   bool
}

// ExecutePipeline validates the graph, orders the requested stages and runs
// them serially against one shared RunContext. The returned map has one
// entry per attempted stage; with StopOnError, stages after the first
// failure are absent, which makes a halted partial pipeline detectable.
func (o *Orchestrator) ExecutePipeline(ctx context.Context, requested []string, cfg RunConfig) (map[string]*StageResult, error) {
	if problems := o.ValidateDependencies(); len(problems) > 0 {
		return nil, &GraphError{Problems: problems}
	}
	if len(requested) == 0 {
		requested = o.StageNames()
	}
	order, err := o.ExecutionOrder(requested)
	if err != nil {
		return nil, err
	}

	rc := NewRunContext(cfg.ProcessingDir, cfg.OutputDir, cfg.Config)
	o.preloadStageState(rc)

	states := map[string]Status{}
	for _, name := range order {
		states[name] = StatusPending
	}

	results := map[string]*StageResult{}
	for _, name := range order {
		if blocked := o.failedDependency(name, results); blocked != "" {
			res := FailedResult(name, fmt.Errorf("dependency %q did not complete successfully", blocked))
			_ = transition(states, name, StatusPending, StatusPrereqFailed)
			results[name] = res
			rc.SetStageData(name, res)
			if cfg.StopOnError {
				return results, nil
			}
			continue
		}

		res := o.runWithStatus(ctx, states, name, rc, cfg.Force)
		results[name] = res
		rc.SetStageData(name, res)
		if !res.Success && cfg.StopOnError {
			return results, nil
		}
	}
	return results, nil
}

func (o *Orchestrator) runWithStatus(ctx context.Context, states map[string]Status, name string, rc *RunContext, force bool) *StageResult {
	res := o.ExecuteStage(ctx, name, rc, force)
	switch {
	case res.Skipped:
		_ = transition(states, name, StatusPending, StatusSkipped)
	case isPrereqFailure(res):
		_ = transition(states, name, StatusPending, StatusPrereqFailed)
	default:
		_ = transition(states, name, StatusPending, StatusRunning)
		if res.Success {
			_ = transition(states, name, StatusRunning, StatusSucceeded)
		} else {
			_ = transition(states, name, StatusRunning, StatusFailed)
		}
	}
	return res
}

func isPrereqFailure(res *StageResult) bool {
	flagged, _ := res.Metadata["prereqFailed"].(bool)
	return flagged
}

// failedDependency returns the name of the first in-run dependency that was
// attempted and did not end successfully, or "" when the stage may run.
func (o *Orchestrator) failedDependency(name string, results map[string]*StageResult) string {
	for _, dep := range o.stages[name].Dependencies() {
		if res, ok := results[dep]; ok && !res.Success {
			return dep
		}
	}
	return ""
}

// preloadStageState seeds the context with prior-run summaries so stages
// can consult history without touching the ledger themselves.
func (o *Orchestrator) preloadStageState(rc *RunContext) {
	if o.ledger == nil {
		return
	}
	last, err := o.ledger.LastResults()
	if err != nil {
		return
	}
	for name, res := range last {
		if res != nil && res.Success {
			rc.SetStageData(name, res)
		}
	}
}

// ResetStage deletes ledger history for one stage, forcing a clean re-run.
func (o *Orchestrator) ResetStage(name string) error {
	if _, ok := o.stages[name]; !ok {
		return fmt.Errorf("unknown stage: %q", name)
	}
	if o.ledger == nil {
		return nil
	}
	return o.ledger.ClearStage(name)
}

// ResetPipeline deletes all ledger history.
func (o *Orchestrator) ResetPipeline() error {
	if o.ledger == nil {
		return nil
	}
	return o.ledger.ClearAll()
}
