package run

import (
	"fmt"
	"strings"

	"github.com/flarebyte/seshat-archive/internal/pipeline"
)

const (
	exitCodeSuccess = 0
	exitCodeExecErr = 1
)

type runExitError struct {
	code int
	msg  string
}

func (e runExitError) Error() string { return e.msg }
func (e runExitError) ExitCode() int { return e.code }

// evaluateRunExit maps the per-stage outcomes to a process exit. Any stage
// that failed, or that never ran because the pipeline halted, ends the run
// with a non-zero code.
func evaluateRunExit(order []string, results map[string]*pipeline.StageResult) error {
	var failed []string
	var unattempted []string
	for _, name := range order {
		res, ok := results[name]
		if !ok {
			unattempted = append(unattempted, name)
			continue
		}
		if !res.Success {
			failed = append(failed, name)
		}
	}
	if len(failed) == 0 && len(unattempted) == 0 {
		return nil
	}
	var parts []string
	if len(failed) > 0 {
		parts = append(parts, fmt.Sprintf("failed stages: %s", strings.Join(failed, ", ")))
	}
	if len(unattempted) > 0 {
		parts = append(parts, fmt.Sprintf("not attempted: %s", strings.Join(unattempted, ", ")))
	}
	return runExitError{code: exitCodeExecErr, msg: strings.Join(parts, "; ")}
}
