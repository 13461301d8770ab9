package config

import (
	"fmt"
	"path/filepath"

	"cuelang.org/go/cue"
)

// parsePathSections extracts the required export/output locations and the
// optional processing dir.
func parsePathSections(v cue.Value, s *Settings) error {
	ev := v.LookupPath(cue.ParsePath("export"))
	if !ev.Exists() {
		return fmt.Errorf("missing required section: export")
	}
	rv := ev.LookupPath(cue.ParsePath("root"))
	if !rv.Exists() || rv.Kind() != cue.StringKind {
		return fmt.Errorf("missing required field: export.root (string)")
	}
	if err := rv.Decode(&s.Export.Root); err != nil {
		return fmt.Errorf("invalid value for export.root: %v", err)
	}

	ov := v.LookupPath(cue.ParsePath("output"))
	if !ov.Exists() {
		return fmt.Errorf("missing required section: output")
	}
	dv := ov.LookupPath(cue.ParsePath("dir"))
	if !dv.Exists() || dv.Kind() != cue.StringKind {
		return fmt.Errorf("missing required field: output.dir (string)")
	}
	if err := dv.Decode(&s.Output.Dir); err != nil {
		return fmt.Errorf("invalid value for output.dir: %v", err)
	}

	pv := v.LookupPath(cue.ParsePath("processing"))
	if pv.Exists() {
		dv := pv.LookupPath(cue.ParsePath("dir"))
		if dv.Exists() && dv.Kind() == cue.StringKind {
			if err := dv.Decode(&s.Processing.Dir); err == nil {
				s.Processing.HasDir = true
			}
		}
	}
	return nil
}

// applyDefaults fills in the derived processing dir when unset.
func applyDefaults(s *Settings) {
	if !s.Processing.HasDir {
		s.Processing.Dir = filepath.Join(s.Output.Dir, ".seshat")
	}
}
