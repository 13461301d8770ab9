package config

import "cuelang.org/go/cue"

// parseFilterSection extracts the optional filter.luaInline predicate.
func parseFilterSection(v cue.Value) Filter {
	var f Filter
	fv := v.LookupPath(cue.ParsePath("filter"))
	if !fv.Exists() {
		return f
	}
	iv := fv.LookupPath(cue.ParsePath("luaInline"))
	if iv.Exists() && iv.Kind() == cue.StringKind {
		if err := iv.Decode(&f.LuaInline); err == nil && f.LuaInline != "" {
			f.HasLuaInline = true
		}
	}
	return f
}

// parseRunSection extracts optional execution policy.
func parseRunSection(v cue.Value) Run {
	var r Run
	rv := v.LookupPath(cue.ParsePath("run"))
	if !rv.Exists() {
		return r
	}
	sv := rv.LookupPath(cue.ParsePath("stopOnError"))
	if sv.Exists() && sv.Kind() == cue.BoolKind {
		if err := sv.Decode(&r.StopOnError); err == nil {
			r.HasStopOnError = true
		}
	}
	fv := rv.LookupPath(cue.ParsePath("force"))
	if fv.Exists() && fv.Kind() == cue.BoolKind {
		if err := fv.Decode(&r.Force); err == nil {
			r.HasForce = true
		}
	}
	return r
}
