package config

import "cuelang.org/go/cue"

// parseAttachmentsSection extracts optional attachment resolver settings.
func parseAttachmentsSection(v cue.Value) Attachments {
	var a Attachments
	av := v.LookupPath(cue.ParsePath("attachments"))
	if !av.Exists() {
		return a
	}
	ev := av.LookupPath(cue.ParsePath("extensions"))
	if ev.Exists() && ev.Kind() == cue.ListKind {
		if err := ev.Decode(&a.Extensions); err == nil && len(a.Extensions) > 0 {
			a.HasExtensions = true
		}
	}
	dv := av.LookupPath(cue.ParsePath("maxCountDriftPercent"))
	if dv.Exists() && (dv.Kind() == cue.NumberKind || dv.Kind() == cue.IntKind || dv.Kind() == cue.FloatKind) {
		if err := dv.Decode(&a.MaxCountDriftPercent); err == nil {
			a.HasMaxCountDriftPercent = true
		}
	}
	return a
}
