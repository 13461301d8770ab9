package config

import (
	"fmt"

	"cuelang.org/go/cue"
)

// Settings is the explicit, fully-parsed configuration for one seshat
// invocation. The orchestration core receives it as an opaque value through
// the run context; only concrete stages interpret it.
type Settings struct {
	ConfigVersion string
	Export        Export
	Processing    Processing
	Output        Output
	Attachments   Attachments
	Filter        Filter
	Run           Run
}

// Export locates the personal data export to convert.
type Export struct {
	Root string
}

// Processing locates the working directory for durable artifacts and the
// execution ledger. Defaults to "<output.dir>/.seshat".
type Processing struct {
	Dir    string
	HasDir bool
}

// Output locates the archive directory to produce.
type Output struct {
	Dir string
}

// Attachments holds optional resolver tuning and presence flags.
type Attachments struct {
	Extensions              []string
	MaxCountDriftPercent    float64
	HasExtensions           bool
	HasMaxCountDriftPercent bool
}

// Filter holds the optional Lua document predicate.
type Filter struct {
	LuaInline    string
	HasLuaInline bool
}

// Run holds optional execution policy.
type Run struct {
	StopOnError    bool
	Force          bool
	HasStopOnError bool
	HasForce       bool
}

// Load validates and extracts settings from a CUE config file.
// Required fields:
//   - configVersion: string
//   - export: { root: string }
//   - output: { dir: string }
func Load(path string) (Settings, error) {
	v, err := compileCUE(path)
	if err != nil {
		return Settings{}, err
	}
	if err := requireStringField(v, "configVersion"); err != nil {
		return Settings{}, err
	}

	var s Settings
	cv := v.LookupPath(cue.ParsePath("configVersion"))
	if err := cv.Decode(&s.ConfigVersion); err != nil {
		return Settings{}, fmt.Errorf("invalid value for configVersion: %v", err)
	}
	if err := parsePathSections(v, &s); err != nil {
		return Settings{}, err
	}
	s.Attachments = parseAttachmentsSection(v)
	s.Filter = parseFilterSection(v)
	s.Run = parseRunSection(v)
	applyDefaults(&s)
	return s, nil
}

func requireStringField(v cue.Value, name string) error {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return fmt.Errorf("missing required field: %s", name)
	}
	if f.Kind() != cue.StringKind {
		return fmt.Errorf("invalid type for field: %s (expected string)", name)
	}
	return nil
}
