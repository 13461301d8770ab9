package config

import "os"

// ApplyEnv overrides path settings from the environment. The variables are
// read after an optional .env file has been loaded by the CLI, so a local
// .env can point the same config at a different export or output tree.
func ApplyEnv(s *Settings) {
	if v := os.Getenv("SESHAT_EXPORT_ROOT"); v != "" {
		s.Export.Root = v
	}
	if v := os.Getenv("SESHAT_OUTPUT_DIR"); v != "" {
		s.Output.Dir = v
		if !s.Processing.HasDir {
			// Keep the derived processing dir tracking the override.
			s.Processing.Dir = ""
			applyDefaults(s)
		}
	}
	if v := os.Getenv("SESHAT_PROCESSING_DIR"); v != "" {
		s.Processing.Dir = v
		s.Processing.HasDir = true
	}
}
