package root

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/flarebyte/seshat-archive/cmd/seshat/diagnose"
	"github.com/flarebyte/seshat-archive/cmd/seshat/reset"
	"github.com/flarebyte/seshat-archive/cmd/seshat/run"
	"github.com/flarebyte/seshat-archive/cmd/seshat/status"
	"github.com/flarebyte/seshat-archive/cmd/seshat/version"
)

// NewRootCmd creates the root command for seshat.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seshat",
		Short: "CLI: turn a personal data export into a browsable, regenerable archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Show help when no subcommand is provided.
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Subcommands
	cmd.AddCommand(version.VersionCmd)
	cmd.AddCommand(run.Cmd)
	cmd.AddCommand(status.Cmd)
	cmd.AddCommand(reset.Cmd)
	cmd.AddCommand(diagnose.Cmd)

	return cmd
}

// Execute runs the root command with provided args. A local .env, when
// present, supplies SESHAT_* overrides before any subcommand reads them.
func Execute(args []string) error {
	_ = godotenv.Load()
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	return cmd.Execute()
}
