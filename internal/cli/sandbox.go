package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/specforge/internal/sandbox"
)

// NewSandboxCommand creates the hidden command a process sandbox runs in
// its child: one JSON request on stdin, one JSON response on stdout.
func NewSandboxCommand() *cobra.Command {
	return &cobra.Command{
		Use:    "sandbox",
		Short:  "Run one candidate invocation (internal)",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()
			if err := sandbox.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
				return WrapExitError(ExitCommandError, "sandbox", err)
			}
			return nil
		},
	}
}
