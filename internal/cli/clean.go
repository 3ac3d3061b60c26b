package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
)

// CleanOptions holds flags for the clean command.
type CleanOptions struct {
	*RootOptions
	OutputDir string
	LockFile  string
}

// CleanResult lists what clean removed.
type CleanResult struct {
	Removed []string `json:"removed"`
}

// NewCleanCommand creates the clean command.
func NewCleanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CleanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove published artifacts and the lock file",
		Long: `Remove the output directory and the lock file so the next build
regenerates every spec. Build history is kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.OutputDir, "output", "o", DefaultOutputDir, "artifact directory to remove")
	cmd.Flags().StringVar(&opts.LockFile, "lock", DefaultLockFile, "lock file to remove")

	return cmd
}

func runClean(cmd *cobra.Command, opts *CleanOptions) error {
	out := newFormatter(cmd, opts.RootOptions)
	result := CleanResult{Removed: []string{}}

	if _, err := os.Stat(opts.OutputDir); err == nil {
		if err := os.RemoveAll(opts.OutputDir); err != nil {
			return WrapExitError(ExitCommandError, "failed to remove output directory", err)
		}
		result.Removed = append(result.Removed, opts.OutputDir)
	}

	if err := os.Remove(opts.LockFile); err == nil {
		result.Removed = append(result.Removed, opts.LockFile)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return WrapExitError(ExitCommandError, "failed to remove lock file", err)
	}

	if out.JSON() {
		return out.Success(result)
	}
	if len(result.Removed) == 0 {
		fmt.Fprintln(out.Writer, "Nothing to clean.")
		return nil
	}
	for _, p := range result.Removed {
		fmt.Fprintf(out.Writer, "removed %s\n", p)
	}
	return nil
}
