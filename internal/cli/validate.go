package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/specforge/internal/artifact"
	"github.com/roach88/specforge/internal/loader"
	"github.com/roach88/specforge/internal/lockfile"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	SpecsDir  string
	OutputDir string
	LockFile  string
}

// Spec status as seen by validate.
const (
	StatusFresh = "fresh" // a build would skip it
	StatusStale = "stale" // a build would regenerate it
)

// SpecStatus is one discovered spec.
type SpecStatus struct {
	SpecID      string `json:"spec_id"`
	Source      string `json:"source"`
	Examples    int    `json:"examples"`
	Fingerprint string `json:"fingerprint"`
	Status      string `json:"status"`
}

// ValidationResult is the JSON payload of the validate command.
type ValidationResult struct {
	Valid     bool         `json:"valid"`
	Specs     []SpecStatus `json:"specs"`
	Malformed []string     `json:"malformed,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check spec files without building",
		Long: `Discover and compile spec files, report malformed entries, and show
which specs the next build would regenerate. Nothing is generated or written.

Exit codes:
  0 - every spec is well formed
  1 - one or more spec entries are malformed
  2 - the specs directory cannot be read`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.SpecsDir, "specs", DefaultSpecsDir, "directory searched recursively for spec files")
	cmd.Flags().StringVarP(&opts.OutputDir, "output", "o", DefaultOutputDir, "directory holding published artifacts")
	cmd.Flags().StringVar(&opts.LockFile, "lock", DefaultLockFile, "lock file path")

	return cmd
}

func runValidate(cmd *cobra.Command, opts *ValidateOptions) error {
	out := newFormatter(cmd, opts.RootOptions)

	loaded, errs := loader.Discover(opts.SpecsDir, loader.LoadModeCollectAll)
	if loaded == nil {
		var le *loader.LoadError
		if len(errs) > 0 && errors.As(errs[0], &le) && out.JSON() {
			out.Error(le.Code, le.Message, nil)
		}
		return WrapExitError(ExitCommandError, "failed to load specs", errors.Join(errs...))
	}

	rec, err := lockfile.Load(opts.LockFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read lock file", err)
	}

	result := ValidationResult{Valid: len(errs) == 0, Specs: []SpecStatus{}}
	for i := range loaded.Specs {
		spec := &loaded.Specs[i]
		hash, err := lockfile.Fingerprint(spec)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: spec %q: %w", spec.Source, spec.ID, err))
			result.Valid = false
			continue
		}
		status := StatusStale
		stale, err := lockfile.NeedsRebuildHash(rec, spec.ID, hash, artifact.Path(opts.OutputDir, spec.ID))
		if err == nil && !stale {
			status = StatusFresh
		}
		result.Specs = append(result.Specs, SpecStatus{
			SpecID:      spec.ID,
			Source:      spec.Source,
			Examples:    spec.ExampleCount(),
			Fingerprint: hash,
			Status:      status,
		})
	}
	for _, e := range errs {
		result.Malformed = append(result.Malformed, e.Error())
	}

	if out.JSON() {
		var cliErr *CLIError
		if !result.Valid {
			cliErr = &CLIError{Code: ErrCodeMalformed, Message: fmt.Sprintf("%d malformed spec(s)", len(errs))}
		}
		if err := out.Result("", result, cliErr); err != nil {
			return err
		}
	} else {
		w := tabwriter.NewWriter(out.Writer, 0, 0, 2, ' ', 0)
		for _, s := range result.Specs {
			fmt.Fprintf(w, "%s\t%s\t%d example(s)\t%s\n", s.SpecID, s.Status, s.Examples, s.Source)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		for _, m := range result.Malformed {
			fmt.Fprintf(out.Writer, "malformed: %s\n", m)
		}
		fmt.Fprintf(out.Writer, "\n%d spec(s) in %d file(s), %d malformed\n",
			len(result.Specs), loaded.FileCount, len(result.Malformed))
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("%d malformed spec(s)", len(errs)))
	}
	return nil
}
