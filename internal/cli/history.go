package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/specforge/internal/engine"
	"github.com/roach88/specforge/internal/query"
	"github.com/roach88/specforge/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	History string
	Limit   int
	RunID   string
	SpecID  string
	Where   []string
}

// RunDetail is the JSON payload of history --run.
type RunDetail struct {
	Run      store.Run        `json:"run"`
	Outcomes []engine.Outcome `json:"outcomes"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past builds",
		Long: `List recorded builds, newest first.

With --run, show every outcome of one build. With --spec or --where, show
matching outcomes across builds. --where takes field=value and may repeat;
all terms must match. Fields: `+strings.Join(query.Fields(), ", ")+`.

Examples:
  specforge history --limit 5
  specforge history --run 0192f0c4-...
  specforge history --spec addNumbers --format json
  specforge history --where state=failed --where reason=validation`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.History, "history", store.DefaultPath, "build history database")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum number of entries (0 for all)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show the outcomes of one build")
	cmd.Flags().StringVar(&opts.SpecID, "spec", "", "show the outcomes of one spec")
	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "filter outcomes by field=value (repeatable)")
	cmd.MarkFlagsMutuallyExclusive("run", "spec")
	cmd.MarkFlagsMutuallyExclusive("run", "where")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions) error {
	out := newFormatter(cmd, opts.RootOptions)

	if _, err := os.Stat(opts.History); err != nil {
		return WrapExitError(ExitCommandError, "no build history", err)
	}
	st, err := store.Open(opts.History)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open history", err)
	}
	defer st.Close()

	ctx, stop := signalContext(cmd)
	defer stop()

	switch {
	case opts.RunID != "":
		run, ok, err := st.GetRun(ctx, opts.RunID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read history", err)
		}
		if !ok {
			if out.JSON() {
				out.Error(ErrCodeNotFound, fmt.Sprintf("run %s not found", opts.RunID), nil)
			}
			return NewExitError(ExitCommandError, fmt.Sprintf("run %s not found", opts.RunID))
		}
		outcomes, err := st.RunOutcomes(ctx, opts.RunID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read history", err)
		}
		if out.JSON() {
			return out.Success(RunDetail{Run: run, Outcomes: outcomes})
		}
		if err := printRuns(out, []store.Run{run}); err != nil {
			return err
		}
		fmt.Fprintln(out.Writer)
		return printOutcomes(out, outcomes)

	case opts.SpecID != "" || len(opts.Where) > 0:
		terms := opts.Where
		if opts.SpecID != "" {
			terms = append([]string{"spec_id=" + opts.SpecID}, terms...)
		}
		filter, err := query.Parse(terms)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid filter", err)
		}
		entries, err := st.FindOutcomes(ctx, filter, opts.Limit)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read history", err)
		}
		if out.JSON() {
			return out.Success(entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(out.Writer, "No matching outcomes.")
			return nil
		}
		w := tabwriter.NewWriter(out.Writer, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "STARTED\tRUN\tSPEC\tSTATE\tREASON")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				e.Started.Local().Format(time.DateTime), e.RunID, e.Outcome.SpecID, e.Outcome.State, e.Outcome.Reason)
		}
		return w.Flush()

	default:
		runs, err := st.ListRuns(ctx, opts.Limit)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read history", err)
		}
		if out.JSON() {
			return out.Success(runs)
		}
		if len(runs) == 0 {
			fmt.Fprintln(out.Writer, "No builds recorded.")
			return nil
		}
		return printRuns(out, runs)
	}
}

func printRuns(out *OutputFormatter, runs []store.Run) error {
	w := tabwriter.NewWriter(out.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tRUN\tPUBLISHED\tSKIPPED\tFAILED\tDURATION")
	for _, r := range runs {
		run := r.RunID
		if r.Force {
			run += " (forced)"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n",
			r.Started.Local().Format(time.DateTime), run,
			r.Counts.Published, r.Counts.Skipped, r.Counts.Failed,
			r.Finished.Sub(r.Started).Round(time.Millisecond))
	}
	return w.Flush()
}

func printOutcomes(out *OutputFormatter, outcomes []engine.Outcome) error {
	w := tabwriter.NewWriter(out.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SPEC\tSTATE\tREASON\tERROR")
	for _, o := range outcomes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", o.SpecID, o.State, o.Reason, o.Error)
	}
	return w.Flush()
}
