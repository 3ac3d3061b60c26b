package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/specforge/internal/artifact"
	"github.com/roach88/specforge/internal/engine"
	"github.com/roach88/specforge/internal/generator"
	"github.com/roach88/specforge/internal/ir"
	"github.com/roach88/specforge/internal/loader"
	"github.com/roach88/specforge/internal/lockfile"
	"github.com/roach88/specforge/internal/metrics"
	"github.com/roach88/specforge/internal/sandbox"
	"github.com/roach88/specforge/internal/store"
	"github.com/roach88/specforge/internal/validate"
	"github.com/roach88/specforge/internal/watch"
)

// Defaults shared by several commands.
const (
	DefaultSpecsDir  = "specs"
	DefaultOutputDir = "generated"
	DefaultLockFile  = lockfile.DefaultPath

	SandboxInProcess = "inproc"
	SandboxProcess   = "process"

	envModel  = "SPECFORGE_MODEL"
	envAPIKey = "GEMINI_API_KEY"
)

// BuildOptions holds flags for the build command.
type BuildOptions struct {
	*RootOptions
	SpecsDir    string
	OutputDir   string
	LockFile    string
	Package     string
	Force       bool
	Prune       bool
	History     string
	MetricsFile string
	Watch       bool
	Model       string
	Sandbox     string
	ExecTimeout time.Duration
	GenTimeout  time.Duration

	// Generator overrides the Gemini generator (for testing).
	Generator generator.Generator

	// RunIDs overrides the run ID source (for testing).
	RunIDs engine.RunIDGenerator
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	return newBuildCommand(rootOpts)
}

func newBuildCommand(rootOpts *RootOptions, configure ...func(*BuildOptions)) *cobra.Command {
	opts := &BuildOptions{RootOptions: rootOpts}
	for _, c := range configure {
		c(opts)
	}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Generate, validate and publish every spec",
		Long: `Discover specs, rebuild those whose fingerprint changed, and publish
candidates that pass every example.

A spec is skipped when code-lock.json already holds its fingerprint and
its artifact exists. Failed specs never replace a published artifact.

Exit codes:
  0 - every spec published or skipped
  1 - one or more specs failed
  2 - command error (unreadable specs, lock file or artifact write failure)

Examples:
  specforge build
  specforge build --specs ./specs --output ./generated --force
  specforge build --watch --sandbox process
  specforge build --format json --history ""`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, opts)
		},
	}

	model := os.Getenv(envModel)
	if model == "" {
		model = generator.DefaultModel
	}

	f := cmd.Flags()
	f.StringVar(&opts.SpecsDir, "specs", DefaultSpecsDir, "directory searched recursively for spec files")
	f.StringVarP(&opts.OutputDir, "output", "o", DefaultOutputDir, "directory receiving published artifacts")
	f.StringVar(&opts.LockFile, "lock", DefaultLockFile, "lock file path")
	f.StringVar(&opts.Package, "package", artifact.DefaultPackage, "package clause of rendered artifacts")
	f.BoolVarP(&opts.Force, "force", "f", false, "rebuild every spec regardless of fingerprint")
	f.BoolVar(&opts.Prune, "prune", false, "drop lock entries for specs that no longer exist")
	f.StringVar(&opts.History, "history", store.DefaultPath, "build history database (empty disables)")
	f.StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this textfile after each build")
	f.BoolVarP(&opts.Watch, "watch", "w", false, "rebuild when spec files change")
	f.StringVar(&opts.Model, "model", model, "generator model (env "+envModel+")")
	f.StringVar(&opts.Sandbox, "sandbox", SandboxInProcess, "candidate executor (inproc|process)")
	f.DurationVar(&opts.ExecTimeout, "exec-timeout", sandbox.DefaultTimeout, "time limit for one example run")
	f.DurationVar(&opts.GenTimeout, "gen-timeout", 2*time.Minute, "time limit for one generator call (0 disables)")

	return cmd
}

// builder holds what stays alive across the builds of one command run.
type builder struct {
	opts     *BuildOptions
	out      *OutputFormatter
	logger   *slog.Logger
	engine   *engine.Engine
	recorder *metrics.Recorder
	history  *store.Store
}

func runBuild(cmd *cobra.Command, opts *BuildOptions) error {
	out := newFormatter(cmd, opts.RootOptions)
	logger := newLogger(cmd, opts.RootOptions)

	ctx, stop := signalContext(cmd)
	defer stop()

	exec, err := newExecutor(opts.Sandbox, opts.ExecTimeout)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid sandbox", err)
	}

	gen := opts.Generator
	if gen == nil {
		gen = &lazyGemini{model: opts.Model}
	}

	b := &builder{
		opts:     opts,
		out:      out,
		logger:   logger,
		recorder: metrics.NewRecorder(nil),
	}

	engOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithObserver(b.recorder),
	}
	if opts.GenTimeout > 0 {
		engOpts = append(engOpts, engine.WithGenerateTimeout(opts.GenTimeout))
	}
	if opts.RunIDs != nil {
		engOpts = append(engOpts, engine.WithRunIDGenerator(opts.RunIDs))
	}
	b.engine = engine.New(gen, validate.New(exec), engOpts...)

	if opts.History != "" {
		if err := os.MkdirAll(filepath.Dir(opts.History), 0o755); err != nil {
			return WrapExitError(ExitCommandError, "failed to create history directory", err)
		}
		st, err := store.Open(opts.History)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open history", err)
		}
		defer func() {
			if err := st.Close(); err != nil {
				logger.Error("error closing history", "error", err)
			}
		}()
		b.history = st
	}

	if !opts.Watch {
		return b.buildOnce(ctx)
	}

	w, err := watch.New(opts.SpecsDir, b.buildOnce, watch.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to watch specs", err)
	}
	logger.Info("watching specs", "dir", opts.SpecsDir)
	if err := w.Run(ctx); err != nil {
		return WrapExitError(ExitCommandError, "watch failed", err)
	}
	return nil
}

// buildOnce discovers specs, runs one build and persists its results.
func (b *builder) buildOnce(ctx context.Context) error {
	opts := b.opts

	loaded, errs := loader.Discover(opts.SpecsDir, loader.LoadModeCollectAll)
	if loaded == nil {
		if b.out.JSON() {
			b.out.Error(ErrCodeLoad, "failed to load specs", errorStrings(errs))
		}
		return WrapExitError(ExitCommandError, "failed to load specs", errors.Join(errs...))
	}
	for _, e := range errs {
		b.out.Warn("%v", e)
	}
	b.logger.Debug("specs discovered", "files", loaded.FileCount, "specs", len(loaded.Specs))

	prior, err := lockfile.Load(opts.LockFile)
	if err != nil {
		if b.out.JSON() {
			b.out.Error(ErrCodeLoad, "failed to read lock file", err.Error())
		}
		return WrapExitError(ExitCommandError, "failed to read lock file", err)
	}

	report, rec, buildErr := b.engine.Build(ctx, loaded.Specs, prior, engine.BuildOptions{
		OutputDir: opts.OutputDir,
		Package:   opts.Package,
		Force:     opts.Force,
		Prune:     opts.Prune,
		Checkpoint: func(r lockfile.Record) error {
			return lockfile.Commit(opts.LockFile, r)
		},
	})

	// The record is consistent with the artifacts on disk even when the
	// build stopped early.
	if err := lockfile.Commit(opts.LockFile, rec); err != nil {
		buildErr = errors.Join(buildErr, &engine.PersistenceError{Op: "commit lock file", Path: opts.LockFile, Err: err})
	}

	if b.history != nil {
		if err := b.history.WriteReport(context.WithoutCancel(ctx), report); err != nil {
			b.logger.Warn("failed to record build history", "error", err)
		}
	}
	if opts.MetricsFile != "" {
		if err := b.recorder.WriteTextfile(opts.MetricsFile); err != nil {
			b.logger.Warn("failed to write metrics", "path", opts.MetricsFile, "error", err)
		}
	}

	if err := b.printReport(report, buildErr); err != nil {
		return err
	}

	switch {
	case buildErr != nil:
		return WrapExitError(ExitCommandError, "build stopped", buildErr)
	case report.Failed():
		return NewExitError(ExitFailure, fmt.Sprintf("%d spec(s) failed", report.Counts().Failed))
	}
	return nil
}

// BuildResult is the JSON payload of the build command.
type BuildResult struct {
	Outcomes []engine.Outcome `json:"outcomes"`
	Counts   engine.Counts    `json:"counts"`
	Pruned   []string         `json:"pruned,omitempty"`
}

func (b *builder) printReport(report *engine.Report, buildErr error) error {
	counts := report.Counts()

	if b.out.JSON() {
		var cliErr *CLIError
		switch {
		case buildErr != nil:
			cliErr = &CLIError{Code: ErrCodePersistence, Message: buildErr.Error()}
		case counts.Failed > 0:
			cliErr = &CLIError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("%d spec(s) failed", counts.Failed)}
		}
		return b.out.Result(report.RunID, BuildResult{
			Outcomes: report.Outcomes,
			Counts:   counts,
			Pruned:   report.Pruned,
		}, cliErr)
	}

	w := tabwriter.NewWriter(b.out.Writer, 0, 0, 2, ' ', 0)
	for _, o := range report.Outcomes {
		line := fmt.Sprintf("%s\t%s\t%s", o.SpecID, o.State, o.Reason)
		if o.Error != "" {
			line += "\t" + o.Error
		}
		fmt.Fprintln(w, line)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	for _, id := range report.Pruned {
		fmt.Fprintf(b.out.Writer, "pruned %s\n", id)
	}
	fmt.Fprintf(b.out.Writer, "\nBuild %s: %d published, %d skipped, %d failed\n",
		report.RunID, counts.Published, counts.Skipped, counts.Failed)
	if buildErr != nil {
		fmt.Fprintf(b.out.Writer, "Build stopped: %v\n", buildErr)
	}
	return nil
}

func newExecutor(kind string, timeout time.Duration) (sandbox.Executor, error) {
	switch kind {
	case SandboxInProcess, "":
		return sandbox.NewInterpreter(timeout), nil
	case SandboxProcess:
		return sandbox.NewProcess(timeout)
	default:
		return nil, fmt.Errorf("unknown sandbox %q: must be %s or %s", kind, SandboxInProcess, SandboxProcess)
	}
}

// lazyGemini creates the Gemini client on first use so builds where
// every spec is unchanged need no API key.
type lazyGemini struct {
	model string

	once sync.Once
	gen  *generator.Gemini
	err  error
}

func (l *lazyGemini) Generate(ctx context.Context, spec *ir.Specification) (string, error) {
	l.once.Do(func() {
		key := os.Getenv(envAPIKey)
		if key == "" {
			l.err = fmt.Errorf("%s is not set", envAPIKey)
			return
		}
		l.gen, l.err = generator.NewGemini(ctx, key, l.model)
	})
	if l.err != nil {
		return "", l.err
	}
	return l.gen.Generate(ctx, spec)
}

func errorStrings(errs []error) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Error()
	}
	return out
}
