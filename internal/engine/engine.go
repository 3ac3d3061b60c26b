package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/specforge/internal/artifact"
	"github.com/roach88/specforge/internal/generator"
	"github.com/roach88/specforge/internal/ir"
	"github.com/roach88/specforge/internal/lockfile"
	"github.com/roach88/specforge/internal/sandbox"
	"github.com/roach88/specforge/internal/validate"
)

// Validator checks a candidate against a spec. *validate.Validator is the
// production implementation.
type Validator interface {
	Validate(ctx context.Context, source string, spec *ir.Specification) validate.Result
}

// Engine orchestrates builds. It holds no per-build state and may run
// several sequential builds.
type Engine struct {
	gen       generator.Generator
	validator Validator
	runIDs    RunIDGenerator
	clock     Clock
	logger    *slog.Logger
	observers []Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithRunIDGenerator sets the run ID source. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		e.runIDs = g
	}
}

// WithClock sets the clock used for report timestamps.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithObserver adds an observer. Observers are called in the order added.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, o)
	}
}

// WithGenerateTimeout bounds each generator call.
func WithGenerateTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.gen = generator.WithTimeout(e.gen, d)
	}
}

// New creates an Engine. Options are applied in order, after defaults.
func New(gen generator.Generator, v Validator, opts ...Option) *Engine {
	e := &Engine{
		gen:       gen,
		validator: v,
		runIDs:    UUIDv7Generator{},
		clock:     SystemClock{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BuildOptions are per-run settings.
type BuildOptions struct {
	// OutputDir receives one artifact per spec.
	OutputDir string

	// Package is the package clause of rendered artifacts.
	Package string

	// Force regenerates every spec regardless of its fingerprint.
	Force bool

	// Prune drops record entries for specs not in this run.
	Prune bool

	// Checkpoint, if set, receives a copy of the working record after
	// every publish. An error stops the build as a PersistenceError.
	Checkpoint func(lockfile.Record) error
}

// Build runs every spec through the state machine in order.
//
// The returned record starts as a copy of prior: Published specs get their
// new fingerprint, SkippedUnchanged specs keep theirs, and Failed specs lose
// their entry. Specs absent from this run keep their entries unless
// opts.Prune is set.
//
// The error is non-nil only for a PersistenceError or cancellation of ctx.
// The report and record are returned in every case.
func (e *Engine) Build(ctx context.Context, specs []ir.Specification, prior lockfile.Record, opts BuildOptions) (*Report, lockfile.Record, error) {
	report := &Report{
		RunID:    e.runIDs.Generate(),
		Force:    opts.Force,
		Outcomes: []Outcome{},
		Started:  e.clock.Now(),
	}
	rec := prior.Clone()
	log := e.logger.With("run_id", report.RunID)

	log.Info("build starting", "specs", len(specs), "force", opts.Force, "output", opts.OutputDir)

	var buildErr error
	for i := range specs {
		spec := &specs[i]
		if err := ctx.Err(); err != nil {
			buildErr = err
			break
		}

		o, err := e.buildSpec(ctx, log, spec, rec, opts)
		report.Outcomes = append(report.Outcomes, o)
		for _, obs := range e.observers {
			obs.SpecFinished(report.RunID, o)
		}
		if err != nil {
			buildErr = err
			break
		}
	}

	if buildErr == nil && opts.Prune {
		keep := make(map[string]bool, len(specs))
		for _, s := range specs {
			keep[s.ID] = true
		}
		report.Pruned = rec.Prune(keep)
		if len(report.Pruned) > 0 {
			log.Info("pruned lock entries", "specs", report.Pruned)
		}
	}

	report.Finished = e.clock.Now()
	c := report.Counts()
	if buildErr != nil {
		log.Error("build stopped", "error", buildErr, "published", c.Published, "skipped", c.Skipped, "failed", c.Failed)
	} else {
		log.Info("build finished", "published", c.Published, "skipped", c.Skipped, "failed", c.Failed)
	}
	for _, obs := range e.observers {
		obs.BuildFinished(report)
	}
	return report, rec, buildErr
}

// buildSpec takes one spec to a terminal state, updating rec in place.
// A non-nil error is fatal to the build.
func (e *Engine) buildSpec(ctx context.Context, log *slog.Logger, spec *ir.Specification, rec lockfile.Record, opts BuildOptions) (Outcome, error) {
	start := e.clock.Now()
	o := Outcome{SpecID: spec.ID, State: StateStart}
	log = log.With("spec", spec.ID)

	// A canceled spec keeps its prior entry; its old artifact is untouched.
	fail := func(reason string, err error) Outcome {
		if reason != ReasonCanceled {
			delete(rec, spec.ID)
		}
		o.State = StateFailed
		o.Reason = reason
		o.Err = err
		o.Error = err.Error()
		o.Duration = e.clock.Now().Sub(start)
		log.Warn("spec failed", "reason", reason, "error", err)
		return o
	}

	hash, err := lockfile.Fingerprint(spec)
	if err != nil {
		return fail(ReasonFingerprint, err), nil
	}
	o.Hash = hash
	path := artifact.Path(opts.OutputDir, spec.ID)

	reason := ReasonForced
	if !opts.Force {
		needs, err := lockfile.NeedsRebuildHash(rec, spec.ID, hash, path)
		if err != nil {
			pe := &PersistenceError{Op: "check artifact", Path: path, Err: err}
			return fail(ReasonPersistence, pe), pe
		}
		if !needs {
			o.State = StateSkippedUnchanged
			o.Reason = ReasonUnchanged
			o.Duration = e.clock.Now().Sub(start)
			log.Debug("spec unchanged, skipping", "hash", hash)
			return o, nil
		}
		reason = rebuildReason(rec, spec.ID, hash)
	}

	// Generating
	log.Debug("state transition", "state", StateGenerating, "reason", reason)
	o.GeneratorCalled = true
	raw, err := e.gen.Generate(ctx, spec)
	source := ""
	if err == nil {
		source = generator.CleanSource(raw)
		if source == "" {
			err = generator.ErrEmptyResult
		}
	}
	if err != nil {
		if ctx.Err() != nil {
			return fail(ReasonCanceled, &generator.GenerationError{SpecID: spec.ID, Err: err}), nil
		}
		return fail(ReasonGeneration, &generator.GenerationError{SpecID: spec.ID, Err: err}), nil
	}

	// Validating
	log.Debug("state transition", "state", StateValidating, "examples", spec.ExampleCount())
	res := e.validator.Validate(ctx, source, spec)
	if !res.OK {
		if res.Err == nil {
			res.Err = errors.New("candidate rejected")
		}
		if ctx.Err() != nil {
			return fail(ReasonCanceled, res.Err), nil
		}
		if _, ok := sandbox.AsExecutionError(res.Err); ok {
			return fail(ReasonExecution, res.Err), nil
		}
		return fail(ReasonValidation, res.Err), nil
	}

	// Publishing
	log.Debug("state transition", "state", StatePublishing, "path", path)
	data, err := artifact.Render(spec, hash, source, opts.Package)
	if err != nil {
		return fail(ReasonRender, err), nil
	}
	if err := artifact.Write(path, data); err != nil {
		pe := &PersistenceError{Op: "write artifact", Path: path, Err: err}
		return fail(ReasonPersistence, pe), pe
	}

	rec[spec.ID] = hash
	o.State = StatePublished
	o.Reason = reason
	o.SourceHash = ir.SourceHash(source)
	o.Duration = e.clock.Now().Sub(start)
	log.Info("spec published", "reason", reason, "hash", hash, "path", path)

	if opts.Checkpoint != nil {
		if err := opts.Checkpoint(rec.Clone()); err != nil {
			return o, &PersistenceError{Op: "checkpoint", Err: fmt.Errorf("after publishing %s: %w", spec.ID, err)}
		}
	}
	return o, nil
}

// rebuildReason explains a rebuild decided by NeedsRebuild.
func rebuildReason(rec lockfile.Record, specID, hash string) string {
	prev, ok := rec[specID]
	switch {
	case !ok:
		return ReasonNew
	case prev != hash:
		return ReasonChanged
	default:
		return ReasonArtifactMissing
	}
}
