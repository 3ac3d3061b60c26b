package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing/fstest"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/roach88/specforge/internal/ir"
)

// Interpreter runs candidates in-process with the yaegi Go interpreter.
//
// Each invocation gets a fresh interpreter, so nothing a candidate mutates
// survives into the next call. Only AllowedPackages are importable; the
// interpreter's stdio is detached, its environment is empty, and its source
// filesystem is an empty in-memory FS.
type Interpreter struct {
	// Timeout bounds one invocation. Zero means DefaultTimeout.
	Timeout time.Duration
}

// NewInterpreter returns an Interpreter with the given timeout.
func NewInterpreter(timeout time.Duration) *Interpreter {
	return &Interpreter{Timeout: timeout}
}

var allowedSymbols = func() interp.Exports {
	out := interp.Exports{}
	for _, path := range AllowedPackages {
		key := path + "/" + path[strings.LastIndex(path, "/")+1:]
		if syms, ok := stdlib.Symbols[key]; ok {
			out[key] = syms
		}
	}
	return out
}()

// Invoke implements Executor.
func (in *Interpreter) Invoke(ctx context.Context, source string, args []ir.IRValue) (ir.IRValue, error) {
	c, err := analyze(source)
	if err != nil {
		return nil, err
	}
	if err := c.checkArity(len(args)); err != nil {
		return nil, err
	}

	argsJSON := make([]string, len(args))
	for i, a := range args {
		data, err := ir.MarshalIRValue(a)
		if err != nil {
			return nil, newError(PhaseArgs, "argument %d: %w", i, err)
		}
		argsJSON[i] = string(data)
	}

	timeout := in.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := ctx.Err(); err != nil {
		return nil, &ExecutionError{Phase: PhaseTimeout, Err: err}
	}

	i := interp.New(interp.Options{
		Stdin:                strings.NewReader(""),
		Stdout:               io.Discard,
		Stderr:               io.Discard,
		Env:                  []string{},
		SourcecodeFilesystem: fstest.MapFS{},
	})
	if err := i.Use(allowedSymbols); err != nil {
		return nil, newError(PhaseParse, "load symbols: %w", err)
	}

	if _, err := i.EvalWithContext(ctx, c.program(source, argsJSON)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &ExecutionError{Phase: PhaseTimeout, Err: ctxErr}
		}
		return nil, newError(PhaseParse, "compile candidate: %w", err)
	}

	res, err := i.EvalWithContext(ctx, symRun+"()")
	if err != nil {
		return nil, classify(ctx, err)
	}
	if res.IsValid() && res.Kind() == reflect.Interface {
		res = res.Elem()
	}
	if !res.IsValid() || res.Kind() != reflect.String {
		return nil, newError(PhaseProcess, "unexpected run result %v", res)
	}
	var outcome []string
	if err := json.Unmarshal([]byte(res.String()), &outcome); err != nil || len(outcome) != 3 {
		return nil, newError(PhaseProcess, "decode run result %q: %v", res.String(), err)
	}
	phase, detail, out := outcome[0], outcome[1], outcome[2]
	if phase != "" {
		return nil, &ExecutionError{Phase: Phase(phase), Err: errors.New(detail)}
	}

	v, err := ir.UnmarshalIRValue([]byte(out))
	if err != nil {
		return nil, newError(PhaseResult, "decode result: %w", err)
	}
	return v, nil
}

func classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &ExecutionError{Phase: PhaseTimeout, Err: ctxErr}
	}
	var p interp.Panic
	if errors.As(err, &p) {
		return newError(PhasePanic, "%v", p.Value)
	}
	return &ExecutionError{Phase: PhasePanic, Err: err}
}
