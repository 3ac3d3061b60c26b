// Package sandbox runs untrusted candidate source as a callable.
//
// A candidate is a single Go function literal. Executors apply it to a
// positional argument list of JSON-shaped values and return its result as a
// JSON-shaped value. Two executors exist: Interpreter evaluates the literal
// in-process with a restricted Go interpreter, Process does the same in a
// child process that can be killed outright.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/specforge/internal/ir"
)

// DefaultTimeout bounds a single invocation when no timeout is configured.
const DefaultTimeout = 2 * time.Second

// Executor applies candidate source to args.
//
// Every failure is returned as *ExecutionError. Callers must not assume
// which implementation they hold.
type Executor interface {
	Invoke(ctx context.Context, source string, args []ir.IRValue) (ir.IRValue, error)
}

// Phase identifies where an invocation failed.
type Phase string

const (
	// PhaseParse: the source is not a function literal or does not compile.
	PhaseParse Phase = "parse"

	// PhaseArgs: the arguments do not fit the declared parameters.
	PhaseArgs Phase = "args"

	// PhasePanic: the callable panicked.
	PhasePanic Phase = "panic"

	// PhaseError: the callable returned a non-nil error.
	PhaseError Phase = "error"

	// PhaseTimeout: the wall-clock bound was exceeded or ctx was cancelled.
	PhaseTimeout Phase = "timeout"

	// PhaseResult: the result is not representable as a JSON value.
	PhaseResult Phase = "result"

	// PhaseProcess: the child process failed outside the callable.
	PhaseProcess Phase = "process"
)

// ExecutionError reports a candidate that could not be run to completion.
type ExecutionError struct {
	Phase Phase
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed (%s): %v", e.Phase, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// AsExecutionError unwraps err to an *ExecutionError.
func AsExecutionError(err error) (*ExecutionError, bool) {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}

// IsTimeout reports whether err is an execution timeout.
func IsTimeout(err error) bool {
	ee, ok := AsExecutionError(err)
	return ok && ee.Phase == PhaseTimeout
}

func newError(phase Phase, format string, args ...any) *ExecutionError {
	return &ExecutionError{Phase: phase, Err: fmt.Errorf(format, args...)}
}
