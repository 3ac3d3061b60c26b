// Package generator asks an external code-generation service for candidate
// implementations of a specification.
package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/specforge/internal/ir"
)

// Generator produces candidate source for a specification. The returned
// text is untrusted and may still carry markdown fences; callers pass it
// through CleanSource.
type Generator interface {
	Generate(ctx context.Context, spec *ir.Specification) (string, error)
}

// Func adapts an ordinary function to Generator.
type Func func(ctx context.Context, spec *ir.Specification) (string, error)

// Generate implements Generator.
func (f Func) Generate(ctx context.Context, spec *ir.Specification) (string, error) {
	return f(ctx, spec)
}

// ErrEmptyResult is returned when the service answers with no source.
var ErrEmptyResult = errors.New("generator returned no source")

// GenerationError reports a generation attempt that produced no usable
// candidate: a service failure, a timeout, or an empty answer.
type GenerationError struct {
	SpecID string
	Err    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate %s: %v", e.SpecID, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// IsGenerationError reports whether err is a GenerationError.
func IsGenerationError(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}

// WithTimeout bounds every Generate call of g by d. A non-positive d
// returns g unchanged.
func WithTimeout(g Generator, d time.Duration) Generator {
	if d <= 0 {
		return g
	}
	return Func(func(ctx context.Context, spec *ir.Specification) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return g.Generate(ctx, spec)
	})
}
