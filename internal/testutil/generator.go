package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/specforge/internal/ir"
)

// StubGenerator answers generation requests from a fixed table of
// candidate sources keyed by spec ID. It records every call.
//
// A spec ID listed in Errors fails with that error instead. A spec ID
// found in neither table fails with an "unknown spec" error.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StubGenerator struct {
	mu      sync.Mutex
	Sources map[string]string
	Errors  map[string]error
	calls   []string
}

// NewStubGenerator creates a generator answering from sources.
func NewStubGenerator(sources map[string]string) *StubGenerator {
	return &StubGenerator{Sources: sources, Errors: map[string]error{}}
}

// Generate implements generator.Generator.
func (g *StubGenerator) Generate(ctx context.Context, spec *ir.Specification) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, spec.ID)

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err, ok := g.Errors[spec.ID]; ok {
		return "", err
	}
	src, ok := g.Sources[spec.ID]
	if !ok {
		return "", fmt.Errorf("stub generator: unknown spec %q", spec.ID)
	}
	return src, nil
}

// Set replaces the answer for specID.
func (g *StubGenerator) Set(specID, source string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Sources[specID] = source
	delete(g.Errors, specID)
}

// Calls returns the spec IDs requested so far, in call order.
func (g *StubGenerator) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

// CallCount returns the number of Generate calls.
func (g *StubGenerator) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// ResetCalls clears the call log.
func (g *StubGenerator) ResetCalls() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = nil
}
