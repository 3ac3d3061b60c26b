package generator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/roach88/specforge/internal/ir"
)

func addNumbers() *ir.Specification {
	return &ir.Specification{
		ID:          "addNumbers",
		Description: "add 2 numbers",
		Requirements: []ir.Requirement{{
			Description: "when getting 2 numbers, return the sum",
			Examples: []ir.Example{{
				Inputs: []ir.NamedValue{{Name: "a", Value: ir.IRInt(1)}, {Name: "b", Value: ir.IRInt(2)}},
				Output: ir.IRObject{"result": ir.IRInt(3)},
			}},
		}},
	}
}

func TestBuildPromptGolden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "prompt_add_numbers", []byte(BuildPrompt(addNumbers())))
}

func TestBuildPromptNoInputs(t *testing.T) {
	spec := &ir.Specification{
		ID: "answer",
		Requirements: []ir.Requirement{{Examples: []ir.Example{{
			Inputs: []ir.NamedValue{},
			Output: ir.IRInt(42),
		}}}},
	}
	p := BuildPrompt(spec)
	assert.Contains(t, p, "- The function takes no parameters.")
	assert.Contains(t, p, "1. (no description)")
	assert.NotContains(t, p, "Description:")
}

func TestCleanSource(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "func() int { return 1 }", "func() int { return 1 }"},
		{"surrounding space", "\n  func() int { return 1 }\n\n", "func() int { return 1 }"},
		{"go fence", "```go\nfunc() int { return 1 }\n```", "func() int { return 1 }"},
		{"bare fence", "```\nfunc() int { return 1 }\n```\n", "func() int { return 1 }"},
		{"prose around fence", "Here you go:\n```golang\nfunc() int {\n\treturn 1\n}\n```\nEnjoy.", "func() int {\n\treturn 1\n}"},
		{"unterminated fence", "```go\nfunc() int { return 1 }", "func() int { return 1 }"},
		{"only fence", "```", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanSource(tt.in))
		})
	}
}

func TestWithTimeout(t *testing.T) {
	slow := Func(func(ctx context.Context, _ *ir.Specification) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	_, err := WithTimeout(slow, 20*time.Millisecond).Generate(context.Background(), addNumbers())
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	fast := Func(func(ctx context.Context, _ *ir.Specification) (string, error) {
		_, hasDeadline := ctx.Deadline()
		assert.False(t, hasDeadline)
		return "ok", nil
	})
	text, err := WithTimeout(fast, 0).Generate(context.Background(), addNumbers())
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestGenerationError(t *testing.T) {
	err := error(&GenerationError{SpecID: "addNumbers", Err: ErrEmptyResult})
	assert.True(t, IsGenerationError(err))
	assert.ErrorIs(t, err, ErrEmptyResult)
	assert.Equal(t, "generate addNumbers: generator returned no source", err.Error())
	assert.False(t, IsGenerationError(errors.New("other")))
}

func TestNewGeminiRequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), "", "")
	assert.Error(t, err)
}

func fakeGemini(t *testing.T, text string) (*Gemini, *[]string) {
	t.Helper()
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(body))
		if !strings.Contains(r.URL.Path, ":generateContent") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": text}},
				},
			}},
		})
	}))
	t.Cleanup(srv.Close)

	g, err := NewGeminiWithConfig(context.Background(), &genai.ClientConfig{
		APIKey:      "test-key",
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: srv.URL + "/"},
	}, "")
	require.NoError(t, err)
	return g, &bodies
}

func TestGeminiGenerate(t *testing.T) {
	g, bodies := fakeGemini(t, "```go\nfunc(a, b int) int { return a + b }\n```")
	assert.Equal(t, DefaultModel, g.Model())

	text, err := g.Generate(context.Background(), addNumbers())
	require.NoError(t, err)
	assert.Equal(t, "func(a, b int) int { return a + b }", CleanSource(text))

	require.Len(t, *bodies, 1)
	assert.Contains(t, (*bodies)[0], "addNumbers")
}

func TestGeminiEmptyAnswer(t *testing.T) {
	g, _ := fakeGemini(t, "   ")
	_, err := g.Generate(context.Background(), addNumbers())
	assert.ErrorIs(t, err, ErrEmptyResult)
}
