package generator

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/roach88/specforge/internal/ir"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// Gemini generates candidates with Google's Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini generator authenticated by apiKey.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required (set GEMINI_API_KEY)")
	}
	return NewGeminiWithConfig(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}, model)
}

// NewGeminiWithConfig creates a Gemini generator from a full client config.
func NewGeminiWithConfig(ctx context.Context, cfg *genai.ClientConfig, model string) (*Gemini, error) {
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// Model returns the configured model name.
func (g *Gemini) Model() string {
	return g.model
}

// Generate implements Generator.
func (g *Gemini) Generate(ctx context.Context, spec *ir.Specification) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(BuildPrompt(spec)),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(SystemInstruction, genai.RoleUser),
			Temperature:       genai.Ptr[float32](0),
		},
	)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResult
	}
	return text, nil
}
