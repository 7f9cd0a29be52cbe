package oracle

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"askdb/internal/logging"
)

// GeminiOracle invokes a Gemini model through the GenAI SDK.
type GeminiOracle struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini-backed oracle.
func NewGemini(ctx context.Context, apiKey, model string) (*GeminiOracle, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create GenAI client: %w", err)
	}

	return &GeminiOracle{client: client, model: model}, nil
}

// Invoke renders the fields and requests a single completion. The
// temperature is pinned low so repeated runs stay close to stable,
// though the reply is still not guaranteed to match any format.
func (g *GeminiOracle) Invoke(ctx context.Context, fields Fields) (string, error) {
	prompt := fields.Render()
	log := logging.For(logging.CategoryOracle)
	log.Debugw("invoking gemini", "model", g.model, "prompt_bytes", len(prompt))

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			Temperature: genai.Ptr[float32](0.1),
		})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", errors.New("gemini: empty response")
	}
	return text, nil
}
