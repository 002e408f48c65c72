package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Gemini is a Provider backed by the Google GenAI SDK. The API key is
// read from GEMINI_API_KEY by the SDK itself.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini provider for the given model.
func NewGemini(ctx context.Context, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// Name implements Provider.
func (g *Gemini) Name() string { return NameGemini }

// GenerateText implements Provider.
func (g *Gemini) GenerateText(ctx context.Context, req Request) (string, error) {
	parts := make([]*genai.Part, 0, len(req.Blobs)+1)
	for _, blob := range req.Blobs {
		parts = append(parts, genai.NewPartFromBytes(blob.Data, blob.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))

	cfg := &genai.GenerateContentConfig{}
	if req.Temperature > 0 {
		cfg.Temperature = &req.Temperature
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty response")
	}
	return text, nil
}
