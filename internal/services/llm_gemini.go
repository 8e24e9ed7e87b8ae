package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient owns the genai connection shared by Gemini backends.
type GeminiClient struct {
	client *genai.Client
}

func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

func (c *GeminiClient) Close() {
	c.client.Close()
}

type GeminiBackend struct {
	model     *genai.GenerativeModel
	name      string
	modelName string
}

func NewGeminiBackend(c *GeminiClient, name, modelName string, params LLMParams) *GeminiBackend {
	model := c.client.GenerativeModel(modelName)
	model.SetTemperature(params.Temperature)
	model.SetMaxOutputTokens(int32(params.MaxTokens))
	model.ResponseMIMEType = "application/json"

	return &GeminiBackend{model: model, name: name, modelName: modelName}
}

func (g *GeminiBackend) Name() string  { return g.name }
func (g *GeminiBackend) Model() string { return g.modelName }

func (g *GeminiBackend) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate %s: %w", g.modelName, err)
	}

	text := extractText(resp)
	if text == "" {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	return text, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}
	return b.String()
}
