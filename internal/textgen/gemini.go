package textgen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiGenerator implements Generator using Google's Gemini API.
type GeminiGenerator struct {
	client      *genai.Client
	modelID     string
	temperature float32
}

func NewGeminiGenerator(ctx context.Context, apiKey, modelID string) (*GeminiGenerator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("textgen: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("textgen: failed to create gemini client: %w", err)
	}

	return &GeminiGenerator{
		client:      client,
		modelID:     modelID,
		temperature: 0.7,
	}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, systemRole, userInput string) (string, error) {
	model := g.client.GenerativeModel(g.modelID)
	model.SetTemperature(g.temperature)
	if strings.TrimSpace(systemRole) != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(systemRole))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(userInput))
	if err != nil {
		return "", fmt.Errorf("textgen: gemini generate failed: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", errors.New("textgen: gemini returned no candidates")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", ErrEmptyOutput
	}

	var out strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			out.WriteString(string(text))
		}
	}
	return strings.TrimSpace(out.String()), nil
}

// Close releases resources held by the Gemini client.
func (g *GeminiGenerator) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
