package classifier

import (
	"context"
	"fmt"
	"strings"

	"fjacquet/statement-ledger/internal/logging"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClassifier is a ModelClassifier backed by the Gemini API.
type GeminiClassifier struct {
	*ModelClassifier
	client *genai.Client
}

// NewGeminiClassifier creates a Gemini client for model.
func NewGeminiClassifier(ctx context.Context, apiKey, model string, opts Options, logger logging.Logger) (*GeminiClassifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required for the layout classifier")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	gm := client.GenerativeModel(model)

	generate := func(ctx context.Context, prompt string) (string, error) {
		resp, err := gm.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return "", fmt.Errorf("gemini request: %w", err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
			return "", fmt.Errorf("gemini returned no candidates")
		}
		var sb strings.Builder
		for _, part := range resp.Candidates[0].Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		return sb.String(), nil
	}

	return &GeminiClassifier{
		ModelClassifier: New(generate, opts, logger.WithField(logging.FieldComponent, "gemini_classifier")),
		client:          client,
	}, nil
}

// Close releases the Gemini client.
func (g *GeminiClassifier) Close() error {
	return g.client.Close()
}
