// Package gemini wraps the Google Gemini API behind the two narrow
// operations this system needs: text generation for the full-reasoning
// handler and query embeddings for the router's semantic tier.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/concierge-dev/concierge/internal/config"
	"google.golang.org/genai"
)

// GenerationResult carries the generated text plus the usage counters
// that executions account for.
type GenerationResult struct {
	Text       string
	TokensUsed int64
}

// Client talks to the Gemini API for generation and embeddings.
type Client struct {
	logger         *slog.Logger
	client         *genai.Client
	model          string
	embeddingModel string
}

// NewClient creates a Gemini client from the LLM configuration.
func NewClient(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Client, error) {
	if logger == nil {
		return nil, fmt.Errorf("%w: logger cannot be nil", ErrInvalidConfig)
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", ErrInvalidConfig)
	}
	if cfg.EmbeddingModel == "" {
		return nil, fmt.Errorf("%w: embedding model cannot be empty", ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create gemini client: %v", ErrInvalidConfig, err)
	}

	return &Client{
		logger:         logger,
		client:         client,
		model:          cfg.ModelName,
		embeddingModel: cfg.EmbeddingModel,
	}, nil
}

// Generate produces a text completion for the given prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (*GenerationResult, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyInput
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		c.logger.Error("gemini generation call failed", "error", err)
		return nil, fmt.Errorf("gemini generation failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("%w: no content generated", ErrInvalidResponse)
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return nil, ErrContentBlocked
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	text := sb.String()
	if text == "" {
		return nil, fmt.Errorf("%w: empty text in response", ErrInvalidResponse)
	}

	result := &GenerationResult{Text: text}
	if resp.UsageMetadata != nil {
		result.TokensUsed = int64(resp.UsageMetadata.TotalTokenCount)
	}

	return result, nil
}

// Embed computes the embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	resp, err := c.client.Models.EmbedContent(ctx, c.embeddingModel, genai.Text(text), nil)
	if err != nil {
		c.logger.Error("gemini embedding call failed", "error", err)
		return nil, fmt.Errorf("gemini embedding failed: %w", err)
	}

	if resp == nil || len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", ErrInvalidResponse)
	}

	return resp.Embeddings[0].Values, nil
}
