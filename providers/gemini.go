package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dyk-im/Break-Bias/models"
	"google.golang.org/genai"
)

// NewGeminiClient creates a Gemini API client.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return client, nil
}

// GeminiGenerator implements Generator with Models.GenerateContent.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator wraps a Gemini client for text generation.
func NewGeminiGenerator(client *genai.Client, model string) *GeminiGenerator {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiGenerator{client: client, model: model}
}

// Complete sends the conversation to Gemini and returns the concatenated text
// of the first candidate.
func (g *GeminiGenerator) Complete(ctx context.Context, messages []models.ChatMessage, opts GenerateOptions) (string, error) {
	if len(messages) == 0 {
		return "", models.NewProviderError("gemini", "generate", "", errors.New("no messages"))
	}

	temperature := opts.Temperature
	config := &genai.GenerateContentConfig{Temperature: &temperature}

	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case models.RoleSystem:
			config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: m.Content}}}
		case models.RoleAssistant:
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{{Text: m.Content}}})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: m.Content}}})
		}
	}
	last := messages[len(messages)-1].Content

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", models.NewProviderError("gemini", "generate", last, err)
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", models.NewProviderError("gemini", "generate", last, errors.New("empty response"))
	}

	var responseText strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		if p.Text != "" {
			responseText.WriteString(p.Text)
		}
	}
	return responseText.String(), nil
}

// GeminiEmbedder implements Embedder with Models.EmbedContent.
type GeminiEmbedder struct {
	client    *genai.Client
	model     string
	batchSize int
}

// NewGeminiEmbedder wraps a Gemini client for embeddings.
func NewGeminiEmbedder(client *genai.Client, model string, batchSize int) *GeminiEmbedder {
	if model == "" {
		model = "text-embedding-004"
	}
	if batchSize <= 0 {
		batchSize = 32
	}
	return &GeminiEmbedder{client: client, model: model, batchSize: batchSize}
}

// Name returns the identifier of this embedder implementation.
func (g *GeminiEmbedder) Name() string { return "gemini" }

// EmbedOne embeds a single text.
func (g *GeminiEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := g.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Embed embeds texts in batches, one content per text.
func (g *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += g.batchSize {
		end := start + g.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		contents := make([]*genai.Content, len(batch))
		for i, t := range batch {
			contents[i] = &genai.Content{Role: "user", Parts: []*genai.Part{{Text: t}}}
		}
		resp, err := g.client.Models.EmbedContent(ctx, g.model, contents, nil)
		if err != nil {
			return nil, models.NewProviderError(g.Name(), "embed", batch[0], err)
		}
		if len(resp.Embeddings) != len(batch) {
			return nil, models.NewProviderError(g.Name(), "embed", batch[0],
				fmt.Errorf("got %d embeddings for %d inputs", len(resp.Embeddings), len(batch)))
		}
		for _, e := range resp.Embeddings {
			out = append(out, e.Values)
		}
	}
	return out, nil
}
