// Package providers holds the external collaborators of the engine: text
// embedding, text generation and comment collection.
package providers

import (
	"context"

	"github.com/dyk-im/Break-Bias/models"
)

// Embedder turns text into vectors. Implementations return one vector per
// input, in input order.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// GenerateOptions configures a single generation call.
type GenerateOptions struct {
	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float32
}

// Generator produces text from a sequence of chat messages. A leading
// system message, if any, is used as the system instruction.
type Generator interface {
	Complete(ctx context.Context, messages []models.ChatMessage, opts GenerateOptions) (string, error)
}

// CommentSource finds collection units (videos) for a query and fetches
// their comments.
type CommentSource interface {
	Name() string
	SearchSources(ctx context.Context, query string, max int) ([]models.SourceRef, error)
	FetchItems(ctx context.Context, ref models.SourceRef, max int) ([]models.RawItem, error)
}
