package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyk-im/Break-Bias/models"
	"github.com/dyk-im/Break-Bias/store"
)

// Retriever finds the stored items most similar to a query.
type Retriever struct {
	store *store.EmbeddingStore
}

// NewRetriever creates a Retriever over st.
func NewRetriever(st *store.EmbeddingStore) *Retriever {
	return &Retriever{store: st}
}

// Retrieve embeds query and returns at most topK results, best first. An
// empty index yields an empty slice.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, filter store.Filter) ([]models.RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, models.NewValidationError("query is empty")
	}
	if topK <= 0 {
		return []models.RetrievalResult{}, nil
	}

	embedding, err := r.store.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query text: %w", err)
	}
	return r.store.Search(ctx, embedding, topK, filter)
}
