package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dyk-im/Break-Bias/models"
	"github.com/dyk-im/Break-Bias/providers"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultBatchSize is the number of texts sent per embedding call.
	DefaultBatchSize = 32

	removeAttempts = 3
)

// EmbeddingStore embeds items and keeps them in an Index.
type EmbeddingStore struct {
	index     Index
	embedder  providers.Embedder
	batchSize int
	backoff   func(attempt int) time.Duration
	log       *logrus.Entry
}

// NewEmbeddingStore creates a store over index using embedder for items that
// arrive without a vector.
func NewEmbeddingStore(index Index, embedder providers.Embedder, batchSize int) *EmbeddingStore {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &EmbeddingStore{
		index:     index,
		embedder:  embedder,
		batchSize: batchSize,
		backoff: func(attempt int) time.Duration {
			return time.Duration(100<<attempt) * time.Millisecond
		},
		log: logrus.WithField("component", "store"),
	}
}

// Add embeds items lacking an embedding, batch by batch, and upserts them.
// Every batch is embedded before anything is written, so an embedding
// failure leaves the index untouched.
func (s *EmbeddingStore) Add(ctx context.Context, items ...models.Item) error {
	items = append([]models.Item(nil), items...)
	for start := 0; start < len(items); start += s.batchSize {
		end := min(start+s.batchSize, len(items))
		if err := s.embedBatch(ctx, items[start:end]); err != nil {
			return err
		}
	}

	for start := 0; start < len(items); start += s.batchSize {
		end := min(start+s.batchSize, len(items))
		if err := s.index.Upsert(ctx, items[start:end]); err != nil {
			return fmt.Errorf("failed to store items: %w", err)
		}
	}
	return nil
}

func (s *EmbeddingStore) embedBatch(ctx context.Context, batch []models.Item) error {
	var texts []string
	var missing []int
	for i, it := range batch {
		if len(it.Embedding) == 0 {
			texts = append(texts, it.Content)
			missing = append(missing, i)
		}
	}
	if len(texts) == 0 {
		return nil
	}
	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}
	if len(vecs) != len(texts) {
		return models.NewProviderError(s.embedder.Name(), "embed", texts[0],
			fmt.Errorf("got %d embeddings for %d inputs", len(vecs), len(texts)))
	}
	for j, i := range missing {
		batch[i].Embedding = vecs[j]
	}
	return nil
}

// Remove deletes items by id. Unknown ids are ignored.
func (s *EmbeddingStore) Remove(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.index.Delete(ctx, ids); err != nil {
		return fmt.Errorf("failed to remove items: %w", err)
	}
	return nil
}

// RemoveBySource deletes every item of the source and returns how many were
// removed. Deletion is retried; items that survive every attempt are
// reported as a *models.PartialFailure.
func (s *EmbeddingStore) RemoveBySource(ctx context.Context, sourceID string) (int, error) {
	return s.removeMatching(ctx, sourceID, func(ItemRef) bool { return true })
}

// RemoveStale deletes items of the source whose version is not keepVersion.
func (s *EmbeddingStore) RemoveStale(ctx context.Context, sourceID string, keepVersion int) (int, error) {
	return s.removeMatching(ctx, sourceID, func(r ItemRef) bool { return r.Version != keepVersion })
}

// RemoveVersion deletes items of the source written with version.
func (s *EmbeddingStore) RemoveVersion(ctx context.Context, sourceID string, version int) (int, error) {
	return s.removeMatching(ctx, sourceID, func(r ItemRef) bool { return r.Version == version })
}

func (s *EmbeddingStore) removeMatching(ctx context.Context, sourceID string, match func(ItemRef) bool) (int, error) {
	removed := 0
	var lastErr error
	for attempt := 0; attempt < removeAttempts; attempt++ {
		ids, err := s.matchingIDs(ctx, sourceID, match)
		if err == nil && len(ids) == 0 {
			return removed, nil
		}
		if err == nil {
			if err = s.index.Delete(ctx, ids); err == nil {
				removed += len(ids)
				continue
			}
		}
		lastErr = err
		s.log.WithError(err).WithFields(logrus.Fields{"source_id": sourceID, "attempt": attempt + 1}).Warn("remove failed")

		select {
		case <-ctx.Done():
			return removed, ctx.Err()
		case <-time.After(s.backoff(attempt)):
		}
	}

	remaining, err := s.matchingIDs(ctx, sourceID, match)
	if err != nil {
		return removed, fmt.Errorf("failed to list items of %s: %w", sourceID, err)
	}
	if len(remaining) == 0 {
		return removed, nil
	}
	return removed, &models.PartialFailure{
		Op:        "remove " + sourceID,
		Succeeded: removed,
		Failed:    len(remaining),
		Err:       lastErr,
	}
}

func (s *EmbeddingStore) matchingIDs(ctx context.Context, sourceID string, match func(ItemRef) bool) ([]string, error) {
	refs, err := s.index.ListBySource(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, r := range refs {
		if match(r) {
			ids = append(ids, r.ID)
		}
	}
	return ids, nil
}

// Search returns at most topK results ordered by descending score. An empty
// store yields an empty slice.
func (s *EmbeddingStore) Search(ctx context.Context, embedding []float32, topK int, filter Filter) ([]models.RetrievalResult, error) {
	results, err := s.index.Search(ctx, embedding, topK, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}
	if results == nil {
		results = []models.RetrievalResult{}
	}
	return results, nil
}

// Embed exposes the store's embedder for query vectors.
func (s *EmbeddingStore) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.embedder.EmbedOne(ctx, text)
}

// Stats reports item and source counts.
func (s *EmbeddingStore) Stats(ctx context.Context) (models.StoreStats, error) {
	count, err := s.index.Count(ctx)
	if err != nil {
		return models.StoreStats{}, err
	}
	sources, err := s.index.Sources(ctx)
	if err != nil {
		return models.StoreStats{}, err
	}
	return models.StoreStats{TotalItems: count, TotalSources: len(sources), Backend: s.index.Name()}, nil
}

// Sources lists the distinct sources present in the index.
func (s *EmbeddingStore) Sources(ctx context.Context) ([]models.SourceSummary, error) {
	return s.index.Sources(ctx)
}

// Close closes the underlying index.
func (s *EmbeddingStore) Close() error {
	return s.index.Close()
}
