package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dyk-im/Break-Bias/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	mu      sync.Mutex
	batches [][]string
	fail    bool
	// failAfter makes every call after that many successful batches fail.
	failAfter int
}

func (e *countingEmbedder) Name() string { return "counting" }

func (e *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail || (e.failAfter > 0 && len(e.batches) >= e.failAfter) {
		return nil, models.NewProviderError("counting", "embed", texts[0], errors.New("down"))
	}
	e.batches = append(e.batches, texts)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (e *countingEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	v, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

// flakyIndex fails the first failures Delete calls.
type flakyIndex struct {
	*LocalIndex
	failures int
	calls    int
}

func (f *flakyIndex) Delete(ctx context.Context, ids []string) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("transient")
	}
	return f.LocalIndex.Delete(ctx, ids)
}

func newTestStore(t *testing.T, idx Index, emb *countingEmbedder) *EmbeddingStore {
	t.Helper()
	s := NewEmbeddingStore(idx, emb, 2)
	s.backoff = func(int) time.Duration { return time.Millisecond }
	return s
}

func TestEmbeddingStore_AddBatchesOnlyMissing(t *testing.T) {
	ctx := context.Background()
	idx, err := NewLocalIndex("")
	require.NoError(t, err)
	emb := &countingEmbedder{}
	s := newTestStore(t, idx, emb)

	require.NoError(t, s.Add(ctx,
		item("a", "s1", 1),
		item("b", "s1", 1, 9, 9),
		item("c", "s1", 1),
		item("d", "s1", 1),
	))

	assert.Equal(t, [][]string{{"content of a"}, {"content of c", "content of d"}}, emb.batches)
	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StoreStats{TotalItems: 4, TotalSources: 1, Backend: "local"}, stats)
}

func TestEmbeddingStore_AddPropagatesProviderError(t *testing.T) {
	idx, err := NewLocalIndex("")
	require.NoError(t, err)
	s := newTestStore(t, idx, &countingEmbedder{fail: true})

	err = s.Add(context.Background(), item("a", "s1", 1))
	assert.ErrorIs(t, err, models.ErrProvider)

	n, _ := idx.Count(context.Background())
	assert.Zero(t, n)
}

func TestEmbeddingStore_AddEmbedsEverythingBeforeWriting(t *testing.T) {
	ctx := context.Background()
	idx, err := NewLocalIndex("")
	require.NoError(t, err)
	s := newTestStore(t, idx, &countingEmbedder{})
	require.NoError(t, s.Add(ctx, item("a", "s1", 1), item("b", "s1", 1)))

	// The second batch fails to embed; the first must not have been written.
	s.embedder = &countingEmbedder{failAfter: 1}
	err = s.Add(ctx, item("a", "s1", 2), item("b", "s1", 2), item("c", "s1", 2))
	assert.ErrorIs(t, err, models.ErrProvider)

	refs, err := idx.ListBySource(ctx, "s1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []ItemRef{{ID: "a", Version: 1}, {ID: "b", Version: 1}}, refs)
}

func TestEmbeddingStore_RemoveVersion(t *testing.T) {
	ctx := context.Background()
	idx, err := NewLocalIndex("")
	require.NoError(t, err)
	s := newTestStore(t, idx, &countingEmbedder{})
	require.NoError(t, s.Add(ctx, item("a", "s1", 1), item("b", "s1", 2), item("c", "s1", 2), item("d", "s2", 2)))

	removed, err := s.RemoveVersion(ctx, "s1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	refs, err := idx.ListBySource(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []ItemRef{{ID: "a", Version: 1}}, refs)
	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestEmbeddingStore_RemoveBySource(t *testing.T) {
	ctx := context.Background()
	idx, err := NewLocalIndex("")
	require.NoError(t, err)
	s := newTestStore(t, idx, &countingEmbedder{})
	require.NoError(t, s.Add(ctx, item("a", "s1", 1), item("b", "s1", 1), item("c", "s2", 1)))

	removed, err := s.RemoveBySource(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	results, err := s.Search(ctx, []float32{1, 1}, 10, Filter{SourceID: "s1"})
	require.NoError(t, err)
	assert.Empty(t, results)

	removed, err = s.RemoveBySource(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestEmbeddingStore_RemoveStaleKeepsCurrentVersion(t *testing.T) {
	ctx := context.Background()
	idx, err := NewLocalIndex("")
	require.NoError(t, err)
	s := newTestStore(t, idx, &countingEmbedder{})
	require.NoError(t, s.Add(ctx, item("old-0", "s1", 1), item("old-1", "s1", 1), item("new-0", "s1", 2)))

	removed, err := s.RemoveStale(ctx, "s1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	refs, err := idx.ListBySource(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []ItemRef{{ID: "new-0", Version: 2}}, refs)
}

func TestEmbeddingStore_RemoveRetriesThenReportsPartialFailure(t *testing.T) {
	ctx := context.Background()
	local, err := NewLocalIndex("")
	require.NoError(t, err)

	t.Run("recovers after transient failures", func(t *testing.T) {
		idx := &flakyIndex{LocalIndex: local, failures: 2}
		s := newTestStore(t, idx, &countingEmbedder{})
		require.NoError(t, s.Add(ctx, item("a", "s1", 1)))

		removed, err := s.RemoveBySource(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, 1, removed)
		assert.Equal(t, 3, idx.calls)
	})

	t.Run("gives up after three attempts", func(t *testing.T) {
		idx := &flakyIndex{LocalIndex: local, failures: 100}
		s := newTestStore(t, idx, &countingEmbedder{})
		require.NoError(t, s.Add(ctx, item("x", "s9", 1), item("y", "s9", 1)))

		_, err := s.RemoveBySource(ctx, "s9")
		var pf *models.PartialFailure
		require.ErrorAs(t, err, &pf)
		assert.Equal(t, 2, pf.Failed)
		assert.Equal(t, 3, idx.calls)
	})
}
