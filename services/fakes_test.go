package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dyk-im/Break-Bias/chunker"
	"github.com/dyk-im/Break-Bias/models"
	"github.com/dyk-im/Break-Bias/providers"
	"github.com/dyk-im/Break-Bias/sentiment"
	"github.com/dyk-im/Break-Bias/store"
	"github.com/stretchr/testify/require"
)

// hashEmbedder embeds text as a bag of hashed lower-case words.
type hashEmbedder struct {
	mu   sync.Mutex
	fail bool
}

func (e *hashEmbedder) Name() string { return "hash" }

func (e *hashEmbedder) setFail(fail bool) {
	e.mu.Lock()
	e.fail = fail
	e.mu.Unlock()
}

func (e *hashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	fail := e.fail
	e.mu.Unlock()
	if fail {
		return nil, models.NewProviderError("hash", "embed", texts[0], errors.New("unavailable"))
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, 16)
		for _, word := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(word))
			vec[h.Sum32()%16]++
		}
		vec[15] += 0.5
		out[i] = vec
	}
	return out, nil
}

func (e *hashEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	v, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

// scriptedGenerator answers sentiment requests from keywords and every other
// request with a fixed summary.
type scriptedGenerator struct {
	mu             sync.Mutex
	sentimentCalls int
	otherCalls     int
	lastMessages   []models.ChatMessage
	failOther      bool
	reply          string
}

func (g *scriptedGenerator) Complete(_ context.Context, messages []models.ChatMessage, _ providers.GenerateOptions) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(messages) > 0 && messages[0].Content == sentiment.Instruction {
		g.sentimentCalls++
		text := strings.ToLower(messages[len(messages)-1].Content)
		switch {
		case strings.Contains(text, "great"):
			return "positive: 0.9\nnegative: 0.05\nneutral: 0.05", nil
		case strings.Contains(text, "terrible"):
			return "positive: 0.05\nnegative: 0.9\nneutral: 0.05", nil
		default:
			return "positive: 0.2\nnegative: 0.1\nneutral: 0.7", nil
		}
	}
	g.otherCalls++
	g.lastMessages = append([]models.ChatMessage(nil), messages...)
	if g.failOther {
		return "", models.NewProviderError("scripted", "generate", "", errors.New("quota exceeded"))
	}
	if g.reply != "" {
		return g.reply, nil
	}
	return "People are divided.", nil
}

func (g *scriptedGenerator) calls() (sentimentCalls, otherCalls int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sentimentCalls, g.otherCalls
}

// fakeComments serves fixed videos and comments.
type fakeComments struct {
	mu        sync.Mutex
	videos    map[string][]models.SourceRef
	comments  map[string][]string
	searchErr map[string]error
	fetchErr  map[string]error
}

func newFakeComments() *fakeComments {
	return &fakeComments{
		videos:    make(map[string][]models.SourceRef),
		comments:  make(map[string][]string),
		searchErr: make(map[string]error),
		fetchErr:  make(map[string]error),
	}
}

func (f *fakeComments) Name() string { return "fake" }

func (f *fakeComments) set(topic, videoID string, comments ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.videos[topic] = []models.SourceRef{{ID: videoID, Title: topic + " video"}}
	f.comments[videoID] = comments
}

func (f *fakeComments) SearchSources(_ context.Context, query string, max int) ([]models.SourceRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.searchErr[query]; err != nil {
		return nil, err
	}
	refs := f.videos[query]
	if len(refs) > max {
		refs = refs[:max]
	}
	return refs, nil
}

func (f *fakeComments) FetchItems(_ context.Context, ref models.SourceRef, max int) ([]models.RawItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fetchErr[ref.ID]; err != nil {
		return nil, err
	}
	var items []models.RawItem
	for i, text := range f.comments[ref.ID] {
		if i >= max {
			break
		}
		items = append(items, models.RawItem{
			ID:          fmt.Sprintf("c%d", i),
			Text:        text,
			Author:      fmt.Sprintf("user%d", i),
			Weight:      int64(i),
			PublishedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			SourceRef:   ref,
		})
	}
	return items, nil
}

type testEngine struct {
	index    *store.LocalIndex
	store    *store.EmbeddingStore
	embedder *hashEmbedder
	gen      *scriptedGenerator
	comments *fakeComments
	registry *Registry
	convs    *ConversationStore
	docs     *DocumentFiles
	service  OpinionService
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	index, err := store.NewLocalIndex("")
	require.NoError(t, err)
	docs, err := NewDocumentFiles(t.TempDir())
	require.NoError(t, err)

	e := &testEngine{
		index:    index,
		embedder: &hashEmbedder{},
		gen:      &scriptedGenerator{},
		comments: newFakeComments(),
		registry: NewRegistry(),
		convs:    NewConversationStore(20),
		docs:     docs,
	}
	e.store = store.NewEmbeddingStore(index, e.embedder, 2)
	scorer := sentiment.NewScorer(e.gen, 0)
	docChunker := chunker.New(chunker.WithChunkSize(200), chunker.WithOverlap(20))
	e.service = NewOpinionService(OpinionServiceDeps{
		Store:          e.store,
		Synthesizer:    NewSynthesizer(e.gen, scorer, SynthesizerConfig{}),
		Scorer:         scorer,
		Registry:       e.registry,
		Comments:       e.comments,
		Documents:      docs,
		Conversations:  e.convs,
		DocChunker:     docChunker,
		CommentChunker: docChunker.WithCommentSeparators(),
	})
	return e
}

func (e *testEngine) versions(t *testing.T, sourceID string) []int {
	t.Helper()
	refs, err := e.index.ListBySource(context.Background(), sourceID)
	require.NoError(t, err)
	out := make([]int, len(refs))
	for i, r := range refs {
		out[i] = r.Version
	}
	return out
}
