package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dyk-im/Break-Bias/chunker"
	"github.com/dyk-im/Break-Bias/models"
	"github.com/dyk-im/Break-Bias/providers"
	"github.com/dyk-im/Break-Bias/sentiment"
	"github.com/dyk-im/Break-Bias/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// OpinionService interface defines the engine operations.
type OpinionService interface {
	IngestDocument(ctx context.Context, data []byte, filename string) (string, error)
	IngestDocumentWithID(ctx context.Context, id string, data []byte, filename string) error
	IngestTopic(ctx context.Context, topic string, maxSources, maxItemsPerSource int) (*models.IngestResult, error)
	IngestSingleSource(ctx context.Context, ref models.SourceRef, maxItems int) (*models.IngestResult, error)
	QueryOpinion(ctx context.Context, q models.OpinionQuery) (*models.OpinionResponse, error)
	DeleteSource(ctx context.Context, id string) (bool, error)
	ReindexAll(ctx context.Context) (*models.ReindexReport, error)
	ListSources(ctx context.Context, kind models.OriginType) []models.Source
	GetSource(ctx context.Context, id string) (models.Source, error)
	Stats(ctx context.Context) (*models.SystemStats, error)
	Restore(ctx context.Context) (int, error)
}

// OpinionServiceConfig holds the engine's tunables.
type OpinionServiceConfig struct {
	TopK              int
	ScoreWorkers      int
	ReindexWorkers    int
	MaxSources        int
	MaxItemsPerSource int
}

// OpinionServiceDeps are the collaborators injected from main.
type OpinionServiceDeps struct {
	Store          *store.EmbeddingStore
	Retriever      *Retriever
	Synthesizer    *Synthesizer
	Scorer         *sentiment.Scorer
	Registry       *Registry
	Comments       providers.CommentSource
	Documents      *DocumentFiles
	Conversations  *ConversationStore
	DocChunker     *chunker.Chunker
	CommentChunker *chunker.Chunker
	Config         OpinionServiceConfig
}

// opinionServiceImpl holds the dependencies it needs to do its job
type opinionServiceImpl struct {
	store          *store.EmbeddingStore
	retriever      *Retriever
	synth          *Synthesizer
	scorer         *sentiment.Scorer
	registry       *Registry
	comments       providers.CommentSource
	documents      *DocumentFiles
	conversations  *ConversationStore
	docChunker     *chunker.Chunker
	commentChunker *chunker.Chunker
	cfg            OpinionServiceConfig
	locks          *KeyedMutex
	log            *logrus.Entry
}

// NewOpinionService creates a new opinion service instance
func NewOpinionService(deps OpinionServiceDeps) OpinionService {
	cfg := deps.Config
	if cfg.TopK <= 0 {
		cfg.TopK = 20
	}
	if cfg.ScoreWorkers <= 0 {
		cfg.ScoreWorkers = 4
	}
	if cfg.ReindexWorkers <= 0 {
		cfg.ReindexWorkers = 2
	}
	if cfg.MaxSources <= 0 {
		cfg.MaxSources = 10
	}
	if cfg.MaxItemsPerSource <= 0 {
		cfg.MaxItemsPerSource = 100
	}
	registry := deps.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	docChunker := deps.DocChunker
	if docChunker == nil {
		docChunker = chunker.New()
	}
	commentChunker := deps.CommentChunker
	if commentChunker == nil {
		commentChunker = docChunker.WithCommentSeparators()
	}
	retriever := deps.Retriever
	if retriever == nil {
		retriever = NewRetriever(deps.Store)
	}
	return &opinionServiceImpl{
		store:          deps.Store,
		retriever:      retriever,
		synth:          deps.Synthesizer,
		scorer:         deps.Scorer,
		registry:       registry,
		comments:       deps.Comments,
		documents:      deps.Documents,
		conversations:  deps.Conversations,
		docChunker:     docChunker,
		commentChunker: commentChunker,
		cfg:            cfg,
		locks:          NewKeyedMutex(),
		log:            logrus.WithField("component", "service"),
	}
}

// IngestDocument stores a new document under a fresh id and returns the id.
func (s *opinionServiceImpl) IngestDocument(ctx context.Context, data []byte, filename string) (string, error) {
	id := uuid.New().String()
	if err := s.IngestDocumentWithID(ctx, id, data, filename); err != nil {
		return id, err
	}
	return id, nil
}

// IngestDocumentWithID (re)ingests a document under a caller-chosen id.
func (s *opinionServiceImpl) IngestDocumentWithID(ctx context.Context, id string, data []byte, filename string) error {
	if strings.TrimSpace(id) == "" {
		return models.NewValidationError("source id is empty")
	}
	text, err := ExtractText(data, filename)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(id)
	defer unlock()
	return s.ingestDocument(ctx, id, data, text, filename)
}

func (s *opinionServiceImpl) ingestDocument(ctx context.Context, id string, data []byte, text, filename string) error {
	log := s.log.WithFields(logrus.Fields{"source_id": id, "filename": filename})
	log.Info("ingesting document")

	s.registry.Register(id, models.OriginDocument, filename, models.SourceParams{Filename: filename})
	version, err := s.registry.Begin(id)
	if err != nil {
		return err
	}

	if s.documents != nil {
		if err := s.documents.Save(id, filename, data); err != nil {
			return s.fail(id, err)
		}
	}

	chunks, err := s.docChunker.Split(text)
	if err != nil {
		return s.fail(id, fmt.Errorf("failed to split %s: %w", filename, err))
	}
	if len(chunks) == 0 {
		return s.fail(id, models.NewValidationError("%s has no meaningful content", filename))
	}
	log.Infof("split into %d chunks", len(chunks))

	hash := contentHash(data)
	items := make([]models.Item, len(chunks))
	for i, chunk := range chunks {
		items[i] = models.Item{
			ID:         fmt.Sprintf("%s-chunk%d", id, i),
			Content:    chunk,
			SourceID:   id,
			Origin:     models.OriginDocument,
			ChunkIndex: i,
			Version:    version,
			Metadata: map[string]string{
				models.MetaFilename:    filename,
				models.MetaContentHash: hash,
			},
		}
	}

	if err := s.storeItems(ctx, id, version, items); err != nil {
		return s.fail(id, err)
	}
	if err := s.registry.Complete(id, len(items), len(items), hash, int64(len(data))); err != nil {
		return err
	}
	log.WithField("version", version).Info("document ingested")
	return nil
}

// IngestTopic searches videos for topic and indexes their comments as one source.
func (s *opinionServiceImpl) IngestTopic(ctx context.Context, topic string, maxSources, maxItemsPerSource int) (*models.IngestResult, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, models.NewValidationError("topic is empty")
	}
	if maxSources <= 0 {
		maxSources = s.cfg.MaxSources
	}
	if maxItemsPerSource <= 0 {
		maxItemsPerSource = s.cfg.MaxItemsPerSource
	}

	unlock := s.locks.Lock(topic)
	defer unlock()
	return s.ingestTopic(ctx, topic, maxSources, maxItemsPerSource)
}

func (s *opinionServiceImpl) ingestTopic(ctx context.Context, topic string, maxSources, maxItemsPerSource int) (*models.IngestResult, error) {
	if s.comments == nil {
		return nil, fmt.Errorf("no comment source configured")
	}
	s.registry.Register(topic, models.OriginComment, topic, models.SourceParams{
		Topic:             topic,
		MaxSources:        maxSources,
		MaxItemsPerSource: maxItemsPerSource,
	})
	version, err := s.registry.Begin(topic)
	if err != nil {
		return nil, err
	}

	refs, err := s.comments.SearchSources(ctx, topic, maxSources)
	if err != nil {
		return nil, s.fail(topic, err)
	}
	s.log.WithFields(logrus.Fields{"source_id": topic, "videos": len(refs)}).Info("collecting topic comments")
	return s.collect(ctx, topic, models.CollectionTopic, version, refs, maxItemsPerSource)
}

// IngestSingleSource indexes the comments of one video as its own source.
func (s *opinionServiceImpl) IngestSingleSource(ctx context.Context, ref models.SourceRef, maxItems int) (*models.IngestResult, error) {
	ref.ID = strings.TrimSpace(ref.ID)
	if ref.ID == "" {
		return nil, models.NewValidationError("video id is empty")
	}
	if maxItems <= 0 {
		maxItems = s.cfg.MaxItemsPerSource
	}

	unlock := s.locks.Lock(ref.ID)
	defer unlock()
	return s.ingestSingleSource(ctx, ref, maxItems)
}

func (s *opinionServiceImpl) ingestSingleSource(ctx context.Context, ref models.SourceRef, maxItems int) (*models.IngestResult, error) {
	if s.comments == nil {
		return nil, fmt.Errorf("no comment source configured")
	}
	if ref.Title == "" {
		ref.Title = "video " + ref.ID
	}
	s.registry.Register(ref.ID, models.OriginComment, ref.Title, models.SourceParams{
		VideoID:           ref.ID,
		MaxItemsPerSource: maxItems,
	})
	version, err := s.registry.Begin(ref.ID)
	if err != nil {
		return nil, err
	}
	return s.collect(ctx, ref.ID, models.CollectionVideo, version, []models.SourceRef{ref}, maxItems)
}

// collect fetches, cleans, chunks, scores and stores the comments of refs
// under sourceID. A video whose fetch fails is reported, not fatal, unless
// every video failed.
func (s *opinionServiceImpl) collect(ctx context.Context, sourceID, collection string, version int, refs []models.SourceRef, maxItems int) (*models.IngestResult, error) {
	result := &models.IngestResult{SourceID: sourceID}
	var items []models.Item
	var lastErr error
	seen := make(map[string]bool)

	for _, ref := range refs {
		raw, err := s.comments.FetchItems(ctx, ref, maxItems)
		if err != nil {
			if ctx.Err() != nil {
				return nil, s.fail(sourceID, ctx.Err())
			}
			s.log.WithError(err).WithField("video_id", ref.ID).Warn("failed to fetch comments")
			result.FailedSources = append(result.FailedSources, ref.ID)
			lastErr = err
			continue
		}
		for _, c := range raw {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true

			text := chunker.CleanComment(c.Text)
			if text == "" || !s.commentChunker.Meaningful(text) {
				continue
			}
			chunks, err := s.commentChunker.Split(text)
			if err != nil {
				s.log.WithError(err).WithField("comment_id", c.ID).Warn("failed to split comment")
				continue
			}
			if len(chunks) == 0 {
				continue
			}
			result.CollectedCount++
			for i, chunk := range chunks {
				items = append(items, commentItem(sourceID, collection, version, c, ref, i, chunk))
			}
		}
	}

	if len(refs) > 0 && len(result.FailedSources) == len(refs) {
		return result, s.fail(sourceID, &models.PartialFailure{
			Op:     "collect " + sourceID,
			Failed: len(refs),
			Err:    lastErr,
		})
	}

	if err := s.storeItems(ctx, sourceID, version, items); err != nil {
		return result, s.fail(sourceID, err)
	}
	result.ChunkCount = len(items)
	if err := s.registry.Complete(sourceID, len(items), result.CollectedCount, "", 0); err != nil {
		return result, err
	}
	s.log.WithFields(logrus.Fields{
		"source_id": sourceID,
		"version":   version,
		"collected": result.CollectedCount,
		"chunks":    result.ChunkCount,
		"failed":    len(result.FailedSources),
	}).Info("comments ingested")
	return result, nil
}

func commentItem(sourceID, collection string, version int, c models.RawItem, ref models.SourceRef, index int, chunk string) models.Item {
	meta := map[string]string{
		models.MetaAuthor:     c.Author,
		models.MetaLikeCount:  strconv.FormatInt(c.Weight, 10),
		models.MetaVideoID:    ref.ID,
		models.MetaVideoTitle: ref.Title,
		models.MetaCommentID:  c.ID,
		models.MetaCollection: collection,
	}
	if !c.PublishedAt.IsZero() {
		meta[models.MetaPublishedAt] = c.PublishedAt.UTC().Format(time.RFC3339)
	}
	return models.Item{
		ID:         fmt.Sprintf("%s:%s:%d", sourceID, c.ID, index),
		Content:    chunk,
		SourceID:   sourceID,
		Origin:     models.OriginComment,
		ChunkIndex: index,
		Version:    version,
		Metadata:   meta,
	}
}

// storeItems scores and writes items of the new version, then drops every
// item of older versions. On a write failure the items carrying the new
// version are removed again, leaving only the previous version behind.
func (s *opinionServiceImpl) storeItems(ctx context.Context, sourceID string, version int, items []models.Item) error {
	if len(items) > 0 {
		texts := make([]string, len(items))
		for i, it := range items {
			texts[i] = it.Content
		}
		if s.scorer != nil {
			for i, v := range s.scorer.ScoreAll(ctx, texts, s.cfg.ScoreWorkers) {
				items[i].Sentiment = &v
			}
		}

		if err := s.store.Add(ctx, items...); err != nil {
			if _, rerr := s.store.RemoveVersion(ctx, sourceID, version); rerr != nil {
				s.log.WithError(rerr).WithField("source_id", sourceID).Warn("failed to roll back partial write")
			}
			return err
		}
	}

	removed, err := s.store.RemoveStale(ctx, sourceID, version)
	if err != nil {
		var pf *models.PartialFailure
		if !errors.As(err, &pf) {
			return err
		}
		s.log.WithError(err).WithField("source_id", sourceID).Warn("stale items remain")
	}
	if removed > 0 {
		s.log.WithFields(logrus.Fields{"source_id": sourceID, "removed": removed}).Debug("removed stale items")
	}
	return nil
}

func (s *opinionServiceImpl) fail(id string, cause error) error {
	if err := s.registry.Fail(id, cause); err != nil {
		s.log.WithError(err).WithField("source_id", id).Warn("could not mark source failed")
	}
	s.log.WithError(cause).WithField("source_id", id).Error("ingestion failed")
	return cause
}

// QueryOpinion retrieves evidence and synthesises an opinion summary. A
// retrieval failure yields a fixed explanation rather than an error.
func (s *opinionServiceImpl) QueryOpinion(ctx context.Context, q models.OpinionQuery) (*models.OpinionResponse, error) {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return nil, models.NewValidationError("query is empty")
	}
	topK := q.TopK
	if topK <= 0 {
		topK = s.cfg.TopK
	}
	filter := store.Filter{SourceID: strings.TrimSpace(q.Topic)}

	evidence, err := s.retriever.Retrieve(ctx, q.Query, topK, filter)
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			return nil, err
		}
		s.log.WithError(err).WithField("query", q.Query).Warn("retrieval failed")
		return &models.OpinionResponse{
			Text:      retrievalUnavailableResponse(q.Query),
			Aggregate: models.EmptyAggregate(),
			Evidence:  []models.RetrievalResult{},
		}, nil
	}

	text, agg := s.synth.Synthesize(ctx, q.Query, evidence, q.Detailed)
	return &models.OpinionResponse{Text: text, Aggregate: agg, Evidence: evidence}, nil
}

// DeleteSource removes every item of the source and forgets it. It reports
// false for an unknown source.
func (s *opinionServiceImpl) DeleteSource(ctx context.Context, id string) (bool, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	src, known := s.registry.Get(id)
	removed, err := s.store.RemoveBySource(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete source %s: %w", id, err)
	}
	if !known && removed == 0 {
		return false, nil
	}
	if known && src.Kind == models.OriginDocument && s.documents != nil {
		if err := s.documents.Delete(id, src.Params.Filename); err != nil {
			s.log.WithError(err).WithField("source_id", id).Warn("could not delete stored document")
		}
	}
	s.registry.Delete(id)
	s.log.WithFields(logrus.Fields{"source_id": id, "removed": removed}).Info("source deleted")
	return true, nil
}

// ReindexAll re-ingests every known source. Sources are processed
// independently; failures are reported per source.
func (s *opinionServiceImpl) ReindexAll(ctx context.Context) (*models.ReindexReport, error) {
	sources := s.registry.List("")
	report := &models.ReindexReport{Reindexed: []string{}, Failed: map[string]string{}}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.ReindexWorkers)
	for _, src := range sources {
		g.Go(func() error {
			err := s.reindexSource(gctx, src)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed[src.ID] = err.Error()
				return nil
			}
			report.Reindexed = append(report.Reindexed, src.ID)
			return nil
		})
	}
	_ = g.Wait()

	s.log.WithFields(logrus.Fields{"reindexed": len(report.Reindexed), "failed": len(report.Failed)}).Info("reindex finished")
	return report, ctx.Err()
}

func (s *opinionServiceImpl) reindexSource(ctx context.Context, src models.Source) error {
	unlock := s.locks.Lock(src.ID)
	defer unlock()

	switch {
	case src.Kind == models.OriginDocument:
		if s.documents == nil {
			return fmt.Errorf("no document storage configured")
		}
		data, err := s.documents.Load(src.ID, src.Params.Filename)
		if err != nil {
			return s.fail(src.ID, err)
		}
		text, err := ExtractText(data, src.Params.Filename)
		if err != nil {
			return s.fail(src.ID, err)
		}
		return s.ingestDocument(ctx, src.ID, data, text, src.Params.Filename)
	case src.Params.VideoID != "":
		ref := models.SourceRef{ID: src.Params.VideoID, Title: src.Title}
		_, err := s.ingestSingleSource(ctx, ref, orDefault(src.Params.MaxItemsPerSource, s.cfg.MaxItemsPerSource))
		return err
	default:
		topic := src.Params.Topic
		if topic == "" {
			topic = src.ID
		}
		_, err := s.ingestTopic(ctx, topic,
			orDefault(src.Params.MaxSources, s.cfg.MaxSources),
			orDefault(src.Params.MaxItemsPerSource, s.cfg.MaxItemsPerSource))
		return err
	}
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// ListSources returns known sources of kind ("" for all), oldest first.
func (s *opinionServiceImpl) ListSources(_ context.Context, kind models.OriginType) []models.Source {
	return s.registry.List(kind)
}

// GetSource returns one source or an error wrapping models.ErrNotFound.
func (s *opinionServiceImpl) GetSource(_ context.Context, id string) (models.Source, error) {
	src, ok := s.registry.Get(id)
	if !ok {
		return models.Source{}, fmt.Errorf("source %s: %w", id, models.ErrNotFound)
	}
	return src, nil
}

// Stats reports store and registry counts.
func (s *opinionServiceImpl) Stats(ctx context.Context) (*models.SystemStats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read store stats: %w", err)
	}
	stats := &models.SystemStats{
		Store:     st,
		Documents: len(s.registry.List(models.OriginDocument)),
		Topics:    len(s.registry.List(models.OriginComment)),
	}
	if s.conversations != nil {
		stats.Conversations = s.conversations.Count()
	}
	return stats, nil
}

// Restore registers the sources already present in the index.
func (s *opinionServiceImpl) Restore(ctx context.Context) (int, error) {
	summaries, err := s.store.Sources(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list indexed sources: %w", err)
	}
	n := s.registry.Restore(summaries)
	s.log.WithField("sources", n).Info("registry restored from index")
	return n, nil
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
