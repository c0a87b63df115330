package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	"github.com/dyk-im/Break-Bias/models"
	"github.com/sirupsen/logrus"
)

const (
	keySourceID   = "source_id"
	keyOrigin     = "origin_type"
	keyChunkIndex = "chunk_index"
	keyVersion    = "version"
	keyPositive   = "sentiment_positive"
	keyNegative   = "sentiment_negative"
	keyNeutral    = "sentiment_neutral"
	extraPrefix   = "meta_"
)

// ChromaIndex stores items in a Chroma collection using cosine distance.
type ChromaIndex struct {
	client     chromago.Client
	collection chromago.Collection
	log        *logrus.Entry
}

// NewChromaIndex connects to Chroma at baseURL and gets or creates the
// named collection.
func NewChromaIndex(ctx context.Context, baseURL, collectionName string) (*ChromaIndex, error) {
	log := logrus.WithField("component", "chroma")

	client, err := chromago.NewHTTPClient(chromago.WithBaseURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create chroma client: %w", err)
	}

	log.Infof("Getting or creating collection '%s'...", collectionName)
	collection, err := client.GetOrCreateCollection(
		ctx,
		collectionName,
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("description", "opinion analysis items"),
				chromago.NewStringAttribute("hnsw:space", "cosine"),
			),
		),
	)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to get or create collection: %w", err)
	}

	return &ChromaIndex{client: client, collection: collection, log: log}, nil
}

// Name returns the backend name.
func (c *ChromaIndex) Name() string { return "chroma" }

func (c *ChromaIndex) Upsert(ctx context.Context, items []models.Item) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]chromago.DocumentID, len(items))
	texts := make([]string, len(items))
	embs := make([]embeddings.Embedding, len(items))
	metas := make([]chromago.DocumentMetadata, len(items))
	for i, it := range items {
		if len(it.Embedding) == 0 {
			return fmt.Errorf("item %s has no embedding", it.ID)
		}
		ids[i] = chromago.DocumentID(it.ID)
		texts[i] = it.Content
		embs[i] = embeddings.NewEmbeddingFromFloat32(it.Embedding)
		metas[i] = itemMetadata(it)
	}

	err := c.collection.Upsert(ctx,
		chromago.WithIDs(ids...),
		chromago.WithTexts(texts...),
		chromago.WithEmbeddings(embs...),
		chromago.WithMetadatas(metas...),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert records to chromadb: %w", err)
	}
	return nil
}

func (c *ChromaIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	docIDs := make([]chromago.DocumentID, len(ids))
	for i, id := range ids {
		docIDs[i] = chromago.DocumentID(id)
	}
	if err := c.collection.Delete(ctx, chromago.WithIDsDelete(docIDs...)); err != nil {
		return fmt.Errorf("failed to delete records from chromadb: %w", err)
	}
	return nil
}

func (c *ChromaIndex) ListBySource(ctx context.Context, sourceID string) ([]ItemRef, error) {
	results, err := c.collection.Get(ctx, chromago.WithWhereGet(chromago.EqString(keySourceID, sourceID)))
	if err != nil {
		return nil, fmt.Errorf("failed to get records from chromadb: %w", err)
	}
	ids := results.GetIDs()
	metadatas := results.GetMetadatas()

	refs := make([]ItemRef, 0, len(ids))
	for i, id := range ids {
		var meta map[string]interface{}
		if i < len(metadatas) {
			meta = c.metadataMap(string(id), metadatas[i])
		}
		refs = append(refs, ItemRef{ID: string(id), Version: intValue(meta[keyVersion])})
	}
	return refs, nil
}

func (c *ChromaIndex) Search(ctx context.Context, embedding []float32, topK int, filter Filter) ([]models.RetrievalResult, error) {
	results := make([]models.RetrievalResult, 0)
	if topK <= 0 {
		return results, nil
	}
	count, err := c.collection.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count items in collection: %w", err)
	}
	if count == 0 {
		return results, nil
	}
	if topK > int(count) {
		topK = int(count)
	}

	opts := []chromago.CollectionQueryOption{
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(embedding)),
		chromago.WithNResults(topK),
	}
	if filter.SourceID != "" {
		opts = append(opts, chromago.WithWhereQuery(chromago.EqString(keySourceID, filter.SourceID)))
	}
	qr, err := c.collection.Query(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chromadb: %w", err)
	}

	idGroups := qr.GetIDGroups()
	docGroups := qr.GetDocumentsGroups()
	metaGroups := qr.GetMetadatasGroups()
	distGroups := qr.GetDistancesGroups()
	if len(idGroups) == 0 {
		return results, nil
	}
	for i, id := range idGroups[0] {
		var meta map[string]interface{}
		if len(metaGroups) > 0 && i < len(metaGroups[0]) {
			meta = c.metadataMap(string(id), metaGroups[0][i])
		}
		it := itemFromMetadata(string(id), meta)
		if len(docGroups) > 0 && i < len(docGroups[0]) {
			it.Content = docGroups[0][i].ContentString()
		}
		if !filter.match(it) {
			continue
		}
		dist := 1.0
		if len(distGroups) > 0 && i < len(distGroups[0]) {
			dist = float64(distGroups[0][i])
		}
		results = append(results, models.RetrievalResult{Item: it, Score: ScoreFromDistance(dist)})
	}
	sortResults(results)
	return results, nil
}

func (c *ChromaIndex) Sources(ctx context.Context) ([]models.SourceSummary, error) {
	results, err := c.collection.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents from chromadb: %w", err)
	}
	ids := results.GetIDs()
	metadatas := results.GetMetadatas()

	items := make([]models.Item, 0, len(ids))
	for i, id := range ids {
		var meta map[string]interface{}
		if i < len(metadatas) {
			meta = c.metadataMap(string(id), metadatas[i])
		}
		it := itemFromMetadata(string(id), meta)
		if it.SourceID == "" {
			continue
		}
		items = append(items, it)
	}
	return summarize(items), nil
}

func (c *ChromaIndex) Count(ctx context.Context) (int, error) {
	count, err := c.collection.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count items in collection: %w", err)
	}
	return int(count), nil
}

// Close releases the client's resources.
func (c *ChromaIndex) Close() error {
	return c.client.Close()
}

// metadataMap converts Chroma metadata to a plain map. DocumentMetadata has
// no public accessor for all values, so it goes through JSON.
func (c *ChromaIndex) metadataMap(id string, md chromago.DocumentMetadata) map[string]interface{} {
	if md == nil {
		return nil
	}
	var out map[string]interface{}
	jsonBytes, err := json.Marshal(md)
	if err == nil {
		err = json.Unmarshal(jsonBytes, &out)
	}
	if err != nil {
		c.log.WithError(err).WithField("id", id).Warn("could not decode metadata")
		return nil
	}
	return out
}

func itemMetadata(it models.Item) chromago.DocumentMetadata {
	attrs := []*chromago.MetaAttribute{
		chromago.NewStringAttribute(keySourceID, it.SourceID),
		chromago.NewStringAttribute(keyOrigin, string(it.Origin)),
		chromago.NewIntAttribute(keyChunkIndex, int64(it.ChunkIndex)),
		chromago.NewIntAttribute(keyVersion, int64(it.Version)),
	}
	if it.Sentiment != nil {
		attrs = append(attrs,
			chromago.NewFloatAttribute(keyPositive, it.Sentiment.Positive),
			chromago.NewFloatAttribute(keyNegative, it.Sentiment.Negative),
			chromago.NewFloatAttribute(keyNeutral, it.Sentiment.Neutral),
		)
	}
	keys := make([]string, 0, len(it.Metadata))
	for k := range it.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, chromago.NewStringAttribute(extraPrefix+k, it.Metadata[k]))
	}
	return chromago.NewDocumentMetadata(attrs...)
}

// itemFromMetadata rebuilds an item (without content or embedding) from a
// decoded metadata map.
func itemFromMetadata(id string, meta map[string]interface{}) models.Item {
	it := models.Item{
		ID:         id,
		SourceID:   stringValue(meta[keySourceID]),
		Origin:     models.OriginType(stringValue(meta[keyOrigin])),
		ChunkIndex: intValue(meta[keyChunkIndex]),
		Version:    intValue(meta[keyVersion]),
	}
	pos, okP := floatValue(meta[keyPositive])
	neg, okN := floatValue(meta[keyNegative])
	neu, okU := floatValue(meta[keyNeutral])
	if okP && okN && okU {
		it.Sentiment = &models.SentimentVector{Positive: pos, Negative: neg, Neutral: neu}
	}
	for k, v := range meta {
		if name, ok := strings.CutPrefix(k, extraPrefix); ok {
			if it.Metadata == nil {
				it.Metadata = map[string]string{}
			}
			it.Metadata[name] = stringValue(v)
		}
	}
	return it
}

func stringValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func intValue(v interface{}) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	case int64:
		return int(t)
	case json.Number:
		n, _ := t.Int64()
		return int(n)
	case string:
		n, _ := strconv.Atoi(t)
		return n
	}
	return 0
}

func floatValue(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	}
	return 0, false
}
