package store

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/dyk-im/Break-Bias/models"
	"github.com/sirupsen/logrus"
)

// ErrUnsupportedVersion is returned when the index file was written by an
// incompatible format.
var ErrUnsupportedVersion = errors.New("unsupported index version")

// currentFileVersion is the on-disk format version. Increment it on breaking
// changes to localFile.
const currentFileVersion = 1

type localFile struct {
	Version int
	Items   map[string]models.Item
}

// LocalIndex is an in-process brute-force cosine index. With a non-empty
// path every mutation is persisted with gob.
type LocalIndex struct {
	mu    sync.RWMutex
	path  string
	items map[string]models.Item
	log   *logrus.Entry
}

// NewLocalIndex opens the index at path, or starts empty when the file does
// not exist. An empty path keeps the index in memory only.
func NewLocalIndex(path string) (*LocalIndex, error) {
	idx := &LocalIndex{
		path:  path,
		items: make(map[string]models.Item),
		log:   logrus.WithField("component", "local-index"),
	}
	if path == "" {
		return idx, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, fmt.Errorf("opening index file: %w", err)
	}
	defer f.Close()

	var file localFile
	if err := gob.NewDecoder(f).Decode(&file); err != nil {
		return nil, fmt.Errorf("decoding index: %w", err)
	}
	if file.Version != currentFileVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, file.Version, currentFileVersion)
	}
	if file.Items != nil {
		idx.items = file.Items
	}
	idx.log.WithFields(logrus.Fields{"path": path, "items": len(idx.items)}).Info("loaded index")
	return idx, nil
}

// Name returns the backend name.
func (l *LocalIndex) Name() string { return "local" }

func (l *LocalIndex) Upsert(_ context.Context, items []models.Item) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, it := range items {
		if len(it.Embedding) == 0 {
			return fmt.Errorf("item %s has no embedding", it.ID)
		}
	}
	for _, it := range items {
		l.items[it.ID] = cloneItem(it)
	}
	return l.saveLocked()
}

func (l *LocalIndex) Delete(_ context.Context, ids []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range ids {
		delete(l.items, id)
	}
	return l.saveLocked()
}

func (l *LocalIndex) ListBySource(_ context.Context, sourceID string) ([]ItemRef, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var refs []ItemRef
	for _, it := range l.items {
		if it.SourceID == sourceID {
			refs = append(refs, ItemRef{ID: it.ID, Version: it.Version})
		}
	}
	return refs, nil
}

func (l *LocalIndex) Search(_ context.Context, embedding []float32, topK int, filter Filter) ([]models.RetrievalResult, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	results := make([]models.RetrievalResult, 0)
	if topK <= 0 {
		return results, nil
	}
	for _, it := range l.items {
		if !filter.match(it) {
			continue
		}
		results = append(results, models.RetrievalResult{
			Item:  it,
			Score: ScoreFromDistance(CosineDistance(embedding, it.Embedding)),
		})
	}
	sortResults(results)
	if len(results) > topK {
		results = results[:topK]
	}
	for i := range results {
		results[i].Item = cloneItem(results[i].Item)
	}
	return results, nil
}

// cloneItem copies the embedding, metadata and sentiment so the index never
// shares them with callers.
func cloneItem(it models.Item) models.Item {
	it.Embedding = append([]float32(nil), it.Embedding...)
	it.Metadata = maps.Clone(it.Metadata)
	if it.Sentiment != nil {
		v := *it.Sentiment
		it.Sentiment = &v
	}
	return it
}

func (l *LocalIndex) Sources(_ context.Context) ([]models.SourceSummary, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	items := make([]models.Item, 0, len(l.items))
	for _, it := range l.items {
		items = append(items, it)
	}
	return summarize(items), nil
}

func (l *LocalIndex) Count(_ context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items), nil
}

// Close is a no-op; every mutation is already on disk.
func (l *LocalIndex) Close() error { return nil }

// saveLocked writes to a temp file first, then renames for atomicity.
func (l *LocalIndex) saveLocked() error {
	if l.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	tempPath := l.path + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(localFile{Version: currentFileVersion, Items: l.items}); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("encoding index: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("closing file: %w", err)
	}
	if err := os.Rename(tempPath, l.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
