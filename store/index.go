// Package store keeps embedded items in a vector index and answers
// nearest-neighbour queries over them.
package store

import (
	"context"
	"math"
	"sort"

	"github.com/dyk-im/Break-Bias/models"
)

// Filter narrows a search. The zero value matches everything.
type Filter struct {
	SourceID string
	Origin   models.OriginType
}

func (f Filter) match(it models.Item) bool {
	if f.SourceID != "" && it.SourceID != f.SourceID {
		return false
	}
	if f.Origin != "" && it.Origin != f.Origin {
		return false
	}
	return true
}

// ItemRef is the identity and version of a stored item.
type ItemRef struct {
	ID      string
	Version int
}

// Index is a vector index backend. Items passed to Upsert carry their
// embeddings; an existing id is replaced.
type Index interface {
	Name() string
	Upsert(ctx context.Context, items []models.Item) error
	Delete(ctx context.Context, ids []string) error
	ListBySource(ctx context.Context, sourceID string) ([]ItemRef, error)
	Search(ctx context.Context, embedding []float32, topK int, filter Filter) ([]models.RetrievalResult, error)
	Sources(ctx context.Context) ([]models.SourceSummary, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// ScoreFromDistance maps a cosine distance to a similarity in [0,1].
func ScoreFromDistance(d float64) float64 {
	if math.IsNaN(d) || d < 0 {
		d = 0
	}
	if d > 1 {
		d = 1
	}
	return 1 - d
}

// CosineDistance returns 1 - cos(a, b). Zero vectors are at distance 1.
func CosineDistance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// sortResults orders by descending score, breaking ties by id.
func sortResults(results []models.RetrievalResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Item.ID < results[j].Item.ID
	})
}

func summarize(items []models.Item) []models.SourceSummary {
	byID := map[string]*models.SourceSummary{}
	var order []string
	for _, it := range items {
		s, ok := byID[it.SourceID]
		if !ok {
			s = &models.SourceSummary{SourceID: it.SourceID, Origin: it.Origin, Version: it.Version}
			byID[it.SourceID] = s
			order = append(order, it.SourceID)
		}
		s.ItemCount++
		if it.Version > s.Version {
			s.Version = it.Version
		}
		if s.Title == "" {
			s.Title = titleOf(it)
		}
		if s.Collection == "" {
			s.Collection = it.Metadata[models.MetaCollection]
		}
		if s.ContentHash == "" {
			s.ContentHash = it.Metadata[models.MetaContentHash]
		}
	}
	sort.Strings(order)
	out := make([]models.SourceSummary, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}

func titleOf(it models.Item) string {
	if t := it.Metadata[models.MetaFilename]; t != "" {
		return t
	}
	if t := it.Metadata[models.MetaVideoTitle]; t != "" && it.Metadata[models.MetaCollection] == models.CollectionVideo {
		return t
	}
	if it.Origin == models.OriginComment {
		return it.SourceID
	}
	return ""
}
