package services

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dyk-im/Break-Bias/models"
)

// Registry tracks sources and their lifecycle. It is safe for concurrent use.
//
// A source's Version is the version of its live items. Begin hands out a new
// version that becomes live only on Complete; versions are never reused, so
// items left behind by a failed run cannot pass for a later one.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]*models.Source
	issued  map[string]int
	pending map[string]int
	now     func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]*models.Source),
		issued:  make(map[string]int),
		pending: make(map[string]int),
		now:     time.Now,
	}
}

// Register adds a pending source, or returns the existing one unchanged.
func (r *Registry) Register(id string, kind models.OriginType, title string, params models.SourceParams) models.Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sources[id]; ok {
		return *s
	}
	now := r.now()
	s := &models.Source{
		ID:        id,
		Kind:      kind,
		Title:     title,
		Status:    models.StatusPending,
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.sources[id] = s
	return *s
}

// Begin moves a source to processing and returns the version items written
// by this run must carry.
func (r *Registry) Begin(id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sources[id]
	if !ok {
		return 0, fmt.Errorf("source %s: %w", id, models.ErrNotFound)
	}
	if s.Status == models.StatusProcessing {
		return 0, fmt.Errorf("source %s is already processing", id)
	}
	version := max(r.issued[id], s.Version) + 1
	r.issued[id] = version
	r.pending[id] = version
	s.Status = models.StatusProcessing
	s.Error = ""
	s.UpdatedAt = r.now()
	return version, nil
}

// Complete marks a processing source completed.
func (r *Registry) Complete(id string, itemCount, collectedCount int, contentHash string, size int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sources[id]
	if !ok {
		return fmt.Errorf("source %s: %w", id, models.ErrNotFound)
	}
	if v, ok := r.pending[id]; ok {
		s.Version = v
		delete(r.pending, id)
	}
	s.Status = models.StatusCompleted
	s.ItemCount = itemCount
	s.CollectedCount = collectedCount
	if contentHash != "" {
		s.ContentHash = contentHash
	}
	if size > 0 {
		s.Size = size
	}
	s.UpdatedAt = r.now()
	return nil
}

// Fail marks a source failed with the cause. Its version stays at the last
// completed run.
func (r *Registry) Fail(id string, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sources[id]
	if !ok {
		return fmt.Errorf("source %s: %w", id, models.ErrNotFound)
	}
	delete(r.pending, id)
	s.Status = models.StatusFailed
	if cause != nil {
		s.Error = cause.Error()
	}
	s.UpdatedAt = r.now()
	return nil
}

// Get returns a copy of the source.
func (r *Registry) Get(id string) (models.Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[id]
	if !ok {
		return models.Source{}, false
	}
	return *s, true
}

// List returns all sources of the given kind ("" for all), oldest first.
func (r *Registry) List(kind models.OriginType) []models.Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Source, 0, len(r.sources))
	for _, s := range r.sources {
		if kind == "" || s.Kind == kind {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Delete forgets a source. It reports whether the source existed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sources[id]
	delete(r.sources, id)
	delete(r.pending, id)
	return ok
}

// Restore registers sources found in the index as completed, keeping their
// stored version. Known sources are left alone.
func (r *Registry) Restore(summaries []models.SourceSummary) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	restored := 0
	now := r.now()
	for _, sum := range summaries {
		if _, ok := r.sources[sum.SourceID]; ok {
			continue
		}
		title := sum.Title
		if title == "" {
			title = sum.SourceID
		}
		params := models.SourceParams{}
		switch {
		case sum.Origin == models.OriginDocument:
			params.Filename = sum.Title
		case sum.Collection == models.CollectionVideo:
			params.VideoID = sum.SourceID
		default:
			params.Topic = sum.SourceID
		}
		r.sources[sum.SourceID] = &models.Source{
			ID:          sum.SourceID,
			Kind:        sum.Origin,
			Title:       title,
			Status:      models.StatusCompleted,
			Version:     sum.Version,
			ItemCount:   sum.ItemCount,
			ContentHash: sum.ContentHash,
			Params:      params,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		restored++
	}
	return restored
}
