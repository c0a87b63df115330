package models

import "time"

// SourceStatus is the lifecycle state of an ingested source.
type SourceStatus string

const (
	StatusPending    SourceStatus = "pending"
	StatusProcessing SourceStatus = "processing"
	StatusCompleted  SourceStatus = "completed"
	StatusFailed     SourceStatus = "failed"
)

// SourceParams remembers how a source was collected so it can be reindexed.
type SourceParams struct {
	Filename          string `json:"filename,omitempty"`
	Topic             string `json:"topic,omitempty"`
	VideoID           string `json:"video_id,omitempty"`
	MaxSources        int    `json:"max_sources,omitempty"`
	MaxItemsPerSource int    `json:"max_items_per_source,omitempty"`
}

// Source is a logical origin (document upload, topic or single video) owning
// a versioned set of items.
type Source struct {
	ID             string       `json:"id"`
	Kind           OriginType   `json:"kind"`
	Title          string       `json:"title"`
	Status         SourceStatus `json:"status"`
	Version        int          `json:"version"`
	ItemCount      int          `json:"item_count"`
	CollectedCount int          `json:"collected_count"`
	Size           int64        `json:"size,omitempty"`
	ContentHash    string       `json:"content_hash,omitempty"`
	Error          string       `json:"error,omitempty"`
	Params         SourceParams `json:"params"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// SourceSummary is what an index can tell about a source without the registry.
type SourceSummary struct {
	SourceID    string
	Origin      OriginType
	Version     int
	ItemCount   int
	Title       string
	Collection  string
	ContentHash string
}
