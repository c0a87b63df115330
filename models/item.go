package models

import "time"

// OriginType says where an indexed item came from.
type OriginType string

const (
	OriginDocument OriginType = "document"
	OriginComment  OriginType = "comment"
)

// Well-known keys in Item.Metadata.
const (
	MetaAuthor      = "author"
	MetaLikeCount   = "like_count"
	MetaVideoID     = "video_id"
	MetaVideoTitle  = "video_title"
	MetaPublishedAt = "published_at"
	MetaFilename    = "filename"
	MetaCommentID   = "comment_id"
	MetaCollection  = "collection"
	MetaContentHash = "content_hash"
)

// Values of MetaCollection on comment items.
const (
	CollectionTopic = "topic"
	CollectionVideo = "video"
)

// Item is a single indexed unit of text: one chunk of a document or one
// (possibly chunked) comment. Once added it is owned by the embedding store.
type Item struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	SourceID   string            `json:"source_id"`
	Origin     OriginType        `json:"origin_type"`
	ChunkIndex int               `json:"chunk_index"`
	Version    int               `json:"version"`
	Embedding  []float32         `json:"-"`
	Sentiment  *SentimentVector  `json:"sentiment,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// RetrievalResult pairs an item with its similarity score in [0,1].
type RetrievalResult struct {
	Item  Item    `json:"item"`
	Score float64 `json:"score"`
}

// SourceRef identifies a comment collection unit (a video) at the provider.
type SourceRef struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Channel     string `json:"channel,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
}

// RawItem is a comment as returned by a comment source, before cleaning.
type RawItem struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	Author      string    `json:"author"`
	Weight      int64     `json:"weight"`
	PublishedAt time.Time `json:"published_at"`
	SourceRef   SourceRef `json:"source_ref"`
}
