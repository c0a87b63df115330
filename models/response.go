package models

type IngestDocumentResponse struct {
	SourceID string `json:"source_id"`
	Filename string `json:"filename"`
	Message  string `json:"message"`
	Error    string `json:"error,omitempty"`
}

// IngestResult reports a comment collection run.
type IngestResult struct {
	SourceID       string   `json:"source_id"`
	CollectedCount int      `json:"collected_count"`
	ChunkCount     int      `json:"chunk_count"`
	FailedSources  []string `json:"failed_sources,omitempty"`
}

type OpinionResponse struct {
	Text      string             `json:"text"`
	Aggregate SentimentAggregate `json:"aggregate"`
	Evidence  []RetrievalResult  `json:"evidence"`
}

// ReindexReport lists per-source outcomes of a full reindex.
type ReindexReport struct {
	Reindexed []string          `json:"reindexed"`
	Failed    map[string]string `json:"failed,omitempty"`
}

type StoreStats struct {
	TotalItems   int    `json:"total_items"`
	TotalSources int    `json:"total_sources"`
	Backend      string `json:"backend"`
}

type SystemStats struct {
	Store         StoreStats `json:"store"`
	Documents     int        `json:"documents"`
	Topics        int        `json:"topics"`
	Conversations int        `json:"conversations"`
}

type ChatResponse struct {
	ConversationID string              `json:"conversation_id"`
	Reply          string              `json:"reply"`
	Aggregate      *SentimentAggregate `json:"aggregate,omitempty"`
	Evidence       []RetrievalResult   `json:"evidence,omitempty"`
}

type ConversationResponse struct {
	ConversationID string        `json:"conversation_id"`
	Messages       []ChatMessage `json:"messages"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
