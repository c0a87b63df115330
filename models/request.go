package models

type CollectTopicRequest struct {
	Topic             string `json:"topic"`
	MaxSources        int    `json:"max_sources,omitempty"`
	MaxItemsPerSource int    `json:"max_items_per_source,omitempty"`
}

type CollectVideoRequest struct {
	VideoID  string `json:"video_id"`
	Title    string `json:"title,omitempty"`
	MaxItems int    `json:"max_items,omitempty"`
}

// OpinionQuery asks for an opinion summary over indexed evidence. Topic, when
// set, restricts retrieval to that topic's source.
type OpinionQuery struct {
	Query    string `json:"query"`
	Topic    string `json:"topic,omitempty"`
	Detailed bool   `json:"detailed"`
	TopK     int    `json:"top_k,omitempty"`
}

type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
	UseRAG         *bool  `json:"use_rag,omitempty"`
}
