package models

// RetrievedChunk is a single retrieval hit with its relevance score.
// Relevance is 1 - cosine distance: bounded, higher is better.
type RetrievedChunk struct {
	Text      string    `json:"text"`
	Meta      ChunkMeta `json:"meta"`
	Relevance float64   `json:"relevance"`
	Rank      int       `json:"rank"`
}

// Source identifies a runbook contributing to an answer.
type Source struct {
	Title     string  `json:"title"`
	URL       string  `json:"url"`
	Relevance float64 `json:"relevance"`
}

// Answer is the response for a processed query. It is always answer-shaped:
// degraded paths fill Answer with an apology rather than omitting it.
type Answer struct {
	Answer          string    `json:"answer"`
	Sources         []*Source `json:"sources"`
	Query           string    `json:"query"`
	ChunksFound     int       `json:"chunks_found"`
	ProcessingTime  float64   `json:"processing_time"`
	SuggestCreation bool      `json:"suggest_creation"`
	// DraftOutline is a generated runbook skeleton for coverage gaps,
	// offered to the authoring workflow when SuggestCreation is true.
	DraftOutline string `json:"draft_outline,omitempty"`
	// Fallback indicates the degraded substring search served this answer.
	Fallback bool `json:"fallback,omitempty"`
}

// Stats describes the indexed corpus.
type Stats struct {
	TotalDocuments int64  `json:"total_documents"`
	TotalChunks    int    `json:"total_chunks"`
	EmbeddingModel string `json:"embedding_model"`
	IndexAvailable bool   `json:"index_available"`
	SearchType     string `json:"search_type"`
}
