package models

import "strings"

// QueryRequest is a question posed to the assistant.
type QueryRequest struct {
	Query string `json:"query"`
	// TopK overrides the configured number of chunks to retrieve when positive.
	TopK int `json:"top_k,omitempty"`
}

// MinQueryLength is the minimum number of non-whitespace characters a query
// must contain before the index is consulted.
const MinQueryLength = 3

// TooShort reports whether the query is below the minimum length.
// Short queries get a canned response and never reach the vector index.
func (q *QueryRequest) TooShort() bool {
	compact := strings.Join(strings.Fields(q.Query), "")
	return len(compact) < MinQueryLength
}

// Normalize trims the query and applies the top-k default.
func (q *QueryRequest) Normalize(defaultTopK int) {
	q.Query = strings.TrimSpace(q.Query)
	if q.TopK <= 0 {
		q.TopK = defaultTopK
	}
}
