// Package models defines core data structures for runbooks, chunks, queries, and answers.
package models

import (
	"strings"
	"time"
)

// Document represents a runbook fetched from the document source.
// A document is immutable once ingested; re-fetching the same id supersedes
// the previous version rather than mutating it.
type Document struct {
	ID        string    `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	URL       string    `json:"url" db:"url"`
	Body      string    `json:"body" db:"body"`
	Space     string    `json:"space" db:"space"`
	WordCount int       `json:"word_count" db:"word_count"`
	FetchedAt time.Time `json:"fetched_at" db:"fetched_at"`
}

// CountWords returns the whitespace-separated word count of the body.
func (d *Document) CountWords() int {
	return len(strings.Fields(d.Body))
}

// ChunkMeta is the metadata stored alongside each chunk in the vector index.
type ChunkMeta struct {
	DocumentID    string `json:"document_id"`
	DocumentTitle string `json:"document_title"`
	DocumentURL   string `json:"document_url"`
	ChunkIndex    int    `json:"chunk_index"`
	TotalChunks   int    `json:"total_chunks"`
	WordCount     int    `json:"word_count"`
	Space         string `json:"space"`
}

// Chunk is an overlapping slice of a document's normalized text, the unit of
// embedding and retrieval. Chunks are derived fresh on every indexing pass.
type Chunk struct {
	ID   string    `json:"id"`
	Text string    `json:"text"`
	Meta ChunkMeta `json:"meta"`
}
