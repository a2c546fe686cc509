// Package source loads the runbook corpus export produced by the document
// source connector. Pagination and fetching are the connector's concern; this
// package consumes the flat JSON file it writes.
package source

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/opsline/runbookd/internal/models"
)

// rawExport mirrors the connector's JSON shape:
// {"runbooks": [{"id", "title", "url", "content": {"body": ...}, "space": {"key": ...}}]}.
// Older exports carry content as a bare string and omit space.
type rawExport struct {
	Runbooks []rawRunbook `json:"runbooks"`
}

type rawRunbook struct {
	ID      string          `json:"id"`
	Title   string          `json:"title"`
	URL     string          `json:"url"`
	Content json.RawMessage `json:"content"`
	Space   *rawSpace       `json:"space"`
}

type rawSpace struct {
	Key string `json:"key"`
}

type rawContent struct {
	Body string `json:"body"`
}

const defaultSpace = "DEVOPS"

// LoadRunbooks reads the export at path and returns its documents.
// Documents without an id are returned with an empty id; the indexing
// pipeline assigns one.
func LoadRunbooks(path string) ([]*models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read runbooks export: %w", err)
	}
	var export rawExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("parse runbooks export: %w", err)
	}

	docs := make([]*models.Document, 0, len(export.Runbooks))
	for _, rb := range export.Runbooks {
		doc := &models.Document{
			ID:    rb.ID,
			Title: rb.Title,
			URL:   rb.URL,
			Body:  contentBody(rb.Content),
			Space: defaultSpace,
		}
		if rb.Space != nil && rb.Space.Key != "" {
			doc.Space = rb.Space.Key
		}
		doc.WordCount = doc.CountWords()
		docs = append(docs, doc)
	}
	return docs, nil
}

// contentBody extracts the body from content, which is either an object with
// a "body" field or a bare string.
func contentBody(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var obj rawContent
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Body != "" {
		return obj.Body
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}
