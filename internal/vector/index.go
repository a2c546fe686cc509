// Package vector provides vector storage and nearest-neighbor search over chunk embeddings.
package vector

import (
	"context"
	"errors"

	"github.com/opsline/runbookd/internal/models"
)

// ErrUnavailable is returned by Query when the backing store is unreachable or
// the collection does not exist. Callers must fall back to a degraded search
// path rather than propagate it.
var ErrUnavailable = errors.New("vector index unavailable")

// Record is a stored embedding with its source text and metadata.
// The ID is "{document_id}_{chunk_index}" and doubles as the idempotency key
// for re-indexing.
type Record struct {
	ID     string           `json:"id"`
	Text   string           `json:"text"`
	Vector []float32        `json:"-"`
	Meta   models.ChunkMeta `json:"meta"`
}

// Hit is a single nearest-neighbor result. Distance is cosine distance
// (1 - cosine similarity): 0 identical direction, larger is farther.
type Hit struct {
	Record   *Record
	Distance float64
}

// Index defines vector storage and nearest-neighbor search.
// Query returns up to k hits in ascending distance order, ties broken by
// insertion order, and fewer than k when the index holds fewer records.
type Index interface {
	Upsert(ctx context.Context, records []*Record) error
	Delete(ctx context.Context, ids []string) error
	// DeleteByDocument removes every record belonging to the document,
	// regardless of chunk count. Used to purge stale chunks before re-insertion.
	DeleteByDocument(ctx context.Context, docID string) error
	Query(ctx context.Context, vector []float32, k int) ([]*Hit, error)
	Count() int
	// Reset removes all records (full rebuild).
	Reset(ctx context.Context) error
	Save(path string) error
	Load(path string) error
	Close() error
}
