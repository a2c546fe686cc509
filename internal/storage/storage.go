// Package storage defines the persistence interface for the runbook corpus.
package storage

import (
	"context"

	"github.com/opsline/runbookd/internal/models"
)

// Storage defines runbook document persistence. Documents are immutable once
// stored; re-fetching the same id replaces the whole row (supersede, never patch).
type Storage interface {
	CreateOrReplaceDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	CountDocuments(ctx context.Context) (int64, error)
	Close() error
}
