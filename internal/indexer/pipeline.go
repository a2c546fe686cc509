package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsline/runbookd/internal/config"
	"github.com/opsline/runbookd/internal/embedding"
	"github.com/opsline/runbookd/internal/models"
	"github.com/opsline/runbookd/internal/storage"
	"github.com/opsline/runbookd/internal/vector"
)

// ErrIndexingInProgress is returned when a rebuild is requested while another
// indexing run holds the pipeline.
var ErrIndexingInProgress = errors.New("indexing already in progress")

// Pipeline orchestrates normalize, chunk, embed, and store for the document
// collection. At most one run is active at a time; concurrent rebuilds against
// the same collection would interleave delete and upsert operations unsafely.
type Pipeline struct {
	storage  storage.Storage
	embedder embedding.Embedder
	index    vector.Index
	chunker  *Chunker
	cfg      *config.IndexConfig
	logger   *zap.Logger // optional; when set, logs batch progress
	mu       sync.Mutex
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets a logger for progress and degraded-batch reporting.
func WithLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates an indexing pipeline with the given dependencies.
func NewPipeline(
	store storage.Storage,
	embedder embedding.Embedder,
	index vector.Index,
	cfg *config.IndexConfig,
	opts ...PipelineOption,
) *Pipeline {
	p := &Pipeline{
		storage:  store,
		embedder: embedder,
		index:    index,
		chunker:  NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result summarizes an indexing run.
type Result struct {
	DocumentsProcessed int
	DocumentsSkipped   int
	ChunksIndexed      int
	// BatchErrors holds per-batch failures. A failed batch aborts only its own
	// documents; earlier and later batches remain indexed.
	BatchErrors []error
}

// IndexAll rebuilds the collection from docs: the index is reset first so no
// stale chunks survive, then documents are processed in batches. Returns
// ErrIndexingInProgress if another run is active.
func (p *Pipeline) IndexAll(ctx context.Context, docs []*models.Document) (*Result, error) {
	if !p.mu.TryLock() {
		return nil, ErrIndexingInProgress
	}
	defer p.mu.Unlock()

	if err := p.index.Reset(ctx); err != nil {
		return nil, fmt.Errorf("reset vector index: %w", err)
	}

	result := &Result{}
	batchSize := p.cfg.DocumentBatchSize
	for start := 0; start < len(docs); start += batchSize {
		end := start + batchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]

		records, skipped, err := p.prepareBatch(ctx, batch)
		if err != nil {
			result.BatchErrors = append(result.BatchErrors, err)
			if p.logger != nil {
				p.logger.Warn("batch aborted",
					zap.Int("batch_start", start),
					zap.Int("batch_size", len(batch)),
					zap.Error(err),
				)
			}
			continue
		}
		result.DocumentsProcessed += len(batch) - skipped
		result.DocumentsSkipped += skipped
		result.ChunksIndexed += len(records)

		if p.logger != nil {
			p.logger.Info("batch indexed",
				zap.Int("documents_so_far", end),
				zap.Int("total_documents", len(docs)),
				zap.Int("total_chunks", result.ChunksIndexed),
			)
		}
	}
	return result, nil
}

// SaveIndex persists the vector index to path.
func (p *Pipeline) SaveIndex(path string) error {
	return p.index.Save(path)
}

// prepareBatch stores, chunks, embeds, and upserts one batch of documents.
// Any failure aborts the whole batch; documents from prior batches are unaffected.
func (p *Pipeline) prepareBatch(ctx context.Context, batch []*models.Document) (records []*vector.Record, skipped int, err error) {
	for _, doc := range batch {
		recs, err := p.processDocument(ctx, doc)
		if err != nil {
			return nil, 0, err
		}
		if recs == nil {
			skipped++
			continue
		}
		records = append(records, recs...)
	}
	if len(records) == 0 {
		return nil, skipped, nil
	}

	texts := make([]string, len(records))
	for i, rec := range records {
		texts[i] = rec.Text
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, 0, fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(records) {
		return nil, 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(records))
	}
	for i := range records {
		records[i].Vector = vectors[i]
	}

	if err := p.index.Upsert(ctx, records); err != nil {
		return nil, 0, fmt.Errorf("store batch: %w", err)
	}
	return records, skipped, nil
}

// processDocument normalizes, stores, and chunks one document. Returns nil
// records (not an error) when the cleaned body is below the length floor:
// near-empty documents are noise, not failures. The document itself is always
// stored so the fallback substring search can still see it.
func (p *Pipeline) processDocument(ctx context.Context, doc *models.Document) ([]*vector.Record, error) {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if err := p.storage.CreateOrReplaceDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("store document %s: %w", doc.ID, err)
	}

	cleaned := Normalize(doc.Body)
	if len(cleaned) < p.cfg.MinDocumentChars {
		if p.logger != nil {
			p.logger.Debug("skipping short document",
				zap.String("id", doc.ID),
				zap.Int("cleaned_chars", len(cleaned)),
			)
		}
		return nil, nil
	}

	chunks := p.chunker.Chunk(cleaned)
	records := make([]*vector.Record, len(chunks))
	for i, text := range chunks {
		records[i] = &vector.Record{
			ID:   fmt.Sprintf("%s_%d", doc.ID, i),
			Text: text,
			Meta: models.ChunkMeta{
				DocumentID:    doc.ID,
				DocumentTitle: doc.Title,
				DocumentURL:   doc.URL,
				ChunkIndex:    i,
				TotalChunks:   len(chunks),
				WordCount:     len(strings.Fields(text)),
				Space:         doc.Space,
			},
		}
	}
	return records, nil
}

// IndexDocument incrementally indexes a single document. All previous chunks
// for the document are purged before re-insertion, so a shrinking chunk count
// cannot leave stale records behind. Blocks while a rebuild is running.
func (p *Pipeline) IndexDocument(ctx context.Context, doc *models.Document) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if doc.ID != "" {
		if err := p.index.DeleteByDocument(ctx, doc.ID); err != nil {
			return 0, fmt.Errorf("purge document %s: %w", doc.ID, err)
		}
	}
	records, err := p.processDocument(ctx, doc)
	if err != nil {
		return 0, err
	}
	if records == nil {
		return 0, nil
	}

	texts := make([]string, len(records))
	for i, rec := range records {
		texts[i] = rec.Text
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed document %s: %w", doc.ID, err)
	}
	for i := range records {
		records[i].Vector = vectors[i]
	}
	if err := p.index.Upsert(ctx, records); err != nil {
		return 0, fmt.Errorf("store document %s: %w", doc.ID, err)
	}
	return len(records), nil
}

// DeleteDocument removes a document and all its chunks.
func (p *Pipeline) DeleteDocument(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.index.DeleteByDocument(ctx, id); err != nil {
		return fmt.Errorf("delete chunks for %s: %w", id, err)
	}
	if err := p.storage.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}
