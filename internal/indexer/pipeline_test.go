package indexer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/opsline/runbookd/internal/config"
	"github.com/opsline/runbookd/internal/embedding"
	"github.com/opsline/runbookd/internal/models"
	"github.com/opsline/runbookd/internal/storage"
	"github.com/opsline/runbookd/internal/vector"
)

func testPipeline(t *testing.T, cfg *config.IndexConfig) (*Pipeline, storage.Storage, vector.Index) {
	t.Helper()
	if cfg == nil {
		cfg = &config.IndexConfig{ChunkSize: 10, ChunkOverlap: 2, DocumentBatchSize: 2, MinDocumentChars: 10}
	}
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	embedder := embedding.NewMockEmbedder(8)
	idx, err := vector.NewMemoryIndex(8, embedder.ModelName())
	if err != nil {
		t.Fatal(err)
	}
	return NewPipeline(store, embedder, idx, cfg), store, idx
}

func doc(id, body string) *models.Document {
	return &models.Document{ID: id, Title: "Title " + id, URL: "https://wiki/" + id, Body: body, Space: "DEVOPS"}
}

func longBody(words int) string {
	parts := make([]string, words)
	for i := range parts {
		parts[i] = fmt.Sprintf("word%d", i)
	}
	return strings.Join(parts, " ")
}

func TestPipeline_IndexAll(t *testing.T) {
	p, store, idx := testPipeline(t, nil)
	ctx := context.Background()

	docs := []*models.Document{
		doc("a", longBody(25)), // 3 chunks with size 10, overlap 2
		doc("b", longBody(8)),  // 1 chunk
		doc("c", "x"),          // below length floor
	}
	result, err := p.IndexAll(ctx, docs)
	if err != nil {
		t.Fatal(err)
	}
	if result.DocumentsProcessed != 2 {
		t.Errorf("DocumentsProcessed=%d", result.DocumentsProcessed)
	}
	if result.DocumentsSkipped != 1 {
		t.Errorf("DocumentsSkipped=%d", result.DocumentsSkipped)
	}
	if result.ChunksIndexed != idx.Count() {
		t.Errorf("ChunksIndexed=%d but index holds %d", result.ChunksIndexed, idx.Count())
	}
	// Short documents are still stored for the fallback search.
	if _, err := store.GetDocument(ctx, "c"); err != nil {
		t.Errorf("short document should be stored: %v", err)
	}
	count, _ := store.CountDocuments(ctx)
	if count != 3 {
		t.Errorf("stored documents=%d", count)
	}
}

func TestPipeline_ReindexIsIdempotent(t *testing.T) {
	p, _, idx := testPipeline(t, nil)
	ctx := context.Background()

	docs := []*models.Document{doc("a", longBody(25)), doc("b", longBody(12))}
	first, err := p.IndexAll(ctx, docs)
	if err != nil {
		t.Fatal(err)
	}
	countAfterFirst := idx.Count()

	second, err := p.IndexAll(ctx, docs)
	if err != nil {
		t.Fatal(err)
	}
	if idx.Count() != countAfterFirst {
		t.Errorf("re-index changed record count: %d -> %d", countAfterFirst, idx.Count())
	}
	if first.ChunksIndexed != second.ChunksIndexed {
		t.Errorf("chunk counts differ: %d vs %d", first.ChunksIndexed, second.ChunksIndexed)
	}
}

func TestPipeline_ShrinkingDocumentPurgesStaleChunks(t *testing.T) {
	p, _, idx := testPipeline(t, nil)
	ctx := context.Background()

	n, err := p.IndexDocument(ctx, doc("a", longBody(25)))
	if err != nil {
		t.Fatal(err)
	}
	if n < 2 {
		t.Fatalf("expected multiple chunks, got %d", n)
	}

	// Re-index the same document with a much shorter body.
	m, err := p.IndexDocument(ctx, doc("a", longBody(10)))
	if err != nil {
		t.Fatal(err)
	}
	if m != 1 {
		t.Fatalf("expected 1 chunk, got %d", m)
	}
	if idx.Count() != 1 {
		t.Errorf("stale higher-index chunks must be purged, index holds %d", idx.Count())
	}
}

func TestPipeline_ChunkIDs(t *testing.T) {
	p, _, idx := testPipeline(t, nil)
	ctx := context.Background()
	if _, err := p.IndexDocument(ctx, doc("runbook-7", longBody(25))); err != nil {
		t.Fatal(err)
	}
	embedder := embedding.NewMockEmbedder(8)
	qv, _ := embedder.Embed(ctx, "word0 word1")
	hits, err := idx.Query(ctx, qv, 10)
	if err != nil {
		t.Fatal(err)
	}
	seen := make(map[string]bool)
	for _, h := range hits {
		seen[h.Record.ID] = true
		if h.Record.Meta.DocumentID != "runbook-7" {
			t.Errorf("Meta.DocumentID=%s", h.Record.Meta.DocumentID)
		}
		if h.Record.Meta.TotalChunks != len(hits) {
			t.Errorf("TotalChunks=%d, want %d", h.Record.Meta.TotalChunks, len(hits))
		}
	}
	for i := 0; i < len(hits); i++ {
		id := fmt.Sprintf("runbook-7_%d", i)
		if !seen[id] {
			t.Errorf("missing chunk id %s", id)
		}
	}
}

func TestPipeline_AssignsIDWhenMissing(t *testing.T) {
	p, store, _ := testPipeline(t, nil)
	ctx := context.Background()
	d := doc("", longBody(12))
	if _, err := p.IndexDocument(ctx, d); err != nil {
		t.Fatal(err)
	}
	if d.ID == "" {
		t.Fatal("expected an assigned id")
	}
	if _, err := store.GetDocument(ctx, d.ID); err != nil {
		t.Errorf("document not stored under assigned id: %v", err)
	}
}

// failingEmbedder fails on one marker text to exercise batch abort semantics.
type failingEmbedder struct {
	*embedding.MockEmbedder
	failOn string
}

func (e *failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	for _, text := range texts {
		if strings.Contains(text, e.failOn) {
			return nil, errors.New("model overloaded")
		}
	}
	return e.MockEmbedder.EmbedBatch(ctx, texts)
}

func TestPipeline_EmbeddingFailureAbortsOnlyItsBatch(t *testing.T) {
	cfg := &config.IndexConfig{ChunkSize: 10, ChunkOverlap: 2, DocumentBatchSize: 1, MinDocumentChars: 5}
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	embedder := &failingEmbedder{MockEmbedder: embedding.NewMockEmbedder(8), failOn: "poison"}
	idx, _ := vector.NewMemoryIndex(8, "mock")
	p := NewPipeline(store, embedder, idx, cfg)

	ctx := context.Background()
	docs := []*models.Document{
		doc("ok-1", longBody(12)),
		doc("bad", "poison pill document body here"),
		doc("ok-2", longBody(12)),
	}
	result, err := p.IndexAll(ctx, docs)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.BatchErrors) != 1 {
		t.Fatalf("expected 1 batch error, got %d", len(result.BatchErrors))
	}
	// Both healthy documents survive; only the poisoned batch is lost.
	if result.DocumentsProcessed != 2 {
		t.Errorf("DocumentsProcessed=%d", result.DocumentsProcessed)
	}
	if idx.Count() != 2 {
		t.Errorf("index holds %d records", idx.Count())
	}
}

func TestPipeline_ConcurrentRebuildRefused(t *testing.T) {
	p, _, _ := testPipeline(t, nil)
	p.mu.Lock()
	defer p.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(1)
	var got error
	go func() {
		defer wg.Done()
		_, got = p.IndexAll(context.Background(), []*models.Document{doc("a", longBody(12))})
	}()
	wg.Wait()
	if !errors.Is(got, ErrIndexingInProgress) {
		t.Errorf("expected ErrIndexingInProgress, got %v", got)
	}
}
