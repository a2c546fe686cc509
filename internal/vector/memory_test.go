package vector

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/opsline/runbookd/internal/models"
)

func rec(id, docID string, vec []float32) *Record {
	return &Record{
		ID:     id,
		Text:   "text of " + id,
		Vector: vec,
		Meta:   models.ChunkMeta{DocumentID: docID},
	}
}

func TestMemoryIndex_UpsertQuery(t *testing.T) {
	idx, err := NewMemoryIndex(3, "mock")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	records := []*Record{
		rec("a_0", "a", []float32{1, 0, 0}),
		rec("b_0", "b", []float32{0.9, 0.1, 0}),
		rec("c_0", "c", []float32{0, 1, 0}),
	}
	if err := idx.Upsert(ctx, records); err != nil {
		t.Fatal(err)
	}
	if idx.Count() != 3 {
		t.Errorf("Count=%d", idx.Count())
	}

	hits, err := idx.Query(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Record.ID != "a_0" {
		t.Errorf("top hit should be a_0, got %s", hits[0].Record.ID)
	}
	if hits[0].Distance > hits[1].Distance {
		t.Error("hits must be in ascending distance order")
	}
	if math.Abs(hits[0].Distance) > 1e-6 {
		t.Errorf("identical vector should have distance 0, got %f", hits[0].Distance)
	}
}

func TestMemoryIndex_QueryFewerThanK(t *testing.T) {
	idx, _ := NewMemoryIndex(2, "mock")
	ctx := context.Background()
	_ = idx.Upsert(ctx, []*Record{rec("a_0", "a", []float32{1, 0})})
	hits, err := idx.Query(ctx, []float32{1, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("expected 1 hit, got %d", len(hits))
	}
}

func TestMemoryIndex_TiesByInsertionOrder(t *testing.T) {
	idx, _ := NewMemoryIndex(2, "mock")
	ctx := context.Background()
	// Same vector: equal distance, insertion order decides.
	_ = idx.Upsert(ctx, []*Record{
		rec("first_0", "first", []float32{0, 1}),
		rec("second_0", "second", []float32{0, 1}),
	})
	hits, err := idx.Query(ctx, []float32{0, 1}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if hits[0].Record.ID != "first_0" || hits[1].Record.ID != "second_0" {
		t.Errorf("ties must keep insertion order, got %s, %s", hits[0].Record.ID, hits[1].Record.ID)
	}
}

func TestMemoryIndex_UpsertOverwrites(t *testing.T) {
	idx, _ := NewMemoryIndex(2, "mock")
	ctx := context.Background()
	_ = idx.Upsert(ctx, []*Record{rec("a_0", "a", []float32{1, 0})})
	_ = idx.Upsert(ctx, []*Record{rec("a_0", "a", []float32{0, 1})})
	if idx.Count() != 1 {
		t.Fatalf("overwrite must not duplicate, Count=%d", idx.Count())
	}
	hits, _ := idx.Query(ctx, []float32{0, 1}, 1)
	if hits[0].Distance > 1e-6 {
		t.Error("expected the overwritten vector to be stored")
	}
}

func TestMemoryIndex_DeleteByDocument(t *testing.T) {
	idx, _ := NewMemoryIndex(2, "mock")
	ctx := context.Background()
	_ = idx.Upsert(ctx, []*Record{
		rec("a_0", "a", []float32{1, 0}),
		rec("a_1", "a", []float32{0, 1}),
		rec("b_0", "b", []float32{1, 1}),
	})
	if err := idx.DeleteByDocument(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if idx.Count() != 1 {
		t.Errorf("expected 1 record after purge, got %d", idx.Count())
	}
	hits, _ := idx.Query(ctx, []float32{1, 0}, 5)
	for _, h := range hits {
		if h.Record.Meta.DocumentID == "a" {
			t.Error("document a records should be gone")
		}
	}
}

func TestMemoryIndex_ClosedReturnsUnavailable(t *testing.T) {
	idx, _ := NewMemoryIndex(2, "mock")
	ctx := context.Background()
	_ = idx.Close()
	if _, err := idx.Query(ctx, []float32{1, 0}, 1); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	if err := idx.Upsert(ctx, []*Record{rec("a_0", "a", []float32{1, 0})}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable on upsert, got %v", err)
	}
}

func TestMemoryIndex_EmptyQuery(t *testing.T) {
	idx, _ := NewMemoryIndex(2, "mock")
	hits, err := idx.Query(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("empty index should return zero hits, got %d", len(hits))
	}
}

func TestMemoryIndex_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.idx")
	idx, _ := NewMemoryIndex(2, "all-minilm")
	ctx := context.Background()
	original := &Record{
		ID:     "doc1_0",
		Text:   "jenkins build fails when disk is full",
		Vector: []float32{0.6, 0.8},
		Meta: models.ChunkMeta{
			DocumentID:    "doc1",
			DocumentTitle: "Jenkins failures",
			DocumentURL:   "https://wiki/doc1",
			ChunkIndex:    0,
			TotalChunks:   1,
			WordCount:     7,
			Space:         "DEVOPS",
		},
	}
	_ = idx.Upsert(ctx, []*Record{original})
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, _ := NewMemoryIndex(2, "all-minilm")
	if err := loaded.Load(path); err != nil {
		t.Fatal(err)
	}
	if loaded.Count() != 1 {
		t.Fatalf("Count=%d", loaded.Count())
	}
	hits, err := loaded.Query(ctx, []float32{0.6, 0.8}, 1)
	if err != nil {
		t.Fatal(err)
	}
	got := hits[0].Record
	if got.Text != original.Text {
		t.Errorf("Text=%q", got.Text)
	}
	if got.Meta != original.Meta {
		t.Errorf("Meta=%+v", got.Meta)
	}
}

func TestMemoryIndex_LoadModelMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.idx")
	idx, _ := NewMemoryIndex(2, "model-a")
	_ = idx.Upsert(context.Background(), []*Record{rec("a_0", "a", []float32{1, 0})})
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}
	other, _ := NewMemoryIndex(2, "model-b")
	if err := other.Load(path); err == nil {
		t.Error("loading an index built with a different model must fail")
	}
}

func TestMemoryIndex_LoadMissingFile(t *testing.T) {
	idx, _ := NewMemoryIndex(2, "mock")
	if err := idx.Load(filepath.Join(t.TempDir(), "absent.idx")); err != nil {
		t.Errorf("missing file should not be an error: %v", err)
	}
}

func TestCosineDistance(t *testing.T) {
	if d := CosineDistance([]float32{1, 0}, []float32{1, 0}); math.Abs(d) > 1e-6 {
		t.Errorf("identical vectors: distance=%f", d)
	}
	if d := CosineDistance([]float32{1, 0}, []float32{0, 1}); math.Abs(d-1) > 1e-6 {
		t.Errorf("orthogonal vectors: distance=%f", d)
	}
	if d := CosineDistance([]float32{1, 0}, []float32{-1, 0}); math.Abs(d-2) > 1e-6 {
		t.Errorf("opposite vectors: distance=%f", d)
	}
	// Magnitude does not matter for cosine distance.
	if d := CosineDistance([]float32{2, 0}, []float32{5, 0}); math.Abs(d) > 1e-6 {
		t.Errorf("scaled vectors: distance=%f", d)
	}
}

func TestRelevance(t *testing.T) {
	if Relevance(0) != 1 {
		t.Error("distance 0 should map to relevance 1")
	}
	if Relevance(0.4) != 0.6 {
		t.Errorf("Relevance(0.4)=%f", Relevance(0.4))
	}
}
