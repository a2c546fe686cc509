// Package vector: in-memory brute-force index with binary persistence.
package vector

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/opsline/runbookd/internal/models"
)

// MemoryIndex is an in-memory vector index using brute-force cosine distance.
// Suitable for a single-node corpus of this size; records keep insertion order
// so equal-distance results rank deterministically.
type MemoryIndex struct {
	dimensions int
	// model is the embedding model name; vectors from different models are
	// not comparable, so it is persisted with the index and checked on Load.
	model   string
	records []*Record
	byID    map[string]int
	closed  bool
	mu      sync.RWMutex
}

// NewMemoryIndex creates an in-memory vector index for vectors of the given
// dimension produced by the named embedding model.
func NewMemoryIndex(dimensions int, model string) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{
		dimensions: dimensions,
		model:      model,
		records:    make([]*Record, 0),
		byID:       make(map[string]int),
	}, nil
}

// Upsert inserts or overwrites records keyed by id. Overwriting keeps the
// record's original insertion position.
func (m *MemoryIndex) Upsert(ctx context.Context, records []*Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrUnavailable
	}
	for _, rec := range records {
		if len(rec.Vector) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch for %s: got %d, expected %d", rec.ID, len(rec.Vector), m.dimensions)
		}
		vec := make([]float32, m.dimensions)
		copy(vec, rec.Vector)
		stored := &Record{ID: rec.ID, Text: rec.Text, Vector: vec, Meta: rec.Meta}
		if pos, ok := m.byID[rec.ID]; ok {
			m.records[pos] = stored
			continue
		}
		m.byID[rec.ID] = len(m.records)
		m.records = append(m.records, stored)
	}
	return nil
}

// Query returns up to k nearest records by cosine distance, ascending,
// ties broken by insertion order.
func (m *MemoryIndex) Query(ctx context.Context, vector []float32, k int) ([]*Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrUnavailable
	}
	if len(vector) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(vector), m.dimensions)
	}
	if k <= 0 || len(m.records) == 0 {
		return nil, nil
	}
	hits := make([]*Hit, len(m.records))
	for i, rec := range m.records {
		hits[i] = &Hit{Record: rec, Distance: CosineDistance(vector, rec.Vector)}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Delete removes records by id. Unknown ids are ignored.
func (m *MemoryIndex) Delete(ctx context.Context, ids []string) error {
	removeSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		removeSet[id] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrUnavailable
	}
	m.removeLocked(func(r *Record) bool { return removeSet[r.ID] })
	return nil
}

// DeleteByDocument removes all records belonging to docID.
func (m *MemoryIndex) DeleteByDocument(ctx context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrUnavailable
	}
	m.removeLocked(func(r *Record) bool { return r.Meta.DocumentID == docID })
	return nil
}

func (m *MemoryIndex) removeLocked(match func(*Record) bool) {
	kept := make([]*Record, 0, len(m.records))
	byID := make(map[string]int, len(m.byID))
	for _, rec := range m.records {
		if match(rec) {
			continue
		}
		byID[rec.ID] = len(kept)
		kept = append(kept, rec)
	}
	m.records = kept
	m.byID = byID
}

// Reset removes all records.
func (m *MemoryIndex) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrUnavailable
	}
	m.records = m.records[:0]
	m.byID = make(map[string]int)
	return nil
}

// Count returns the number of records in the index.
func (m *MemoryIndex) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Close marks the index unavailable. Subsequent queries return ErrUnavailable.
func (m *MemoryIndex) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Save persists the index to path. Directory is created if needed.
// Format: modelLen (4), model, dimensions (4), n (4), then per record:
// idLen (4), id, textLen (4), text, metaLen (4), meta JSON, vector (dimensions*4 bytes).
func (m *MemoryIndex) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()
	if err := writeBytes(f, []byte(m.model)); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(m.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(m.records))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for _, rec := range m.records {
		metaJSON, err := json.Marshal(rec.Meta)
		if err != nil {
			return fmt.Errorf("marshal meta for %s: %w", rec.ID, err)
		}
		if err := writeBytes(f, []byte(rec.ID)); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		if err := writeBytes(f, []byte(rec.Text)); err != nil {
			return fmt.Errorf("write text: %w", err)
		}
		if err := writeBytes(f, metaJSON); err != nil {
			return fmt.Errorf("write meta: %w", err)
		}
		if _, err := f.Write(float32SliceToBytes(rec.Vector)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// Load reads the index from path and replaces the in-memory contents.
// The file's embedding model and dimensions must match the index's.
// If the file does not exist, no error is returned and the index is unchanged.
func (m *MemoryIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	model, err := readBytes(f)
	if err != nil {
		return fmt.Errorf("read model: %w", err)
	}
	if string(model) != m.model {
		return fmt.Errorf("embedding model mismatch: file was built with %q, index expects %q", model, m.model)
	}
	var dim, n uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != m.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", dim, m.dimensions)
	}
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make([]*Record, 0, n)
	m.byID = make(map[string]int, n)
	vecBuf := make([]byte, m.dimensions*4)
	for i := uint32(0); i < n; i++ {
		id, err := readBytes(f)
		if err != nil {
			return fmt.Errorf("read id: %w", err)
		}
		text, err := readBytes(f)
		if err != nil {
			return fmt.Errorf("read text: %w", err)
		}
		metaJSON, err := readBytes(f)
		if err != nil {
			return fmt.Errorf("read meta: %w", err)
		}
		var meta models.ChunkMeta
		if err := json.Unmarshal(metaJSON, &meta); err != nil {
			return fmt.Errorf("unmarshal meta: %w", err)
		}
		if _, err := io.ReadFull(f, vecBuf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		rec := &Record{
			ID:     string(id),
			Text:   string(text),
			Vector: bytesToFloat32Slice(vecBuf),
			Meta:   meta,
		}
		m.byID[rec.ID] = len(m.records)
		m.records = append(m.records, rec)
	}
	return nil
}

func writeBytes(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBytes(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
