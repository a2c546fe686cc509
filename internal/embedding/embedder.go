// Package embedding provides text embedding via an external model service, with caching.
package embedding

import "context"

// Embedder produces vector embeddings for text. EmbedBatch is order-preserving:
// the i-th vector corresponds to the i-th input text. Implementations must be
// deterministic for identical input text and model version so that re-indexing
// unchanged content is idempotent.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
	Close() error
}

// subBatches splits texts into slices of at most size elements, preserving order.
func subBatches(texts []string, size int) [][]string {
	if size <= 0 {
		size = len(texts)
	}
	var out [][]string
	for start := 0; start < len(texts); start += size {
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}
		out = append(out, texts[start:end])
	}
	return out
}

// HashString returns a small deterministic hash of s, used by the mock embedder.
func HashString(s string) int {
	h := 0
	for _, c := range s {
		h = h*31 + int(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}
