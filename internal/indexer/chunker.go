package indexer

import "strings"

// Chunker splits text into overlapping word-based chunks. It is a stateless
// pure function over its configuration; overlap must be smaller than size
// (enforced by config validation).
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker with the given size and overlap (in words).
func NewChunker(size, overlap int) *Chunker {
	return &Chunker{size: size, overlap: overlap}
}

// Chunk splits text into overlapping windows of at most size words.
// Text of at most size words is returned as a single chunk, unchanged.
// Consecutive chunks share exactly overlap words; the final chunk may be
// shorter. Any non-empty input yields at least one chunk.
func (c *Chunker) Chunk(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if len(words) <= c.size {
		return []string{text}
	}

	step := c.size - c.overlap
	if step <= 0 {
		step = 1
	}
	var chunks []string
	for start := 0; ; start += step {
		end := start + c.size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}
