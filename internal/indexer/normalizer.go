// Package indexer provides text normalization, chunking, and the indexing pipeline.
package indexer

import (
	"regexp"
	"strings"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	disallowedPattern = regexp.MustCompile(`[^\w\s.!?,:;()-]`)
)

// Normalize cleans raw document text for chunking: markup tags are removed,
// characters outside a conservative allow-set become spaces, runs of
// whitespace collapse to a single space, and the result is trimmed.
func Normalize(text string) string {
	text = tagPattern.ReplaceAllString(text, "")
	text = disallowedPattern.ReplaceAllString(text, " ")
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
