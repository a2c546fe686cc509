package search

import (
	"fmt"
	"strings"

	"github.com/opsline/runbookd/internal/models"
)

// buildContext assembles the synthesis context and the source list from
// ranked chunks. Each distinct document contributes one header block; its
// chunks are concatenated beneath it in rank order, so two chunks from the
// same runbook never repeat the title and URL.
func buildContext(chunks []*models.RetrievedChunk) (string, []*models.Source) {
	type docBlock struct {
		header string
		texts  []string
	}
	var order []string
	blocks := make(map[string]*docBlock)
	var sources []*models.Source

	for _, ch := range chunks {
		id := ch.Meta.DocumentID
		block, seen := blocks[id]
		if !seen {
			block = &docBlock{
				header: fmt.Sprintf("--- %s ---\nSource: %s", ch.Meta.DocumentTitle, ch.Meta.DocumentURL),
			}
			blocks[id] = block
			order = append(order, id)
			// Chunks arrive in rank order, so the first chunk seen for a
			// document carries its best relevance.
			sources = append(sources, &models.Source{
				Title:     ch.Meta.DocumentTitle,
				URL:       ch.Meta.DocumentURL,
				Relevance: ch.Relevance,
			})
		}
		block.texts = append(block.texts, ch.Text)
	}

	var parts []string
	for _, id := range order {
		block := blocks[id]
		parts = append(parts, block.header+"\n"+strings.Join(block.texts, "\n\n"))
	}
	return strings.Join(parts, "\n\n"), sources
}
