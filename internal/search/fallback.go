package search

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/opsline/runbookd/internal/models"
	"github.com/opsline/runbookd/pkg/utils"
)

// fallbackBodyChars bounds the excerpt taken from a matched document when the
// degraded search serves results.
const fallbackBodyChars = 500

// fallbackSearch is the degraded path used when the vector index is
// unavailable: a case-insensitive substring scan over the stored documents.
// Matches carry a fixed relevance of 1.0 because containment has no gradient.
func (e *Engine) fallbackSearch(ctx context.Context, req *models.QueryRequest) ([]*models.RetrievedChunk, error) {
	docs, err := e.storage.ListDocuments(ctx, 0, 0)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.Join(strings.Fields(req.Query), " "))
	var chunks []*models.RetrievedChunk
	for _, doc := range docs {
		body := strings.Join(strings.Fields(doc.Body), " ")
		haystack := strings.ToLower(body + " " + doc.Title)
		if !strings.Contains(haystack, needle) {
			continue
		}
		excerpt := body
		if len(excerpt) > fallbackBodyChars {
			excerpt = excerpt[:fallbackBodyChars]
		}
		chunks = append(chunks, &models.RetrievedChunk{
			Text: excerpt,
			Meta: models.ChunkMeta{
				DocumentID:    doc.ID,
				DocumentTitle: doc.Title,
				DocumentURL:   doc.URL,
				ChunkIndex:    0,
				TotalChunks:   1,
				Space:         doc.Space,
			},
			Relevance: 1.0,
			Rank:      len(chunks) + 1,
		})
		if len(chunks) == req.TopK {
			break
		}
	}
	e.logger.Info("fallback search served query",
		zap.String("query", utils.Truncate(req.Query, 200)),
		zap.Int("matches", len(chunks)))
	return chunks, nil
}
