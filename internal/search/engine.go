// Package search implements the query engine: retrieval, ranking, context
// assembly, and answer synthesis.
package search

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/opsline/runbookd/internal/answer"
	"github.com/opsline/runbookd/internal/config"
	"github.com/opsline/runbookd/internal/embedding"
	"github.com/opsline/runbookd/internal/models"
	"github.com/opsline/runbookd/internal/storage"
	"github.com/opsline/runbookd/internal/taxonomy"
	"github.com/opsline/runbookd/internal/vector"
	"github.com/opsline/runbookd/pkg/utils"
)

const shortQueryAnswer = "Please ask a more specific question so I can search the runbooks. " +
	"For example: \"how do I restart a stuck Jenkins pipeline?\""

const errorAnswer = "Sorry, I encountered an error while processing your query. Please try again."

// Engine answers questions against the indexed runbook corpus. Every query
// produces an answer: degraded paths (unavailable index, failed synthesis)
// fill in a fallback rather than surface an error.
type Engine struct {
	storage  storage.Storage
	embedder embedding.Embedder
	index    vector.Index
	synth    answer.Synthesizer
	cfg      *config.SearchConfig
	logger   *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithSynthesizer sets the answer synthesizer. Without one, answers are
// composed locally from the retrieved context.
func WithSynthesizer(s answer.Synthesizer) Option {
	return func(e *Engine) { e.synth = s }
}

// NewEngine creates a query engine.
func NewEngine(store storage.Storage, embedder embedding.Embedder, index vector.Index, cfg *config.SearchConfig, opts ...Option) *Engine {
	e := &Engine{
		storage:  store,
		embedder: embedder,
		index:    index,
		cfg:      cfg,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Answer processes a query end to end. Queries below the minimum length get a
// canned response without touching the index. Retrieval failures are folded
// into an apology answer rather than returned: every query produces an
// answer-shaped response.
func (e *Engine) Answer(ctx context.Context, req *models.QueryRequest) (*models.Answer, error) {
	start := time.Now()
	req.Normalize(e.cfg.TopK)

	if req.TooShort() {
		return &models.Answer{
			Answer:         shortQueryAnswer,
			Sources:        []*models.Source{},
			Query:          req.Query,
			ProcessingTime: time.Since(start).Seconds(),
		}, nil
	}

	chunks, fallback, err := e.retrieve(ctx, req)
	if err != nil {
		e.logger.Error("retrieval failed", zap.Error(err))
		return &models.Answer{
			Answer:         errorAnswer,
			Sources:        []*models.Source{},
			Query:          req.Query,
			ProcessingTime: time.Since(start).Seconds(),
		}, nil
	}

	if len(chunks) == 0 {
		e.logger.Info("no coverage for query", zap.String("query", utils.Truncate(req.Query, 200)))
		return &models.Answer{
			Answer:          answer.NoCoverageAnswer(req.Query),
			Sources:         []*models.Source{},
			Query:           req.Query,
			SuggestCreation: true,
			DraftOutline:    taxonomy.Draft(req.Query),
			Fallback:        fallback,
			ProcessingTime:  time.Since(start).Seconds(),
		}, nil
	}

	contextText, sources := buildContext(chunks)
	text := e.synthesize(ctx, req.Query, contextText)

	return &models.Answer{
		Answer:         text,
		Sources:        sources,
		Query:          req.Query,
		ChunksFound:    len(chunks),
		Fallback:       fallback,
		ProcessingTime: time.Since(start).Seconds(),
	}, nil
}

// retrieve runs the vector search and threshold filter. When the index is
// unavailable it degrades to the substring scan over stored documents; the
// second return value reports which path served the results.
func (e *Engine) retrieve(ctx context.Context, req *models.QueryRequest) ([]*models.RetrievedChunk, bool, error) {
	if e.index == nil {
		chunks, err := e.fallbackSearch(ctx, req)
		return chunks, true, err
	}

	queryVector, err := e.embedder.Embed(ctx, req.Query)
	if err != nil {
		e.logger.Warn("query embedding failed, using fallback search", zap.Error(err))
		chunks, ferr := e.fallbackSearch(ctx, req)
		return chunks, true, ferr
	}

	hits, err := e.index.Query(ctx, queryVector, req.TopK)
	if err != nil {
		if errors.Is(err, vector.ErrUnavailable) {
			e.logger.Warn("vector index unavailable, using fallback search")
			chunks, ferr := e.fallbackSearch(ctx, req)
			return chunks, true, ferr
		}
		return nil, false, err
	}

	var chunks []*models.RetrievedChunk
	for _, h := range hits {
		relevance := vector.Relevance(h.Distance)
		// Strict: a chunk must exceed the threshold, not merely meet it.
		if relevance <= e.cfg.RelevanceThreshold {
			continue
		}
		chunks = append(chunks, &models.RetrievedChunk{
			Text:      h.Record.Text,
			Meta:      h.Record.Meta,
			Relevance: relevance,
			Rank:      len(chunks) + 1,
		})
	}
	e.logger.Debug("retrieved chunks",
		zap.String("query", utils.Truncate(req.Query, 200)),
		zap.Int("hits", len(hits)),
		zap.Int("above_threshold", len(chunks)))
	return chunks, false, nil
}

// synthesize produces the answer text from the assembled context, falling back
// to a local composition when no synthesizer is configured or the call fails.
func (e *Engine) synthesize(ctx context.Context, query, contextText string) string {
	if e.synth == nil {
		return answer.ComposeFallback(contextText)
	}
	text, err := e.synth.Synthesize(ctx, query, contextText)
	if err != nil {
		e.logger.Warn("synthesis failed, composing answer locally", zap.Error(err))
		return answer.ComposeFallback(contextText)
	}
	return text
}

// Stats reports the state of the indexed corpus.
func (e *Engine) Stats(ctx context.Context) (*models.Stats, error) {
	docs, err := e.storage.CountDocuments(ctx)
	if err != nil {
		return nil, err
	}
	stats := &models.Stats{
		TotalDocuments: docs,
		EmbeddingModel: e.embedder.ModelName(),
		SearchType:     "semantic",
	}
	if e.indexAvailable(ctx) {
		stats.IndexAvailable = true
		stats.TotalChunks = e.index.Count()
	} else {
		stats.SearchType = "fallback"
	}
	return stats, nil
}

// indexAvailable probes the index with an empty query.
func (e *Engine) indexAvailable(ctx context.Context) bool {
	if e.index == nil {
		return false
	}
	probe := make([]float32, e.embedder.Dimensions())
	_, err := e.index.Query(ctx, probe, 1)
	return err == nil
}
