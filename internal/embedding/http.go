package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/opsline/runbookd/pkg/utils"
)

// HTTPEmbedder calls an OpenAI-compatible /embeddings endpoint. It splits its
// own calls into bounded sub-batches so callers may pass arbitrarily large
// batches without the provider seeing them.
type HTTPEmbedder struct {
	baseURL   string
	apiKey    string
	model     string
	batchSize int
	client    *http.Client

	// dimensions may be 0 until the first successful call fills it in;
	// concurrent indexing and querying share this embedder, so access is
	// guarded.
	mu         sync.Mutex
	dimensions int
}

// HTTPConfig configures an HTTPEmbedder.
type HTTPConfig struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	// Dimensions is the expected vector size; responses with a different
	// dimension are rejected as malformed.
	Dimensions int
	// BatchSize bounds texts per provider call.
	BatchSize int
	Timeout   time.Duration
}

// NewHTTPEmbedder creates an embedder for an OpenAI-compatible embeddings API.
// The API key is read from the environment variable named by APIKeyEnv; it may
// be empty for local providers that do not authenticate.
func NewHTTPEmbedder(cfg HTTPConfig) *HTTPEmbedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "all-minilm"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HTTPEmbedder{
		baseURL:    cfg.BaseURL,
		apiKey:     os.Getenv(cfg.APIKeyEnv),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		batchSize:  cfg.BatchSize,
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns an embedding for a single text.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in sub-batches of at most the configured size and
// returns vectors in input order. Any provider failure or malformed response
// fails the whole batch.
func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	result := make([][]float32, 0, len(texts))
	for _, batch := range subBatches(texts, e.batchSize) {
		vectors, err := e.embedOnce(ctx, batch)
		if err != nil {
			return nil, err
		}
		result = append(result, vectors...)
	}
	return result, nil
}

// observeDimension validates got against the known dimension, adopting it when
// none was configured. Returns the dimension to validate subsequent vectors
// against.
func (e *HTTPEmbedder) observeDimension(got int) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dimensions == 0 {
		e.dimensions = got
	}
	if got != e.dimensions {
		return 0, fmt.Errorf("embedding dimension mismatch: got %d, expected %d", got, e.dimensions)
	}
	return e.dimensions, nil
}

func (e *HTTPEmbedder) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embeddings request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embeddings request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embeddings request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("embeddings request failed: %s: %s", resp.Status, string(payload))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode embeddings response: %w", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings response length mismatch: got %d, expected %d", len(parsed.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embeddings response index out of range: %d", d.Index)
		}
		if _, err := e.observeDimension(len(d.Embedding)); err != nil {
			return nil, err
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("embeddings response missing vector for input %d", i)
		}
		// Providers differ on whether vectors arrive unit-length.
		utils.NormalizeL2(v)
	}
	return vectors, nil
}

// Dimensions returns the embedding dimension (0 until the first successful call
// when not configured explicitly).
func (e *HTTPEmbedder) Dimensions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimensions
}

// ModelName returns the configured model identifier.
func (e *HTTPEmbedder) ModelName() string {
	return e.model
}

// Close is a no-op for HTTPEmbedder.
func (e *HTTPEmbedder) Close() error {
	return nil
}
