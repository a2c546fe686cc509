package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func newEmbeddingsServer(t *testing.T, dim int, requests *[][]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		*requests = append(*requests, req.Input)
		var resp embedResponse
		for i := range req.Input {
			// Encode the text length in the vector direction so order
			// survives normalization: vec[0]/vec[1] == len(text).
			vec := make([]float32, dim)
			vec[0] = float32(len(req.Input[i]))
			vec[1] = 1
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Index: i, Embedding: vec})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestHTTPEmbedder_SubBatching(t *testing.T) {
	var requests [][]string
	srv := newEmbeddingsServer(t, 4, &requests)
	defer srv.Close()

	e := NewHTTPEmbedder(HTTPConfig{BaseURL: srv.URL, Model: "test-model", Dimensions: 4, BatchSize: 2})
	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	out, err := e.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 5 {
		t.Fatalf("expected 5 vectors, got %d", len(out))
	}
	if len(requests) != 3 {
		t.Errorf("expected 3 provider calls for batch size 2, got %d", len(requests))
	}
	for i, text := range texts {
		ratio := out[i][0] / out[i][1]
		if diff := ratio - float32(len(text)); diff > 0.001 || diff < -0.001 {
			t.Errorf("vector %d out of order: direction ratio %f, want %d", i, ratio, len(text))
		}
	}
}

func TestHTTPEmbedder_DimensionMismatch(t *testing.T) {
	var requests [][]string
	srv := newEmbeddingsServer(t, 4, &requests)
	defer srv.Close()

	e := NewHTTPEmbedder(HTTPConfig{BaseURL: srv.URL, Dimensions: 8, BatchSize: 16})
	if _, err := e.EmbedBatch(context.Background(), []string{"a"}); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestHTTPEmbedder_ConcurrentLazyDimensions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var resp embedResponse
		for i := range req.Input {
			vec := make([]float32, 4)
			vec[0] = 1
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Index: i, Embedding: vec})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	// Dimension is unset, so the first response fills it in while other
	// goroutines embed and read Dimensions concurrently.
	e := NewHTTPEmbedder(HTTPConfig{BaseURL: srv.URL, BatchSize: 16})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Embed(context.Background(), "replica set stuck in rollout"); err != nil {
				t.Errorf("concurrent embed: %v", err)
			}
			if d := e.Dimensions(); d != 0 && d != 4 {
				t.Errorf("Dimensions() = %d during concurrent embeds", d)
			}
		}()
	}
	wg.Wait()
	if d := e.Dimensions(); d != 4 {
		t.Errorf("Dimensions() = %d after embeds, want 4", d)
	}
}

func TestHTTPEmbedder_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(HTTPConfig{BaseURL: srv.URL, BatchSize: 16})
	if _, err := e.Embed(context.Background(), "a"); err == nil {
		t.Error("expected error on 500 response")
	}
}

func TestHTTPEmbedder_EmptyBatch(t *testing.T) {
	e := NewHTTPEmbedder(HTTPConfig{BaseURL: "http://unused", BatchSize: 16})
	out, err := e.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if out != nil {
		t.Errorf("expected nil for empty batch, got %v", out)
	}
}
