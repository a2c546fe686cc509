// Package config provides configuration loading and structs for the runbookd server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Source    SourceConfig    `yaml:"source"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Synthesis SynthesisConfig `yaml:"synthesis"`
	Index     IndexConfig     `yaml:"index"`
	Search    SearchConfig    `yaml:"search"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the document database and vector index.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path"`
	VectorIndexPath string `yaml:"vector_index_path"`
}

// SourceConfig points at the runbook corpus export produced by the
// document source connector.
type SourceConfig struct {
	RunbooksPath string `yaml:"runbooks_path"`
	// Watch enables re-indexing when the export file changes on disk.
	Watch bool `yaml:"watch"`
}

// EmbeddingConfig holds embedding provider settings. Model identifies the
// embedding model; vectors produced by different models are not comparable,
// so the model name is recorded alongside the persisted index.
type EmbeddingConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKeyEnv  string `yaml:"api_key_env"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	// BatchSize bounds the number of texts per provider call.
	BatchSize int `yaml:"batch_size"`
	CacheSize int `yaml:"cache_size"`
	TimeoutS  int `yaml:"timeout_seconds"`
}

// SynthesisConfig holds answer synthesizer (LLM) settings.
type SynthesisConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
	TimeoutS  int    `yaml:"timeout_seconds"`
	// Enabled toggles the external synthesizer; when false, answers are
	// composed locally from the top-ranked chunks.
	Enabled bool `yaml:"enabled"`
}

// IndexConfig holds indexing pipeline settings.
type IndexConfig struct {
	// ChunkSize and ChunkOverlap are in words.
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	// DocumentBatchSize is the number of documents processed per pipeline batch.
	DocumentBatchSize int `yaml:"document_batch_size"`
	// MinDocumentChars rejects documents whose cleaned body is shorter.
	MinDocumentChars int `yaml:"min_document_chars"`
}

// SearchConfig holds query-time retrieval settings.
type SearchConfig struct {
	TopK int `yaml:"top_k"`
	// RelevanceThreshold filters retrieved chunks; at or below it, results
	// are treated as noise and the engine reports no coverage.
	RelevanceThreshold float64 `yaml:"relevance_threshold"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed, or fails validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.VectorIndexPath = expandPath(cfg.Storage.VectorIndexPath, configDir)
	cfg.Source.RunbooksPath = expandPath(cfg.Source.RunbooksPath, configDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants that must hold before any component is built.
// Violations are configuration errors and fatal at startup.
func (c *Config) Validate() error {
	if c.Index.ChunkSize <= 0 {
		return fmt.Errorf("config: chunk_size must be positive, got %d", c.Index.ChunkSize)
	}
	if c.Index.ChunkOverlap < 0 {
		return fmt.Errorf("config: chunk_overlap must be non-negative, got %d", c.Index.ChunkOverlap)
	}
	if c.Index.ChunkOverlap >= c.Index.ChunkSize {
		return fmt.Errorf("config: chunk_overlap (%d) must be less than chunk_size (%d), otherwise the chunk window never advances",
			c.Index.ChunkOverlap, c.Index.ChunkSize)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("config: embedding dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("config: embedding batch_size must be positive, got %d", c.Embedding.BatchSize)
	}
	if c.Search.RelevanceThreshold <= 0 || c.Search.RelevanceThreshold > 1 {
		return fmt.Errorf("config: relevance_threshold must be in (0, 1], got %f", c.Search.RelevanceThreshold)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
