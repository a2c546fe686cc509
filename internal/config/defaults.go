package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/runbookd/data/db/runbooks.db"
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = "/usr/local/var/runbookd/data/indices/chunks.idx"
	}
	if cfg.Source.RunbooksPath == "" {
		cfg.Source.RunbooksPath = "/usr/local/var/runbookd/data/runbooks.json"
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "http://localhost:11434/v1"
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "EMBEDDING_API_KEY"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "all-minilm"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 16
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.TimeoutS == 0 {
		cfg.Embedding.TimeoutS = 30
	}
	if cfg.Synthesis.BaseURL == "" {
		cfg.Synthesis.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Synthesis.APIKeyEnv == "" {
		cfg.Synthesis.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Synthesis.Model == "" {
		cfg.Synthesis.Model = "gpt-3.5-turbo"
	}
	if cfg.Synthesis.TimeoutS == 0 {
		cfg.Synthesis.TimeoutS = 30
	}
	if cfg.Index.ChunkSize == 0 {
		cfg.Index.ChunkSize = 400
	}
	if cfg.Index.ChunkOverlap == 0 {
		cfg.Index.ChunkOverlap = 50
	}
	if cfg.Index.DocumentBatchSize == 0 {
		cfg.Index.DocumentBatchSize = 10
	}
	if cfg.Index.MinDocumentChars == 0 {
		cfg.Index.MinDocumentChars = 50
	}
	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = 5
	}
	if cfg.Search.RelevanceThreshold == 0 {
		cfg.Search.RelevanceThreshold = 0.6
	}
}
