// Package main is the runbookd CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/opsline/runbookd/internal/answer"
	"github.com/opsline/runbookd/internal/config"
	"github.com/opsline/runbookd/internal/embedding"
	"github.com/opsline/runbookd/internal/indexer"
	"github.com/opsline/runbookd/internal/models"
	"github.com/opsline/runbookd/internal/search"
	"github.com/opsline/runbookd/internal/server"
	"github.com/opsline/runbookd/internal/source"
	"github.com/opsline/runbookd/internal/storage"
	"github.com/opsline/runbookd/internal/vector"
	"github.com/opsline/runbookd/internal/watcher"
	"github.com/opsline/runbookd/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/runbookd/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used, so "runbookd server" from the project dir picks up the local
// config. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// API keys live in the environment; a local .env is a convenience for
	// development and absent in production.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "query":
		runQuery()
	case "index":
		runIndex()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("runbookd version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	reindex := func(ctx context.Context) error {
		return reindexFromExport(ctx, cfg, components, logger)
	}

	// A fresh deployment has no index yet; build one from the export before
	// accepting traffic rather than serve "no coverage" for everything.
	if components.VectorIndex.Count() == 0 {
		if err := reindex(context.Background()); err != nil {
			logger.Warn("initial indexing failed, starting degraded", zap.Error(err))
		}
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Source.Watch {
		watchOpts := []watcher.Option{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc := watcher.NewWatcher(cfg.Source.RunbooksPath, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			if err := reindex(ctx); err != nil {
				logger.Warn("watch reindex failed", zap.Error(err))
			}
		}, watchOpts...)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	srv := server.NewServer(components.Engine, components.Pipeline, reindex, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if cfg.Storage.VectorIndexPath != "" {
		if err := components.VectorIndex.Save(cfg.Storage.VectorIndexPath); err != nil {
			logger.Warn("vector index save failed", zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(err))
		}
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use local storage when server is not running)")
	topK := fs.Int("top-k", 0, "number of chunks to retrieve (0 = config default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: runbookd query [flags] <question>")
		os.Exit(1)
	}
	req := &models.QueryRequest{
		Query: strings.TrimSpace(strings.Join(fs.Args(), " ")),
		TopK:  *topK,
	}

	var response *models.Answer
	if *serverURL != "" {
		resp, err := queryViaHTTP(*serverURL, req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
			os.Exit(1)
		}
		response = resp
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()

		components, err := initializeComponents(cfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize", zap.Error(err))
		}
		defer components.Close()

		response, err = components.Engine.Answer(context.Background(), req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
			os.Exit(1)
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(response); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Println(response.Answer)
		if len(response.Sources) > 0 {
			fmt.Println("\nSources:")
			for _, src := range response.Sources {
				fmt.Printf("  %.2f  %s\n        %s\n", src.Relevance, src.Title, src.URL)
			}
		}
		if response.SuggestCreation && response.DraftOutline != "" {
			fmt.Println("\nSuggested runbook outline:")
			fmt.Println(response.DraftOutline)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func queryViaHTTP(serverURL string, req *models.QueryRequest) (*models.Answer, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/query", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.Answer
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	runbooksPath := fs.String("runbooks", "", "runbook export path (default from config)")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *runbooksPath != "" {
		cfg.Source.RunbooksPath = *runbooksPath
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	if err := reindexFromExport(context.Background(), cfg, components, logger); err != nil {
		fmt.Printf("Indexing failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Indexed %d chunks from %s\n", components.VectorIndex.Count(), cfg.Source.RunbooksPath)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use local storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var stats models.Stats
	if *serverURL != "" {
		resp, err := http.Get(*serverURL + "/api/v1/stats")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
			fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		s, err := components.Engine.Stats(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		stats = *s
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(stats); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("documents:        %d\n", stats.TotalDocuments)
		fmt.Printf("chunks:           %d\n", stats.TotalChunks)
		fmt.Printf("embedding_model:  %s\n", stats.EmbeddingModel)
		fmt.Printf("index_available:  %t\n", stats.IndexAvailable)
		fmt.Printf("search_type:      %s\n", stats.SearchType)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// reindexFromExport rebuilds the index from the configured export file and
// persists the result.
func reindexFromExport(ctx context.Context, cfg *config.Config, components *Components, logger *zap.Logger) error {
	docs, err := source.LoadRunbooks(cfg.Source.RunbooksPath)
	if err != nil {
		return fmt.Errorf("load runbooks: %w", err)
	}
	result, err := components.Pipeline.IndexAll(ctx, docs)
	if err != nil {
		return err
	}
	logger.Info("indexing complete",
		zap.Int("documents_processed", result.DocumentsProcessed),
		zap.Int("documents_skipped", result.DocumentsSkipped),
		zap.Int("chunks_indexed", result.ChunksIndexed),
		zap.Int("batch_errors", len(result.BatchErrors)),
	)
	if cfg.Storage.VectorIndexPath != "" {
		if err := components.Pipeline.SaveIndex(cfg.Storage.VectorIndexPath); err != nil {
			logger.Warn("vector index save failed", zap.Error(err))
		}
	}
	return nil
}

// Components holds initialized services.
type Components struct {
	Storage     storage.Storage
	Embedder    embedding.Embedder
	VectorIndex vector.Index
	Engine      *search.Engine
	Pipeline    *indexer.Pipeline
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.VectorIndex != nil {
		_ = c.VectorIndex.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Without a configured provider the mock embedder keeps development and
	// tests self-contained; its vectors are deterministic but meaningless.
	var embedder embedding.Embedder
	if cfg.Embedding.BaseURL == "" {
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	} else {
		embedder = embedding.NewHTTPEmbedder(embedding.HTTPConfig{
			BaseURL:    cfg.Embedding.BaseURL,
			APIKeyEnv:  cfg.Embedding.APIKeyEnv,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			BatchSize:  cfg.Embedding.BatchSize,
			Timeout:    time.Duration(cfg.Embedding.TimeoutS) * time.Second,
		})
	}
	if cfg.Embedding.CacheSize > 0 {
		embedder = embedding.NewCachedEmbedder(embedder, cfg.Embedding.CacheSize)
	}

	vectorIndex, err := vector.NewMemoryIndex(cfg.Embedding.Dimensions, embedder.ModelName())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	if cfg.Storage.VectorIndexPath != "" {
		if loadErr := vectorIndex.Load(cfg.Storage.VectorIndexPath); loadErr != nil {
			logger.Warn("vector index load skipped, will rebuild",
				zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(loadErr))
		}
	}
	logger.Info("vector index initialized",
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.String("model", embedder.ModelName()),
		zap.Int("records", vectorIndex.Count()),
	)

	engineOpts := []search.Option{search.WithLogger(logger)}
	if cfg.Synthesis.Enabled {
		engineOpts = append(engineOpts, search.WithSynthesizer(answer.NewOpenAIClient(answer.OpenAIConfig{
			BaseURL:   cfg.Synthesis.BaseURL,
			APIKeyEnv: cfg.Synthesis.APIKeyEnv,
			Model:     cfg.Synthesis.Model,
			Timeout:   time.Duration(cfg.Synthesis.TimeoutS) * time.Second,
		})))
	}
	engine := search.NewEngine(store, embedder, vectorIndex, &cfg.Search, engineOpts...)
	pipeline := indexer.NewPipeline(store, embedder, vectorIndex, &cfg.Index, indexer.WithLogger(logger))

	return &Components{
		Storage:     store,
		Embedder:    embedder,
		VectorIndex: vectorIndex,
		Engine:      engine,
		Pipeline:    pipeline,
	}, nil
}

func printUsage() {
	fmt.Println(`runbookd - Runbook assistant with semantic retrieval

Usage:
  runbookd server [flags]          Start the HTTP server
  runbookd query [flags] <text>    Ask a question against the indexed runbooks
  runbookd index [flags]           Rebuild the index from the runbook export
  runbookd status [flags]          Show corpus and index status
  runbookd version                 Show version
  runbookd help                    Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/runbookd/config.yaml)
  --debug            Enable debug logging

Query Flags:
  --config string    Config file path (for local mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for local storage.
  --top-k int        Number of chunks to retrieve (0 = config default)
  --output string    Output format: text or json (default: text)

Index Flags:
  --config string    Config file path
  --runbooks string  Runbook export path (default from config)

Status Flags:
  --config string    Config file path (for local mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for local storage.
  --output string    Output format: text or json (default: text)

Examples:
  runbookd server
  runbookd query "how do I restart a stuck jenkins pipeline"
  runbookd query --output json "postgres connection timeouts"
  runbookd index --runbooks ./runbooks.json
  runbookd status`)
}
