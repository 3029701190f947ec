package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mailrag/internal/assembler"
	"mailrag/internal/config"
	"mailrag/internal/http"
	"mailrag/internal/intent"
	"mailrag/internal/llm"
	"mailrag/internal/metrics"
	"mailrag/internal/orchestrator"
	"mailrag/internal/retriever"
	"mailrag/internal/search"
	"mailrag/internal/service"
	"mailrag/internal/storage"
	"mailrag/internal/strategy"
	"mailrag/internal/vectorstore"
)

// General API information
//
// This API retrieves LLM-ready context from an indexed email corpus.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: MailRAG API
//   description: |
//     Intent-aware retrieval over indexed emails. A query is classified, routed to a
//     thread, temporal, sender or multi-aspect retriever and assembled into a context block.
//   version: 1.0.0
// schemes:
//   - http
// consumes:
//   - application/json
// produces:
//   - application/json

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Fatalf("Invalid LOG_LEVEL %q: %v", cfg.LogLevel, err)
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", level.String(), "format", cfg.LogFormat)

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	chunkRepo := storage.NewChunkRepo(db)
	slog.Info("Database initialized", "path", cfg.DBPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Qdrant vector store
	vectorStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL, logger)
	if err != nil {
		log.Fatalf("Failed to create Qdrant client: %v", err)
	}

	// Ensure collection exists with correct vector size
	if err := vectorStore.EnsureCollection(ctx, cfg.QdrantCollection, cfg.QdrantVectorSize); err != nil {
		log.Fatalf("Failed to ensure Qdrant collection: %v", err)
	}
	slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "vector_size", cfg.QdrantVectorSize)

	// Validate embedding client vector size (fail-fast)
	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.QdrantVectorSize)
	testEmbeddings, err := embedder.EmbedTexts(ctx, []string{"test"})
	if err != nil {
		log.Fatalf("Failed to validate embedding client: %v", err)
	}
	if len(testEmbeddings) == 0 || len(testEmbeddings[0]) != cfg.QdrantVectorSize {
		log.Fatalf("Embedding vector size mismatch: expected %d", cfg.QdrantVectorSize)
	}
	slog.Info("Embedding client validated", "vector_size", cfg.QdrantVectorSize)

	// LLM fallback for intent classification
	var completer intent.Completer
	if cfg.LLMFallbackEnabled {
		switch cfg.LLMProvider {
		case config.ProviderOpenAI:
			completer = llm.NewOpenAIClient(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModelName, cfg.LLMTimeout, cfg.LLMMaxRetries)
		default:
			completer = llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName,
				llm.WithTimeout(cfg.LLMTimeout),
				llm.WithMaxRetries(cfg.LLMMaxRetries),
				llm.WithRateLimit(cfg.LLMRateLimit),
			)
		}
		slog.Info("LLM fallback enabled", "provider", cfg.LLMProvider, "model", cfg.LLMModelName)
	}

	tuning := cfg.Tuning
	classifier := intent.NewClassifier(completer, intent.Config{
		LLMEnabled:   cfg.LLMFallbackEnabled,
		LLMThreshold: cfg.LLMConfidenceThreshold,
	}, logger)
	selector := strategy.NewSelector(tuning.LowConfidenceThreshold, tuning.MultiAspectMinAspects)

	searcher := search.NewSearcher(embedder, vectorStore, chunkRepo, search.Config{
		Collection: cfg.QdrantCollection,
		DocType:    cfg.DocType,
		Timeout:    cfg.SearchTimeout,
		MaxRetries: cfg.SearchMaxRetries,
	}, logger)

	retrieverCfg := retriever.Config{
		DocType:         cfg.DocType,
		SeedK:           tuning.SeedK,
		OverFetchFactor: tuning.OverFetchFactor,
		OverFetchCap:    tuning.OverFetchCap,
	}
	threadRetriever := retriever.NewThreadRetriever(searcher, chunkRepo, retrieverCfg, logger)

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	orch := orchestrator.New(orchestrator.Deps{
		Classifier:  classifier,
		Selector:    selector,
		Thread:      threadRetriever,
		Temporal:    retriever.NewTemporalRetriever(searcher, retrieverCfg, logger),
		Sender:      retriever.NewSenderRetriever(searcher, retrieverCfg, logger),
		MultiAspect: retriever.NewMultiAspectRetriever(searcher, threadRetriever, retrieverCfg, logger),
		Assembler: assembler.New(assembler.Config{
			DedupThreshold: tuning.DedupThreshold,
			MaxThreads:     tuning.MaxContextThreads,
		}, logger),
		Metrics: collector,
	}, orchestrator.Config{
		TopThreads: tuning.TopThreads,
		DocType:    cfg.DocType,
	}, logger)
	slog.Info("Retrieval orchestrator initialized")

	retrievalService := service.NewRetrievalService(orch, tuning.DefaultMaxTokens, logger)

	// Create router with dependencies
	router := http.NewRouter(&http.Deps{
		RetrievalService: retrievalService,
		VectorStore:      vectorStore,
		Chunks:           chunkRepo,
		Collection:       cfg.QdrantCollection,
		Gatherer:         prometheus.DefaultGatherer,
	})

	addr := ":" + cfg.APIPort
	server := &nethttp.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Starting API server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			log.Fatalf("API server failed to start: %v", err)
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down API server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}
