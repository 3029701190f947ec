// Package search implements semantic search over the email corpus: embed the query,
// query the vector index, then hydrate the hits from the chunk store.
package search

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_search.go -package=mocks mailrag/internal/search Embedder,ChunkLookup

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v5"

	"mailrag/internal/chunk"
	"mailrag/internal/contextutil"
	"mailrag/internal/retriever"
	"mailrag/internal/vectorstore"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultRetryBackoff = 200 * time.Millisecond
	maxRetries          = 1
)

// Embedder turns a query into a vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// ChunkLookup hydrates vector hits into chunks.
type ChunkLookup interface {
	GetByIDs(ctx context.Context, ids []string) ([]chunk.Chunk, error)
}

// Config holds the searcher settings.
type Config struct {
	Collection string
	// DocType restricts the vector query to points whose payload doc_type matches. Empty means no filter.
	DocType string
	// Timeout bounds each embedding and vector query attempt.
	Timeout time.Duration
	// MaxRetries is clamped to [0, 1].
	MaxRetries int
}

// Searcher is the semantic search used by every retriever.
type Searcher struct {
	embedder Embedder
	vectors  vectorstore.VectorStore
	chunks   ChunkLookup
	cfg      Config
	logger   *slog.Logger
}

// NewSearcher creates a searcher.
func NewSearcher(embedder Embedder, vectors vectorstore.VectorStore, chunks ChunkLookup, cfg Config, logger *slog.Logger) *Searcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.MaxRetries = max(0, min(cfg.MaxRetries, maxRetries))
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{
		embedder: embedder,
		vectors:  vectors,
		chunks:   chunks,
		cfg:      cfg,
		logger:   logger,
	}
}

// Search returns up to topK chunks ordered by descending similarity, ties broken by ID.
// Failures to embed, query or hydrate wrap retriever.ErrUnavailable.
func (s *Searcher) Search(ctx context.Context, query string, topK int) ([]chunk.Chunk, error) {
	logger := contextutil.LoggerFromContextOr(ctx, s.logger)

	if topK <= 0 {
		return []chunk.Chunk{}, nil
	}

	vector, err := retry(ctx, s.cfg, func(ctx context.Context) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, query)
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to embed query", "error", err)
		return nil, fmt.Errorf("%w: failed to embed query: %w", retriever.ErrUnavailable, err)
	}

	var filters map[string]any
	if s.cfg.DocType != "" {
		filters = map[string]any{chunk.KeyDocType: s.cfg.DocType}
	}

	hits, err := retry(ctx, s.cfg, func(ctx context.Context) ([]vectorstore.SearchResult, error) {
		return s.vectors.Search(ctx, s.cfg.Collection, vector, topK, filters)
	})
	if err != nil {
		logger.ErrorContext(ctx, "vector search failed", "collection", s.cfg.Collection, "error", err)
		return nil, fmt.Errorf("%w: failed to search vectors: %w", retriever.ErrUnavailable, err)
	}
	if len(hits) == 0 {
		return []chunk.Chunk{}, nil
	}

	ids := make([]string, 0, len(hits))
	scores := make(map[string]float32, len(hits))
	for _, h := range hits {
		if h.PointID == "" {
			continue
		}
		if _, dup := scores[h.PointID]; dup {
			continue
		}
		ids = append(ids, h.PointID)
		scores[h.PointID] = h.Score
	}

	chunks, err := s.chunks.GetByIDs(ctx, ids)
	if err != nil {
		logger.ErrorContext(ctx, "failed to hydrate search hits", "error", err)
		return nil, fmt.Errorf("%w: failed to load chunks: %w", retriever.ErrUnavailable, err)
	}
	if missing := len(ids) - len(chunks); missing > 0 {
		logger.WarnContext(ctx, "vector hits without stored chunk", "missing", missing)
	}

	for i := range chunks {
		chunks[i].Score = scores[chunks[i].ID]
	}
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Score != chunks[j].Score {
			return chunks[i].Score > chunks[j].Score
		}
		return chunks[i].ID < chunks[j].ID
	})
	if len(chunks) > topK {
		chunks = chunks[:topK]
	}

	logger.DebugContext(ctx, "semantic search completed", "top_k", topK, "hits", len(hits), "chunks", len(chunks))
	return chunks, nil
}

// retry runs op under a per-attempt timeout, retrying within the configured budget.
func retry[T any](ctx context.Context, cfg Config, op func(context.Context) (T, error)) (T, error) {
	return backoff.Retry(ctx, func() (T, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
		return op(attemptCtx)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(defaultRetryBackoff)),
		backoff.WithMaxTries(uint(cfg.MaxRetries+1)),
	)
}
