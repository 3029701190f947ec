package retriever

import (
	"context"
	"fmt"
	"log/slog"

	"mailrag/internal/chunk"
	"mailrag/internal/contextutil"
	"mailrag/internal/timerange"
)

// TemporalRetriever keeps semantically relevant chunks that fall inside a time window.
type TemporalRetriever struct {
	search SemanticSearch
	cfg    Config
	logger *slog.Logger
}

// NewTemporalRetriever creates a temporal retriever.
func NewTemporalRetriever(search SemanticSearch, cfg Config, logger *slog.Logger) *TemporalRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &TemporalRetriever{search: search, cfg: cfg.withDefaults(), logger: logger}
}

// Retrieve returns up to topK chunks dated within timeExpr, newest first.
// Unknown or empty expressions cover the last seven days.
func (r *TemporalRetriever) Retrieve(ctx context.Context, query, timeExpr string, topK int) ([]chunk.Chunk, error) {
	logger := contextutil.LoggerFromContextOr(ctx, r.logger)

	rng := timerange.Resolve(timeExpr, r.cfg.Now())
	candidates, err := r.search.Search(ctx, query, r.cfg.overFetch(topK))
	if err != nil {
		return nil, fmt.Errorf("failed to search temporal candidates: %w", err)
	}
	candidates = chunk.FilterDocType(candidates, r.cfg.DocType)

	out := FilterTimeRange(candidates, rng)
	out = truncate(out, topK)
	out = tagAll(out, TagTemporal)
	chunk.SortByDate(out, true)

	logger.InfoContext(ctx, "temporal retrieval complete",
		"time_expr", timeExpr,
		"range", rng.String(),
		"candidates", len(candidates),
		"chunks", len(out),
	)
	return out, nil
}

// FilterTimeRange keeps the chunks whose date falls inside rng. Undated chunks are dropped.
func FilterTimeRange(chunks []chunk.Chunk, rng timerange.Range) []chunk.Chunk {
	out := make([]chunk.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if rng.ContainsChunk(c) {
			out = append(out, c)
		}
	}
	return out
}
