package retriever

import (
	"context"
	"fmt"
	"log/slog"

	"mailrag/internal/chunk"
	"mailrag/internal/contextutil"
	"mailrag/internal/intent"
	"mailrag/internal/timerange"
)

// multiAspectThreads is the number of threads fetched when a multi-aspect query is really a thread summary.
const multiAspectThreads = 2

// MultiAspectRetriever combines the sender and time filters in one pass over a single search.
type MultiAspectRetriever struct {
	search SemanticSearch
	thread *ThreadRetriever
	cfg    Config
	logger *slog.Logger
}

// NewMultiAspectRetriever creates a multi-aspect retriever that delegates thread summaries to thread.
func NewMultiAspectRetriever(search SemanticSearch, thread *ThreadRetriever, cfg Config, logger *slog.Logger) *MultiAspectRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiAspectRetriever{search: search, thread: thread, cfg: cfg.withDefaults(), logger: logger}
}

// Retrieve applies every filter the intent carries: sender first, then time range.
func (r *MultiAspectRetriever) Retrieve(ctx context.Context, query string, in intent.Intent, topK int) ([]chunk.Chunk, error) {
	logger := contextutil.LoggerFromContextOr(ctx, r.logger)

	if in.Primary == intent.ThreadSummary && r.thread != nil {
		logger.DebugContext(ctx, "multi-aspect delegating to thread retrieval")
		return r.thread.Retrieve(ctx, query, multiAspectThreads, in.Metadata.DaysBack)
	}

	candidates, err := r.search.Search(ctx, query, r.cfg.overFetch(topK))
	if err != nil {
		return nil, fmt.Errorf("failed to search multi-aspect candidates: %w", err)
	}
	out := chunk.FilterDocType(candidates, r.cfg.DocType)

	filters := make([]string, 0, 2)
	if in.Metadata.Sender != "" {
		out = FilterSender(out, in.Metadata.Sender)
		filters = append(filters, "sender")
	}
	if in.Metadata.TimeRange != "" {
		out = FilterTimeRange(out, timerange.Resolve(in.Metadata.TimeRange, r.cfg.Now()))
		filters = append(filters, "time_range")
	}

	out = truncate(out, topK)
	tagged := make([]chunk.Chunk, len(out))
	for i, c := range out {
		tagged[i] = c.TaggedIfMissing(TagMultiAspect)
	}
	if in.HasTemporalSignal() {
		chunk.SortByDate(tagged, true)
	}

	logger.InfoContext(ctx, "multi-aspect retrieval complete",
		"filters", filters,
		"candidates", len(candidates),
		"chunks", len(tagged),
	)
	return tagged, nil
}
