// Package orchestrator runs classify, select, retrieve and assemble for one query.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"mailrag/internal/assembler"
	"mailrag/internal/chunk"
	"mailrag/internal/contextutil"
	"mailrag/internal/intent"
	"mailrag/internal/metrics"
	"mailrag/internal/strategy"
)

// maxSubjects caps the subjects listed in result metadata.
const maxSubjects = 5

// defaultTopK maps an intent to the result count used when the caller gives none.
var defaultTopK = map[intent.Kind]int{
	intent.ThreadSummary:    20,
	intent.AggregationQuery: 20,
	intent.TemporalQuery:    15,
	intent.SenderQuery:      12,
	intent.DecisionTracking: 12,
	intent.ActionItems:      12,
	intent.FactualLookup:    10,
}

const fallbackTopK = 10

// TopKFor returns the default result count for an intent.
func TopKFor(k intent.Kind) int {
	if n, ok := defaultTopK[k]; ok {
		return n
	}
	return fallbackTopK
}

// Classifier detects the intent of a query.
type Classifier interface {
	Detect(ctx context.Context, query string) intent.Intent
}

// Selector picks a strategy for an intent.
type Selector interface {
	Select(in intent.Intent) strategy.Strategy
}

// ThreadRetriever returns whole conversations.
type ThreadRetriever interface {
	Retrieve(ctx context.Context, query string, topThreads, daysBack int) ([]chunk.Chunk, error)
}

// TemporalRetriever returns chunks inside a time window.
type TemporalRetriever interface {
	Retrieve(ctx context.Context, query, timeExpr string, topK int) ([]chunk.Chunk, error)
}

// SenderRetriever returns chunks from one sender.
type SenderRetriever interface {
	Retrieve(ctx context.Context, query, senderName string, topK int) ([]chunk.Chunk, error)
}

// MultiAspectRetriever applies every filter the intent carries.
type MultiAspectRetriever interface {
	Retrieve(ctx context.Context, query string, in intent.Intent, topK int) ([]chunk.Chunk, error)
}

// Assembler builds the context string.
type Assembler interface {
	Assemble(ctx context.Context, chunks []chunk.Chunk, in intent.Intent, maxTokens int) string
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Classifier  Classifier
	Selector    Selector
	Thread      ThreadRetriever
	Temporal    TemporalRetriever
	Sender      SenderRetriever
	MultiAspect MultiAspectRetriever
	Assembler   Assembler
	// Metrics is optional.
	Metrics *metrics.Collector
}

// Config holds orchestration settings.
type Config struct {
	// TopThreads is how many threads the thread strategy expands.
	TopThreads int
	// DocType is reported in the applied filters.
	DocType string
}

// DateRange is the span of dates covered by a result.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Metadata describes how a result was produced.
type Metadata struct {
	ChunkCount     int           `json:"chunk_count"`
	StrategyUsed   strategy.Name `json:"strategy_used"`
	FiltersApplied []string      `json:"filters_applied"`
	DateRange      *DateRange    `json:"date_range,omitempty"`
	UniqueSenders  []string      `json:"unique_senders"`
	UniqueSubjects []string      `json:"unique_subjects"`
}

// Result is everything produced for one query.
type Result struct {
	Chunks   []chunk.Chunk     `json:"chunks"`
	Context  string            `json:"context"`
	Intent   intent.Intent     `json:"intent"`
	Strategy strategy.Strategy `json:"strategy"`
	Metadata Metadata          `json:"metadata"`
}

// Orchestrator is the retrieval façade.
type Orchestrator struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger
}

// New creates an orchestrator.
func New(deps Deps, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.TopThreads <= 0 {
		cfg.TopThreads = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{deps: deps, cfg: cfg, logger: logger}
}

// Retrieve classifies the query, runs the matching retriever and assembles the context.
// topK <= 0 derives the count from the intent; maxTokens 0 leaves the context unbounded.
// The only error is a retriever failure, typically wrapping retriever.ErrUnavailable.
func (o *Orchestrator) Retrieve(ctx context.Context, query string, topK, maxTokens int) (*Result, error) {
	logger := contextutil.LoggerFromContextOr(ctx, o.logger)
	start := time.Now()

	in := o.deps.Classifier.Detect(ctx, query)
	o.deps.Metrics.RecordIntent(string(in.Primary), in.DetectionMethod)

	strat := o.deps.Selector.Select(in)
	if !strat.Primary.Valid() {
		logger.WarnContext(ctx, "unknown strategy, falling back to multi-aspect", "strategy", strat.Primary)
		strat.Primary = strategy.MultiAspect
	}
	o.deps.Metrics.RecordStrategy(string(strat.Primary), strat.Reason)

	if topK <= 0 {
		topK = TopKFor(in.Primary)
	}

	logger.InfoContext(ctx, "retrieval started",
		"intent", in.Primary,
		"confidence", in.Confidence,
		"detection_method", in.DetectionMethod,
		"strategy", strat.Primary,
		"reason", strat.Reason,
		"top_k", topK,
	)

	chunks, filters, err := o.dispatch(ctx, query, in, strat, topK)
	if err != nil {
		o.deps.Metrics.RecordRetrievalError(string(strat.Primary))
		logger.ErrorContext(ctx, "retrieval failed", "strategy", strat.Primary, "error", err)
		return nil, fmt.Errorf("failed to retrieve with %s strategy: %w", strat.Primary, err)
	}
	if chunks == nil {
		chunks = []chunk.Chunk{}
	}

	contextText := o.deps.Assembler.Assemble(ctx, chunks, in, maxTokens)
	o.deps.Metrics.RecordContextTokens(assembler.EstimateTokens(contextText))
	o.deps.Metrics.RecordRetrieval(string(strat.Primary), len(chunks), time.Since(start))

	result := &Result{
		Chunks:   chunks,
		Context:  contextText,
		Intent:   in,
		Strategy: strat,
		Metadata: buildMetadata(chunks, strat.Primary, filters),
	}

	logger.InfoContext(ctx, "retrieval complete",
		"strategy", strat.Primary,
		"chunks", len(chunks),
		"context_tokens", assembler.EstimateTokens(contextText),
		"duration", time.Since(start),
	)
	return result, nil
}

// dispatch calls the retriever for strat with its own call shape and reports the filters it applied.
func (o *Orchestrator) dispatch(ctx context.Context, query string, in intent.Intent, strat strategy.Strategy, topK int) ([]chunk.Chunk, []string, error) {
	filters := []string{}
	if o.cfg.DocType != "" {
		filters = append(filters, "doc_type:"+o.cfg.DocType)
	}

	switch strat.Primary {
	case strategy.Thread:
		if in.Metadata.DaysBack > 0 {
			filters = append(filters, fmt.Sprintf("days_back:%d", in.Metadata.DaysBack))
		}
		chunks, err := o.deps.Thread.Retrieve(ctx, query, o.cfg.TopThreads, in.Metadata.DaysBack)
		return chunks, filters, err

	case strategy.Sender:
		filters = append(filters, "sender:"+strat.Params.Sender)
		chunks, err := o.deps.Sender.Retrieve(ctx, query, strat.Params.Sender, topK)
		return chunks, filters, err

	case strategy.Temporal:
		filters = append(filters, "time_range:"+timeExprOrDefault(strat.Params.TimeRange))
		chunks, err := o.deps.Temporal.Retrieve(ctx, query, strat.Params.TimeRange, topK)
		return chunks, filters, err

	default:
		if in.Primary == intent.ThreadSummary {
			filters = append(filters, "thread")
		} else {
			if in.Metadata.Sender != "" {
				filters = append(filters, "sender:"+in.Metadata.Sender)
			}
			if in.Metadata.TimeRange != "" {
				filters = append(filters, "time_range:"+in.Metadata.TimeRange)
			}
		}
		chunks, err := o.deps.MultiAspect.Retrieve(ctx, query, in, topK)
		return chunks, filters, err
	}
}

func timeExprOrDefault(expr string) string {
	if expr == "" {
		return "default"
	}
	return expr
}

func buildMetadata(chunks []chunk.Chunk, used strategy.Name, filters []string) Metadata {
	meta := Metadata{
		ChunkCount:     len(chunks),
		StrategyUsed:   used,
		FiltersApplied: filters,
		UniqueSenders:  []string{},
		UniqueSubjects: []string{},
	}

	var first, last time.Time
	dated := false
	senders := make(map[string]struct{})
	subjects := make(map[string]struct{})
	for _, c := range chunks {
		if d, ok := c.Date(); ok {
			if !dated || d.Before(first) {
				first = d
			}
			if !dated || d.After(last) {
				last = d
			}
			dated = true
		}

		sender := c.SenderName()
		if sender == "" {
			sender = c.Sender()
		}
		if sender != "" {
			if _, seen := senders[sender]; !seen {
				senders[sender] = struct{}{}
				meta.UniqueSenders = append(meta.UniqueSenders, sender)
			}
		}

		if subject := c.ThreadKey(); subject != "" && len(meta.UniqueSubjects) < maxSubjects {
			if _, seen := subjects[subject]; !seen {
				subjects[subject] = struct{}{}
				meta.UniqueSubjects = append(meta.UniqueSubjects, subject)
			}
		}
	}
	sort.Strings(meta.UniqueSenders)

	if dated {
		meta.DateRange = &DateRange{
			Start: first.Format("2006-01-02"),
			End:   last.Format("2006-01-02"),
		}
	}
	return meta
}
