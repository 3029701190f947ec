// Package assembler turns retrieved chunks into one clean, deduplicated,
// token-bounded context block with per-message attribution.
package assembler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"mailrag/internal/chunk"
	"mailrag/internal/contextutil"
	"mailrag/internal/intent"
)

// NoContext is returned when nothing survives assembly.
const NoContext = "No relevant context found."

// Separator sits between numbered blocks.
const Separator = "\n\n---\n\n"

// Defaults for Config.
const (
	DefaultDedupThreshold = 0.8
	DefaultMaxThreads     = 3
)

// Config holds the assembly thresholds.
type Config struct {
	// DedupThreshold is the word overlap above which a chunk counts as a duplicate.
	DedupThreshold float64
	// MaxThreads is the number of threads kept for thread summaries.
	MaxThreads int
}

// Assembler builds LLM-ready context strings.
type Assembler struct {
	cfg    Config
	logger *slog.Logger
}

// New creates an assembler. Zero config values fall back to the defaults.
func New(cfg Config, logger *slog.Logger) *Assembler {
	if cfg.DedupThreshold <= 0 {
		cfg.DedupThreshold = DefaultDedupThreshold
	}
	if cfg.MaxThreads <= 0 {
		cfg.MaxThreads = DefaultMaxThreads
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{cfg: cfg, logger: logger}
}

// EstimateTokens approximates the token count of s at four characters per token.
func EstimateTokens(s string) int {
	return len(s) / 4
}

type item struct {
	chunk chunk.Chunk
	body  string
}

// Assemble filters noise, orders, cleans, deduplicates and formats chunks into one context
// string of at most maxTokens estimated tokens (0 means unbounded). It never fails: when
// nothing survives it returns NoContext.
func (a *Assembler) Assemble(ctx context.Context, chunks []chunk.Chunk, in intent.Intent, maxTokens int) string {
	logger := contextutil.LoggerFromContextOr(ctx, a.logger)

	signal := make([]chunk.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if IsNoise(c) {
			continue
		}
		signal = append(signal, c)
	}
	noise := len(chunks) - len(signal)

	ordered := a.order(signal, in)

	items := make([]item, 0, len(ordered))
	for _, c := range ordered {
		body := Clean(c.Text())
		if body == "" {
			continue
		}
		items = append(items, item{chunk: c, body: body})
	}
	cleaned := len(items)

	items = dedup(items, a.cfg.DedupThreshold)

	var b strings.Builder
	included := 0
	for _, it := range items {
		block := formatBlock(included+1, it)
		addition := block
		if included > 0 {
			addition = Separator + block
		}
		if maxTokens > 0 && EstimateTokens(b.String()+addition) > maxTokens {
			logger.InfoContext(ctx, "context token budget reached",
				"max_tokens", maxTokens,
				"included", included,
				"skipped", len(items)-included,
			)
			break
		}
		b.WriteString(addition)
		included++
	}

	logger.DebugContext(ctx, "context assembled",
		"input", len(chunks),
		"noise", noise,
		"cleaned", cleaned,
		"deduplicated", len(items),
		"included", included,
		"tokens", EstimateTokens(b.String()),
	)

	if included == 0 {
		if maxTokens > 0 && EstimateTokens(NoContext) > maxTokens {
			return ""
		}
		return NoContext
	}
	return b.String()
}

// order groups thread summaries into whole conversations and sorts time-bound queries newest first.
func (a *Assembler) order(chunks []chunk.Chunk, in intent.Intent) []chunk.Chunk {
	out := make([]chunk.Chunk, len(chunks))
	copy(out, chunks)

	switch {
	case in.Primary == intent.ThreadSummary:
		return a.groupThreads(out)
	case in.HasTemporalSignal():
		chunk.SortByDate(out, true)
	}
	return out
}

func (a *Assembler) groupThreads(chunks []chunk.Chunk) []chunk.Chunk {
	index := make(map[string]int)
	var groups [][]chunk.Chunk
	for _, c := range chunks {
		key := c.ThreadKey()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], c)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return len(groups[i]) > len(groups[j])
	})
	if len(groups) > a.cfg.MaxThreads {
		groups = groups[:a.cfg.MaxThreads]
	}

	var out []chunk.Chunk
	for _, g := range groups {
		chunk.SortByDate(g, false)
		out = append(out, g...)
	}
	return out
}

func formatBlock(n int, it item) string {
	c := it.chunk

	from := oneLine(c.SenderName())
	if addr := oneLine(c.Sender()); addr != "" {
		if from == "" {
			from = addr
		} else {
			from = fmt.Sprintf("%s <%s>", from, addr)
		}
	}
	if from == "" {
		from = "Unknown"
	}
	subject := oneLine(c.Subject())
	if subject == "" {
		subject = "(no subject)"
	}
	date := oneLine(c.Metadata.String(chunk.KeyDate))
	if date == "" {
		date = "unknown"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%d] From: %s\nSubject: %s\nDate: %s\n", n, from, subject, date)
	if source := oneLine(c.Retriever()); source != "" {
		fmt.Fprintf(&b, "Source: %s\n", source)
	}
	b.WriteString("\n")
	if c.Content.Kind == chunk.KindImageDescription {
		b.WriteString("[Image description] ")
	}
	b.WriteString(it.body)
	return b.String()
}
